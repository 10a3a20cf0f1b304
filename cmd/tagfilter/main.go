// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command tagfilter edits, stores and evaluates boolean tag filters.
//
// Usage:
//
//	tagfilter insert inbox urgent
//	tagfilter insert inbox bug
//	tagfilter merge inbox and 1
//	tagfilter show inbox
//	tagfilter eval inbox bug --exit-code
//	tagfilter serve --watch ./filters
//
// Exit codes: 0 success, 1 failure, 2 the filter rejected the edit or
// input, 3 no such filter.
package main

import (
	"context"
	"errors"
	"os"

	"github.com/AleutianAI/tagfilter/pkg/ux"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:]))
}

// run executes one invocation and returns its exit code.
func run(ctx context.Context, args []string) int {
	app := &App{}
	root := newRootCmd(app)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil {
		var cmdErr *CommandError
		silent := errors.As(err, &cmdErr) && cmdErr.Wrapped == nil
		if !silent {
			ux.NewPrinter(root.ErrOrStderr()).Error("%v", err)
		}
	}
	return exitCode(err)
}
