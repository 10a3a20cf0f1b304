// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/tagfilter/pkg/validation"
	"github.com/AleutianAI/tagfilter/services/tagfilter"
	"github.com/AleutianAI/tagfilter/services/tagfilter/store"
)

// Process exit codes.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitRejected = 2 // the filter refused the edit, or eval --exit-code rejected
	ExitNotFound = 3
)

// CommandError attaches an exit code to a command failure.
//
// # Example
//
//	err := NewCommandError("insert", ExitRejected, tagErr)
//	fmt.Println(err.Error()) // "insert: insert at root: duplicate tag: ..."
type CommandError struct {
	// Command is the subcommand that failed.
	Command string

	// ExitCode is the process exit code.
	ExitCode int

	// Wrapped is the underlying error. Nil for a silent non-zero exit.
	Wrapped error
}

// Error returns a formatted error message.
func (e *CommandError) Error() string {
	if e.Wrapped == nil {
		return fmt.Sprintf("%s (exit %d)", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s: %v", e.Command, e.Wrapped)
}

// Unwrap returns the underlying error.
func (e *CommandError) Unwrap() error {
	return e.Wrapped
}

// NewCommandError creates a CommandError.
func NewCommandError(command string, exitCode int, err error) *CommandError {
	return &CommandError{Command: command, ExitCode: exitCode, Wrapped: err}
}

// classify wraps err with the exit code its cause calls for.
func classify(command string, err error) error {
	if err == nil {
		return nil
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return err
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return NewCommandError(command, ExitNotFound, err)
	case errors.Is(err, validation.ErrInvalidTag):
		return NewCommandError(command, ExitRejected, err)
	case tagfilter.Reason(err) != "INTERNAL":
		return NewCommandError(command, ExitRejected, err)
	default:
		return NewCommandError(command, ExitFailure, err)
	}
}

// exitCode returns the process exit code for an Execute error.
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.ExitCode
	}
	return ExitFailure
}
