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
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/tagfilter/cmd/tagfilter/config"
	"github.com/AleutianAI/tagfilter/pkg/logging"
	"github.com/AleutianAI/tagfilter/pkg/ux"
	"github.com/AleutianAI/tagfilter/services/tagfilter"
	badgerdb "github.com/AleutianAI/tagfilter/services/tagfilter/storage/badger"
	"github.com/AleutianAI/tagfilter/services/tagfilter/store"
)

// App carries the state shared by all subcommands of one invocation.
type App struct {
	// Flags.
	configPath string
	logLevel   string
	jsonLogs   bool
	verbose    bool

	cfg    config.TagfilterConfig
	logger *logging.Logger
	out    *ux.Printer
	stdin  io.Reader
}

// setup loads the configuration and builds the logger. It runs before
// every subcommand.
func (a *App) setup(cmd *cobra.Command) error {
	var err error
	if a.configPath != "" {
		a.cfg, err = config.LoadFile(a.configPath)
	} else {
		err = config.Load()
		a.cfg = config.Global
	}
	if err != nil {
		return NewCommandError(cmd.Name(), ExitFailure, err)
	}

	levelName := a.cfg.Logging.Level
	if a.logLevel != "" {
		levelName = a.logLevel
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return NewCommandError(cmd.Name(), ExitFailure, err)
	}

	a.logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  a.cfg.Logging.Dir,
		Service: "tagfilter",
		JSON:    a.jsonLogs || a.cfg.Logging.JSON,
		Output:  cmd.ErrOrStderr(),
	})
	a.out = ux.NewPrinter(cmd.OutOrStdout())
	if a.stdin == nil {
		a.stdin = cmd.InOrStdin()
	}
	return nil
}

func (a *App) teardown() {
	if a.logger != nil {
		_ = a.logger.Close()
	}
}

// openStore opens the configured filter database.
func (a *App) openStore() (*store.Store, error) {
	cfg := badgerdb.Config{
		Path:           expandHome(a.cfg.Storage.Dir),
		SyncWrites:     a.cfg.Storage.SyncWrites,
		GCInterval:     a.cfg.Storage.GCInterval,
		GCDiscardRatio: a.cfg.Storage.GCDiscardRatio,
		Logger:         a.logger.Slog().With("component", "badger"),
	}
	if err := os.MkdirAll(cfg.Path, 0750); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return store.Open(cfg, a.logger.Slog())
}

// editFilter loads the filter stored under name, applies fn to it and saves
// the result. A missing filter starts empty when create is set.
func (a *App) editFilter(ctx context.Context, name string, create bool, fn func(t *tagfilter.Tree) error) (*tagfilter.Tree, error) {
	st, err := a.openStore()
	if err != nil {
		return nil, err
	}
	defer st.Close()

	root, err := st.Load(ctx, name)
	switch {
	case errors.Is(err, store.ErrNotFound) && create:
		root = nil
	case err != nil:
		return nil, err
	}

	rec := &tagfilter.Recorder{}
	tree, err := tagfilter.LoadTree(root,
		tagfilter.WithLogger(a.logger.Slog()),
		tagfilter.WithObserver(rec),
	)
	if err != nil {
		return nil, err
	}
	if err := fn(tree); err != nil {
		return nil, err
	}
	if len(rec.Changes) == 0 {
		a.logger.Debug("edit changed nothing", "filter", name)
		return tree, nil
	}

	info, err := st.Save(ctx, name, tree.Root())
	if err != nil {
		return nil, err
	}
	a.logger.Info("filter saved", "filter", name, "size", info.Size, "changes", len(rec.Changes))
	if a.verbose {
		for _, c := range rec.Changes {
			a.out.Println(describeChange(c))
		}
	}
	return tree, nil
}

// loadFilter returns the stored filter.
func (a *App) loadFilter(ctx context.Context, name string) (*tagfilter.Node, error) {
	st, err := a.openStore()
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return st.Load(ctx, name)
}

func (a *App) printTree(root *tagfilter.Node) {
	fmt.Fprint(a.out.Writer(), ux.RenderTree(root, a.out.Styled()))
}

func describeChange(c tagfilter.Change) string {
	s := fmt.Sprintf("%-12s %s rows %d..%d", c.Kind, c.ParentPath.Display(), c.First, c.Last)
	if c.Dest != nil {
		s += fmt.Sprintf(" %s %s@%d", ux.IconArrow, c.DestPath.Display(), c.DestIndex)
	}
	return s
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// parsePaths converts dotted path arguments.
func parsePaths(args []string) ([]tagfilter.Path, error) {
	paths := make([]tagfilter.Path, len(args))
	for i, s := range args {
		p, err := tagfilter.ParsePath(s)
		if err != nil {
			return nil, err
		}
		paths[i] = p
	}
	return paths, nil
}

// resolveArg resolves one dotted path argument in t.
func resolveArg(t *tagfilter.Tree, s string) (*tagfilter.Node, error) {
	p, err := tagfilter.ParsePath(s)
	if err != nil {
		return nil, err
	}
	return t.Resolve(p)
}

// resolveArgs resolves dotted path arguments in t.
func resolveArgs(t *tagfilter.Tree, args []string) ([]*tagfilter.Node, error) {
	paths, err := parsePaths(args)
	if err != nil {
		return nil, err
	}
	return t.ResolveAll(paths)
}
