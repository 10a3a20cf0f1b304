// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DirWatcherOptions configures a DirWatcher.
type DirWatcherOptions struct {
	// DebounceWindow is how long to wait for more changes to a file before
	// importing it. Editors often write a file in several steps.
	// Default: 200ms
	DebounceWindow time.Duration

	// DeleteOnRemove deletes the stored filter when its document is
	// removed or renamed away.
	DeleteOnRemove bool

	// OnSync, when set, is called after every import or delete attempt.
	OnSync func(name string, err error)
}

// DefaultDirWatcherOptions returns sensible defaults.
func DefaultDirWatcherOptions() DirWatcherOptions {
	return DirWatcherOptions{DebounceWindow: 200 * time.Millisecond}
}

// DirWatcher keeps the store in sync with a directory of YAML filter
// documents.
//
// # Description
//
// On start every document already in the directory is imported. After
// that, creates and writes re-import the document and, with
// DeleteOnRemove, removals delete the stored filter. Changes to the same
// file within the debounce window are collapsed into one sync. The
// directory is watched non-recursively.
//
// # Thread Safety
//
// Run must be called once. Syncs happen on Run's goroutine.
type DirWatcher struct {
	dir     string
	store   *Store
	opts    DirWatcherOptions
	logger  *slog.Logger
	watcher *fsnotify.Watcher
}

// NewDirWatcher creates a watcher for dir. opts nil uses defaults.
func NewDirWatcher(dir string, s *Store, opts *DirWatcherOptions) (*DirWatcher, error) {
	if opts == nil {
		defaults := DefaultDirWatcherOptions()
		opts = &defaults
	}
	if opts.DebounceWindow <= 0 {
		opts.DebounceWindow = DefaultDirWatcherOptions().DebounceWindow
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch %s: not a directory", dir)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &DirWatcher{
		dir:     dir,
		store:   s,
		opts:    *opts,
		logger:  s.logger.With(slog.String("watch_dir", dir)),
		watcher: w,
	}, nil
}

// Run imports existing documents and then follows changes until ctx is
// done. It always returns nil on cancellation.
func (d *DirWatcher) Run(ctx context.Context) error {
	defer d.watcher.Close()

	if err := d.watcher.Add(d.dir); err != nil {
		return fmt.Errorf("watch %s: %w", d.dir, err)
	}
	if err := d.importExisting(ctx); err != nil {
		return err
	}

	pending := make(map[string]fsnotify.Op)
	timer := time.NewTimer(d.opts.DebounceWindow)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-d.watcher.Events:
			if !ok {
				return nil
			}
			if !IsDocument(event.Name) {
				continue
			}
			pending[event.Name] |= event.Op
			timer.Reset(d.opts.DebounceWindow)

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return nil
			}
			d.logger.Warn("filter directory watch error", slog.String("error", err.Error()))

		case <-timer.C:
			d.flush(ctx, pending)
			pending = make(map[string]fsnotify.Op)
		}
	}
}

func (d *DirWatcher) importExisting(ctx context.Context) error {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", d.dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !IsDocument(e.Name()) {
			continue
		}
		d.sync(ctx, filepath.Join(d.dir, e.Name()), fsnotify.Create)
	}
	return nil
}

func (d *DirWatcher) flush(ctx context.Context, pending map[string]fsnotify.Op) {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		d.sync(ctx, p, pending[p])
	}
}

// sync brings one document's stored filter up to date with the file.
func (d *DirWatcher) sync(ctx context.Context, path string, op fsnotify.Op) {
	name := NameFromPath(path)
	_, statErr := os.Stat(path)
	gone := errors.Is(statErr, os.ErrNotExist)

	var err error
	switch {
	case gone && d.opts.DeleteOnRemove:
		err = d.store.Delete(ctx, name)
		if errors.Is(err, ErrNotFound) {
			err = nil
		}
		if err == nil {
			d.logger.Info("filter removed with its document", slog.String("name", name))
		}
	case gone:
		return
	default:
		var info Info
		info, err = d.store.ImportFile(ctx, path, name)
		if err == nil {
			d.logger.Info("filter imported",
				slog.String("name", name),
				slog.String("op", op.String()),
				slog.Int("bytes", info.Size),
			)
		}
	}
	if err != nil {
		d.logger.Warn("filter document sync failed", slog.String("path", path), slog.String("error", err.Error()))
	}
	if d.opts.OnSync != nil {
		d.opts.OnSync(name, err)
	}
}
