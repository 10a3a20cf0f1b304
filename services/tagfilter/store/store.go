// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists named tag filters in BadgerDB.
//
// Filters are stored in the binary codec form under the key
// "tagfilter/<name>", so a stored value can be evaluated directly with
// tagfilter.Evaluate. Every operation is traced and measured with
// OpenTelemetry.
//
// Thread Safety:
//
//	Store is safe for concurrent use.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/tagfilter/services/tagfilter"
	badgerdb "github.com/AleutianAI/tagfilter/services/tagfilter/storage/badger"
)

var (
	// ErrNotFound indicates no filter is stored under the name.
	ErrNotFound = errors.New("filter not found")

	// ErrInvalidName indicates a filter name outside [A-Za-z0-9._-], empty,
	// starting with a dot or dash, or longer than 128 bytes.
	ErrInvalidName = errors.New("invalid filter name")
)

const keyPrefix = "tagfilter/"

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9._-]{0,127}$`)

// ValidateName checks a filter name.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Info describes one stored filter.
type Info struct {
	// Name is the filter name.
	Name string `json:"name"`

	// Size is the encoded size in bytes.
	Size int `json:"size"`

	// Version is the BadgerDB commit timestamp of the last write.
	Version uint64 `json:"version"`
}

// Store persists named filters.
type Store struct {
	db     *badgerdb.DB
	ownsDB bool
	logger *slog.Logger
}

// New wraps an open database. Close does not close db.
func New(db *badgerdb.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Open opens the database described by cfg and returns a Store owning it.
func Open(cfg badgerdb.Config, logger *slog.Logger) (*Store, error) {
	db, err := badgerdb.Open(cfg)
	if err != nil {
		return nil, err
	}
	s := New(db, logger)
	s.ownsDB = true
	return s, nil
}

// Close releases the database if the Store opened it.
func (s *Store) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

func key(name string) []byte {
	return []byte(keyPrefix + name)
}

// Save encodes root and stores it under name, replacing any previous value.
//
// Inputs:
//
//	ctx - Context for tracing and cancellation.
//	name - Filter name, see ValidateName.
//	root - The filter. It must satisfy the tree invariants.
//
// Outputs:
//
//	Info - The stored entry.
//	error - ErrInvalidName, a tagfilter validation error, or a storage error.
func (s *Store) Save(ctx context.Context, name string, root *tagfilter.Node) (Info, error) {
	ctx, span := startSpan(ctx, "Save", name)
	start := time.Now()
	info, err := s.save(ctx, name, root)
	recordMetrics(ctx, "save", start, info.Size, err)
	finishSpan(span, err)
	return info, err
}

func (s *Store) save(ctx context.Context, name string, root *tagfilter.Node) (Info, error) {
	if err := ValidateName(name); err != nil {
		return Info{}, err
	}
	data, err := tagfilter.Marshal(root)
	if err != nil {
		return Info{}, fmt.Errorf("save %s: %w", name, err)
	}
	err = s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(key(name), data)
	})
	if err != nil {
		return Info{}, fmt.Errorf("save %s: %w", name, err)
	}

	s.logger.Debug("filter saved", slog.String("name", name), slog.Int("bytes", len(data)))
	info := Info{Name: name, Size: len(data)}
	if stored, err := s.stat(ctx, name); err == nil {
		info.Version = stored.Version
	}
	return info, nil
}

func (s *Store) stat(ctx context.Context, name string) (Info, error) {
	var info Info
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(key(name))
		if err != nil {
			return err
		}
		info = Info{Name: name, Size: int(item.ValueSize()), Version: item.Version()}
		return nil
	})
	return info, err
}

// LoadRaw returns the encoded filter stored under name.
func (s *Store) LoadRaw(ctx context.Context, name string) ([]byte, error) {
	ctx, span := startSpan(ctx, "LoadRaw", name)
	start := time.Now()
	data, err := s.loadRaw(ctx, name)
	recordMetrics(ctx, "load", start, len(data), err)
	finishSpan(span, err)
	return data, err
}

func (s *Store) loadRaw(ctx context.Context, name string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(key(name))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return data, nil
}

// Load decodes the filter stored under name.
//
// Outputs:
//
//	*tagfilter.Node - A detached root.
//	error - ErrNotFound, ErrInvalidName, or a decode error wrapping
//	tagfilter.ErrDecode for corrupt values.
func (s *Store) Load(ctx context.Context, name string) (*tagfilter.Node, error) {
	data, err := s.LoadRaw(ctx, name)
	if err != nil {
		return nil, err
	}
	root, err := tagfilter.Unmarshal(data)
	if err != nil {
		s.logger.Warn("stored filter is corrupt", slog.String("name", name), slog.String("error", err.Error()))
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return root, nil
}

// List returns every stored filter ordered by name.
func (s *Store) List(ctx context.Context) ([]Info, error) {
	ctx, span := startSpan(ctx, "List", "")
	start := time.Now()

	var out []Info
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			out = append(out, Info{
				Name:    strings.TrimPrefix(string(item.Key()), keyPrefix),
				Size:    int(item.ValueSize()),
				Version: item.Version(),
			})
		}
		return nil
	})
	if err != nil {
		err = fmt.Errorf("list filters: %w", err)
	}
	span.SetAttributes(attributeCount(len(out)))
	recordMetrics(ctx, "list", start, 0, err)
	finishSpan(span, err)
	return out, err
}

// Delete removes the filter stored under name.
func (s *Store) Delete(ctx context.Context, name string) error {
	ctx, span := startSpan(ctx, "Delete", name)
	start := time.Now()
	err := s.delete(ctx, name)
	recordMetrics(ctx, "delete", start, 0, err)
	finishSpan(span, err)
	return err
}

func (s *Store) delete(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	err := s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(key(name)); err != nil {
			return err
		}
		return txn.Delete(key(name))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	s.logger.Debug("filter deleted", slog.String("name", name))
	return nil
}
