// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api exposes filter editing over HTTP and WebSocket.
//
// Each filter name maps to one in-memory Session holding an editing Tree.
// Edit intents arrive as POST requests and are applied to the session's
// tree; the resulting change notifications are broadcast to WebSocket
// subscribers through an events.Emitter. Save writes the tree to the store.
//
// Thread Safety:
//
//	Service and Session are safe for concurrent use. A session's tree is
//	only touched while holding the session lock.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/AleutianAI/tagfilter/services/tagfilter"
	"github.com/AleutianAI/tagfilter/services/tagfilter/events"
	"github.com/AleutianAI/tagfilter/services/tagfilter/store"
	"github.com/google/uuid"
)

// ServiceVersion is the API version reported by the health endpoint.
const ServiceVersion = "0.1.0"

// Session is an open filter being edited.
type Session struct {
	// ID identifies this editing session. It changes when the session is
	// reopened after Close.
	ID string

	// Name is the filter name.
	Name string

	mu      sync.Mutex
	tree    *tagfilter.Tree
	emitter *events.Emitter
	dirty   bool
	opened  time.Time
}

// Emitter returns the session's event emitter.
func (s *Session) Emitter() *events.Emitter {
	return s.emitter
}

// Do runs fn with exclusive access to the tree. When mutate is true and fn
// succeeds, the session is marked dirty.
func (s *Session) Do(mutate bool, fn func(t *tagfilter.Tree) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(s.tree); err != nil {
		return err
	}
	if mutate {
		s.dirty = true
	}
	return nil
}

// State returns a consistent view of the session.
func (s *Session) State() FilterResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() FilterResponse {
	root := s.tree.Root()
	return FilterResponse{
		Name:       s.Name,
		SessionID:  s.ID,
		Expression: root.String(),
		Tree:       tagfilter.ToDocument(root),
		Tags:       root.Tags(),
		Dirty:      s.dirty,
		Sequence:   s.emitter.Sequence(),
	}
}

// Service owns the open sessions and the filter store.
type Service struct {
	store      *store.Store
	logger     *slog.Logger
	bufferSize int

	mu       sync.Mutex
	sessions map[string]*Session
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEventBuffer sets how many events each session keeps for replay.
func WithEventBuffer(size int) ServiceOption {
	return func(s *Service) {
		s.bufferSize = size
	}
}

// NewService creates a Service backed by st.
func NewService(st *store.Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:      st,
		logger:     slog.Default(),
		bufferSize: 1000,
		sessions:   make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the backing store.
func (s *Service) Store() *store.Store {
	return s.store
}

// Logger returns the service logger.
func (s *Service) Logger() *slog.Logger {
	return s.logger
}

// Session returns the open session for name.
//
// Description:
//
//	An already-open session is returned as is. Otherwise the filter is
//	loaded from the store. When it is not stored and create is true, a
//	session with an empty filter is opened; when create is false,
//	store.ErrNotFound is returned.
func (s *Service) Session(ctx context.Context, name string, create bool) (*Session, error) {
	if err := store.ValidateName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if sess, ok := s.sessions[name]; ok {
		s.mu.Unlock()
		return sess, nil
	}
	s.mu.Unlock()

	root, err := s.store.Load(ctx, name)
	switch {
	case errors.Is(err, store.ErrNotFound) && create:
		root = nil
	case err != nil:
		return nil, err
	}

	sess, err := s.open(name, root)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Lost a race with another opener; keep theirs.
	if existing, ok := s.sessions[name]; ok {
		return existing, nil
	}
	s.sessions[name] = sess
	s.logger.Info("session opened", "filter", name, "session_id", sess.ID)
	return sess, nil
}

func (s *Service) open(name string, root *tagfilter.Node) (*Session, error) {
	logger := s.logger.With("filter", name)
	emitter := events.NewEmitter(
		events.WithFilterName(name),
		events.WithBufferSize(s.bufferSize),
		events.WithLogger(logger),
	)
	tree, err := tagfilter.LoadTree(root,
		tagfilter.WithLogger(logger),
		tagfilter.WithObserver(emitter),
	)
	if err != nil {
		return nil, fmt.Errorf("open filter %q: %w", name, err)
	}
	return &Session{
		ID:      uuid.NewString(),
		Name:    name,
		tree:    tree,
		emitter: emitter,
		opened:  time.Now(),
	}, nil
}

// OpenSessions returns the names of the open sessions, sorted.
func (s *Service) OpenSessions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.sessions))
	for name := range s.sessions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Save persists the session's current tree.
func (s *Service) Save(ctx context.Context, sess *Session) (store.Info, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	root := sess.tree.Root()
	info, err := s.store.Save(ctx, sess.Name, root)
	if err != nil {
		return store.Info{}, err
	}
	sess.dirty = false
	sess.emitter.Emit(events.TypeSaved, events.FilterData{
		Expression: root.String(),
		Size:       info.Size,
	})
	s.logger.Info("filter saved", "filter", sess.Name, "size", info.Size)
	return info, nil
}

// Reload replaces an open session's tree with the stored version. It is a
// no-op when no session is open for name, and refuses to discard unsaved
// edits unless force is set.
//
// Outputs:
//
//	bool - Whether the session was reloaded.
//	error - ErrUnsavedChanges, store.ErrNotFound, or a decode error.
func (s *Service) Reload(ctx context.Context, name string, force bool) (bool, error) {
	s.mu.Lock()
	sess, ok := s.sessions[name]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}

	root, err := s.store.Load(ctx, name)
	if err != nil {
		return false, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.dirty && !force {
		return false, fmt.Errorf("%w: %s", ErrUnsavedChanges, name)
	}
	if err := sess.tree.Reset(root); err != nil {
		return false, err
	}
	sess.dirty = false
	sess.emitter.Emit(events.TypeLoaded, events.FilterData{Expression: root.String()})
	s.logger.Info("filter reloaded", "filter", name)
	return true, nil
}

// Close discards the open session for name without saving.
func (s *Service) Close(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[name]
	if !ok {
		return false
	}
	delete(s.sessions, name)
	sess.emitter.Reset()
	s.logger.Info("session closed", "filter", name, "session_id", sess.ID,
		"open_for", time.Since(sess.opened).Round(time.Millisecond))
	return true
}

// Delete closes any open session and removes the stored filter.
func (s *Service) Delete(ctx context.Context, name string) error {
	s.Close(name)
	return s.store.Delete(ctx, name)
}
