// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extensions

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrUnauthorized indicates a missing or invalid token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates an authenticated user lacks permission.
	ErrForbidden = errors.New("forbidden")
)

// Action is what a request does to a filter.
type Action string

const (
	// ActionRead views, evaluates or drags from a filter.
	ActionRead Action = "read"

	// ActionWrite edits, saves or reloads a filter.
	ActionWrite Action = "write"

	// ActionDelete deletes a stored filter.
	ActionDelete Action = "delete"
)

// Roles understood by RoleAuthzProvider.
const (
	RoleViewer = "viewer"
	RoleEditor = "editor"
	RoleAdmin  = "admin"
)

// AuthInfo is the identity behind a request.
type AuthInfo struct {
	// UserID is the unique identifier for the user. Never empty.
	UserID string `yaml:"user" json:"user"`

	// Roles contains the user's roles, see RoleAuthzProvider.
	Roles []string `yaml:"roles" json:"roles"`
}

// HasRole checks if the user has a specific role.
func (a *AuthInfo) HasRole(role string) bool {
	return slices.Contains(a.Roles, role)
}

// AuthProvider validates tokens and returns the user's identity.
type AuthProvider interface {
	// Validate returns the identity for token, or an error wrapping
	// ErrUnauthorized. token is "" when the request carried none.
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// AuthzRequest describes one authorization check.
type AuthzRequest struct {
	// User comes from AuthProvider.Validate.
	User *AuthInfo

	// Action is the operation being attempted.
	Action Action

	// Filter names the filter, "" for collection-wide requests.
	Filter string
}

// AuthzProvider checks whether a user may perform an action.
type AuthzProvider interface {
	// Authorize returns nil when allowed, or an error wrapping ErrForbidden.
	Authorize(ctx context.Context, req AuthzRequest) error
}

// NopAuthProvider accepts any token, including none, as the local admin.
type NopAuthProvider struct{}

// Validate always returns the local user.
func (p *NopAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	return &AuthInfo{UserID: "local-user", Roles: []string{RoleAdmin}}, nil
}

// NopAuthzProvider allows every action.
type NopAuthzProvider struct{}

// Authorize always returns nil.
func (p *NopAuthzProvider) Authorize(_ context.Context, _ AuthzRequest) error {
	return nil
}

// TokenAuthProvider authenticates static bearer tokens, typically listed
// in the server configuration.
//
// Thread Safety: Immutable after construction.
type TokenAuthProvider struct {
	tokens map[string]AuthInfo
}

// NewTokenAuthProvider creates a provider for token -> identity pairs.
func NewTokenAuthProvider(tokens map[string]AuthInfo) *TokenAuthProvider {
	cp := make(map[string]AuthInfo, len(tokens))
	for tok, info := range tokens {
		cp[tok] = info
	}
	return &TokenAuthProvider{tokens: cp}
}

// Validate looks token up, comparing every candidate in constant time.
func (p *TokenAuthProvider) Validate(_ context.Context, token string) (*AuthInfo, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", ErrUnauthorized)
	}
	var found *AuthInfo
	for tok, info := range p.tokens {
		if subtle.ConstantTimeCompare([]byte(tok), []byte(token)) == 1 {
			found = &info
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: unknown token", ErrUnauthorized)
	}
	return found, nil
}

// RoleAuthzProvider grants reads to viewers, reads and writes to editors,
// and everything to admins.
type RoleAuthzProvider struct{}

// Authorize checks req.User's roles against req.Action.
func (RoleAuthzProvider) Authorize(_ context.Context, req AuthzRequest) error {
	if req.User == nil {
		return fmt.Errorf("%w: no user", ErrForbidden)
	}
	u := req.User
	allowed := false
	switch req.Action {
	case ActionRead:
		allowed = u.HasRole(RoleViewer) || u.HasRole(RoleEditor) || u.HasRole(RoleAdmin)
	case ActionWrite:
		allowed = u.HasRole(RoleEditor) || u.HasRole(RoleAdmin)
	case ActionDelete:
		allowed = u.HasRole(RoleAdmin)
	}
	if !allowed {
		return fmt.Errorf("%w: %s may not %s %q", ErrForbidden, u.UserID, req.Action, req.Filter)
	}
	return nil
}

// Compile-time interface compliance checks.
var (
	_ AuthProvider  = (*NopAuthProvider)(nil)
	_ AuthProvider  = (*TokenAuthProvider)(nil)
	_ AuthzProvider = (*NopAuthzProvider)(nil)
	_ AuthzProvider = RoleAuthzProvider{}
)
