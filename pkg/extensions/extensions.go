// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extensions provides the access control and audit hooks of the
// tagfilter server.
//
// A local server runs with no-op defaults: every request is the local user,
// every action is allowed and nothing is audited. Deployments that expose
// the API replace them through Options:
//
//	opts := extensions.DefaultOptions().
//	    WithAuth(extensions.NewTokenAuthProvider(tokens)).
//	    WithAuthz(extensions.RoleAuthzProvider{}).
//	    WithAudit(extensions.NewSlogAuditLogger(logger))
//	handlers := api.NewHandlers(svc, api.WithExtensions(opts))
//
// # Thread Safety
//
// All interface implementations must be safe for concurrent use.
package extensions

// Options groups all extension points.
//
// Nil fields are replaced with no-op defaults by WithDefaults.
type Options struct {
	// AuthProvider validates bearer tokens.
	// Default: NopAuthProvider (always the local user)
	AuthProvider AuthProvider

	// AuthzProvider decides whether a user may perform an action.
	// Default: NopAuthzProvider (always allows)
	AuthzProvider AuthzProvider

	// AuditLogger records edits and denials.
	// Default: NopAuditLogger (discards)
	AuditLogger AuditLogger
}

// DefaultOptions returns Options with all no-op implementations.
func DefaultOptions() Options {
	return Options{
		AuthProvider:  &NopAuthProvider{},
		AuthzProvider: &NopAuthzProvider{},
		AuditLogger:   &NopAuditLogger{},
	}
}

// WithDefaults fills nil fields with no-op implementations.
func (opts Options) WithDefaults() Options {
	def := DefaultOptions()
	if opts.AuthProvider == nil {
		opts.AuthProvider = def.AuthProvider
	}
	if opts.AuthzProvider == nil {
		opts.AuthzProvider = def.AuthzProvider
	}
	if opts.AuditLogger == nil {
		opts.AuditLogger = def.AuditLogger
	}
	return opts
}

// WithAuth returns a copy with the given auth provider.
func (opts Options) WithAuth(provider AuthProvider) Options {
	opts.AuthProvider = provider
	return opts
}

// WithAuthz returns a copy with the given authz provider.
func (opts Options) WithAuthz(provider AuthzProvider) Options {
	opts.AuthzProvider = provider
	return opts
}

// WithAudit returns a copy with the given audit logger.
func (opts Options) WithAudit(logger AuditLogger) Options {
	opts.AuditLogger = logger
	return opts
}
