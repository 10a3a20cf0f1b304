// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/tagfilter/pkg/extensions"
	badgerdb "github.com/AleutianAI/tagfilter/services/tagfilter/storage/badger"
	"github.com/AleutianAI/tagfilter/services/tagfilter/store"
)

type recordingAuditLogger struct {
	mu     sync.Mutex
	events []extensions.AuditEvent
}

func (r *recordingAuditLogger) Log(_ context.Context, e extensions.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingAuditLogger) Flush(context.Context) error { return nil }

func (r *recordingAuditLogger) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType + ":" + e.Outcome
	}
	return out
}

func setupSecuredRouter(t *testing.T) (*gin.Engine, *recordingAuditLogger) {
	t.Helper()
	st, err := store.Open(badgerdb.InMemoryConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	audit := &recordingAuditLogger{}
	opts := extensions.Options{
		AuthProvider: extensions.NewTokenAuthProvider(map[string]extensions.AuthInfo{
			"view":  {UserID: "vera", Roles: []string{extensions.RoleViewer}},
			"edit":  {UserID: "ed", Roles: []string{extensions.RoleEditor}},
			"admin": {UserID: "ada", Roles: []string{extensions.RoleAdmin}},
		}),
		AuthzProvider: extensions.RoleAuthzProvider{},
		AuditLogger:   audit,
	}
	router := gin.New()
	RegisterRoutes(router.Group("/v1"), NewHandlers(NewService(st), WithExtensions(opts)))
	return router, audit
}

func doAs(t *testing.T, router http.Handler, token, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, withToken{router, token}, method, path, body)
}

// withToken adds a bearer token to every request.
type withToken struct {
	next  http.Handler
	token string
}

func (w withToken) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if w.token != "" {
		r.Header.Set("Authorization", "Bearer "+w.token)
	}
	w.next.ServeHTTP(rw, r)
}

func TestAccess_OpenEndpoints(t *testing.T) {
	router, _ := setupSecuredRouter(t)

	w := do(t, router, http.MethodGet, "/v1/tagfilter/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAccess_Unauthenticated(t *testing.T) {
	router, audit := setupSecuredRouter(t)

	w := do(t, router, http.MethodGet, "/v1/tagfilter/filters", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", decode[ErrorResponse](t, w).Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Bearer")

	w = doAs(t, router, "wrong", http.MethodPost, "/v1/tagfilter/filters/f/insert", InsertRequest{Tag: "a"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, []string{"auth.failed:denied", "auth.failed:denied"}, audit.types())
}

func TestAccess_Roles(t *testing.T) {
	router, audit := setupSecuredRouter(t)
	const insert = "/v1/tagfilter/filters/f/insert"

	w := doAs(t, router, "view", http.MethodPost, insert, InsertRequest{Tag: "a"})
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", decode[ErrorResponse](t, w).Code)

	w = doAs(t, router, "edit", http.MethodPost, insert, InsertRequest{Tag: "a"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doAs(t, router, "view", http.MethodGet, "/v1/tagfilter/filters/f", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OR[a]", decode[FilterResponse](t, w).Expression)

	w = doAs(t, router, "edit", http.MethodPost, insert, InsertRequest{Tag: "a"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doAs(t, router, "edit", http.MethodPost, "/v1/tagfilter/filters/f/save", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doAs(t, router, "edit", http.MethodDelete, "/v1/tagfilter/filters/f", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = doAs(t, router, "admin", http.MethodDelete, "/v1/tagfilter/filters/f", nil)
	assert.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	assert.Equal(t, []string{
		"authz.denied:denied",
		"filter.edit:success",
		"filter.edit:failure",
		"filter.edit:success",
		"authz.denied:denied",
		"filter.delete:success",
	}, audit.types())

	audit.mu.Lock()
	defer audit.mu.Unlock()
	edit := audit.events[1]
	assert.Equal(t, "ed", edit.UserID)
	assert.Equal(t, "f", edit.Filter)
	assert.Equal(t, "/v1/tagfilter/filters/:name/insert", edit.Metadata["route"])
	assert.Equal(t, http.StatusOK, edit.Metadata["status"])
	assert.NotEmpty(t, edit.Metadata["request_id"])
}

func TestAccess_QueryToken(t *testing.T) {
	router, _ := setupSecuredRouter(t)

	w := do(t, router, http.MethodGet, "/v1/tagfilter/filters?access_token=view", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		query  string
		want   string
	}{
		{"Bearer abc", "", "abc"},
		{"bearer  abc ", "", "abc"},
		{"Basic abc", "q", "q"},
		{"Bearer ", "", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/?access_token="+tt.query, nil)
		if tt.header != "" {
			c.Request.Header.Set("Authorization", tt.header)
		}
		assert.Equal(t, tt.want, bearerToken(c), tt.header)
	}
}
