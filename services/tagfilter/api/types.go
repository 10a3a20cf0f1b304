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
	"errors"
	"net/http"

	"github.com/AleutianAI/tagfilter/pkg/extensions"
	"github.com/AleutianAI/tagfilter/pkg/validation"
	"github.com/AleutianAI/tagfilter/services/tagfilter"
	"github.com/AleutianAI/tagfilter/services/tagfilter/store"
)

// ErrUnsavedChanges indicates a reload would discard unsaved edits.
var ErrUnsavedChanges = errors.New("session has unsaved changes")

// =============================================================================
// Requests
// =============================================================================

// InsertRequest is the body of POST /filters/:name/insert.
type InsertRequest struct {
	// Tag is the new leaf's tag.
	Tag string `json:"tag" binding:"required"`

	// Parent is the dotted path of the parent ("" for the root).
	Parent string `json:"parent"`

	// Index is the insertion position. Nil or negative appends.
	Index *int `json:"index,omitempty"`
}

// PathsRequest is the body of POST /filters/:name/remove.
type PathsRequest struct {
	Paths []string `json:"paths" binding:"required,min=1"`
}

// MergeRequest is the body of POST /filters/:name/merge.
type MergeRequest struct {
	// Kind is "and" or "or".
	Kind  string   `json:"kind" binding:"required"`
	Paths []string `json:"paths" binding:"required,min=1"`
}

// NegateRequest is the body of POST /filters/:name/negate.
type NegateRequest struct {
	Path string `json:"path" binding:"required"`
}

// MoveRequest is the body of POST /filters/:name/move.
type MoveRequest struct {
	Paths  []string `json:"paths" binding:"required,min=1"`
	Target string   `json:"target"`

	// Index is a gap index in the target's current child list. Nil or
	// negative appends.
	Index *int `json:"index,omitempty"`
}

// DragRequest is the body of POST /filters/:name/drag.
type DragRequest struct {
	Paths []string `json:"paths" binding:"required,min=1"`
}

// DropRequest is the body of POST /filters/:name/drop.
//
// Either Text (plain-text tag list) or MimeType plus Data is set. Data is
// base64 in JSON.
type DropRequest struct {
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data,omitempty"`
	Text     string `json:"text,omitempty"`
	Target   string `json:"target"`
	Index    *int   `json:"index,omitempty"`
}

// PruneRequest is the body of POST /filters/:name/prune.
type PruneRequest struct {
	// Tags is the allowed tag set.
	Tags []string `json:"tags"`

	// KeepEmpty retains AND/OR nodes emptied by the prune.
	KeepEmpty bool `json:"keep_empty"`
}

// EvalRequest is the body of POST /filters/:name/eval.
type EvalRequest struct {
	Tags []string `json:"tags"`
}

// ReloadRequest is the body of POST /filters/:name/reload.
type ReloadRequest struct {
	Force bool `json:"force"`
}

// =============================================================================
// Responses
// =============================================================================

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is a stable machine-readable code, e.g. "DUPLICATE_TAG".
	Code string `json:"code"`

	// Path locates the offending node, when known.
	Path string `json:"path,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Sessions int    `json:"sessions"`
}

// FilterResponse describes an open filter.
type FilterResponse struct {
	Name       string             `json:"name"`
	SessionID  string             `json:"session_id"`
	Expression string             `json:"expression"`
	Tree       tagfilter.Document `json:"tree"`
	Tags       []string           `json:"tags"`
	Dirty      bool               `json:"dirty"`

	// Sequence is the last event sequence number; pass it as ?since= when
	// opening the event stream to receive only later events.
	Sequence uint64 `json:"sequence"`
}

// MutationResponse is returned by the edit endpoints.
type MutationResponse struct {
	Filter FilterResponse `json:"filter"`

	// Paths lists the nodes the operation created or now occupies, in the
	// post-operation tree.
	Paths []string `json:"paths,omitempty"`

	// Removed counts rows removed by a prune.
	Removed int `json:"removed,omitempty"`
}

// DragResponse carries the drag payload per MIME type, base64 in JSON.
type DragResponse struct {
	Data map[string][]byte `json:"data"`
}

// EvalResponse is returned by POST /filters/:name/eval.
type EvalResponse struct {
	Accepted bool `json:"accepted"`
}

// ListResponse is returned by GET /filters.
type ListResponse struct {
	Filters []FilterInfo `json:"filters"`
}

// FilterInfo is one entry of ListResponse.
type FilterInfo struct {
	store.Info
	Open bool `json:"open"`
}

// SaveResponse is returned by POST /filters/:name/save.
type SaveResponse struct {
	store.Info
}

// =============================================================================
// Error mapping
// =============================================================================

// errorStatus maps an error to an HTTP status and response code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, store.ErrInvalidName):
		return http.StatusBadRequest, "INVALID_NAME"
	case errors.Is(err, ErrUnsavedChanges):
		return http.StatusConflict, "UNSAVED_CHANGES"
	case errors.Is(err, tagfilter.ErrDecode):
		return http.StatusBadRequest, tagfilter.Reason(err)
	case errors.Is(err, validation.ErrInvalidTag):
		return http.StatusBadRequest, "INVALID_TAG"
	case errors.Is(err, extensions.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, extensions.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN"
	}
	code := tagfilter.Reason(err)
	if code == "INTERNAL" {
		return http.StatusInternalServerError, code
	}
	return http.StatusUnprocessableEntity, code
}

func newErrorResponse(err error) (int, ErrorResponse) {
	status, code := errorStatus(err)
	resp := ErrorResponse{Error: err.Error(), Code: code}
	var opErr *tagfilter.OpError
	if errors.As(err, &opErr) && opErr.Path != nil {
		resp.Path = opErr.Path.String()
	}
	return status, resp
}
