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
	"fmt"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/tagfilter/pkg/extensions"
	"github.com/AleutianAI/tagfilter/pkg/validation"
	"github.com/AleutianAI/tagfilter/services/tagfilter"
	"github.com/AleutianAI/tagfilter/services/tagfilter/store"
	"github.com/AleutianAI/tagfilter/services/tagfilter/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handlers contains the HTTP handlers for filter editing.
type Handlers struct {
	svc    *Service
	ext    extensions.Options
	logger *slog.Logger
}

// HandlerOption configures Handlers.
type HandlerOption func(*Handlers)

// WithExtensions sets the auth, authz and audit hooks. Nil fields keep
// their no-op defaults.
func WithExtensions(opts extensions.Options) HandlerOption {
	return func(h *Handlers) {
		h.ext = opts.WithDefaults()
	}
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service, opts ...HandlerOption) *Handlers {
	h := &Handlers{svc: svc, ext: extensions.DefaultOptions(), logger: svc.logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// =============================================================================
// Read endpoints
// =============================================================================

// HandleHealth handles GET /v1/tagfilter/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:   "healthy",
		Version:  ServiceVersion,
		Sessions: len(h.svc.OpenSessions()),
	})
}

// HandleList handles GET /v1/tagfilter/filters.
//
// Response:
//
//	200 OK: ListResponse, stored filters plus open unsaved ones
//	500 Internal Server Error: Storage error
func (h *Handlers) HandleList(c *gin.Context) {
	logger := h.requestLogger(c, "HandleList")

	infos, err := h.svc.Store().List(c.Request.Context())
	if err != nil {
		h.fail(c, logger, err)
		return
	}

	open := make(map[string]bool)
	for _, name := range h.svc.OpenSessions() {
		open[name] = true
	}
	resp := ListResponse{Filters: make([]FilterInfo, 0, len(infos)+len(open))}
	for _, info := range infos {
		resp.Filters = append(resp.Filters, FilterInfo{Info: info, Open: open[info.Name]})
		delete(open, info.Name)
	}
	for _, name := range h.svc.OpenSessions() {
		if open[name] {
			resp.Filters = append(resp.Filters, FilterInfo{Info: store.Info{Name: name}, Open: true})
		}
	}
	c.JSON(http.StatusOK, resp)
}

// HandleGet handles GET /v1/tagfilter/filters/:name.
//
// Response:
//
//	200 OK: FilterResponse
//	404 Not Found: Neither open nor stored
func (h *Handlers) HandleGet(c *gin.Context) {
	logger := h.requestLogger(c, "HandleGet")
	sess, ok := h.session(c, logger, false)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.State())
}

// HandleEval handles POST /v1/tagfilter/filters/:name/eval.
func (h *Handlers) HandleEval(c *gin.Context) {
	logger := h.requestLogger(c, "HandleEval")
	var req EvalRequest
	if !h.bind(c, logger, &req) {
		return
	}
	sess, ok := h.session(c, logger, false)
	if !ok {
		return
	}

	var accepted bool
	_ = sess.Do(false, func(t *tagfilter.Tree) error {
		accepted = t.Root().IsAccepted(tagfilter.NewTagSet(req.Tags...))
		return nil
	})
	c.JSON(http.StatusOK, EvalResponse{Accepted: accepted})
}

// HandleDrag handles POST /v1/tagfilter/filters/:name/drag.
//
// Description:
//
//	Builds the drag payloads for the selected nodes without changing the
//	tree. The path payload can be passed back to the drop endpoint.
func (h *Handlers) HandleDrag(c *gin.Context) {
	logger := h.requestLogger(c, "HandleDrag")
	var req DragRequest
	if !h.bind(c, logger, &req) {
		return
	}
	sess, ok := h.session(c, logger, false)
	if !ok {
		return
	}

	var data map[string][]byte
	err := sess.Do(false, func(t *tagfilter.Tree) error {
		nodes, err := resolvePaths(t, req.Paths)
		if err != nil {
			return err
		}
		data, err = t.MimeData(nodes)
		return err
	})
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, DragResponse{Data: data})
}

// =============================================================================
// Edit endpoints
// =============================================================================

// HandleInsert handles POST /v1/tagfilter/filters/:name/insert.
//
// Request Body:
//
//	InsertRequest
//
// Response:
//
//	200 OK: MutationResponse with the new leaf's path
//	400 Bad Request: Invalid body or name
//	422 Unprocessable Entity: Rejected by the tree (e.g. DUPLICATE_TAG)
func (h *Handlers) HandleInsert(c *gin.Context) {
	logger := h.requestLogger(c, "HandleInsert")
	var req InsertRequest
	if !h.bind(c, logger, &req) {
		return
	}
	if err := validation.ValidateTag(req.Tag); err != nil {
		h.fail(c, logger, err)
		return
	}
	h.mutate(c, logger, func(t *tagfilter.Tree, resp *MutationResponse) error {
		parent, err := resolvePath(t, req.Parent)
		if err != nil {
			return err
		}
		leaf, err := t.InsertLeaf(req.Tag, parent, indexOrAppend(req.Index))
		if err != nil {
			return err
		}
		return appendPaths(t, resp, leaf)
	})
}

// HandleRemove handles POST /v1/tagfilter/filters/:name/remove.
func (h *Handlers) HandleRemove(c *gin.Context) {
	logger := h.requestLogger(c, "HandleRemove")
	var req PathsRequest
	if !h.bind(c, logger, &req) {
		return
	}
	h.mutate(c, logger, func(t *tagfilter.Tree, _ *MutationResponse) error {
		nodes, err := resolvePaths(t, req.Paths)
		if err != nil {
			return err
		}
		_, err = t.RemoveMany(nodes)
		return err
	})
}

// HandleMerge handles POST /v1/tagfilter/filters/:name/merge.
func (h *Handlers) HandleMerge(c *gin.Context) {
	logger := h.requestLogger(c, "HandleMerge")
	var req MergeRequest
	if !h.bind(c, logger, &req) {
		return
	}
	kind, err := tagfilter.ParseKind(req.Kind)
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	h.mutate(c, logger, func(t *tagfilter.Tree, resp *MutationResponse) error {
		nodes, err := resolvePaths(t, req.Paths)
		if err != nil {
			return err
		}
		merged, err := t.Merge(kind, nodes)
		if err != nil {
			return err
		}
		return appendPaths(t, resp, merged)
	})
}

// HandleNegate handles POST /v1/tagfilter/filters/:name/negate.
func (h *Handlers) HandleNegate(c *gin.Context) {
	logger := h.requestLogger(c, "HandleNegate")
	var req NegateRequest
	if !h.bind(c, logger, &req) {
		return
	}
	h.mutate(c, logger, func(t *tagfilter.Tree, resp *MutationResponse) error {
		n, err := resolvePath(t, req.Path)
		if err != nil {
			return err
		}
		out, err := t.Negate(n)
		if err != nil {
			return err
		}
		return appendPaths(t, resp, out)
	})
}

// HandleMove handles POST /v1/tagfilter/filters/:name/move.
func (h *Handlers) HandleMove(c *gin.Context) {
	logger := h.requestLogger(c, "HandleMove")
	var req MoveRequest
	if !h.bind(c, logger, &req) {
		return
	}
	h.mutate(c, logger, func(t *tagfilter.Tree, resp *MutationResponse) error {
		nodes, err := resolvePaths(t, req.Paths)
		if err != nil {
			return err
		}
		target, err := resolvePath(t, req.Target)
		if err != nil {
			return err
		}
		if err := t.Move(nodes, target, indexOrAppend(req.Index)); err != nil {
			return err
		}
		return appendPaths(t, resp, nodes...)
	})
}

// HandleDrop handles POST /v1/tagfilter/filters/:name/drop.
//
// Description:
//
//	A request with Text inserts one leaf per line. Otherwise Data is
//	dispatched on MimeType: a path payload moves nodes within the filter.
func (h *Handlers) HandleDrop(c *gin.Context) {
	logger := h.requestLogger(c, "HandleDrop")
	var req DropRequest
	if !h.bind(c, logger, &req) {
		return
	}
	h.mutate(c, logger, func(t *tagfilter.Tree, resp *MutationResponse) error {
		target, err := resolvePath(t, req.Target)
		if err != nil {
			return err
		}
		index := indexOrAppend(req.Index)
		if req.Text != "" || (req.MimeType == tagfilter.MIMEText && req.Data == nil) {
			if err := validation.ValidateTags(tagfilter.ParseTextPayload(req.Text)); err != nil {
				return err
			}
			leaves, err := t.DropText(req.Text, target, index)
			if err != nil {
				return err
			}
			return appendPaths(t, resp, leaves...)
		}
		return t.Drop(req.MimeType, req.Data, target, index)
	})
}

// HandlePrune handles POST /v1/tagfilter/filters/:name/prune.
func (h *Handlers) HandlePrune(c *gin.Context) {
	logger := h.requestLogger(c, "HandlePrune")
	var req PruneRequest
	if !h.bind(c, logger, &req) {
		return
	}
	if err := validation.ValidateTags(req.Tags); err != nil {
		h.fail(c, logger, err)
		return
	}
	policy := tagfilter.PruneEmpty
	if req.KeepEmpty {
		policy = tagfilter.KeepEmpty
	}
	h.mutate(c, logger, func(t *tagfilter.Tree, resp *MutationResponse) error {
		removed, err := t.FilterTags(tagfilter.NewTagSet(req.Tags...), policy)
		resp.Removed = removed
		return err
	})
}

// =============================================================================
// Persistence endpoints
// =============================================================================

// HandleSave handles POST /v1/tagfilter/filters/:name/save.
func (h *Handlers) HandleSave(c *gin.Context) {
	logger := h.requestLogger(c, "HandleSave")
	sess, ok := h.session(c, logger, false)
	if !ok {
		return
	}
	info, err := h.svc.Save(c.Request.Context(), sess)
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, SaveResponse{Info: info})
}

// HandleReload handles POST /v1/tagfilter/filters/:name/reload.
//
// Response:
//
//	200 OK: FilterResponse
//	404 Not Found: Not stored
//	409 Conflict: Unsaved edits and force not set
func (h *Handlers) HandleReload(c *gin.Context) {
	logger := h.requestLogger(c, "HandleReload")
	var req ReloadRequest
	if c.Request.ContentLength > 0 && !h.bind(c, logger, &req) {
		return
	}
	sess, ok := h.session(c, logger, false)
	if !ok {
		return
	}
	if _, err := h.svc.Reload(c.Request.Context(), sess.Name, req.Force); err != nil {
		h.fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, sess.State())
}

// HandleClose handles DELETE /v1/tagfilter/filters/:name/session.
func (h *Handlers) HandleClose(c *gin.Context) {
	if !h.svc.Close(c.Param("name")) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no open session", Code: "NOT_FOUND"})
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleDelete handles DELETE /v1/tagfilter/filters/:name.
func (h *Handlers) HandleDelete(c *gin.Context) {
	logger := h.requestLogger(c, "HandleDelete")
	if err := h.svc.Delete(c.Request.Context(), c.Param("name")); err != nil {
		h.fail(c, logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handlers) requestLogger(c *gin.Context, handler string) *slog.Logger {
	logger := h.logger.With("request_id", getOrCreateRequestID(c), "handler", handler,
		"filter", c.Param("name"))
	if traceID := telemetry.TraceID(c.Request.Context()); traceID != "" {
		logger = logger.With("trace_id", traceID)
	}
	if user := authUser(c); user != "" {
		logger = logger.With("user", user)
	}
	return logger
}

func (h *Handlers) bind(c *gin.Context, logger *slog.Logger, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body: " + err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return false
	}
	return true
}

func (h *Handlers) session(c *gin.Context, logger *slog.Logger, create bool) (*Session, bool) {
	sess, err := h.svc.Session(c.Request.Context(), c.Param("name"), create)
	if err != nil {
		h.fail(c, logger, err)
		return nil, false
	}
	return sess, true
}

// mutate opens (or creates) the session and applies fn under its lock.
func (h *Handlers) mutate(c *gin.Context, logger *slog.Logger, fn func(*tagfilter.Tree, *MutationResponse) error) {
	sess, ok := h.session(c, logger, true)
	if !ok {
		return
	}
	var resp MutationResponse
	if err := sess.Do(true, func(t *tagfilter.Tree) error { return fn(t, &resp) }); err != nil {
		h.fail(c, logger, err)
		return
	}
	resp.Filter = sess.State()
	logger.Debug("Filter edited", "expression", resp.Filter.Expression)
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) fail(c *gin.Context, logger *slog.Logger, err error) {
	status, resp := newErrorResponse(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "error", err)
	} else {
		logger.Info("Request rejected", "code", resp.Code, "error", err)
	}
	c.JSON(status, resp)
}

func resolvePath(t *tagfilter.Tree, s string) (*tagfilter.Node, error) {
	p, err := tagfilter.ParsePath(s)
	if err != nil {
		return nil, err
	}
	return t.Resolve(p)
}

func resolvePaths(t *tagfilter.Tree, ss []string) ([]*tagfilter.Node, error) {
	paths := make([]tagfilter.Path, len(ss))
	for i, s := range ss {
		p, err := tagfilter.ParsePath(s)
		if err != nil {
			return nil, err
		}
		paths[i] = p
	}
	return t.ResolveAll(paths)
}

func appendPaths(t *tagfilter.Tree, resp *MutationResponse, nodes ...*tagfilter.Node) error {
	for _, n := range nodes {
		p, err := t.PathOf(n)
		if err != nil {
			return fmt.Errorf("locate result: %w", err)
		}
		resp.Paths = append(resp.Paths, p.String())
	}
	return nil
}

func indexOrAppend(index *int) int {
	if index == nil {
		return -1
	}
	return *index
}

func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
