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
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/tagfilter/pkg/extensions"
)

const authInfoKey = "tagfilter.auth"

// access authenticates the request, authorizes action on the :name filter
// and, for writes and deletes, records an audit event once the handler has
// responded.
func (h *Handlers) access(action extensions.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		filter := c.Param("name")
		logger := h.logger.With("request_id", getOrCreateRequestID(c), "filter", filter, "action", string(action))

		info, err := h.ext.AuthProvider.Validate(ctx, bearerToken(c))
		if err != nil {
			h.audit(c, logger, extensions.AuditEvent{
				EventType: "auth.failed",
				UserID:    "anonymous",
				Action:    action,
				Filter:    filter,
				Outcome:   "denied",
			})
			c.Header("WWW-Authenticate", `Bearer realm="tagfilter"`)
			h.abort(c, logger, err)
			return
		}
		err = h.ext.AuthzProvider.Authorize(ctx, extensions.AuthzRequest{User: info, Action: action, Filter: filter})
		if err != nil {
			h.audit(c, logger, extensions.AuditEvent{
				EventType: "authz.denied",
				UserID:    info.UserID,
				Action:    action,
				Filter:    filter,
				Outcome:   "denied",
			})
			h.abort(c, logger, err)
			return
		}

		c.Set(authInfoKey, info)
		c.Next()

		if action == extensions.ActionRead {
			return
		}
		eventType := "filter.edit"
		if action == extensions.ActionDelete {
			eventType = "filter.delete"
		}
		outcome := "success"
		if c.Writer.Status() >= http.StatusBadRequest {
			outcome = "failure"
		}
		h.audit(c, logger, extensions.AuditEvent{
			EventType: eventType,
			UserID:    info.UserID,
			Action:    action,
			Filter:    filter,
			Outcome:   outcome,
			Metadata: map[string]any{
				"route":      c.FullPath(),
				"status":     c.Writer.Status(),
				"request_id": c.Writer.Header().Get("X-Request-ID"),
			},
		})
	}
}

func (h *Handlers) audit(c *gin.Context, logger *slog.Logger, event extensions.AuditEvent) {
	if err := h.ext.AuditLogger.Log(c.Request.Context(), event); err != nil {
		logger.Warn("Audit log failed", "event_type", event.EventType, "error", err)
	}
}

func (h *Handlers) abort(c *gin.Context, logger *slog.Logger, err error) {
	status, resp := newErrorResponse(err)
	logger.Info("Request denied", "code", resp.Code, "error", err)
	c.AbortWithStatusJSON(status, resp)
}

// bearerToken returns the Authorization bearer token, falling back to the
// access_token query parameter for WebSocket clients that cannot set
// headers.
func bearerToken(c *gin.Context) string {
	const prefix = "bearer "
	if h := c.GetHeader("Authorization"); len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return c.Query("access_token")
}

// authUser returns the authenticated user ID, or "" outside access.
func authUser(c *gin.Context) string {
	v, ok := c.Get(authInfoKey)
	if !ok {
		return ""
	}
	if info, ok := v.(*extensions.AuthInfo); ok {
		return info.UserID
	}
	return ""
}
