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
	"log/slog"
	"time"
)

// AuditEvent records one access to a filter.
//
// Event types:
//   - "filter.edit": a write action completed (Outcome success or failure)
//   - "filter.delete": a delete action completed
//   - "auth.failed": a request carried no valid token
//   - "authz.denied": an authenticated user was refused
//
// Example:
//
//	event := AuditEvent{
//	    EventType: "filter.edit",
//	    UserID:    info.UserID,
//	    Action:    ActionWrite,
//	    Filter:    "inbox",
//	    Outcome:   "success",
//	    Metadata:  map[string]any{"route": "/v1/tagfilter/filters/:name/move"},
//	}
type AuditEvent struct {
	// EventType categorizes the event, see above.
	EventType string

	// Timestamp is when the event occurred (UTC). Set by Log when zero.
	Timestamp time.Time

	// UserID identifies who acted, "anonymous" when unauthenticated.
	UserID string

	// Action is the attempted action.
	Action Action

	// Filter names the filter involved, if any.
	Filter string

	// Outcome is "success", "failure" or "denied".
	Outcome string

	// Metadata holds request details such as route, status and request_id.
	Metadata map[string]any
}

// AuditLogger records audit events.
type AuditLogger interface {
	// Log records an event. Implementations set Timestamp if zero.
	Log(ctx context.Context, event AuditEvent) error

	// Flush persists buffered events. Call before shutdown.
	Flush(ctx context.Context) error
}

// NopAuditLogger discards all events.
type NopAuditLogger struct{}

// Log discards the event.
func (l *NopAuditLogger) Log(_ context.Context, _ AuditEvent) error {
	return nil
}

// Flush is a no-op.
func (l *NopAuditLogger) Flush(_ context.Context) error {
	return nil
}

// SlogAuditLogger writes each event as one structured log record at Info,
// so audit lines land in the regular log files.
type SlogAuditLogger struct {
	logger *slog.Logger
}

// NewSlogAuditLogger creates an audit logger writing to logger.
func NewSlogAuditLogger(logger *slog.Logger) *SlogAuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAuditLogger{logger: logger}
}

// Log writes the event.
func (l *SlogAuditLogger) Log(ctx context.Context, event AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	attrs := []any{
		slog.String("event_type", event.EventType),
		slog.Time("at", event.Timestamp),
		slog.String("user", event.UserID),
		slog.String("action", string(event.Action)),
		slog.String("filter", event.Filter),
		slog.String("outcome", event.Outcome),
	}
	if len(event.Metadata) > 0 {
		meta := make([]any, 0, len(event.Metadata))
		for k, v := range event.Metadata {
			meta = append(meta, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("meta", meta...))
	}
	l.logger.InfoContext(ctx, "audit", slog.Group("audit", attrs...))
	return nil
}

// Flush is a no-op; records are written synchronously.
func (l *SlogAuditLogger) Flush(_ context.Context) error {
	return nil
}

// Compile-time interface compliance checks.
var (
	_ AuditLogger = (*NopAuditLogger)(nil)
	_ AuditLogger = (*SlogAuditLogger)(nil)
)
