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
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/tagfilter/services/tagfilter/events"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	// streamQueue bounds the events queued for one slow client. Events
	// beyond it are dropped; the client can resync with ?since=.
	streamQueue = 256

	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
	wsPongWait   = wsPingPeriod + 10*time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 16 * 1024,
}

// HandleEvents handles GET /v1/tagfilter/filters/:name/events.
//
// Description:
//
//	Upgrades to a WebSocket and streams the filter's events as JSON, one
//	events.Event per message, in sequence order. Messages from the client
//	are ignored.
//
// Query Parameters:
//
//	since - Replay buffered events with a higher sequence number first.
//	types - Comma-separated event types to receive (default: all).
func (h *Handlers) HandleEvents(c *gin.Context) {
	logger := h.requestLogger(c, "HandleEvents")
	sess, ok := h.session(c, logger, false)
	if !ok {
		return
	}

	var since uint64
	replay := false
	if raw := c.Query("since"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "since must be an unsigned integer", Code: "INVALID_REQUEST"})
			return
		}
		since, replay = v, true
	}
	var types []events.Type
	if raw := c.Query("types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, events.Type(t))
			}
		}
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("failed to upgrade the websocket", "error", err)
		return
	}
	defer ws.Close()

	queue := make(chan events.Event, streamQueue)
	emitter := sess.Emitter()
	subID := emitter.Subscribe(func(e *events.Event) {
		select {
		case queue <- *e:
		default:
			logger.Warn("Event stream client too slow, dropping event", "sequence", e.Sequence)
		}
	}, types...)
	defer emitter.Unsubscribe(subID)
	logger.Info("Event stream client connected", "subscription", subID)

	// Replay after subscribing so no event falls between the two; the
	// sequence check below drops the overlap.
	var last uint64
	if replay {
		for _, e := range emitter.GetBufferSince(since) {
			if !wanted(types, e.Type) {
				continue
			}
			if err := writeEvent(ws, e); err != nil {
				return
			}
			last = e.Sequence
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ws.SetReadLimit(4096)
		_ = ws.SetReadDeadline(time.Now().Add(wsPongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-done:
			logger.Info("Event stream client disconnected")
			return
		case <-c.Request.Context().Done():
			return
		case e := <-queue:
			if e.Sequence <= last {
				continue
			}
			if err := writeEvent(ws, e); err != nil {
				logger.Warn("Failed to write event", "error", err)
				return
			}
			last = e.Sequence
		case <-ping.C:
			_ = ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeEvent(ws *websocket.Conn, e events.Event) error {
	_ = ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return ws.WriteJSON(e)
}

func wanted(types []events.Type, t events.Type) bool {
	if len(types) == 0 {
		return true
	}
	for _, want := range types {
		if want == t {
			return true
		}
	}
	return false
}
