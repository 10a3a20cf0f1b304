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
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/tagfilter/pkg/extensions"
)

// RegisterRoutes registers all tag filter routes with the router.
//
// Endpoints:
//
//	GET    /v1/tagfilter/health                - Health check
//	GET    /v1/tagfilter/metrics               - Prometheus metrics
//	GET    /v1/tagfilter/filters               - List stored and open filters
//	GET    /v1/tagfilter/filters/:name         - Current tree
//	DELETE /v1/tagfilter/filters/:name         - Delete the stored filter
//	GET    /v1/tagfilter/filters/:name/events  - WebSocket change stream
//	POST   /v1/tagfilter/filters/:name/insert  - Insert a leaf
//	POST   /v1/tagfilter/filters/:name/remove  - Remove sibling nodes
//	POST   /v1/tagfilter/filters/:name/merge   - Group siblings under AND/OR
//	POST   /v1/tagfilter/filters/:name/negate  - Toggle negation
//	POST   /v1/tagfilter/filters/:name/move    - Move nodes
//	POST   /v1/tagfilter/filters/:name/drag    - Build drag payloads
//	POST   /v1/tagfilter/filters/:name/drop    - Drop a payload or text
//	POST   /v1/tagfilter/filters/:name/prune   - Keep only allowed tags
//	POST   /v1/tagfilter/filters/:name/eval    - Evaluate against tags
//	POST   /v1/tagfilter/filters/:name/save    - Persist
//	POST   /v1/tagfilter/filters/:name/reload  - Discard edits, reload stored
//	DELETE /v1/tagfilter/filters/:name/session - Close without saving
//
// Everything except health and metrics passes the access middleware: the
// Authorization bearer token (or ?access_token=) is validated, the action
// (read, write or delete) is authorized and writes are audited.
//
// Example:
//
//	router := gin.New()
//	v1 := router.Group("/v1")
//	api.RegisterRoutes(v1, api.NewHandlers(svc))
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	read := handlers.access(extensions.ActionRead)
	write := handlers.access(extensions.ActionWrite)
	del := handlers.access(extensions.ActionDelete)

	tf := rg.Group("/tagfilter")
	{
		tf.GET("/health", handlers.HandleHealth)
		tf.GET("/metrics", gin.WrapH(promhttp.Handler()))
		tf.GET("/filters", read, handlers.HandleList)

		filter := tf.Group("/filters/:name")
		{
			filter.GET("", read, handlers.HandleGet)
			filter.DELETE("", del, handlers.HandleDelete)
			filter.GET("/events", read, handlers.HandleEvents)
			filter.POST("/insert", write, handlers.HandleInsert)
			filter.POST("/remove", write, handlers.HandleRemove)
			filter.POST("/merge", write, handlers.HandleMerge)
			filter.POST("/negate", write, handlers.HandleNegate)
			filter.POST("/move", write, handlers.HandleMove)
			filter.POST("/drag", read, handlers.HandleDrag)
			filter.POST("/drop", write, handlers.HandleDrop)
			filter.POST("/prune", write, handlers.HandlePrune)
			filter.POST("/eval", read, handlers.HandleEval)
			filter.POST("/save", write, handlers.HandleSave)
			filter.POST("/reload", write, handlers.HandleReload)
			filter.DELETE("/session", write, handlers.HandleClose)
		}
	}
}
