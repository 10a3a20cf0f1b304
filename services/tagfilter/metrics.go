// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tagfilter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for Tree Operations
// =============================================================================

var (
	// operationsTotal counts engine operations.
	// Labels: op (insert, remove, merge, negate, move, drop, filter, reset),
	// result (applied, rejected)
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tagfilter",
		Subsystem: "tree",
		Name:      "operations_total",
		Help:      "Total tag filter tree operations",
	}, []string{"op", "result"})

	// rejectionsTotal counts rejected operations by reason.
	// Labels: op, reason (INVALID_INDEX, DUPLICATE_TAG, ...)
	rejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tagfilter",
		Subsystem: "tree",
		Name:      "rejections_total",
		Help:      "Total rejected tag filter tree operations by reason",
	}, []string{"op", "reason"})
)

func recordOperation(op string, err error) {
	if err == nil {
		operationsTotal.WithLabelValues(op, "applied").Inc()
		return
	}
	operationsTotal.WithLabelValues(op, "rejected").Inc()
	rejectionsTotal.WithLabelValues(op, Reason(err)).Inc()
}
