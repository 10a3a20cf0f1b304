// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for store operations.
var (
	tracer = otel.Tracer("tagfilter.store")
	meter  = otel.Meter("tagfilter.store")
)

// Metrics for store operations.
var (
	opLatency metric.Float64Histogram
	opTotal   metric.Int64Counter
	opBytes   metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		opLatency, err = meter.Float64Histogram(
			"tagfilter_store_duration_seconds",
			metric.WithDescription("Duration of tag filter store operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		opTotal, err = meter.Int64Counter(
			"tagfilter_store_operations_total",
			metric.WithDescription("Total number of tag filter store operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		opBytes, err = meter.Int64Histogram(
			"tagfilter_store_value_bytes",
			metric.WithDescription("Encoded size of filters read or written"),
			metric.WithUnit("By"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startSpan creates a span for a store operation on one filter.
func startSpan(ctx context.Context, op, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Store."+op,
		trace.WithAttributes(
			attribute.String("tagfilter.name", name),
		),
	)
}

// finishSpan records the outcome on span and ends it.
func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// recordMetrics records one store operation.
func recordMetrics(ctx context.Context, op string, start time.Time, size int, err error) {
	if initErr := initMetrics(); initErr != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.Bool("success", err == nil),
	)
	opLatency.Record(ctx, time.Since(start).Seconds(), attrs)
	opTotal.Add(ctx, 1, attrs)
	if size > 0 {
		opBytes.Record(ctx, int64(size), metric.WithAttributes(attribute.String("op", op)))
	}
}

func attributeCount(n int) attribute.KeyValue {
	return attribute.Int("tagfilter.count", n)
}
