// Copyright (C) 2025 Typefleet Authors (dev@typefleet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package server

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for logical server operations.
var (
	tracer = otel.Tracer("typefleet.server")
	meter  = otel.Meter("typefleet.server")
)

// Instruments for request routing.
var (
	requestLatency metric.Float64Histogram
	requestTotal   metric.Int64Counter
	cancelsTotal   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		requestLatency, err = meter.Float64Histogram(
			"fleet_request_duration_seconds",
			metric.WithDescription("Duration of backend requests"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		requestTotal, err = meter.Int64Counter(
			"fleet_request_total",
			metric.WithDescription("Total backend requests by command and branch"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cancelsTotal, err = meter.Int64Counter(
			"fleet_cancellation_total",
			metric.WithDescription("Total best-effort cancellation signals"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startRequestSpan creates a span for one routed request.
func startRequestSpan(ctx context.Context, command, branch string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Server.Execute",
		trace.WithAttributes(
			attribute.String("fleet.command", command),
			attribute.String("fleet.branch", branch),
		),
	)
}

// recordRequest records latency and outcome for one routed request.
func recordRequest(ctx context.Context, command, branch string, duration time.Duration, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("command", command),
		attribute.String("branch", branch),
		attribute.Bool("success", success),
	)
	requestLatency.Record(ctx, duration.Seconds(), attrs)
	requestTotal.Add(ctx, 1, attrs)
}

// recordCancellation records one cancellation signal.
func recordCancellation(ctx context.Context, branch string) {
	if err := initMetrics(); err != nil {
		return
	}
	cancelsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("branch", branch),
	))
}
