// Copyright (C) 2025 Typefleet Authors (dev@typefleet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for Session Orchestration
// =============================================================================

var (
	// sessionsStarted counts sessions by the topology selected for them.
	// Labels: topology
	sessionsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "typefleet",
		Subsystem: "session",
		Name:      "started_total",
		Help:      "Total sessions started by selected topology",
	}, []string{"topology"})

	// processSpawns counts backend process spawn attempts.
	// Labels: role, outcome (ok, error)
	processSpawns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "typefleet",
		Subsystem: "session",
		Name:      "process_spawns_total",
		Help:      "Total backend process spawn attempts by role and outcome",
	}, []string{"role", "outcome"})

	// spawnDuration measures time from contract build to live process.
	// Labels: role
	spawnDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "typefleet",
		Subsystem: "session",
		Name:      "spawn_duration_seconds",
		Help:      "Backend process spawn latency in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"role"})
)
