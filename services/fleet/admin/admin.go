// Copyright (C) 2025 Typefleet Authors (dev@typefleet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package admin serves the local status and metrics endpoints for a
// running fleet daemon.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/typefleet/typefleet/services/fleet/server"
	"github.com/typefleet/typefleet/services/fleet/session"
	"github.com/typefleet/typefleet/services/fleet/telemetry"
)

// Admin is the HTTP surface of the daemon: health, session status,
// and Prometheus metrics.
type Admin struct {
	session *session.Session
	srv     *http.Server
}

// New builds the admin server for the given session, listening on addr.
func New(addr string, sess *session.Session) *Admin {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	a := &Admin{session: sess}
	a.srv = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	router.GET("/healthz", a.healthz)
	if h := telemetry.MetricsHandler(); h != nil {
		router.GET("/metrics", gin.WrapH(h))
	}

	v1 := router.Group("/v1")
	{
		v1.GET("/session", a.sessionStatus)
	}

	return a
}

// Run serves until the listener fails or Shutdown is called.
func (a *Admin) Run() error {
	slog.Info("admin server listening", slog.String("addr", a.srv.Addr))
	if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (a *Admin) Shutdown(ctx context.Context) error {
	return a.srv.Shutdown(ctx)
}

func (a *Admin) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// processStatus describes one backend process in the session.
type processStatus struct {
	Role    string `json:"role"`
	PID     int    `json:"pid"`
	LogFile string `json:"log_file,omitempty"`
}

// sessionStatus reports the session topology and its live processes.
func (a *Admin) sessionStatus(c *gin.Context) {
	if a.session == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no session"})
		return
	}

	procs := a.session.Processes()
	out := make([]processStatus, 0, len(procs))
	for _, p := range procs {
		out = append(out, processStatus{
			Role:    p.Role().String(),
			PID:     p.PID(),
			LogFile: p.LogFile(),
		})
	}

	body := gin.H{
		"session":   a.session.ID(),
		"topology":  a.session.Topology().String(),
		"engine":    a.session.Version().String(),
		"processes": out,
	}
	if state, ok := routingState(a.session.Server()); ok {
		body["routing_state"] = state
	}

	c.JSON(http.StatusOK, body)
}

// routingState digs the syntax/semantic router out of the server
// composition, when one exists.
func routingState(root server.Server) (string, bool) {
	if root == nil {
		return "", false
	}
	if dr, ok := root.(*server.DiagnosticsRouter); ok {
		root = dr.Primary()
	}
	if sr, ok := root.(*server.SyntaxRouter); ok {
		return sr.State().String(), true
	}
	return "", false
}
