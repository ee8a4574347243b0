// Copyright (C) 2025 Typefleet Authors (dev@typefleet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/typefleet/typefleet/services/fleet/version"
)

// --- Global Command Variables ---
var (
	serverPath    string // CLI override for fleet.server_path
	engineVersion string // CLI override for fleet.engine_version
	adminAddr     string // CLI override for fleet.admin_addr
	syntaxMode    string // CLI override for fleet.use_syntax_server

	rootCmd = &cobra.Command{
		Use:   "typefleet",
		Short: "A daemon that manages a fleet of language analysis server processes",
		Long: `Typefleet spawns and supervises backend analysis servers for one
				client session: a fast syntax process for latency-sensitive
				requests and a full semantic process for everything else,
				with optional dedicated diagnostics.`,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the fleet daemon and its admin endpoint",
		RunE:  runServe, // Defined in cmd_serve.go
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the daemon and bundled engine versions",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("typefleet %s (bundled engine %s)\n", daemonVersion, version.Bundled)
		},
	}
)

// daemonVersion is stamped at build time via -ldflags.
var daemonVersion = "dev"

// init runs when the Go program starts
func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serverPath, "server-path", "",
		"Backend server entry point (overrides the config file)")
	serveCmd.Flags().StringVar(&engineVersion, "engine-version", "",
		"Pin the backend engine version (empty uses the bundled engine)")
	serveCmd.Flags().StringVar(&adminAddr, "admin-addr", "",
		"Listen address for the admin/status endpoint")
	serveCmd.Flags().StringVar(&syntaxMode, "use-syntax-server", "",
		"Syntax server mode: auto, always, or never")

	rootCmd.AddCommand(versionCmd)
}
