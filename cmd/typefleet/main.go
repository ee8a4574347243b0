// Copyright (C) 2025 Typefleet Authors (dev@typefleet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command typefleet runs the language-server fleet daemon.
//
// The daemon spawns and supervises a fleet of backend analysis server
// processes for one client session, routes requests between a syntax
// process and a semantic process, and exposes a local admin surface
// for health, session status, and Prometheus metrics.
//
// Usage:
//
//	typefleet serve
//	typefleet serve --admin-addr 127.0.0.1:7335
//	typefleet version
//
// Configuration lives at ~/.typefleet/typefleet.yaml and is created
// with defaults on first run.
package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/typefleet/typefleet/cmd/typefleet/config"
)

func main() {
	// Execute the root command. Cobra handles parsing the arguments.
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if err := config.Load(); err != nil {
			log.Fatalf("Error loading configuration: %v", err)
		}
	}
}
