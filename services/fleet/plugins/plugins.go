// Copyright (C) 2025 Typefleet Authors (dev@typefleet.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package plugins exposes the registry of backend plugins consulted when
// building a process startup contract.
package plugins

import "github.com/typefleet/typefleet/services/fleet/config"

// Plugin is one registered backend plugin.
type Plugin struct {
	// Name is the module name the backend loads.
	Name string

	// Path is the on-disk install location, used as a probe location.
	Path string

	// EnableForWorkspaceVersions opts the plugin into non-bundled engines.
	EnableForWorkspaceVersions bool
}

// Registry yields the ordered list of registered plugins. Order is the
// load order handed to the backend.
type Registry interface {
	Plugins() []Plugin
}

// StaticRegistry is a fixed, in-memory Registry.
type StaticRegistry struct {
	list []Plugin
}

// NewStaticRegistry builds a registry over a fixed plugin list.
func NewStaticRegistry(list []Plugin) *StaticRegistry {
	return &StaticRegistry{list: list}
}

// FromConfig builds a registry from the configured plugin entries.
func FromConfig(entries []config.PluginConfig) *StaticRegistry {
	list := make([]Plugin, 0, len(entries))
	for _, e := range entries {
		list = append(list, Plugin{
			Name:                       e.Name,
			Path:                       e.Path,
			EnableForWorkspaceVersions: e.EnableForWorkspaceVersions,
		})
	}
	return &StaticRegistry{list: list}
}

// Plugins returns the registered plugins in load order.
func (r *StaticRegistry) Plugins() []Plugin {
	out := make([]Plugin, len(r.list))
	copy(out, r.list)
	return out
}
