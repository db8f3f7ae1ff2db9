// Package config loads, validates, and normalizes darkroom's TOML
// configuration.
//
// Load applies repository defaults, overlays the config file when present,
// expands home-relative paths, and validates that the daemon can actually
// start: a missing bot token, an unknown default template, or a template
// pointing at a workflow file that does not exist are all startup-fatal.
package config
