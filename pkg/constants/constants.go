// Package constants holds names and defaults shared across sitebuild packages.
package constants

import "time"

// CLIName is the executable name used in help text and messages.
const CLIName = "sitebuild"

// DefaultConfigFile is read from the working directory when --config is not given.
const DefaultConfigFile = "sitebuild.yml"

// DefaultTask runs when the CLI is invoked without a task name.
const DefaultTask = "default"

// DefaultDebounce coalesces bursts of filesystem events into one run.
const DefaultDebounce = 200 * time.Millisecond

// DefaultServeAddr is where the live-reload dev server listens.
const DefaultServeAddr = "localhost:3000"

// DefaultBrowsers is the browserslist query handed to the vendor-prefix command.
const DefaultBrowsers = "last 2 versions"

// Environment overrides.
const (
	EnvDebounceMS = "SITEBUILD_DEBOUNCE_MS"
	EnvServeAddr  = "SITEBUILD_ADDR"
)

// Paths reserved by the dev server.
const (
	LiveReloadSocketPath = "/__livereload"
	LiveReloadScriptPath = "/__livereload.js"
	MetricsPath          = "/__metrics"
)
