// Package main is the entry point of browserd.
//
// browserd owns one persistent browser, streams its screen to every
// connected viewer and accepts remote-control commands over WebSocket and
// HTTP.
//
// Configuration:
//   - Defaults for local use
//   - YAML or TOML file (--config or CONFIG_FILE)
//   - Environment variables
//   - CLI flags (override everything else)
//
// Usage:
//
//	# Defaults: 127.0.0.1:9333, visible browser
//	./browserd
//
//	# Headless, launched immediately, development logs
//	./browserd --headless --launch --dev
//
// If another browserd already listens on the port, the new process logs
// that it is reusing it and exits with status 0.
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
