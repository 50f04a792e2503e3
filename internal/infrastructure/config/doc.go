// Package config loads service configuration.
//
// Sources, lowest precedence first: built-in defaults, an optional YAML or
// TOML file (CONFIG_FILE), environment variables, then command line flags
// applied by the caller.
//
// Configuration Sections:
//   - Server: listen host and port
//   - Browser: binary, profile dir, headless mode, viewport, action limits
//   - Stream: screencast encoding and per-viewer queue depth
//   - Logging: level and output format
//   - RateLimit: per-IP limit on the command endpoint
//
// Example Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//		return err
//	}
//	fmt.Printf("listening on %s\n", cfg.Addr())
//
// Environment Variables:
//   - BROWSERD_PORT, BROWSERD_HOST, CONFIG_FILE
//   - BROWSER_BIN, BROWSER_PROFILE_DIR, BROWSER_HEADLESS, BROWSER_LAUNCH_ON_START
//   - BROWSER_VIEWPORT_WIDTH, BROWSER_VIEWPORT_HEIGHT, BROWSER_NAVIGATION_TIMEOUT
//   - BROWSER_CONTENT_MAX_LENGTH
//   - STREAM_FORMAT, STREAM_QUALITY, STREAM_MAX_WIDTH, STREAM_MAX_HEIGHT, STREAM_CLIENT_BUFFER
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
