// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Components take a *zap.Logger obtained from Component and add their own
// fields; the level can be changed at runtime.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Server starting", zap.String("addr", "127.0.0.1:9333"))
//	manager := browser.NewManager(driver, cfg, logger.Component("browser"), metrics)
package logging
