// Package middleware provides the HTTP middleware of the command endpoint.
//
//   - CORS: any origin by default, configurable
//   - RateLimit: per-IP token bucket, idle clients are forgotten
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.POST("/", middleware.RateLimit(cfg), handler.Command)
package middleware
