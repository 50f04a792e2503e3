// Package http provides the request/response surface of the service.
//
// Endpoints:
//   - GET /: session status, or a WebSocket upgrade when requested
//   - POST /: run one command, body {"action": ..., ...params}
//   - GET /health: liveness and counters
//   - GET /metrics: Prometheus exposition
//   - GET /metrics/json: counters as JSON
//
// Example Usage:
//
//	handlers := http.NewHandlers(dispatcher, manager, wsHandler.HandleConnection, port, metrics, logger)
//	router.GET("/", handlers.Root)
//	router.POST("/", handlers.Command)
package http
