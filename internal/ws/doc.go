// Package ws provides the viewer hub and the duplex WebSocket channel.
//
// Every connected viewer receives the live screencast and session state.
// Any viewer may also send commands, which run one at a time per
// connection and are answered with a result carrying the command id.
//
// Message Types (Client → Server):
//   - {"id": ..., "action": "navigate", "url": "..."}: any dispatch action
//
// Message Types (Server → Client):
//   - frame: base64 screencast image
//   - state: url, title and running flag
//   - closed: the browser was closed
//   - result: outcome of a command, {"ok": true, ...} or {"error": "..."}
//
// A viewer that cannot keep up loses broadcasts, never results.
//
// Example Usage:
//
//	hub := ws.NewHub(logger, metrics)
//	hub.SetSource(manager)
//	manager.SetPublisher(hub)
//	handler := ws.NewHandler(hub, dispatcher, ws.Options{}, logger, metrics)
//	router.GET("/stream", handler.HandleConnection)
package ws
