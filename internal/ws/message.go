package ws

import (
	"encoding/base64"

	"github.com/GriffinCanCode/AgentOS/browserd/internal/browser"
)

// Message types pushed to viewers.
const (
	TypeFrame  = "frame"
	TypeState  = "state"
	TypeClosed = "closed"
	TypeResult = "result"
)

// FrameMessage carries one base64 encoded screencast image.
type FrameMessage struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// StateMessage carries the session snapshot.
type StateMessage struct {
	Type    string `json:"type"`
	URL     string `json:"url"`
	Title   string `json:"title"`
	Running bool   `json:"running"`
}

// ClosedMessage announces that the browser was closed.
type ClosedMessage struct {
	Type string `json:"type"`
}

func frameMessage(data []byte) FrameMessage {
	return FrameMessage{Type: TypeFrame, Data: base64.StdEncoding.EncodeToString(data)}
}

func stateMessage(s browser.Snapshot) StateMessage {
	return StateMessage{Type: TypeState, URL: s.URL, Title: s.Title, Running: s.Running}
}

// resultMessage wraps a dispatch result for the duplex channel. Result
// fields never override type and id.
func resultMessage(reqID string, res map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(res)+2)
	for k, v := range res {
		out[k] = v
	}
	out["type"] = TypeResult
	out["id"] = reqID
	return out
}
