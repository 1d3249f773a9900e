// ABOUTME: Wire envelopes for the gateway WebSocket protocol.
// ABOUTME: Defines request, response, and push frames plus the remote error shape.

package gateway

import (
	"encoding/json"
	"fmt"
)

// frame is the single envelope exchanged with the gateway. Outbound
// requests carry {id, method, params}; inbound responses carry
// {id, result|error}; inbound push frames carry {event, payload}.
type frame struct {
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *wireError      `json:"error,omitempty"`
	Event   string          `json:"event,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// wireError is the error object inside a response frame.
type wireError struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
}

// ProtocolError reports a semantically invalid request or a malformed
// frame. When correlatable it is surfaced to the pending request that
// triggered it; otherwise the frame is logged and dropped.
type ProtocolError struct {
	Method  string
	Code    int
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("gateway: %s: %s (code %d)", e.Method, e.Message, e.Code)
	}
	return fmt.Sprintf("gateway: protocol error: %s (code %d)", e.Message, e.Code)
}
