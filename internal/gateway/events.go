// ABOUTME: Push-event parsing and stream-kind classification.
// ABOUTME: Converts inbound agent frames into PushEvents consumed by subscribers.

package gateway

import (
	"encoding/json"
	"fmt"
)

// agentEventName is the only push-event name this client recognizes.
// Frames with any other event name are ignored so that new server-side
// event types never break the reader loop.
const agentEventName = "agent"

// StreamKind classifies a push event by the "stream" field of its payload.
type StreamKind string

const (
	StreamAssistant StreamKind = "assistant"
	StreamLifecycle StreamKind = "lifecycle"
	StreamTool      StreamKind = "tool"
	StreamContent   StreamKind = "content"
	StreamThinking  StreamKind = "thinking"
	StreamDone      StreamKind = "done"
	StreamError     StreamKind = "error"
	StreamUnknown   StreamKind = "unknown"
)

// Lifecycle phases carried in data.phase of a lifecycle event.
const (
	PhaseStart    = "start"
	PhaseProgress = "progress"
	PhaseEnd      = "end"
	PhaseError    = "error"
)

// TokenUsage is the token accounting reported on lifecycle end.
type TokenUsage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// EventData is the stream-dependent payload of a push event. Fields not
// applicable to the event's stream kind are zero.
type EventData struct {
	// Delta is an incremental text fragment (assistant, thinking).
	Delta string `json:"delta,omitempty"`

	// Phase is the lifecycle phase (lifecycle).
	Phase string `json:"phase,omitempty"`

	// Content is the full accumulated content, optionally present on
	// lifecycle end and content events.
	Content string `json:"content,omitempty"`

	// Error is the agent-reported error message (lifecycle error, error).
	Error string `json:"error,omitempty"`

	// Name and Args describe a tool invocation (tool).
	Name string          `json:"name,omitempty"`
	Args json.RawMessage `json:"args,omitempty"`

	// Usage and StopReason are reported on lifecycle end.
	Usage      *TokenUsage `json:"usage,omitempty"`
	StopReason string      `json:"stopReason,omitempty"`
}

// PushEvent is one unsolicited frame from the gateway. Events are never
// persisted; after publication they are shared read-only between
// subscribers.
type PushEvent struct {
	Event  string
	RunID  string
	Stream StreamKind
	Data   EventData
}

// Terminal reports whether the event ends its run.
func (e *PushEvent) Terminal() bool {
	switch e.Stream {
	case StreamDone, StreamError:
		return true
	case StreamLifecycle:
		return e.Data.Phase == PhaseEnd || e.Data.Phase == PhaseError
	}
	return false
}

// pushPayload is the wire shape of an agent push frame's payload.
type pushPayload struct {
	RunID  string    `json:"runId"`
	Stream string    `json:"stream"`
	Data   EventData `json:"data"`
}

// parsePushEvent converts a push frame into a PushEvent. It returns
// (nil, nil) for event names this client does not recognize, and an
// error for frames whose payload cannot be decoded.
func parsePushEvent(f *frame) (*PushEvent, error) {
	if f.Event != agentEventName {
		return nil, nil
	}

	var p pushPayload
	if err := json.Unmarshal(f.Payload, &p); err != nil {
		return nil, fmt.Errorf("decoding %s payload: %w", f.Event, err)
	}

	kind := StreamKind(p.Stream)
	switch kind {
	case StreamAssistant, StreamLifecycle, StreamTool, StreamContent,
		StreamThinking, StreamDone, StreamError:
	default:
		kind = StreamUnknown
	}

	return &PushEvent{
		Event:  f.Event,
		RunID:  p.RunID,
		Stream: kind,
		Data:   p.Data,
	}, nil
}
