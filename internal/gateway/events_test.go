// ABOUTME: Tests for push-event parsing and stream-kind classification.
// ABOUTME: Covers payload shapes, unknown names, malformed frames, terminal detection.

package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pushFrame(t *testing.T, event string, payload string) *frame {
	t.Helper()
	return &frame{Event: event, Payload: json.RawMessage(payload)}
}

func TestParsePushEvent_AssistantDelta(t *testing.T) {
	f := pushFrame(t, "agent", `{"runId":"r1","stream":"assistant","data":{"delta":"Hel"}}`)

	ev, err := parsePushEvent(f)
	require.NoError(t, err)
	require.NotNil(t, ev)

	assert.Equal(t, "r1", ev.RunID)
	assert.Equal(t, StreamAssistant, ev.Stream)
	assert.Equal(t, "Hel", ev.Data.Delta)
	assert.False(t, ev.Terminal())
}

func TestParsePushEvent_LifecycleEnd(t *testing.T) {
	f := pushFrame(t, "agent", `{
		"runId": "r1",
		"stream": "lifecycle",
		"data": {
			"phase": "end",
			"content": "Hello",
			"stopReason": "end_turn",
			"usage": {"inputTokens": 12, "outputTokens": 34}
		}
	}`)

	ev, err := parsePushEvent(f)
	require.NoError(t, err)
	require.NotNil(t, ev)

	assert.Equal(t, StreamLifecycle, ev.Stream)
	assert.Equal(t, PhaseEnd, ev.Data.Phase)
	assert.Equal(t, "Hello", ev.Data.Content)
	assert.Equal(t, "end_turn", ev.Data.StopReason)
	require.NotNil(t, ev.Data.Usage)
	assert.Equal(t, 12, ev.Data.Usage.InputTokens)
	assert.Equal(t, 34, ev.Data.Usage.OutputTokens)
	assert.True(t, ev.Terminal())
}

func TestParsePushEvent_LifecycleError(t *testing.T) {
	f := pushFrame(t, "agent", `{"runId":"r1","stream":"lifecycle","data":{"phase":"error","error":"boom"}}`)

	ev, err := parsePushEvent(f)
	require.NoError(t, err)

	assert.Equal(t, "boom", ev.Data.Error)
	assert.True(t, ev.Terminal())
}

func TestParsePushEvent_ToolCall(t *testing.T) {
	f := pushFrame(t, "agent", `{"runId":"r1","stream":"tool","data":{"name":"web_search","args":{"query":"go"}}}`)

	ev, err := parsePushEvent(f)
	require.NoError(t, err)

	assert.Equal(t, StreamTool, ev.Stream)
	assert.Equal(t, "web_search", ev.Data.Name)
	assert.JSONEq(t, `{"query":"go"}`, string(ev.Data.Args))
}

func TestParsePushEvent_UnknownStreamKind(t *testing.T) {
	f := pushFrame(t, "agent", `{"runId":"r1","stream":"telemetry","data":{}}`)

	ev, err := parsePushEvent(f)
	require.NoError(t, err)

	assert.Equal(t, StreamUnknown, ev.Stream)
	assert.False(t, ev.Terminal())
}

func TestParsePushEvent_UnrecognizedEventNameIgnored(t *testing.T) {
	f := pushFrame(t, "tick", `{"seq":42}`)

	ev, err := parsePushEvent(f)
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestParsePushEvent_MalformedPayload(t *testing.T) {
	f := pushFrame(t, "agent", `{not json`)

	_, err := parsePushEvent(f)
	assert.Error(t, err)
}

func TestPushEvent_TerminalKinds(t *testing.T) {
	tests := []struct {
		name     string
		event    PushEvent
		terminal bool
	}{
		{"done stream", PushEvent{Stream: StreamDone}, true},
		{"error stream", PushEvent{Stream: StreamError}, true},
		{"lifecycle start", PushEvent{Stream: StreamLifecycle, Data: EventData{Phase: PhaseStart}}, false},
		{"lifecycle progress", PushEvent{Stream: StreamLifecycle, Data: EventData{Phase: PhaseProgress}}, false},
		{"lifecycle end", PushEvent{Stream: StreamLifecycle, Data: EventData{Phase: PhaseEnd}}, true},
		{"lifecycle error", PushEvent{Stream: StreamLifecycle, Data: EventData{Phase: PhaseError}}, true},
		{"assistant", PushEvent{Stream: StreamAssistant}, false},
		{"thinking", PushEvent{Stream: StreamThinking}, false},
		{"unknown", PushEvent{Stream: StreamUnknown}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.event.Terminal())
		})
	}
}
