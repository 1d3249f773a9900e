// ABOUTME: Execution results and the accumulator that folds push events into them.
// ABOUTME: Agent-reported failures are data on the result, never Go errors.

package agent

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/2389/fold-client/internal/gateway"
)

// ToolCall records one tool invocation observed during a run, in
// arrival order.
type ToolCall struct {
	Name string
	Args json.RawMessage
}

// ExecutionResult is the immutable outcome of one agent run.
//
// Success is false when the agent itself reported an error; that is a
// normal business outcome carried in ErrorMessage, not a Go error.
// Infrastructure failures (connection, protocol, timeout) are returned
// as errors by Execute instead.
type ExecutionResult struct {
	Success      bool
	RunID        string
	Content      string
	Thinking     string
	ToolCalls    []ToolCall
	TokenUsage   *gateway.TokenUsage
	StopReason   string
	LatencyMs    int64
	ErrorMessage string
}

// runFilter scopes a shared event stream to a single run. Events that
// arrive before the run's id is known are tentatively accepted; once
// the id has been observed it is fixed, and events bearing a different
// id are excluded.
type runFilter struct {
	runID string
}

// accept learns the run id from the first event that carries one (when
// not already known) and reports whether the event belongs to the run.
func (f *runFilter) accept(ev *gateway.PushEvent) bool {
	if f.runID == "" && ev.RunID != "" {
		f.runID = ev.RunID
	}
	return ev.RunID == "" || ev.RunID == f.runID
}

// runAccumulator folds a run's accepted events into an ExecutionResult.
type runAccumulator struct {
	filter     runFilter
	content    strings.Builder
	thinking   strings.Builder
	sawDelta   bool
	toolCalls  []ToolCall
	usage      *gateway.TokenUsage
	stopReason string
	errMsg     string
	failed     bool
	done       bool
}

func newRunAccumulator(runID string) *runAccumulator {
	return &runAccumulator{filter: runFilter{runID: runID}}
}

// observe applies one event and reports whether the run reached a
// terminal condition.
func (r *runAccumulator) observe(ev *gateway.PushEvent) bool {
	if !r.filter.accept(ev) {
		return false
	}

	switch ev.Stream {
	case gateway.StreamAssistant:
		r.content.WriteString(ev.Data.Delta)
		r.sawDelta = true
	case gateway.StreamThinking:
		r.thinking.WriteString(ev.Data.Delta)
	case gateway.StreamTool:
		r.toolCalls = append(r.toolCalls, ToolCall{Name: ev.Data.Name, Args: ev.Data.Args})
	case gateway.StreamContent:
		// Full-content snapshot; authoritative only when no deltas have
		// streamed for this run.
		if !r.sawDelta && ev.Data.Content != "" {
			r.content.Reset()
			r.content.WriteString(ev.Data.Content)
		}
	case gateway.StreamLifecycle:
		switch ev.Data.Phase {
		case gateway.PhaseEnd:
			if !r.sawDelta && ev.Data.Content != "" {
				r.content.WriteString(ev.Data.Content)
			}
			r.usage = ev.Data.Usage
			r.stopReason = ev.Data.StopReason
			r.done = true
		case gateway.PhaseError:
			r.errMsg = ev.Data.Error
			r.failed = true
			r.done = true
		}
	case gateway.StreamDone:
		r.done = true
	case gateway.StreamError:
		r.errMsg = ev.Data.Error
		r.failed = true
		r.done = true
	}

	return r.done
}

// result builds the immutable ExecutionResult for the run.
func (r *runAccumulator) result(elapsed time.Duration) *ExecutionResult {
	latency := elapsed.Milliseconds()
	if latency < 0 {
		latency = 0
	}

	var thinking string
	if r.thinking.Len() > 0 {
		thinking = r.thinking.String()
	}

	return &ExecutionResult{
		Success:      !r.failed,
		RunID:        r.filter.runID,
		Content:      r.content.String(),
		Thinking:     thinking,
		ToolCalls:    r.toolCalls,
		TokenUsage:   r.usage,
		StopReason:   r.stopReason,
		LatencyMs:    latency,
		ErrorMessage: r.errMsg,
	}
}
