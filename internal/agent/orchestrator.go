// ABOUTME: Orchestrates agent executions over the gateway connection.
// ABOUTME: Enforces subscribe-then-send ordering and assembles run-scoped results.

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/2389/fold-client/internal/gateway"
)

// defaultExecuteTimeout bounds an execution whose context carries no
// deadline.
const defaultExecuteTimeout = 120 * time.Second

// Caller is the gateway surface the orchestrator needs: correlated
// request/response plus push-event subscription.
type Caller interface {
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
	Subscribe(ctx context.Context) (<-chan *gateway.PushEvent, string)
}

// Orchestrator drives agent executions: it subscribes to the push
// stream, sends chat requests, and consumes the run's events until a
// terminal condition. Multiple executions may run concurrently over one
// connection; each gets its own correlation id and subscription.
type Orchestrator struct {
	client Caller
	logger *slog.Logger
}

// NewOrchestrator creates an orchestrator on top of an established
// gateway client. Pass nil logger for default.
func NewOrchestrator(client Caller, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		client: client,
		logger: logger.With("component", "orchestrator"),
	}
}

// ExecuteOptions tunes a single execution.
type ExecuteOptions struct {
	// Timeout bounds the whole execution and is forwarded to the
	// gateway as the request's timeoutMs. Zero means 120s.
	Timeout time.Duration
}

// sendParams is the chat.send request payload. Every send carries a
// freshly generated idempotency key; retries by the caller are distinct
// operations at this layer.
type sendParams struct {
	SessionKey     string `json:"sessionKey"`
	Message        string `json:"message"`
	IdempotencyKey string `json:"idempotencyKey"`
	TimeoutMs      int64  `json:"timeoutMs"`
}

// sendResult is the subset of the chat.send response this client reads.
type sendResult struct {
	RunID string `json:"runId"`
}

// Execute sends a message to the session's agent and blocks until the
// run completes, fails, times out, or ctx is cancelled.
//
// The subscription is established strictly before the request is sent:
// the gateway may start emitting run events the moment it receives the
// request, and events arriving before the subscription exists would be
// lost. Events arriving before the run id is known sit buffered in the
// subscription and are re-filtered once chat.send returns it.
//
// Agent-reported failures produce a result with Success=false; the
// returned error is reserved for connection, protocol, and
// timeout/cancellation outcomes.
func (o *Orchestrator) Execute(ctx context.Context, sessionKey, message string, opts ExecuteOptions) (*ExecutionResult, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultExecuteTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Subscribe before sending. Cancelling runCtx detaches the
	// subscription without disturbing other executions.
	events, subID := o.client.Subscribe(runCtx)

	started := time.Now()
	runID, err := o.send(runCtx, sessionKey, message, timeout)
	if err != nil {
		return nil, err
	}

	o.logger.Debug("run started",
		"session_key", sessionKey,
		"run_id", runID,
		"sub_id", subID)

	run := newRunAccumulator(runID)
	for {
		select {
		case <-runCtx.Done():
			return nil, fmt.Errorf("agent: run %s: %w", runID, runCtx.Err())
		case ev, ok := <-events:
			if !ok {
				return nil, gateway.ErrConnectionClosed
			}
			if run.observe(ev) {
				result := run.result(time.Since(started))
				o.logger.Debug("run finished",
					"run_id", result.RunID,
					"success", result.Success,
					"latency_ms", result.LatencyMs)
				return result, nil
			}
		}
	}
}

// ExecuteStream is Execute's live variant: accepted events for the run
// are forwarded to the returned channel as they arrive. The channel
// closes after the first terminal event, on ctx cancellation, or on
// connection loss; terminal events are forwarded, not raised.
func (o *Orchestrator) ExecuteStream(ctx context.Context, sessionKey, message string, opts ExecuteOptions) (<-chan *gateway.PushEvent, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultExecuteTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)

	// Same ordering invariant as Execute: subscription first.
	events, _ := o.client.Subscribe(runCtx)

	runID, err := o.send(runCtx, sessionKey, message, timeout)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan *gateway.PushEvent, subscriberBufferSize)
	go func() {
		defer cancel()
		defer close(out)

		filter := runFilter{runID: runID}
		for {
			select {
			case <-runCtx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if !filter.accept(ev) {
					continue
				}
				select {
				case out <- ev:
				case <-runCtx.Done():
					return
				}
				if ev.Terminal() {
					return
				}
			}
		}
	}()

	return out, nil
}

// subscriberBufferSize mirrors the gateway subscription buffer so a
// briefly stalled stream consumer does not force event drops.
const subscriberBufferSize = 64

// send issues chat.send and extracts the run id from its response. An
// empty run id is legal; the id is then learned from the first event
// that carries one.
func (o *Orchestrator) send(ctx context.Context, sessionKey, message string, timeout time.Duration) (string, error) {
	params := sendParams{
		SessionKey:     sessionKey,
		Message:        message,
		IdempotencyKey: uuid.New().String(),
		TimeoutMs:      timeout.Milliseconds(),
	}

	raw, err := o.client.Call(ctx, "chat.send", params)
	if err != nil {
		return "", err
	}

	var res sendResult
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &res); err != nil {
			return "", fmt.Errorf("agent: decoding chat.send response: %w", err)
		}
	}
	return res.RunID, nil
}
