// ABOUTME: Session keys and session lifecycle RPCs (reset, compact, abort, history, resolve).
// ABOUTME: Pass-through calls keyed by session key with no streaming component.

package agent

import (
	"context"
	"encoding/json"
	"fmt"
)

// SessionKey builds the composite routing key "agent:{agentId}:{sessionName}".
// Session keys address state held by the gateway; this client treats
// them as opaque strings compared by equality.
func SessionKey(agentID, sessionName string) string {
	return fmt.Sprintf("agent:%s:%s", agentID, sessionName)
}

// sessionParams is the common payload for session-scoped RPCs.
type sessionParams struct {
	SessionKey string `json:"sessionKey"`
}

// HistoryRecord is one entry of a session's message history.
type HistoryRecord struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// SessionStatus reports a session's state as resolved by the gateway.
type SessionStatus struct {
	Status string `json:"status"` // "running", "idle", or "error"
}

// Reset clears the session's conversation state.
func (o *Orchestrator) Reset(ctx context.Context, sessionKey string) error {
	_, err := o.client.Call(ctx, "sessions.reset", sessionParams{SessionKey: sessionKey})
	return err
}

// Compact asks the gateway to compact the session's context.
func (o *Orchestrator) Compact(ctx context.Context, sessionKey string) error {
	_, err := o.client.Call(ctx, "sessions.compact", sessionParams{SessionKey: sessionKey})
	return err
}

// Abort stops the session's in-flight run, if any.
func (o *Orchestrator) Abort(ctx context.Context, sessionKey string) error {
	_, err := o.client.Call(ctx, "chat.abort", sessionParams{SessionKey: sessionKey})
	return err
}

// historyParams is the chat.history request payload.
type historyParams struct {
	SessionKey string `json:"sessionKey"`
	Limit      int    `json:"limit,omitempty"`
}

// History returns up to limit records of the session's history, oldest
// first. Zero limit leaves the bound to the gateway.
func (o *Orchestrator) History(ctx context.Context, sessionKey string, limit int) ([]HistoryRecord, error) {
	raw, err := o.client.Call(ctx, "chat.history", historyParams{SessionKey: sessionKey, Limit: limit})
	if err != nil {
		return nil, err
	}

	var records []HistoryRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("agent: decoding chat.history response: %w", err)
	}
	return records, nil
}

// Resolve reports whether the session is running, idle, or errored.
func (o *Orchestrator) Resolve(ctx context.Context, sessionKey string) (*SessionStatus, error) {
	raw, err := o.client.Call(ctx, "sessions.resolve", sessionParams{SessionKey: sessionKey})
	if err != nil {
		return nil, err
	}

	var status SessionStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("agent: decoding sessions.resolve response: %w", err)
	}
	return &status, nil
}
