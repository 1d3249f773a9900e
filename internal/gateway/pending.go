// ABOUTME: Pending-request table correlating outbound requests to inbound responses.
// ABOUTME: Guarantees exactly-once resolution even when timeouts and late responses race.

package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// callResult is the single resolution delivered to a pending call.
type callResult struct {
	result json.RawMessage
	err    error
}

// pendingCall is one in-flight request awaiting its response frame.
type pendingCall struct {
	id     string
	method string
	sentAt time.Time
	done   chan callResult
}

// pendingTable tracks in-flight requests keyed by correlation id.
// Resolution removes the slot under lock before delivering, so a second
// resolution attempt for the same id finds nothing and is a no-op.
type pendingTable struct {
	mu    sync.Mutex
	calls map[string]*pendingCall
}

func newPendingTable() *pendingTable {
	return &pendingTable{calls: make(map[string]*pendingCall)}
}

// register creates a pending slot with a fresh correlation id. The slot
// must be resolved or removed exactly once.
func (t *pendingTable) register(method string) *pendingCall {
	call := &pendingCall{
		id:     uuid.New().String(),
		method: method,
		sentAt: time.Now(),
		done:   make(chan callResult, 1),
	}

	t.mu.Lock()
	t.calls[call.id] = call
	t.mu.Unlock()

	return call
}

// resolve delivers a response to the pending call with the given id.
// Returns false if no such call is pending, which happens for late
// responses after a timeout or for ids this client never issued.
func (t *pendingTable) resolve(id string, result json.RawMessage, err error) bool {
	t.mu.Lock()
	call, ok := t.calls[id]
	if ok {
		delete(t.calls, id)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	call.done <- callResult{result: result, err: err}
	return true
}

// remove discards a pending slot without delivering a result. Used by
// the caller after a timeout or cancellation; a response arriving later
// is then safely discarded by resolve.
func (t *pendingTable) remove(id string) {
	t.mu.Lock()
	delete(t.calls, id)
	t.mu.Unlock()
}

// failAll resolves every outstanding call with err. Called on
// connection loss and on dispose.
func (t *pendingTable) failAll(err error) {
	t.mu.Lock()
	calls := make([]*pendingCall, 0, len(t.calls))
	for id, call := range t.calls {
		calls = append(calls, call)
		delete(t.calls, id)
	}
	t.mu.Unlock()

	for _, call := range calls {
		call.done <- callResult{err: err}
	}
}

func (t *pendingTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}
