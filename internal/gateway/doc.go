// Package gateway implements the client side of the gateway protocol:
// one persistent WebSocket connection carrying correlated
// request/response calls alongside a continuous stream of push events.
//
// # Frames
//
// All traffic shares one JSON envelope. Requests carry {id, method,
// params}, responses carry {id, result|error} with the id equal to the
// originating request's correlation id, and push frames carry
// {event: "agent", payload: {runId, stream, data}}.
//
// # Client
//
// Client owns the connection and its single reader loop:
//
//	c := gateway.NewClient(gateway.Config{URL: "ws://host:18789/gateway", Token: token})
//	if err := c.Connect(ctx); err != nil { ... }
//	defer c.Close()
//
// Key operations:
//
//   - Call(ctx, method, params): correlated request/response. Safe from
//     concurrent goroutines; each call resolves independently with no
//     head-of-line blocking between correlation ids.
//   - Subscribe(ctx): a cancellable, single-consumer live view of the
//     push stream. Subscriptions are independent fan-out targets.
//   - Close(): cancels pending requests and releases subscriptions.
//
// # Routing invariant
//
// Exactly one reader loop exists per connection. Every inbound frame is
// classified as a response (routed to the pending-request table) or a
// push event (routed to the broadcaster) -- never both. Malformed or
// unrecognized frames are logged and dropped without crashing the loop.
//
// # Backpressure
//
// Each subscription has a bounded buffer. Publishing is non-blocking:
// when a subscriber's buffer is full, the event is dropped for that
// subscriber only. A slow consumer never stalls the reader loop or
// delivery to other subscribers.
package gateway
