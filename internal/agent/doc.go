// Package agent executes conversations against a remote agent through
// the gateway client.
//
// # Orchestrator
//
// The Orchestrator is the high-level contract: subscribe to the push
// stream, send a chat request, consume the run's events until a
// terminal lifecycle event, and assemble an ExecutionResult.
//
//	orch := agent.NewOrchestrator(client, logger)
//	res, err := orch.Execute(ctx, agent.SessionKey("main", "main"), "hello", agent.ExecuteOptions{})
//
// The subscription is always established before the request is sent;
// the gateway can begin emitting events the instant it receives the
// request, and a late subscription would miss them.
//
// # Error model
//
// Infrastructure failures -- connection loss, protocol errors,
// client-side timeouts, cancellation -- are returned as errors.
// An agent that declines or fails is a normal outcome: Execute returns
// a result with Success=false and the agent's message in ErrorMessage,
// so callers inspect results uniformly without error handling for the
// common case.
//
// # Runs
//
// Each execution is one run, identified by the runId from the chat.send
// response (or learned from the first event carrying one). Once
// observed, the id is fixed; events for other runs sharing the
// connection are excluded. Assistant deltas are appended in arrival
// order -- within a run the text stream is order-sensitive, across runs
// no ordering is guaranteed.
package agent
