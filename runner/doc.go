// Package runner drives a single root agent against the session, artifact and
// memory stores.
//
// # Responsibilities
//   - Session lookup: a run targets (app, user, session) and the session is
//     created on first use.
//   - Event processing: non-partial events have their state delta applied and
//     are appended to the session before being forwarded; the agent is then
//     resumed so its next model call sees the persisted history.
//   - Lifecycle: runs are cancellable by id, concurrency is bounded and
//     AfterRun hooks (for example memory.Bank.AddSessionToMemory) see the
//     final session of every successful run.
//
// Run streams events; RunSync collects them.
package runner
