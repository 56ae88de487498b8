// Package core provides the foundational domain types, interfaces and execution
// contexts shared by every a2amesh component. It defines:
//
//   - Content and its closed set of Parts (text, data, file, function call/response)
//   - Events (immutable records emitted by agents and persisted by the runner)
//   - Sessions (per user conversational state plus ordered event history)
//   - RunContext / ToolContext (scoped execution and tool sandboxing)
//   - Store interfaces for sessions, artifacts and long-term memory
//
// Concrete agents, stores and transports live in sibling packages so that core
// stays dependency free apart from logging and id generation.
package core
