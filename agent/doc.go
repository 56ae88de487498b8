// Package agent provides the LLM agent used by a2amesh services.
//
// An LLMAgent couples a model with an instruction, static tools and dynamic
// toolsets (for example MCP servers). Each Run resolves the toolsets,
// executes the single-agent flow, and then invokes AfterAgent callbacks.
// Persistence and transport stay in the runner and executor packages.
package agent
