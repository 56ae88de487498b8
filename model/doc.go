// Package model defines the provider-agnostic abstractions for language
// models used by a2amesh agents.
//
// Core goals:
//   - Unify streaming and non-streaming generation behind a single interface
//   - Normalize tool / function declarations (ToolDefinition)
//   - Keep request/response shapes minimal and transport independent
//   - Deterministic testing through ScriptedModel
//
// Providers (gemini, openai, anthropic) live in sub-packages so that agents
// remain decoupled from vendor SDKs.
package model
