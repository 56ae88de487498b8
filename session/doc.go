// Package session houses concrete implementations of core.SessionStore.
//
// The interface and the Session struct live in the core package so higher
// level packages (agents, runner, executor) never depend on a concrete
// backend. Two backends are provided:
//
//   - InMemoryStore: a process local map, suited for tests and single replica
//     servers.
//   - SQLiteStore: a durable store backed by modernc.org/sqlite (pure Go, no
//     cgo) keeping sessions and their events in two tables.
//
// Both return ErrNotFound (wrapped) for unknown session ids and hand out
// independent copies so callers can never mutate stored state directly.
package session
