// Package artifact contains concrete implementations of core.ArtifactStore.
//
// The canonical interface lives in the core package to avoid dependency
// cycles. Implementations here can be swapped without touching calling code:
//
//   - InMemoryStore keeps artifacts in a nested map, for tests and demos.
//   - GCSStore persists artifacts as Cloud Storage objects named
//     <prefix>/<session>/<name>.
//
// Both return ErrNotFound (wrapped) for missing artifacts.
package artifact
