// Package testutil contains builders shared by tests across packages to
// construct sessions and events with little boilerplate. Not for production use.
package testutil
