package session

import "errors"

// ErrNotFound is returned when a session id is unknown to the store.
var ErrNotFound = errors.New("session not found")
