package storage

import "errors"

// ErrNotFound is the sentinel for lookups that matched no row: unknown deal
// external IDs, pattern keys with no observations, alert IDs. Callers match
// with errors.Is.
var ErrNotFound = errors.New("storage: not found")
