package storage

import "errors"

// Sentinel errors returned by the KV adapter. Stores translate these into
// model.HubError codes (ErrNotFound -> not_found, etc.) at their own
// boundary; the adapter itself stays free of domain error semantics.
var (
	ErrNotFound      = errors.New("storage: key not found")
	ErrAlreadyExists = errors.New("storage: key already exists")
)
