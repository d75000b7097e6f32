package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and blob backends return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: unique key already taken (singleton document, duplicate profile)
// - ErrLocked: owning form submission is locked
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrUnavailable: store or blob backend temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrLocked       = errors.New("locked")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
