package session

import "errors"

var (
	// ErrLoadFailure means the record for the selected date could not be
	// fetched. The session shows no table until another date is selected.
	ErrLoadFailure = errors.New("could not load record")

	// ErrSaveFailure wraps a rejected save. Local edits are kept.
	ErrSaveFailure = errors.New("save failed")

	// ErrStale means a result arrived for a date that is no longer selected.
	ErrStale = errors.New("stale result discarded")

	// ErrNotReady means the session has no loaded record to edit.
	ErrNotReady = errors.New("record not loaded")
)
