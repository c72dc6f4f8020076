package table

import (
	"errors"
	"fmt"
)

var (
	// ErrDesync means the edited rows no longer line up with the record they
	// are merged into, e.g. the date changed mid-edit. It is a contract
	// violation, not a user error.
	ErrDesync = errors.New("edited rows out of sync with record")

	// ErrNoRecord is returned when merging against a record that was never loaded.
	ErrNoRecord = errors.New("no record loaded")
)

// DesyncError describes where row/item alignment broke.
type DesyncError struct {
	Expected int    // items in the record
	Got      int    // edited rows
	Position int    // -1 for a cardinality mismatch
	Reason   string // set for a per-position mismatch
}

func (e *DesyncError) Error() string {
	if e.Position < 0 {
		return fmt.Sprintf("%s: record has %d items, got %d rows", ErrDesync, e.Expected, e.Got)
	}
	return fmt.Sprintf("%s: row %d: %s", ErrDesync, e.Position, e.Reason)
}

func (e *DesyncError) Is(target error) bool {
	return target == ErrDesync
}
