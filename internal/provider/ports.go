package provider

import (
	"context"
	"errors"

	"boletim/internal/core"
	"boletim/internal/table"
)

// ErrUnknownItem means a write names an item key the structure does not have.
var ErrUnknownItem = errors.New("unknown item key")

// Ports for the Data Provider and its collaborators.
type (
	// RecordReader returns the hierarchical record for a date. A date with no
	// configured items yields a record with empty groups, not an error.
	RecordReader interface {
		ReadRecord(ctx context.Context, date core.Date) (*core.Record, error)
	}

	// FooterReader returns the record for a date with the footer of its
	// stored figures.
	FooterReader interface {
		Footer(ctx context.Context, date core.Date) (*core.Record, table.Footer, error)
	}

	// AttendanceWriter reconciles and persists a save request.
	AttendanceWriter interface {
		SaveAttendance(ctx context.Context, req core.SaveRequest) error
	}

	// DayExporter publishes a rendered day (table + footer) somewhere outside
	// the service and returns a reference to what it wrote.
	DayExporter interface {
		ExportDay(ctx context.Context, record *core.Record, footer table.Footer) (ref string, err error)
	}

	// Store is the persistence a backend offers the attendance service.
	Store interface {
		LoadRecord(ctx context.Context, date core.Date) (*core.Record, error)
		// WriteAttendance replaces the day's figures and returns the new day version.
		WriteAttendance(ctx context.Context, date core.Date, values []ItemAttendance) (version int64, err error)
	}
)

// ItemAttendance is one item's figure for a day, keyed by the item's stable key.
type ItemAttendance struct {
	Key      string
	Attended core.Attendance
}
