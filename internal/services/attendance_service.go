package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"boletim/internal/cache"
	"boletim/internal/core"
	"boletim/internal/provider"
	"boletim/internal/table"
)

var (
	// ErrStructureMismatch means the header metadata of a save does not
	// describe the table the provider currently serves for the date.
	ErrStructureMismatch = errors.New("header metadata does not match table structure")

	// ErrUnkeyedItem means an item lacks the stable key needed to persist it.
	ErrUnkeyedItem = errors.New("item has no stable key")
)

// Publisher announces saved days to the export worker.
type Publisher interface {
	PublishDaySync(ctx context.Context, date core.Date, version int64) error
}

// AttendanceService is the Data Provider: it serves records and reconciles
// and persists saves against the store.
type AttendanceService struct {
	store     provider.Store
	publisher Publisher
	records   *cache.RecordCache
	loads     singleflight.Group
}

type Option func(*AttendanceService)

func WithPublisher(p Publisher) Option {
	return func(s *AttendanceService) { s.publisher = p }
}

func WithRecordCache(c *cache.RecordCache) Option {
	return func(s *AttendanceService) { s.records = c }
}

func NewAttendanceService(store provider.Store, opts ...Option) *AttendanceService {
	s := &AttendanceService{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReadRecord implements provider.RecordReader.
func (s *AttendanceService) ReadRecord(ctx context.Context, date core.Date) (*core.Record, error) {
	if err := date.Validate(); err != nil {
		return nil, err
	}
	if s.records != nil {
		if rec, ok := s.records.Get(date); ok {
			return rec, nil
		}
	}

	v, err, shared := s.loads.Do(date.ISO(), func() (any, error) {
		rec, err := s.store.LoadRecord(ctx, date)
		if err != nil {
			return nil, err
		}
		if s.records != nil {
			s.records.Put(date, rec)
		}
		return rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load record %s: %w", date, err)
	}
	if shared {
		slog.DebugContext(ctx, "Record load shared", "date", date.String())
	}
	return v.(*core.Record).Clone(), nil
}

// SaveAttendance implements provider.AttendanceWriter. The request is checked
// against the stored structure, reconciled positionally, persisted, and then
// announced to the export worker. A failed announcement does not fail the save.
func (s *AttendanceService) SaveAttendance(ctx context.Context, req core.SaveRequest) error {
	if err := req.Date.Validate(); err != nil {
		return err
	}

	current, err := s.store.LoadRecord(ctx, req.Date)
	if err != nil {
		return fmt.Errorf("load record %s: %w", req.Date, err)
	}

	if !req.HeaderMetadata.Matches(table.HeaderMetadata(current)) {
		return fmt.Errorf("%w for %s", ErrStructureMismatch, req.Date)
	}

	merged, err := table.Merge(current, req.Rows)
	if err != nil {
		return fmt.Errorf("reconcile %s: %w", req.Date, err)
	}

	rows := table.RowsFromRecord(merged)
	values := make([]provider.ItemAttendance, 0, len(rows))
	for _, r := range rows {
		if r.Key == "" {
			return fmt.Errorf("%w at row %d", ErrUnkeyedItem, r.Index)
		}
		values = append(values, provider.ItemAttendance{Key: r.Key, Attended: r.AttendedToday})
	}

	version, err := s.store.WriteAttendance(ctx, req.Date, values)
	if err != nil {
		return fmt.Errorf("write attendance %s: %w", req.Date, err)
	}

	if s.records != nil {
		s.records.InvalidateFrom(req.Date)
	}

	if err := s.publishDaySync(ctx, req.Date, version); err != nil {
		slog.ErrorContext(ctx, "Failed to publish day sync",
			"date", req.Date.String(), "version", version, "error", err)
	}
	return nil
}

// Footer computes the footer of the stored figures for a date.
func (s *AttendanceService) Footer(ctx context.Context, date core.Date) (*core.Record, table.Footer, error) {
	rec, err := s.ReadRecord(ctx, date)
	if err != nil {
		return nil, table.Footer{}, err
	}
	return rec, table.Aggregate(rec, table.RowsFromRecord(rec)), nil
}

func (s *AttendanceService) publishDaySync(ctx context.Context, date core.Date, version int64) error {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No publisher configured, skipping day sync message")
		return nil
	}
	return s.publisher.PublishDaySync(ctx, date, version)
}
