// Package session holds the editing state of one user working on one date
// at a time. Fetches and saves run asynchronously; their results reach the
// state through deliver, which drops anything from an older generation.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"boletim/internal/core"
	applog "boletim/internal/log"
	"boletim/internal/table"
)

// Provider is the Data Provider as seen by a session.
type Provider interface {
	FetchRecord(ctx context.Context, date core.Date) (*core.Record, error)
	Save(ctx context.Context, req core.SaveRequest) error
}

// State is the load state of the selected date.
type State int

const (
	Idle State = iota
	Loading
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// View is a read-only snapshot for rendering.
type View struct {
	Date       core.Date
	State      State
	Generation uint64
	Record     *core.Record
	Rows       []core.RowModel
	Footer     table.Footer
	Err        error
}

// NoData reports the legitimate empty-day state, as opposed to a failed load.
func (v View) NoData() bool {
	return v.State == Ready && !table.HasData(v.Record)
}

type Session struct {
	provider Provider
	logger   *applog.Logger

	mu         sync.Mutex
	date       core.Date
	generation uint64
	state      State
	record     *core.Record
	rows       []core.RowModel
	edits      uint64
	err        error
}

func New(p Provider, logger *applog.Logger) *Session {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Session{provider: p, logger: logger.WithComponent(applog.ComponentSession)}
}

// SelectDate switches to date and starts fetching its record. Edits are
// refused until the fetch resolves. The returned channel receives the
// outcome once: nil, ErrLoadFailure, or ErrStale if another date was
// selected first.
func (s *Session) SelectDate(ctx context.Context, date core.Date) <-chan error {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.date = date
	s.state = Loading
	s.record = nil
	s.rows = nil
	s.err = nil
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "Date selected",
		applog.FieldDate, date.String(), applog.FieldGeneration, gen)

	done := make(chan error, 1)
	go func() {
		rec, err := s.provider.FetchRecord(ctx, date)
		done <- s.deliver(ctx, gen, rec, err)
	}()
	return done
}

// Load selects date and waits for the fetch.
func (s *Session) Load(ctx context.Context, date core.Date) error {
	return <-s.SelectDate(ctx, date)
}

// deliver is the single entry point for fetch results.
func (s *Session) deliver(ctx context.Context, gen uint64, rec *core.Record, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		s.logger.DebugContext(ctx, "Discarding stale fetch",
			applog.FieldGeneration, gen, "current_generation", s.generation)
		return ErrStale
	}

	if err != nil {
		s.state = Failed
		s.err = fmt.Errorf("%w: %s: %w", ErrLoadFailure, s.date, err)
		s.logger.WarnContext(ctx, "Record load failed",
			applog.FieldDate, s.date.String(), applog.FieldError, err)
		return s.err
	}

	s.record = rec
	s.rows = table.RowsFromRecord(rec)
	s.state = Ready
	s.logger.DebugContext(ctx, "Record loaded",
		applog.FieldDate, s.date.String(), applog.FieldRows, len(s.rows))
	return nil
}

// SetRow sets the raw input of the row at index. Unparseable input becomes
// absent.
func (s *Session) SetRow(index int, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Ready {
		return ErrNotReady
	}
	if index < 0 || index >= len(s.rows) {
		return fmt.Errorf("row %d out of range [0,%d)", index, len(s.rows))
	}
	s.rows[index].AttendedToday = core.ParseAttendance(raw)
	s.edits++
	return nil
}

// Footer recomputes the aggregates from the record and the live rows.
func (s *Session) Footer() (table.Footer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Ready {
		return table.Footer{}, ErrNotReady
	}
	return table.Aggregate(s.record, s.rows), nil
}

// View returns a snapshot safe to use after the session changes.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		Date:       s.date,
		State:      s.state,
		Generation: s.generation,
		Err:        s.err,
	}
	if s.state == Ready {
		v.Record = s.record.Clone()
		v.Rows = append([]core.RowModel(nil), s.rows...)
		v.Footer = table.Aggregate(s.record, s.rows)
	}
	return v
}

// Save submits the live rows. On success the local record is refreshed by
// merging the submitted rows, unless another date was selected meanwhile.
// Rows edited while the save was in flight are kept as typed. On failure
// the rows are left as they were. Saves are never retried.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Ready {
		s.mu.Unlock()
		return ErrNotReady
	}
	gen := s.generation
	edits := s.edits
	date := s.date
	rows := append([]core.RowModel(nil), s.rows...)
	req := table.BuildSavePayload(date, rows, s.record)
	s.mu.Unlock()

	if err := s.provider.Save(ctx, req); err != nil {
		s.logger.WarnContext(ctx, "Save failed",
			applog.FieldDate, date.String(), applog.FieldError, err)
		return fmt.Errorf("%w: %w", ErrSaveFailure, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return ErrStale
	}
	merged, err := table.Merge(s.record, rows)
	if err != nil {
		// the provider accepted rows that do not line up with our copy
		s.state = Failed
		s.err = err
		return err
	}
	s.record = merged
	if edits == s.edits {
		s.rows = table.RowsFromRecord(merged)
	} else {
		s.logger.DebugContext(ctx, "Keeping rows edited during save",
			applog.FieldDate, date.String(), "edits", s.edits-edits)
	}
	s.logger.InfoContext(ctx, "Day saved",
		applog.FieldDate, date.String(), applog.FieldRows, len(rows))
	return nil
}

// IsLoadFailure reports whether err came from a failed fetch.
func IsLoadFailure(err error) bool {
	return errors.Is(err, ErrLoadFailure)
}
