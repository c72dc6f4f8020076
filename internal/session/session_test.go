package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boletim/internal/core"
	"boletim/internal/table"
)

type fakeProvider struct {
	mu      sync.Mutex
	records map[string]*core.Record
	gates   map[string]chan struct{}
	saveErr error
	saved   []core.SaveRequest

	// when set, Save signals saving and then blocks until release closes
	saving  chan struct{}
	release chan struct{}
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{records: map[string]*core.Record{}, gates: map[string]chan struct{}{}}
}

func (p *fakeProvider) gate(date core.Date) chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan struct{})
	p.gates[date.ISO()] = ch
	return ch
}

func (p *fakeProvider) FetchRecord(_ context.Context, date core.Date) (*core.Record, error) {
	p.mu.Lock()
	gate := p.gates[date.ISO()]
	p.mu.Unlock()
	if gate != nil {
		<-gate
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.records[date.ISO()]
	if !ok {
		return nil, errors.New("404")
	}
	return rec.Clone(), nil
}

func (p *fakeProvider) Save(_ context.Context, req core.SaveRequest) error {
	if p.release != nil {
		close(p.saving)
		<-p.release
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.saveErr != nil {
		return p.saveErr
	}
	p.saved = append(p.saved, req)
	return nil
}

func cardiology(date core.Date) *core.Record {
	return &core.Record{
		Date: date,
		Specialties: []core.CategoryHeader{{
			Label: "Cardiology",
			Items: []core.Item{{Key: "cardio", Label: "Cardiology", DailyGoal: 10, MonthlyGoal: 200, AttendedMonthToDate: 150}},
		}},
		SurgicalTeams: []core.CategoryHeader{},
	}
}

func TestLoadEditFooter(t *testing.T) {
	ctx := context.Background()
	day := core.NewDate(2024, 3, 15)
	p := newFakeProvider()
	p.records[day.ISO()] = cardiology(day)
	s := New(p, nil)

	require.ErrorIs(t, s.SetRow(0, "4"), ErrNotReady)

	require.NoError(t, s.Load(ctx, day))
	require.NoError(t, s.SetRow(0, "4"))

	f, err := s.Footer()
	require.NoError(t, err)
	assert.Equal(t, 4, f.DailyTotal)
	assert.Equal(t, "40.00%", f.DailyAttainment.String())
	assert.Equal(t, 154, f.MonthlyTotal)
	assert.Equal(t, "75.00%", f.MonthlyAttainment.String())

	assert.Error(t, s.SetRow(5, "1"))
}

func TestStaleFetchIsDiscarded(t *testing.T) {
	ctx := context.Background()
	first := core.NewDate(2024, 3, 14)
	second := core.NewDate(2024, 3, 15)
	p := newFakeProvider()
	p.records[first.ISO()] = cardiology(first)
	p.records[second.ISO()] = cardiology(second)
	release := p.gate(first)

	s := New(p, nil)
	firstDone := s.SelectDate(ctx, first)
	require.NoError(t, <-s.SelectDate(ctx, second))

	close(release)
	assert.ErrorIs(t, <-firstDone, ErrStale)

	v := s.View()
	assert.Equal(t, Ready, v.State)
	assert.True(t, v.Record.Date.Equal(second))
}

func TestLoadFailure(t *testing.T) {
	s := New(newFakeProvider(), nil)
	err := s.Load(context.Background(), core.NewDate(2024, 3, 15))
	require.ErrorIs(t, err, ErrLoadFailure)
	assert.True(t, IsLoadFailure(err))

	v := s.View()
	assert.Equal(t, Failed, v.State)
	assert.Nil(t, v.Record)
	assert.False(t, v.NoData())

	_, err = s.Footer()
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestNoDataIsNotAFailure(t *testing.T) {
	day := core.NewDate(2024, 3, 15)
	p := newFakeProvider()
	p.records[day.ISO()] = &core.Record{Date: day, Specialties: []core.CategoryHeader{}, SurgicalTeams: []core.CategoryHeader{}}

	s := New(p, nil)
	require.NoError(t, s.Load(context.Background(), day))
	assert.True(t, s.View().NoData())
}

func TestSaveSuccessMergesLocally(t *testing.T) {
	ctx := context.Background()
	day := core.NewDate(2024, 3, 15)
	p := newFakeProvider()
	p.records[day.ISO()] = cardiology(day)

	s := New(p, nil)
	require.NoError(t, s.Load(ctx, day))
	require.NoError(t, s.SetRow(0, "7"))
	require.NoError(t, s.Save(ctx))

	require.Len(t, p.saved, 1)
	assert.Equal(t, core.Attended(7), p.saved[0].Rows[0].AttendedToday)
	assert.Equal(t, table.HeaderMetadata(cardiology(day)), p.saved[0].HeaderMetadata)

	v := s.View()
	assert.Equal(t, core.Attended(7), v.Record.Specialties[0].Items[0].AttendedToday)
}

func TestSaveFailureKeepsEdits(t *testing.T) {
	ctx := context.Background()
	day := core.NewDate(2024, 3, 15)
	p := newFakeProvider()
	p.records[day.ISO()] = cardiology(day)
	p.saveErr = errors.New("provider returned 500")

	s := New(p, nil)
	require.NoError(t, s.Load(ctx, day))
	require.NoError(t, s.SetRow(0, "7"))

	err := s.Save(ctx)
	require.ErrorIs(t, err, ErrSaveFailure)
	assert.Empty(t, p.saved)

	v := s.View()
	assert.Equal(t, core.Attended(7), v.Rows[0].AttendedToday)
	assert.Equal(t, core.Absent, v.Record.Specialties[0].Items[0].AttendedToday)
}

func TestSaveNotReady(t *testing.T) {
	s := New(newFakeProvider(), nil)
	assert.ErrorIs(t, s.Save(context.Background()), ErrNotReady)
}

func TestEditDuringSaveIsKept(t *testing.T) {
	ctx := context.Background()
	day := core.NewDate(2024, 3, 15)
	p := newFakeProvider()
	p.records[day.ISO()] = cardiology(day)
	p.saving = make(chan struct{})
	p.release = make(chan struct{})

	s := New(p, nil)
	require.NoError(t, s.Load(ctx, day))
	require.NoError(t, s.SetRow(0, "4"))

	saved := make(chan error, 1)
	go func() { saved <- s.Save(ctx) }()

	<-p.saving
	require.NoError(t, s.SetRow(0, "7"))
	close(p.release)
	require.NoError(t, <-saved)

	require.Len(t, p.saved, 1)
	assert.Equal(t, core.Attended(4), p.saved[0].Rows[0].AttendedToday)

	v := s.View()
	assert.Equal(t, core.Attended(7), v.Rows[0].AttendedToday)
	assert.Equal(t, core.Attended(4), v.Record.Specialties[0].Items[0].AttendedToday)

	f, err := s.Footer()
	require.NoError(t, err)
	assert.Equal(t, 7, f.DailyTotal)
}
