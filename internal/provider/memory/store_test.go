package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boletim/internal/core"
	"boletim/internal/provider"
)

func testStructure() []provider.StructureItem {
	return []provider.StructureItem{
		{Group: core.Specialties, Header: "Clínica", Key: "cardio", Label: "Cardiologia", DailyGoal: 10, MonthlyGoal: 200},
		{Group: core.Specialties, Header: "Clínica", ItemPos: 1, Key: "derma", Label: "Dermatologia", DailyGoal: 5},
		{Group: core.SurgicalTeams, Header: "Ortopedia", Key: "silva", Label: "Dr. Silva"},
	}
}

func TestWriteThenLoad(t *testing.T) {
	ctx := context.Background()
	s := New(testStructure())
	day := core.NewDate(2024, 3, 15)

	v, err := s.WriteAttendance(ctx, day, []provider.ItemAttendance{
		{Key: "cardio", Attended: core.Attended(4)},
		{Key: "derma", Attended: core.Absent},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	rec, err := s.LoadRecord(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 4, rec.Specialties[0].Items[0].AttendedToday.OrZero())
	assert.False(t, rec.Specialties[0].Items[1].AttendedToday.Valid())

	v, err = s.WriteAttendance(ctx, day, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
}

func TestMonthToDate(t *testing.T) {
	ctx := context.Background()
	s := New(testStructure())

	write := func(d core.Date, n int) {
		_, err := s.WriteAttendance(ctx, d, []provider.ItemAttendance{{Key: "cardio", Attended: core.Attended(n)}})
		require.NoError(t, err)
	}
	write(core.NewDate(2024, 2, 28), 100) // previous month
	write(core.NewDate(2024, 3, 1), 7)
	write(core.NewDate(2024, 3, 10), 3)
	write(core.NewDate(2024, 3, 15), 50) // the day itself
	write(core.NewDate(2024, 3, 20), 9)  // later

	rec, err := s.LoadRecord(ctx, core.NewDate(2024, 3, 15))
	require.NoError(t, err)
	assert.Equal(t, 10, rec.Specialties[0].Items[0].AttendedMonthToDate)
	assert.Equal(t, 50, rec.Specialties[0].Items[0].AttendedToday.OrZero())
}

func TestWriteUnknownKey(t *testing.T) {
	s := New(testStructure())
	_, err := s.WriteAttendance(context.Background(), core.NewDate(2024, 3, 15),
		[]provider.ItemAttendance{{Key: "nope", Attended: core.Attended(1)}})
	assert.Error(t, err)
}

func TestInvalidDate(t *testing.T) {
	s := New(testStructure())
	_, err := s.LoadRecord(context.Background(), core.Date{})
	assert.ErrorIs(t, err, core.ErrInvalidDate)
}

func TestNewFromDir(t *testing.T) {
	dir := t.TempDir()

	s, err := NewFromDir(dir)
	require.NoError(t, err)
	rec, err := s.LoadRecord(context.Background(), core.NewDate(2024, 1, 2))
	require.NoError(t, err)
	assert.Zero(t, rec.ItemCount())

	seed := "specialties:\n  - label: A\n    items:\n      - {key: a1, label: One}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, SeedFile), []byte(seed), 0o644))
	s, err = NewFromDir(dir)
	require.NoError(t, err)
	assert.Len(t, s.Structure(), 1)
}
