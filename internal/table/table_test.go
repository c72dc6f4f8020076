package table

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boletim/internal/core"
)

func cardiologyRecord() *core.Record {
	return &core.Record{
		Date: core.NewDate(2024, 5, 10),
		Specialties: []core.CategoryHeader{{
			Label: "Clínica",
			Items: []core.Item{{
				Key:                 "k-cardio",
				Label:               "Cardiology",
				DailyGoal:           10,
				MonthlyGoal:         200,
				AttendedMonthToDate: 150,
				AttendedToday:       core.Absent,
			}},
		}},
		SurgicalTeams: []core.CategoryHeader{},
	}
}

func sampleRecord() *core.Record {
	return &core.Record{
		Date: core.NewDate(2024, 5, 10),
		Specialties: []core.CategoryHeader{
			{Label: "Clínica", Items: []core.Item{
				{Key: "a", Label: "Cardiologia", DailyGoal: 10, MonthlyGoal: 200, AttendedMonthToDate: 100, AttendedToday: core.Attended(5)},
				{Key: "b", Label: "Dermatologia", DailyGoal: 0, MonthlyGoal: 0, AttendedMonthToDate: 7, AttendedToday: core.Attended(3)},
			}},
			{Label: "Pediatria", Items: []core.Item{
				{Key: "c", Label: "Neonatologia", DailyGoal: 4, MonthlyGoal: 80, AttendedMonthToDate: 20, AttendedToday: core.Absent},
			}},
			{Label: "Vazio", Items: nil},
		},
		SurgicalTeams: []core.CategoryHeader{
			{Label: "Ortopedia", Items: []core.Item{
				{Key: "d", Label: "Dr. Silva", AttendedToday: core.Attended(2)},
				{Key: "e", Label: "Dra. Souza", AttendedToday: core.Absent},
			}},
		},
	}
}

func TestRowsFromRecord(t *testing.T) {
	rows := RowsFromRecord(sampleRecord())
	require.Len(t, rows, 5)

	wantKeys := []string{"a", "b", "c", "d", "e"}
	for i, r := range rows {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, wantKeys[i], r.Key)
	}
	assert.Equal(t, core.Attended(5), rows[0].AttendedToday)
	assert.False(t, rows[2].AttendedToday.Valid(), "absent attendance must stay blank, not 0")
	assert.Equal(t, "", rows[2].AttendedToday.String())
}

func TestRowsFromRecordNil(t *testing.T) {
	rows := RowsFromRecord(nil)
	require.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestGroupHasData(t *testing.T) {
	rec := sampleRecord()
	assert.True(t, GroupHasData(rec, core.Specialties))
	assert.True(t, GroupHasData(rec, core.SurgicalTeams))
	assert.True(t, HasData(rec))

	onlyEmptyHeaders := &core.Record{
		Specialties:   []core.CategoryHeader{{Label: "X"}},
		SurgicalTeams: []core.CategoryHeader{{Label: "Y", Items: []core.Item{}}},
	}
	assert.False(t, GroupHasData(onlyEmptyHeaders, core.Specialties))
	assert.False(t, GroupHasData(onlyEmptyHeaders, core.SurgicalTeams))
	assert.False(t, HasData(onlyEmptyHeaders))

	noHeaders := &core.Record{}
	assert.False(t, GroupHasData(noHeaders, core.Specialties))
	assert.False(t, GroupHasData(noHeaders, core.SurgicalTeams))
	assert.False(t, HasData(noHeaders))
	assert.False(t, HasData(nil))
}

func TestMergeRoundTrip(t *testing.T) {
	for name, rec := range map[string]*core.Record{
		"sample":     sampleRecord(),
		"cardiology": cardiologyRecord(),
		"empty":      {Date: core.NewDate(2024, 1, 1)},
	} {
		t.Run(name, func(t *testing.T) {
			merged, err := Merge(rec, RowsFromRecord(rec))
			require.NoError(t, err)
			assert.Equal(t, rec, merged)
		})
	}
}

func TestMergeReplacesOnlyAttendance(t *testing.T) {
	rec := sampleRecord()
	rows := RowsFromRecord(rec)
	rows[0].AttendedToday = core.Attended(9)
	rows[2].AttendedToday = core.ParseAttendance("12")
	rows[3].AttendedToday = core.ParseAttendance("abc")

	merged, err := Merge(rec, rows)
	require.NoError(t, err)

	assert.Equal(t, core.Attended(9), merged.Specialties[0].Items[0].AttendedToday)
	assert.Equal(t, core.Attended(12), merged.Specialties[1].Items[0].AttendedToday)
	assert.False(t, merged.SurgicalTeams[0].Items[0].AttendedToday.Valid())

	// server-owned fields untouched
	assert.Equal(t, 100, merged.Specialties[0].Items[0].AttendedMonthToDate)
	assert.Equal(t, 200.0, merged.Specialties[0].Items[0].MonthlyGoal)
	// original not mutated
	assert.Equal(t, core.Attended(5), rec.Specialties[0].Items[0].AttendedToday)
}

func TestMergeOrderPreserved(t *testing.T) {
	rec := sampleRecord()
	rows := RowsFromRecord(rec)
	for i := range rows {
		rows[i].AttendedToday = core.Attended(i * 3)
	}
	merged, err := Merge(rec, rows)
	require.NoError(t, err)
	assert.True(t, HeaderMetadata(rec).Matches(HeaderMetadata(merged)))
}

func TestMergeDesync(t *testing.T) {
	rec := sampleRecord()
	rows := RowsFromRecord(rec)

	_, err := Merge(rec, rows[:len(rows)-1])
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDesync)

	var desync *DesyncError
	require.True(t, errors.As(err, &desync))
	assert.Equal(t, 5, desync.Expected)
	assert.Equal(t, 4, desync.Got)

	_, err = Merge(rec, append(rows, core.RowModel{Index: 5}))
	assert.ErrorIs(t, err, ErrDesync)
}

func TestMergeKeyMismatch(t *testing.T) {
	rec := sampleRecord()
	rows := RowsFromRecord(rec)
	rows[0], rows[1] = rows[1], rows[0]

	_, err := Merge(rec, rows)
	require.ErrorIs(t, err, ErrDesync)
	var desync *DesyncError
	require.ErrorAs(t, err, &desync)
	assert.Equal(t, 0, desync.Position)

	// rows without keys align by position alone
	for i := range rows {
		rows[i].Key = ""
	}
	_, err = Merge(rec, rows)
	assert.NoError(t, err)
}

func TestMergeNoRecord(t *testing.T) {
	_, err := Merge(nil, nil)
	assert.ErrorIs(t, err, ErrNoRecord)
}

func TestHeaderMetadataHasNoAttendance(t *testing.T) {
	meta := HeaderMetadata(sampleRecord())
	require.Len(t, meta.Specialties, 3)
	require.Len(t, meta.SurgicalTeams, 1)
	assert.Equal(t, core.ItemMeta{Key: "a", Label: "Cardiologia", DailyGoal: 10, MonthlyGoal: 200}, meta.Specialties[0].Items[0])
	assert.Empty(t, meta.Specialties[2].Items)

	raw, err := json.Marshal(meta)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "attended")
}

func TestBuildSavePayload(t *testing.T) {
	rec := sampleRecord()
	rows := RowsFromRecord(rec)
	rows[1].AttendedToday = core.ParseAttendance("-4")

	req := BuildSavePayload(rec.Date, rows, rec)
	assert.Equal(t, rec.Date, req.Date)
	require.Len(t, req.Rows, 5)
	assert.False(t, req.Rows[1].AttendedToday.Valid())
	assert.True(t, req.HeaderMetadata.Matches(HeaderMetadata(rec)))

	raw, err := json.Marshal(req)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `{"index":1,"key":"b","attendedToday":null}`)
}

func TestAggregateCardiologyScenario(t *testing.T) {
	rec := cardiologyRecord()
	rows := RowsFromRecord(rec)
	require.Len(t, rows, 1)
	require.False(t, rows[0].AttendedToday.Valid())

	rows[0].AttendedToday = core.ParseAttendance("4")
	f := Aggregate(rec, rows)

	assert.Equal(t, 4, f.DailyTotal)
	assert.Equal(t, 10.0, f.DailyGoalTotal)
	pct, ok := f.DailyAttainment.Percent()
	require.True(t, ok)
	assert.Equal(t, 40.0, pct)
	assert.Equal(t, "40.00%", f.DailyAttainment.String())

	assert.Equal(t, 154, f.MonthlyTotal)
	assert.Equal(t, 200.0, f.MonthlyGoalTotal)
	pct, ok = f.MonthlyAttainment.Percent()
	require.True(t, ok)
	assert.Equal(t, 75.0, pct)
}

func TestAggregateSentinelCountsAsZero(t *testing.T) {
	rec := cardiologyRecord()
	rows := RowsFromRecord(rec)

	f := Aggregate(rec, rows)
	assert.Equal(t, 0, f.DailyTotal)
	assert.Equal(t, 150, f.MonthlyTotal)
	// sentinel is still goal-eligible: 0 / 10
	pct, ok := f.DailyAttainment.Percent()
	require.True(t, ok)
	assert.Equal(t, 0.0, pct)
}

func TestAggregateGoalZeroExclusion(t *testing.T) {
	rec := sampleRecord()
	rows := RowsFromRecord(rec)
	base := Aggregate(rec, rows)

	for _, v := range []string{"0", "50", "", "x"} {
		rows[1].AttendedToday = core.ParseAttendance(v) // Dermatologia has dailyGoal 0
		f := Aggregate(rec, rows)
		assert.Equal(t, base.DailyAttainment, f.DailyAttainment, "value %q", v)
	}

	// (5/10 + 0/4) / 2 = 25%
	pct, _ := base.DailyAttainment.Percent()
	assert.Equal(t, 25.0, pct)
	// (100/200 + 20/80) / 2 = 37.5%
	pct, _ = base.MonthlyAttainment.Percent()
	assert.Equal(t, 37.5, pct)
}

func TestAggregateTotals(t *testing.T) {
	rec := sampleRecord()
	f := Aggregate(rec, RowsFromRecord(rec))

	// all rows, both groups: 5 + 3 + 0 + 2 + 0
	assert.Equal(t, 10, f.DailyTotal)
	assert.Equal(t, 14.0, f.DailyGoalTotal)
	assert.Equal(t, 280.0, f.MonthlyGoalTotal)
	// specialty month-to-date 127 plus today's 10
	assert.Equal(t, 137, f.MonthlyTotal)
}

func TestAggregateUndefinedAttainment(t *testing.T) {
	rec := &core.Record{
		Specialties: []core.CategoryHeader{{Label: "H", Items: []core.Item{
			{Label: "A", AttendedToday: core.Attended(3)},
			{Label: "B", AttendedToday: core.Attended(1)},
		}}},
	}
	f := Aggregate(rec, RowsFromRecord(rec))

	assert.False(t, f.DailyAttainment.Defined())
	assert.False(t, f.MonthlyAttainment.Defined())
	assert.Equal(t, "—", f.DailyAttainment.String())
	assert.Equal(t, 4, f.DailyTotal)

	raw, err := json.Marshal(f)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"dailyAttainmentPct":null`)
}

func TestAggregateNilRecord(t *testing.T) {
	f := Aggregate(nil, nil)
	assert.Equal(t, 0, f.DailyTotal)
	assert.False(t, f.DailyAttainment.Defined())
}

func TestAggregateRounding(t *testing.T) {
	rec := &core.Record{
		Specialties: []core.CategoryHeader{{Label: "H", Items: []core.Item{
			{Label: "A", DailyGoal: 3, MonthlyGoal: 3, AttendedMonthToDate: 1},
		}}},
	}
	rows := RowsFromRecord(rec)
	rows[0].AttendedToday = core.Attended(2)
	f := Aggregate(rec, rows)

	pct, _ := f.DailyAttainment.Percent()
	assert.Equal(t, 66.67, pct)
	pct, _ = f.MonthlyAttainment.Percent()
	assert.Equal(t, 33.33, pct)
}

func TestAttainmentJSONRoundTrip(t *testing.T) {
	var f Footer
	require.NoError(t, json.Unmarshal([]byte(`{"dailyAttainmentPct":40.5,"monthlyAttainmentPct":null}`), &f))

	pct, ok := f.DailyAttainment.Percent()
	assert.True(t, ok)
	assert.Equal(t, 40.5, pct)
	assert.False(t, f.MonthlyAttainment.Defined())
}
