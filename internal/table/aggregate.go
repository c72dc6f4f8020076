package table

import (
	"fmt"
	"math"
	"strconv"

	"boletim/internal/core"
)

// Attainment is a goal-attainment percentage that may be undefined, which
// happens when no item has a positive goal.
type Attainment struct {
	percent float64
	defined bool
}

// Undefined is the attainment of a set with no eligible items.
var Undefined = Attainment{}

func definedAttainment(pct float64) Attainment {
	return Attainment{percent: pct, defined: true}
}

// Percent returns the percentage rounded to two decimals and whether it is defined.
func (a Attainment) Percent() (float64, bool) {
	return a.percent, a.defined
}

func (a Attainment) Defined() bool {
	return a.defined
}

// String renders "40.00%", or "—" when undefined.
func (a Attainment) String() string {
	if !a.defined {
		return "—"
	}
	return strconv.FormatFloat(a.percent, 'f', 2, 64) + "%"
}

func (a Attainment) MarshalJSON() ([]byte, error) {
	if !a.defined {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(a.percent, 'f', 2, 64)), nil
}

func (a *Attainment) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = Undefined
		return nil
	}
	pct, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("attainment: %w", err)
	}
	*a = definedAttainment(pct)
	return nil
}

// Footer is the read-only aggregate snapshot shown beneath the table and
// consumed by the exporters.
type Footer struct {
	DailyTotal        int        `json:"dailyTotal"`
	DailyGoalTotal    float64    `json:"dailyGoalTotal"`
	DailyAttainment   Attainment `json:"dailyAttainmentPct"`
	MonthlyTotal      int        `json:"monthlyTotal"`
	MonthlyGoalTotal  float64    `json:"monthlyGoalTotal"`
	MonthlyAttainment Attainment `json:"monthlyAttainmentPct"`
}

// Aggregate computes the footer from the record's goals and month-to-date
// figures and the live, possibly unsaved, row values. Nothing is cached.
//
// Only the specialty group carries goals. Attainment is the average of
// per-item ratios over items with a positive goal, so a large department
// weighs the same as a small one. Absent live values count as 0 but do not
// exclude an item; only a zero goal does. Monthly attainment uses the
// month-to-date figure alone, which excludes today until the next fetch.
func Aggregate(record *core.Record, live []core.RowModel) Footer {
	var f Footer
	for _, r := range live {
		f.DailyTotal += r.AttendedToday.OrZero()
	}

	var daily, monthly ratioMean
	pos := GroupOffset(record, core.Specialties)
	for _, h := range record.Group(core.Specialties) {
		for _, it := range h.Items {
			today := core.Absent
			if pos < len(live) {
				today = live[pos].AttendedToday
			}
			pos++

			f.DailyGoalTotal += it.DailyGoal
			f.MonthlyGoalTotal += it.MonthlyGoal
			f.MonthlyTotal += it.AttendedMonthToDate

			if it.DailyGoal > 0 {
				daily.add(float64(today.OrZero()) / it.DailyGoal)
			}
			if it.MonthlyGoal > 0 {
				monthly.add(float64(it.AttendedMonthToDate) / it.MonthlyGoal)
			}
		}
	}
	f.MonthlyTotal += f.DailyTotal
	f.DailyAttainment = daily.attainment()
	f.MonthlyAttainment = monthly.attainment()
	return f
}

type ratioMean struct {
	sum   float64
	count int
}

func (m *ratioMean) add(ratio float64) {
	m.sum += ratio
	m.count++
}

func (m ratioMean) attainment() Attainment {
	if m.count == 0 {
		return Undefined
	}
	return definedAttainment(roundTo2(m.sum / float64(m.count) * 100))
}

func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}
