package core

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the dd/MM/yyyy form used on the wire and in the URL path.
const DateLayout = "02/01/2006"

const (
	Specialties   GroupKey = "specialties"
	SurgicalTeams GroupKey = "surgicalTeams"
)

// GroupKeys lists the category groups in traversal order. Row alignment
// depends on this order.
var GroupKeys = []GroupKey{Specialties, SurgicalTeams}

type (
	GroupKey string

	Date struct {
		time.Time
	}

	// Item is one trackable unit (a specialty or a surgeon) for one day.
	Item struct {
		Key                 string
		Label               string
		DailyGoal           float64
		MonthlyGoal         float64
		AttendedMonthToDate int // excludes the record's own day
		AttendedToday       Attendance
	}

	CategoryHeader struct {
		Label string
		Items []Item
	}

	// Record is the full hierarchical attendance document for one date.
	Record struct {
		Date          Date
		Specialties   []CategoryHeader
		SurgicalTeams []CategoryHeader
	}

	// RowModel is the flat, editable unit handed to the edit surface.
	RowModel struct {
		Index         int    `validate:"gte=0"`
		Key           string `validate:"omitempty,max=64"`
		AttendedToday Attendance
	}
)

var (
	ErrInvalidDate  = errors.New("invalid date")
	ErrUnknownGroup = errors.New("unknown category group")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current day as a UTC date.
func Today() Date {
	now := time.Now()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// ParseDate accepts dd/MM/yyyy, dd-MM-yyyy and yyyy-MM-dd.
func ParseDate(s string) (Date, error) {
	for _, layout := range []string{DateLayout, "02-01-2006", time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t}, nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q (expected dd/MM/yyyy)", ErrInvalidDate, s)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

// String formats the date as dd/MM/yyyy.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// ISO formats the date as yyyy-MM-dd, the storage form.
func (d Date) ISO() string {
	return d.Format(time.DateOnly)
}

// MonthStart returns the first day of the date's month.
func (d Date) MonthStart() Date {
	return NewDate(d.Year(), int(d.Month()), 1)
}

func (d Date) Equal(o Date) bool {
	return d.Time.Equal(o.Time)
}

// Group returns the headers of the given group.
func (r *Record) Group(key GroupKey) []CategoryHeader {
	if r == nil {
		return nil
	}
	switch key {
	case Specialties:
		return r.Specialties
	case SurgicalTeams:
		return r.SurgicalTeams
	default:
		return nil
	}
}

// ItemCount returns the number of items across both groups.
func (r *Record) ItemCount() int {
	n := 0
	for _, key := range GroupKeys {
		for _, h := range r.Group(key) {
			n += len(h.Items)
		}
	}
	return n
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	return &Record{
		Date:          r.Date,
		Specialties:   cloneHeaders(r.Specialties),
		SurgicalTeams: cloneHeaders(r.SurgicalTeams),
	}
}

func cloneHeaders(in []CategoryHeader) []CategoryHeader {
	if in == nil {
		return nil
	}
	out := make([]CategoryHeader, len(in))
	for i, h := range in {
		out[i] = CategoryHeader{Label: h.Label}
		if h.Items != nil {
			out[i].Items = make([]Item, len(h.Items))
			copy(out[i].Items, h.Items)
		}
	}
	return out
}

func (k GroupKey) Validate() error {
	switch k {
	case Specialties, SurgicalTeams:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownGroup, string(k))
	}
}

// Title is the display heading of the group.
func (k GroupKey) Title() string {
	switch k {
	case Specialties:
		return "Especialidades"
	case SurgicalTeams:
		return "Cirurgiões"
	default:
		return string(k)
	}
}
