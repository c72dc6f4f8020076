package core

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Attendance is a non-negative head count that may be absent. The zero value
// is the absent ("not-a-number") marker: the edit surface renders it blank,
// aggregation reads it as 0 and the wire carries it as null.
type Attendance struct {
	count int
	valid bool
}

// Absent is the not-a-number sentinel.
var Absent = Attendance{}

// Attended returns a present count. Negative counts normalize to Absent.
func Attended(n int) Attendance {
	if n < 0 {
		return Absent
	}
	return Attendance{count: n, valid: true}
}

// ParseAttendance coerces a raw keystroke value. Empty, non-numeric,
// negative and fractional input all become Absent; it never fails.
func ParseAttendance(raw string) Attendance {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Absent
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Absent
	}
	return fromFloat(f)
}

func fromFloat(f float64) Attendance {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return Absent
	}
	return Attendance{count: int(f), valid: true}
}

// Valid reports whether a count is present.
func (a Attendance) Valid() bool {
	return a.valid
}

// Value returns the count and whether it is present.
func (a Attendance) Value() (int, bool) {
	return a.count, a.valid
}

// OrZero returns the count, reading Absent as 0.
func (a Attendance) OrZero() int {
	if !a.valid {
		return 0
	}
	return a.count
}

// String renders Absent as the empty string.
func (a Attendance) String() string {
	if !a.valid {
		return ""
	}
	return strconv.Itoa(a.count)
}

func (a Attendance) MarshalJSON() ([]byte, error) {
	if !a.valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(a.count)), nil
}

// UnmarshalJSON accepts numbers, numeric strings and null. Anything that is
// not a non-negative integer decodes to Absent rather than failing.
func (a *Attendance) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*a = Absent
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		*a = ParseAttendance(s)
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return nil
	}
	*a = fromFloat(f)
	return nil
}
