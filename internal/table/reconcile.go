package table

import (
	"fmt"

	"boletim/internal/core"
)

// Merge returns a copy of original with each item's AttendedToday replaced
// by the positionally aligned edited row. Server-owned fields are kept.
//
// The row count must equal the record's item count. When both a row and its
// item carry a key they must agree too; either failure is a *DesyncError and
// nothing is merged.
func Merge(original *core.Record, edited []core.RowModel) (*core.Record, error) {
	if original == nil {
		return nil, ErrNoRecord
	}
	if n := original.ItemCount(); n != len(edited) {
		return nil, &DesyncError{Expected: n, Got: len(edited), Position: -1}
	}

	merged := original.Clone()
	pos := 0
	for _, key := range core.GroupKeys {
		headers := merged.Group(key)
		for hi := range headers {
			items := headers[hi].Items
			for ii := range items {
				row := edited[pos]
				if row.Key != "" && items[ii].Key != "" && row.Key != items[ii].Key {
					return nil, &DesyncError{
						Expected: len(edited),
						Got:      len(edited),
						Position: pos,
						Reason:   fmt.Sprintf("key mismatch: row %q, item %q", row.Key, items[ii].Key),
					}
				}
				items[ii].AttendedToday = Normalize(row.AttendedToday)
				pos++
			}
		}
	}
	return merged, nil
}

// Normalize applies the coercion policy to an already-typed value. Negative
// counts cannot be represented, so this only re-validates the count.
func Normalize(a core.Attendance) core.Attendance {
	n, ok := a.Value()
	if !ok {
		return core.Absent
	}
	return core.Attended(n)
}

// NormalizeRows returns a copy of rows with indices reassigned to their
// position and values normalized.
func NormalizeRows(rows []core.RowModel) []core.RowModel {
	out := make([]core.RowModel, len(rows))
	for i, r := range rows {
		out[i] = core.RowModel{Index: i, Key: r.Key, AttendedToday: Normalize(r.AttendedToday)}
	}
	return out
}

// HeaderMetadata extracts labels and goals per group, header and item,
// leaving out every attendance figure.
func HeaderMetadata(record *core.Record) core.HeaderMetadata {
	var meta core.HeaderMetadata
	if record == nil {
		return meta
	}
	meta.Specialties = headerMeta(record.Specialties)
	meta.SurgicalTeams = headerMeta(record.SurgicalTeams)
	return meta
}

func headerMeta(headers []core.CategoryHeader) []core.HeaderMeta {
	out := make([]core.HeaderMeta, 0, len(headers))
	for _, h := range headers {
		hm := core.HeaderMeta{Label: h.Label, Items: make([]core.ItemMeta, 0, len(h.Items))}
		for _, it := range h.Items {
			hm.Items = append(hm.Items, core.ItemMeta{
				Key:         it.Key,
				Label:       it.Label,
				DailyGoal:   it.DailyGoal,
				MonthlyGoal: it.MonthlyGoal,
			})
		}
		out = append(out, hm)
	}
	return out
}

// BuildSavePayload assembles the save request: the raw (normalized, unmerged)
// rows plus the record's header metadata. The provider reconciles
// server-side.
func BuildSavePayload(date core.Date, edited []core.RowModel, record *core.Record) core.SaveRequest {
	return core.SaveRequest{
		Date:           date,
		Rows:           NormalizeRows(edited),
		HeaderMetadata: HeaderMetadata(record),
	}
}
