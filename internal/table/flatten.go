// Package table derives the editable rows of a day's attendance record,
// folds edits back into the record and computes the footer aggregates.
//
// Every function here is pure and synchronous. Rows are aligned to items by
// position in the fixed traversal order: groups (core.GroupKeys), then
// headers, then items.
package table

import "boletim/internal/core"

// RowsFromRecord returns one row per item in traversal order. Missing
// attendance stays Absent so the edit surface renders a blank cell, not 0.
// A nil record yields an empty slice, meaning "not loaded yet", not "no data".
func RowsFromRecord(record *core.Record) []core.RowModel {
	if record == nil {
		return []core.RowModel{}
	}
	rows := make([]core.RowModel, 0, record.ItemCount())
	walk(record, func(_ core.GroupKey, _ int, item core.Item) {
		rows = append(rows, core.RowModel{
			Index:         len(rows),
			Key:           item.Key,
			AttendedToday: item.AttendedToday,
		})
	})
	return rows
}

// GroupHasData reports whether at least one header in the group owns an
// item. Groups without items are suppressed rather than rendered empty.
func GroupHasData(record *core.Record, group core.GroupKey) bool {
	for _, h := range record.Group(group) {
		if len(h.Items) > 0 {
			return true
		}
	}
	return false
}

// HasData reports whether any group has something to show. When false the
// caller presents "no data for this date" instead of an empty table.
func HasData(record *core.Record) bool {
	for _, key := range core.GroupKeys {
		if GroupHasData(record, key) {
			return true
		}
	}
	return false
}

// GroupOffset returns the row index of the group's first item.
func GroupOffset(record *core.Record, group core.GroupKey) int {
	offset := 0
	for _, key := range core.GroupKeys {
		if key == group {
			return offset
		}
		for _, h := range record.Group(key) {
			offset += len(h.Items)
		}
	}
	return offset
}

func walk(record *core.Record, fn func(group core.GroupKey, header int, item core.Item)) {
	for _, key := range core.GroupKeys {
		for hi, h := range record.Group(key) {
			for _, it := range h.Items {
				fn(key, hi, it)
			}
		}
	}
}
