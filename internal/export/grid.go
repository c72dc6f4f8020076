// Package export renders a day's table and footer into a grid of cells
// that the xlsx and google renderers write out.
package export

import (
	"strconv"

	"boletim/internal/core"
	"boletim/internal/table"
)

// NoDataMessage replaces the table when neither group has items.
const NoDataMessage = "Não foi possível encontrar dados para a data"

// Columns of every item and footer line.
var Columns = []string{"", "Atendidos hoje", "Meta diária", "% dia", "Atendidos no mês", "Meta mensal", "% mês"}

// RowKind tells renderers how to style a grid row.
type RowKind int

const (
	RowTitle RowKind = iota
	RowGroup
	RowColumns
	RowHeader
	RowItem
	RowFooter
	RowBlank
	RowNotice
)

type Row struct {
	Kind  RowKind
	Cells []string
}

type Grid struct {
	Title string
	Rows  []Row
}

// Title names a day's export, also used as the sheet tab name.
func Title(date core.Date) string {
	return "Boletim Saúde - " + date.String()
}

// BuildGrid lays out the visible groups of record followed by footer.
func BuildGrid(record *core.Record, footer table.Footer) Grid {
	g := Grid{Title: Title(record.Date)}
	g.add(RowTitle, g.Title)
	g.add(RowBlank)

	if !table.HasData(record) {
		g.add(RowNotice, NoDataMessage)
		g.add(RowBlank)
	}

	for _, key := range core.GroupKeys {
		if !table.GroupHasData(record, key) {
			continue
		}
		g.add(RowGroup, key.Title())
		g.add(RowColumns, Columns...)
		for _, h := range record.Group(key) {
			if len(h.Items) == 0 {
				continue
			}
			g.add(RowHeader, h.Label)
			for _, it := range h.Items {
				g.add(RowItem,
					it.Label,
					it.AttendedToday.String(),
					number(it.DailyGoal),
					ratio(float64(it.AttendedToday.OrZero()), it.DailyGoal),
					strconv.Itoa(it.AttendedMonthToDate),
					number(it.MonthlyGoal),
					ratio(float64(it.AttendedMonthToDate), it.MonthlyGoal),
				)
			}
		}
		g.add(RowBlank)
	}

	g.add(RowFooter,
		"Total",
		strconv.Itoa(footer.DailyTotal),
		number(footer.DailyGoalTotal),
		footer.DailyAttainment.String(),
		strconv.Itoa(footer.MonthlyTotal),
		number(footer.MonthlyGoalTotal),
		footer.MonthlyAttainment.String(),
	)
	return g
}

// Values returns the grid as plain rows of cells.
func (g Grid) Values() [][]string {
	out := make([][]string, len(g.Rows))
	for i, r := range g.Rows {
		out[i] = r.Cells
	}
	return out
}

func (g *Grid) add(kind RowKind, cells ...string) {
	g.Rows = append(g.Rows, Row{Kind: kind, Cells: cells})
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ratio formats an item's own attainment; items without a goal show nothing.
func ratio(n, goal float64) string {
	if goal <= 0 {
		return ""
	}
	return strconv.FormatFloat(n/goal*100, 'f', 2, 64) + "%"
}
