package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"

	"boletim/internal/core"
	"boletim/internal/export"
	"boletim/internal/session"
	"boletim/internal/table"
)

const (
	jsonOutputFormat  = "json"
	tableOutputFormat = "table"
)

var (
	purple = lipgloss.Color("99")
	gray   = lipgloss.Color("245")
	red    = lipgloss.Color("196")
	green  = lipgloss.Color("34")

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(purple)
	groupStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	headerStyle = lipgloss.NewStyle().Foreground(purple).Bold(true).Align(lipgloss.Center)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	labelStyle  = cellStyle.Bold(true)
	mutedStyle  = cellStyle.Foreground(gray)
	errorStyle  = lipgloss.NewStyle().Foreground(red).Bold(true)

	goalMetStyle = lipgloss.NewStyle().Foreground(green).Bold(true)
)

// loadFailureMessage is shown instead of a table when the fetch failed.
const loadFailureMessage = "Não foi possível carregar os dados"

func createStyledTable(headers ...string) *ltable.Table {
	return ltable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(purple)).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == ltable.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

// renderView prints the live table: stored structure with the session's
// possibly unsaved rows, then the live footer.
func renderView(w io.Writer, v session.View) error {
	if v.State == session.Failed {
		fmt.Fprintln(w, errorStyle.Render(loadFailureMessage+" "+v.Date.String()))
		if v.Err != nil {
			fmt.Fprintln(w, mutedStyle.Render(v.Err.Error()))
		}
		return nil
	}

	live, err := table.Merge(v.Record, v.Rows)
	if err != nil {
		return err
	}
	grid := export.BuildGrid(live, v.Footer)

	columns := append([]string{"#"}, export.Columns...)
	var (
		current *ltable.Table
		headers []int
		index   int
	)
	flush := func() {
		if current == nil {
			return
		}
		hs := headers
		current.StyleFunc(func(row, _ int) lipgloss.Style {
			switch {
			case row == ltable.HeaderRow:
				return headerStyle
			case slices.Contains(hs, row):
				return labelStyle
			default:
				return cellStyle
			}
		})
		fmt.Fprintln(w, current)
		current, headers = nil, nil
	}

	rows := 0
	for _, r := range grid.Rows {
		switch r.Kind {
		case export.RowTitle:
			fmt.Fprintln(w, titleStyle.Render(r.Cells[0]))
		case export.RowNotice:
			fmt.Fprintln(w, mutedStyle.Render(r.Cells[0]))
		case export.RowGroup:
			flush()
			fmt.Fprintln(w, groupStyle.Render(r.Cells[0]))
			current = createStyledTable(columns...)
			rows = 0
		case export.RowHeader:
			if current != nil {
				current.Row(append([]string{"", r.Cells[0]}, make([]string, len(export.Columns)-1)...)...)
				headers = append(headers, rows)
				rows++
			}
		case export.RowItem:
			if current != nil {
				current.Row(append([]string{strconv.Itoa(index)}, r.Cells...)...)
				rows++
			}
			index++
		case export.RowFooter:
			flush()
			footer := createStyledTable(export.Columns...)
			footer.Row(r.Cells...)
			fmt.Fprintln(w, footer)
		}
	}
	flush()
	return nil
}

type viewJSON struct {
	Date   string        `json:"date"`
	State  string        `json:"state"`
	NoData bool          `json:"noData"`
	Record any           `json:"record,omitempty"`
	Rows   any           `json:"rows,omitempty"`
	Footer *table.Footer `json:"footer,omitempty"`
	Error  string        `json:"error,omitempty"`
}

func outputJSON(w io.Writer, v session.View) error {
	out := viewJSON{Date: v.Date.String(), State: v.State.String(), NoData: v.NoData()}
	if v.State == session.Ready {
		out.Record = v.Record
		out.Rows = v.Rows
		footer := v.Footer
		out.Footer = &footer
	}
	if v.Err != nil {
		out.Error = v.Err.Error()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// renderFooter prints the stored totals of a day as a day/month table.
func renderFooter(w io.Writer, date core.Date, f table.Footer) {
	fmt.Fprintln(w, titleStyle.Render("Boletim Saúde - "+date.String()+" (salvo)"))
	t := createStyledTable("", "Atendidos", "Meta", "% Atingido")
	t.Row("Dia", strconv.Itoa(f.DailyTotal), formatGoal(f.DailyGoalTotal), attainmentCell(f.DailyAttainment))
	t.Row("Mês", strconv.Itoa(f.MonthlyTotal), formatGoal(f.MonthlyGoalTotal), attainmentCell(f.MonthlyAttainment))
	fmt.Fprintln(w, t)
}

func attainmentCell(a table.Attainment) string {
	if !a.Defined() {
		return "sem meta"
	}
	if pct, _ := a.Percent(); pct >= 100 {
		return goalMetStyle.Render(a.String())
	}
	return a.String()
}

func formatGoal(g float64) string {
	return strconv.FormatFloat(g, 'f', -1, 64)
}

func outputFooterJSON(w io.Writer, date core.Date, f table.Footer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Date   string       `json:"date"`
		Footer table.Footer `json:"footer"`
	}{Date: date.String(), Footer: f})
}
