package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boletim/internal/client"
	"boletim/internal/core"
	apphttp "boletim/internal/http"
	"boletim/internal/provider"
	"boletim/internal/provider/memory"
	"boletim/internal/services"
	"boletim/internal/session"
)

func newTestServer(t *testing.T, structure []provider.StructureItem) string {
	t.Helper()
	srv := apphttp.NewServer(":0", services.NewAttendanceService(memory.New(structure)))
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Shutdown(context.Background())
	})
	return ts.URL
}

var cardiology = []provider.StructureItem{
	{Group: core.Specialties, Header: "Cardiology", Key: "cardio", Label: "Cardiology", DailyGoal: 10, MonthlyGoal: 200},
	{Group: core.SurgicalTeams, Header: "Ortopedia", Key: "silva", Label: "Dr. Silva"},
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd(HTTPAPI)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestShowRendersTableAndFooter(t *testing.T) {
	url := newTestServer(t, cardiology)

	out, _, err := run(t, "show", "--server", url, "--date", "15/03/2024")
	require.NoError(t, err)
	assert.Contains(t, out, "Boletim Saúde - 15/03/2024")
	assert.Contains(t, out, "Especialidades")
	assert.Contains(t, out, "Cardiology")
	assert.Contains(t, out, "Dr. Silva")
	assert.Contains(t, out, "Total")
	assert.Contains(t, out, "0.00%")
}

func TestShowNoData(t *testing.T) {
	url := newTestServer(t, nil)

	out, _, err := run(t, "show", "--server", url, "--date", "15/03/2024")
	require.NoError(t, err)
	assert.Contains(t, out, "Não foi possível encontrar dados para a data")
	assert.Contains(t, out, "—")

	out, _, err = run(t, "show", "--server", url, "--date", "15/03/2024", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"noData": true`)
}

func TestShowLoadFailure(t *testing.T) {
	out, _, err := run(t, "show", "--server", "http://127.0.0.1:1", "--date", "15/03/2024", "--timeout", "1s")
	require.Error(t, err)
	assert.True(t, errors.Is(err, session.ErrLoadFailure))
	assert.Contains(t, out, loadFailureMessage)
}

func TestSetAndSave(t *testing.T) {
	url := newTestServer(t, cardiology)

	out, _, err := run(t, "set", "--server", url, "--date", "15/03/2024", "0=4")
	require.NoError(t, err)
	assert.Contains(t, out, "40.00%")

	// not saved: the provider still has nothing
	out, _, err = run(t, "show", "--server", url, "--date", "15/03/2024", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"dailyTotal": 0`)

	_, stderr, err := run(t, "set", "--server", url, "--date", "15/03/2024", "cardio=4", "silva=2", "--save")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Saved.")

	out, _, err = run(t, "show", "--server", url, "--date", "15/03/2024", "-o", "json")
	require.NoError(t, err)
	var v struct {
		State  string `json:"state"`
		Footer struct {
			DailyTotal int `json:"dailyTotal"`
		} `json:"footer"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "ready", v.State)
	assert.Equal(t, 6, v.Footer.DailyTotal)
}

func TestFooterShowsSavedFigures(t *testing.T) {
	url := newTestServer(t, cardiology)

	_, _, err := run(t, "set", "--server", url, "--date", "15/03/2024", "cardio=4", "--save")
	require.NoError(t, err)
	// unsaved edits do not reach the stored footer
	_, _, err = run(t, "set", "--server", url, "--date", "15/03/2024", "cardio=9")
	require.NoError(t, err)

	out, _, err := run(t, "footer", "--server", url, "--date", "15/03/2024")
	require.NoError(t, err)
	assert.Contains(t, out, "(salvo)")
	assert.Contains(t, out, "40.00%")

	out, _, err = run(t, "footer", "--server", url, "--date", "15/03/2024", "-o", "json")
	require.NoError(t, err)
	var v struct {
		Date   string `json:"date"`
		Footer struct {
			DailyTotal int      `json:"dailyTotal"`
			DailyPct   *float64 `json:"dailyAttainmentPct"`
		} `json:"footer"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "15/03/2024", v.Date)
	assert.Equal(t, 4, v.Footer.DailyTotal)
	require.NotNil(t, v.Footer.DailyPct)
	assert.InDelta(t, 40.0, *v.Footer.DailyPct, 0.001)
}

func TestFooterWithoutGoals(t *testing.T) {
	url := newTestServer(t, nil)

	out, _, err := run(t, "footer", "--server", url, "--date", "15/03/2024")
	require.NoError(t, err)
	assert.Contains(t, out, "sem meta")
}

func TestFooterServerDown(t *testing.T) {
	_, _, err := run(t, "footer", "--server", "http://127.0.0.1:1", "--date", "15/03/2024", "--timeout", "1s")
	assert.ErrorContains(t, err, loadFailureMessage)
}

func TestSetRejectsBadEdits(t *testing.T) {
	url := newTestServer(t, cardiology)

	_, _, err := run(t, "set", "--server", url, "--date", "15/03/2024", "nonsense")
	assert.ErrorContains(t, err, "ROW=VALUE")

	_, _, err = run(t, "set", "--server", url, "--date", "15/03/2024", "9=1")
	assert.ErrorContains(t, err, "out of range")

	_, _, err = run(t, "set", "--server", url, "--date", "15/03/2024", "neuro=1")
	assert.ErrorContains(t, err, "no row with key")
}

func TestExport(t *testing.T) {
	url := newTestServer(t, cardiology)
	file := filepath.Join(t.TempDir(), "out.xlsx")

	out, _, err := run(t, "export", "--server", url, "--date", "15/03/2024", "-f", file)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Wrote "))

	info, err := os.Stat(file)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestInvalidFlags(t *testing.T) {
	_, _, err := run(t, "show", "--date", "31/02/2024")
	assert.ErrorIs(t, err, core.ErrInvalidDate)

	_, _, err = run(t, "show", "-o", "yaml")
	assert.ErrorContains(t, err, "invalid output format")
}

var _ API = (*client.Client)(nil)
