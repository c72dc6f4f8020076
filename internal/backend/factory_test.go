package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boletim/internal/config"
	"boletim/internal/core"
	"boletim/internal/provider/memory"
	"boletim/internal/table"
)

const seed = `
specialties:
  - label: Clínica
    items:
      - key: cardio
        label: Cardiologia
        dailyGoal: 10
        monthlyGoal: 200
surgicalTeams:
  - label: Ortopedia
    items:
      - key: silva
        label: Dr. Silva
`

func writeSeed(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, memory.SeedFile), []byte(seed), 0o644))
	return dir
}

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db", DataDir: "d", CacheSize: 8, CacheTTL: time.Second})
	require.NoError(t, err)
	assert.Equal(t, SQLiteBackend, cfg.Type)
	assert.Equal(t, "d", cfg.DataDirectory)
	assert.Equal(t, CacheConfig{Size: 8, TTL: time.Second}, cfg.Cache)
	assert.True(t, cfg.Cache.Enabled())
	assert.False(t, cfg.Sync.Enabled())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"memory", Config{Type: MemoryBackend}, ""},
		{"unknown type", Config{Type: "nope"}, "invalid backend type"},
		{"sqlite without path", Config{Type: SQLiteBackend}, "database path"},
		{"sync without queue", Config{Type: MemoryBackend, Sync: SyncConfig{URL: "amqp://x", Exchange: "e"}}, "exchange and a queue"},
		{"negative cache", Config{Type: MemoryBackend, Cache: CacheConfig{Size: -1}}, "invalid cache size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	// every problem is reported
	err := Config{Type: SQLiteBackend, Cache: CacheConfig{TTL: -time.Second}}.Validate()
	assert.ErrorContains(t, err, "database path")
	assert.ErrorContains(t, err, "invalid cache size")
}

func exercise(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()
	date := core.NewDate(2024, 3, 15)

	rec, err := b.ReadRecord(ctx, date)
	require.NoError(t, err)
	require.Len(t, rec.Specialties, 1)
	require.Len(t, rec.SurgicalTeams, 1)

	rows := table.RowsFromRecord(rec)
	rows[0].AttendedToday = core.Attended(6)
	require.NoError(t, b.SaveAttendance(ctx, table.BuildSavePayload(date, rows, rec)))

	rec, err = b.ReadRecord(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, core.Attended(6), rec.Specialties[0].Items[0].AttendedToday)
}

func TestCreateMemoryBackend(t *testing.T) {
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend, DataDirectory: writeSeed(t)})
	require.NoError(t, err)
	assert.Nil(t, res.Ready)
	assert.Nil(t, res.Cleanup)
	exercise(t, res.Backend)
}

func TestCreateSQLiteBackend(t *testing.T) {
	dir := writeSeed(t)
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{
		Type:          SQLiteBackend,
		SQLiteDBPath:  filepath.Join(dir, "boletim.db"),
		DataDirectory: dir,
		Cache:         CacheConfig{Size: 8, TTL: time.Minute},
	})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, res.Cleanup()) })

	require.NotNil(t, res.Ready)
	assert.NoError(t, res.Ready.Ping(context.Background()))
	exercise(t, res.Backend)
}
