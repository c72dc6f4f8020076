// Package memory is an in-process Data Provider backed by a YAML structure
// seed. Figures live only as long as the process.
package memory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"

	"boletim/internal/core"
	"boletim/internal/provider"
)

// SeedFile is the structure seed looked up under the data directory.
const SeedFile = "estrutura.yaml"

type Store struct {
	mu        sync.RWMutex
	structure []provider.StructureItem
	days      map[string]map[string]core.Attendance
	versions  map[string]int64
}

func New(structure []provider.StructureItem) *Store {
	return &Store{
		structure: structure,
		days:      map[string]map[string]core.Attendance{},
		versions:  map[string]int64{},
	}
}

// NewFromDir loads dir/estrutura.yaml. A missing seed yields an empty
// structure so every date reads as a table with no rows.
func NewFromDir(dir string) (*Store, error) {
	path := filepath.Join(dir, SeedFile)
	structure, err := provider.LoadStructure(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Structure seed not found, starting empty", "path", path)
		return New(nil), nil
	}
	if err != nil {
		return nil, err
	}
	slog.Info("Loaded structure seed", "path", path, "items", len(structure))
	return New(structure), nil
}

// Structure returns the configured item layout.
func (s *Store) Structure() []provider.StructureItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]provider.StructureItem(nil), s.structure...)
}

func (s *Store) LoadRecord(ctx context.Context, date core.Date) (*core.Record, error) {
	if err := date.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	today := make(map[string]core.Attendance, len(s.days[date.ISO()]))
	for k, v := range s.days[date.ISO()] {
		today[k] = v
	}
	return provider.BuildRecord(date, s.structure, today, s.monthToDate(date)), nil
}

// monthToDate sums recorded figures of the same month strictly before date.
func (s *Store) monthToDate(date core.Date) map[string]int {
	from, to := date.MonthStart().ISO(), date.ISO()
	out := map[string]int{}
	for day, values := range s.days {
		if day < from || day >= to {
			continue
		}
		for key, v := range values {
			out[key] += v.OrZero()
		}
	}
	return out
}

func (s *Store) WriteAttendance(ctx context.Context, date core.Date, values []provider.ItemAttendance) (int64, error) {
	if err := date.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	known := make(map[string]struct{}, len(s.structure))
	for _, it := range s.structure {
		known[it.Key] = struct{}{}
	}

	day := make(map[string]core.Attendance, len(values))
	for _, v := range values {
		if _, ok := known[v.Key]; !ok {
			return 0, fmt.Errorf("%w: %q", provider.ErrUnknownItem, v.Key)
		}
		if v.Attended.Valid() {
			day[v.Key] = v.Attended
		}
	}
	s.days[date.ISO()] = day
	s.versions[date.ISO()]++
	return s.versions[date.ISO()], nil
}
