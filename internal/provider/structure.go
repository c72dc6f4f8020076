package provider

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"boletim/internal/core"
)

// StructureItem places one item in the table: its group, header and
// position, plus the goals the provider serves for it.
type StructureItem struct {
	Group       core.GroupKey
	Header      string
	HeaderPos   int
	ItemPos     int
	Key         string
	Label       string
	DailyGoal   float64
	MonthlyGoal float64
}

// BuildRecord assembles a record from an ordered structure and the day's
// figures. today holds the day's values by item key; monthToDate holds the
// sums of the month's earlier days.
func BuildRecord(date core.Date, structure []StructureItem, today map[string]core.Attendance, monthToDate map[string]int) *core.Record {
	rec := &core.Record{
		Date:          date,
		Specialties:   []core.CategoryHeader{},
		SurgicalTeams: []core.CategoryHeader{},
	}
	lastPos := map[core.GroupKey]int{core.Specialties: -1, core.SurgicalTeams: -1}
	for _, s := range structure {
		headers := &rec.Specialties
		if s.Group == core.SurgicalTeams {
			headers = &rec.SurgicalTeams
		}
		n := len(*headers)
		if n == 0 || lastPos[s.Group] != s.HeaderPos {
			*headers = append(*headers, core.CategoryHeader{Label: s.Header, Items: []core.Item{}})
			lastPos[s.Group] = s.HeaderPos
			n++
		}
		h := &(*headers)[n-1]
		h.Items = append(h.Items, core.Item{
			Key:                 s.Key,
			Label:               s.Label,
			DailyGoal:           s.DailyGoal,
			MonthlyGoal:         s.MonthlyGoal,
			AttendedMonthToDate: monthToDate[s.Key],
			AttendedToday:       today[s.Key],
		})
	}
	return rec
}

type (
	seedFile struct {
		Specialties   []seedHeader `yaml:"specialties"`
		SurgicalTeams []seedHeader `yaml:"surgicalTeams"`
	}

	seedHeader struct {
		Label string     `yaml:"label"`
		Items []seedItem `yaml:"items"`
	}

	seedItem struct {
		Key         string  `yaml:"key"`
		Label       string  `yaml:"label"`
		DailyGoal   float64 `yaml:"dailyGoal"`
		MonthlyGoal float64 `yaml:"monthlyGoal"`
	}
)

// LoadStructure reads a YAML structure seed. Items without a key get a
// fresh UUID.
func LoadStructure(path string) ([]StructureItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read structure seed: %w", err)
	}
	return ParseStructure(data)
}

// ParseStructure decodes a YAML structure seed.
func ParseStructure(data []byte) ([]StructureItem, error) {
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse structure seed: %w", err)
	}

	var out []StructureItem
	seen := map[string]struct{}{}
	for _, g := range []struct {
		key     core.GroupKey
		headers []seedHeader
	}{
		{core.Specialties, seed.Specialties},
		{core.SurgicalTeams, seed.SurgicalTeams},
	} {
		for hi, h := range g.headers {
			for ii, it := range h.Items {
				label := strings.TrimSpace(it.Label)
				if label == "" {
					return nil, fmt.Errorf("%s/%s item %d: empty label", g.key, h.Label, ii)
				}
				if it.DailyGoal < 0 || it.MonthlyGoal < 0 {
					return nil, fmt.Errorf("%s/%s/%s: goals must be non-negative", g.key, h.Label, label)
				}
				key := strings.TrimSpace(it.Key)
				if key == "" {
					key = uuid.NewString()
				}
				if _, dup := seen[key]; dup {
					return nil, fmt.Errorf("duplicate item key %q", key)
				}
				seen[key] = struct{}{}
				out = append(out, StructureItem{
					Group:       g.key,
					Header:      strings.TrimSpace(h.Label),
					HeaderPos:   hi,
					ItemPos:     ii,
					Key:         key,
					Label:       label,
					DailyGoal:   it.DailyGoal,
					MonthlyGoal: it.MonthlyGoal,
				})
			}
		}
	}
	return out, nil
}
