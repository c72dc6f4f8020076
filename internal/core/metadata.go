package core

type (
	// ItemMeta is the structural identity of an item: no attendance figures.
	ItemMeta struct {
		Key         string  `validate:"omitempty,max=64"`
		Label       string  `validate:"required,max=200"`
		DailyGoal   float64 `validate:"gte=0"`
		MonthlyGoal float64 `validate:"gte=0"`
	}

	HeaderMeta struct {
		Label string     `validate:"max=200"`
		Items []ItemMeta `validate:"dive"`
	}

	// HeaderMetadata accompanies a save so the provider can check that the
	// client edited the same structure it serves.
	HeaderMetadata struct {
		Specialties   []HeaderMeta `validate:"dive"`
		SurgicalTeams []HeaderMeta `validate:"dive"`
	}

	// SaveRequest carries the raw edited rows, not a merged record.
	SaveRequest struct {
		Date           Date
		Rows           []RowModel `validate:"dive"`
		HeaderMetadata HeaderMetadata
	}
)

// Group returns the header metadata of the given group.
func (m HeaderMetadata) Group(key GroupKey) []HeaderMeta {
	switch key {
	case Specialties:
		return m.Specialties
	case SurgicalTeams:
		return m.SurgicalTeams
	default:
		return nil
	}
}

// ItemCount returns the number of items described across both groups.
func (m HeaderMetadata) ItemCount() int {
	n := 0
	for _, key := range GroupKeys {
		for _, h := range m.Group(key) {
			n += len(h.Items)
		}
	}
	return n
}

// Matches reports whether two metadata describe the same structure. Keys are
// compared only when both sides carry one, so clients that predate item keys
// still validate by label and goals.
func (m HeaderMetadata) Matches(o HeaderMetadata) bool {
	for _, key := range GroupKeys {
		a, b := m.Group(key), o.Group(key)
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i].Label != b[i].Label || len(a[i].Items) != len(b[i].Items) {
				return false
			}
			for j := range a[i].Items {
				x, y := a[i].Items[j], b[i].Items[j]
				if x.Key != "" && y.Key != "" && x.Key != y.Key {
					return false
				}
				if x.Label != y.Label || x.DailyGoal != y.DailyGoal || x.MonthlyGoal != y.MonthlyGoal {
					return false
				}
			}
		}
	}
	return true
}
