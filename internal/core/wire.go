package core

import (
	"encoding/json"
	"fmt"
)

// JSON encoding uses English keys. Decoding also accepts the Portuguese keys
// of the original tabela API so older clients keep working.

func first[T any](ps ...*T) (T, bool) {
	for _, p := range ps {
		if p != nil {
			return *p, true
		}
	}
	var zero T
	return zero, false
}

func firstOr[T any](def T, ps ...*T) T {
	if v, ok := first(ps...); ok {
		return v
	}
	return def
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, string(data))
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

type itemJSON struct {
	Key                 string     `json:"key,omitempty"`
	Label               string     `json:"label"`
	DailyGoal           float64    `json:"dailyGoal"`
	MonthlyGoal         float64    `json:"monthlyGoal"`
	AttendedMonthToDate int        `json:"attendedMonthToDate"`
	AttendedToday       Attendance `json:"attendedToday"`
}

type itemWire struct {
	Key                   *string     `json:"key"`
	Chave                 *string     `json:"chave"`
	Label                 *string     `json:"label"`
	Nome                  *string     `json:"nome"`
	DailyGoal             *float64    `json:"dailyGoal"`
	MetaDiaria            *float64    `json:"metaDiaria"`
	MonthlyGoal           *float64    `json:"monthlyGoal"`
	MetaMensal            *float64    `json:"metaMensal"`
	AttendedMonthToDate   *Attendance `json:"attendedMonthToDate"`
	PacientesAtendidosMes *Attendance `json:"pacientesAtendidosMes"`
	AttendedToday         *Attendance `json:"attendedToday"`
	PacientesAtendidosDia *Attendance `json:"pacientesAtendidosDia"`
}

func (it Item) MarshalJSON() ([]byte, error) {
	return json.Marshal(itemJSON(it))
}

func (it *Item) UnmarshalJSON(data []byte) error {
	var w itemWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*it = Item{
		Key:                 firstOr("", w.Key, w.Chave),
		Label:               firstOr("", w.Label, w.Nome),
		DailyGoal:           firstOr(0, w.DailyGoal, w.MetaDiaria),
		MonthlyGoal:         firstOr(0, w.MonthlyGoal, w.MetaMensal),
		AttendedMonthToDate: firstOr(Absent, w.AttendedMonthToDate, w.PacientesAtendidosMes).OrZero(),
		AttendedToday:       firstOr(Absent, w.AttendedToday, w.PacientesAtendidosDia),
	}
	return nil
}

type headerJSON struct {
	Label string `json:"label"`
	Items []Item `json:"items"`
}

type headerWire struct {
	Label          *string `json:"label"`
	Nome           *string `json:"nome"`
	Items          *[]Item `json:"items"`
	Especialidades *[]Item `json:"especialidades"`
	Cirurgioes     *[]Item `json:"cirurgioes"`
}

func (h CategoryHeader) MarshalJSON() ([]byte, error) {
	items := h.Items
	if items == nil {
		items = []Item{}
	}
	return json.Marshal(headerJSON{Label: h.Label, Items: items})
}

func (h *CategoryHeader) UnmarshalJSON(data []byte) error {
	var w headerWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*h = CategoryHeader{
		Label: firstOr("", w.Label, w.Nome),
		Items: firstOr(nil, w.Items, w.Especialidades, w.Cirurgioes),
	}
	return nil
}

type recordJSON struct {
	Date          Date             `json:"date"`
	Specialties   []CategoryHeader `json:"specialties"`
	SurgicalTeams []CategoryHeader `json:"surgicalTeams"`
}

type recordWire struct {
	Date                     *Date             `json:"date"`
	Data                     *Date             `json:"data"`
	Specialties              *[]CategoryHeader `json:"specialties"`
	EspecialidadesCabecalhos *[]CategoryHeader `json:"especialidadesCabecalhos"`
	SurgicalTeams            *[]CategoryHeader `json:"surgicalTeams"`
	CirurgioesCabecalhos     *[]CategoryHeader `json:"cirurgioesCabecalhos"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	out := recordJSON{Date: r.Date, Specialties: r.Specialties, SurgicalTeams: r.SurgicalTeams}
	if out.Specialties == nil {
		out.Specialties = []CategoryHeader{}
	}
	if out.SurgicalTeams == nil {
		out.SurgicalTeams = []CategoryHeader{}
	}
	return json.Marshal(out)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var w recordWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = Record{
		Date:          firstOr(Date{}, w.Date, w.Data),
		Specialties:   firstOr(nil, w.Specialties, w.EspecialidadesCabecalhos),
		SurgicalTeams: firstOr(nil, w.SurgicalTeams, w.CirurgioesCabecalhos),
	}
	return nil
}

type rowJSON struct {
	Index         int        `json:"index"`
	Key           string     `json:"key,omitempty"`
	AttendedToday Attendance `json:"attendedToday"`
}

type rowWire struct {
	Index              *int        `json:"index"`
	Indice             *int        `json:"indice"`
	Key                *string     `json:"key"`
	Chave              *string     `json:"chave"`
	AttendedToday      *Attendance `json:"attendedToday"`
	PacientesAtendidos *Attendance `json:"pacientesAtendidos"`
}

func (r RowModel) MarshalJSON() ([]byte, error) {
	return json.Marshal(rowJSON(r))
}

func (r *RowModel) UnmarshalJSON(data []byte) error {
	var w rowWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = RowModel{
		Index:         firstOr(-1, w.Index, w.Indice),
		Key:           firstOr("", w.Key, w.Chave),
		AttendedToday: firstOr(Absent, w.AttendedToday, w.PacientesAtendidos),
	}
	return nil
}

type itemMetaJSON struct {
	Key         string  `json:"key,omitempty"`
	Label       string  `json:"label"`
	DailyGoal   float64 `json:"dailyGoal"`
	MonthlyGoal float64 `json:"monthlyGoal"`
}

type itemMetaWire struct {
	Key         *string  `json:"key"`
	Chave       *string  `json:"chave"`
	Label       *string  `json:"label"`
	Nome        *string  `json:"nome"`
	DailyGoal   *float64 `json:"dailyGoal"`
	MetaDiaria  *float64 `json:"metaDiaria"`
	MonthlyGoal *float64 `json:"monthlyGoal"`
	MetaMensal  *float64 `json:"metaMensal"`
}

func (m ItemMeta) MarshalJSON() ([]byte, error) {
	return json.Marshal(itemMetaJSON(m))
}

func (m *ItemMeta) UnmarshalJSON(data []byte) error {
	var w itemMetaWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*m = ItemMeta{
		Key:         firstOr("", w.Key, w.Chave),
		Label:       firstOr("", w.Label, w.Nome),
		DailyGoal:   firstOr(0, w.DailyGoal, w.MetaDiaria),
		MonthlyGoal: firstOr(0, w.MonthlyGoal, w.MetaMensal),
	}
	return nil
}

type headerMetaJSON struct {
	Label string     `json:"label"`
	Items []ItemMeta `json:"items"`
}

type headerMetaWire struct {
	Label          *string     `json:"label"`
	Nome           *string     `json:"nome"`
	Items          *[]ItemMeta `json:"items"`
	Especialidades *[]ItemMeta `json:"especialidades"`
	Cirurgioes     *[]ItemMeta `json:"cirurgioes"`
}

func (h HeaderMeta) MarshalJSON() ([]byte, error) {
	items := h.Items
	if items == nil {
		items = []ItemMeta{}
	}
	return json.Marshal(headerMetaJSON{Label: h.Label, Items: items})
}

func (h *HeaderMeta) UnmarshalJSON(data []byte) error {
	var w headerMetaWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*h = HeaderMeta{
		Label: firstOr("", w.Label, w.Nome),
		Items: firstOr(nil, w.Items, w.Especialidades, w.Cirurgioes),
	}
	return nil
}

type metadataJSON struct {
	Specialties   []HeaderMeta `json:"specialties"`
	SurgicalTeams []HeaderMeta `json:"surgicalTeams"`
}

type metadataWire struct {
	Specialties              *[]HeaderMeta `json:"specialties"`
	EspecialidadesCabecalhos *[]HeaderMeta `json:"especialidadesCabecalhos"`
	SurgicalTeams            *[]HeaderMeta `json:"surgicalTeams"`
	CirurgioesCabecalhos     *[]HeaderMeta `json:"cirurgioesCabecalhos"`
}

func (m HeaderMetadata) MarshalJSON() ([]byte, error) {
	out := metadataJSON(m)
	if out.Specialties == nil {
		out.Specialties = []HeaderMeta{}
	}
	if out.SurgicalTeams == nil {
		out.SurgicalTeams = []HeaderMeta{}
	}
	return json.Marshal(out)
}

func (m *HeaderMetadata) UnmarshalJSON(data []byte) error {
	var w metadataWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*m = HeaderMetadata{
		Specialties:   firstOr(nil, w.Specialties, w.EspecialidadesCabecalhos),
		SurgicalTeams: firstOr(nil, w.SurgicalTeams, w.CirurgioesCabecalhos),
	}
	return nil
}

type saveRequestJSON struct {
	Date           Date           `json:"date"`
	Rows           []RowModel     `json:"rows"`
	HeaderMetadata HeaderMetadata `json:"headerMetadata"`
}

type saveRequestWire struct {
	Date           *Date           `json:"date"`
	Data           *Date           `json:"data"`
	Rows           *[]RowModel     `json:"rows"`
	Linhas         *[]RowModel     `json:"linhas"`
	HeaderMetadata *HeaderMetadata `json:"headerMetadata"`
	Cabecalhos     *HeaderMetadata `json:"cabecalhos"`
}

func (s SaveRequest) MarshalJSON() ([]byte, error) {
	out := saveRequestJSON(s)
	if out.Rows == nil {
		out.Rows = []RowModel{}
	}
	return json.Marshal(out)
}

func (s *SaveRequest) UnmarshalJSON(data []byte) error {
	var w saveRequestWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = SaveRequest{
		Date:           firstOr(Date{}, w.Date, w.Data),
		Rows:           firstOr(nil, w.Rows, w.Linhas),
		HeaderMetadata: firstOr(HeaderMetadata{}, w.HeaderMetadata, w.Cabecalhos),
	}
	return nil
}
