package strelka

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Status is what the API knows about a card. Nil fields were absent from the
// response.
type Status struct {
	// Balance is in kopecks.
	Balance *decimal.Decimal
	// RawBalance holds a non-numeric balance value as sent by the API.
	RawBalance string
	Active     *bool
	Blocked    *bool
	Trips      *string
	State      string
}

func parseStatus(data map[string]any) *Status {
	card := data
	if nested, ok := data["card"].(map[string]any); ok {
		card = nested
	}

	st := &Status{}
	switch v := card["balance"].(type) {
	case nil:
	case json.Number:
		if d, err := decimal.NewFromString(v.String()); err == nil {
			st.Balance = &d
		} else {
			st.RawBalance = v.String()
		}
	default:
		st.RawBalance = fmt.Sprint(v)
	}

	if v, ok := card["cardactive"]; ok && v != nil {
		b := truthy(v)
		st.Active = &b
	}
	if v, ok := card["cardblocked"]; ok && v != nil {
		b := truthy(v)
		st.Blocked = &b
	}
	if v, ok := card["numoftrips"]; ok && v != nil {
		s := fmt.Sprint(v)
		st.Trips = &s
	}
	if v, ok := card["status"].(string); ok {
		st.State = v
	}
	return st
}

// Empty reports whether none of the known fields were present.
func (s *Status) Empty() bool {
	return s.Balance == nil && s.RawBalance == "" && s.Active == nil &&
		s.Blocked == nil && s.Trips == nil && s.State == ""
}

// Rubles returns the balance converted from kopecks, or false if unknown.
func (s *Status) Rubles() (decimal.Decimal, bool) {
	if s.Balance == nil {
		return decimal.Zero, false
	}
	return s.Balance.Shift(-2), true
}

// Format renders the status as the reply text sent to the user.
func (s *Status) Format() string {
	lines := []string{"Информация по карте:"}

	if rub, ok := s.Rubles(); ok {
		lines = append(lines, fmt.Sprintf("Баланс: %s руб. (%s коп.)",
			moneyString(rub), s.Balance.String()))
	} else if s.RawBalance != "" {
		lines = append(lines, "Баланс: "+s.RawBalance)
	}
	if s.State != "" {
		lines = append(lines, "Статус: "+s.State)
	}
	if s.Active != nil {
		lines = append(lines, "Карта активна: "+yesNo(*s.Active))
	}
	if s.Blocked != nil {
		lines = append(lines, "Карта заблокирована: "+yesNo(*s.Blocked))
	}
	if s.Trips != nil {
		lines = append(lines, "Поездок: "+*s.Trips)
	}

	if len(lines) == 1 {
		lines = append(lines, "API не вернуло ожидаемые поля (balance/cardactive/cardblocked).")
	}
	return strings.Join(lines, "\n")
}

// moneyString keeps every significant digit and pads to two decimals.
func moneyString(d decimal.Decimal) string {
	s := d.String()
	if i := strings.IndexByte(s, '.'); i < 0 || len(s)-i-1 < 2 {
		return d.StringFixed(2)
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "да"
	}
	return "нет"
}

func truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		return err != nil || !d.IsZero()
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}
