package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ErrorResponse cuerpo de error HTTP.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// DateLayout formato de fechas civiles en la API (AAAA-MM-DD).
const DateLayout = "2006-01-02"

// Date fecha civil sin hora, serializada como "AAAA-MM-DD".
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("fecha inválida, use AAAA-MM-DD")
	}
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("fecha inválida, use AAAA-MM-DD")
	}
	d.Time = t
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(DateLayout))
}

// Ptr devuelve la fecha como *time.Time (nil si d es nil).
func (d *Date) Ptr() *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

// FormatDate formatea una fecha opcional; nil si no hay fecha.
func FormatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(DateLayout)
	return &s
}

// QuantityText cantidad tal como la envió el cliente: acepta número JSON o string.
// La interpretación (y el descarte de valores ilegibles) queda en el caso de uso.
type QuantityText string

func (q *QuantityText) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*q = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*q = QuantityText(s)
		return nil
	}
	*q = QuantityText(b)
	return nil
}
