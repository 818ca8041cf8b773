package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Supply representa un insumo médico del refugio (nombre único sin distinguir mayúsculas, unidad y stock).
// Stock nunca es negativo; ExpiresAt es opcional y se compara a nivel de fecha.
type Supply struct {
	ID        int64
	Name      string
	Unit      string
	Stock     decimal.Decimal
	ExpiresAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsExpired indica si el insumo venció antes de today.
func (s *Supply) IsExpired(today time.Time) bool {
	if s.ExpiresAt == nil {
		return false
	}
	return DateOf(*s.ExpiresAt).Before(DateOf(today))
}

// Covers indica si el stock alcanza para qty.
func (s *Supply) Covers(qty decimal.Decimal) bool {
	return s.Stock.GreaterThanOrEqual(qty)
}
