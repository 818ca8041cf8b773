package entity

import "time"

// DateOf trunca t a la fecha civil (medianoche UTC con el mismo año/mes/día).
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// LaterDate devuelve la fecha más lejana; nil se considera ausente.
func LaterDate(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.After(*a):
		return b
	default:
		return a
	}
}
