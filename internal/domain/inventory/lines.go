package inventory

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/refugio-api/internal/domain/entity"
)

// RawLine línea solicitada tal como llega del formulario (cantidad sin interpretar).
type RawLine struct {
	SupplyID int64
	Quantity string
}

// MergeLines suma las cantidades de insumos repetidos y descarta las entradas con id inválido
// o cantidad no positiva, ilegible o fuera de rango (también si la suma se sale de rango).
// El resultado queda ordenado por id de insumo.
func MergeLines(raw []RawLine) []entity.TreatmentLine {
	totals := make(map[int64]decimal.Decimal)
	for _, r := range raw {
		if r.SupplyID <= 0 {
			continue
		}
		q, ok := ParseQuantity(r.Quantity)
		if !ok || !q.IsPositive() {
			continue
		}
		totals[r.SupplyID] = totals[r.SupplyID].Add(q)
	}
	lines := make([]entity.TreatmentLine, 0, len(totals))
	for id, q := range totals {
		if !ValidQuantity(q) {
			continue
		}
		lines = append(lines, entity.TreatmentLine{SupplyID: id, Quantity: q})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].SupplyID < lines[j].SupplyID })
	return lines
}

// SupplyIDs devuelve los ids de insumo de las líneas, únicos y en orden ascendente.
// Es el orden de bloqueo que deben respetar todas las aprobaciones.
func SupplyIDs(lines []entity.TreatmentLine) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.SupplyID]; ok {
			continue
		}
		seen[l.SupplyID] = struct{}{}
		ids = append(ids, l.SupplyID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
