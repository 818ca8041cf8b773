package inventory

import (
	"time"

	"github.com/jhoicas/refugio-api/internal/domain"
	"github.com/jhoicas/refugio-api/internal/domain/entity"
)

// CheckLines valida cada línea contra el estado del insumo: stock suficiente y no vencido a la fecha today.
// Devuelve los ids de insumo inexistentes por separado de los faltantes/vencimientos.
func CheckLines(lines []entity.TreatmentLine, supplies map[int64]*entity.Supply, today time.Time) (issues []domain.StockIssue, missing []int64) {
	for _, l := range lines {
		s, ok := supplies[l.SupplyID]
		if !ok || s == nil {
			missing = append(missing, l.SupplyID)
			continue
		}
		if !s.Covers(l.Quantity) {
			issues = append(issues, domain.StockIssue{
				SupplyID:  s.ID,
				Name:      s.Name,
				Reason:    domain.ReasonShortage,
				Required:  l.Quantity,
				Available: s.Stock,
			})
		}
		if s.IsExpired(today) {
			issues = append(issues, domain.StockIssue{
				SupplyID:  s.ID,
				Name:      s.Name,
				Reason:    domain.ReasonExpired,
				Required:  l.Quantity,
				Available: s.Stock,
				ExpiresAt: s.ExpiresAt,
			})
		}
	}
	return issues, missing
}

// Shortage devuelve el faltante de una sola línea (nil si el stock alcanza).
// Se usa para las advertencias no fatales del borrador; no considera vencimiento.
func Shortage(line entity.TreatmentLine, supply *entity.Supply) *domain.StockIssue {
	if supply == nil || supply.Covers(line.Quantity) {
		return nil
	}
	return &domain.StockIssue{
		SupplyID:  supply.ID,
		Name:      supply.Name,
		Reason:    domain.ReasonShortage,
		Required:  line.Quantity,
		Available: supply.Stock,
	}
}
