package treatment

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/refugio-api/internal/domain"
	"github.com/jhoicas/refugio-api/internal/domain/entity"
	"github.com/jhoicas/refugio-api/internal/domain/inventory"
	"github.com/jhoicas/refugio-api/internal/domain/repository"
)

// LineResult línea resultante de una edición del borrador.
// Warning no es nil si la cantidad total supera el stock actual; la edición igual queda guardada.
type LineResult struct {
	Line    entity.TreatmentLine
	Warning *domain.StockIssue
}

// AddOrMergeLine agrega qty del insumo al borrador; si la línea ya existe suma la cantidad.
func (s *Service) AddOrMergeLine(ctx context.Context, id, supplyID int64, qty decimal.Decimal) (*LineResult, error) {
	var result LineResult
	err := s.withPending(ctx, id, func(t *entity.Treatment, supplies repository.SupplyRepository, treatments repository.TreatmentRepository) error {
		qty, err := positiveQuantity(qty)
		if err != nil {
			return err
		}
		sup, err := supplies.GetByID(ctx, supplyID)
		if err != nil {
			return err
		}
		if sup == nil {
			return domain.NotFoundf("insumo #%d inexistente", supplyID)
		}
		line, ok := t.Line(supplyID)
		if !ok {
			line = entity.TreatmentLine{TreatmentID: t.ID, SupplyID: supplyID, Quantity: decimal.Zero}
		}
		total := line.Quantity.Add(qty)
		if !inventory.ValidQuantity(total) {
			return domain.Validationf("la cantidad total del insumo #%d quedaría fuera de rango", supplyID)
		}
		line.Quantity = total
		if err := treatments.UpsertLine(ctx, line); err != nil {
			return err
		}
		result = LineResult{Line: line, Warning: inventory.Shortage(line, sup)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logLine(id, result, "línea agregada")
	return &result, nil
}

// SetLineQuantity reemplaza la cantidad de una línea existente del borrador.
func (s *Service) SetLineQuantity(ctx context.Context, id, supplyID int64, qty decimal.Decimal) (*LineResult, error) {
	var result LineResult
	err := s.withPending(ctx, id, func(t *entity.Treatment, supplies repository.SupplyRepository, treatments repository.TreatmentRepository) error {
		qty, err := positiveQuantity(qty)
		if err != nil {
			return err
		}
		line, ok := t.Line(supplyID)
		if !ok {
			return domain.NotFoundf("el tratamiento #%d no tiene línea del insumo #%d", id, supplyID)
		}
		line.Quantity = qty
		if err := treatments.UpsertLine(ctx, line); err != nil {
			return err
		}
		sup, err := supplies.GetByID(ctx, supplyID)
		if err != nil {
			return err
		}
		result = LineResult{Line: line, Warning: inventory.Shortage(line, sup)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logLine(id, result, "línea actualizada")
	return &result, nil
}

// RemoveLine elimina la línea del insumo indicado del borrador.
func (s *Service) RemoveLine(ctx context.Context, id, supplyID int64) error {
	return s.withPending(ctx, id, func(t *entity.Treatment, _ repository.SupplyRepository, treatments repository.TreatmentRepository) error {
		if _, ok := t.Line(supplyID); !ok {
			return domain.NotFoundf("el tratamiento #%d no tiene línea del insumo #%d", id, supplyID)
		}
		return treatments.DeleteLine(ctx, id, supplyID)
	})
}

// positiveQuantity exige 0 < qty dentro del rango de cantidades. Se evalúa después de confirmar
// que el tratamiento sigue Pendiente.
func positiveQuantity(qty decimal.Decimal) (decimal.Decimal, error) {
	qty, err := inventory.CheckQuantity(qty)
	if err != nil {
		return decimal.Zero, err
	}
	if !qty.IsPositive() {
		return decimal.Zero, domain.Validationf("la cantidad debe ser > 0")
	}
	return qty, nil
}

func (s *Service) logLine(id int64, r LineResult, msg string) {
	ev := s.log.Debug()
	if r.Warning != nil {
		ev = s.log.Warn().Str("available", r.Warning.Available.String())
	}
	ev.Int64("treatment_id", id).
		Int64("supply_id", r.Line.SupplyID).
		Str("quantity", r.Line.Quantity.String()).
		Msg(msg)
}
