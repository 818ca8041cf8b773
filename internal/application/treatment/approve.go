package treatment

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/refugio-api/internal/domain"
	"github.com/jhoicas/refugio-api/internal/domain/entity"
	"github.com/jhoicas/refugio-api/internal/domain/inventory"
	"github.com/jhoicas/refugio-api/internal/domain/repository"
)

// Approve aprueba un tratamiento Pendiente y descuenta del stock cada insumo consumido.
//
// Primero valida sin bloqueos (fase precheck) para rechazar rápido. Luego, en una sola transacción,
// bloquea el tratamiento, confirma que sigue Pendiente, bloquea los insumos en orden ascendente de id,
// vuelve a validar (fase locked), descuenta y marca Aprobado. O se aplica todo o nada.
func (s *Service) Approve(ctx context.Context, id int64) (*entity.Treatment, error) {
	log := s.log.With().Int64("treatment_id", id).Logger()

	t, err := s.treatments.GetByID(ctx, id)
	if err != nil {
		return nil, domain.AsStorage("cargar tratamiento", err)
	}
	if t == nil {
		return nil, domain.NotFoundf("tratamiento #%d", id)
	}
	if t.Status != entity.TreatmentPending {
		return nil, domain.InvalidStatef("el tratamiento #%d ya está %s", id, t.Status)
	}

	today := s.today()
	if len(t.Lines) > 0 {
		current, err := s.supplies.GetByIDs(ctx, inventory.SupplyIDs(t.Lines))
		if err != nil {
			return nil, domain.AsStorage("verificar stock", err)
		}
		if err := checkStock(t.Lines, current, today, domain.PhasePrecheck); err != nil {
			logRefused(log.Warn(), err)
			return nil, err
		}
	}

	var approved *entity.Treatment
	err = s.txRunner.Run(ctx, func(supplies repository.SupplyRepository, treatments repository.TreatmentRepository) error {
		locked, err := treatments.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if locked == nil {
			return domain.NotFoundf("tratamiento #%d", id)
		}
		if locked.Status != entity.TreatmentPending {
			return domain.InvalidStatef("el tratamiento #%d ya está %s", id, locked.Status)
		}

		// Las líneas se releen bajo el bloqueo: el borrador pudo cambiar después del precheck.
		if len(locked.Lines) > 0 {
			rows, err := supplies.GetForUpdate(ctx, inventory.SupplyIDs(locked.Lines))
			if err != nil {
				return err
			}
			byID := make(map[int64]*entity.Supply, len(rows))
			for _, r := range rows {
				byID[r.ID] = r
			}
			if err := checkStock(locked.Lines, byID, today, domain.PhaseLocked); err != nil {
				return err
			}
			now := s.clock.Now()
			for _, l := range locked.Lines {
				sup := byID[l.SupplyID]
				sup.Stock = sup.Stock.Sub(l.Quantity)
				sup.UpdatedAt = now
				if err := supplies.Update(ctx, sup); err != nil {
					return err
				}
			}
		}

		locked.Status = entity.TreatmentApproved
		locked.UpdatedAt = s.clock.Now()
		if err := treatments.Update(ctx, locked); err != nil {
			return err
		}
		approved = locked
		return nil
	})
	if err != nil {
		err = domain.AsStorage("aprobar tratamiento", err)
		switch {
		case errors.Is(err, domain.ErrStorage):
			log.Error().Err(err).Msg("aprobación revertida")
		default:
			logRefused(log.Warn(), err)
		}
		return nil, err
	}

	log.Info().Int("lines", len(approved.Lines)).Msg("tratamiento aprobado")
	return approved, nil
}

func checkStock(lines []entity.TreatmentLine, supplies map[int64]*entity.Supply, today time.Time, phase domain.StockPhase) error {
	issues, missing := inventory.CheckLines(lines, supplies, today)
	if len(missing) > 0 {
		ids := make([]string, 0, len(missing))
		for _, m := range missing {
			ids = append(ids, "#"+strconv.FormatInt(m, 10))
		}
		return domain.NotFoundf("insumo %s inexistente", strings.Join(ids, ", "))
	}
	if len(issues) > 0 {
		return &domain.StockError{Phase: phase, Issues: issues}
	}
	return nil
}

func logRefused(ev *zerolog.Event, err error) {
	var se *domain.StockError
	if errors.As(err, &se) {
		ev = ev.Str("phase", string(se.Phase)).Int("issues", len(se.Issues))
	}
	ev.Err(err).Msg("aprobación rechazada")
}
