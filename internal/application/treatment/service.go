package treatment

import (
	"context"
	"strings"
	"time"

	"github.com/jhoicas/refugio-api/internal/application/ports"
	"github.com/jhoicas/refugio-api/internal/domain"
	"github.com/jhoicas/refugio-api/internal/domain/entity"
	"github.com/jhoicas/refugio-api/internal/domain/inventory"
	"github.com/jhoicas/refugio-api/internal/domain/repository"
	"github.com/jhoicas/refugio-api/pkg/logger"
)

// Service coordina el ciclo de vida de los tratamientos: borrador (Pendiente), aprobación con
// descuento de stock y rechazo. Aprobado y Rechazado son terminales.
type Service struct {
	txRunner   ports.TxRunner
	supplies   repository.SupplyRepository
	treatments repository.TreatmentRepository
	clock      ports.Clock
	log        *logger.Logger
}

// NewService construye el servicio de tratamientos.
func NewService(
	txRunner ports.TxRunner,
	supplies repository.SupplyRepository,
	treatments repository.TreatmentRepository,
	clock ports.Clock,
	log *logger.Logger,
) *Service {
	return &Service{
		txRunner:   txRunner,
		supplies:   supplies,
		treatments: treatments,
		clock:      clock,
		log:        log.Component("treatments"),
	}
}

// CreateInput entrada para registrar un tratamiento. AuthorID viene de la identidad del usuario.
type CreateInput struct {
	AnimalID    int64
	AuthorID    int64
	Type        string
	Description *string
	Date        *time.Time
	Lines       []inventory.RawLine
}

// UpdateDraftInput campos editables de un borrador (nil = sin cambio).
type UpdateDraftInput struct {
	Type        *string
	Description *string
}

// CreateResult tratamiento creado más las líneas que hoy superan el stock.
type CreateResult struct {
	Treatment *entity.Treatment
	Warnings  []domain.StockIssue
}

func (s *Service) today() time.Time {
	return entity.DateOf(s.clock.Now())
}

// Create registra un tratamiento Pendiente con sus líneas. Ids de insumo repetidos se suman y las
// cantidades no positivas o ilegibles se descartan. Superar el stock no impide guardar: se informa como advertencia.
func (s *Service) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	if in.AnimalID <= 0 {
		return nil, domain.Validationf("animal_id es obligatorio")
	}
	if in.AuthorID <= 0 {
		return nil, domain.Validationf("el autor del tratamiento es obligatorio")
	}
	typ := strings.TrimSpace(in.Type)
	if typ == "" {
		return nil, domain.Validationf("el tipo es obligatorio")
	}
	date := s.today()
	if in.Date != nil {
		date = entity.DateOf(*in.Date)
	}
	lines := inventory.MergeLines(in.Lines)
	now := s.clock.Now()

	t := &entity.Treatment{
		AnimalID:    in.AnimalID,
		AuthorID:    in.AuthorID,
		Type:        typ,
		Description: cleanDescription(in.Description),
		Date:        date,
		Status:      entity.TreatmentPending,
		Lines:       lines,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var warnings []domain.StockIssue
	err := s.txRunner.Run(ctx, func(supplies repository.SupplyRepository, treatments repository.TreatmentRepository) error {
		current, err := supplies.GetByIDs(ctx, inventory.SupplyIDs(lines))
		if err != nil {
			return err
		}
		for _, l := range lines {
			sup, ok := current[l.SupplyID]
			if !ok {
				return domain.NotFoundf("insumo #%d inexistente", l.SupplyID)
			}
			if issue := inventory.Shortage(l, sup); issue != nil {
				warnings = append(warnings, *issue)
			}
		}
		return treatments.Create(ctx, t)
	})
	if err != nil {
		return nil, domain.AsStorage("crear tratamiento", err)
	}

	ev := s.log.Info()
	if len(warnings) > 0 {
		ev = s.log.Warn().Int("warnings", len(warnings))
	}
	ev.Int64("treatment_id", t.ID).Int64("animal_id", t.AnimalID).Int("lines", len(t.Lines)).Msg("tratamiento creado")
	return &CreateResult{Treatment: t, Warnings: warnings}, nil
}

// Get obtiene un tratamiento con sus líneas.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Treatment, error) {
	t, err := s.treatments.GetByID(ctx, id)
	if err != nil {
		return nil, domain.AsStorage("obtener tratamiento", err)
	}
	if t == nil {
		return nil, domain.NotFoundf("tratamiento #%d", id)
	}
	return t, nil
}

// ListByAnimal lista los tratamientos de un animal ordenados por fecha y id.
func (s *Service) ListByAnimal(ctx context.Context, animalID int64) ([]*entity.Treatment, error) {
	list, err := s.treatments.ListByAnimal(ctx, animalID)
	if err != nil {
		return nil, domain.AsStorage("listar tratamientos", err)
	}
	return list, nil
}

// UpdateDraft cambia tipo y/o descripción de un tratamiento Pendiente.
func (s *Service) UpdateDraft(ctx context.Context, id int64, in UpdateDraftInput) (*entity.Treatment, error) {
	var typ string
	if in.Type != nil {
		if typ = strings.TrimSpace(*in.Type); typ == "" {
			return nil, domain.Validationf("el tipo es obligatorio")
		}
	}
	var result *entity.Treatment
	err := s.withPending(ctx, id, func(t *entity.Treatment, _ repository.SupplyRepository, treatments repository.TreatmentRepository) error {
		if typ != "" {
			t.Type = typ
		}
		if in.Description != nil {
			t.Description = cleanDescription(in.Description)
		}
		t.UpdatedAt = s.clock.Now()
		result = t
		return treatments.Update(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Reject pasa un tratamiento Pendiente a Rechazado. No toca el stock.
func (s *Service) Reject(ctx context.Context, id int64) (*entity.Treatment, error) {
	var result *entity.Treatment
	err := s.withPending(ctx, id, func(t *entity.Treatment, _ repository.SupplyRepository, treatments repository.TreatmentRepository) error {
		t.Status = entity.TreatmentRejected
		t.UpdatedAt = s.clock.Now()
		result = t
		return treatments.Update(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Int64("treatment_id", id).Msg("tratamiento rechazado")
	return result, nil
}

// Delete elimina un tratamiento y sus líneas. El stock ya descontado no se devuelve.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.txRunner.Run(ctx, func(_ repository.SupplyRepository, treatments repository.TreatmentRepository) error {
		t, err := treatments.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if t == nil {
			return domain.NotFoundf("tratamiento #%d", id)
		}
		return treatments.Delete(ctx, id)
	})
	if err != nil {
		return domain.AsStorage("eliminar tratamiento", err)
	}
	s.log.Info().Int64("treatment_id", id).Msg("tratamiento eliminado")
	return nil
}

// withPending abre una transacción, bloquea el tratamiento y exige que siga Pendiente antes de ejecutar fn.
func (s *Service) withPending(ctx context.Context, id int64, fn func(
	t *entity.Treatment,
	supplies repository.SupplyRepository,
	treatments repository.TreatmentRepository,
) error) error {
	err := s.txRunner.Run(ctx, func(supplies repository.SupplyRepository, treatments repository.TreatmentRepository) error {
		t, err := treatments.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if t == nil {
			return domain.NotFoundf("tratamiento #%d", id)
		}
		if !t.Editable() {
			return domain.InvalidStatef("el tratamiento #%d está %s; solo se puede modificar en estado %s", id, t.Status, entity.TreatmentPending)
		}
		return fn(t, supplies, treatments)
	})
	return domain.AsStorage("actualizar tratamiento", err)
}

func cleanDescription(d *string) *string {
	if d == nil {
		return nil
	}
	v := strings.TrimSpace(*d)
	if v == "" {
		return nil
	}
	return &v
}
