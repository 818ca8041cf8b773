package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/refugio-api/internal/application/dto"
	"github.com/jhoicas/refugio-api/internal/application/ports"
	"github.com/jhoicas/refugio-api/internal/domain"
	"github.com/jhoicas/refugio-api/internal/domain/entity"
	"github.com/jhoicas/refugio-api/internal/domain/inventory"
	"github.com/jhoicas/refugio-api/internal/domain/repository"
	"github.com/jhoicas/refugio-api/pkg/logger"
)

// SupplyUseCase libro de insumos: alta con fusión, reposición, edición y baja.
// Toda mutación corre en una transacción con la fila del insumo bloqueada (SELECT FOR UPDATE).
type SupplyUseCase struct {
	txRunner ports.TxRunner
	repo     repository.SupplyRepository
	clock    ports.Clock
	log      *logger.Logger
}

// NewSupplyUseCase construye el caso de uso.
func NewSupplyUseCase(txRunner ports.TxRunner, repo repository.SupplyRepository, clock ports.Clock, log *logger.Logger) *SupplyUseCase {
	return &SupplyUseCase{txRunner: txRunner, repo: repo, clock: clock, log: log.Component("supplies")}
}

// CreateSupplyInput entrada para crear o fusionar un insumo. Quantity llega como texto.
type CreateSupplyInput struct {
	Name      string
	Unit      string
	Quantity  string
	ExpiresAt *time.Time
}

// EditSupplyInput campos opcionales a modificar (nil = sin cambio). El stock no se edita aquí.
type EditSupplyInput struct {
	Name        *string
	Unit        *string
	ExpiresAt   *time.Time
	ClearExpiry bool
}

func (uc *SupplyUseCase) today() time.Time {
	return entity.DateOf(uc.clock.Now())
}

// CreateOrMerge crea el insumo o, si ya existe uno con el mismo nombre (sin distinguir mayúsculas)
// y la misma unidad, le suma la cantidad y conserva el vencimiento más lejano.
// Mismo nombre con otra unidad es un conflicto y no modifica nada.
func (uc *SupplyUseCase) CreateOrMerge(ctx context.Context, in CreateSupplyInput) (*dto.SupplyMergeResponse, error) {
	name := inventory.NormalizeText(in.Name)
	unit := inventory.NormalizeText(in.Unit)
	if name == "" || unit == "" {
		return nil, domain.Validationf("nombre y unidad son obligatorios")
	}
	qty, ok := inventory.ParseQuantity(in.Quantity)
	if !ok || qty.IsNegative() {
		qty = decimal.Zero
	}
	expires, err := uc.futureDate(in.ExpiresAt)
	if err != nil {
		return nil, err
	}

	now := uc.clock.Now()
	var (
		result  *entity.Supply
		merged  bool
		warning string
	)
	err = uc.txRunner.Run(ctx, func(supplies repository.SupplyRepository, _ repository.TreatmentRepository) error {
		existing, err := supplies.FindByNameForUpdate(ctx, name)
		if err != nil {
			return err
		}
		if existing != nil {
			if !inventory.SameUnit(existing.Unit, unit) {
				return domain.Conflictf("ya existe un insumo llamado %q con unidad %q", existing.Name, existing.Unit)
			}
			if existing.IsExpired(uc.today()) {
				warning = fmt.Sprintf("el insumo %s ya estaba vencido (vence: %s)", existing.Name, existing.ExpiresAt.Format(dto.DateLayout))
			}
			total := existing.Stock.Add(qty)
			if !inventory.ValidQuantity(total) {
				return domain.Validationf("el stock de %s quedaría fuera de rango (%s + %s)", existing.Name, existing.Stock, qty)
			}
			existing.Stock = total
			existing.ExpiresAt = entity.LaterDate(existing.ExpiresAt, expires)
			existing.UpdatedAt = now
			if err := supplies.Update(ctx, existing); err != nil {
				return err
			}
			result, merged = existing, true
			return nil
		}
		s := &entity.Supply{
			Name:      name,
			Unit:      unit,
			Stock:     qty,
			ExpiresAt: expires,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := supplies.Create(ctx, s); err != nil {
			return err
		}
		result = s
		return nil
	})
	if err != nil {
		return nil, domain.AsStorage("crear insumo", err)
	}

	ev := uc.log.Info()
	if warning != "" {
		ev = uc.log.Warn().Str("warning", warning)
	}
	ev.Int64("supply_id", result.ID).
		Str("name", result.Name).
		Bool("merged", merged).
		Str("added", qty.String()).
		Msg("insumo registrado")
	return &dto.SupplyMergeResponse{Supply: uc.toResponse(result), Merged: merged, Warning: warning}, nil
}

// Restock suma delta (o resta, si es negativo) al stock. Falla sin modificar nada si el stock quedaría negativo.
func (uc *SupplyUseCase) Restock(ctx context.Context, id int64, delta decimal.Decimal) (*dto.SupplyResponse, error) {
	delta, err := inventory.CheckQuantity(delta)
	if err != nil {
		return nil, err
	}
	var result *entity.Supply
	err = uc.txRunner.Run(ctx, func(supplies repository.SupplyRepository, _ repository.TreatmentRepository) error {
		s, err := lockOne(ctx, supplies, id)
		if err != nil {
			return err
		}
		next := s.Stock.Add(delta)
		if next.IsNegative() {
			return domain.Validationf("el stock de %s no puede quedar negativo (disponible: %s, ajuste: %s)", s.Name, s.Stock, delta)
		}
		if !inventory.ValidQuantity(next) {
			return domain.Validationf("el stock de %s quedaría fuera de rango (disponible: %s, ajuste: %s)", s.Name, s.Stock, delta)
		}
		s.Stock = next
		s.UpdatedAt = uc.clock.Now()
		if err := supplies.Update(ctx, s); err != nil {
			return err
		}
		result = s
		return nil
	})
	if err != nil {
		return nil, domain.AsStorage("ajustar stock", err)
	}
	uc.log.Info().Int64("supply_id", id).Str("delta", delta.String()).Str("stock", result.Stock.String()).Msg("stock ajustado")
	out := uc.toResponse(result)
	return &out, nil
}

// Edit cambia nombre, unidad o vencimiento. No toca el stock.
func (uc *SupplyUseCase) Edit(ctx context.Context, id int64, in EditSupplyInput) (*dto.SupplyResponse, error) {
	var name, unit string
	if in.Name != nil {
		if name = inventory.NormalizeText(*in.Name); name == "" {
			return nil, domain.Validationf("el nombre es obligatorio")
		}
	}
	if in.Unit != nil {
		if unit = inventory.NormalizeText(*in.Unit); unit == "" {
			return nil, domain.Validationf("la unidad es obligatoria")
		}
	}
	expires, err := uc.futureDate(in.ExpiresAt)
	if err != nil {
		return nil, err
	}

	var result *entity.Supply
	err = uc.txRunner.Run(ctx, func(supplies repository.SupplyRepository, _ repository.TreatmentRepository) error {
		s, err := lockOne(ctx, supplies, id)
		if err != nil {
			return err
		}
		if name != "" {
			other, err := supplies.FindByName(ctx, name)
			if err != nil {
				return err
			}
			if other != nil && other.ID != s.ID {
				return domain.Conflictf("ya existe otro insumo llamado %q", other.Name)
			}
			s.Name = name
		}
		if unit != "" {
			s.Unit = unit
		}
		switch {
		case expires != nil:
			s.ExpiresAt = expires
		case in.ClearExpiry:
			s.ExpiresAt = nil
		}
		s.UpdatedAt = uc.clock.Now()
		if err := supplies.Update(ctx, s); err != nil {
			return err
		}
		result = s
		return nil
	})
	if err != nil {
		return nil, domain.AsStorage("editar insumo", err)
	}
	out := uc.toResponse(result)
	return &out, nil
}

// Delete elimina el insumo si ninguna línea de tratamiento lo referencia.
func (uc *SupplyUseCase) Delete(ctx context.Context, id int64) error {
	err := uc.txRunner.Run(ctx, func(supplies repository.SupplyRepository, _ repository.TreatmentRepository) error {
		s, err := lockOne(ctx, supplies, id)
		if err != nil {
			return err
		}
		used, err := supplies.IsReferenced(ctx, id)
		if err != nil {
			return err
		}
		if used {
			return domain.Conflictf("el insumo %q está siendo usado en tratamientos", s.Name)
		}
		return supplies.Delete(ctx, id)
	})
	if err != nil {
		return domain.AsStorage("eliminar insumo", err)
	}
	uc.log.Info().Int64("supply_id", id).Msg("insumo eliminado")
	return nil
}

// GetByID obtiene un insumo por id.
func (uc *SupplyUseCase) GetByID(ctx context.Context, id int64) (*dto.SupplyResponse, error) {
	s, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, domain.AsStorage("obtener insumo", err)
	}
	if s == nil {
		return nil, domain.NotFoundf("insumo #%d", id)
	}
	out := uc.toResponse(s)
	return &out, nil
}

// List lista insumos filtrando por nombre o unidad (vacío = todos).
func (uc *SupplyUseCase) List(ctx context.Context, query string) (*dto.SupplyListResponse, error) {
	list, err := uc.repo.List(ctx, inventory.NormalizeText(query))
	if err != nil {
		return nil, domain.AsStorage("listar insumos", err)
	}
	items := make([]dto.SupplyResponse, 0, len(list))
	for _, s := range list {
		items = append(items, uc.toResponse(s))
	}
	return &dto.SupplyListResponse{Items: items, Total: len(items)}, nil
}

// futureDate normaliza una fecha opcional y rechaza las anteriores a hoy.
func (uc *SupplyUseCase) futureDate(t *time.Time) (*time.Time, error) {
	if t == nil {
		return nil, nil
	}
	d := entity.DateOf(*t)
	if d.Before(uc.today()) {
		return nil, domain.Validationf("la fecha de vencimiento %s ya pasó", d.Format(dto.DateLayout))
	}
	return &d, nil
}

func (uc *SupplyUseCase) toResponse(s *entity.Supply) dto.SupplyResponse {
	return dto.SupplyResponse{
		ID:        s.ID,
		Name:      s.Name,
		Unit:      s.Unit,
		Stock:     s.Stock,
		ExpiresAt: dto.FormatDate(s.ExpiresAt),
		Expired:   s.IsExpired(uc.today()),
	}
}

func lockOne(ctx context.Context, supplies repository.SupplyRepository, id int64) (*entity.Supply, error) {
	locked, err := supplies.GetForUpdate(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	if len(locked) == 0 {
		return nil, domain.NotFoundf("insumo #%d", id)
	}
	return locked[0], nil
}
