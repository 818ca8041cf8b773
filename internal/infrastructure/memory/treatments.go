package memory

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/refugio-api/internal/domain"
	"github.com/jhoicas/refugio-api/internal/domain/entity"
)

type treatmentRepo struct {
	s  *Store
	tx *tx
}

func (r *treatmentRepo) Create(ctx context.Context, t *entity.Treatment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !t.Status.Valid() {
		return domain.Validationf("estado %q inválido", t.Status)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, l := range t.Lines {
		if _, ok := r.s.supplyVisibleLocked(r.tx, l.SupplyID); !ok {
			return domain.NotFoundf("insumo #%d inexistente", l.SupplyID)
		}
	}
	r.s.nextTreatment++
	t.ID = r.s.nextTreatment
	r.s.shadowTreatmentLocked(r.tx, t.ID)
	bySupply := make(map[int64]decimal.Decimal, len(t.Lines))
	for i := range t.Lines {
		t.Lines[i].TreatmentID = t.ID
		bySupply[t.Lines[i].SupplyID] = t.Lines[i].Quantity
	}
	r.s.treatments[t.ID] = copyTreatment(t)
	r.s.lines[t.ID] = bySupply
	id := t.ID
	r.tx.record(func() {
		delete(r.s.treatments, id)
		delete(r.s.lines, id)
	})
	return nil
}

func (r *treatmentRepo) GetByID(ctx context.Context, id int64) (*entity.Treatment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.treatmentVisibleLocked(r.tx, id), nil
}

func (r *treatmentRepo) GetForUpdate(ctx context.Context, id int64) (*entity.Treatment, error) {
	if err := withRowLock(ctx, r.tx, treatmentKey(id)); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *treatmentRepo) Update(ctx context.Context, t *entity.Treatment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !t.Status.Valid() {
		return domain.Validationf("estado %q inválido", t.Status)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	prev, ok := r.s.treatments[t.ID]
	if !ok {
		return domain.NotFoundf("tratamiento #%d", t.ID)
	}
	r.s.shadowTreatmentLocked(r.tx, t.ID)
	next := prev
	next.Type = t.Type
	next.Description = t.Description
	next.Status = t.Status
	next.UpdatedAt = t.UpdatedAt
	r.s.treatments[t.ID] = next
	r.tx.record(func() { r.s.treatments[prev.ID] = prev })
	return nil
}

func (r *treatmentRepo) UpsertLine(ctx context.Context, line entity.TreatmentLine) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !line.Quantity.IsPositive() {
		return domain.Validationf("la cantidad debe ser > 0")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	bySupply, ok := r.s.lines[line.TreatmentID]
	if !ok {
		return domain.NotFoundf("tratamiento #%d", line.TreatmentID)
	}
	if _, ok := r.s.supplyVisibleLocked(r.tx, line.SupplyID); !ok {
		return domain.NotFoundf("insumo #%d inexistente", line.SupplyID)
	}
	r.s.shadowTreatmentLocked(r.tx, line.TreatmentID)
	prev, existed := bySupply[line.SupplyID]
	bySupply[line.SupplyID] = line.Quantity
	r.tx.record(func() {
		if existed {
			bySupply[line.SupplyID] = prev
		} else {
			delete(bySupply, line.SupplyID)
		}
	})
	return nil
}

func (r *treatmentRepo) DeleteLine(ctx context.Context, treatmentID, supplyID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	bySupply := r.s.lines[treatmentID]
	prev, ok := bySupply[supplyID]
	if !ok {
		return domain.NotFoundf("el tratamiento #%d no tiene línea del insumo #%d", treatmentID, supplyID)
	}
	r.s.shadowTreatmentLocked(r.tx, treatmentID)
	delete(bySupply, supplyID)
	r.tx.record(func() { bySupply[supplyID] = prev })
	return nil
}

func (r *treatmentRepo) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	prev, ok := r.s.treatments[id]
	if !ok {
		return domain.NotFoundf("tratamiento #%d", id)
	}
	prevLines := r.s.lines[id]
	r.s.shadowTreatmentLocked(r.tx, id)
	delete(r.s.treatments, id)
	delete(r.s.lines, id)
	r.tx.record(func() {
		r.s.treatments[id] = prev
		r.s.lines[id] = prevLines
	})
	return nil
}

func (r *treatmentRepo) ListByAnimal(ctx context.Context, animalID int64) ([]*entity.Treatment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	var out []*entity.Treatment
	for _, id := range r.s.treatmentIDsLocked() {
		if t := r.s.treatmentVisibleLocked(r.tx, id); t != nil && t.AnimalID == animalID {
			out = append(out, t)
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// buildTreatment arma una copia del tratamiento con sus líneas ordenadas por insumo.
func buildTreatment(t entity.Treatment, lines map[int64]decimal.Decimal) *entity.Treatment {
	id := t.ID
	out := copyTreatment(&t)
	out.Lines = make([]entity.TreatmentLine, 0, len(lines))
	for supplyID, qty := range lines {
		out.Lines = append(out.Lines, entity.TreatmentLine{TreatmentID: id, SupplyID: supplyID, Quantity: qty})
	}
	sort.Slice(out.Lines, func(i, j int) bool { return out.Lines[i].SupplyID < out.Lines[j].SupplyID })
	return &out
}

// copyTreatment copia sin líneas; las líneas viven en Store.lines.
func copyTreatment(t *entity.Treatment) entity.Treatment {
	c := *t
	c.Lines = nil
	if t.Description != nil {
		d := *t.Description
		c.Description = &d
	}
	return c
}
