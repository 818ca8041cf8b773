package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/jhoicas/refugio-api/internal/domain"
	"github.com/jhoicas/refugio-api/internal/domain/entity"
	"github.com/jhoicas/refugio-api/internal/domain/inventory"
)

type supplyRepo struct {
	s  *Store
	tx *tx
}

func (r *supplyRepo) Create(ctx context.Context, sup *entity.Supply) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if other := r.s.nameTakenLocked(sup.Name, 0); other != nil {
		return domain.Conflictf("ya existe un insumo llamado %q", other.Name)
	}
	r.s.nextSupply++
	sup.ID = r.s.nextSupply
	r.s.shadowSupplyLocked(r.tx, sup.ID)
	r.s.supplies[sup.ID] = copySupply(sup)
	id := sup.ID
	r.tx.record(func() { delete(r.s.supplies, id) })
	return nil
}

func (r *supplyRepo) GetByID(ctx context.Context, id int64) (*entity.Supply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sup, ok := r.s.supplyVisibleLocked(r.tx, id)
	if !ok {
		return nil, nil
	}
	return &sup, nil
}

func (r *supplyRepo) GetByIDs(ctx context.Context, ids []int64) (map[int64]*entity.Supply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make(map[int64]*entity.Supply, len(ids))
	for _, id := range ids {
		if sup, ok := r.s.supplyVisibleLocked(r.tx, id); ok {
			out[id] = &sup
		}
	}
	return out, nil
}

func (r *supplyRepo) FindByName(ctx context.Context, name string) (*entity.Supply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.findVisibleByNameLocked(r.tx, name), nil
}

func (r *supplyRepo) FindByNameForUpdate(ctx context.Context, name string) (*entity.Supply, error) {
	found, err := r.FindByName(ctx, name)
	if err != nil || found == nil {
		return found, err
	}
	if err := withRowLock(ctx, r.tx, supplyKey(found.ID)); err != nil {
		return nil, err
	}
	// releer tras obtener el bloqueo: otra transacción pudo cambiarla o borrarla.
	return r.GetByID(ctx, found.ID)
}

func (r *supplyRepo) GetForUpdate(ctx context.Context, ids []int64) ([]*entity.Supply, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	out := make([]*entity.Supply, 0, len(sorted))
	var prev int64
	for i, id := range sorted {
		if i > 0 && id == prev {
			continue
		}
		prev = id
		if err := withRowLock(ctx, r.tx, supplyKey(id)); err != nil {
			return nil, err
		}
		sup, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if sup != nil {
			out = append(out, sup)
		}
	}
	return out, nil
}

func (r *supplyRepo) Update(ctx context.Context, sup *entity.Supply) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sup.Stock.IsNegative() {
		return domain.Validationf("el stock de %s no puede quedar negativo", sup.Name)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	prev, ok := r.s.supplies[sup.ID]
	if !ok {
		return domain.NotFoundf("insumo #%d", sup.ID)
	}
	if other := r.s.nameTakenLocked(sup.Name, sup.ID); other != nil {
		return domain.Conflictf("ya existe un insumo llamado %q", other.Name)
	}
	r.s.shadowSupplyLocked(r.tx, sup.ID)
	r.s.supplies[sup.ID] = copySupply(sup)
	r.tx.record(func() { r.s.supplies[prev.ID] = prev })
	return nil
}

func (r *supplyRepo) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	prev, ok := r.s.supplies[id]
	if !ok {
		return domain.NotFoundf("insumo #%d", id)
	}
	if r.s.referencedLocked(id) {
		return domain.Conflictf("el insumo %s está en uso por tratamientos", prev.Name)
	}
	r.s.shadowSupplyLocked(r.tx, id)
	delete(r.s.supplies, id)
	r.tx.record(func() { r.s.supplies[id] = prev })
	return nil
}

func (r *supplyRepo) IsReferenced(ctx context.Context, id int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.referencedLocked(id), nil
}

func (r *supplyRepo) List(ctx context.Context, query string) ([]*entity.Supply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := inventory.NameKey(query)
	r.s.mu.RLock()
	out := make([]*entity.Supply, 0, len(r.s.supplies))
	for _, id := range r.s.supplyIDsLocked() {
		sup, ok := r.s.supplyVisibleLocked(r.tx, id)
		if !ok {
			continue
		}
		if q != "" && !strings.Contains(inventory.NameKey(sup.Name), q) && !strings.Contains(inventory.NameKey(sup.Unit), q) {
			continue
		}
		out = append(out, &sup)
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		ki, kj := inventory.NameKey(out[i].Name), inventory.NameKey(out[j].Name)
		if ki != kj {
			return ki < kj
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) referencedLocked(supplyID int64) bool {
	for _, bySupply := range s.lines {
		if _, ok := bySupply[supplyID]; ok {
			return true
		}
	}
	return false
}

func copySupply(sup *entity.Supply) entity.Supply {
	c := *sup
	if sup.ExpiresAt != nil {
		e := *sup.ExpiresAt
		c.ExpiresAt = &e
	}
	return c
}
