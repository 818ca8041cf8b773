package memory

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/refugio-api/internal/domain/entity"
	"github.com/jhoicas/refugio-api/internal/domain/inventory"
)

// Imagen confirmada de una fila mientras una transacción la tiene modificada.
// row == nil indica que la fila no existía antes de la transacción.
type supplyShadow struct {
	owner *tx
	row   *entity.Supply
}

type treatmentShadow struct {
	owner *tx
	row   *entity.Treatment
	lines map[int64]decimal.Decimal
}

// shadowSupplyLocked guarda la versión confirmada antes de la primera escritura de t sobre la fila.
// Fuera de transacción la escritura es inmediata y no deja imagen.
func (s *Store) shadowSupplyLocked(t *tx, id int64) {
	if t == nil {
		return
	}
	if _, ok := s.supplyShadows[id]; ok {
		return
	}
	sh := supplyShadow{owner: t}
	if cur, ok := s.supplies[id]; ok {
		c := copySupply(&cur)
		sh.row = &c
	}
	s.supplyShadows[id] = sh
}

func (s *Store) shadowTreatmentLocked(t *tx, id int64) {
	if t == nil {
		return
	}
	if _, ok := s.treatmentShadows[id]; ok {
		return
	}
	sh := treatmentShadow{owner: t}
	if cur, ok := s.treatments[id]; ok {
		c := copyTreatment(&cur)
		sh.row = &c
		sh.lines = make(map[int64]decimal.Decimal, len(s.lines[id]))
		for supplyID, qty := range s.lines[id] {
			sh.lines[supplyID] = qty
		}
	}
	s.treatmentShadows[id] = sh
}

// dropShadowsLocked descarta las imágenes de t al confirmar o deshacer.
func (s *Store) dropShadowsLocked(t *tx) {
	for id, sh := range s.supplyShadows {
		if sh.owner == t {
			delete(s.supplyShadows, id)
		}
	}
	for id, sh := range s.treatmentShadows {
		if sh.owner == t {
			delete(s.treatmentShadows, id)
		}
	}
}

// supplyVisibleLocked devuelve la fila tal como la ve t: sus propias escrituras sí,
// las de otra transacción todavía abierta no.
func (s *Store) supplyVisibleLocked(t *tx, id int64) (entity.Supply, bool) {
	if sh, ok := s.supplyShadows[id]; ok && sh.owner != t {
		if sh.row == nil {
			return entity.Supply{}, false
		}
		return copySupply(sh.row), true
	}
	sup, ok := s.supplies[id]
	if !ok {
		return entity.Supply{}, false
	}
	return copySupply(&sup), true
}

func (s *Store) supplyIDsLocked() []int64 {
	ids := make([]int64, 0, len(s.supplies)+len(s.supplyShadows))
	for id := range s.supplies {
		ids = append(ids, id)
	}
	for id := range s.supplyShadows {
		if _, ok := s.supplies[id]; !ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *Store) findVisibleByNameLocked(t *tx, name string) *entity.Supply {
	key := inventory.NameKey(name)
	for _, id := range s.supplyIDsLocked() {
		if sup, ok := s.supplyVisibleLocked(t, id); ok && inventory.NameKey(sup.Name) == key {
			return &sup
		}
	}
	return nil
}

// nameTakenLocked busca el nombre entre filas confirmadas y en curso, como lo haría un índice único.
func (s *Store) nameTakenLocked(name string, exceptID int64) *entity.Supply {
	key := inventory.NameKey(name)
	for id, sup := range s.supplies {
		if id != exceptID && inventory.NameKey(sup.Name) == key {
			c := copySupply(&sup)
			return &c
		}
	}
	for id, sh := range s.supplyShadows {
		if id != exceptID && sh.row != nil && inventory.NameKey(sh.row.Name) == key {
			c := copySupply(sh.row)
			return &c
		}
	}
	return nil
}

func (s *Store) treatmentVisibleLocked(t *tx, id int64) *entity.Treatment {
	if sh, ok := s.treatmentShadows[id]; ok && sh.owner != t {
		if sh.row == nil {
			return nil
		}
		return buildTreatment(*sh.row, sh.lines)
	}
	cur, ok := s.treatments[id]
	if !ok {
		return nil
	}
	return buildTreatment(cur, s.lines[id])
}

func (s *Store) treatmentIDsLocked() []int64 {
	ids := make([]int64, 0, len(s.treatments)+len(s.treatmentShadows))
	for id := range s.treatments {
		ids = append(ids, id)
	}
	for id := range s.treatmentShadows {
		if _, ok := s.treatments[id]; !ok {
			ids = append(ids, id)
		}
	}
	return ids
}
