// Package memory implementa los repositorios sobre mapas en memoria con transacciones,
// bloqueos de fila y rollback. Sirve para tests y para levantar la API sin PostgreSQL (STORE=memory).
package memory

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/refugio-api/internal/domain/entity"
	"github.com/jhoicas/refugio-api/internal/domain/repository"
)

// Store estado compartido. Las escrituras de una transacción se aplican al instante y se
// deshacen en orden inverso si la transacción falla; las filas modificadas quedan protegidas
// por los bloqueos de fila que la transacción tomó antes de escribir. Hasta el commit, el resto
// de las lecturas ve la imagen confirmada de esas filas (ver visibility.go).
type Store struct {
	mu         sync.RWMutex
	supplies   map[int64]entity.Supply
	treatments map[int64]entity.Treatment
	lines      map[int64]map[int64]decimal.Decimal // tratamiento -> insumo -> cantidad
	users      map[int64]entity.User

	supplyShadows    map[int64]supplyShadow
	treatmentShadows map[int64]treatmentShadow

	nextSupply    int64
	nextTreatment int64
	nextUser      int64

	locks *lockTable
}

// NewStore crea un almacén vacío.
func NewStore() *Store {
	return &Store{
		supplies:   make(map[int64]entity.Supply),
		treatments: make(map[int64]entity.Treatment),
		lines:      make(map[int64]map[int64]decimal.Decimal),
		users:      make(map[int64]entity.User),
		locks:      newLockTable(),

		supplyShadows:    make(map[int64]supplyShadow),
		treatmentShadows: make(map[int64]treatmentShadow),
	}
}

// Supplies repositorio de insumos fuera de transacción (cada llamada es atómica por sí sola).
func (s *Store) Supplies() repository.SupplyRepository { return &supplyRepo{s: s} }

// Treatments repositorio de tratamientos fuera de transacción.
func (s *Store) Treatments() repository.TreatmentRepository { return &treatmentRepo{s: s} }

// Users repositorio de usuarios.
func (s *Store) Users() repository.UserRepository { return &userRepo{s: s} }

// Run implementa ports.TxRunner.
func (s *Store) Run(ctx context.Context, fn func(
	supplyRepo repository.SupplyRepository,
	treatmentRepo repository.TreatmentRepository,
) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := &tx{s: s, held: make(map[string]bool)}
	defer t.releaseAll()

	if err := fn(&supplyRepo{s: s, tx: t}, &treatmentRepo{s: s, tx: t}); err != nil {
		t.rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		t.rollback()
		return err
	}
	t.commit()
	return nil
}

// tx bloqueos tomados y acciones para deshacer lo escrito.
type tx struct {
	s     *Store
	held  map[string]bool
	order []string
	undo  []func()
}

func (t *tx) lock(ctx context.Context, key string) error {
	if t.held[key] {
		return nil
	}
	if err := t.s.locks.acquire(ctx, key); err != nil {
		return err
	}
	t.held[key] = true
	t.order = append(t.order, key)
	return nil
}

func (t *tx) releaseAll() {
	for i := len(t.order) - 1; i >= 0; i-- {
		t.s.locks.release(t.order[i])
	}
	t.order = nil
	t.held = nil
}

// record registra una acción de deshacer; se ejecuta con s.mu tomado.
func (t *tx) record(fn func()) {
	if t != nil {
		t.undo = append(t.undo, fn)
	}
}

func (t *tx) rollback() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
	t.s.dropShadowsLocked(t)
}

func (t *tx) commit() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.undo = nil
	t.s.dropShadowsLocked(t)
}

// withRowLock toma el bloqueo de fila dentro de una transacción; fuera de ella no hace nada.
func withRowLock(ctx context.Context, t *tx, key string) error {
	if t == nil {
		return ctx.Err()
	}
	return t.lock(ctx, key)
}
