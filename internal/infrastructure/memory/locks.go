package memory

import (
	"context"
	"fmt"
	"sync"
)

// lockTable bloqueos de fila exclusivos, uno por clave ("supply:7", "treatment:3").
// Cada bloqueo es un semáforo de capacidad 1 para que la espera respete la cancelación del contexto.
type lockTable struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{slots: make(map[string]chan struct{})}
}

func (lt *lockTable) slot(key string) chan struct{} {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	ch, ok := lt.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		lt.slots[key] = ch
	}
	return ch
}

func (lt *lockTable) acquire(ctx context.Context, key string) error {
	select {
	case lt.slot(key) <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("esperando bloqueo %s: %w", key, ctx.Err())
	}
}

func (lt *lockTable) release(key string) {
	<-lt.slot(key)
}

func supplyKey(id int64) string    { return fmt.Sprintf("supply:%d", id) }
func treatmentKey(id int64) string { return fmt.Sprintf("treatment:%d", id) }
