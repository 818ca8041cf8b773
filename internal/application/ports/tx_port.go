package ports

import (
	"context"
	"time"

	"github.com/jhoicas/refugio-api/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Si fn devuelve error se hace Rollback; si no, Commit. Los bloqueos de fila tomados dentro de fn
// se liberan al terminar la transacción.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		supplyRepo repository.SupplyRepository,
		treatmentRepo repository.TreatmentRepository,
	) error) error
}

// Clock fuente de la fecha actual para comparar vencimientos.
type Clock interface {
	Now() time.Time
}

// SystemClock reloj del sistema en la zona horaria indicada (nil = local).
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// FixedClock reloj fijo, usado en tests.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }
