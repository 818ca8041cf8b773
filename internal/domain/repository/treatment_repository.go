package repository

import (
	"context"

	"github.com/jhoicas/refugio-api/internal/domain/entity"
)

// TreatmentRepository define el puerto de persistencia para tratamientos y sus líneas.
// Las lecturas incluyen las líneas y devuelven (nil, nil) si el tratamiento no existe.
type TreatmentRepository interface {
	// Create inserta el tratamiento con sus líneas y asigna ID.
	Create(ctx context.Context, t *entity.Treatment) error
	GetByID(ctx context.Context, id int64) (*entity.Treatment, error)
	// GetForUpdate bloquea la fila del tratamiento hasta el fin de la transacción.
	GetForUpdate(ctx context.Context, id int64) (*entity.Treatment, error)
	// Update persiste tipo, descripción y estado (no las líneas).
	Update(ctx context.Context, t *entity.Treatment) error
	UpsertLine(ctx context.Context, line entity.TreatmentLine) error
	DeleteLine(ctx context.Context, treatmentID, supplyID int64) error
	Delete(ctx context.Context, id int64) error
	ListByAnimal(ctx context.Context, animalID int64) ([]*entity.Treatment, error)
}
