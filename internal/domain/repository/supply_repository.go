package repository

import (
	"context"

	"github.com/jhoicas/refugio-api/internal/domain/entity"
)

// SupplyRepository define el puerto de persistencia para insumos (DIP).
// Las lecturas devuelven (nil, nil) cuando el insumo no existe.
type SupplyRepository interface {
	Create(ctx context.Context, supply *entity.Supply) error
	GetByID(ctx context.Context, id int64) (*entity.Supply, error)
	GetByIDs(ctx context.Context, ids []int64) (map[int64]*entity.Supply, error)
	// FindByName busca por nombre sin distinguir mayúsculas.
	FindByName(ctx context.Context, name string) (*entity.Supply, error)
	// FindByNameForUpdate igual que FindByName pero bloquea la fila encontrada.
	FindByNameForUpdate(ctx context.Context, name string) (*entity.Supply, error)
	// GetForUpdate bloquea las filas indicadas (SELECT FOR UPDATE) en orden ascendente de id
	// y devuelve las que existen, en ese mismo orden.
	GetForUpdate(ctx context.Context, ids []int64) ([]*entity.Supply, error)
	Update(ctx context.Context, supply *entity.Supply) error
	Delete(ctx context.Context, id int64) error
	// IsReferenced indica si alguna línea de tratamiento usa el insumo.
	IsReferenced(ctx context.Context, id int64) (bool, error)
	// List busca por nombre o unidad (vacío = todos), ordenado por nombre.
	List(ctx context.Context, query string) ([]*entity.Supply, error)
}
