package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/refugio-api/internal/domain"
	"github.com/jhoicas/refugio-api/internal/domain/entity"
	"github.com/jhoicas/refugio-api/internal/domain/repository"
)

var _ repository.SupplyRepository = (*SupplyRepo)(nil)

const supplyColumns = `id, name, unit, stock, expires_at, created_at, updated_at`

// SupplyRepo implementación de SupplyRepository sobre PostgreSQL (usable con pool o tx).
type SupplyRepo struct {
	q Querier
}

// NewSupplyRepository construye el adaptador de insumos. Pasar pool o tx (Querier).
func NewSupplyRepository(q Querier) *SupplyRepo {
	return &SupplyRepo{q: q}
}

func scanSupply(row pgx.Row) (*entity.Supply, error) {
	var s entity.Supply
	if err := row.Scan(&s.ID, &s.Name, &s.Unit, &s.Stock, &s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SupplyRepo) one(ctx context.Context, op, query string, args ...any) (*entity.Supply, error) {
	s, err := scanSupply(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

func (r *SupplyRepo) many(ctx context.Context, op, query string, args ...any) ([]*entity.Supply, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()
	var list []*entity.Supply
	for rows.Next() {
		s, err := scanSupply(rows)
		if err != nil {
			return nil, fmt.Errorf("scan supply: %w", err)
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// Create inserta el insumo y asigna ID. Un nombre repetido (índice lower(name)) es conflicto.
func (r *SupplyRepo) Create(ctx context.Context, s *entity.Supply) error {
	query := `
		INSERT INTO supplies (name, unit, stock, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	err := r.q.QueryRow(ctx, query, s.Name, s.Unit, s.Stock, s.ExpiresAt, s.CreatedAt, s.UpdatedAt).Scan(&s.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Conflictf("ya existe un insumo llamado %q", s.Name)
		}
		if isCheckViolation(err) {
			return domain.Validationf("el stock de %s no puede ser negativo", s.Name)
		}
		return fmt.Errorf("insert supply: %w", err)
	}
	return nil
}

// GetByID obtiene un insumo por ID.
func (r *SupplyRepo) GetByID(ctx context.Context, id int64) (*entity.Supply, error) {
	return r.one(ctx, "get supply by id", `SELECT `+supplyColumns+` FROM supplies WHERE id = $1`, id)
}

// GetByIDs obtiene varios insumos indexados por ID; los inexistentes no aparecen.
func (r *SupplyRepo) GetByIDs(ctx context.Context, ids []int64) (map[int64]*entity.Supply, error) {
	out := make(map[int64]*entity.Supply, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	list, err := r.many(ctx, "get supplies by ids", `SELECT `+supplyColumns+` FROM supplies WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	for _, s := range list {
		out[s.ID] = s
	}
	return out, nil
}

// FindByName busca por nombre sin distinguir mayúsculas.
func (r *SupplyRepo) FindByName(ctx context.Context, name string) (*entity.Supply, error) {
	return r.one(ctx, "find supply by name", `SELECT `+supplyColumns+` FROM supplies WHERE lower(name) = lower($1)`, name)
}

// FindByNameForUpdate igual que FindByName con la fila bloqueada hasta el fin de la tx.
func (r *SupplyRepo) FindByNameForUpdate(ctx context.Context, name string) (*entity.Supply, error) {
	return r.one(ctx, "lock supply by name", `SELECT `+supplyColumns+` FROM supplies WHERE lower(name) = lower($1) FOR UPDATE`, name)
}

// GetForUpdate bloquea los insumos en orden ascendente de id. Todas las transacciones
// toman los bloqueos en el mismo orden, así dos aprobaciones no se interbloquean.
func (r *SupplyRepo) GetForUpdate(ctx context.Context, ids []int64) ([]*entity.Supply, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.many(ctx, "lock supplies",
		`SELECT `+supplyColumns+` FROM supplies WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
}

// Update persiste nombre, unidad, stock y vencimiento.
func (r *SupplyRepo) Update(ctx context.Context, s *entity.Supply) error {
	query := `
		UPDATE supplies SET name = $2, unit = $3, stock = $4, expires_at = $5, updated_at = $6
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query, s.ID, s.Name, s.Unit, s.Stock, s.ExpiresAt, s.UpdatedAt)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return domain.Conflictf("ya existe un insumo llamado %q", s.Name)
		case isCheckViolation(err):
			return domain.Validationf("el stock de %s no puede quedar negativo", s.Name)
		}
		return fmt.Errorf("update supply: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("insumo #%d", s.ID)
	}
	return nil
}

// Delete elimina el insumo. Si una línea lo referencia, la FK RESTRICT lo impide (conflicto).
func (r *SupplyRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM supplies WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.Conflictf("el insumo #%d está en uso por tratamientos", id)
		}
		return fmt.Errorf("delete supply: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("insumo #%d", id)
	}
	return nil
}

// IsReferenced indica si alguna línea de tratamiento usa el insumo.
func (r *SupplyRepo) IsReferenced(ctx context.Context, id int64) (bool, error) {
	var used bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM treatment_supplies WHERE supply_id = $1)`, id).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("supply referenced: %w", err)
	}
	return used, nil
}

// List busca por nombre o unidad con ILIKE (vacío = todos), ordenado por nombre.
func (r *SupplyRepo) List(ctx context.Context, query string) ([]*entity.Supply, error) {
	if query == "" {
		return r.many(ctx, "list supplies", `SELECT `+supplyColumns+` FROM supplies ORDER BY lower(name), id`)
	}
	return r.many(ctx, "search supplies",
		`SELECT `+supplyColumns+` FROM supplies
		 WHERE name ILIKE '%' || $1 || '%' OR unit ILIKE '%' || $1 || '%'
		 ORDER BY lower(name), id`, escapeLike(query))
}
