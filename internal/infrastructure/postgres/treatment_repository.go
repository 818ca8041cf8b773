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

var _ repository.TreatmentRepository = (*TreatmentRepo)(nil)

const treatmentColumns = `id, animal_id, author_id, type, description, date, status, created_at, updated_at`

// TreatmentRepo implementación de TreatmentRepository sobre PostgreSQL.
// Las líneas viven en treatment_supplies con clave (treatment_id, supply_id).
type TreatmentRepo struct {
	q Querier
}

// NewTreatmentRepository construye el adaptador. Pasar pool o tx (Querier).
func NewTreatmentRepository(q Querier) *TreatmentRepo {
	return &TreatmentRepo{q: q}
}

func scanTreatment(row pgx.Row) (*entity.Treatment, error) {
	var (
		t      entity.Treatment
		status string
	)
	err := row.Scan(&t.ID, &t.AnimalID, &t.AuthorID, &t.Type, &t.Description, &t.Date, &status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Status = entity.TreatmentStatus(status)
	return &t, nil
}

// Create inserta el tratamiento y sus líneas. Debe correr dentro de una tx para ser atómico.
func (r *TreatmentRepo) Create(ctx context.Context, t *entity.Treatment) error {
	query := `
		INSERT INTO treatments (animal_id, author_id, type, description, date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	err := r.q.QueryRow(ctx, query,
		t.AnimalID, t.AuthorID, t.Type, t.Description, t.Date, string(t.Status), t.CreatedAt, t.UpdatedAt,
	).Scan(&t.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.NotFoundf("usuario #%d inexistente", t.AuthorID)
		}
		return fmt.Errorf("insert treatment: %w", err)
	}
	for i := range t.Lines {
		t.Lines[i].TreatmentID = t.ID
		if err := r.UpsertLine(ctx, t.Lines[i]); err != nil {
			return err
		}
	}
	return nil
}

// GetByID obtiene el tratamiento con sus líneas.
func (r *TreatmentRepo) GetByID(ctx context.Context, id int64) (*entity.Treatment, error) {
	return r.get(ctx, `SELECT `+treatmentColumns+` FROM treatments WHERE id = $1`, id)
}

// GetForUpdate obtiene el tratamiento bloqueando su fila hasta el fin de la tx.
func (r *TreatmentRepo) GetForUpdate(ctx context.Context, id int64) (*entity.Treatment, error) {
	return r.get(ctx, `SELECT `+treatmentColumns+` FROM treatments WHERE id = $1 FOR UPDATE`, id)
}

func (r *TreatmentRepo) get(ctx context.Context, query string, id int64) (*entity.Treatment, error) {
	t, err := scanTreatment(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get treatment: %w", err)
	}
	lines, err := r.lines(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	t.Lines = lines[id]
	return t, nil
}

func (r *TreatmentRepo) lines(ctx context.Context, ids []int64) (map[int64][]entity.TreatmentLine, error) {
	rows, err := r.q.Query(ctx, `
		SELECT treatment_id, supply_id, quantity
		FROM treatment_supplies WHERE treatment_id = ANY($1)
		ORDER BY treatment_id, supply_id`, ids)
	if err != nil {
		return nil, fmt.Errorf("list treatment lines: %w", err)
	}
	defer rows.Close()
	out := make(map[int64][]entity.TreatmentLine, len(ids))
	for rows.Next() {
		var l entity.TreatmentLine
		if err := rows.Scan(&l.TreatmentID, &l.SupplyID, &l.Quantity); err != nil {
			return nil, fmt.Errorf("scan treatment line: %w", err)
		}
		out[l.TreatmentID] = append(out[l.TreatmentID], l)
	}
	return out, rows.Err()
}

// Update persiste tipo, descripción y estado.
func (r *TreatmentRepo) Update(ctx context.Context, t *entity.Treatment) error {
	query := `
		UPDATE treatments SET type = $2, description = $3, status = $4, updated_at = $5
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query, t.ID, t.Type, t.Description, string(t.Status), t.UpdatedAt)
	if err != nil {
		if isCheckViolation(err) {
			return domain.Validationf("estado %q inválido", t.Status)
		}
		return fmt.Errorf("update treatment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("tratamiento #%d", t.ID)
	}
	return nil
}

// UpsertLine inserta la línea o reemplaza su cantidad.
func (r *TreatmentRepo) UpsertLine(ctx context.Context, l entity.TreatmentLine) error {
	query := `
		INSERT INTO treatment_supplies (treatment_id, supply_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (treatment_id, supply_id) DO UPDATE SET quantity = EXCLUDED.quantity`
	if _, err := r.q.Exec(ctx, query, l.TreatmentID, l.SupplyID, l.Quantity); err != nil {
		switch {
		case isForeignKeyViolation(err):
			return domain.NotFoundf("insumo #%d inexistente", l.SupplyID)
		case isCheckViolation(err):
			return domain.Validationf("la cantidad debe ser > 0")
		}
		return fmt.Errorf("upsert treatment line: %w", err)
	}
	return nil
}

// DeleteLine quita la línea del insumo indicado.
func (r *TreatmentRepo) DeleteLine(ctx context.Context, treatmentID, supplyID int64) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM treatment_supplies WHERE treatment_id = $1 AND supply_id = $2`, treatmentID, supplyID)
	if err != nil {
		return fmt.Errorf("delete treatment line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("el tratamiento #%d no tiene línea del insumo #%d", treatmentID, supplyID)
	}
	return nil
}

// Delete elimina el tratamiento; las líneas caen por ON DELETE CASCADE.
func (r *TreatmentRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM treatments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete treatment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundf("tratamiento #%d", id)
	}
	return nil
}

// ListByAnimal lista los tratamientos del animal por fecha e id, con sus líneas.
func (r *TreatmentRepo) ListByAnimal(ctx context.Context, animalID int64) ([]*entity.Treatment, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+treatmentColumns+` FROM treatments WHERE animal_id = $1 ORDER BY date, id`, animalID)
	if err != nil {
		return nil, fmt.Errorf("list treatments: %w", err)
	}
	var (
		list []*entity.Treatment
		ids  []int64
	)
	for rows.Next() {
		t, err := scanTreatment(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan treatment: %w", err)
		}
		list = append(list, t)
		ids = append(ids, t.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list treatments: %w", err)
	}
	if len(ids) == 0 {
		return list, nil
	}

	lines, err := r.lines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, t := range list {
		t.Lines = lines[t.ID]
	}
	return list, nil
}
