package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/restopos-api/internal/domain/entity"
	"github.com/jhoicas/restopos-api/internal/domain/repository"
)

var _ repository.MovementRepository = (*MovementRepo)(nil)

// MovementRepo implementación append-only del libro de movimientos sobre
// PostgreSQL (usable con pool o tx).
type MovementRepo struct {
	q Querier
}

// NewMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewMovementRepository(q Querier) *MovementRepo {
	return &MovementRepo{q: q}
}

const movementColumns = `id, transaction_id, ingredient_id, batch_id, type, quantity,
	unit_cost, total_cost, reason, notes, date, created_at, created_by`

// Create persiste un movimiento. Las filas nunca se actualizan ni borran.
func (r *MovementRepo) Create(m *entity.Movement) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	query := `
		INSERT INTO ingredient_movements (` + movementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	createdBy := (*string)(nil)
	if m.CreatedBy != "" {
		createdBy = &m.CreatedBy
	}
	_, err := r.q.Exec(context.Background(), query,
		m.ID, m.TransactionID, m.IngredientID, m.BatchID, m.Type, m.Quantity,
		m.UnitCost, m.TotalCost, m.Reason, m.Notes, m.Date, m.CreatedAt, createdBy,
	)
	if err != nil {
		return fmt.Errorf("create movement: %w", err)
	}
	return nil
}

// ListByIngredient lista movimientos de un ingrediente en un rango de fechas.
func (r *MovementRepo) ListByIngredient(ctx context.Context, ingredientID string, from, to *time.Time, limit, offset int) ([]*entity.Movement, error) {
	query := `
		SELECT ` + movementColumns + `
		FROM ingredient_movements WHERE ingredient_id = $1`
	args := []any{ingredientID}
	pos := 2
	if from != nil {
		query += fmt.Sprintf(" AND date >= $%d", pos)
		args = append(args, *from)
		pos++
	}
	if to != nil {
		query += fmt.Sprintf(" AND date <= $%d", pos)
		args = append(args, *to)
		pos++
	}
	query += fmt.Sprintf(" ORDER BY date DESC LIMIT $%d OFFSET $%d", pos, pos+1)
	args = append(args, limit, offset)
	return r.list(ctx, query, "list by ingredient", args...)
}

// ListByBatch lista los movimientos de un lote, más antiguos primero.
func (r *MovementRepo) ListByBatch(ctx context.Context, batchID string) ([]*entity.Movement, error) {
	query := `
		SELECT ` + movementColumns + `
		FROM ingredient_movements WHERE batch_id = $1
		ORDER BY created_at ASC, id ASC`
	return r.list(ctx, query, "list by batch", batchID)
}

// SumByBatch suma las variaciones del lote excluyendo la compra inicial.
// Identidad de conciliación: quantity_purchased + esta suma = quantity_remaining.
func (r *MovementRepo) SumByBatch(batchID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	query := `
		SELECT COALESCE(SUM(quantity), 0)
		FROM ingredient_movements
		WHERE batch_id = $1 AND type <> $2`
	err := r.q.QueryRow(context.Background(), query, batchID, entity.MovementTypePurchase).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum by batch: %w", err)
	}
	return sum, nil
}

func (r *MovementRepo) list(ctx context.Context, query, op string, args ...any) ([]*entity.Movement, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()
	var list []*entity.Movement
	for rows.Next() {
		var m entity.Movement
		var createdBy *string
		if err := rows.Scan(
			&m.ID, &m.TransactionID, &m.IngredientID, &m.BatchID, &m.Type, &m.Quantity,
			&m.UnitCost, &m.TotalCost, &m.Reason, &m.Notes, &m.Date, &m.CreatedAt, &createdBy,
		); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		if createdBy != nil {
			m.CreatedBy = *createdBy
		}
		list = append(list, &m)
	}
	return list, rows.Err()
}
