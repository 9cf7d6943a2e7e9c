package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/restopos-api/internal/domain"
	"github.com/jhoicas/restopos-api/internal/domain/entity"
	"github.com/jhoicas/restopos-api/internal/domain/repository"
)

var _ repository.BatchRepository = (*BatchRepo)(nil)

// BatchRepo implementación de BatchRepository sobre PostgreSQL (usable con pool o tx).
type BatchRepo struct {
	q Querier
}

// NewBatchRepository construye el adaptador de lotes. Pasar pool o tx (Querier).
func NewBatchRepository(q Querier) *BatchRepo {
	return &BatchRepo{q: q}
}

const batchColumns = `id, ingredient_id, batch_number, supplier_id, quantity_purchased,
	quantity_remaining, cost_per_unit, purchase_date, manufacturing_date, expiry_date,
	status, created_at, updated_at`

// orderClause devuelve el ORDER BY determinista de la estrategia.
//
//	FIFO: comprado más antiguo primero, empate por id.
//	FEFO: vence más pronto primero (sin vencimiento al final), empate por
//	      fecha de compra y luego id.
func orderClause(strategy string) (string, error) {
	switch strategy {
	case entity.StrategyFIFO:
		return " ORDER BY purchase_date ASC, id ASC", nil
	case entity.StrategyFEFO:
		return " ORDER BY expiry_date ASC NULLS LAST, purchase_date ASC, id ASC", nil
	}
	return "", fmt.Errorf("estrategia %q: %w", strategy, domain.ErrUnknownStrategy)
}

// Create persiste un lote nuevo.
func (r *BatchRepo) Create(b *entity.Batch) error {
	query := `
		INSERT INTO ingredient_batches (` + batchColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.q.Exec(context.Background(), query,
		b.ID, b.IngredientID, b.BatchNumber, b.SupplierID, b.QuantityPurchased,
		b.QuantityRemaining, b.CostPerUnit, b.PurchaseDate, b.ManufacturingDate,
		b.ExpiryDate, b.Status, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("número de lote %s: %w", b.BatchNumber, domain.ErrDuplicate)
		}
		return fmt.Errorf("create batch: %w", err)
	}
	return nil
}

// GetByID obtiene un lote por id, nil si no existe.
func (r *BatchRepo) GetByID(id string) (*entity.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM ingredient_batches WHERE id = $1`
	return r.scanOne(r.q.QueryRow(context.Background(), query, id), "get batch")
}

// GetByIDForUpdate obtiene un lote bloqueando la fila (SELECT FOR UPDATE).
func (r *BatchRepo) GetByIDForUpdate(id string) (*entity.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM ingredient_batches WHERE id = $1 FOR UPDATE`
	return r.scanOne(r.q.QueryRow(context.Background(), query, id), "get batch for update")
}

// Update persiste restante, estado y updated_at del lote.
func (r *BatchRepo) Update(b *entity.Batch) error {
	query := `
		UPDATE ingredient_batches
		SET quantity_remaining = $2, status = $3, updated_at = $4
		WHERE id = $1`
	tag, err := r.q.Exec(context.Background(), query, b.ID, b.QuantityRemaining, b.Status, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("lote %s: %w", b.ID, domain.ErrNotFound)
	}
	return nil
}

// ListActiveForUpdate lotes activos del ingrediente en orden de estrategia,
// bloqueados para update. El restante 0 no aparece: ya está en depleted.
func (r *BatchRepo) ListActiveForUpdate(ingredientID, strategy string) ([]*entity.Batch, error) {
	order, err := orderClause(strategy)
	if err != nil {
		return nil, err
	}
	query := `
		SELECT ` + batchColumns + `
		FROM ingredient_batches
		WHERE ingredient_id = $1 AND status = 'active'` + order + ` FOR UPDATE`
	return r.list(context.Background(), query, "list active for update", ingredientID)
}

// ListActive variante de solo lectura, mismo orden.
func (r *BatchRepo) ListActive(ctx context.Context, ingredientID, strategy string) ([]*entity.Batch, error) {
	order, err := orderClause(strategy)
	if err != nil {
		return nil, err
	}
	query := `
		SELECT ` + batchColumns + `
		FROM ingredient_batches
		WHERE ingredient_id = $1 AND status = 'active'` + order
	return r.list(ctx, query, "list active", ingredientID)
}

// NextBatchSequence consecutivo legible por ingrediente. Los lotes nunca se
// borran, así que count+1 es monótono.
func (r *BatchRepo) NextBatchSequence(ingredientID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM ingredient_batches WHERE ingredient_id = $1`
	if err := r.q.QueryRow(context.Background(), query, ingredientID).Scan(&count); err != nil {
		return 0, fmt.Errorf("next batch sequence: %w", err)
	}
	return count + 1, nil
}

// SumActiveRemaining suma el restante de los lotes activos del ingrediente.
func (r *BatchRepo) SumActiveRemaining(ingredientID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	query := `
		SELECT COALESCE(SUM(quantity_remaining), 0)
		FROM ingredient_batches
		WHERE ingredient_id = $1 AND status = 'active'`
	if err := r.q.QueryRow(context.Background(), query, ingredientID).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sum active remaining: %w", err)
	}
	return sum, nil
}

// ListIngredientsWithExpired ids de ingredientes con lotes activos vencidos
// estrictamente antes de asOf.
func (r *BatchRepo) ListIngredientsWithExpired(asOf time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT ingredient_id
		FROM ingredient_batches
		WHERE status = 'active' AND expiry_date IS NOT NULL AND expiry_date < $1::date`
	rows, err := r.q.Query(context.Background(), query, asOf)
	if err != nil {
		return nil, fmt.Errorf("list ingredients with expired: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan ingredient id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListExpiringBefore lotes activos con vencimiento hasta la fecha límite
// inclusive (incluye vencidos sin barrer), orden por vencimiento ascendente.
func (r *BatchRepo) ListExpiringBefore(ctx context.Context, until time.Time) ([]*entity.Batch, error) {
	query := `
		SELECT ` + batchColumns + `
		FROM ingredient_batches
		WHERE status = 'active' AND expiry_date IS NOT NULL AND expiry_date <= $1::date
		ORDER BY expiry_date ASC, purchase_date ASC, id ASC`
	return r.list(ctx, query, "list expiring", until)
}

// TotalActiveValue valuación de inventario: restante * costo por lote activo.
func (r *BatchRepo) TotalActiveValue(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	query := `
		SELECT COALESCE(SUM(quantity_remaining * cost_per_unit), 0)
		FROM ingredient_batches
		WHERE status = 'active'`
	if err := r.q.QueryRow(ctx, query).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("total active value: %w", err)
	}
	return total, nil
}

func (r *BatchRepo) scanOne(row pgx.Row, op string) (*entity.Batch, error) {
	var b entity.Batch
	err := row.Scan(
		&b.ID, &b.IngredientID, &b.BatchNumber, &b.SupplierID, &b.QuantityPurchased,
		&b.QuantityRemaining, &b.CostPerUnit, &b.PurchaseDate, &b.ManufacturingDate,
		&b.ExpiryDate, &b.Status, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &b, nil
}

func (r *BatchRepo) list(ctx context.Context, query, op string, args ...any) ([]*entity.Batch, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()
	var list []*entity.Batch
	for rows.Next() {
		var b entity.Batch
		if err := rows.Scan(
			&b.ID, &b.IngredientID, &b.BatchNumber, &b.SupplierID, &b.QuantityPurchased,
			&b.QuantityRemaining, &b.CostPerUnit, &b.PurchaseDate, &b.ManufacturingDate,
			&b.ExpiryDate, &b.Status, &b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		list = append(list, &b)
	}
	return list, rows.Err()
}
