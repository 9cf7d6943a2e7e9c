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

var _ repository.IngredientRepository = (*IngredientRepo)(nil)

// IngredientRepo implementación de IngredientRepository sobre PostgreSQL
// (usable con pool o tx).
type IngredientRepo struct {
	q Querier
}

// NewIngredientRepository construye el adaptador de ingredientes. Pasar pool o tx (Querier).
func NewIngredientRepository(q Querier) *IngredientRepo {
	return &IngredientRepo{q: q}
}

const ingredientColumns = `id, name, unit, reorder_level, cost_per_unit, current_stock, created_at, updated_at`

// Create persiste un ingrediente nuevo.
func (r *IngredientRepo) Create(ing *entity.Ingredient) error {
	query := `
		INSERT INTO ingredients (` + ingredientColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.Exec(context.Background(), query,
		ing.ID, ing.Name, ing.Unit, ing.ReorderLevel, ing.CostPerUnit,
		ing.CurrentStock, ing.CreatedAt, ing.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("ingrediente %s: %w", ing.Name, domain.ErrDuplicate)
		}
		return fmt.Errorf("create ingredient: %w", err)
	}
	return nil
}

// GetByID obtiene un ingrediente por id, nil si no existe.
func (r *IngredientRepo) GetByID(id string) (*entity.Ingredient, error) {
	query := `SELECT ` + ingredientColumns + ` FROM ingredients WHERE id = $1`
	return r.scanOne(r.q.QueryRow(context.Background(), query, id), "get ingredient")
}

// GetForUpdate obtiene el ingrediente bloqueando la fila (SELECT FOR UPDATE).
// Punto de serialización por-ingrediente de todas las mutaciones de stock.
func (r *IngredientRepo) GetForUpdate(id string) (*entity.Ingredient, error) {
	query := `SELECT ` + ingredientColumns + ` FROM ingredients WHERE id = $1 FOR UPDATE`
	return r.scanOne(r.q.QueryRow(context.Background(), query, id), "get ingredient for update")
}

// UpdateStock escribe el cache de stock derivado de los lotes activos.
func (r *IngredientRepo) UpdateStock(id string, quantity decimal.Decimal, updatedAt time.Time) error {
	query := `UPDATE ingredients SET current_stock = $2, updated_at = $3 WHERE id = $1`
	tag, err := r.q.Exec(context.Background(), query, id, quantity, updatedAt)
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ingrediente %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ListBelowReorderLevel ingredientes en o bajo su punto de reorden, mayor
// déficit primero. reorder_level 0 = sin alerta.
func (r *IngredientRepo) ListBelowReorderLevel(ctx context.Context) ([]*entity.Ingredient, error) {
	query := `
		SELECT ` + ingredientColumns + `
		FROM ingredients
		WHERE reorder_level > 0 AND current_stock <= reorder_level
		ORDER BY (reorder_level - current_stock) DESC, name ASC`
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list below reorder level: %w", err)
	}
	defer rows.Close()
	var list []*entity.Ingredient
	for rows.Next() {
		var ing entity.Ingredient
		if err := rows.Scan(
			&ing.ID, &ing.Name, &ing.Unit, &ing.ReorderLevel, &ing.CostPerUnit,
			&ing.CurrentStock, &ing.CreatedAt, &ing.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ingredient: %w", err)
		}
		list = append(list, &ing)
	}
	return list, rows.Err()
}

func (r *IngredientRepo) scanOne(row pgx.Row, op string) (*entity.Ingredient, error) {
	var ing entity.Ingredient
	err := row.Scan(
		&ing.ID, &ing.Name, &ing.Unit, &ing.ReorderLevel, &ing.CostPerUnit,
		&ing.CurrentStock, &ing.CreatedAt, &ing.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &ing, nil
}
