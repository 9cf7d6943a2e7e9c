package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/restopos-api/internal/domain"
	"github.com/jhoicas/restopos-api/internal/domain/entity"
	"github.com/jhoicas/restopos-api/internal/domain/repository"
)

var (
	_ repository.BatchRepository      = (*BatchRepo)(nil)
	_ repository.MovementRepository   = (*MovementRepo)(nil)
	_ repository.IngredientRepository = (*IngredientRepo)(nil)
)

// BatchRepo adaptador en memoria de BatchRepository.
type BatchRepo struct {
	s *Store
}

// Create guarda una copia del lote. Número de lote duplicado por ingrediente
// devuelve ErrDuplicate (equivalente al unique constraint en PostgreSQL).
func (r *BatchRepo) Create(b *entity.Batch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.batches {
		if existing.IngredientID == b.IngredientID && existing.BatchNumber == b.BatchNumber {
			return fmt.Errorf("número de lote %s: %w", b.BatchNumber, domain.ErrDuplicate)
		}
	}
	r.s.batches[b.ID] = copyBatch(b)
	return nil
}

func (r *BatchRepo) GetByID(id string) (*entity.Batch, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	b, ok := r.s.batches[id]
	if !ok {
		return nil, nil
	}
	return copyBatch(b), nil
}

// GetByIDForUpdate en memoria equivale a GetByID: el lock por operación lo da txMu.
func (r *BatchRepo) GetByIDForUpdate(id string) (*entity.Batch, error) {
	return r.GetByID(id)
}

func (r *BatchRepo) Update(b *entity.Batch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.batches[b.ID]; !ok {
		return fmt.Errorf("lote %s: %w", b.ID, domain.ErrNotFound)
	}
	r.s.batches[b.ID] = copyBatch(b)
	return nil
}

func (r *BatchRepo) ListActiveForUpdate(ingredientID, strategy string) ([]*entity.Batch, error) {
	return r.listActive(ingredientID, strategy)
}

func (r *BatchRepo) ListActive(ctx context.Context, ingredientID, strategy string) ([]*entity.Batch, error) {
	return r.listActive(ingredientID, strategy)
}

func (r *BatchRepo) listActive(ingredientID, strategy string) ([]*entity.Batch, error) {
	if strategy != entity.StrategyFIFO && strategy != entity.StrategyFEFO {
		return nil, fmt.Errorf("estrategia %q: %w", strategy, domain.ErrUnknownStrategy)
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var list []*entity.Batch
	for _, b := range r.s.batches {
		if b.IngredientID == ingredientID && b.Status == entity.BatchStatusActive {
			list = append(list, copyBatch(b))
		}
	}
	sortByStrategy(list, strategy)
	return list, nil
}

func (r *BatchRepo) NextBatchSequence(ingredientID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	count := 0
	for _, b := range r.s.batches {
		if b.IngredientID == ingredientID {
			count++
		}
	}
	return count + 1, nil
}

func (r *BatchRepo) SumActiveRemaining(ingredientID string) (decimal.Decimal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.sumActiveRemainingLocked(ingredientID), nil
}

func (r *BatchRepo) ListIngredientsWithExpired(asOf time.Time) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	seen := map[string]bool{}
	var ids []string
	for _, b := range r.s.batches {
		if b.Status == entity.BatchStatusActive && b.IsExpiredAt(asOf) && !seen[b.IngredientID] {
			seen[b.IngredientID] = true
			ids = append(ids, b.IngredientID)
		}
	}
	return ids, nil
}

func (r *BatchRepo) ListExpiringBefore(ctx context.Context, until time.Time) ([]*entity.Batch, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	limit := dateOnly(until)
	var list []*entity.Batch
	for _, b := range r.s.batches {
		if b.Status != entity.BatchStatusActive || b.ExpiryDate == nil {
			continue
		}
		if !dateOnly(*b.ExpiryDate).After(limit) {
			list = append(list, copyBatch(b))
		}
	}
	sortByStrategy(list, entity.StrategyFEFO)
	return list, nil
}

func (r *BatchRepo) TotalActiveValue(ctx context.Context) (decimal.Decimal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	total := decimal.Zero
	for _, b := range r.s.batches {
		if b.Status == entity.BatchStatusActive {
			total = total.Add(b.QuantityRemaining.Mul(b.CostPerUnit))
		}
	}
	return total, nil
}

// MovementRepo adaptador en memoria del libro de movimientos (append-only).
type MovementRepo struct {
	s *Store
}

func (r *MovementRepo) Create(m *entity.Movement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	r.s.movements = append(r.s.movements, copyMovement(m))
	return nil
}

func (r *MovementRepo) ListByIngredient(ctx context.Context, ingredientID string, from, to *time.Time, limit, offset int) ([]*entity.Movement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var list []*entity.Movement
	for _, m := range r.s.movements {
		if m.IngredientID != ingredientID {
			continue
		}
		if from != nil && m.Date.Before(*from) {
			continue
		}
		if to != nil && m.Date.After(*to) {
			continue
		}
		list = append(list, copyMovement(m))
	}
	// Más recientes primero, como el adaptador PostgreSQL.
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
	if offset >= len(list) {
		return nil, nil
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list, nil
}

func (r *MovementRepo) ListByBatch(ctx context.Context, batchID string) ([]*entity.Movement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var list []*entity.Movement
	for _, m := range r.s.movements {
		if m.BatchID != nil && *m.BatchID == batchID {
			list = append(list, copyMovement(m))
		}
	}
	return list, nil
}

// SumByBatch suma las variaciones del lote excluyendo la compra inicial
// (identidad: quantity_purchased + suma = quantity_remaining).
func (r *MovementRepo) SumByBatch(batchID string) (decimal.Decimal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sum := decimal.Zero
	for _, m := range r.s.movements {
		if m.BatchID != nil && *m.BatchID == batchID && m.Type != entity.MovementTypePurchase {
			sum = sum.Add(m.Quantity)
		}
	}
	return sum, nil
}

// IngredientRepo adaptador en memoria de IngredientRepository.
type IngredientRepo struct {
	s *Store
}

func (r *IngredientRepo) Create(ing *entity.Ingredient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.ingredients[ing.ID]; ok {
		return fmt.Errorf("ingrediente %s: %w", ing.ID, domain.ErrDuplicate)
	}
	r.s.ingredients[ing.ID] = copyIngredient(ing)
	return nil
}

func (r *IngredientRepo) GetByID(id string) (*entity.Ingredient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ing, ok := r.s.ingredients[id]
	if !ok {
		return nil, nil
	}
	return copyIngredient(ing), nil
}

// GetForUpdate en memoria equivale a GetByID: la exclusión mutua la da txMu.
func (r *IngredientRepo) GetForUpdate(id string) (*entity.Ingredient, error) {
	return r.GetByID(id)
}

func (r *IngredientRepo) UpdateStock(id string, quantity decimal.Decimal, updatedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ing, ok := r.s.ingredients[id]
	if !ok {
		return fmt.Errorf("ingrediente %s: %w", id, domain.ErrNotFound)
	}
	c := copyIngredient(ing)
	c.CurrentStock = quantity
	c.UpdatedAt = updatedAt
	r.s.ingredients[id] = c
	return nil
}

func (r *IngredientRepo) ListBelowReorderLevel(ctx context.Context) ([]*entity.Ingredient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var list []*entity.Ingredient
	for _, ing := range r.s.ingredients {
		if ing.BelowReorderLevel() {
			list = append(list, copyIngredient(ing))
		}
	}
	// Mayor déficit primero, empate por nombre (mismo orden que PostgreSQL).
	sortByDeficit(list)
	return list, nil
}
