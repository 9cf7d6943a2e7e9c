// Package memory implementa los puertos del motor de lotes sobre mapas en
// memoria, con la misma semántica transaccional que el adaptador PostgreSQL
// (todo-o-nada, mutaciones serializadas). Se usa en tests y en modo dev/demo
// sin base de datos.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/restopos-api/internal/application/inventory"
	"github.com/jhoicas/restopos-api/internal/domain/entity"
	"github.com/jhoicas/restopos-api/internal/domain/repository"
)

var _ inventory.TxRunner = (*Store)(nil)

// Store estado en memoria del motor: ingredientes, lotes, movimientos y la
// configuración de estrategia. mu protege los mapas; txMu serializa las
// transacciones completas (sección crítica leer-calcular-escribir).
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	ingredients map[string]*entity.Ingredient
	batches     map[string]*entity.Batch
	movements   []*entity.Movement
	strategy    string
}

// NewStore construye un store vacío con la estrategia dada (FIFO/FEFO).
func NewStore(strategy string) *Store {
	return &Store{
		ingredients: map[string]*entity.Ingredient{},
		batches:     map[string]*entity.Batch{},
		strategy:    strategy,
	}
}

// SetConsumptionStrategy cambia la estrategia vigente (simula al administrador
// editando el setting; aplica a la siguiente asignación).
func (s *Store) SetConsumptionStrategy(strategy string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strategy = strings.ToUpper(strategy)
}

// Run ejecuta fn como una transacción: las mutaciones quedan serializadas por
// txMu y ante error se restaura el estado previo (rollback por snapshot).
func (s *Store) Run(ctx context.Context, fn func(
	batchRepo repository.BatchRepository,
	movRepo repository.MovementRepository,
	ingredientRepo repository.IngredientRepository,
) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snapIngredients, snapBatches, snapMovements := s.snapshot()
	if err := fn(&BatchRepo{s: s}, &MovementRepo{s: s}, &IngredientRepo{s: s}); err != nil {
		s.restore(snapIngredients, snapBatches, snapMovements)
		return err
	}
	return nil
}

// Repos devuelve los adaptadores para lecturas fuera de transacción.
func (s *Store) Repos() (repository.BatchRepository, repository.MovementRepository, repository.IngredientRepository) {
	return &BatchRepo{s: s}, &MovementRepo{s: s}, &IngredientRepo{s: s}
}

// ConsumptionStrategy implementa repository.SettingsRepository.
func (s *Store) ConsumptionStrategy(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.strategy, nil
}

var _ repository.SettingsRepository = (*Store)(nil)

// snapshot copia los mapas bajo lock. Los valores son inmutables desde afuera
// (los repos devuelven y guardan copias), así que basta copiar los mapas.
func (s *Store) snapshot() (map[string]*entity.Ingredient, map[string]*entity.Batch, []*entity.Movement) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ings := make(map[string]*entity.Ingredient, len(s.ingredients))
	for k, v := range s.ingredients {
		ings[k] = v
	}
	batches := make(map[string]*entity.Batch, len(s.batches))
	for k, v := range s.batches {
		batches[k] = v
	}
	movs := make([]*entity.Movement, len(s.movements))
	copy(movs, s.movements)
	return ings, batches, movs
}

func (s *Store) restore(ings map[string]*entity.Ingredient, batches map[string]*entity.Batch, movs []*entity.Movement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ingredients = ings
	s.batches = batches
	s.movements = movs
}

// dateOnly trunca a medianoche UTC para comparar por fecha calendario (misma
// regla que el adaptador PostgreSQL con ::date).
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func copyIngredient(ing *entity.Ingredient) *entity.Ingredient {
	c := *ing
	return &c
}

func copyBatch(b *entity.Batch) *entity.Batch {
	c := *b
	if b.SupplierID != nil {
		v := *b.SupplierID
		c.SupplierID = &v
	}
	if b.ManufacturingDate != nil {
		v := *b.ManufacturingDate
		c.ManufacturingDate = &v
	}
	if b.ExpiryDate != nil {
		v := *b.ExpiryDate
		c.ExpiryDate = &v
	}
	return &c
}

func copyMovement(m *entity.Movement) *entity.Movement {
	c := *m
	if m.BatchID != nil {
		v := *m.BatchID
		c.BatchID = &v
	}
	return &c
}

// sortByStrategy ordena lotes en el orden determinista de la estrategia.
func sortByStrategy(batches []*entity.Batch, strategy string) {
	switch strategy {
	case entity.StrategyFEFO:
		sort.SliceStable(batches, func(i, j int) bool {
			a, b := batches[i], batches[j]
			switch {
			case a.ExpiryDate == nil && b.ExpiryDate == nil:
				// sigue por fecha de compra
			case a.ExpiryDate == nil:
				return false // sin vencimiento al final
			case b.ExpiryDate == nil:
				return true
			case !a.ExpiryDate.Equal(*b.ExpiryDate):
				return a.ExpiryDate.Before(*b.ExpiryDate)
			}
			if !a.PurchaseDate.Equal(b.PurchaseDate) {
				return a.PurchaseDate.Before(b.PurchaseDate)
			}
			return a.ID < b.ID
		})
	default: // FIFO
		sort.SliceStable(batches, func(i, j int) bool {
			a, b := batches[i], batches[j]
			if !a.PurchaseDate.Equal(b.PurchaseDate) {
				return a.PurchaseDate.Before(b.PurchaseDate)
			}
			return a.ID < b.ID
		})
	}
}

// sortByDeficit ordena ingredientes por mayor déficit de reorden, empate por nombre.
func sortByDeficit(list []*entity.Ingredient) {
	sort.SliceStable(list, func(i, j int) bool {
		defA := list[i].ReorderLevel.Sub(list[i].CurrentStock)
		defB := list[j].ReorderLevel.Sub(list[j].CurrentStock)
		if !defA.Equal(defB) {
			return defA.GreaterThan(defB)
		}
		return list[i].Name < list[j].Name
	})
}

// sumActiveRemainingLocked requiere s.mu tomado.
func (s *Store) sumActiveRemainingLocked(ingredientID string) decimal.Decimal {
	sum := decimal.Zero
	for _, b := range s.batches {
		if b.IngredientID == ingredientID && b.Status == entity.BatchStatusActive {
			sum = sum.Add(b.QuantityRemaining)
		}
	}
	return sum
}
