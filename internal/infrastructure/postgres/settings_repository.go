package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/restopos-api/internal/domain/repository"
)

var _ repository.SettingsRepository = (*SettingsRepo)(nil)

// SettingsRepo lee la configuración administrada por el panel desde la tabla
// key-value settings. Este núcleo nunca la escribe.
type SettingsRepo struct {
	q        Querier
	fallback string // estrategia por defecto si el store no tiene fila
}

// NewSettingsRepository construye el adaptador. fallback viene de
// config.Inventory.DefaultStrategy.
func NewSettingsRepository(q Querier, fallback string) *SettingsRepo {
	return &SettingsRepo{q: q, fallback: fallback}
}

// ConsumptionStrategy devuelve la estrategia vigente (FIFO/FEFO). Se consulta
// al inicio de cada asignación: un cambio del administrador aplica a la
// siguiente operación, nunca retroactivamente.
func (r *SettingsRepo) ConsumptionStrategy(ctx context.Context) (string, error) {
	var value string
	query := `SELECT value FROM settings WHERE key = 'consumption_strategy'`
	err := r.q.QueryRow(ctx, query).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.fallback, nil
		}
		return "", fmt.Errorf("get consumption strategy: %w", err)
	}
	return strings.ToUpper(strings.TrimSpace(value)), nil
}
