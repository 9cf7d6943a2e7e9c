// Package app arma el contenedor del motor de lotes: configuración, logger,
// métricas, pool de PostgreSQL y casos de uso. Es el punto de entrada que
// consume la capa de administración (este núcleo no define superficie HTTP ni
// CLI propia).
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jhoicas/restopos-api/internal/application/inventory"
	"github.com/jhoicas/restopos-api/internal/application/reporting"
	"github.com/jhoicas/restopos-api/internal/infrastructure/postgres"
	"github.com/jhoicas/restopos-api/pkg/config"
	"github.com/jhoicas/restopos-api/pkg/logger"
	"github.com/jhoicas/restopos-api/pkg/metrics"
)

// Container expone los casos de uso ya cableados y los recursos compartidos.
type Container struct {
	Config   *config.Config
	Log      *logger.Logger
	Metrics  *metrics.Metrics
	Pool     *pgxpool.Pool
	Recorder *inventory.MovementRecorderUseCase
	Reporter *reporting.ReporterUseCase
}

// New construye el contenedor con PostgreSQL como almacenamiento. El caller es
// dueño del ciclo de vida: llamar Close al apagar.
func New(ctx context.Context) (*Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("cargar configuración: %w", err)
	}

	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})
	met := metrics.New(prometheus.DefaultRegisterer)

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("conectar PostgreSQL: %w", err)
	}

	txRunner := postgres.NewTxRunner(pool)
	settingsRepo := postgres.NewSettingsRepository(pool, cfg.Inventory.DefaultStrategy)
	batchRepo := postgres.NewBatchRepository(pool)
	ingredientRepo := postgres.NewIngredientRepository(pool)

	recorder := inventory.NewMovementRecorderUseCase(txRunner, settingsRepo, log, met, cfg.Inventory.AutoExpire)
	reporter := reporting.NewReporterUseCase(batchRepo, ingredientRepo, met)

	log.Info().
		Str("env", cfg.App.Env).
		Str("default_strategy", cfg.Inventory.DefaultStrategy).
		Bool("auto_expire", cfg.Inventory.AutoExpire).
		Msg("motor de lotes inicializado")

	return &Container{
		Config:   cfg,
		Log:      log,
		Metrics:  met,
		Pool:     pool,
		Recorder: recorder,
		Reporter: reporter,
	}, nil
}

// Close libera el pool de conexiones.
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}
