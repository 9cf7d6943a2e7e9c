package repository

import "context"

// SettingsRepository expone la configuración administrada externamente.
// Este núcleo solo la lee; la escribe el panel de administración.
type SettingsRepository interface {
	// ConsumptionStrategy devuelve la estrategia vigente (FIFO o FEFO).
	// Se lee al inicio de cada asignación; no se cachea entre operaciones.
	ConsumptionStrategy(ctx context.Context) (string, error)
}
