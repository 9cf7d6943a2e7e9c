package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jhoicas/restopos-api/internal/domain"
)

// isUniqueViolation verifica si un error es una violación de constraint único (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return strings.Contains(err.Error(), "23505")
}

// mapConcurrencyError traduce aborts del motor por contención a
// ConcurrencyConflictError: el caller puede reintentar la operación completa
// porque nada quedó confirmado.
//
//	40001 serialization_failure, 40P01 deadlock_detected, 55P03 lock_not_available
func mapConcurrencyError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return &domain.ConcurrencyConflictError{Cause: err}
		}
	}
	return err
}
