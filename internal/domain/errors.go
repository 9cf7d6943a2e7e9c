package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Errores de dominio (sin dependencias de infraestructura).
var (
	ErrNotFound        = errors.New("recurso no encontrado")
	ErrInvalidInput    = errors.New("entrada inválida")
	ErrDuplicate       = errors.New("recurso duplicado")
	ErrBatchNotActive  = errors.New("el lote no está activo")
	ErrUnknownStrategy = errors.New("estrategia de consumo desconocida")
)

// InsufficientStockError indica que el total disponible en los lotes activos
// del ingrediente no alcanza para la cantidad solicitada. Lleva el faltante
// para que el caller decida si cumple parcial en una capa superior (este
// núcleo nunca cumple parcial).
type InsufficientStockError struct {
	IngredientID string
	Requested    decimal.Decimal
	Available    decimal.Decimal
	Shortfall    decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock insuficiente para ingrediente %s: solicitado %s, disponible %s (faltan %s)",
		e.IngredientID, e.Requested, e.Available, e.Shortfall)
}

// InsufficientQuantityError indica que un lote puntual (referenciado por id)
// no tiene restante suficiente para una deducción directa.
type InsufficientQuantityError struct {
	BatchID   string
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientQuantityError) Error() string {
	return fmt.Sprintf("cantidad insuficiente en lote %s: solicitado %s, restante %s",
		e.BatchID, e.Requested, e.Available)
}

// ConcurrencyConflictError indica que la transacción fue abortada por el motor
// (serialización/deadlock). Es seguro reintentar la operación completa: nada
// quedó confirmado.
type ConcurrencyConflictError struct {
	Cause error
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("conflicto de concurrencia, reintentar la operación: %v", e.Cause)
}

func (e *ConcurrencyConflictError) Unwrap() error { return e.Cause }
