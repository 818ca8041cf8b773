package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Errores de dominio (sin dependencias de infraestructura).
var (
	ErrValidation        = errors.New("entrada inválida")
	ErrConflict          = errors.New("conflicto con el estado actual")
	ErrNotFound          = errors.New("recurso no encontrado")
	ErrInvalidState      = errors.New("operación no permitida en el estado actual")
	ErrInsufficientStock = errors.New("stock insuficiente")
	ErrStorage           = errors.New("error de almacenamiento")
	ErrUnauthorized      = errors.New("no autorizado")
	ErrForbidden         = errors.New("acceso denegado")
)

// StockPhase indica en qué pasada de la aprobación se detectó el problema.
type StockPhase string

const (
	// PhasePrecheck validación rápida sin bloqueos.
	PhasePrecheck StockPhase = "precheck"
	// PhaseLocked re-validación con las filas de insumo bloqueadas.
	PhaseLocked StockPhase = "locked"
)

// StockIssueReason tipo de problema de una línea.
type StockIssueReason string

const (
	ReasonShortage StockIssueReason = "shortage"
	ReasonExpired  StockIssueReason = "expired"
)

// StockIssue describe un faltante o vencimiento de un insumo requerido por un tratamiento.
type StockIssue struct {
	SupplyID  int64            `json:"supply_id"`
	Name      string           `json:"name"`
	Reason    StockIssueReason `json:"reason"`
	Required  decimal.Decimal  `json:"required"`
	Available decimal.Decimal  `json:"available"`
	ExpiresAt *time.Time       `json:"expires_at,omitempty"`
}

func (i StockIssue) String() string {
	if i.Reason == ReasonExpired && i.ExpiresAt != nil {
		return fmt.Sprintf("%s vencido (vence: %s)", i.Name, i.ExpiresAt.Format("2006-01-02"))
	}
	return fmt.Sprintf("%s (disponible: %s, requerido: %s)", i.Name, i.Available.String(), i.Required.String())
}

// StockError lleva la lista completa de problemas encontrados al aprobar.
// errors.Is(err, ErrInsufficientStock) es verdadero.
type StockError struct {
	Phase  StockPhase
	Issues []StockIssue
}

func (e *StockError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, i := range e.Issues {
		parts = append(parts, i.String())
	}
	return fmt.Sprintf("%s (%s): %s", ErrInsufficientStock.Error(), e.Phase, strings.Join(parts, "; "))
}

func (e *StockError) Is(target error) bool { return target == ErrInsufficientStock }

// StorageError envuelve una falla de persistencia o de transacción.
// errors.Is(err, ErrStorage) es verdadero y Unwrap expone el error del driver.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStorage.Error(), e.Op, e.Err)
}

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

func (e *StorageError) Unwrap() error { return e.Err }

// IsDomainError indica si err ya pertenece a la taxonomía del dominio.
func IsDomainError(err error) bool {
	for _, target := range []error{
		ErrValidation, ErrConflict, ErrNotFound, ErrInvalidState,
		ErrInsufficientStock, ErrStorage, ErrUnauthorized, ErrForbidden,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// AsStorage deja pasar errores de dominio y envuelve el resto como StorageError.
func AsStorage(op string, err error) error {
	if err == nil || IsDomainError(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// Validationf construye un error de validación con detalle.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Conflictf construye un error de conflicto con detalle.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// NotFoundf construye un error de recurso inexistente con detalle.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// InvalidStatef construye un error de estado inválido con detalle.
func InvalidStatef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}
