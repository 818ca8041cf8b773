package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// TreatmentStatus estado del ciclo de vida de un tratamiento.
type TreatmentStatus string

// Estados válidos. Aprobado y Rechazado son terminales.
const (
	TreatmentPending  TreatmentStatus = "Pendiente"
	TreatmentApproved TreatmentStatus = "Aprobado"
	TreatmentRejected TreatmentStatus = "Rechazado"
)

// Valid indica si el estado es uno de los tres conocidos.
func (s TreatmentStatus) Valid() bool {
	switch s {
	case TreatmentPending, TreatmentApproved, TreatmentRejected:
		return true
	}
	return false
}

// Terminal indica si el estado ya no admite transiciones.
func (s TreatmentStatus) Terminal() bool {
	return s == TreatmentApproved || s == TreatmentRejected
}

// CanTransitionTo aplica la máquina de estados: solo Pendiente -> Aprobado | Rechazado.
func (s TreatmentStatus) CanTransitionTo(next TreatmentStatus) bool {
	return s == TreatmentPending && next.Terminal()
}

// Treatment intervención médica sobre un animal, registrada por un usuario.
// Tipo, descripción y líneas solo son editables mientras está Pendiente.
type Treatment struct {
	ID          int64
	AnimalID    int64
	AuthorID    int64
	Type        string
	Description *string
	Date        time.Time
	Status      TreatmentStatus
	Lines       []TreatmentLine
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Editable indica si el tratamiento admite cambios de borrador.
func (t *Treatment) Editable() bool {
	return t.Status == TreatmentPending
}

// Line devuelve la línea del insumo indicado, si existe.
func (t *Treatment) Line(supplyID int64) (TreatmentLine, bool) {
	for _, l := range t.Lines {
		if l.SupplyID == supplyID {
			return l, true
		}
	}
	return TreatmentLine{}, false
}

// TreatmentLine cantidad de un insumo requerida por un tratamiento (clave compuesta tratamiento+insumo).
type TreatmentLine struct {
	TreatmentID int64
	SupplyID    int64
	Quantity    decimal.Decimal
}
