package dto

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/refugio-api/internal/domain"
)

// LineRequest línea de insumo en la creación de un tratamiento.
// Las cantidades no positivas o ilegibles se descartan; ids repetidos se suman.
type LineRequest struct {
	SupplyID int64        `json:"supply_id"`
	Quantity QuantityText `json:"quantity"`
}

// CreateTreatmentRequest body para POST /api/treatments.
type CreateTreatmentRequest struct {
	AnimalID    int64         `json:"animal_id" validate:"required,gt=0"`
	Type        string        `json:"type" validate:"required,max=50"`
	Description *string       `json:"description" validate:"omitempty,max=250"`
	Date        *Date         `json:"date"`
	Lines       []LineRequest `json:"lines"`
}

// UpdateTreatmentRequest body para PUT /api/treatments/:id.
type UpdateTreatmentRequest struct {
	Type        *string `json:"type" validate:"omitempty,max=50"`
	Description *string `json:"description" validate:"omitempty,max=250"`
}

// AddLineRequest body para POST /api/treatments/:id/lines.
type AddLineRequest struct {
	SupplyID int64           `json:"supply_id" validate:"required,gt=0"`
	Quantity decimal.Decimal `json:"quantity"`
}

// SetLineRequest body para PUT /api/treatments/:id/lines/:supplyID.
type SetLineRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
}

// LineResponse línea de un tratamiento.
type LineResponse struct {
	SupplyID int64           `json:"supply_id"`
	Quantity decimal.Decimal `json:"quantity"`
}

// TreatmentResponse salida de un tratamiento con sus líneas.
// Warnings lista las líneas que hoy superan el stock (no impide guardar el borrador).
type TreatmentResponse struct {
	ID          int64               `json:"id"`
	AnimalID    int64               `json:"animal_id"`
	AuthorID    int64               `json:"author_id"`
	Type        string              `json:"type"`
	Description *string             `json:"description"`
	Date        string              `json:"date"`
	Status      string              `json:"status"`
	Lines       []LineResponse      `json:"lines"`
	Warnings    []domain.StockIssue `json:"warnings,omitempty"`
}

// TreatmentListResponse tratamientos de un animal.
type TreatmentListResponse struct {
	Items []TreatmentResponse `json:"items"`
	Total int                 `json:"total"`
}

// StockErrorDetails detalle de un rechazo de aprobación por stock.
type StockErrorDetails struct {
	Phase  domain.StockPhase   `json:"phase"`
	Issues []domain.StockIssue `json:"issues"`
}

// LineResultResponse resultado de agregar o reemplazar una línea del borrador.
type LineResultResponse struct {
	Line    LineResponse       `json:"line"`
	Warning *domain.StockIssue `json:"warning,omitempty"`
}
