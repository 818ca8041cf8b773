package dto

import "github.com/shopspring/decimal"

// CreateSupplyRequest body para POST /api/supplies (crea o suma a un insumo existente).
type CreateSupplyRequest struct {
	Name      string       `json:"name" validate:"required,max=50"`
	Unit      string       `json:"unit" validate:"required,max=50"`
	Stock     QuantityText `json:"stock"`
	ExpiresAt *Date        `json:"expires_at"`
}

// RestockRequest body para POST /api/supplies/:id/restock. Delta puede ser negativo;
// como toda cantidad admite hasta 8 dígitos enteros y 2 decimales.
type RestockRequest struct {
	Delta *decimal.Decimal `json:"delta" validate:"required"`
}

// UpdateSupplyRequest body para PUT /api/supplies/:id (no modifica stock).
type UpdateSupplyRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=50"`
	Unit        *string `json:"unit" validate:"omitempty,max=50"`
	ExpiresAt   *Date   `json:"expires_at"`
	ClearExpiry bool    `json:"clear_expiry"`
}

// SupplyResponse salida de un insumo.
type SupplyResponse struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Unit      string          `json:"unit"`
	Stock     decimal.Decimal `json:"stock"`
	ExpiresAt *string         `json:"expires_at"`
	Expired   bool            `json:"expired"`
}

// SupplyMergeResponse resultado de crear o fusionar un insumo.
// Warning avisa, sin impedir la fusión, que el insumo existente ya estaba vencido.
type SupplyMergeResponse struct {
	Supply  SupplyResponse `json:"supply"`
	Merged  bool           `json:"merged"`
	Warning string         `json:"warning,omitempty"`
}

// SupplyListResponse listado de insumos.
type SupplyListResponse struct {
	Items []SupplyResponse `json:"items"`
	Total int              `json:"total"`
}
