package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/refugio-api/internal/application/dto"
	"github.com/jhoicas/refugio-api/internal/application/inventory"
)

// SupplyHandler maneja las peticiones HTTP del libro de insumos (protegido).
type SupplyHandler struct {
	uc *inventory.SupplyUseCase
}

// NewSupplyHandler construye el handler.
func NewSupplyHandler(uc *inventory.SupplyUseCase) *SupplyHandler {
	return &SupplyHandler{uc: uc}
}

// Create godoc
// @Summary      Crear insumo o sumar a uno existente
// @Description  Mismo nombre (sin distinguir mayúsculas) y misma unidad suma el stock; otra unidad es conflicto.
// @Tags         supplies
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateSupplyRequest  true  "name, unit, stock, expires_at"
// @Success      201   {object}  dto.SupplyMergeResponse
// @Success      200   {object}  dto.SupplyMergeResponse  "fusionado"
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/supplies [post]
func (h *SupplyHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateSupplyRequest
	if err := bind(c, &in); err != nil {
		return respondError(c, err)
	}
	out, err := h.uc.CreateOrMerge(c.Context(), inventory.CreateSupplyInput{
		Name:      in.Name,
		Unit:      in.Unit,
		Quantity:  string(in.Stock),
		ExpiresAt: in.ExpiresAt.Ptr(),
	})
	if err != nil {
		return respondError(c, err)
	}
	status := fiber.StatusCreated
	if out.Merged {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(out)
}

// List godoc
// @Summary      Listar insumos
// @Tags         supplies
// @Security     Bearer
// @Produce      json
// @Param        q  query  string  false  "Buscar por nombre o unidad"
// @Success      200  {object}  dto.SupplyListResponse
// @Router       /api/supplies [get]
func (h *SupplyHandler) List(c *fiber.Ctx) error {
	out, err := h.uc.List(c.Context(), c.Query("q"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// GetByID godoc
// @Summary      Obtener insumo
// @Tags         supplies
// @Security     Bearer
// @Produce      json
// @Param        id  path  int  true  "ID del insumo"
// @Success      200  {object}  dto.SupplyResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/supplies/{id} [get]
func (h *SupplyHandler) GetByID(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	out, err := h.uc.GetByID(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// Restock godoc
// @Summary      Ajustar stock
// @Description  Suma delta (negativo para descontar). El stock nunca queda negativo.
// @Tags         supplies
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  int                  true  "ID del insumo"
// @Param        body  body  dto.RestockRequest   true  "delta"
// @Success      200   {object}  dto.SupplyResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/supplies/{id}/restock [post]
func (h *SupplyHandler) Restock(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var in dto.RestockRequest
	if err := bind(c, &in); err != nil {
		return respondError(c, err)
	}
	out, err := h.uc.Restock(c.Context(), id, *in.Delta)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// Update godoc
// @Summary      Editar insumo (nombre, unidad, vencimiento)
// @Tags         supplies
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  int                      true  "ID del insumo"
// @Param        body  body  dto.UpdateSupplyRequest  true  "campos a cambiar"
// @Success      200   {object}  dto.SupplyResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/supplies/{id} [put]
func (h *SupplyHandler) Update(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var in dto.UpdateSupplyRequest
	if err := bind(c, &in); err != nil {
		return respondError(c, err)
	}
	out, err := h.uc.Edit(c.Context(), id, inventory.EditSupplyInput{
		Name:        in.Name,
		Unit:        in.Unit,
		ExpiresAt:   in.ExpiresAt.Ptr(),
		ClearExpiry: in.ClearExpiry,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// Delete godoc
// @Summary      Eliminar insumo
// @Tags         supplies
// @Security     Bearer
// @Param        id  path  int  true  "ID del insumo"
// @Success      204
// @Failure      409  {object}  dto.ErrorResponse  "en uso por tratamientos"
// @Router       /api/supplies/{id} [delete]
func (h *SupplyHandler) Delete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := h.uc.Delete(c.Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
