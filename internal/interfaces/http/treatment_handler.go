package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/refugio-api/internal/application/dto"
	"github.com/jhoicas/refugio-api/internal/application/treatment"
	"github.com/jhoicas/refugio-api/internal/domain/entity"
	"github.com/jhoicas/refugio-api/internal/domain/inventory"
)

// TreatmentHandler maneja tratamientos: borrador, aprobación y rechazo (protegido).
type TreatmentHandler struct {
	svc *treatment.Service
}

// NewTreatmentHandler construye el handler.
func NewTreatmentHandler(svc *treatment.Service) *TreatmentHandler {
	return &TreatmentHandler{svc: svc}
}

// Create godoc
// @Summary      Registrar tratamiento (Pendiente)
// @Description  Las líneas que superan el stock actual vuelven como warnings; no impiden guardar.
// @Tags         treatments
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header  string                      false  "clave de reintento"
// @Param        body             body    dto.CreateTreatmentRequest  true   "animal_id, type, description, date, lines"
// @Success      201  {object}  dto.TreatmentResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/treatments [post]
func (h *TreatmentHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateTreatmentRequest
	if err := bind(c, &in); err != nil {
		return respondError(c, err)
	}
	lines := make([]inventory.RawLine, 0, len(in.Lines))
	for _, l := range in.Lines {
		lines = append(lines, inventory.RawLine{SupplyID: l.SupplyID, Quantity: string(l.Quantity)})
	}
	res, err := h.svc.Create(c.Context(), treatment.CreateInput{
		AnimalID:    in.AnimalID,
		AuthorID:    GetUserID(c),
		Type:        in.Type,
		Description: in.Description,
		Date:        in.Date.Ptr(),
		Lines:       lines,
	})
	if err != nil {
		return respondError(c, err)
	}
	out := toTreatmentResponse(res.Treatment)
	out.Warnings = res.Warnings
	return c.Status(fiber.StatusCreated).JSON(out)
}

// Get godoc
// @Summary      Obtener tratamiento con sus líneas
// @Tags         treatments
// @Security     Bearer
// @Produce      json
// @Param        id  path  int  true  "ID del tratamiento"
// @Success      200  {object}  dto.TreatmentResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/treatments/{id} [get]
func (h *TreatmentHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	t, err := h.svc.Get(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toTreatmentResponse(t))
}

// ListByAnimal godoc
// @Summary      Tratamientos de un animal (por fecha)
// @Tags         treatments
// @Security     Bearer
// @Produce      json
// @Param        animalID  path  int  true  "ID del animal"
// @Success      200  {object}  dto.TreatmentListResponse
// @Router       /api/animals/{animalID}/treatments [get]
func (h *TreatmentHandler) ListByAnimal(c *fiber.Ctx) error {
	animalID, err := paramID(c, "animalID")
	if err != nil {
		return respondError(c, err)
	}
	list, err := h.svc.ListByAnimal(c.Context(), animalID)
	if err != nil {
		return respondError(c, err)
	}
	items := make([]dto.TreatmentResponse, 0, len(list))
	for _, t := range list {
		items = append(items, toTreatmentResponse(t))
	}
	return c.JSON(dto.TreatmentListResponse{Items: items, Total: len(items)})
}

// Update godoc
// @Summary      Editar tipo/descripción del borrador
// @Tags         treatments
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  int                         true  "ID del tratamiento"
// @Param        body  body  dto.UpdateTreatmentRequest  true  "type, description"
// @Success      200  {object}  dto.TreatmentResponse
// @Failure      409  {object}  dto.ErrorResponse  "no está Pendiente"
// @Router       /api/treatments/{id} [put]
func (h *TreatmentHandler) Update(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var in dto.UpdateTreatmentRequest
	if err := bind(c, &in); err != nil {
		return respondError(c, err)
	}
	t, err := h.svc.UpdateDraft(c.Context(), id, treatment.UpdateDraftInput{Type: in.Type, Description: in.Description})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toTreatmentResponse(t))
}

// Delete godoc
// @Summary      Eliminar tratamiento (no devuelve stock)
// @Tags         treatments
// @Security     Bearer
// @Param        id  path  int  true  "ID del tratamiento"
// @Success      204
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/treatments/{id} [delete]
func (h *TreatmentHandler) Delete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := h.svc.Delete(c.Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AddLine godoc
// @Summary      Agregar insumo al borrador (suma si ya está)
// @Tags         treatments
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  int                 true  "ID del tratamiento"
// @Param        body  body  dto.AddLineRequest  true  "supply_id, quantity"
// @Success      200  {object}  dto.LineResultResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/treatments/{id}/lines [post]
func (h *TreatmentHandler) AddLine(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var in dto.AddLineRequest
	if err := bind(c, &in); err != nil {
		return respondError(c, err)
	}
	res, err := h.svc.AddOrMergeLine(c.Context(), id, in.SupplyID, in.Quantity)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toLineResult(res))
}

// SetLine godoc
// @Summary      Reemplazar cantidad de una línea
// @Tags         treatments
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id        path  int                 true  "ID del tratamiento"
// @Param        supplyID  path  int                 true  "ID del insumo"
// @Param        body      body  dto.SetLineRequest  true  "quantity"
// @Success      200  {object}  dto.LineResultResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/treatments/{id}/lines/{supplyID} [put]
func (h *TreatmentHandler) SetLine(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	supplyID, err := paramID(c, "supplyID")
	if err != nil {
		return respondError(c, err)
	}
	var in dto.SetLineRequest
	if err := bind(c, &in); err != nil {
		return respondError(c, err)
	}
	res, err := h.svc.SetLineQuantity(c.Context(), id, supplyID, in.Quantity)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toLineResult(res))
}

// RemoveLine godoc
// @Summary      Quitar línea del borrador
// @Tags         treatments
// @Security     Bearer
// @Param        id        path  int  true  "ID del tratamiento"
// @Param        supplyID  path  int  true  "ID del insumo"
// @Success      204
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/treatments/{id}/lines/{supplyID} [delete]
func (h *TreatmentHandler) RemoveLine(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	supplyID, err := paramID(c, "supplyID")
	if err != nil {
		return respondError(c, err)
	}
	if err := h.svc.RemoveLine(c.Context(), id, supplyID); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Approve godoc
// @Summary      Aprobar tratamiento y descontar stock
// @Description  Todo o nada: si falta stock o un insumo venció responde 409 con la lista completa de problemas.
// @Tags         treatments
// @Security     Bearer
// @Produce      json
// @Param        id               path    int     true   "ID del tratamiento"
// @Param        Idempotency-Key  header  string  false  "clave de reintento"
// @Success      200  {object}  dto.TreatmentResponse
// @Failure      409  {object}  dto.ErrorResponse  "INSUFFICIENT_STOCK o INVALID_STATE"
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/treatments/{id}/approve [post]
func (h *TreatmentHandler) Approve(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	t, err := h.svc.Approve(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toTreatmentResponse(t))
}

// Reject godoc
// @Summary      Rechazar tratamiento
// @Tags         treatments
// @Security     Bearer
// @Produce      json
// @Param        id               path    int     true   "ID del tratamiento"
// @Param        Idempotency-Key  header  string  false  "clave de reintento"
// @Success      200  {object}  dto.TreatmentResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/treatments/{id}/reject [post]
func (h *TreatmentHandler) Reject(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	t, err := h.svc.Reject(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toTreatmentResponse(t))
}

func toTreatmentResponse(t *entity.Treatment) dto.TreatmentResponse {
	lines := make([]dto.LineResponse, 0, len(t.Lines))
	for _, l := range t.Lines {
		lines = append(lines, dto.LineResponse{SupplyID: l.SupplyID, Quantity: l.Quantity})
	}
	return dto.TreatmentResponse{
		ID:          t.ID,
		AnimalID:    t.AnimalID,
		AuthorID:    t.AuthorID,
		Type:        t.Type,
		Description: t.Description,
		Date:        t.Date.Format(dto.DateLayout),
		Status:      string(t.Status),
		Lines:       lines,
	}
}

func toLineResult(r *treatment.LineResult) dto.LineResultResponse {
	return dto.LineResultResponse{
		Line:    dto.LineResponse{SupplyID: r.Line.SupplyID, Quantity: r.Line.Quantity},
		Warning: r.Warning,
	}
}

