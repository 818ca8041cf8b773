package http

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/refugio-api/internal/application/dto"
	"github.com/jhoicas/refugio-api/internal/domain"
)

// LocalError guarda el error de dominio para que el logger de peticiones lo registre.
const LocalError = "error"

var (
	validate       = validator.New()
	errInvalidBody = errors.New("cuerpo inválido")
)

// respondError traduce la taxonomía de errores del dominio a status y código HTTP.
func respondError(c *fiber.Ctx, err error) error {
	c.Locals(LocalError, err)

	var stockErr *domain.StockError
	switch {
	case errors.Is(err, errInvalidBody):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: err.Error()})
	case errors.As(err, &stockErr):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Code:    "INSUFFICIENT_STOCK",
			Message: stockErr.Error(),
			Details: dto.StockErrorDetails{Phase: stockErr.Phase, Issues: stockErr.Issues},
		})
	case errors.Is(err, domain.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: err.Error()})
	case errors.Is(err, domain.ErrInvalidState):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "INVALID_STATE", Message: err.Error()})
	case errors.Is(err, domain.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONFLICT", Message: err.Error()})
	case errors.Is(err, domain.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "credenciales inválidas"})
	case errors.Is(err, domain.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "cuenta inactiva"})
	case errors.Is(err, domain.ErrStorage):
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "STORAGE", Message: "no se pudo completar la operación, intente de nuevo"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"})
	}
}

// bind parsea el body JSON y aplica las reglas validate del DTO.
func bind(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	if err := validate.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return domain.Validationf("campos inválidos: %s", strings.Join(fields, ", "))
		}
		return domain.Validationf("%v", err)
	}
	return nil
}

// paramID lee un id numérico positivo de la ruta.
func paramID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Validationf("%s inválido", name)
	}
	return id, nil
}
