package http

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/refugio-api/internal/application/dto"
	"github.com/jhoicas/refugio-api/internal/infrastructure/cache"
	"github.com/jhoicas/refugio-api/pkg/logger"
)

// Cabeceras del protocolo de idempotencia.
const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"
	maxIdempotencyKeyLen = 128
)

// IdempotencyStore contrato mínimo del almacén de claves (lo implementa *cache.IdempotencyStore).
type IdempotencyStore interface {
	Reserve(ctx context.Context, key string) (bool, error)
	Complete(ctx context.Context, key string, resp cache.StoredResponse) error
	Lookup(ctx context.Context, key string) (*cache.StoredResponse, error)
	Release(ctx context.Context, key string) error
}

// Idempotency repite la respuesta 2xx de una petición ya procesada con la misma Idempotency-Key
// (por usuario, método y ruta). Mientras la primera sigue en curso responde 409 DUPLICATE_REQUEST.
// Sin cabecera, o con store nil, la petición pasa sin cambios. Si Redis falla también pasa:
// el estado del tratamiento ya impide aprobar o rechazar dos veces.
func Idempotency(store IdempotencyStore, log *logger.Logger) fiber.Handler {
	l := log.Component("idempotency")
	return func(c *fiber.Ctx) error {
		key := strings.TrimSpace(c.Get(HeaderIdempotencyKey))
		if store == nil || key == "" {
			return c.Next()
		}
		if len(key) > maxIdempotencyKeyLen {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "Idempotency-Key demasiado larga"})
		}
		scoped := fmt.Sprintf("%d:%s:%s:%s", GetUserID(c), c.Method(), c.Path(), key)
		ctx := c.Context()

		reserved, err := store.Reserve(ctx, scoped)
		if err != nil {
			l.Warn().Err(err).Msg("idempotencia no disponible, se procesa sin clave")
			return c.Next()
		}
		if !reserved {
			prev, err := store.Lookup(ctx, scoped)
			if err != nil {
				l.Warn().Err(err).Msg("no se pudo leer la respuesta guardada")
			}
			if prev != nil {
				c.Set(HeaderReplayed, "true")
				if prev.ContentType != "" {
					c.Set(fiber.HeaderContentType, prev.ContentType)
				}
				return c.Status(prev.Status).Send(prev.Body)
			}
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Code:    "DUPLICATE_REQUEST",
				Message: "ya hay una solicitud en curso con esta Idempotency-Key",
			})
		}

		err = c.Next()
		status := c.Response().StatusCode()
		if err != nil || status < 200 || status >= 300 {
			// sin efecto confirmado: el cliente puede reintentar con la misma clave
			if relErr := store.Release(ctx, scoped); relErr != nil {
				l.Warn().Err(relErr).Msg("no se pudo liberar la clave")
			}
			return err
		}
		resp := cache.StoredResponse{
			Status:      status,
			ContentType: string(c.Response().Header.ContentType()),
			Body:        append([]byte(nil), c.Response().Body()...),
		}
		if err := store.Complete(ctx, scoped, resp); err != nil {
			l.Warn().Err(err).Msg("no se pudo guardar la respuesta")
		}
		return nil
	}
}
