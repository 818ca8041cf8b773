package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/jhoicas/refugio-api/pkg/logger"
)

// HeaderRequestID cabecera de correlación; se genera si el cliente no la envía.
const (
	HeaderRequestID = "X-Request-ID"
	LocalRequestID  = "request_id"
)

// RequestLogger asigna un request id y registra cada petición con zerolog.
// 5xx se registra como error, 4xx como warn y el resto como info.
func RequestLogger(log *logger.Logger) fiber.Handler {
	l := log.Component("http")
	return func(c *fiber.Ctx) error {
		start := time.Now()
		rid := c.Get(HeaderRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(HeaderRequestID, rid)
		c.Locals(LocalRequestID, rid)

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}
		ev := l.Info()
		switch {
		case status >= fiber.StatusInternalServerError:
			ev = l.Error()
		case status >= fiber.StatusBadRequest:
			ev = l.Warn()
		}
		if e, ok := c.Locals(LocalError).(error); ok {
			ev = ev.Err(e)
		} else if err != nil {
			ev = ev.Err(err)
		}
		if uid := GetUserID(c); uid > 0 {
			ev = ev.Int64("user_id", uid)
		}
		ev.Str("request_id", rid).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")
		return err
	}
}
