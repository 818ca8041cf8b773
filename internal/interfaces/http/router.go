package http

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/refugio-api/internal/application/auth"
	"github.com/jhoicas/refugio-api/internal/application/dto"
	"github.com/jhoicas/refugio-api/internal/application/inventory"
	"github.com/jhoicas/refugio-api/internal/application/treatment"
	"github.com/jhoicas/refugio-api/internal/domain/entity"
	"github.com/jhoicas/refugio-api/pkg/logger"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	SupplyUC    *inventory.SupplyUseCase
	Treatments  *treatment.Service
	AuthUC      *auth.AuthUseCase
	Idempotency IdempotencyStore // nil desactiva Idempotency-Key
	JWTSecret   string
	Log         *logger.Logger
	// Health verifica el almacenamiento (ping a la base); nil = siempre ok.
	Health func(ctx context.Context) error
}

// NewApp crea la app Fiber con recover, log de peticiones y errores en JSON.
func NewApp(name string, log *logger.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			msg := "error interno"
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code, msg = fe.Code, fe.Message
			}
			return c.Status(code).JSON(dto.ErrorResponse{Code: "HTTP_" + httpCodeName(code), Message: msg})
		},
	})
	app.Use(recover.New())
	app.Use(RequestLogger(log))
	return app
}

func httpCodeName(code int) string {
	switch code {
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case fiber.StatusRequestEntityTooLarge:
		return "BODY_TOO_LARGE"
	case fiber.StatusInternalServerError:
		return "INTERNAL"
	}
	return "ERROR"
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		if deps.Health != nil {
			if err := deps.Health(c.Context()); err != nil {
				c.Locals(LocalError, err)
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded"})
			}
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	// Auth (público)
	authHandler := NewAuthHandler(deps.AuthUC)
	api.Post("/auth/login", authHandler.Login)

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))
	clinical := RequireRole(entity.RoleAdmin, entity.RoleVeterinario)
	idem := Idempotency(deps.Idempotency, deps.Log)

	// Users (solo admin)
	protected.Post("/users", RequireRole(entity.RoleAdmin), authHandler.Register)

	// Supplies
	supplies := protected.Group("/supplies")
	supplyHandler := NewSupplyHandler(deps.SupplyUC)
	supplies.Get("/", supplyHandler.List)
	supplies.Post("/", supplyHandler.Create)
	supplies.Get("/:id", supplyHandler.GetByID)
	supplies.Put("/:id", supplyHandler.Update)
	supplies.Post("/:id/restock", supplyHandler.Restock)
	supplies.Delete("/:id", clinical, supplyHandler.Delete)

	// Treatments
	treatments := protected.Group("/treatments")
	treatmentHandler := NewTreatmentHandler(deps.Treatments)
	treatments.Post("/", idem, treatmentHandler.Create)
	treatments.Get("/:id", treatmentHandler.Get)
	treatments.Put("/:id", treatmentHandler.Update)
	treatments.Delete("/:id", clinical, treatmentHandler.Delete)
	treatments.Post("/:id/lines", treatmentHandler.AddLine)
	treatments.Put("/:id/lines/:supplyID", treatmentHandler.SetLine)
	treatments.Delete("/:id/lines/:supplyID", treatmentHandler.RemoveLine)
	treatments.Post("/:id/approve", clinical, idem, treatmentHandler.Approve)
	treatments.Post("/:id/reject", clinical, idem, treatmentHandler.Reject)

	protected.Get("/animals/:animalID/treatments", treatmentHandler.ListByAnimal)
}
