package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/refugio-api/internal/application/auth"
	"github.com/jhoicas/refugio-api/internal/application/inventory"
	"github.com/jhoicas/refugio-api/internal/application/ports"
	"github.com/jhoicas/refugio-api/internal/application/treatment"
	"github.com/jhoicas/refugio-api/internal/domain/repository"
	"github.com/jhoicas/refugio-api/internal/infrastructure/cache"
	"github.com/jhoicas/refugio-api/internal/infrastructure/memory"
	"github.com/jhoicas/refugio-api/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/refugio-api/internal/interfaces/http"
	"github.com/jhoicas/refugio-api/pkg/config"
	"github.com/jhoicas/refugio-api/pkg/logger"
)

// storage agrupa el backend elegido con STORE.
type storage struct {
	txRunner   ports.TxRunner
	supplies   repository.SupplyRepository
	treatments repository.TreatmentRepository
	users      repository.UserRepository
	health     func(ctx context.Context) error
	close      func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
		App:   cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("store", cfg.App.Store).
		Msg("iniciando aplicación")

	ctx := context.Background()
	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.App.Store).Msg("inicializar almacenamiento")
	}
	defer store.close()

	loc, err := time.LoadLocation(cfg.App.Timezone)
	if err != nil {
		log.Warn().Err(err).Str("timezone", cfg.App.Timezone).Msg("zona horaria inválida, se usa la local")
		loc = time.Local
	}
	clock := ports.SystemClock{Location: loc}

	supplyUC := inventory.NewSupplyUseCase(store.txRunner, store.supplies, clock, log)
	treatmentSvc := treatment.NewService(store.txRunner, store.supplies, store.treatments, clock, log)
	authUC := auth.NewAuthUseCase(store.users, auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	}, log)
	if err := authUC.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		log.Fatal().Err(err).Msg("crear administrador inicial")
	}

	deps := httpRouter.RouterDeps{
		SupplyUC:   supplyUC,
		Treatments: treatmentSvc,
		AuthUC:     authUC,
		JWTSecret:  cfg.JWT.Secret,
		Log:        log,
		Health:     store.health,
	}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis no responde; Idempotency-Key se ignora mientras no vuelva")
		}
		deps.Idempotency = cache.NewIdempotencyStore(rdb, cfg.Idempotency.TTL())
	} else {
		log.Info().Msg("REDIS_ADDR vacío: Idempotency-Key desactivado")
	}

	app := httpRouter.NewApp(cfg.App.Name, log)
	httpRouter.Router(app, deps)

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}

func openStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) (*storage, error) {
	if cfg.App.Store == config.StoreMemory {
		log.Warn().Msg("STORE=memory: los datos se pierden al reiniciar")
		m := memory.NewStore()
		return &storage{
			txRunner:   m,
			supplies:   m.Supplies(),
			treatments: m.Treatments(),
			users:      m.Users(),
			close:      func() {},
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &storage{
		txRunner:   postgres.NewTxRunner(pool, cfg.DB.LockTimeout()),
		supplies:   postgres.NewSupplyRepository(pool),
		treatments: postgres.NewTreatmentRepository(pool),
		users:      postgres.NewUserRepository(pool),
		health:     pool.Ping,
		close:      pool.Close,
	}, nil
}
