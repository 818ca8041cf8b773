package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config agrupa la configuración de la aplicación (lectura vía Viper desde env y opcionalmente archivo).
type Config struct {
	App         AppConfig
	DB          DBConfig
	JWT         JWTConfig
	HTTP        HTTPConfig
	Redis       RedisConfig
	Idempotency IdempotencyConfig
	Admin       AdminConfig
}

// Backends de almacenamiento soportados.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
	Store    string // postgres | memory
	Timezone string // zona para "hoy" al comparar vencimientos
}

// DBConfig configuración de PostgreSQL.
// Si DatabaseURL no está vacío, se usa como connection string completo.
type DBConfig struct {
	DatabaseURL   string
	Host          string
	Port          int
	User          string
	Password      string
	DBName        string
	SSLMode       string
	MaxConns      int
	LockTimeoutMS int // 0 = esperar indefinidamente los SELECT FOR UPDATE
}

// ConnectionString devuelve el DSN a usar: DATABASE_URL si está definido, si no el construido con DSN().
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN devuelve el connection string con URL encoding para caracteres especiales en la contraseña.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// LockTimeout espera máxima por bloqueo de fila.
func (c DBConfig) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutMS) * time.Millisecond
}

// JWTConfig configuración de JWT.
type JWTConfig struct {
	Secret     string
	Expiration int // minutos
	Issuer     string
}

// HTTPConfig configuración del servidor HTTP.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr devuelve la dirección de escucha (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RedisConfig conexión a Redis. Addr vacío desactiva la idempotencia.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// IdempotencyConfig duración de las claves Idempotency-Key.
type IdempotencyConfig struct {
	TTLMinutes int
}

// TTL duración de una clave de idempotencia.
func (c IdempotencyConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// AdminConfig usuario administrador que se crea al arrancar si no existe.
type AdminConfig struct {
	Email    string
	Password string
}

// Load lee la configuración desde variables de entorno (y opcionalmente desde .env).
// Las env vars tienen prioridad.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // ignoramos error si no existe

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Env:      getString(v, "APP_ENV", "development"),
			Name:     getString(v, "APP_NAME", "refugio-api"),
			LogLevel: getString(v, "LOG_LEVEL", "info"),
			Store:    strings.ToLower(getString(v, "STORE", StorePostgres)),
			Timezone: getString(v, "APP_TIMEZONE", "America/Bogota"),
		},
		DB: DBConfig{
			DatabaseURL:   getString(v, "DATABASE_URL", ""),
			Host:          getString(v, "DB_HOST", "localhost"),
			Port:          getInt(v, "DB_PORT", 5432),
			User:          getString(v, "DB_USER", "postgres"),
			Password:      getString(v, "DB_PASSWORD", ""),
			DBName:        getString(v, "DB_NAME", "refugio"),
			SSLMode:       getString(v, "DB_SSLMODE", "disable"),
			MaxConns:      getInt(v, "DB_MAX_CONNS", 25),
			LockTimeoutMS: getInt(v, "DB_LOCK_TIMEOUT_MS", 5000),
		},
		JWT: JWTConfig{
			Secret:     getString(v, "JWT_SECRET", ""),
			Expiration: getInt(v, "JWT_EXPIRATION_MINUTES", 60),
			Issuer:     getString(v, "JWT_ISSUER", "refugio-api"),
		},
		HTTP: HTTPConfig{
			Host: getString(v, "HTTP_HOST", "0.0.0.0"),
			Port: getInt(v, "HTTP_PORT", 8080),
		},
		Redis: RedisConfig{
			Addr:     getString(v, "REDIS_ADDR", ""),
			Password: getString(v, "REDIS_PASSWORD", ""),
			DB:       getInt(v, "REDIS_DB", 0),
		},
		Idempotency: IdempotencyConfig{
			TTLMinutes: getInt(v, "IDEMPOTENCY_TTL_MINUTES", 1440),
		},
		Admin: AdminConfig{
			Email:    getString(v, "ADMIN_EMAIL", ""),
			Password: getString(v, "ADMIN_PASSWORD", ""),
		},
	}

	if cfg.App.Store != StorePostgres && cfg.App.Store != StoreMemory {
		return nil, fmt.Errorf("STORE inválido %q (postgres | memory)", cfg.App.Store)
	}
	if cfg.JWT.Secret == "" && cfg.App.Env == "production" {
		return nil, fmt.Errorf("JWT_SECRET es obligatorio en production")
	}
	return cfg, nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if !v.IsSet(key) {
		return def
	}
	if s, ok := v.Get(key).(string); ok {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return def
		}
		return n
	}
	return v.GetInt(key)
}
