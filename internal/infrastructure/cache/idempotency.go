// Package cache adaptadores sobre Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyPrefix = "idem:"
	pendingMarker     = "pending"
)

// StoredResponse respuesta guardada para repetirla ante un reintento con la misma clave.
type StoredResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// IdempotencyStore reserva claves Idempotency-Key con SETNX y guarda la respuesta final.
// Una clave vive ttl desde la reserva; mientras la petición original corre vale "pending".
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore construye el adaptador.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl}
}

// Reserve intenta tomar la clave. false significa que otra petición ya la usó.
func (s *IdempotencyStore) Reserve(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.SetNX(ctx, idempotencyPrefix+key, pendingMarker, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reservar clave de idempotencia: %w", err)
	}
	return ok, nil
}

// Complete guarda la respuesta de la petición que reservó la clave, conservando el TTL restante.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, resp StoredResponse) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("serializar respuesta: %w", err)
	}
	if err := s.client.SetArgs(ctx, idempotencyPrefix+key, raw, redis.SetArgs{KeepTTL: true, Mode: "XX"}).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("guardar respuesta idempotente: %w", err)
	}
	return nil
}

// Lookup devuelve la respuesta guardada. (nil, nil) si la clave no existe o sigue en curso.
func (s *IdempotencyStore) Lookup(ctx context.Context, key string) (*StoredResponse, error) {
	raw, err := s.client.Get(ctx, idempotencyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("leer clave de idempotencia: %w", err)
	}
	if string(raw) == pendingMarker {
		return nil, nil
	}
	var resp StoredResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decodificar respuesta idempotente: %w", err)
	}
	return &resp, nil
}

// Release libera la clave para que el cliente pueda reintentar (la petición falló sin efecto).
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, idempotencyPrefix+key).Err(); err != nil {
		return fmt.Errorf("liberar clave de idempotencia: %w", err)
	}
	return nil
}
