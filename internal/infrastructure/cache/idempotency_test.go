package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*IdempotencyStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewIdempotencyStore(client, time.Hour), mr
}

func TestReserve_SoloLaPrimeraVez(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	ok, err := s.Reserve(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Reserve(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, time.Hour, mr.TTL("idem:k1"))

	// en curso: todavía no hay respuesta que repetir
	resp, err := s.Lookup(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, resp)
}

func TestComplete_GuardaYConservaTTL(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	_, err := s.Reserve(ctx, "k2")
	require.NoError(t, err)
	mr.FastForward(10 * time.Minute)

	require.NoError(t, s.Complete(ctx, "k2", StoredResponse{Status: 201, ContentType: "application/json", Body: []byte(`{"id":1}`)}))

	resp, err := s.Lookup(ctx, "k2")
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 201, resp.Status)
	assert.JSONEq(t, `{"id":1}`, string(resp.Body))
	assert.Equal(t, 50*time.Minute, mr.TTL("idem:k2"))
}

func TestComplete_ClaveVencidaNoSeRecrea(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	_, err := s.Reserve(ctx, "k3")
	require.NoError(t, err)
	mr.FastForward(2 * time.Hour)

	require.NoError(t, s.Complete(ctx, "k3", StoredResponse{Status: 200}))
	assert.False(t, mr.Exists("idem:k3"))
}

func TestRelease_PermiteReintentar(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	_, err := s.Reserve(ctx, "k4")
	require.NoError(t, err)
	require.NoError(t, s.Release(ctx, "k4"))

	ok, err := s.Reserve(ctx, "k4")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReserve_Concurrente(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Reserve(ctx, "k5")
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins.Load())
}
