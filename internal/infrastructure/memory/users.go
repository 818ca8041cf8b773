package memory

import (
	"context"
	"strings"

	"github.com/jhoicas/refugio-api/internal/domain"
	"github.com/jhoicas/refugio-api/internal/domain/entity"
)

type userRepo struct {
	s *Store
}

func (r *userRepo) Create(ctx context.Context, u *entity.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.users {
		if strings.EqualFold(other.Email, u.Email) {
			return domain.Conflictf("el email %s ya está registrado", u.Email)
		}
	}
	r.s.nextUser++
	u.ID = r.s.nextUser
	r.s.users[u.ID] = *u
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			c := u
			return &c, nil
		}
	}
	return nil, nil
}
