package auth

import (
	"context"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/refugio-api/internal/application/dto"
	"github.com/jhoicas/refugio-api/internal/domain"
	"github.com/jhoicas/refugio-api/internal/domain/entity"
	"github.com/jhoicas/refugio-api/internal/domain/repository"
	"github.com/jhoicas/refugio-api/pkg/jwt"
	"github.com/jhoicas/refugio-api/pkg/logger"
)

// JWTConfig configuración para generación de tokens.
type JWTConfig struct {
	Secret     string
	ExpMinutes int
	Issuer     string
}

// AuthUseCase casos de uso de autenticación: alta de usuarios y login.
type AuthUseCase struct {
	userRepo repository.UserRepository
	jwtCfg   JWTConfig
	log      *logger.Logger
	cost     int
}

// NewAuthUseCase construye el caso de uso de auth.
func NewAuthUseCase(userRepo repository.UserRepository, jwtCfg JWTConfig, log *logger.Logger) *AuthUseCase {
	return &AuthUseCase{userRepo: userRepo, jwtCfg: jwtCfg, log: log.Component("auth"), cost: bcrypt.DefaultCost}
}

// WithBcryptCost cambia el costo de bcrypt (los tests usan bcrypt.MinCost).
func (uc *AuthUseCase) WithBcryptCost(cost int) *AuthUseCase {
	uc.cost = cost
	return uc
}

// RegisterUser crea un usuario con la contraseña hasheada con bcrypt.
// Email repetido (sin distinguir mayúsculas) es conflicto.
func (uc *AuthUseCase) RegisterUser(ctx context.Context, in dto.RegisterRequest) (*dto.UserResponse, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return nil, domain.Validationf("email y contraseña son obligatorios")
	}
	if !entity.ValidRole(in.Role) {
		return nil, domain.Validationf("rol %q inválido", in.Role)
	}
	existing, err := uc.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, domain.AsStorage("buscar usuario", err)
	}
	if existing != nil {
		return nil, domain.Conflictf("el email %s ya está registrado", email)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), uc.cost)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = email
	}
	user := &entity.User{
		Name:         name,
		LastName:     strings.TrimSpace(in.LastName),
		Email:        email,
		PasswordHash: string(hash),
		Role:         in.Role,
		Active:       true,
		CreatedAt:    time.Now(),
	}
	if err := uc.userRepo.Create(ctx, user); err != nil {
		return nil, domain.AsStorage("crear usuario", err)
	}
	uc.log.Info().Int64("user_id", user.ID).Str("role", user.Role).Msg("usuario creado")
	return toUserResponse(user), nil
}

// EnsureAdmin crea el administrador inicial si todavía no existe un usuario con ese email.
func (uc *AuthUseCase) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	existing, err := uc.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return domain.AsStorage("buscar administrador", err)
	}
	if existing != nil {
		return nil
	}
	_, err = uc.RegisterUser(ctx, dto.RegisterRequest{
		Name: "Administrador", Email: email, Password: password, Role: entity.RoleAdmin,
	})
	return err
}

// Login verifica email/password, genera JWT y retorna token + usuario.
// Email desconocido y contraseña errónea dan el mismo error.
func (uc *AuthUseCase) Login(ctx context.Context, in dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := uc.userRepo.GetByEmail(ctx, strings.TrimSpace(in.Email))
	if err != nil {
		return nil, domain.AsStorage("buscar usuario", err)
	}
	if user == nil {
		return nil, domain.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, domain.ErrUnauthorized
	}
	if !user.Active {
		return nil, domain.ErrForbidden
	}
	token, err := jwt.Generate(uc.jwtCfg.Secret, user.ID, user.Role, uc.jwtCfg.Issuer, uc.jwtCfg.ExpMinutes)
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{
		Token: token,
		User:  *toUserResponse(user),
	}, nil
}

func toUserResponse(u *entity.User) *dto.UserResponse {
	return &dto.UserResponse{
		ID:       u.ID,
		Name:     u.Name,
		LastName: u.LastName,
		Email:    u.Email,
		Role:     u.Role,
	}
}
