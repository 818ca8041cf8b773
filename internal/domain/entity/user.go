package entity

import "time"

// Roles válidos para User.
const (
	RoleAdmin       = "admin"
	RoleVeterinario = "veterinario"
	RoleAsistente   = "asistente"
)

// ValidRole indica si role es uno de los roles del refugio.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleVeterinario, RoleAsistente:
		return true
	}
	return false
}

// User usuario del sistema. El id se usa como autor de los tratamientos.
type User struct {
	ID           int64
	Name         string
	LastName     string
	Email        string
	PasswordHash string // bcrypt
	Role         string
	Active       bool
	CreatedAt    time.Time
}
