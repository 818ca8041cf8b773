package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestPgCode_ReconoceErroresEnvueltos(t *testing.T) {
	unique := fmt.Errorf("insert supply: %w", &pgconn.PgError{Code: "23505"})
	fk := &pgconn.PgError{Code: "23503"}
	check := &pgconn.PgError{Code: "23514"}

	assert.True(t, isUniqueViolation(unique))
	assert.False(t, isUniqueViolation(fk))
	assert.True(t, isForeignKeyViolation(fk))
	assert.True(t, isCheckViolation(check))
	assert.False(t, isUniqueViolation(errors.New("23505 en el texto no cuenta")))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%`, escapeLike("100%"))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `c:\\x`, escapeLike(`c:\x`))
	assert.Equal(t, "suero", escapeLike("suero"))
}
