package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "orders_user_client_reference_uq"}

	assert.True(t, IsUniqueViolation(dup, ""))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", dup), "orders_user_client_reference_uq"))
	assert.False(t, IsUniqueViolation(dup, "orders_pkey"))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))
	assert.False(t, IsUniqueViolation(errors.New("duplicate key"), ""))
	assert.False(t, IsUniqueViolation(nil, ""))
}

func TestNullableString(t *testing.T) {
	assert.Nil(t, NullableString(""))
	assert.Equal(t, "x", NullableString("x"))

	s := "note"
	assert.Equal(t, "note", StringOrEmpty(&s))
	assert.Equal(t, "", StringOrEmpty(nil))
}
