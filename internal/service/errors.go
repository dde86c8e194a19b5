package service

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Error kinds returned by the services. Callers wrap them with %w and the
// HTTP layer maps them with errors.Is.
var (
	ErrValidacion   = errors.New("validation error")
	ErrConflicto    = errors.New("conflict")
	ErrNoEncontrado = errors.New("not found")
)

const pgUniqueViolation = "23505"

// esDuplicado reports whether err is a unique-key violation from the database.
func esDuplicado(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// esSentinel reports whether err already carries one of the service error kinds.
func esSentinel(err error) bool {
	return errors.Is(err, ErrValidacion) || errors.Is(err, ErrConflicto) || errors.Is(err, ErrNoEncontrado)
}
