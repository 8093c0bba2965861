package db

import (
	"errors"
	"fmt"
	"strings"

	"projector_reservation/errs"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// translate maps storage errors onto the errs kinds. Errors that are already
// classified pass through untouched.
func translate(err error, entity string) error {
	if err == nil {
		return nil
	}
	if errs.Kind(err) != nil {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.NotFound("%s not found", entity)
	}
	if isUniqueViolation(err) {
		return errs.Conflict("%s already exists or is taken", entity)
	}
	return fmt.Errorf("%s: %w", entity, err)
}

// lockForUpdate adds FOR UPDATE where the dialect supports it. SQLite
// serializes writers on its own.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
