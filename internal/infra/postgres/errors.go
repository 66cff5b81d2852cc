package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/digitarmedia-techteam/MintX-sub000/internal/domain"
	"github.com/uptrace/bun/driver/pgdriver"
)

// PostgreSQL error codes
const (
	serializationFailureCode = "40001"
	deadlockDetectedCode     = "40P01"
	uniqueViolationCode      = "23505"
)

// errNoRowsUpdated marks a conditional UPDATE that lost its version check.
var errNoRowsUpdated = errors.New("no rows updated")

// mapError maps a database error to a domain error, wrapping the original.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, errNoRowsUpdated) {
		return domain.ErrTxConflict
	}

	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		switch pgErr.Field('C') {
		case serializationFailureCode, deadlockDetectedCode, uniqueViolationCode:
			return fmt.Errorf("%w: %v", domain.ErrTxConflict, err)
		}
		return err
	}
	if errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %v", domain.ErrTransientStore, err)
	}
	return err
}

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return errNoRowsUpdated
	}
	return nil
}
