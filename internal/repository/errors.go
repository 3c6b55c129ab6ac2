package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"securedocs/internal/domain"
)

const uniqueViolation = "23505"

func wrapErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("db error: %w", err)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
