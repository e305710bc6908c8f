package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mattn/go-sqlite3"

	"storefront-api/internal/apperr"
)

// ErrNotFound is returned when an addressed document or record does
// not exist.
var ErrNotFound = apperr.NotFound("storage: not found")

// classify maps raw driver errors onto the backend error taxonomy.
// Constraint violations are permanent; everything else is treated as
// transient so the boundary may retry.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperr.Unavailable(op+": deadline expired", err)
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrConstraint:
			return apperr.Rejected(op+": constraint violated", err)
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return apperr.Unavailable(op+": store busy", err)
		}
	}
	return apperr.Unavailable(op+": store failure", err)
}
