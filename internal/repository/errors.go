package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Common repository errors
var (
	ErrNotFound       = errors.New("record not found")
	ErrNotProvisioned = errors.New("table not provisioned")
	ErrStatusMismatch = errors.New("order status changed concurrently")
)

// undefinedTable is the postgres SQLSTATE for "relation does not exist"
const undefinedTable = "42P01"

// isUndefinedTable reports whether err originates from a missing relation
func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == undefinedTable
}
