package errors

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// DBError carries the driver-level details of a journal database failure.
type DBError struct {
	Driver     string `json:"driver"`
	Code       string `json:"code,omitempty"`
	Extended   string `json:"extended_code,omitempty"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
}

type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`

	Chain []string `json:"chain,omitempty"`

	DB *DBError `json:"db,omitempty"`
}

// Dump flattens err for logging. Journal failures from Postgres (pgx) and
// SQLite are unpacked into DB.
func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{
		TopMessage: err.Error(),
	}

	if te := As(err); te != nil {
		d.Code = te.Code()
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	d.DB = dbError(err)
	return d
}

func dbError(err error) *DBError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &DBError{
			Driver:     "postgres",
			Code:       pgErr.Code,
			Constraint: pgErr.ConstraintName,
			Table:      pgErr.TableName,
			Column:     pgErr.ColumnName,
			Detail:     pgErr.Detail,
			Message:    pgErr.Message,
		}
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return &DBError{
			Driver:   "sqlite",
			Code:     strconv.Itoa(int(liteErr.Code)),
			Extended: strconv.Itoa(int(liteErr.ExtendedCode)),
			Message:  liteErr.Error(),
		}
	}
	return nil
}
