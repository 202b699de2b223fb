package store

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
)

const (
	mysqlErrDupEntry        = 1062
	mysqlErrBadNull         = 1048
	mysqlErrRowIsReferenced = 1451
	mysqlErrNoReferencedRow = 1452
)

// normalizeWriteError turns constraint violations into validation errors so
// a user deleted between the existence check and the insert reads the same
// as one that never existed.
func normalizeWriteError(err error) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case mysqlErrNoReferencedRow, mysqlErrRowIsReferenced:
			return &ValidationError{Messages: []string{"referenced user must exist"}}
		case mysqlErrBadNull:
			return &ValidationError{Messages: []string{"a required value is missing"}}
		case mysqlErrDupEntry:
			return &ValidationError{Messages: []string{"has already been taken"}}
		}
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintForeignKey:
			return &ValidationError{Messages: []string{"referenced user must exist"}}
		case sqlite3.ErrConstraintNotNull:
			return &ValidationError{Messages: []string{"a required value is missing"}}
		case sqlite3.ErrConstraintUnique:
			return &ValidationError{Messages: []string{"has already been taken"}}
		}
	}

	return fmt.Errorf("failed to save chat message: %w", err)
}
