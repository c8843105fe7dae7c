// Package repository is the record store: MySQL-backed repositories for
// tickets, sections, check-status entries, customers and staff accounts,
// plus in-memory equivalents used when STORE_DRIVER=memory and in tests.
// Every method is individually atomic; the batch methods
// (DeleteAndRenumber, HandOverServing) run in a single transaction.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup, update or delete addresses a
// record that does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when an insert or update would violate a unique
// key, such as a second check-status entry for one membership number.
var ErrDuplicate = errors.New("duplicate key")

// mysqlDuplicateEntry is the server error number for a unique key violation.
const mysqlDuplicateEntry = 1062

// isDuplicateKey reports whether err is MySQL's duplicate entry error.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// mapWriteErr converts driver errors on insert/update into repository
// sentinels.
func mapWriteErr(err error) error {
	if isDuplicateKey(err) {
		return ErrDuplicate
	}
	return err
}
