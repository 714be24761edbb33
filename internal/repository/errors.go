// Package repository holds the MySQL-backed stores of the service and the
// sentinel errors they share. Handlers and services compare against these
// values with errors.Is to tell a missing row or a conflicting state apart
// from a storage fault.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrConflict is returned when a delete or update cannot be
// performed because of conflicting state, such as deleting an
// event that still has committed purchases. Handlers should
// translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrEventNotFound is returned when no event row matches the id.
var ErrEventNotFound = errors.New("event not found")

// ErrPurchaseNotFound is returned when no purchase row matches the id.
var ErrPurchaseNotFound = errors.New("purchase not found")

// ErrDuplicateTicketID is returned when the generated ticket code
// collides with an existing purchase.
var ErrDuplicateTicketID = errors.New("duplicate ticket id")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
