package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/lib/pq"
	"github.com/smartdevs17/activity-feed/pkg/utils"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var errNotConnected = utils.NewAppError(utils.ErrCodeStorageUnavailable, "Database not connected")

// classifyError maps driver errors onto application error codes. Context
// errors and errors that already carry a code pass through unchanged.
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		return err
	}

	switch {
	case isConcurrencyError(err):
		return utils.WrapAppError(utils.ErrCodeConcurrency, op+" conflicted with a concurrent writer", err)
	case isUnavailableError(err):
		return utils.WrapAppError(utils.ErrCodeStorageUnavailable, op+" failed: storage unavailable", err)
	default:
		return utils.WrapAppError(utils.ErrCodeDatabase, "Failed to "+op, err)
	}
}

func isConcurrencyError(err error) bool {
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
	}

	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03": // serialization_failure, deadlock_detected, lock_not_available
			return true
		}
	}
	return false
}

func isUnavailableError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		switch pgErr.Code.Class() {
		case "08", "53", "57": // connection, insufficient resources, operator intervention
			return true
		}
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
