package store

import (
	"fmt"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// ISessionStore is the interface of the session directory owned by the daemon.
// Semantic rejections (missing record, duplicate key, transfer conflict) are
// reported as *Error values so callers can tell them apart from internal failures.
type ISessionStore interface {
	// Lookup returns the live record stored under key. The boolean return value
	// indicates whether a record was found. Expired records are never returned.
	Lookup(key string) (rec SessionRecord, found bool, err error)
	// Create inserts a new record. It fails with RetCExists if a live record
	// with the same key is already stored.
	Create(rec SessionRecord) (err error)
	// Commit updates an existing record. Every field present in rec overwrites
	// the stored value, absent fields are left untouched. It fails with
	// RetCNotFound if no live record exists for rec.Key.
	Commit(rec SessionRecord) (err error)
	// Transfer copies the identity (id, username, display name, expire) of the
	// record stored under src into the record stored under dst.
	Transfer(src, dst string) (err error)
	// Close releases the resources held by the store (e.g. background workers).
	Close() (err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("SessionStoreError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new store error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess          RetCode = iota // 0: Command executed successfully.
	RetCInternalError                   // 1: Command failed due to an internal error.
	RetCInvalidOperation                // 2: Invalid operation (e.g. missing key).
	RetCNotFound                        // 3: No live record for the key.
	RetCExists                          // 4: A live record already uses the key.
	RetCConflict                        // 5: Transfer target belongs to another identity.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCNotFound:
		return "NotFound"
	case RetCExists:
		return "Exists"
	case RetCConflict:
		return "Conflict"
	default:
		return "Unknown"
	}
}
