package store

import (
	"bytes"
	"time"
)

// SessionRecord is the unit of sign-on state exchanged between the client library
// and the daemon and kept by the store.
//
// String fields are byte slices: nil means "absent", a non-nil (possibly empty)
// slice means "present". Records decoded by the daemon reference the connection
// buffer they were parsed from, use Clone before retaining them.
type SessionRecord struct {
	Key         []byte
	ID          int32 // 0 (request) or <= 0 (response) means absent
	Username    []byte
	DisplayName []byte
	Expire      int64 // unix seconds, 0 means "no expire"
	Redirect    []byte
	Tag         []byte
}

// HasID reports whether the record carries a valid (positive) numeric identifier.
func (r *SessionRecord) HasID() bool {
	return r.ID > 0
}

// Expired reports whether the record has an expire time that lies at or before now.
func (r *SessionRecord) Expired(now time.Time) bool {
	return r.Expire > 0 && r.Expire <= now.Unix()
}

// Clone returns a deep copy of the record that shares no memory with r.
func (r *SessionRecord) Clone() SessionRecord {
	return SessionRecord{
		Key:         cloneField(r.Key),
		ID:          r.ID,
		Username:    cloneField(r.Username),
		DisplayName: cloneField(r.DisplayName),
		Expire:      r.Expire,
		Redirect:    cloneField(r.Redirect),
		Tag:         cloneField(r.Tag),
	}
}

// Merge overwrites every field of r that is present in other.
// The key is never changed.
func (r *SessionRecord) Merge(other *SessionRecord) {
	if other.ID != 0 {
		r.ID = other.ID
	}
	if other.Username != nil {
		r.Username = cloneField(other.Username)
	}
	if other.DisplayName != nil {
		r.DisplayName = cloneField(other.DisplayName)
	}
	if other.Expire != 0 {
		r.Expire = other.Expire
	}
	if other.Redirect != nil {
		r.Redirect = cloneField(other.Redirect)
	}
	if other.Tag != nil {
		r.Tag = cloneField(other.Tag)
	}
}

// Equal reports whether both records carry the same fields with identical values.
// Presence matters: a nil field is not equal to an empty one.
func (r *SessionRecord) Equal(other *SessionRecord) bool {
	return r.ID == other.ID &&
		r.Expire == other.Expire &&
		fieldEqual(r.Key, other.Key) &&
		fieldEqual(r.Username, other.Username) &&
		fieldEqual(r.DisplayName, other.DisplayName) &&
		fieldEqual(r.Redirect, other.Redirect) &&
		fieldEqual(r.Tag, other.Tag)
}

func cloneField(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func fieldEqual(a, b []byte) bool {
	return (a == nil) == (b == nil) && bytes.Equal(a, b)
}
