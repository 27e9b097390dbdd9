// Package store defines the session directory that sits behind the uniauth daemon.
// It contains the SessionRecord domain type shared by the wire codec, the client
// library and the store implementations, plus the ISessionStore interface the
// daemon dispatches requests to.
//
// The package focuses on:
//   - A single record type whose string fields distinguish "absent" (nil) from
//     "present but empty", matching the optional fields of the wire format
//   - A small interface (ISessionStore) covering lookup, create, commit and transfer
//   - Typed errors so rejections can be reported to clients without being fatal
//
// Key Components:
//
//   - SessionRecord: key, numeric id, username, display name, expire time,
//     redirect and tag. Helpers for cloning, merging and presence-aware comparison.
//
//   - ISessionStore: the operations executed by the daemon. Semantic rejections
//     are returned as *Error with one of the RetCode values.
//
//   - Error System: RetCNotFound, RetCExists and RetCConflict map to ERROR
//     responses on the wire, RetCInternalError signals a broken store.
//
// Implementations:
//
//	- Local Store (lstore): an in-memory store with background expiry collection.
package store
