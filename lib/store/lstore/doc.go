// Package lstore implements a local, in-memory session store based on the
// store.ISessionStore interface. Records are kept in a concurrent map and are
// not persisted between process restarts.
//
// Key Features:
//   - Lock-free reads through xsync.MapOf
//   - Atomic per-key create/commit via MapOf.Compute
//   - Serialized transfers (two keys are involved)
//   - Background garbage collection of expired records
//
// Expiry:
//
//	A record with Expire > 0 is dead once its expire time (unix seconds) is
//	reached. Dead records are hidden from Lookup immediately and removed by the
//	garbage collector on its next run.
//
// Usage Example:
//
//	s := lstore.NewLocalStore(&lstore.Options{GCInterval: 5 * time.Second})
//	defer s.Close()
//
//	err := s.Create(store.SessionRecord{Key: []byte("abc"), Username: []byte("alice")})
//	rec, found, err := s.Lookup("abc")
package lstore
