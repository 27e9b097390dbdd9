package lstore

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/uniauth/lib/store"
	"github.com/ValentinKolb/uniauth/rpc/common"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("store")

// Options configures the local store during initialization
type Options struct {
	GCInterval time.Duration    // Time between GC runs (0 = common.DefaultGCInterval)
	Now        func() time.Time // Clock used for expiry checks (nil = time.Now)
}

type storeImpl struct {
	records *xsync.MapOf[string, store.SessionRecord]

	// transfers touch two keys, they are serialized against each other
	transferMu sync.Mutex

	now         func() time.Time
	gcInterval  time.Duration
	gcIsRunning atomic.Bool
	stopCh      chan struct{}
	gcDone      chan struct{}
}

// NewLocalStore creates a new in-memory session store.
// The store is not persisted and lives as long as the daemon process.
// A garbage collector goroutine removes expired records until Close is called.
func NewLocalStore(opts *Options) store.ISessionStore {
	if opts == nil {
		opts = &Options{}
	}

	s := &storeImpl{
		records:    xsync.NewMapOf[string, store.SessionRecord](),
		now:        opts.Now,
		gcInterval: opts.GCInterval,
		stopCh:     make(chan struct{}),
		gcDone:     make(chan struct{}),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.gcInterval <= 0 {
		s.gcInterval = common.DefaultGCInterval
	}

	s.startGC()
	return s
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Lookup(key string) (store.SessionRecord, bool, error) {
	rec, ok := s.records.Load(key)
	if !ok {
		return store.SessionRecord{}, false, nil
	}
	if rec.Expired(s.now()) {
		s.deleteIfExpired(key)
		return store.SessionRecord{}, false, nil
	}
	return rec.Clone(), true, nil
}

func (s *storeImpl) Create(rec store.SessionRecord) error {
	if len(rec.Key) == 0 {
		return store.NewError(store.RetCInvalidOperation, "create requires a key")
	}

	now := s.now()
	created := false
	s.records.Compute(string(rec.Key), func(old store.SessionRecord, loaded bool) (store.SessionRecord, bool) {
		// case live record exists -> keep it
		if loaded && !old.Expired(now) {
			return old, false
		}
		created = true
		return rec.Clone(), false
	})

	if !created {
		return store.NewError(store.RetCExists, "session already exists")
	}
	return nil
}

func (s *storeImpl) Commit(rec store.SessionRecord) error {
	if len(rec.Key) == 0 {
		return store.NewError(store.RetCInvalidOperation, "commit requires a key")
	}

	now := s.now()
	found := false
	s.records.Compute(string(rec.Key), func(old store.SessionRecord, loaded bool) (store.SessionRecord, bool) {
		if !loaded || old.Expired(now) {
			// delete=true removes dead entries and avoids creating new ones
			return old, true
		}
		found = true
		updated := old.Clone()
		updated.Merge(&rec)
		return updated, false
	})

	if !found {
		return store.NewError(store.RetCNotFound, "session not found")
	}
	return nil
}

func (s *storeImpl) Transfer(src, dst string) error {
	if src == "" || dst == "" {
		return store.NewError(store.RetCInvalidOperation, "transfer requires a source and a destination")
	}

	s.transferMu.Lock()
	defer s.transferMu.Unlock()

	now := s.now()
	source, ok := s.records.Load(src)
	if !ok || source.Expired(now) {
		return store.NewError(store.RetCNotFound, "transfer source not found")
	}

	var result error
	s.records.Compute(dst, func(old store.SessionRecord, loaded bool) (store.SessionRecord, bool) {
		if !loaded || old.Expired(now) {
			result = store.NewError(store.RetCNotFound, "transfer destination not found")
			return old, true
		}
		if old.HasID() && old.ID != source.ID {
			result = store.NewError(store.RetCConflict, "transfer destination belongs to another user")
			return old, false
		}

		identity := source.Clone()
		updated := old.Clone()
		updated.ID = identity.ID
		updated.Username = identity.Username
		updated.DisplayName = identity.DisplayName
		updated.Expire = identity.Expire
		return updated, false
	})

	return result
}

func (s *storeImpl) Close() error {
	s.stopGC()
	return nil
}

// --------------------------------------------------------------------------
// Garbage Collection
// --------------------------------------------------------------------------

// deleteIfExpired removes the record stored under key if it is (still) expired
func (s *storeImpl) deleteIfExpired(key string) {
	now := s.now()
	s.records.Compute(key, func(old store.SessionRecord, loaded bool) (store.SessionRecord, bool) {
		return old, !loaded || old.Expired(now)
	})
}

// startGC starts the garbage collector
// if the GC is already running, this function does nothing
func (s *storeImpl) startGC() {
	if s.gcIsRunning.CompareAndSwap(false, true) {
		go s.garbageCollector()
	}
}

// stopGC stops the garbage collector and waits for it to exit.
// the gc can't be started again after it has been stopped!
func (s *storeImpl) stopGC() {
	if s.gcIsRunning.CompareAndSwap(true, false) {
		close(s.stopCh)
		<-s.gcDone
	}
}

// garbageCollector is the main garbage collection loop
// WARNING: this method should never be called! to enable GC, use startGC() and stopGC()
func (s *storeImpl) garbageCollector() {
	defer close(s.gcDone)

	ticker := time.NewTicker(s.gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.collect()
		}
	}
}

// collect removes all expired records
func (s *storeImpl) collect() {
	now := s.now()
	var expired []string
	s.records.Range(func(key string, rec store.SessionRecord) bool {
		if rec.Expired(now) {
			expired = append(expired, key)
		}
		return true
	})

	for _, key := range expired {
		s.deleteIfExpired(key)
	}

	if len(expired) > 0 {
		Logger.Debugf("gc removed %d expired sessions", len(expired))
	}
}
