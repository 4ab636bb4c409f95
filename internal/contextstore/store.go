package contextstore

import (
	"hash/fnv"
	"strings"
	"sync"
	"time"
)

// numShards is the number of lock shards for the path map. Writes to paths
// in different shards proceed concurrently.
const numShards = 16

// Entry is one committed value in the store.
type Entry struct {
	// Path is the normalized slash-delimited key.
	Path string
	// Value is the opaque payload written by the agent.
	Value any
	// Version is the per-path write counter, starting at 1.
	Version uint64
	// Writer is the identity of the component that wrote the value.
	Writer string
	// UpdatedAt is when the write was committed.
	UpdatedAt time.Time
}

// Store is the shared context manager. The zero value is not usable; create
// one with New.
type Store struct {
	shards [numShards]*shard

	// subMu guards the subscription list, not the entry maps.
	subMu  sync.RWMutex
	subs   map[uint64]*Watch
	nextID uint64
	closed bool
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// New creates an empty Store.
func New() *Store {
	s := &Store{subs: make(map[uint64]*Watch)}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[string]Entry)}
	}
	return s
}

// Normalize strips leading and trailing slashes from a context path.
// "/repo/files/" and "repo/files" name the same entry.
func Normalize(path string) string {
	return strings.Trim(path, "/")
}

// HasPrefix reports whether path is prefix itself or nested under it.
// An empty prefix matches every path.
func HasPrefix(path, prefix string) bool {
	prefix = Normalize(prefix)
	if prefix == "" {
		return true
	}
	path = Normalize(path)
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func (s *Store) shardFor(path string) *shard {
	h := fnv.New32a()
	h.Write([]byte(path))
	return s.shards[h.Sum32()%numShards]
}

// Set commits a value at path and returns the new per-path version.
// The write and its version bump are atomic with respect to concurrent
// readers of the same path. Matching watches observe the write without the
// caller blocking on subscriber processing.
func (s *Store) Set(path string, value any, writer string) uint64 {
	path = Normalize(path)
	sh := s.shardFor(path)

	sh.mu.Lock()
	entry := Entry{
		Path:      path,
		Value:     value,
		Version:   sh.entries[path].Version + 1,
		Writer:    writer,
		UpdatedAt: time.Now(),
	}
	sh.entries[path] = entry

	// Enqueue to matching subscribers while still holding the shard lock so
	// that two writes to the same path enqueue in version order. Enqueue
	// only updates the subscriber's pending map; delivery happens on the
	// subscriber's own goroutine.
	s.subMu.RLock()
	for _, w := range s.subs {
		if HasPrefix(path, w.prefix) {
			w.enqueue(entry)
		}
	}
	s.subMu.RUnlock()
	sh.mu.Unlock()

	return entry.Version
}

// Get returns the latest committed entry at path. The second return value is
// false if the path has never been written.
func (s *Store) Get(path string) (Entry, bool) {
	path = Normalize(path)
	sh := s.shardFor(path)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, ok := sh.entries[path]
	return e, ok
}

// GetValue returns the value at path, or nil if the path is absent.
func (s *Store) GetValue(path string) any {
	e, ok := s.Get(path)
	if !ok {
		return nil
	}
	return e.Value
}

// GetSubtree returns every entry whose path is prefix itself or nested under
// it, keyed by path. The result is a snapshot; mutating it does not affect
// the store.
func (s *Store) GetSubtree(prefix string) map[string]Entry {
	out := make(map[string]Entry)
	for _, sh := range s.shards {
		sh.mu.RLock()
		for path, e := range sh.entries {
			if HasPrefix(path, prefix) {
				out[path] = e
			}
		}
		sh.mu.RUnlock()
	}
	return out
}

// Snapshot returns path -> value for every entry under prefix. Used by the
// results query interface to expose a run's aggregated context.
func (s *Store) Snapshot(prefix string) map[string]any {
	out := make(map[string]any)
	for path, e := range s.GetSubtree(prefix) {
		out[path] = e.Value
	}
	return out
}

// Len returns the number of entries in the store.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}

// Close cancels every active watch. The entry map remains readable so that
// partial results stay queryable after a failed run.
func (s *Store) Close() {
	s.subMu.Lock()
	if s.closed {
		s.subMu.Unlock()
		return
	}
	s.closed = true
	watches := make([]*Watch, 0, len(s.subs))
	for _, w := range s.subs {
		watches = append(watches, w)
	}
	s.subMu.Unlock()

	for _, w := range watches {
		w.Cancel()
	}
}

func (s *Store) register(w *Watch) uint64 {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.nextID++
	id := s.nextID
	s.subs[id] = w
	return id
}

func (s *Store) unregister(id uint64) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	delete(s.subs, id)
}
