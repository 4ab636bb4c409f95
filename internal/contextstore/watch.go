package contextstore

import "sync"

// Watch is a live subscription to writes under a path prefix. Updates are
// consumed by pulling from Updates; cancellation is "stop pulling and call
// Cancel". A Watch delivers writes in commit order per path and coalesces
// intermediate versions when the consumer falls behind, so the value seen is
// always the latest at delivery time and never older than one already seen.
type Watch struct {
	store  *Store
	id     uint64
	prefix string

	mu      sync.Mutex
	pending []string         // FIFO of paths with an undelivered update
	latest  map[string]Entry // latest enqueued entry per pending path
	lastVer map[string]uint64

	notify chan struct{}
	stop   chan struct{}
	done   chan struct{}
	out    chan Entry

	cancelOnce sync.Once
}

// Watch registers a subscription for every write to prefix or any path
// nested under it. The latest value of each path already under the prefix is
// replayed to the new subscriber, so state written before the call is not
// missed. The returned Watch must be cancelled when no longer needed.
func (s *Store) Watch(prefix string) *Watch {
	w := &Watch{
		store:   s,
		prefix:  Normalize(prefix),
		latest:  make(map[string]Entry),
		lastVer: make(map[string]uint64),
		notify:  make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		out:     make(chan Entry, 1),
	}
	w.id = s.register(w)

	// Replay the current subtree. A write committed between register and
	// this snapshot may be enqueued twice; the per-path version guard in
	// enqueue drops the stale duplicate.
	for _, e := range s.GetSubtree(w.prefix) {
		w.enqueue(e)
	}

	go w.deliver()
	return w
}

// Updates returns the stream of committed writes. The channel is closed
// after Cancel.
func (w *Watch) Updates() <-chan Entry {
	return w.out
}

// Cancel stops delivery and frees the subscription. After Cancel returns no
// further updates are sent on the Updates channel.
func (w *Watch) Cancel() {
	w.cancelOnce.Do(func() {
		w.store.unregister(w.id)
		close(w.stop)
		<-w.done
	})
}

// enqueue records a committed write for delivery. Writes at or below a
// version already enqueued or delivered for the path are dropped; a newer
// version replaces a still-pending one in place, preserving the path's
// position in the delivery queue.
func (w *Watch) enqueue(e Entry) {
	w.mu.Lock()
	if e.Version <= w.lastVer[e.Path] {
		w.mu.Unlock()
		return
	}
	w.lastVer[e.Path] = e.Version
	if _, queued := w.latest[e.Path]; !queued {
		w.pending = append(w.pending, e.Path)
	}
	w.latest[e.Path] = e
	w.mu.Unlock()

	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// deliver runs on the watch's own goroutine, draining the pending queue into
// the out channel so that Set callers never block on a slow subscriber.
func (w *Watch) deliver() {
	defer func() {
		close(w.done)
		close(w.out)
	}()

	for {
		w.mu.Lock()
		if len(w.pending) == 0 {
			w.mu.Unlock()
			select {
			case <-w.notify:
				continue
			case <-w.stop:
				return
			}
		}
		path := w.pending[0]
		w.pending = w.pending[1:]
		e := w.latest[path]
		delete(w.latest, path)
		w.mu.Unlock()

		select {
		case w.out <- e:
		case <-w.stop:
			return
		}
	}
}
