package store

import (
	"context"
	"reflect"
	"sync"
	"time"
)

// Runner evaluates a query against the current state of a backend.
type Runner func(ctx context.Context, q Query) ([]Document, error)

// Hub fans collection change signals out to subscribed queries.
//
// Each watch owns one goroutine. A signal wakes it, it re-runs its query through
// the backend's Runner and delivers the result if it differs from the last
// delivered one. Signals that arrive while a query is running collapse into a
// single re-run, so a slow listener sees the latest state rather than every
// intermediate one.
//
// Backends call Notify after each committed write. Backends that cannot observe
// every write (another process writing to the same database) set a poll interval
// so watches also re-run on a timer.
type Hub struct {
	run      Runner
	interval time.Duration

	mu      sync.Mutex
	watches map[string]map[*watch]struct{}
	closed  bool
	wg      sync.WaitGroup

	// OnWatch and OnRelease, when set, are called as the first watch on a
	// collection starts and the last one stops. The SurrealDB backend uses them
	// to open and kill its LIVE query. Calls are serialized and alternate per
	// collection: OnRelease never follows an OnWatch made for a later watcher.
	OnWatch   func(collection string)
	OnRelease func(collection string)

	hookMu sync.Mutex
	active map[string]bool
}

type watch struct {
	hub   *Hub
	query Query
	fn    Listener

	wake chan struct{}
	stop chan struct{}
	once sync.Once
}

// NewHub creates a hub that evaluates queries with run. A positive interval
// re-runs every watch periodically in addition to Notify signals.
func NewHub(run Runner, interval time.Duration) *Hub {
	return &Hub{
		run:      run,
		interval: interval,
		watches:  make(map[string]map[*watch]struct{}),
		active:   make(map[string]bool),
	}
}

// Watch starts delivering the results of q to fn. q must already be normalized.
func (h *Hub) Watch(q Query, fn Listener) Unsubscribe {
	w := &watch{
		hub:   h,
		query: q,
		fn:    fn,
		wake:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return func() {}
	}
	set, ok := h.watches[q.Collection]
	if !ok {
		set = make(map[*watch]struct{})
		h.watches[q.Collection] = set
	}
	set[w] = struct{}{}
	first := len(set) == 1
	h.wg.Add(1)
	h.mu.Unlock()

	if first {
		h.syncHooks(q.Collection)
	}

	w.wake <- struct{}{}
	go w.loop()
	return w.unsubscribe
}

// syncHooks calls OnWatch or OnRelease when the collection's watched state differs
// from the one the hooks last saw.
func (h *Hub) syncHooks(collection string) {
	h.hookMu.Lock()
	defer h.hookMu.Unlock()

	watched := h.Watching(collection) > 0
	switch {
	case watched && !h.active[collection]:
		h.active[collection] = true
		if h.OnWatch != nil {
			h.OnWatch(collection)
		}
	case !watched && h.active[collection]:
		delete(h.active, collection)
		if h.OnRelease != nil {
			h.OnRelease(collection)
		}
	}
}

// Notify signals that documents in collection may have changed.
func (h *Hub) Notify(collection string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for w := range h.watches[collection] {
		w.poke()
	}
}

// Watching returns the number of open watches on collection.
func (h *Hub) Watching(collection string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watches[collection])
}

// Close stops every watch and waits for their goroutines to exit.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*watch
	for _, set := range h.watches {
		for w := range set {
			all = append(all, w)
		}
	}
	h.mu.Unlock()

	for _, w := range all {
		w.unsubscribe()
	}
	h.wg.Wait()
}

func (w *watch) poke() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *watch) stopped() bool {
	select {
	case <-w.stop:
		return true
	default:
		return false
	}
}

func (w *watch) unsubscribe() {
	w.once.Do(func() {
		close(w.stop)

		h := w.hub
		h.mu.Lock()
		set := h.watches[w.query.Collection]
		delete(set, w)
		last := len(set) == 0
		if last {
			delete(h.watches, w.query.Collection)
		}
		h.mu.Unlock()

		if last {
			h.syncHooks(w.query.Collection)
		}
	})
}

func (w *watch) loop() {
	defer w.hub.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-w.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	var tick <-chan time.Time
	if w.hub.interval > 0 {
		ticker := time.NewTicker(w.hub.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	var last []Document
	delivered := false
	for {
		select {
		case <-w.stop:
			return
		case <-w.wake:
		case <-tick:
		}

		docs, err := w.hub.run(ctx, w.query)
		if w.stopped() {
			return
		}
		if err != nil {
			w.fn(nil, err)
			w.unsubscribe()
			return
		}
		if docs == nil {
			docs = []Document{}
		}
		if delivered && reflect.DeepEqual(docs, last) {
			continue
		}
		last = docs
		delivered = true
		w.fn(docs, nil)
	}
}
