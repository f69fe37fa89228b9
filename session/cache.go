package session

import (
	"context"
	"docsync-server/core"
	"docsync-server/delta"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Loader produces the initial state of a document that is not cached yet.
type Loader func(ctx context.Context, id core.DocumentID) (*delta.Delta, error)

// entry is the live copy of one document.
//
// refs is guarded by Cache.mu. state, dirty and closed are guarded by mu.
// ready is closed once the load has finished; err is set before that.
type entry struct {
	ready chan struct{}
	err   error
	refs  int

	mu     sync.Mutex
	state  *delta.Delta
	dirty  bool
	closed bool
}

// Cache holds at most one live state per document and counts the
// connections attached to it.
type Cache struct {
	mu       sync.Mutex
	entries  map[core.DocumentID]*entry
	draining map[core.DocumentID]chan struct{}

	load        Loader
	loadTimeout time.Duration
}

func NewCache(load Loader, loadTimeout time.Duration) *Cache {
	return &Cache{
		entries:     make(map[core.DocumentID]*entry),
		draining:    make(map[core.DocumentID]chan struct{}),
		load:        load,
		loadTimeout: loadTimeout,
	}
}

// Acquire attaches a new member to id, loading the document if it is not
// cached. Concurrent callers for an absent document share a single load. A
// failed load leaves nothing behind and every waiter receives the error.
//
// If a previous eviction of id is still flushing, Acquire waits for it so the
// fresh load observes the flushed state.
func (c *Cache) Acquire(ctx context.Context, id core.DocumentID) (*delta.Delta, error) {
	for {
		c.mu.Lock()
		if done, ok := c.draining[id]; ok {
			c.mu.Unlock()
			<-done
			continue
		}

		if e, ok := c.entries[id]; ok {
			e.refs++
			c.mu.Unlock()
			<-e.ready
			if e.err != nil {
				return nil, e.err
			}
			e.mu.Lock()
			state := e.state
			e.mu.Unlock()
			return state, nil
		}

		e := &entry{ready: make(chan struct{}), refs: 1}
		c.entries[id] = e
		c.mu.Unlock()

		return c.fill(ctx, id, e)
	}
}

func (c *Cache) fill(ctx context.Context, id core.DocumentID, e *entry) (*delta.Delta, error) {
	// The load is shared with other waiters, so it must not be cut short
	// because the first caller went away.
	loadCtx := context.WithoutCancel(ctx)
	if c.loadTimeout > 0 {
		var cancel context.CancelFunc
		loadCtx, cancel = context.WithTimeout(loadCtx, c.loadTimeout)
		defer cancel()
	}

	state, err := c.load(loadCtx, id)
	if err == nil && state == nil {
		state = delta.Empty()
	}

	if err != nil {
		c.mu.Lock()
		delete(c.entries, id)
		e.err = err
		close(e.ready)
		c.mu.Unlock()
		return nil, err
	}

	e.state = state
	close(e.ready)
	return state, nil
}

// Release detaches one member from id. The caller that drops the count to
// zero receives the Eviction and must Drain it and then call Done. Every
// other caller receives nil.
func (c *Cache) Release(id core.DocumentID) *Eviction {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return nil
	}
	e.refs--
	if e.refs > 0 {
		return nil
	}

	delete(c.entries, id)
	done := make(chan struct{})
	c.draining[id] = done
	return &Eviction{ID: id, cache: c, entry: e, done: done}
}

// Apply composes edit onto the state of id. Calls for one document are
// serialized; relay runs under the same lock, so relays leave in apply
// order.
func (c *Cache) Apply(id core.DocumentID, edit *delta.Delta, relay func()) (*delta.Delta, error) {
	e, err := c.lookup(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, core.ErrEvicted
	}

	e.state = e.state.Compose(edit)
	e.dirty = true
	if relay != nil {
		relay()
	}
	return e.state, nil
}

// View runs fn with the current state while holding the document lock, so
// no Apply of the same document can interleave with fn.
func (c *Cache) View(id core.DocumentID, fn func(state *delta.Delta)) error {
	e, err := c.lookup(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return core.ErrEvicted
	}
	fn(e.state)
	return nil
}

// Snapshot returns the current state of id.
func (c *Cache) Snapshot(id core.DocumentID) (*delta.Delta, error) {
	var out *delta.Delta
	err := c.View(id, func(state *delta.Delta) { out = state })
	return out, err
}

// Refs returns the member count of id, zero when it is not cached.
func (c *Cache) Refs(id core.DocumentID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[id]; ok {
		return e.refs
	}
	return 0
}

// Len returns the number of cached documents, including ones still loading.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Checkpoint calls save for every loaded document with unsaved edits. Each
// save runs under its document lock so it cannot overtake a later flush.
func (c *Cache) Checkpoint(ctx context.Context, save func(ctx context.Context, id core.DocumentID, state *delta.Delta) error) error {
	c.mu.Lock()
	ids := make([]core.DocumentID, 0, len(c.entries))
	entries := make([]*entry, 0, len(c.entries))
	for id, e := range c.entries {
		ids = append(ids, id)
		entries = append(entries, e)
	}
	c.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for i := range entries {
		id, e := ids[i], entries[i]
		g.Go(func() error {
			select {
			case <-e.ready:
			case <-ctx.Done():
				return ctx.Err()
			}
			if e.err != nil {
				return nil
			}

			e.mu.Lock()
			defer e.mu.Unlock()
			if e.closed || !e.dirty {
				return nil
			}
			if err := save(ctx, id, e.state); err != nil {
				return err
			}
			e.dirty = false
			return nil
		})
	}
	return g.Wait()
}

func (c *Cache) lookup(id core.DocumentID) (*entry, error) {
	c.mu.Lock()
	e, ok := c.entries[id]
	c.mu.Unlock()
	if !ok {
		return nil, core.ErrNotLoaded
	}

	<-e.ready
	if e.err != nil {
		return nil, core.ErrNotLoaded
	}
	return e, nil
}

// Eviction is handed to the single caller whose Release removed a document.
type Eviction struct {
	ID core.DocumentID

	cache *Cache
	entry *entry
	done  chan struct{}
	once  sync.Once
}

// Drain closes the document to further edits and returns its final state.
// dirty reports whether any edit was applied since the last save.
func (ev *Eviction) Drain() (state *delta.Delta, dirty bool) {
	e := ev.entry
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return e.state, e.dirty
}

// Done lets loads of the same document proceed again.
func (ev *Eviction) Done() {
	ev.once.Do(func() {
		c := ev.cache
		c.mu.Lock()
		if c.draining[ev.ID] == ev.done {
			delete(c.draining, ev.ID)
		}
		c.mu.Unlock()
		close(ev.done)
	})
}
