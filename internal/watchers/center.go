package watchers

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"gitsync/internal/logging"
)

// watchControl is the slice of Watcher the center drives, split out so
// tests can substitute a stub.
type watchControl interface {
	Start(onChange func())
	Stop()
}

// entry pairs one watcher with its current subscribers. An entry exists in
// the table if and only if it has at least one subscriber.
type entry struct {
	watcher watchControl
	subs    map[uuid.UUID]func()
}

// Center deduplicates watchers per working-tree path: any number of
// subscribers to the same path share exactly one underlying watcher, and
// the watcher stops when the last one unsubscribes. All table access is
// serialized through one mutex.
type Center struct {
	debounce  time.Duration
	pollEvery time.Duration
	logger    logging.Logger

	newWatcher func(path string) watchControl

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool
}

// NewCenter constructs a Center. Zero durations select the defaults.
func NewCenter(debounce, pollEvery time.Duration, logger logging.Logger) *Center {
	if logger == nil {
		logger = logging.Nop()
	}
	c := &Center{
		debounce:  debounce,
		pollEvery: pollEvery,
		logger:    logger,
		entries:   map[string]*entry{},
	}
	c.newWatcher = func(path string) watchControl {
		return NewWatcher(path, c.debounce, c.pollEvery, c.logger)
	}
	return c
}

// Subscribe registers callback for change notifications on path and returns
// an opaque subscription token. The first subscriber for a path creates and
// starts the watcher; later ones reuse it.
func (c *Center) Subscribe(path string, callback func()) uuid.UUID {
	id := uuid.New()
	c.mu.Lock()
	if c.closed {
		// A subscribe racing with shutdown must not start a watcher the
		// collected table can no longer stop.
		c.mu.Unlock()
		return id
	}
	if e, ok := c.entries[path]; ok {
		e.subs[id] = callback
		c.mu.Unlock()
		return id
	}
	e := &entry{
		watcher: c.newWatcher(path),
		subs:    map[uuid.UUID]func(){id: callback},
	}
	c.entries[path] = e
	c.mu.Unlock()

	e.watcher.Start(func() { c.fanOut(path) })
	c.logger.Debug("watcher started", "path", path)
	return id
}

// Unsubscribe removes one subscription. Removing the last subscriber for a
// path stops the watcher and drops the entry; this is the only path by
// which a watcher is ever stopped.
func (c *Center) Unsubscribe(path string, id uuid.UUID) {
	c.mu.Lock()
	e, ok := c.entries[path]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(e.subs, id)
	var stopped watchControl
	if len(e.subs) == 0 {
		delete(c.entries, path)
		stopped = e.watcher
	}
	c.mu.Unlock()

	if stopped != nil {
		stopped.Stop()
		c.logger.Debug("watcher stopped", "path", path)
	}
}

// Stop tears down every watcher and refuses later subscriptions. Used at
// shutdown.
func (c *Center) Stop() {
	c.mu.Lock()
	c.closed = true
	stopped := make([]watchControl, 0, len(c.entries))
	for _, e := range c.entries {
		stopped = append(stopped, e.watcher)
	}
	c.entries = map[string]*entry{}
	c.mu.Unlock()

	for _, w := range stopped {
		w.Stop()
	}
}

// fanOut delivers one debounced observation to every current subscriber of
// path. The entry may already be gone if the last subscriber left while the
// debounce delay was running; that is a no-op.
func (c *Center) fanOut(path string) {
	c.mu.Lock()
	e, ok := c.entries[path]
	if !ok {
		c.mu.Unlock()
		return
	}
	callbacks := make([]func(), 0, len(e.subs))
	for _, cb := range e.subs {
		callbacks = append(callbacks, cb)
	}
	c.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}
