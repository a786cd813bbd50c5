// Package cache keeps decoded animation frames for the lifetime of the process.
//
// Two namespaces coexist: every Cache owns a local store and shares the
// process-wide Global store. A successful Put lands in both so any consumer
// resolves the same frame. Entries are never evicted automatically; Evict is
// only for explicit memory reclamation.
package cache

import (
	"image"
	"sync"
)

// Frame is a decoded frame with its intrinsic size.
type Frame struct {
	ID     string
	Image  image.Image
	Width  int
	Height int
}

// NewFrame wraps a decoded image.
func NewFrame(id string, img image.Image) *Frame {
	f := &Frame{ID: id, Image: img}
	if img != nil {
		b := img.Bounds()
		f.Width, f.Height = b.Dx(), b.Dy()
	}
	return f
}

// Store is a concurrency-safe id -> frame map.
type Store struct {
	mu     sync.RWMutex
	frames map[string]*Frame
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{frames: make(map[string]*Frame)}
}

// Global is visible to every Cache in the process.
var Global = NewStore()

func (s *Store) get(id string) (*Frame, bool) {
	s.mu.RLock()
	f, ok := s.frames[id]
	s.mu.RUnlock()
	return f, ok
}

func (s *Store) put(id string, f *Frame) {
	s.mu.Lock()
	s.frames[id] = f
	s.mu.Unlock()
}

func (s *Store) delete(ids []string) {
	s.mu.Lock()
	for _, id := range ids {
		delete(s.frames, id)
	}
	s.mu.Unlock()
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.frames)
}

func (s *Store) snapshot() map[string]*Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*Frame, len(s.frames))
	for id, f := range s.frames {
		out[id] = f
	}
	return out
}

// Cache resolves frames from its local store first, then from the global one.
type Cache struct {
	local  *Store
	global *Store
}

// New creates a cache backed by a fresh local store and the Global store.
func New() *Cache {
	return NewWithGlobal(Global)
}

// NewWithGlobal creates a cache sharing the given global store.
func NewWithGlobal(global *Store) *Cache {
	if global == nil {
		global = NewStore()
	}
	return &Cache{local: NewStore(), global: global}
}

var (
	defaultOnce  sync.Once
	defaultCache *Cache
)

// Default returns the process-wide cache shared by the preloader and renderer.
func Default() *Cache {
	defaultOnce.Do(func() {
		defaultCache = New()
	})
	return defaultCache
}

// Has reports whether id resolves in either store.
func (c *Cache) Has(id string) bool {
	_, ok := c.Get(id)
	return ok
}

// Get never triggers a load.
func (c *Cache) Get(id string) (*Frame, bool) {
	if f, ok := c.local.get(id); ok {
		return f, true
	}
	return c.global.get(id)
}

// Put records the frame in every backing store. Repeated puts for the same id
// overwrite; decoded content for an id is identical so the last writer wins.
func (c *Cache) Put(id string, f *Frame) {
	if f == nil {
		return
	}
	c.local.put(id, f)
	c.global.put(id, f)
}

// Evict removes ids from every backing store.
func (c *Cache) Evict(ids ...string) {
	c.local.delete(ids)
	c.global.delete(ids)
}

// Len returns the number of local entries.
func (c *Cache) Len() int {
	return c.local.Len()
}
