// Package renderer binds scroll progress through a pinned region to a frame
// index and paints that frame onto a single letterboxed surface.
//
// Scroll handlers never paint. They record the latest request in a
// single-slot mailbox (a newer request overwrites an unconsumed one) and wake
// the paint loop, which commits only the most recent request.
package renderer

import (
	"context"
	"image"
	"image/color"
	"log/slog"
	"sync"
	"sync/atomic"

	xdraw "golang.org/x/image/draw"

	"github.com/ivlev/cleo/internal/cache"
	"github.com/ivlev/cleo/internal/frames"
)

// Resolver reads frames without loading them; *cache.Cache satisfies it.
type Resolver interface {
	Get(id string) (*cache.Frame, bool)
}

// DirectLoader loads a frame bypassing the cache; *preload.Loader satisfies it.
type DirectLoader interface {
	LoadUncached(ctx context.Context, id string) (*cache.Frame, error)
}

// Sink receives every committed paint. The surface is reused by the next
// paint, so sinks must copy what they keep.
type Sink interface {
	Present(index int, surface *image.RGBA) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(index int, surface *image.RGBA) error

func (f SinkFunc) Present(index int, surface *image.RGBA) error {
	return f(index, surface)
}

// Options configure a Renderer.
type Options struct {
	Sequence   frames.Sequence
	Region     Region
	Width      int
	Height     int
	Scaler     xdraw.Scaler
	Background color.Color
	Logger     *slog.Logger
}

// Stats counts paint activity.
type Stats struct {
	Requests  uint64 // paints requested after suppression
	Paints    uint64 // paints committed to the sink
	Coalesced uint64 // requests overwritten before the loop picked them up
	Misses    uint64 // frames not in the cache
	Discarded uint64 // uncached loads that resolved after being superseded
}

type request struct {
	index int
	gen   uint64
}

// Renderer is safe for concurrent use.
type Renderer struct {
	seq    frames.Sequence
	cache  Resolver
	loader DirectLoader
	sink   Sink
	scaler xdraw.Scaler
	bg     color.Color
	logger *slog.Logger

	mu        sync.Mutex
	region    Region
	zone      zone
	lastIndex int
	gen       uint64
	pending   *request
	size      image.Point

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed sync.Once

	// owned by the paint loop
	surface *Surface

	requests, paints, coalesced, misses, discarded atomic.Uint64
}

// New starts the paint loop. Call Close to release it.
func New(c Resolver, loader DirectLoader, sink Sink, opts Options) *Renderer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	region := opts.Region
	if region.ViewportHeight <= 0 {
		region.ViewportHeight = float64(opts.Height)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Renderer{
		seq:       opts.Sequence,
		cache:     c,
		loader:    loader,
		sink:      sink,
		scaler:    opts.Scaler,
		bg:        opts.Background,
		logger:    logger,
		region:    region,
		lastIndex: -1,
		size:      image.Pt(opts.Width, opts.Height),
		wake:      make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
	}

	r.wg.Add(1)
	go r.loop()
	return r
}

// Update requests the frame for progress. It returns false when the frame
// index equals the last requested one, in which case nothing is painted.
func (r *Renderer) Update(progress float64) bool {
	idx := r.seq.Index(progress)

	r.mu.Lock()
	defer r.mu.Unlock()
	if idx == r.lastIndex {
		return false
	}
	r.enqueueLocked(idx)
	return true
}

// Force paints index regardless of the last requested one.
func (r *Renderer) Force(index int) {
	if r.seq.Count <= 0 {
		return
	}
	index = max(0, min(index, r.seq.Count-1))

	r.mu.Lock()
	defer r.mu.Unlock()
	r.enqueueLocked(index)
}

// Leave pins the last frame when scrolling past the region.
func (r *Renderer) Leave() {
	r.Force(r.seq.Count - 1)
}

// EnterBack handles scrolling back into the region from below.
func (r *Renderer) EnterBack(progress float64) {
	if progress == 0 {
		r.Force(0)
		return
	}
	r.Update(progress)
}

// Scroll maps a document scroll offset through the pinned region and fires
// the edge pins on region transitions.
func (r *Renderer) Scroll(y float64) {
	r.mu.Lock()
	region := r.region
	prev := r.zone
	next := region.zoneOf(y)
	r.zone = next
	r.mu.Unlock()

	progress := region.Progress(y)
	switch {
	case next == zoneAfter && prev != zoneAfter:
		r.Leave()
	case next == zoneAfter:
	case prev == zoneAfter:
		r.EnterBack(progress)
	default:
		r.Update(progress)
	}
}

// Resize changes the surface size and repaints the current frame.
func (r *Renderer) Resize(w, h int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.size = image.Pt(w, h)
	r.region.ViewportHeight = float64(h)
	if r.lastIndex >= 0 {
		r.enqueueLocked(r.lastIndex)
	}
}

// CurrentIndex is the last requested frame index, -1 before the first paint.
func (r *Renderer) CurrentIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastIndex
}

// Stats returns a snapshot of the paint counters.
func (r *Renderer) Stats() Stats {
	return Stats{
		Requests:  r.requests.Load(),
		Paints:    r.paints.Load(),
		Coalesced: r.coalesced.Load(),
		Misses:    r.misses.Load(),
		Discarded: r.discarded.Load(),
	}
}

// Close stops the paint loop, drops pending paints and releases the surface.
func (r *Renderer) Close() {
	r.closed.Do(func() {
		r.cancel()
		r.wg.Wait()
		r.mu.Lock()
		r.pending = nil
		r.mu.Unlock()
		if r.surface != nil {
			r.surface.Release()
			r.surface = nil
		}
	})
}

func (r *Renderer) enqueueLocked(index int) {
	if r.ctx.Err() != nil {
		return
	}
	r.lastIndex = index
	r.gen++
	if r.pending != nil {
		r.coalesced.Add(1)
	}
	r.pending = &request{index: index, gen: r.gen}
	r.requests.Add(1)

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Renderer) take() (*request, image.Point) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req := r.pending
	r.pending = nil
	return req, r.size
}

func (r *Renderer) superseded(gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen != gen
}

func (r *Renderer) loop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.wake:
		}

		req, size := r.take()
		if req == nil {
			continue
		}
		r.paint(req, size)
	}
}

func (r *Renderer) paint(req *request, size image.Point) {
	id := r.seq.URL(req.index)
	f, ok := r.cache.Get(id)
	if !ok {
		r.misses.Add(1)
		if r.loader == nil {
			r.logger.Warn("renderer: frame not cached", "id", id)
			return
		}
		var err error
		f, err = r.loader.LoadUncached(r.ctx, id)
		if err != nil {
			if r.ctx.Err() == nil {
				r.logger.Warn("renderer: frame failed", "id", id, "error", err)
			}
			return
		}
		if r.superseded(req.gen) {
			r.discarded.Add(1)
			return
		}
	}

	if r.surface == nil || r.surface.Size() != size {
		if r.surface != nil {
			r.surface.Release()
		}
		r.surface = NewSurface(size.X, size.Y, r.scaler, r.bg)
	}
	r.surface.Draw(f.Image)

	if r.ctx.Err() != nil {
		return
	}
	if err := r.sink.Present(req.index, r.surface.Image()); err != nil {
		r.logger.Warn("renderer: present failed", "index", req.index, "error", err)
		return
	}
	r.paints.Add(1)
}
