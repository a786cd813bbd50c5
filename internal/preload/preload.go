// Package preload fetches and decodes frames into the image cache.
package preload

import (
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"sync"
	"time"

	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ivlev/cleo/internal/cache"
)

// DefaultLoadTimeout bounds a shared load once no caller is left to cancel it.
const DefaultLoadTimeout = 30 * time.Second

// ProgressFunc receives completed/total*100 after every settled load.
type ProgressFunc func(percent float64)

// Loader loads frames through a cache.
type Loader struct {
	Fetcher Fetcher
	Cache   *cache.Cache
	Logger  *slog.Logger
	// Timeout bounds one fetch and decode shared by every caller of the id.
	Timeout time.Duration

	flight singleflight.Group
}

// NewLoader creates a loader. A nil cache means the process-wide cache.
func NewLoader(f Fetcher, c *cache.Cache, logger *slog.Logger) *Loader {
	if c == nil {
		c = cache.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{Fetcher: f, Cache: c, Logger: logger, Timeout: DefaultLoadTimeout}
}

// LoadOne returns the cached frame for id, loading and caching it on a miss.
// Concurrent calls for the same id share one fetch. The shared fetch does not
// belong to any caller: a cancelled caller returns its own ctx error while the
// others keep waiting for the result.
func (l *Loader) LoadOne(ctx context.Context, id string) (*cache.Frame, error) {
	if f, ok := l.Cache.Get(id); ok {
		return f, nil
	}

	ch := l.flight.DoChan(id, func() (interface{}, error) {
		fctx := context.WithoutCancel(ctx)
		if l.Timeout > 0 {
			var cancel context.CancelFunc
			fctx, cancel = context.WithTimeout(fctx, l.Timeout)
			defer cancel()
		}
		f, err := l.fetchDecode(fctx, id)
		if err != nil {
			return nil, err
		}
		l.Cache.Put(id, f)
		return f, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*cache.Frame), nil
	case <-ctx.Done():
		return nil, &LoadError{ID: id, Op: "fetch", Err: ctx.Err()}
	}
}

// LoadUncached fetches and decodes id without touching the cache.
func (l *Loader) LoadUncached(ctx context.Context, id string) (*cache.Frame, error) {
	return l.fetchDecode(ctx, id)
}

func (l *Loader) fetchDecode(ctx context.Context, id string) (*cache.Frame, error) {
	rc, err := l.Fetcher.Fetch(ctx, id)
	if err != nil {
		return nil, &LoadError{ID: id, Op: "fetch", Err: err}
	}
	defer rc.Close()

	img, _, err := image.Decode(rc)
	if err != nil {
		return nil, &LoadError{ID: id, Op: "decode", Err: err}
	}
	return cache.NewFrame(id, img), nil
}

// LoadBatch loads ids in groups of concurrency. Each group settles fully
// before the next starts. onProgress is called once per id, failures included,
// so it always ends at 100. Failed ids are logged and dropped; the result keeps
// the order of ids.
func (l *Loader) LoadBatch(ctx context.Context, ids []string, concurrency int, onProgress ProgressFunc) []*cache.Frame {
	if concurrency < 1 {
		concurrency = 1
	}
	total := len(ids)
	loaded := make([]*cache.Frame, 0, total)

	var mu sync.Mutex
	completed := 0
	settle := func() {
		mu.Lock()
		defer mu.Unlock()
		completed++
		if onProgress != nil {
			onProgress(float64(completed) / float64(total) * 100)
		}
	}

	for start := 0; start < total; start += concurrency {
		end := min(start+concurrency, total)
		group := ids[start:end]
		results := make([]*cache.Frame, len(group))

		var g errgroup.Group
		for i, id := range group {
			g.Go(func() error {
				defer settle()
				f, err := l.LoadOne(ctx, id)
				if err != nil {
					l.Logger.Warn("preload: frame failed", "id", id, "error", err)
					return nil
				}
				results[i] = f
				return nil
			})
		}
		g.Wait()

		for _, f := range results {
			if f != nil {
				loaded = append(loaded, f)
			}
		}
	}

	return loaded
}
