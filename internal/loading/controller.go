// Package loading sequences the preload of a frame animation and reports
// aggregate progress until the page may reveal its content.
package loading

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/ivlev/cleo/internal/cache"
	"github.com/ivlev/cleo/internal/frames"
	"github.com/ivlev/cleo/internal/preload"
)

// Stage of a loading attempt. Stages only move forward.
type Stage int

const (
	StageInitializing Stage = iota
	StageLoadingCritical
	StageLoadingRemaining
	StageFinalizing
	StageComplete
)

func (s Stage) String() string {
	switch s {
	case StageInitializing:
		return "initializing"
	case StageLoadingCritical:
		return "loading-critical"
	case StageLoadingRemaining:
		return "loading-remaining"
	case StageFinalizing:
		return "finalizing"
	case StageComplete:
		return "complete"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Overall progress bands.
const (
	criticalShare = 10
	midflightCap  = 99
)

// Progress is what the loading screen displays.
type Progress struct {
	Stage   Stage
	Percent int
}

// BatchLoader is satisfied by *preload.Loader.
type BatchLoader interface {
	LoadBatch(ctx context.Context, ids []string, concurrency int, onProgress preload.ProgressFunc) []*cache.Frame
}

// Options configure a Controller.
type Options struct {
	Sequence frames.Sequence

	CriticalConcurrency int           // default 2
	Concurrency         int           // default 5
	BatchSize           int           // default 32
	BatchPause          time.Duration // pause between batches
	CompletionDelay     time.Duration // pause between finalizing and complete

	OnProgress func(Progress)
	OnComplete func(Result)

	Logger *slog.Logger
}

// Result summarises one attempt.
type Result struct {
	Loaded  int
	Total   int
	Err     error
	Elapsed time.Duration
}

// Controller runs loading attempts. Each Run is one attempt and signals
// OnComplete exactly once, whatever happens inside it.
type Controller struct {
	loader BatchLoader
	opts   Options
	logger *slog.Logger
}

// NewController applies defaults to opts.
func NewController(loader BatchLoader, opts Options) *Controller {
	if opts.CriticalConcurrency < 1 {
		opts.CriticalConcurrency = 2
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 5
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 32
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{loader: loader, opts: opts, logger: logger}
}

// attempt holds the per-Run state.
type attempt struct {
	c       *Controller
	mu      sync.Mutex
	stage   Stage
	percent int
	started bool
}

func (a *attempt) report(stage Stage, percent int) {
	a.mu.Lock()
	if stage < a.stage {
		stage = a.stage
	}
	if percent < a.percent {
		percent = a.percent
	}
	changed := !a.started || stage != a.stage || percent != a.percent
	if stage != a.stage {
		a.c.logger.Debug("loading: stage", "name", a.c.opts.Sequence.Name, "stage", stage.String())
	}
	a.started = true
	a.stage, a.percent = stage, percent
	a.mu.Unlock()

	if changed && a.c.opts.OnProgress != nil {
		a.c.opts.OnProgress(Progress{Stage: stage, Percent: percent})
	}
}

// Run preloads the whole sequence and returns once the attempt is complete.
func (c *Controller) Run(ctx context.Context) (res Result) {
	start := time.Now()
	a := &attempt{c: c}
	var once sync.Once
	complete := func() {
		once.Do(func() {
			res.Elapsed = time.Since(start)
			a.report(StageComplete, 0)
			if c.opts.OnComplete != nil {
				c.opts.OnComplete(res)
			}
		})
	}

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("loading: panic: %v", r)
			c.logger.Error("loading: attempt aborted", "error", res.Err)
		}
		complete()
	}()

	a.report(StageInitializing, 0)

	seq := c.opts.Sequence
	ids := seq.URLs()
	res.Total = len(ids)
	if len(ids) == 0 {
		res.Err = &SequenceConstructionError{Name: seq.Name, Count: seq.Count}
		c.logger.Error("loading: no sequence, proceeding without cache", "error", res.Err)
		return res
	}

	plan := BuildPlan(ids, c.opts.BatchSize)

	a.report(StageLoadingCritical, 0)
	loaded := c.loader.LoadBatch(ctx, plan.Critical, c.opts.CriticalConcurrency, func(p float64) {
		a.report(StageLoadingCritical, int(math.Floor(p*criticalShare/100)))
	})
	res.Loaded += len(loaded)
	a.report(StageLoadingCritical, criticalShare)

	remaining := plan.Remaining()
	a.report(StageLoadingRemaining, criticalShare)
	done := 0
	for i, batch := range plan.Batches {
		if err := ctx.Err(); err != nil {
			res.Err = err
			c.logger.Warn("loading: attempt cancelled", "loaded", res.Loaded, "total", res.Total)
			return res
		}

		before, size := done, len(batch.IDs)
		loaded := c.loader.LoadBatch(ctx, batch.IDs, c.opts.Concurrency, func(p float64) {
			share := (float64(before) + p/100*float64(size)) / float64(remaining)
			overall := criticalShare + share*(midflightCap-criticalShare)
			a.report(StageLoadingRemaining, min(int(math.Floor(overall)), midflightCap))
		})
		res.Loaded += len(loaded)
		done += size

		if c.opts.BatchPause > 0 && i < len(plan.Batches)-1 {
			if !sleep(ctx, c.opts.BatchPause) {
				res.Err = ctx.Err()
				return res
			}
		}
	}

	a.report(StageFinalizing, 100)
	c.logger.Info("loading: frames ready", "name", seq.Name, "loaded", res.Loaded, "total", res.Total)

	if c.opts.CompletionDelay > 0 {
		sleep(ctx, c.opts.CompletionDelay)
	}
	return res
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
