package loading

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ivlev/cleo/internal/cache"
	"github.com/ivlev/cleo/internal/frames"
	"github.com/ivlev/cleo/internal/preload"
)

// fakeLoader settles every id immediately; ids in fail are dropped.
type fakeLoader struct {
	mu    sync.Mutex
	order []string
	fail  map[string]bool
	panic bool
}

func (f *fakeLoader) LoadBatch(ctx context.Context, ids []string, concurrency int, onProgress preload.ProgressFunc) []*cache.Frame {
	if f.panic {
		panic("decoder exploded")
	}
	var out []*cache.Frame
	for i, id := range ids {
		f.mu.Lock()
		f.order = append(f.order, id)
		f.mu.Unlock()
		if !f.fail[id] {
			out = append(out, &cache.Frame{ID: id})
		}
		if onProgress != nil {
			onProgress(float64(i+1) / float64(len(ids)) * 100)
		}
	}
	return out
}

func TestCriticalIndices(t *testing.T) {
	tests := []struct {
		n    int
		want []int
	}{
		{192, []int{0, 48, 96, 144, 191}},
		{4, []int{0, 1, 2, 3}},
		{1, []int{0}},
		{0, nil},
	}

	for _, tt := range tests {
		got := CriticalIndices(tt.n)
		if len(got) != len(tt.want) {
			t.Errorf("n=%d: expected %v, got %v", tt.n, tt.want, got)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("n=%d: expected %v, got %v", tt.n, tt.want, got)
				break
			}
		}
	}
}

func TestBuildPlan(t *testing.T) {
	ids := frames.Generate("frame-anim-1", 192, 0, "jpg")
	plan := BuildPlan(ids, 32)

	if len(plan.Critical) != 5 {
		t.Fatalf("Expected 5 critical frames, got %d", len(plan.Critical))
	}
	if plan.Remaining() != 187 {
		t.Errorf("Expected 187 remaining frames, got %d", plan.Remaining())
	}

	seen := make(map[string]int)
	for _, id := range plan.Critical {
		seen[id]++
	}
	var order []string
	for _, b := range plan.Batches {
		if len(b.IDs) == 0 || len(b.IDs) > 32 {
			t.Errorf("Batch size out of range: %d", len(b.IDs))
		}
		order = append(order, b.Segment)
		for _, id := range b.IDs {
			seen[id]++
		}
	}
	for _, id := range ids {
		if seen[id] != 1 {
			t.Errorf("Frame %s planned %d times", id, seen[id])
		}
	}

	// Segments appear in priority order.
	rank := map[string]int{SegmentBeginning: 0, SegmentEnding: 1, SegmentMiddle: 2}
	for i := 1; i < len(order); i++ {
		if rank[order[i]] < rank[order[i-1]] {
			t.Fatalf("Segment %s after %s", order[i], order[i-1])
		}
	}
	if plan.Batches[0].IDs[0] != "frame-anim-1/0001.jpg" {
		t.Errorf("Expected first remaining frame 0001, got %s", plan.Batches[0].IDs[0])
	}
}

func TestControllerRun(t *testing.T) {
	loader := &fakeLoader{fail: map[string]bool{"anim/0010.jpg": true}}

	var progress []Progress
	completions := 0
	c := NewController(loader, Options{
		Sequence:  frames.Sequence{Name: "anim", Count: 100, Ext: "jpg"},
		BatchSize: 8,
		OnProgress: func(p Progress) {
			progress = append(progress, p)
		},
		OnComplete: func(Result) {
			completions++
		},
	})

	res := c.Run(context.Background())

	if completions != 1 {
		t.Errorf("Expected exactly one completion, got %d", completions)
	}
	if res.Err != nil {
		t.Errorf("Unexpected error: %v", res.Err)
	}
	if res.Total != 100 || res.Loaded != 99 {
		t.Errorf("Expected 99/100 loaded, got %d/%d", res.Loaded, res.Total)
	}
	if len(loader.order) != 100 {
		t.Errorf("Expected 100 loads, got %d", len(loader.order))
	}

	last := Progress{Stage: StageInitializing}
	for i, p := range progress {
		if p.Stage < last.Stage {
			t.Fatalf("Stage went backwards at %d: %s after %s", i, p.Stage, last.Stage)
		}
		if p.Percent < last.Percent {
			t.Fatalf("Progress regressed at %d: %d after %d", i, p.Percent, last.Percent)
		}
		if p.Stage < StageFinalizing && p.Percent > 99 {
			t.Fatalf("Progress %d reported before finalizing", p.Percent)
		}
		if p.Stage == StageLoadingCritical && p.Percent > 10 {
			t.Errorf("Critical stage exceeded 10%%: %d", p.Percent)
		}
		last = p
	}

	final := progress[len(progress)-1]
	if final.Stage != StageComplete || final.Percent != 100 {
		t.Errorf("Expected complete at 100, got %s at %d", final.Stage, final.Percent)
	}

	// Critical keyframes go first.
	for i, id := range []string{"anim/0000.jpg", "anim/0025.jpg", "anim/0050.jpg", "anim/0075.jpg", "anim/0099.jpg"} {
		if loader.order[i] != id {
			t.Errorf("load[%d]: expected %s, got %s", i, id, loader.order[i])
		}
	}
}

func TestControllerEmptySequence(t *testing.T) {
	completions := 0
	var stages []Stage
	c := NewController(&fakeLoader{}, Options{
		Sequence:   frames.Sequence{Name: "anim", Count: 0},
		OnProgress: func(p Progress) { stages = append(stages, p.Stage) },
		OnComplete: func(Result) { completions++ },
	})

	res := c.Run(context.Background())

	var sce *SequenceConstructionError
	if !errors.As(res.Err, &sce) {
		t.Fatalf("Expected SequenceConstructionError, got %v", res.Err)
	}
	if completions != 1 {
		t.Errorf("Expected completion to be signalled once, got %d", completions)
	}
	if stages[len(stages)-1] != StageComplete {
		t.Errorf("Expected last stage complete, got %s", stages[len(stages)-1])
	}
}

func TestControllerPanicStillCompletes(t *testing.T) {
	completions := 0
	c := NewController(&fakeLoader{panic: true}, Options{
		Sequence:   frames.Sequence{Name: "anim", Count: 10},
		OnComplete: func(Result) { completions++ },
	})

	res := c.Run(context.Background())

	if res.Err == nil {
		t.Error("Expected error from panicking loader")
	}
	if completions != 1 {
		t.Errorf("Expected one completion, got %d", completions)
	}
}

func TestControllerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	completions := 0
	c := NewController(&fakeLoader{}, Options{
		Sequence:   frames.Sequence{Name: "anim", Count: 64},
		BatchSize:  4,
		OnComplete: func(Result) { completions++ },
	})

	res := c.Run(ctx)
	if !errors.Is(res.Err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", res.Err)
	}
	if completions != 1 {
		t.Errorf("Expected one completion, got %d", completions)
	}
}

// blockingAttempt stalls until cancelled for the first stalls calls.
func blockingAttempt(stalls int32, calls *atomic.Int32) func(ctx context.Context) Result {
	return func(ctx context.Context) Result {
		n := calls.Add(1)
		if n <= stalls {
			<-ctx.Done()
			return Result{Err: ctx.Err()}
		}
		return Result{Loaded: 4, Total: 4}
	}
}

func TestSupervisorCompletes(t *testing.T) {
	var calls atomic.Int32
	s := &Supervisor{Timeout: time.Second, MaxRetries: 1, Attempt: blockingAttempt(0, &calls)}

	out := s.Run(context.Background())
	if out.Forced || out.Attempts != 1 || out.Result.Loaded != 4 {
		t.Errorf("Unexpected outcome %+v", out)
	}
}

func TestSupervisorRetryThenSucceed(t *testing.T) {
	var calls atomic.Int32
	prompts := 0
	s := &Supervisor{
		Timeout:    20 * time.Millisecond,
		MaxRetries: 1,
		Attempt:    blockingAttempt(1, &calls),
		Prompt: func(ctx context.Context, stalled *StalledLoadingError) bool {
			prompts++
			return true
		},
	}

	out := s.Run(context.Background())
	if out.Forced {
		t.Errorf("Expected completed outcome, got %+v", out)
	}
	if out.Attempts != 2 || prompts != 1 {
		t.Errorf("Expected 2 attempts and 1 prompt, got %d and %d", out.Attempts, prompts)
	}
}

func TestSupervisorForcesAfterRetry(t *testing.T) {
	var calls atomic.Int32
	s := &Supervisor{
		Timeout:    20 * time.Millisecond,
		MaxRetries: 1,
		Attempt:    blockingAttempt(10, &calls),
		Prompt: func(ctx context.Context, stalled *StalledLoadingError) bool {
			return true
		},
	}

	out := s.Run(context.Background())
	if !out.Forced || out.Attempts != 2 {
		t.Errorf("Expected forced proceed on attempt 2, got %+v", out)
	}
	var stalled *StalledLoadingError
	if !errors.As(out.Err, &stalled) || stalled.Attempt != 2 {
		t.Errorf("Expected StalledLoadingError for attempt 2, got %v", out.Err)
	}
}

func TestSupervisorContinueWithoutRetry(t *testing.T) {
	var calls atomic.Int32
	s := &Supervisor{
		Timeout:    20 * time.Millisecond,
		MaxRetries: 1,
		Attempt:    blockingAttempt(10, &calls),
		Prompt: func(ctx context.Context, stalled *StalledLoadingError) bool {
			return false
		},
	}

	out := s.Run(context.Background())
	if !out.Forced || out.Attempts != 1 {
		t.Errorf("Expected forced proceed on attempt 1, got %+v", out)
	}
}

func TestStageString(t *testing.T) {
	want := []string{"initializing", "loading-critical", "loading-remaining", "finalizing", "complete"}
	for i, w := range want {
		if got := Stage(i).String(); got != w {
			t.Errorf("Stage(%d): expected %s, got %s", i, w, got)
		}
	}
}

// stallingFetcher holds every fetch until recovered is closed.
type stallingFetcher struct {
	data      []byte
	recovered chan struct{}
}

func (f *stallingFetcher) Fetch(ctx context.Context, id string) (io.ReadCloser, error) {
	select {
	case <-f.recovered:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestSupervisorRetryKeepsInFlightFrames(t *testing.T) {
	f := &stallingFetcher{data: tinyPNG(t), recovered: make(chan struct{})}
	loader := preload.NewLoader(f, cache.NewWithGlobal(cache.NewStore()), nil)
	c := NewController(loader, Options{
		Sequence:  frames.Sequence{Name: "anim", Count: 20},
		BatchSize: 8,
	})

	var once sync.Once
	s := &Supervisor{
		Timeout:    100 * time.Millisecond,
		MaxRetries: 1,
		Attempt:    c.Run,
		Prompt: func(ctx context.Context, stalled *StalledLoadingError) bool {
			once.Do(func() { close(f.recovered) })
			return true
		},
	}

	out := s.Run(context.Background())
	if out.Forced || out.Attempts != 2 {
		t.Fatalf("Expected completion on attempt 2, got %+v", out)
	}
	if out.Result.Loaded != 20 || out.Result.Total != 20 {
		t.Errorf("Expected 20/20 frames, got %d/%d", out.Result.Loaded, out.Result.Total)
	}
}

func TestSupervisorPromptReleasedWhenAttemptFinishes(t *testing.T) {
	finish := make(chan struct{})
	released := make(chan struct{})
	s := &Supervisor{
		Timeout:    20 * time.Millisecond,
		MaxRetries: 1,
		Attempt: func(ctx context.Context) Result {
			<-finish
			return Result{Loaded: 4, Total: 4}
		},
		Prompt: func(ctx context.Context, stalled *StalledLoadingError) bool {
			close(finish)
			<-ctx.Done()
			close(released)
			return false
		},
	}

	out := s.Run(context.Background())
	if out.Forced || out.Result.Loaded != 4 {
		t.Fatalf("Expected the late result, got %+v", out)
	}
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Error("Prompt context was not cancelled after the attempt finished")
	}
}
