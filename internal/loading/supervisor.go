package loading

import (
	"context"
	"log/slog"
	"time"
)

// RetryPrompt is asked what to do when an attempt stalls. Returning true
// restarts loading from scratch, false proceeds without waiting any longer.
// ctx is cancelled once the attempt finishes on its own while the prompt is
// open; the prompt must return then, its answer is ignored.
type RetryPrompt func(ctx context.Context, stalled *StalledLoadingError) bool

// Outcome is delivered to the host exactly once.
type Outcome struct {
	Attempts int
	Forced   bool   // content revealed without a completed attempt
	Result   Result // last completed attempt, zero when Forced
	Err      error
}

// Supervisor owns the host-side timeout around loading attempts: after
// Timeout the user may retry MaxRetries times, the next timeout proceeds
// unconditionally.
type Supervisor struct {
	Timeout    time.Duration
	MaxRetries int
	Prompt     RetryPrompt

	// Attempt runs one loading attempt, normally (*Controller).Run.
	Attempt func(ctx context.Context) Result

	Logger *slog.Logger
}

// Run blocks until content can be revealed.
func (s *Supervisor) Run(ctx context.Context) Outcome {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	for attempt := 1; ; attempt++ {
		actx, cancel := context.WithCancel(ctx)
		done := make(chan Result, 1)
		go func() {
			done <- s.Attempt(actx)
		}()

		outcome, retry := s.wait(ctx, actx, attempt, timeout, done, logger)
		cancel()

		if !retry {
			outcome.Attempts = attempt
			return outcome
		}
		logger.Info("loading: retrying", "attempt", attempt+1)
	}
}

func (s *Supervisor) wait(ctx, actx context.Context, attempt int, timeout time.Duration, done <-chan Result, logger *slog.Logger) (Outcome, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		return Outcome{Result: res}, false
	case <-ctx.Done():
		return Outcome{Forced: true, Err: ctx.Err()}, false
	case <-timer.C:
	}

	stalled := &StalledLoadingError{Attempt: attempt, Timeout: timeout}
	if attempt > s.MaxRetries {
		logger.Warn("loading: multiple attempts stalled, proceeding anyway", "attempt", attempt)
		return Outcome{Forced: true, Err: stalled}, false
	}

	logger.Warn("loading: timed out, offering retry", "attempt", attempt)
	if s.Prompt == nil {
		return Outcome{}, true
	}

	// The attempt keeps running while the prompt is open.
	answer := make(chan bool, 1)
	go func() {
		answer <- s.Prompt(actx, stalled)
	}()

	select {
	case res := <-done:
		return Outcome{Result: res}, false
	case retry := <-answer:
		if retry {
			return Outcome{}, true
		}
		return Outcome{Forced: true, Err: stalled}, false
	case <-ctx.Done():
		return Outcome{Forced: true, Err: ctx.Err()}, false
	}
}
