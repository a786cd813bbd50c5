// Command scrubview is a headless client for a frame animation: it preloads
// the sequence the way the landing page does, then replays a scroll through
// the pinned region and writes every committed paint as a PNG.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ivlev/cleo/internal/cache"
	"github.com/ivlev/cleo/internal/config"
	"github.com/ivlev/cleo/internal/frames"
	"github.com/ivlev/cleo/internal/loading"
	"github.com/ivlev/cleo/internal/preload"
	"github.com/ivlev/cleo/internal/renderer"
)

func main() {
	configPath := flag.String("config", "", "Path to cleo.yaml")
	baseURL := flag.String("base", "", "Server base URL, e.g. http://localhost:8080")
	dir := flag.String("dir", "", "Frames root directory (used when -base is empty)")
	name := flag.String("name", "", "Animation name (default: animation.name)")
	outDir := flag.String("out", "scrub", "Directory for painted snapshots")
	steps := flag.Int("steps", 240, "Scroll steps through the region and past it")
	interval := flag.Duration("interval", 16*time.Millisecond, "Delay between scroll steps")
	autoRetry := flag.Bool("auto-retry", false, "Retry a stalled load without asking")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *name != "" {
		cfg.Animation.Name = *name
	}
	if *dir == "" {
		*dir = cfg.Server.FramesDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var fetcher preload.Fetcher
	var seq frames.Sequence
	if *baseURL != "" {
		fetcher = preload.NewHTTPFetcher(*baseURL, 30*time.Second)
		seq = remoteSequence(ctx, *baseURL, cfg.Animation)
	} else {
		fetcher = &preload.DirFetcher{Root: *dir}
		seq = localSequence(*dir, cfg.Animation)
	}
	fmt.Printf("[*] Animation %s: %d frames\n", seq.Name, seq.Count)

	c := cache.Default()
	loader := preload.NewLoader(fetcher, c, logger)

	controller := loading.NewController(loader, loading.Options{
		Sequence:            seq,
		CriticalConcurrency: cfg.Loading.CriticalConcurrency,
		Concurrency:         cfg.Loading.Concurrency,
		BatchSize:           cfg.Loading.BatchSize,
		BatchPause:          cfg.Loading.BatchPause(),
		CompletionDelay:     cfg.Loading.CompletionDelay(),
		OnProgress: func(p loading.Progress) {
			fmt.Printf("[*] %-18s %3d%%\n", p.Stage, p.Percent)
		},
		Logger: logger,
	})

	supervisor := &loading.Supervisor{
		Timeout:    cfg.Loading.Timeout(),
		MaxRetries: cfg.Loading.MaxRetries,
		Prompt:     retryPrompt(*autoRetry, os.Stdin),
		Attempt:    controller.Run,
		Logger:     logger,
	}
	outcome := supervisor.Run(ctx)
	switch {
	case outcome.Forced:
		fmt.Printf("[!] Loading did not finish after %d attempts, continuing anyway\n", outcome.Attempts)
	case outcome.Err != nil:
		fmt.Printf("[!] Loading finished with error: %v\n", outcome.Err)
	default:
		fmt.Printf("[+] Loaded %d/%d frames in %s\n", outcome.Result.Loaded, outcome.Result.Total, outcome.Result.Elapsed.Round(time.Millisecond))
	}
	if ctx.Err() != nil {
		return
	}

	stats := c.Stats()
	fmt.Printf("[*] Cache: %d images, %d preloaded, %s\n", stats.Entries, stats.GlobalEntries, stats.MemoryEstimate)

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		slog.Error("failed to create output directory", "error", err)
		os.Exit(1)
	}

	// the pinned section starts one viewport below the hero
	region := renderer.Region{
		Top:            float64(cfg.Renderer.Height),
		ViewportHeight: float64(cfg.Renderer.Height),
		PinMultiplier:  cfg.Renderer.PinMultiplier,
	}
	r := renderer.New(c, loader, &renderer.DirSink{Dir: *outDir}, renderer.Options{
		Sequence: seq,
		Region:   region,
		Width:    cfg.Renderer.Width,
		Height:   cfg.Renderer.Height,
		Scaler:   renderer.ScalerByName(cfg.Renderer.Scaler),
		Logger:   logger,
	})

	scrollScript(ctx, r, region, *steps, *interval)
	r.Close()

	rs := r.Stats()
	fmt.Printf("[+++] Scroll done: %d requests, %d paints, %d coalesced, %d misses, %d discarded -> %s\n",
		rs.Requests, rs.Paints, rs.Coalesced, rs.Misses, rs.Discarded, *outDir)
}

// scrollScript scrolls from above the region to one viewport past it and
// back to the top, one step per interval.
func scrollScript(ctx context.Context, r *renderer.Renderer, region renderer.Region, steps int, interval time.Duration) {
	if steps < 2 {
		steps = 2
	}
	end := region.Top + region.Distance() + region.ViewportHeight
	half := steps / 2

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for i := 0; i <= steps; i++ {
		var y float64
		if i <= half {
			y = end * float64(i) / float64(half)
		} else {
			y = end * float64(steps-i) / float64(steps-half)
		}
		r.Scroll(y)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
	// let the last paint land
	time.Sleep(100 * time.Millisecond)
}

// retryPrompt asks on in, or always retries when auto is set. An open
// question is dropped as soon as its ctx ends.
func retryPrompt(auto bool, in io.Reader) loading.RetryPrompt {
	if auto {
		return func(ctx context.Context, stalled *loading.StalledLoadingError) bool {
			fmt.Printf("[!] %v, retrying\n", stalled)
			return true
		}
	}
	var once sync.Once
	lines := make(chan string)
	return func(ctx context.Context, stalled *loading.StalledLoadingError) bool {
		// reads cannot be interrupted; one reader outlives the prompts
		once.Do(func() { go readLines(in, lines) })
		fmt.Printf("[!] %v. Retry? [y/N] ", stalled)

		select {
		case line, ok := <-lines:
			if !ok {
				return false
			}
			line = strings.ToLower(strings.TrimSpace(line))
			return line == "y" || line == "yes"
		case <-ctx.Done():
			fmt.Println()
			return false
		}
	}
}

func readLines(r io.Reader, lines chan<- string) {
	defer close(lines)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines <- sc.Text()
	}
}

func configSequence(a config.AnimationConfig) frames.Sequence {
	return frames.Sequence{Name: a.Name, Count: a.Frames, Start: a.Start, Ext: a.Ext}
}

// localSequence prefers the manifest written by framegen.
func localSequence(root string, a config.AnimationConfig) frames.Sequence {
	m, err := frames.ReadManifest(filepath.Join(root, a.Name, frames.ManifestFile))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("scrubview: bad manifest, using config", "error", err)
		}
		return configSequence(a)
	}
	return m.Sequence()
}

// remoteSequence asks the server for the animation description.
func remoteSequence(ctx context.Context, base string, a config.AnimationConfig) frames.Sequence {
	url := strings.TrimRight(base, "/") + "/api/frames/" + a.Name
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return configSequence(a)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Warn("scrubview: cannot describe animation, using config", "error", err)
		return configSequence(a)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return configSequence(a)
	}

	var desc struct {
		Name   string `json:"name"`
		Frames int    `json:"frames"`
		Start  int    `json:"start"`
		Ext    string `json:"ext"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&desc); err != nil {
		return configSequence(a)
	}
	return frames.Sequence{Name: desc.Name, Count: desc.Frames, Start: desc.Start, Ext: desc.Ext}
}
