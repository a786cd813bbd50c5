// Package export renders a Source into a numbered frame sequence on disk
// and writes its manifest.
package export

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/cleo/internal/frames"
	"github.com/ivlev/cleo/internal/renderer"
	"github.com/ivlev/cleo/internal/source"
	"github.com/ivlev/cleo/internal/system"
)

// Options configure an export.
type Options struct {
	Name    string // animation name, also the output subdirectory
	OutRoot string
	Width   int // 0 keeps the source size
	Height  int
	Start   int
	Ext     string // jpg or png
	Quality int
	Workers int
	Scaler  xdraw.Scaler
	Logger  *slog.Logger
	// OnFrame is called after each written frame with the running count.
	OnFrame func(done, total int)
}

// Report summarises a finished export.
type Report struct {
	Manifest *frames.Manifest
	Dir      string
	Elapsed  time.Duration
}

// Project exports one source.
type Project struct {
	Source source.Source
	Opts   Options
}

func NewProject(src source.Source, opts Options) *Project {
	if opts.Ext == "" {
		opts.Ext = frames.DefaultExt
	}
	if opts.Quality <= 0 {
		opts.Quality = 85
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Scaler == nil {
		opts.Scaler = xdraw.CatmullRom
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Project{Source: src, Opts: opts}
}

// Run renders every frame with a bounded worker pool. The first failing frame
// cancels the rest; no manifest is written in that case.
func (p *Project) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	count := p.Source.FrameCount()
	if count == 0 {
		return nil, fmt.Errorf("source has no frames")
	}

	width, height := p.Opts.Width, p.Opts.Height
	if width <= 0 || height <= 0 {
		w, h, err := p.Source.Dimensions(0)
		if err != nil {
			return nil, fmt.Errorf("frame 0 dimensions: %w", err)
		}
		width, height = w, h
	}

	dir := filepath.Join(p.Opts.OutRoot, p.Opts.Name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	seq := frames.Sequence{Name: p.Opts.Name, Count: count, Start: p.Opts.Start, Ext: p.Opts.Ext}

	p.Opts.Logger.Info("export: start",
		"name", p.Opts.Name, "frames", count, "size", fmt.Sprintf("%dx%d", width, height), "workers", p.Opts.Workers)

	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(p.Opts.Workers, count))

	for i := 0; i < count; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := p.Source.Frame(i)
			if err != nil {
				return fmt.Errorf("render frame %d: %w", i, err)
			}
			path := filepath.Join(p.Opts.OutRoot, seq.URL(i))
			if err := p.writeFrame(path, img, width, height); err != nil {
				return fmt.Errorf("write frame %d: %w", i, err)
			}
			n := done.Add(1)
			if p.Opts.OnFrame != nil {
				p.Opts.OnFrame(int(n), count)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m := &frames.Manifest{
		Name:        p.Opts.Name,
		Frames:      count,
		Start:       p.Opts.Start,
		Ext:         p.Opts.Ext,
		Width:       width,
		Height:      height,
		GeneratedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := frames.WriteManifest(m, filepath.Join(dir, frames.ManifestFile)); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	elapsed := time.Since(start)
	p.Opts.Logger.Info("export: done", "name", p.Opts.Name, "frames", count, "elapsed", elapsed)
	return &Report{Manifest: m, Dir: dir, Elapsed: elapsed}, nil
}

// writeFrame letterboxes img into width x height and encodes it by extension.
func (p *Project) writeFrame(path string, img image.Image, width, height int) error {
	out := img
	if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
		surface := renderer.NewSurface(width, height, p.Opts.Scaler, color.Black)
		defer surface.Release()
		surface.Draw(img)
		out = surface.Image()
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if system.HasExtension(path, []string{".png"}) {
		err = png.Encode(f, out)
	} else {
		err = jpeg.Encode(f, out, &jpeg.Options{Quality: p.Opts.Quality})
	}
	if err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Finalize writes a manifest for frames that were produced elsewhere, e.g.
// extracted by ffmpeg straight into dir.
func Finalize(dir string, m *frames.Manifest) error {
	if m.GeneratedAt.IsZero() {
		m.GeneratedAt = time.Now().UTC().Truncate(time.Second)
	}
	return frames.WriteManifest(m, filepath.Join(dir, frames.ManifestFile))
}
