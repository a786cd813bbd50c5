// Package video раскладывает видео на пронумерованные кадры через ffmpeg
// и считает кадры через ffprobe.
package video

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ivlev/cleo/internal/frames"
)

// ExtractParams control a frame extraction.
type ExtractParams struct {
	Input   string
	OutDir  string
	Width   int     // 0 keeps the source size
	Height  int
	FPS     float64 // 0 keeps every source frame
	Start   int     // number of the first written frame
	Ext     string
	Quality int // JPEG quality 1-100
}

// Extractor вызывает ffmpeg и ffprobe.
type Extractor struct {
	FFmpeg  string
	FFprobe string
}

func NewExtractor() *Extractor {
	return &Extractor{FFmpeg: "ffmpeg", FFprobe: "ffprobe"}
}

// Extract writes {OutDir}/{pad4(Start+i)}.{Ext} for every output frame and
// returns how many frames were written. Numbered frames left in OutDir by an
// earlier extraction are removed first.
func (e *Extractor) Extract(ctx context.Context, p ExtractParams) (int, error) {
	if err := os.MkdirAll(p.OutDir, 0755); err != nil {
		return 0, err
	}
	ext := extOrDefault(p.Ext)
	if err := clearFrames(p.OutDir, ext); err != nil {
		return 0, err
	}

	cmd := exec.CommandContext(ctx, e.FFmpeg, buildExtractArgs(p)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return 0, fmt.Errorf("ffmpeg extract error: %w, output: %s", err, string(out))
	}
	return countSequence(p.OutDir, p.Start, ext), nil
}

// clearFrames removes {digits}.{ext} files from dir. The manifest and any
// other files stay.
func clearFrames(dir, ext string) error {
	matches, err := filepath.Glob(filepath.Join(dir, "*."+ext))
	if err != nil {
		return err
	}
	for _, m := range matches {
		base := strings.TrimSuffix(filepath.Base(m), "."+ext)
		if _, err := strconv.Atoi(base); err != nil {
			continue
		}
		if err := os.Remove(m); err != nil {
			return fmt.Errorf("remove stale frame: %w", err)
		}
	}
	return nil
}

// countSequence counts consecutive frames from start until the first gap.
func countSequence(dir string, start int, ext string) int {
	n := 0
	for {
		path := filepath.Join(dir, frames.FormatIndex(start+n)+"."+ext)
		if _, err := os.Stat(path); err != nil {
			return n
		}
		n++
	}
}

func buildExtractArgs(p ExtractParams) []string {
	ext := extOrDefault(p.Ext)
	args := []string{"-y", "-i", p.Input}

	if vf := buildFilter(p); vf != "" {
		args = append(args, "-vf", vf)
	}
	args = append(args, "-start_number", strconv.Itoa(p.Start))

	if ext == "jpg" || ext == "jpeg" {
		args = append(args, "-q:v", strconv.Itoa(jpegQScale(p.Quality)))
	}

	// frames.FormatIndex pads to four digits
	args = append(args, filepath.Join(p.OutDir, "%04d."+ext))
	return args
}

// buildFilter вписывает кадр в Width x Height с сохранением пропорций
// и заливает остаток черными полосами.
func buildFilter(p ExtractParams) string {
	var parts []string
	if p.FPS > 0 {
		parts = append(parts, fmt.Sprintf("fps=%s", strconv.FormatFloat(p.FPS, 'f', -1, 64)))
	}
	if p.Width > 0 && p.Height > 0 {
		parts = append(parts,
			fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", p.Width, p.Height),
			fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black", p.Width, p.Height),
		)
	}
	return strings.Join(parts, ",")
}

// jpegQScale переводит качество 1-100 в qscale mjpeg от 31 до 2.
func jpegQScale(quality int) int {
	if quality <= 0 {
		quality = 85
	}
	quality = min(quality, 100)
	return 2 + (100-quality)*29/99
}

func extOrDefault(ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		return frames.DefaultExt
	}
	return ext
}

// CountFrames asks ffprobe for the number of video packets in the first stream.
func (e *Extractor) CountFrames(ctx context.Context, input string) (int, error) {
	cmd := exec.CommandContext(ctx, e.FFprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-count_packets",
		"-show_entries", "stream=nb_read_packets",
		"-of", "csv=p=0",
		input,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe error: %w, output: %s", err, stderr.String())
	}
	return parseCount(out)
}

func parseCount(out []byte) (int, error) {
	s := strings.TrimSpace(string(out))
	s = strings.TrimSuffix(s, ",")
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("unexpected ffprobe output %q", s)
	}
	return n, nil
}
