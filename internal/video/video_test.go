package video

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestBuildExtractArgs(t *testing.T) {
	p := ExtractParams{
		Input:   "in.mp4",
		OutDir:  "out",
		Width:   1280,
		Height:  720,
		FPS:     24,
		Start:   1,
		Quality: 100,
	}
	args := strings.Join(buildExtractArgs(p), " ")

	for _, want := range []string{
		"-i in.mp4",
		"-vf fps=24,scale=1280:720:force_original_aspect_ratio=decrease,pad=1280:720:(ow-iw)/2:(oh-ih)/2:color=black",
		"-start_number 1",
		"-q:v 2",
		filepath.Join("out", "%04d.jpg"),
	} {
		if !strings.Contains(args, want) {
			t.Errorf("Expected %q in %q", want, args)
		}
	}
}

func TestBuildExtractArgsPNGKeepsSize(t *testing.T) {
	args := strings.Join(buildExtractArgs(ExtractParams{Input: "in.mov", OutDir: "o", Ext: ".PNG"}), " ")
	if strings.Contains(args, "-vf") || strings.Contains(args, "-q:v") {
		t.Errorf("Unexpected filter or quality in %q", args)
	}
	if !strings.HasSuffix(args, filepath.Join("o", "%04d.png")) {
		t.Errorf("Expected png pattern, got %q", args)
	}
}

func TestJPEGQScale(t *testing.T) {
	tests := map[int]int{100: 2, 1: 31, 0: 6, 500: 2}
	for q, want := range tests {
		if got := jpegQScale(q); got != want {
			t.Errorf("jpegQScale(%d): expected %d, got %d", q, want, got)
		}
	}
}

func TestParseCount(t *testing.T) {
	if n, err := parseCount([]byte("192\n")); err != nil || n != 192 {
		t.Errorf("Expected 192, got %d (%v)", n, err)
	}
	if n, err := parseCount([]byte("48,\n")); err != nil || n != 48 {
		t.Errorf("Expected 48, got %d (%v)", n, err)
	}
	if _, err := parseCount([]byte("N/A")); err == nil {
		t.Error("Expected error for N/A")
	}
}

func touchFrames(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestClearFramesKeepsOtherFiles(t *testing.T) {
	dir := t.TempDir()
	touchFrames(t, dir, "0000.jpg", "0001.jpg", "cover.jpg", "0000.png", "manifest.yaml")

	if err := clearFrames(dir, "jpg"); err != nil {
		t.Fatal(err)
	}
	for name, want := range map[string]bool{
		"0000.jpg": false, "0001.jpg": false,
		"cover.jpg": true, "0000.png": true, "manifest.yaml": true,
	} {
		_, err := os.Stat(filepath.Join(dir, name))
		if got := err == nil; got != want {
			t.Errorf("%s: expected present=%v, got %v", name, want, got)
		}
	}
}

func TestCountSequenceStopsAtGap(t *testing.T) {
	dir := t.TempDir()
	touchFrames(t, dir, "0001.jpg", "0002.jpg", "0003.jpg", "0005.jpg")

	if n := countSequence(dir, 1, "jpg"); n != 3 {
		t.Errorf("Expected 3, got %d", n)
	}
	if n := countSequence(dir, 0, "jpg"); n != 0 {
		t.Errorf("Expected 0 without the first frame, got %d", n)
	}
}

// fakeFFmpeg writes a script that creates count frames next to the output
// pattern passed as its last argument.
func fakeFFmpeg(t *testing.T, count int) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a POSIX shell")
	}
	script := "#!/bin/sh\nfor last; do :; done\ndir=$(dirname \"$last\")\n"
	for i := 0; i < count; i++ {
		script += fmt.Sprintf("touch \"$dir/%04d.jpg\"\n", i)
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExtractIgnoresLeftoverFrames(t *testing.T) {
	dir := t.TempDir()
	touchFrames(t, dir, "0000.jpg", "0001.jpg", "0002.jpg", "0003.jpg", "0004.jpg")

	e := &Extractor{FFmpeg: fakeFFmpeg(t, 2)}
	n, err := e.Extract(context.Background(), ExtractParams{Input: "short.mp4", OutDir: dir})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 frames, got %d", n)
	}
	if _, err := os.Stat(filepath.Join(dir, "0004.jpg")); !os.IsNotExist(err) {
		t.Errorf("Expected leftover frame to be removed, stat err=%v", err)
	}
}
