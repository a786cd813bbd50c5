package source

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
}

func TestFolderSourceOrder(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"), 4, 2)
	writePNG(t, filepath.Join(dir, "a.png"), 8, 6)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0644)

	src, err := Open(dir, 0)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer src.Close()

	if n := src.FrameCount(); n != 2 {
		t.Fatalf("Expected 2 frames, got %d", n)
	}
	w, h, err := src.Dimensions(0)
	if err != nil || w != 8 || h != 6 {
		t.Errorf("Expected a.png (8x6) first, got %dx%d err=%v", w, h, err)
	}
	img, err := src.Frame(1)
	if err != nil {
		t.Fatalf("Frame failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 2 {
		t.Errorf("Expected 4x2 frame, got %v", b)
	}
}

func TestFolderSourceOutOfRange(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "only.png"), 1, 1)

	src, err := NewFolderSource(filepath.Join(dir, "only.png"))
	if err != nil {
		t.Fatal(err)
	}
	if src.FrameCount() != 1 {
		t.Fatalf("Expected single-file source")
	}
	if _, err := src.Frame(1); err == nil {
		t.Error("Expected out of range error")
	}
}

func TestOpenRejectsVideo(t *testing.T) {
	if _, err := Open("clip.mp4", 0); err == nil {
		t.Error("Expected error for a video input")
	}
}
