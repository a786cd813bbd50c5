package system

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFindLatestInput(t *testing.T) {
	dir := t.TempDir()

	files := []string{"deck_old.pdf", "deck_new.PDF", "notes.txt"}
	for i, name := range files {
		path := filepath.Join(dir, name)
		os.WriteFile(path, []byte("test"), 0644)
		modTime := time.Now().Add(time.Duration(i) * time.Hour)
		os.Chtimes(path, modTime, modTime)
	}

	latest, err := FindLatestInput(dir, PDFExtensions)
	if err != nil {
		t.Fatalf("FindLatestInput failed: %v", err)
	}
	if filepath.Base(latest) != "deck_new.PDF" {
		t.Errorf("Expected deck_new.PDF, got %s", latest)
	}

	if _, err := FindLatestInput(dir, VideoExtensions); err == nil {
		t.Error("Expected error when no video is present")
	}
}

func TestImagePoolReuse(t *testing.T) {
	pool := NewImagePool()

	img := pool.Get(16, 9)
	if img.Rect.Dx() != 16 || img.Rect.Dy() != 9 {
		t.Fatalf("Unexpected size %v", img.Rect)
	}
	img.Pix[0] = 255
	pool.Put(img)

	again := pool.Get(16, 9)
	if again.Pix[0] != 0 {
		t.Error("Expected pooled buffer to be cleared")
	}

	empty := pool.Get(0, 10)
	if !empty.Rect.Empty() {
		t.Errorf("Expected empty image for zero width, got %v", empty.Rect)
	}
	pool.Put(empty)
	pool.Put(nil)
}
