package frames

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGenerate(t *testing.T) {
	ids := Generate("anim", 4, 0, "jpg")
	want := []string{"anim/0000.jpg", "anim/0001.jpg", "anim/0002.jpg", "anim/0003.jpg"}

	if len(ids) != len(want) {
		t.Fatalf("Expected %d ids, got %d", len(want), len(ids))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d]: expected %s, got %s", i, want[i], ids[i])
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	tests := []struct {
		name  string
		count int
		start int
	}{
		{"frame-anim-1", 192, 0},
		{"pov", 10, 37},
		{"wide", 3, 9998},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Generate(tt.name, tt.count, tt.start, "png")
			b := Generate(tt.name, tt.count, tt.start, "png")
			if len(a) != tt.count || len(b) != tt.count {
				t.Fatalf("Expected %d ids, got %d and %d", tt.count, len(a), len(b))
			}

			seen := make(map[string]bool)
			for i := range a {
				if a[i] != b[i] {
					t.Errorf("Unstable id at %d: %s vs %s", i, a[i], b[i])
				}
				if seen[a[i]] {
					t.Errorf("Duplicate id %s", a[i])
				}
				seen[a[i]] = true

				expected := tt.name + "/" + FormatIndex(tt.start+i) + ".png"
				if a[i] != expected {
					t.Errorf("ids[%d]: expected %s, got %s", i, expected, a[i])
				}
			}
		})
	}
}

func TestGenerateEmpty(t *testing.T) {
	for _, count := range []int{0, -1, -100} {
		ids := Generate("anim", count, 0, "jpg")
		if ids == nil || len(ids) != 0 {
			t.Errorf("count=%d: expected empty non-nil sequence, got %v", count, ids)
		}
	}
}

func TestFormatIndex(t *testing.T) {
	tests := map[int]string{0: "0000", 7: "0007", 191: "0191", 12345: "12345"}
	for n, want := range tests {
		if got := FormatIndex(n); got != want {
			t.Errorf("FormatIndex(%d): expected %s, got %s", n, want, got)
		}
	}
}

func TestFrameIndex(t *testing.T) {
	const n = 192

	if got := FrameIndex(0, n); got != 0 {
		t.Errorf("FrameIndex(0): expected 0, got %d", got)
	}
	if got := FrameIndex(1, n); got != n-1 {
		t.Errorf("FrameIndex(1): expected %d, got %d", n-1, got)
	}
	if got := FrameIndex(-0.5, n); got != 0 {
		t.Errorf("FrameIndex(-0.5): expected 0, got %d", got)
	}
	if got := FrameIndex(3, n); got != n-1 {
		t.Errorf("FrameIndex(3): expected %d, got %d", n-1, got)
	}
	if got := FrameIndex(0.5, 0); got != 0 {
		t.Errorf("FrameIndex with empty sequence: expected 0, got %d", got)
	}

	prev := 0
	for step := 0; step <= 10000; step++ {
		p := float64(step) / 10000
		idx := FrameIndex(p, n)
		if idx < prev {
			t.Fatalf("FrameIndex not monotone at %.4f: %d < %d", p, idx, prev)
		}
		if idx < 0 || idx > n-1 {
			t.Fatalf("FrameIndex out of range at %.4f: %d", p, idx)
		}
		prev = idx
	}
}

func TestSequenceURL(t *testing.T) {
	seq := Sequence{Name: "/frame-anim-1/", Count: 3, Start: 5}
	if got := seq.URL(1); got != "frame-anim-1/0006.jpg" {
		t.Errorf("Expected frame-anim-1/0006.jpg, got %s", got)
	}
	if got := seq.URL(3); got != "" {
		t.Errorf("Expected empty id out of range, got %s", got)
	}
	urls := seq.URLs()
	if urls[2] != seq.URL(2) {
		t.Errorf("URLs and URL disagree: %s vs %s", urls[2], seq.URL(2))
	}
}

func TestManifestWriteRead(t *testing.T) {
	dir := t.TempDir()
	animDir := filepath.Join(dir, "frame-anim-1")
	if err := os.MkdirAll(animDir, 0755); err != nil {
		t.Fatal(err)
	}

	m := &Manifest{Name: "frame-anim-1", Frames: 192, Ext: "jpg", Width: 1920, Height: 1080}
	if err := WriteManifest(m, filepath.Join(animDir, ManifestFile)); err != nil {
		t.Fatalf("WriteManifest failed: %v", err)
	}

	// Directories without a manifest are skipped.
	os.MkdirAll(filepath.Join(dir, "images"), 0755)

	found, err := FindManifests(dir)
	if err != nil {
		t.Fatalf("FindManifests failed: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("Expected 1 manifest, got %d", len(found))
	}

	got := found[0]
	if got.Name != m.Name || got.Frames != m.Frames || got.Width != 1920 {
		t.Errorf("Manifest mismatch: %+v", got)
	}
	if seq := got.Sequence(); seq.URL(0) != "frame-anim-1/0000.jpg" {
		t.Errorf("Unexpected first frame %s", seq.URL(0))
	}
}

func TestReadManifestRequiresName(t *testing.T) {
	path := filepath.Join(t.TempDir(), ManifestFile)
	os.WriteFile(path, []byte("frames: 10\n"), 0644)

	if _, err := ReadManifest(path); err == nil {
		t.Error("Expected error for manifest without name")
	}
}
