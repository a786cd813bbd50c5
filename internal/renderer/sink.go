package renderer

import (
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/ivlev/cleo/internal/frames"
)

// DirSink writes every committed paint as {Dir}/{seq:0000}_{index:0000}.png.
type DirSink struct {
	Dir string

	seq int
}

func (s *DirSink) Present(index int, surface *image.RGBA) error {
	name := frames.FormatIndex(s.seq) + "_" + frames.FormatIndex(index) + ".png"
	s.seq++

	f, err := os.Create(filepath.Join(s.Dir, name))
	if err != nil {
		return err
	}
	if err := png.Encode(f, surface); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
