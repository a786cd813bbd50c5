package renderer

import (
	"image"
	"image/color"
	"math"
	"strings"

	xdraw "golang.org/x/image/draw"

	"github.com/ivlev/cleo/internal/system"
)

// ScalerByName maps a config value to an x/image scaler. Unknown names fall
// back to ApproxBiLinear, which is fast enough for scrubbing.
func ScalerByName(name string) xdraw.Scaler {
	switch strings.ToLower(name) {
	case "nearest":
		return xdraw.NearestNeighbor
	case "bilinear":
		return xdraw.BiLinear
	case "catmullrom":
		return xdraw.CatmullRom
	default:
		return xdraw.ApproxBiLinear
	}
}

// FitRect centres a srcW x srcH image inside dstW x dstH preserving its
// aspect ratio (letterbox or pillarbox).
func FitRect(srcW, srcH, dstW, dstH int) image.Rectangle {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return image.Rectangle{}
	}
	scale := math.Min(float64(dstW)/float64(srcW), float64(dstH)/float64(srcH))
	w := int(math.Round(float64(srcW) * scale))
	h := int(math.Round(float64(srcH) * scale))
	x := (dstW - w) / 2
	y := (dstH - h) / 2
	return image.Rect(x, y, x+w, y+h)
}

// Surface is the single drawing target of the renderer. Its buffer comes
// from the shared image pool and must be returned with Release.
type Surface struct {
	img        *image.RGBA
	scaler     xdraw.Scaler
	background image.Image
}

// NewSurface allocates a w x h surface.
func NewSurface(w, h int, scaler xdraw.Scaler, bg color.Color) *Surface {
	if scaler == nil {
		scaler = xdraw.ApproxBiLinear
	}
	if bg == nil {
		bg = color.Black
	}
	return &Surface{
		img:        system.GetImage(w, h),
		scaler:     scaler,
		background: image.NewUniform(bg),
	}
}

// Size returns the surface dimensions.
func (s *Surface) Size() image.Point {
	return s.img.Rect.Size()
}

// Image exposes the backing buffer. It is overwritten by the next Draw.
func (s *Surface) Image() *image.RGBA {
	return s.img
}

// Draw clears the surface and paints src centred with preserved aspect.
func (s *Surface) Draw(src image.Image) image.Rectangle {
	xdraw.Draw(s.img, s.img.Rect, s.background, image.Point{}, xdraw.Src)
	if src == nil {
		return image.Rectangle{}
	}

	b := src.Bounds()
	dst := FitRect(b.Dx(), b.Dy(), s.img.Rect.Dx(), s.img.Rect.Dy())
	if dst.Empty() {
		return dst
	}
	s.scaler.Scale(s.img, dst, src, b, xdraw.Over, nil)
	return dst
}

// Release returns the buffer to the pool. The surface is unusable afterwards.
func (s *Surface) Release() {
	if s.img != nil {
		system.PutImage(s.img)
		s.img = nil
	}
}
