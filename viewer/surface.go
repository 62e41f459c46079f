package viewer

import (
	"image"
	"image/color"
	"image/draw"
)

// Surface is the raster target a page is drawn onto. The embedding shell
// owns presentation; the surface only holds pixels and an optional status
// message for the "failed to load" case.
type Surface struct {
	img     *image.RGBA
	message string
}

func NewSurface() *Surface {
	return &Surface{img: image.NewRGBA(image.Rect(0, 0, 0, 0))}
}

// Resize replaces the backing raster with a fresh one of the given pixel
// dimensions. Negative sizes are clamped to zero.
func (s *Surface) Resize(w, h int) {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	s.img = image.NewRGBA(image.Rect(0, 0, w, h))
}

// Clear fills the raster with white and drops any status message.
func (s *Surface) Clear() {
	draw.Draw(s.img, s.img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	s.message = ""
}

// Draw copies a rendered page onto the surface, anchored at the origin.
func (s *Surface) Draw(img image.Image) {
	draw.Draw(s.img, s.img.Bounds(), img, img.Bounds().Min, draw.Src)
}

// SetMessage records a visible status line, shown by the shell in place of
// page content.
func (s *Surface) SetMessage(msg string) {
	s.message = msg
}

func (s *Surface) Message() string {
	return s.message
}

func (s *Surface) Size() (w, h int) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

// Image exposes the backing raster for encoding or display.
func (s *Surface) Image() *image.RGBA {
	return s.img
}
