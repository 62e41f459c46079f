package viewer

import "math"

// FitScale computes the render scale that fits a page of intrinsic size
// (pdfW, pdfH) inside a viewport of size (vw, vh) while preserving aspect
// ratio. Degenerate inputs (zero or negative sizes, non-finite ratios)
// produce 1.0 so a broken viewport never collapses the raster to nothing.
func FitScale(vw, vh, pdfW, pdfH float64) float64 {
	scale := math.Min(vw/pdfW, vh/pdfH)
	if math.IsNaN(scale) || math.IsInf(scale, 0) || scale <= 0 {
		return 1.0
	}
	return scale
}
