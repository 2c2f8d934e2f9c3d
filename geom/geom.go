// Package geom maps percentage-based bounding boxes onto absolute page
// coordinates. Diagram regions are stored as percentages of page
// dimensions so they stay valid at any rendering resolution.
package geom

import "fmt"

// RegionPct is a bounding box expressed as percentages of page
// width/height. X+W and Y+H may exceed 100; out-of-range boxes are
// clipped at render time, not here.
type RegionPct struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Rect is an absolute rectangle in page coordinate space.
type Rect struct {
	X0, Y0, X1, Y1 float64
}

// Map converts a percentage region into absolute coordinates on a page
// of the given dimensions. No clamping is performed; callers clip
// against the rendered surface. Negative page dimensions are rejected.
func Map(pageW, pageH float64, r RegionPct) (Rect, error) {
	if pageW < 0 || pageH < 0 {
		return Rect{}, fmt.Errorf("geom: negative page dimensions %gx%g", pageW, pageH)
	}

	x := float64(r.X) / 100 * pageW
	y := float64(r.Y) / 100 * pageH
	w := float64(r.W) / 100 * pageW
	h := float64(r.H) / 100 * pageH

	return Rect{X0: x, Y0: y, X1: x + w, Y1: y + h}, nil
}

// Clip bounds the rectangle to [0,w] x [0,h].
func (r Rect) Clip(w, h float64) Rect {
	return Rect{
		X0: clamp(r.X0, 0, w),
		Y0: clamp(r.Y0, 0, h),
		X1: clamp(r.X1, 0, w),
		Y1: clamp(r.Y1, 0, h),
	}
}

// Width returns the horizontal extent of the rectangle.
func (r Rect) Width() float64 { return r.X1 - r.X0 }

// Height returns the vertical extent of the rectangle.
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// Empty reports whether the rectangle encloses no area.
func (r Rect) Empty() bool { return r.X1 <= r.X0 || r.Y1 <= r.Y0 }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
