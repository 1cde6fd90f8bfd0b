// Package overlay positions the editor chrome (outline box, floating
// toolbar, resize handle) over tracked nodes. Positions are recomputed
// from the live layout on every call, so Reposition can run every frame.
package overlay

// Point is a position in viewport coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a width/height pair.
type Size struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Rect is an axis-aligned box in viewport coordinates, like
// getBoundingClientRect.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

func (r Rect) Right() float64  { return r.X + r.W }
func (r Rect) Bottom() float64 { return r.Y + r.H }
func (r Rect) Size() Size      { return Size{W: r.W, H: r.H} }

// Center returns the midpoint.
func (r Rect) Center() Point { return Point{X: r.X + r.W/2, Y: r.Y + r.H/2} }

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.Right() && p.Y >= r.Y && p.Y <= r.Bottom()
}

// Translate moves r by (dx, dy).
func (r Rect) Translate(dx, dy float64) Rect {
	return Rect{X: r.X + dx, Y: r.Y + dy, W: r.W, H: r.H}
}

// Side is the side of the anchor the floating element sits on.
type Side string

const (
	Top    Side = "top"
	Bottom Side = "bottom"
	Left   Side = "left"
	Right  Side = "right"
)

// Placement is a side with an optional "-start" / "-end" alignment.
type Placement string

const (
	PlaceTop         Placement = "top"
	PlaceTopStart    Placement = "top-start"
	PlaceTopEnd      Placement = "top-end"
	PlaceBottom      Placement = "bottom"
	PlaceBottomStart Placement = "bottom-start"
	PlaceBottomEnd   Placement = "bottom-end"
	PlaceLeft        Placement = "left"
	PlaceRight       Placement = "right"
)

// Side returns the placement side; unknown placements read as top.
func (p Placement) Side() Side {
	switch s := Side(splitPlacement(p)); s {
	case Top, Bottom, Left, Right:
		return s
	}
	return Top
}

// Align returns "start", "end" or "".
func (p Placement) Align() string {
	s := string(p)
	for i := range s {
		if s[i] == '-' {
			return s[i+1:]
		}
	}
	return ""
}

func splitPlacement(p Placement) string {
	s := string(p)
	for i := range s {
		if s[i] == '-' {
			return s[:i]
		}
	}
	return s
}

// flipVertical swaps top and bottom; other sides are returned unchanged.
func (p Placement) flipVertical() Placement {
	align := p.Align()
	var side Side
	switch p.Side() {
	case Top:
		side = Bottom
	case Bottom:
		side = Top
	default:
		return p
	}
	if align == "" {
		return Placement(side)
	}
	return Placement(string(side) + "-" + align)
}
