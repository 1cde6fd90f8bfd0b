package overlay

// Position is the computed top-left corner of a floating element.
type Position struct {
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Placement Placement `json:"placement"`
}

// State is what middleware sees and adjusts.
type State struct {
	X, Y      float64
	Placement Placement
	Anchor    Rect
	Floating  Size
	Viewport  Rect
}

// Middleware adjusts the state. Returning a non-empty placement restarts
// the computation with that placement.
type Middleware func(s *State) (reset Placement)

// ComputePosition places a floating element of size floating next to
// anchor, inside viewport.
func ComputePosition(anchor Rect, floating Size, viewport Rect, placement Placement, mw ...Middleware) Position {
	s := State{Placement: placement, Anchor: anchor, Floating: floating, Viewport: viewport}
	resets := 0
	for {
		s.X, s.Y = baseCoords(anchor, floating, s.Placement)
		restarted := false
		for _, m := range mw {
			if p := m(&s); p != "" && p != s.Placement && resets < len(mw) {
				s.Placement = p
				resets++
				restarted = true
				break
			}
		}
		if !restarted {
			return Position{X: s.X, Y: s.Y, Placement: s.Placement}
		}
	}
}

func baseCoords(a Rect, f Size, p Placement) (x, y float64) {
	switch p.Side() {
	case Top, Bottom:
		switch p.Align() {
		case "start":
			x = a.X
		case "end":
			x = a.Right() - f.W
		default:
			x = a.X + a.W/2 - f.W/2
		}
		if p.Side() == Top {
			y = a.Y - f.H
		} else {
			y = a.Bottom()
		}
	case Left, Right:
		switch p.Align() {
		case "start":
			y = a.Y
		case "end":
			y = a.Bottom() - f.H
		default:
			y = a.Y + a.H/2 - f.H/2
		}
		if p.Side() == Left {
			x = a.X - f.W
		} else {
			x = a.Right()
		}
	}
	return x, y
}

// Offset pushes the element away from the anchor by d pixels.
func Offset(d float64) Middleware {
	return func(s *State) Placement {
		switch s.Placement.Side() {
		case Top:
			s.Y -= d
		case Bottom:
			s.Y += d
		case Left:
			s.X -= d
		case Right:
			s.X += d
		}
		return ""
	}
}

// Flip moves a top/bottom placement to the opposite side when it overflows
// the viewport (less padding) on its side and the opposite side has room.
func Flip(padding float64) Middleware {
	return func(s *State) Placement {
		over := overflow(s, s.X, s.Y, padding)
		var mainOver float64
		switch s.Placement.Side() {
		case Top:
			mainOver = over.top
		case Bottom:
			mainOver = over.bottom
		default:
			return ""
		}
		if mainOver <= 0 {
			return ""
		}
		alt := s.Placement.flipVertical()
		x, y := baseCoords(s.Anchor, s.Floating, alt)
		// Apply the same displacement earlier middleware (offset) added.
		bx, by := baseCoords(s.Anchor, s.Floating, s.Placement)
		y += -(s.Y - by)
		x += s.X - bx
		o := overflow(s, x, y, padding)
		altOver := o.top
		if alt.Side() == Bottom {
			altOver = o.bottom
		}
		if altOver < mainOver {
			return alt
		}
		return ""
	}
}

// Shift slides the element along both axes to keep it inside the viewport
// with the given padding. An element larger than the viewport is aligned
// to the viewport's start edge.
func Shift(padding float64) Middleware {
	return func(s *State) Placement {
		s.X = clamp(s.X, s.Viewport.X+padding, s.Viewport.Right()-padding-s.Floating.W)
		s.Y = clamp(s.Y, s.Viewport.Y+padding, s.Viewport.Bottom()-padding-s.Floating.H)
		return ""
	}
}

type overflows struct{ top, bottom, left, right float64 }

func overflow(s *State, x, y, padding float64) overflows {
	vp := s.Viewport
	return overflows{
		top:    vp.Y + padding - y,
		bottom: y + s.Floating.H - (vp.Bottom() - padding),
		left:   vp.X + padding - x,
		right:  x + s.Floating.W - (vp.Right() - padding),
	}
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
