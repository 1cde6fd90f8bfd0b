package interact

import (
	"math"

	"github.com/hazyhaar/pagewright/mutation"
	"github.com/hazyhaar/pagewright/overlay"
)

// ResizeState is the resize machine state.
type ResizeState int

const (
	ResizeIdle ResizeState = iota
	Resizing
	ResizeDone
)

// DefaultMinSize is the usability floor for resized elements.
var DefaultMinSize = overlay.Size{W: 20, H: 20}

// ComputeSize returns the new size for a pointer delta. Both dimensions
// are clamped to floor; with lock the height follows the width at the start
// rect's ratio, and the width is recomputed if the height hit its floor.
func ComputeSize(start overlay.Rect, dx, dy float64, floor overlay.Size, lock bool) (w, h float64) {
	w = math.Max(start.W+dx, floor.W)
	h = math.Max(start.H+dy, floor.H)
	if lock && start.W > 0 && start.H > 0 {
		ratio := start.W / start.H
		h = w / ratio
		if h < floor.H {
			h = floor.H
			w = h * ratio
		}
	}
	return w, h
}

// Resize is the Idle → Resizing → Done machine. Move produces session
// mutations, End the session-closing one.
type Resize struct {
	floor      overlay.Size
	state      ResizeState
	target     string
	start      overlay.Rect
	origin     overlay.Point
	lock       bool
	keepHeight bool
}

// NewResize creates a machine clamping to floor (DefaultMinSize when zero).
func NewResize(floor overlay.Size) *Resize {
	if floor == (overlay.Size{}) {
		floor = DefaultMinSize
	}
	return &Resize{floor: floor}
}

// State returns the current state.
func (r *Resize) State() ResizeState { return r.state }

// Target returns the node being resized.
func (r *Resize) Target() string { return r.target }

// Begin captures the start rect on pointer-down over the handle. It is
// refused while a resize is already running.
func (r *Resize) Begin(target string, start overlay.Rect, p overlay.Point, lockAspect, keepHeight bool) bool {
	if r.state == Resizing || target == "" {
		return false
	}
	r.state = Resizing
	r.target = target
	r.start = start
	r.origin = p
	r.lock = lockAspect
	r.keepHeight = keepHeight
	return true
}

func (r *Resize) mutation(p overlay.Point, flag mutation.SessionFlag) *mutation.Resize {
	w, h := ComputeSize(r.start, p.X-r.origin.X, p.Y-r.origin.Y, r.floor, r.lock)
	m := mutation.NewResize(r.target, w, h, flag)
	m.KeepHeight = r.keepHeight
	return m
}

// Move returns the intermediate mutation for pointer position p.
func (r *Resize) Move(p overlay.Point) *mutation.Resize {
	if r.state != Resizing {
		return nil
	}
	return r.mutation(p, mutation.PartOfSession)
}

// End finalises the resize at p.
func (r *Resize) End(p overlay.Point) *mutation.Resize {
	if r.state != Resizing {
		return nil
	}
	r.state = ResizeDone
	return r.mutation(p, mutation.LastInSession)
}

// Cancel stops the resize without a final mutation. Intermediate sizes
// already applied stay applied; the caller closes the history session.
func (r *Resize) Cancel() {
	if r.state == Resizing {
		r.state = ResizeDone
	}
}
