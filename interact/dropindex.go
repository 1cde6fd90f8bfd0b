// Package interact holds the pointer-driven interaction state machines:
// drag and drop of elements and handle-based resizing. Each machine turns
// pointer input into mutation objects; applying them is the caller's job.
package interact

import (
	"github.com/hazyhaar/pagewright/element"
	"github.com/hazyhaar/pagewright/overlay"
)

// Axis is the direction siblings flow in.
type Axis int

const (
	Vertical Axis = iota
	Horizontal
)

// AxisFor returns the flow axis of a container definition: rows and grids
// lay children out horizontally.
func AxisFor(def *element.Definition) Axis {
	if def != nil && (def.Kind == element.KindRow || def.Kind == element.KindGrid) {
		return Horizontal
	}
	return Vertical
}

// DropIndex returns the insertion index for a pointer at p among sibling
// rects: the first sibling whose midpoint lies past the pointer, or
// len(siblings) (append) when none does.
func DropIndex(siblings []overlay.Rect, p overlay.Point, axis Axis) int {
	for i, r := range siblings {
		c := r.Center()
		if axis == Horizontal {
			if p.X < c.X {
				return i
			}
			continue
		}
		if p.Y < c.Y {
			return i
		}
	}
	return len(siblings)
}
