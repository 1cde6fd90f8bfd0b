package interact

import (
	"errors"

	"golang.org/x/net/html"

	"github.com/hazyhaar/pagewright/dom"
	"github.com/hazyhaar/pagewright/element"
	"github.com/hazyhaar/pagewright/mutation"
	"github.com/hazyhaar/pagewright/overlay"
)

// DragState is the drag machine state.
type DragState int

const (
	DragIdle DragState = iota
	Dragging
	Dropped
	Cancelled
)

func (s DragState) String() string {
	switch s {
	case Dragging:
		return "dragging"
	case Dropped:
		return "dropped"
	case Cancelled:
		return "cancelled"
	default:
		return "idle"
	}
}

// ErrDragActive is returned by Start while a drag is in progress.
var ErrDragActive = errors.New("interact: drag already in progress")

// Payload is what is being dragged: an existing node (NodeID set) or a new
// element from the palette (Markup set).
type Payload struct {
	Definition *element.Definition
	NodeID     string
	Markup     string
}

// Target is a validated drop position.
type Target struct {
	ParentID string
	// Index counts the parent's element children, the dragged node
	// excluded; -1 appends.
	Index int
	// Indicator is where to draw the drop line.
	Indicator overlay.Rect
}

// Drag is the Idle → Dragging → Dropped | Cancelled machine.
type Drag struct {
	reg     *element.Registry
	state   DragState
	payload Payload
	target  *Target
}

// NewDrag creates an idle drag machine validating against reg.
func NewDrag(reg *element.Registry) *Drag {
	return &Drag{reg: reg}
}

// State returns the current state.
func (d *Drag) State() DragState { return d.state }

// Payload returns the dragged payload.
func (d *Drag) Payload() Payload { return d.payload }

// Target returns the last valid drop target, or nil.
func (d *Drag) Target() *Target { return d.target }

// Start enters Dragging. A finished drag (dropped or cancelled) may be
// restarted.
func (d *Drag) Start(p Payload) error {
	if d.state == Dragging {
		return ErrDragActive
	}
	if p.Definition == nil || (p.NodeID == "" && p.Markup == "") {
		return errors.New("interact: drag payload needs a definition and a node or markup")
	}
	d.state = Dragging
	d.payload = p
	d.target = nil
	return nil
}

// Over re-validates containment for the container under the pointer and
// computes the drop index. It returns false, clearing the target, when the
// payload may not go into parent; the caller must then show no drop
// indicator.
func (d *Drag) Over(doc *dom.Document, parent *html.Node, p overlay.Point, layout overlay.Layout) (Target, bool) {
	if d.state != Dragging {
		return Target{}, false
	}
	if !d.allowed(doc, parent) {
		d.target = nil
		return Target{}, false
	}

	var dragged *html.Node
	if d.payload.NodeID != "" {
		dragged = doc.Resolve(d.payload.NodeID)
	}
	type sibling struct {
		index int
		rect  overlay.Rect
	}
	var sibs []sibling
	i := 0
	for _, c := range dom.ElementChildren(parent) {
		if c == dragged {
			continue
		}
		if r, ok := layout.Rect(doc.EnsureID(c)); ok {
			sibs = append(sibs, sibling{index: i, rect: r})
		}
		i++
	}
	rects := make([]overlay.Rect, len(sibs))
	for j, s := range sibs {
		rects[j] = s.rect
	}

	var axis Axis
	if m := d.reg.Match(parent); m != nil {
		axis = AxisFor(m.Definition)
	}
	at := DropIndex(rects, p, axis)

	t := Target{ParentID: doc.EnsureID(parent), Index: -1}
	switch {
	case at < len(sibs):
		t.Index = sibs[at].index
		t.Indicator = edge(sibs[at].rect, axis, true)
	case len(sibs) > 0:
		t.Indicator = edge(sibs[len(sibs)-1].rect, axis, false)
	default:
		if r, ok := layout.Rect(t.ParentID); ok {
			t.Indicator = r
		}
	}
	d.target = &t
	return t, true
}

// allowed applies both containment rules, and keeps a node out of its own
// subtree.
func (d *Drag) allowed(doc *dom.Document, parent *html.Node) bool {
	if parent == nil || !mutation.CanInsertInto(parent) || !d.reg.CanInsertInto(parent, d.payload.Definition) {
		return false
	}
	if d.payload.NodeID != "" {
		if n := doc.Resolve(d.payload.NodeID); n != nil && dom.Contains(n, parent) {
			return false
		}
	}
	return true
}

// edge returns a zero-thickness line on the leading (before) or trailing
// edge of r.
func edge(r overlay.Rect, axis Axis, before bool) overlay.Rect {
	if axis == Horizontal {
		x := r.Right()
		if before {
			x = r.X
		}
		return overlay.Rect{X: x, Y: r.Y, H: r.H}
	}
	y := r.Bottom()
	if before {
		y = r.Y
	}
	return overlay.Rect{X: r.X, Y: y, W: r.W}
}

// Drop ends the drag. Containment is checked again against doc; with no
// valid target the drag is cancelled and nil is returned. Otherwise the
// result is a Move for existing nodes or an Insert for palette items.
func (d *Drag) Drop(doc *dom.Document) mutation.Mutation {
	if d.state != Dragging {
		return nil
	}
	t := d.target
	if t == nil || !d.allowed(doc, doc.Resolve(t.ParentID)) {
		d.Cancel()
		return nil
	}
	d.state = Dropped
	if d.payload.NodeID != "" {
		m := mutation.NewMove(d.payload.NodeID, t.ParentID, t.Index)
		m.Name = d.payload.Definition.Name
		return m
	}
	m := mutation.NewInsert(d.payload.Markup, t.ParentID, t.Index)
	m.Name = d.payload.Definition.Name
	return m
}

// Cancel abandons the drag.
func (d *Drag) Cancel() {
	if d.state == Dragging {
		d.state = Cancelled
	}
	d.target = nil
}
