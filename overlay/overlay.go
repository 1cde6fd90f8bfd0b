package overlay

// Options configures overlay chrome.
type Options struct {
	Toolbar    Size      // floating toolbar size
	Placement  Placement // preferred toolbar placement
	Offset     float64   // toolbar distance from the box
	Padding    float64   // viewport padding for flip/shift
	HandleSize float64   // resize handle edge length
}

func (o *Options) defaults() {
	if o.Toolbar == (Size{}) {
		o.Toolbar = Size{W: 240, H: 36}
	}
	if o.Placement == "" {
		o.Placement = PlaceTopStart
	}
	if o.Offset == 0 {
		o.Offset = 8
	}
	if o.Padding == 0 {
		o.Padding = 4
	}
	if o.HandleSize == 0 {
		o.HandleSize = 10
	}
}

// Overlay is one set of chrome (outline, toolbar, handle) anchored to a
// node. Show, Hide and Reposition are idempotent.
type Overlay struct {
	layout  Layout
	opts    Options
	target  string
	visible bool
	placed  bool

	box     Rect
	toolbar Position
	handle  Rect
}

// New creates a hidden overlay reading geometry from layout.
func New(layout Layout, opts Options) *Overlay {
	opts.defaults()
	return &Overlay{layout: layout, opts: opts}
}

// Attach anchors the overlay to id and repositions it if visible.
func (o *Overlay) Attach(id string) {
	o.target = id
	o.placed = false
	if o.visible {
		o.Reposition()
	}
}

// Detach clears the anchor and hides the overlay.
func (o *Overlay) Detach() {
	o.target = ""
	o.placed = false
	o.visible = false
}

// Target returns the anchored node id.
func (o *Overlay) Target() string { return o.target }

// Show makes the overlay visible at the anchor's current position.
func (o *Overlay) Show() bool {
	if o.target == "" {
		return false
	}
	o.visible = true
	return o.Reposition()
}

// Hide makes the overlay invisible. The anchor is kept.
func (o *Overlay) Hide() { o.visible = false }

// Visible reports visibility.
func (o *Overlay) Visible() bool { return o.visible }

// Reposition reads the anchor's live rect and recomputes box, toolbar and
// handle. It returns false, keeping the previous geometry, when the anchor
// has no layout.
func (o *Overlay) Reposition() bool {
	if o.target == "" {
		return false
	}
	r, ok := o.layout.Rect(o.target)
	if !ok {
		return false
	}
	o.box = r
	o.toolbar = ComputePosition(r, o.opts.Toolbar, o.layout.Viewport(), o.opts.Placement,
		Offset(o.opts.Offset), Flip(o.opts.Padding), Shift(o.opts.Padding))
	hs := o.opts.HandleSize
	o.handle = Rect{X: r.Right() - hs/2, Y: r.Bottom() - hs/2, W: hs, H: hs}
	o.placed = true
	return true
}

// Box is the outline rect.
func (o *Overlay) Box() Rect { return o.box }

// Toolbar is the toolbar position.
func (o *Overlay) Toolbar() Position { return o.toolbar }

// Handle is the resize handle rect, centred on the bottom-right corner.
func (o *Overlay) Handle() Rect { return o.handle }

// Snapshot is a serialisable view of an overlay for UI shells.
type Snapshot struct {
	Target  string   `json:"target"`
	Visible bool     `json:"visible"`
	Box     Rect     `json:"box"`
	Toolbar Position `json:"toolbar"`
	Handle  Rect     `json:"handle"`
}

// Snapshot returns the current geometry.
func (o *Overlay) Snapshot() Snapshot {
	return Snapshot{Target: o.target, Visible: o.visible && o.placed, Box: o.box, Toolbar: o.toolbar, Handle: o.handle}
}

// Set is the editor's pair of overlays: hover and selection.
type Set struct {
	Hover    *Overlay
	Selected *Overlay

	onHandle bool
}

// NewSet creates hover and selection overlays sharing one layout.
func NewSet(layout Layout, opts Options) *Set {
	return &Set{Hover: New(layout, opts), Selected: New(layout, opts)}
}

// HandleHit reports whether p is on the visible selection's resize handle.
func (s *Set) HandleHit(p Point) bool {
	return s.Selected.Visible() && s.Selected.placed && s.Selected.Handle().Contains(p)
}

// Pointer records the latest pointer position for hover suppression.
func (s *Set) Pointer(p Point) { s.onHandle = s.HandleHit(p) }

// OnHandle reports whether the pointer was last seen on the handle.
func (s *Set) OnHandle() bool { return s.onHandle }

// HideHover hides the hover overlay unless the pointer sits on the
// selection's resize handle. Reports whether it hid.
func (s *Set) HideHover() bool {
	if s.onHandle {
		return false
	}
	s.Hover.Hide()
	return true
}

// Reposition recomputes both overlays.
func (s *Set) Reposition() {
	if s.Hover.Visible() {
		s.Hover.Reposition()
	}
	if s.Selected.Visible() {
		s.Selected.Reposition()
	}
}
