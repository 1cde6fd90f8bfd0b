package editor

import (
	"log/slog"

	"golang.org/x/net/html"

	"github.com/hazyhaar/pagewright/dom"
	"github.com/hazyhaar/pagewright/element"
	"github.com/hazyhaar/pagewright/overlay"
)

// Context is a node resolved against the element registry.
type Context struct {
	Definition *element.Definition
	Node       *html.Node
	ID         string
}

// PointerEvent is a pointer event on the primary document. Target is the
// node under the pointer.
type PointerEvent struct {
	Target *html.Node
	Point  overlay.Point
}

// OverlayState is published on TopicOverlay.
type OverlayState struct {
	Hover    overlay.Snapshot `json:"hover"`
	Selected overlay.Snapshot `json:"selected"`
}

// Tracker keeps the hovered and selected contexts in step with pointer
// input and drives the overlays.
type Tracker struct {
	doc      *dom.Document
	reg      *element.Registry
	overlays *overlay.Set
	emit     func(Topic, any)
	logger   *slog.Logger

	hovered  *Context
	selected *Context
	editing  string // id of the node in an inline editing session
	input    bool   // a toolbar input has focus
	hasText  bool
}

func newTracker(doc *dom.Document, reg *element.Registry, set *overlay.Set, emit func(Topic, any), logger *slog.Logger) *Tracker {
	return &Tracker{doc: doc, reg: reg, overlays: set, emit: emit, logger: logger}
}

// Hovered returns the hovered context, or nil.
func (t *Tracker) Hovered() *Context { return t.hovered }

// Selected returns the selected context, or nil.
func (t *Tracker) Selected() *Context { return t.selected }

// Editing reports whether an inline editing session is active.
func (t *Tracker) Editing() bool { return t.editing != "" }

// HasSelectedText reports whether the user has a non-empty text selection.
func (t *Tracker) HasSelectedText() bool { return t.hasText }

func (t *Tracker) resolve(n *html.Node) *Context {
	m := t.reg.Match(n)
	if m == nil {
		return nil
	}
	return &Context{Definition: m.Definition, Node: m.Node, ID: t.doc.EnsureID(m.Node)}
}

// PointerMove updates the hovered context. It is ignored while a toolbar
// input has focus, during inline editing, and while the pointer is inside
// the selected node.
func (t *Tracker) PointerMove(ev PointerEvent) {
	t.overlays.Pointer(ev.Point)
	if t.input || t.Editing() || ev.Target == nil {
		return
	}
	if t.selected != nil && dom.Contains(t.selected.Node, ev.Target) {
		return
	}
	ctx := t.resolve(ev.Target)
	if ctx == nil {
		return
	}
	if t.hovered != nil && t.hovered.Node == ctx.Node && t.overlays.Hover.Visible() {
		return
	}
	t.hovered = ctx
	t.overlays.Hover.Attach(ctx.ID)
	t.overlays.Hover.Show()
	t.emit(TopicHovered, ctx)
	t.emitOverlay()
}

// Click selects the node under the pointer unless an editing session is
// active. It reports whether the shell should prevent the default action,
// which it should for every target outside an editable region.
func (t *Tracker) Click(ev PointerEvent) (preventDefault bool) {
	preventDefault = ev.Target != nil && !dom.InEditable(ev.Target)
	if t.Editing() || ev.Target == nil {
		return preventDefault
	}
	if ctx := t.resolve(ev.Target); ctx != nil {
		t.setSelected(ctx)
	}
	return preventDefault
}

// Select makes n the selection programmatically.
func (t *Tracker) Select(n *html.Node) bool {
	ctx := t.resolve(n)
	if ctx == nil {
		return false
	}
	t.setSelected(ctx)
	return true
}

// SelectID selects the node carrying id.
func (t *Tracker) SelectID(id string) bool {
	n := t.doc.Resolve(id)
	if n == nil {
		t.logger.Debug("editor: select: unresolved", "id", id)
		return false
	}
	return t.Select(n)
}

// Deselect clears the selection.
func (t *Tracker) Deselect() {
	if t.selected == nil {
		return
	}
	t.selected = nil
	t.overlays.Selected.Detach()
	t.emit(TopicSelected, (*Context)(nil))
	t.emitOverlay()
}

func (t *Tracker) setSelected(ctx *Context) {
	t.selected = ctx
	t.overlays.Selected.Attach(ctx.ID)
	t.overlays.Selected.Show()
	t.emit(TopicSelected, ctx)
	t.emitOverlay()
}

// PointerLeave hides the hover overlay; the hovered context is kept.
func (t *Tracker) PointerLeave() {
	if t.overlays.HideHover() {
		t.emitOverlay()
	}
}

// Scroll repositions both overlays without touching the contexts.
func (t *Tracker) Scroll() {
	t.overlays.Reposition()
	t.emitOverlay()
}

// SelectionChange records whether a non-empty text selection exists.
func (t *Tracker) SelectionChange(hasText bool) {
	if t.hasText == hasText {
		return
	}
	t.hasText = hasText
	t.emit(TopicSelectionText, hasText)
}

// FocusInput records toolbar input focus.
func (t *Tracker) FocusInput(focused bool) { t.input = focused }

// refresh re-resolves both contexts after the document changed: nodes may
// have been replaced or removed.
func (t *Tracker) refresh() {
	if t.hovered != nil {
		if n := t.doc.Resolve(t.hovered.ID); n != nil {
			t.hovered.Node = n
		} else {
			t.hovered = nil
			t.overlays.Hover.Detach()
			t.emit(TopicHovered, (*Context)(nil))
		}
	}
	if t.selected != nil {
		if n := t.doc.Resolve(t.selected.ID); n != nil {
			t.selected.Node = n
		} else {
			t.Deselect()
		}
	}
	t.overlays.Reposition()
	t.emitOverlay()
}

func (t *Tracker) emitOverlay() {
	t.emit(TopicOverlay, OverlayState{
		Hover:    t.overlays.Hover.Snapshot(),
		Selected: t.overlays.Selected.Snapshot(),
	})
}
