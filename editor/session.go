// Package editor is the application context of a pagewright editing
// session. A Session owns the document being edited, its linked preview
// copies, the element registry, the mutation engine, the context tracker,
// the overlays and the drag and resize machines, and publishes what
// happens on a Bus. All methods are safe for concurrent use; bus handlers
// run after the session lock is released.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/net/html"

	"github.com/hazyhaar/pagewright/autosave"
	"github.com/hazyhaar/pagewright/dom"
	"github.com/hazyhaar/pagewright/element"
	"github.com/hazyhaar/pagewright/interact"
	"github.com/hazyhaar/pagewright/mutation"
	"github.com/hazyhaar/pagewright/overlay"
)

// RequiredAttr marks layout elements that may not be deleted.
const RequiredAttr = "data-pw-required"

var (
	ErrNoop       = errors.New("editor: mutation did not apply")
	ErrNotFound   = errors.New("editor: node not found")
	ErrProtected  = errors.New("editor: element is required by its layout")
	ErrNotAllowed = errors.New("editor: not allowed here")
	ErrNoSaver    = errors.New("editor: no saver configured")
)

// DefaultViewport is the static layout size used without a live browser.
var DefaultViewport = overlay.Size{W: 1280, H: 800}

// Session is one open document.
type Session struct {
	mu       sync.Mutex
	cfg      *Config
	project  string
	doc      *dom.Document
	reg      *element.Registry
	engine   *mutation.Engine
	layout   overlay.Layout
	overlays *overlay.Set
	tracker  *Tracker
	drag     *interact.Drag
	resize   *interact.Resize
	bus      *Bus
	saver    autosave.Saver
	saves    *autosave.Coordinator
	logger   *slog.Logger

	listeners []mutation.Listener
	queued    []Event

	// revision and identity counter last pushed to a Syncer layout
	syncedRev, syncedIDs uint64
	synced               bool
}

// Option configures a Session.
type Option func(*Session)

// WithConfig sets the configuration. Zero fields take defaults.
func WithConfig(cfg *Config) Option {
	return func(s *Session) { s.cfg = cfg }
}

// WithProject tags the session and its mutation batches.
func WithProject(id string) Option {
	return func(s *Session) { s.project = id }
}

// WithRegistry replaces the element registry built from the config.
func WithRegistry(r *element.Registry) Option {
	return func(s *Session) { s.reg = r }
}

// WithLayout sets where node geometry is read from. Default: an empty
// StaticLayout of DefaultViewport.
func WithLayout(l overlay.Layout) Option {
	return func(s *Session) { s.layout = l }
}

// WithSaver enables manual and automatic saving.
func WithSaver(sv autosave.Saver) Option {
	return func(s *Session) { s.saver = sv }
}

// WithListener receives every mutation batch, outside the session lock.
func WithListener(fn mutation.Listener) Option {
	return func(s *Session) { s.listeners = append(s.listeners, fn) }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// Open parses src and starts a session on it.
func Open(src string, opts ...Option) (*Session, error) {
	s := &Session{bus: NewBus()}
	for _, o := range opts {
		o(s)
	}
	if s.cfg == nil {
		s.cfg = DefaultConfig()
	} else {
		cfg := *s.cfg
		cfg.defaults()
		s.cfg = &cfg
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	ident := dom.NewIdentity(s.cfg.Identity.Attr, s.cfg.Identity.Prefix)
	doc, err := dom.Parse("edit", src, ident)
	if err != nil {
		return nil, fmt.Errorf("editor: open: %w", err)
	}
	s.doc = doc

	if s.reg == nil {
		s.reg = element.NewRegistry(s.logger, element.WithCatalogFiles(s.cfg.Catalogs...))
	}
	if _, err := s.reg.Load(); err != nil {
		return nil, fmt.Errorf("editor: open: %w", err)
	}
	if s.layout == nil {
		s.layout = overlay.NewStaticLayout(DefaultViewport)
	}

	s.overlays = overlay.NewSet(s.layout, s.cfg.OverlayOptions())
	s.tracker = newTracker(doc, s.reg, s.overlays, s.queue, s.logger)
	s.engine = mutation.NewEngine(doc,
		mutation.WithHistoryLimit(s.cfg.History.Limit),
		mutation.WithLogger(s.logger),
		mutation.WithProject(s.project),
		mutation.WithSelectHook(func(id string) { s.tracker.SelectID(id) }),
		mutation.WithListener(s.onBatch),
	)
	s.syncLayout()
	s.drag = interact.NewDrag(s.reg)
	s.resize = interact.NewResize(overlay.Size{W: s.cfg.Resize.MinWidth, H: s.cfg.Resize.MinHeight})

	for _, fn := range s.listeners {
		s.bus.Subscribe(TopicMutation, func(ev Event) { fn(ev.Payload.(mutation.Batch)) })
	}
	if s.saver != nil {
		s.saves = autosave.New(s, s.saver, s.cfg.AutosaveOptions(), s.logger)
	}
	return s, nil
}

// queue defers a bus event until the lock is released. Caller holds s.mu.
func (s *Session) queue(t Topic, payload any) {
	s.queued = append(s.queued, Event{Topic: t, Payload: payload})
}

func (s *Session) locked(fn func()) {
	s.mu.Lock()
	fn()
	// Contexts resolved during fn may have assigned identities the
	// rendered layout has not seen yet.
	if s.syncLayout() {
		s.tracker.refresh()
	}
	evs := s.queued
	s.queued = nil
	s.mu.Unlock()
	for _, ev := range evs {
		s.bus.Publish(ev.Topic, ev.Payload)
	}
}

func (s *Session) onBatch(b mutation.Batch) {
	s.queue(TopicMutation, b)
	s.queue(TopicDirty, s.engine.Dirty())
}

// apply runs m through the engine. Caller holds s.mu.
func (s *Session) apply(m mutation.Mutation) error {
	if !s.engine.Apply(m) {
		return fmt.Errorf("%w: %s %s", ErrNoop, m.Op(), m.Target())
	}
	s.syncLayout()
	s.tracker.refresh()
	return nil
}

// syncLayout pushes the primary document to a Syncer layout when it
// changed or gained identities since the last push, and reports whether
// it did. Caller holds s.mu.
func (s *Session) syncLayout() bool {
	sy, ok := s.layout.(overlay.Syncer)
	if !ok {
		return false
	}
	rev, ids := s.engine.Revision(), s.doc.Identity().Issued()
	if s.synced && rev == s.syncedRev && ids == s.syncedIDs {
		return false
	}
	markup, err := s.doc.HTML()
	if err == nil {
		err = sy.Sync(context.Background(), markup)
	}
	if err != nil {
		s.logger.Warn("editor: layout sync", "revision", rev, "error", err)
		return false
	}
	s.syncedRev, s.syncedIDs, s.synced = rev, ids, true
	return true
}

// Project returns the project id.
func (s *Session) Project() string { return s.project }

// Bus returns the session's event bus.
func (s *Session) Bus() *Bus { return s.bus }

// Registry returns the element registry.
func (s *Session) Registry() *element.Registry { return s.reg }

// Config returns the effective configuration.
func (s *Session) Config() *Config { return s.cfg }

// HTML serialises the primary document.
func (s *Session) HTML() (out string, err error) {
	s.locked(func() { out, err = s.doc.HTML() })
	return out, err
}

// DocumentHTML serialises the primary or a linked document by name.
func (s *Session) DocumentHTML(name string) (out string, err error) {
	s.locked(func() {
		for _, d := range s.engine.Documents() {
			if d.Name == name {
				out, err = d.HTML()
				return
			}
		}
		err = fmt.Errorf("%w: document %q", ErrNotFound, name)
	})
	return out, err
}

// LinkPreview clones the primary document under name and mirrors every
// later mutation into it.
func (s *Session) LinkPreview(name string) (err error) {
	s.locked(func() {
		var d *dom.Document
		if d, err = s.doc.Clone(name); err != nil {
			return
		}
		err = s.engine.Link(d)
	})
	return err
}

// Find returns the identifiers of nodes matching a CSS selector,
// assigning identifiers where missing.
func (s *Session) Find(selector string) (ids []string, err error) {
	sel, err := element.ParseSelector(selector)
	if err != nil {
		return nil, err
	}
	s.locked(func() {
		dom.Walk(s.doc.Root(), func(n *html.Node) bool {
			if n.Type == html.ElementNode && sel.Matches(n) {
				ids = append(ids, s.doc.EnsureID(n))
			}
			return true
		})
	})
	return ids, nil
}

// --- mutations ---

// Insert inserts markup (one element) into parentID at element index
// index (-1 appends) and selects it. It returns the new node's id.
func (s *Session) Insert(markup, parentID string, index int) (id string, err error) {
	s.locked(func() {
		m := mutation.NewInsert(markup, parentID, index)
		if err = s.apply(m); err == nil {
			id = m.SelectID()
		}
	})
	return id, err
}

// InsertElement inserts a new instance of the named definition, checking
// that the parent accepts it.
func (s *Session) InsertElement(name, parentID string, index int) (id string, err error) {
	s.locked(func() {
		def, ok := s.reg.Lookup(name)
		if !ok {
			err = fmt.Errorf("editor: insert %q: %w", name, element.ErrUnknownDefinition)
			return
		}
		parent := s.doc.Resolve(parentID)
		if parent == nil {
			err = fmt.Errorf("%w: %s", ErrNotFound, parentID)
			return
		}
		if !s.reg.CanInsertInto(parent, def) {
			err = fmt.Errorf("%w: %s into %s", ErrNotAllowed, name, parentID)
			return
		}
		m := mutation.NewInsert(def.Template, parentID, index)
		m.Name = def.Name
		if err = s.apply(m); err == nil {
			id = m.SelectID()
		}
	})
	return id, err
}

// Delete removes a node. Elements flagged with RequiredAttr and the last
// column of a row are protected.
func (s *Session) Delete(id string) (err error) {
	s.locked(func() {
		n := s.doc.Resolve(id)
		if n == nil {
			err = fmt.Errorf("%w: %s", ErrNotFound, id)
			return
		}
		if err = s.deletable(n); err != nil {
			return
		}
		m := mutation.NewDelete(id)
		if match := s.reg.Match(n); match != nil {
			m.Name = match.Definition.Name
		}
		err = s.apply(m)
	})
	return err
}

func (s *Session) deletable(n *html.Node) error {
	if _, ok := dom.Attr(n, RequiredAttr); ok {
		return ErrProtected
	}
	if !s.isColumn(n) || n.Parent == nil {
		return nil
	}
	cols := 0
	for _, c := range dom.ElementChildren(n.Parent) {
		if s.isColumn(c) {
			cols++
		}
	}
	if cols <= 1 {
		return fmt.Errorf("%w: last column", ErrProtected)
	}
	return nil
}

func (s *Session) isColumn(n *html.Node) bool {
	m := s.reg.Match(n)
	return m != nil && m.Node == n && m.Definition.Kind == element.KindColumn
}

// ReplaceContent replaces the inner HTML of id with sanitised content.
func (s *Session) ReplaceContent(id, content string) (err error) {
	s.locked(func() { err = s.apply(mutation.NewReplaceContent(id, content)) })
	return err
}

// SetStyle sets one inline style property; an empty value removes it.
func (s *Session) SetStyle(id, property, value string) (err error) {
	s.locked(func() { err = s.apply(mutation.NewStyle(id, property, value)) })
	return err
}

// Move relocates id into parentID at element index index, checking that
// the parent accepts it.
func (s *Session) Move(id, parentID string, index int) (err error) {
	s.locked(func() {
		n, parent := s.doc.Resolve(id), s.doc.Resolve(parentID)
		if n == nil || parent == nil {
			err = fmt.Errorf("%w: %s or %s", ErrNotFound, id, parentID)
			return
		}
		match := s.reg.Match(n)
		if match == nil || !s.reg.CanInsertInto(parent, match.Definition) {
			err = fmt.Errorf("%w: %s into %s", ErrNotAllowed, id, parentID)
			return
		}
		m := mutation.NewMove(id, parentID, index)
		m.Name = match.Definition.Name
		err = s.apply(m)
	})
	return err
}

// Undo reverts the last history entry.
func (s *Session) Undo() (ok bool) {
	s.locked(func() {
		if ok = s.engine.Undo(); ok {
			s.syncLayout()
			s.tracker.refresh()
		}
	})
	return ok
}

// Redo re-applies the last undone entry.
func (s *Session) Redo() (ok bool) {
	s.locked(func() {
		if ok = s.engine.Redo(); ok {
			s.syncLayout()
			s.tracker.refresh()
		}
	})
	return ok
}

// CanUndo reports whether Undo would do anything.
func (s *Session) CanUndo() (ok bool) {
	s.locked(func() { ok = s.engine.CanUndo() })
	return ok
}

// CanRedo reports whether Redo would do anything.
func (s *Session) CanRedo() (ok bool) {
	s.locked(func() { ok = s.engine.CanRedo() })
	return ok
}

// --- tracker ---

// Hovered returns the hovered context, or nil.
func (s *Session) Hovered() (c *Context) {
	s.locked(func() { c = s.tracker.Hovered() })
	return c
}

// Selected returns the selected context, or nil.
func (s *Session) Selected() (c *Context) {
	s.locked(func() { c = s.tracker.Selected() })
	return c
}

// Resolve returns the primary document's node for id, or nil. The node
// must only be used as an event target.
func (s *Session) Resolve(id string) (n *html.Node) {
	s.locked(func() { n = s.doc.Resolve(id) })
	return n
}

// PointerMove forwards a pointer move to the tracker.
func (s *Session) PointerMove(ev PointerEvent) {
	s.locked(func() { s.tracker.PointerMove(ev) })
}

// Click forwards a click and reports whether to prevent the default action.
func (s *Session) Click(ev PointerEvent) (prevent bool) {
	s.locked(func() { prevent = s.tracker.Click(ev) })
	return prevent
}

// PointerLeave hides the hover overlay.
func (s *Session) PointerLeave() { s.locked(s.tracker.PointerLeave) }

// Scroll repositions the overlays.
func (s *Session) Scroll() { s.locked(s.tracker.Scroll) }

// SelectionChange records whether a text selection exists.
func (s *Session) SelectionChange(hasText bool) {
	s.locked(func() { s.tracker.SelectionChange(hasText) })
}

// HasSelectedText reports whether a text selection exists.
func (s *Session) HasSelectedText() (ok bool) {
	s.locked(func() { ok = s.tracker.HasSelectedText() })
	return ok
}

// FocusInput records toolbar input focus.
func (s *Session) FocusInput(focused bool) {
	s.locked(func() { s.tracker.FocusInput(focused) })
}

// Select selects id.
func (s *Session) Select(id string) (ok bool) {
	s.locked(func() { ok = s.tracker.SelectID(id) })
	return ok
}

// Deselect clears the selection.
func (s *Session) Deselect() { s.locked(s.tracker.Deselect) }

// Overlays returns the current overlay geometry.
func (s *Session) Overlays() (st OverlayState) {
	s.locked(func() {
		st = OverlayState{Hover: s.overlays.Hover.Snapshot(), Selected: s.overlays.Selected.Snapshot()}
	})
	return st
}

// BeginEditing starts an inline text editing session on id. Pointer
// moves and clicks stop changing the contexts until EndEditing.
func (s *Session) BeginEditing(id string) (err error) {
	s.locked(func() {
		if s.tracker.Editing() {
			err = fmt.Errorf("%w: already editing", ErrNotAllowed)
			return
		}
		n := s.doc.Resolve(id)
		if n == nil {
			err = fmt.Errorf("%w: %s", ErrNotFound, id)
			return
		}
		m := s.reg.Match(n)
		if m == nil || !m.Definition.Caps.Has(element.CapEditText) {
			err = fmt.Errorf("%w: %s is not editable text", ErrNotAllowed, id)
			return
		}
		s.tracker.Select(n)
		s.tracker.editing = id
		s.overlays.Hover.Hide()
		s.tracker.emitOverlay()
	})
	return err
}

// EndEditing closes the editing session, committing content as a
// ReplaceContent when it differs from the current content.
func (s *Session) EndEditing(content string) (err error) {
	s.locked(func() {
		id := s.tracker.editing
		if id == "" {
			return
		}
		s.tracker.editing = ""
		n := s.doc.Resolve(id)
		if n == nil {
			err = fmt.Errorf("%w: %s", ErrNotFound, id)
			return
		}
		if cur, _ := dom.InnerHTML(n); cur == content {
			return
		}
		err = s.apply(mutation.NewReplaceContent(id, content))
	})
	return err
}

// CancelEditing closes the editing session without changes.
func (s *Session) CancelEditing() {
	s.locked(func() { s.tracker.editing = "" })
}

// --- drag and resize ---

// StartDrag begins dragging an existing node.
func (s *Session) StartDrag(id string) (err error) {
	s.locked(func() {
		n := s.doc.Resolve(id)
		if n == nil {
			err = fmt.Errorf("%w: %s", ErrNotFound, id)
			return
		}
		m := s.reg.Match(n)
		if m == nil || !m.Definition.Caps.Has(element.CapDrag) {
			err = fmt.Errorf("%w: %s cannot be dragged", ErrNotAllowed, id)
			return
		}
		err = s.drag.Start(interact.Payload{Definition: m.Definition, NodeID: s.doc.EnsureID(m.Node)})
	})
	return err
}

// StartPaletteDrag begins dragging a new instance of the named definition.
func (s *Session) StartPaletteDrag(name string) (err error) {
	s.locked(func() {
		var tpl string
		if tpl, err = s.reg.Template(name); err != nil {
			return
		}
		def, _ := s.reg.Lookup(name)
		err = s.drag.Start(interact.Payload{Definition: def, Markup: tpl})
	})
	return err
}

// DragOver validates the container under the pointer. With no valid
// target the shell shows no drop indicator.
func (s *Session) DragOver(parentID string, p overlay.Point) (t interact.Target, ok bool) {
	s.locked(func() {
		parent := s.doc.Resolve(parentID)
		if parent != nil {
			// Drop indices are measured on the children.
			for _, c := range dom.ElementChildren(parent) {
				s.doc.EnsureID(c)
			}
			s.syncLayout()
		}
		t, ok = s.drag.Over(s.doc, parent, p, s.layout)
	})
	return t, ok
}

// Drop completes the drag. Without a valid target the drag is cancelled
// and ErrNoop returned.
func (s *Session) Drop() (err error) {
	s.locked(func() {
		m := s.drag.Drop(s.doc)
		if m == nil {
			err = fmt.Errorf("%w: drop cancelled", ErrNoop)
			return
		}
		err = s.apply(m)
	})
	return err
}

// CancelDrag abandons the drag.
func (s *Session) CancelDrag() { s.locked(s.drag.Cancel) }

// DragState returns the drag machine state.
func (s *Session) DragState() (st interact.DragState) {
	s.locked(func() { st = s.drag.State() })
	return st
}

// BeginResize starts resizing the selection when p is on its resize
// handle and the element is resizable. The selection overlay is hidden
// until the resize ends.
func (s *Session) BeginResize(p overlay.Point) (ok bool) {
	s.locked(func() {
		sel := s.tracker.Selected()
		if sel == nil || !sel.Definition.Caps.Has(element.CapResize) || !s.overlays.HandleHit(p) {
			return
		}
		start, found := s.layout.Rect(sel.ID)
		if !found {
			return
		}
		lock := sel.Definition.Caps.Has(element.CapLockAspect)
		keepHeight := sel.Definition.Kind == element.KindColumn
		if ok = s.resize.Begin(sel.ID, start, p, lock, keepHeight); ok {
			s.overlays.Selected.Hide()
			s.tracker.emitOverlay()
		}
	})
	return ok
}

// ResizeMove applies the intermediate size for p.
func (s *Session) ResizeMove(p overlay.Point) (err error) {
	s.locked(func() {
		m := s.resize.Move(p)
		if m == nil {
			err = fmt.Errorf("%w: no resize in progress", ErrNoop)
			return
		}
		err = s.apply(m)
	})
	return err
}

// ResizeEnd applies the final size and shows the selection overlay again.
func (s *Session) ResizeEnd(p overlay.Point) (err error) {
	s.locked(func() {
		m := s.resize.End(p)
		if m == nil {
			err = fmt.Errorf("%w: no resize in progress", ErrNoop)
			return
		}
		err = s.apply(m)
		s.engine.EndSession()
		s.showSelection()
	})
	return err
}

// CancelResize stops the resize, keeping the sizes already applied.
func (s *Session) CancelResize() {
	s.locked(func() {
		s.resize.Cancel()
		s.engine.EndSession()
		s.showSelection()
	})
}

func (s *Session) showSelection() {
	if s.tracker.Selected() != nil {
		s.overlays.Selected.Show()
		s.tracker.emitOverlay()
	}
}

// --- persistence ---

// Dirty reports unsaved changes.
func (s *Session) Dirty() (dirty bool) {
	s.locked(func() { dirty = s.engine.Dirty() })
	return dirty
}

// Revision returns the engine revision.
func (s *Session) Revision() (rev uint64) {
	s.locked(func() { rev = s.engine.Revision() })
	return rev
}

// Snapshot serialises the primary document for saving.
func (s *Session) Snapshot() (snap autosave.Snapshot, err error) {
	s.locked(func() {
		snap.Revision = s.engine.Revision()
		snap.HTML, err = s.doc.HTML()
	})
	return snap, err
}

// MarkSaved records that rev has been persisted.
func (s *Session) MarkSaved(rev uint64) {
	s.locked(func() {
		was := s.engine.Dirty()
		s.engine.MarkSaved(rev)
		if now := s.engine.Dirty(); now != was {
			s.queue(TopicDirty, now)
		}
	})
}

// Save saves now and returns the outcome.
func (s *Session) Save(ctx context.Context) error {
	if s.saves == nil {
		return ErrNoSaver
	}
	return s.saves.Save(ctx)
}

// Autosave returns the save coordinator, or nil without a saver.
func (s *Session) Autosave() *autosave.Coordinator { return s.saves }

// BeforeUnload reports whether the shell should prompt about unsaved
// changes, attempting a last save first.
func (s *Session) BeforeUnload(ctx context.Context) bool {
	if s.saves == nil {
		return s.Dirty()
	}
	return s.saves.BeforeUnload(ctx)
}

var _ autosave.Source = (*Session)(nil)
