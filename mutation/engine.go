package mutation

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/pagewright/dom"
	"github.com/hazyhaar/pagewright/idgen"
)

// Listener receives a batch after every state-changing engine call.
type Listener func(Batch)

// Engine applies mutations to a primary document and its linked copies and
// keeps the undo history and dirty state. It is not safe for concurrent
// use; editor.Session serialises access.
type Engine struct {
	docs     []*dom.Document
	history  *History
	rev      uint64
	savedRev uint64
	seq      uint64

	projectID string
	listeners []Listener
	onSelect  func(id string)
	newID     idgen.Generator
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithHistoryLimit bounds the undo stack.
func WithHistoryLimit(n int) Option {
	return func(e *Engine) { e.history = NewHistory(n) }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithListener registers a batch listener.
func WithListener(fn Listener) Option {
	return func(e *Engine) { e.listeners = append(e.listeners, fn) }
}

// WithProject stamps batches with a project id.
func WithProject(id string) Option {
	return func(e *Engine) { e.projectID = id }
}

// WithSelectHook is called with the new node's id after an insert succeeds
// on the primary document.
func WithSelectHook(fn func(id string)) Option {
	return func(e *Engine) { e.onSelect = fn }
}

// WithClock overrides the batch timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine whose primary document is primary.
func NewEngine(primary *dom.Document, opts ...Option) *Engine {
	e := &Engine{
		docs:    []*dom.Document{primary},
		history: NewHistory(DefaultHistoryLimit),
		newID:   idgen.UUIDv7(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Primary returns the editing document.
func (e *Engine) Primary() *dom.Document { return e.docs[0] }

// Documents returns the primary document followed by linked ones.
func (e *Engine) Documents() []*dom.Document { return e.docs }

// History exposes the undo history.
func (e *Engine) History() *History { return e.history }

// Link adds a document that mirrors every future mutation. Document names
// must be unique and documents must share the primary's Identity.
func (e *Engine) Link(doc *dom.Document) error {
	if doc.Identity() != e.Primary().Identity() {
		return fmt.Errorf("mutation: link %s: document has a different identity service", doc.Name)
	}
	for _, d := range e.docs {
		if d.Name == doc.Name {
			return fmt.Errorf("mutation: link %s: duplicate document name", doc.Name)
		}
	}
	e.docs = append(e.docs, doc)
	return nil
}

// Unlink removes a linked document. The primary cannot be unlinked.
func (e *Engine) Unlink(name string) bool {
	for i, d := range e.docs[1:] {
		if d.Name == name {
			e.docs = append(e.docs[:i+1], e.docs[i+2:]...)
			return true
		}
	}
	return false
}

// Subscribe registers a listener after construction.
func (e *Engine) Subscribe(fn Listener) { e.listeners = append(e.listeners, fn) }

// Apply executes m against every document and records it in the history.
// It returns false, and records nothing, when m applied to no document.
func (e *Engine) Apply(m Mutation) bool {
	e.syncRefs(m)
	var applied []string
	for _, doc := range e.docs {
		if m.Execute(doc) {
			applied = append(applied, doc.Name)
			continue
		}
		e.logger.Debug("mutation: no-op", "op", m.Op(), "target", m.Target(), "doc", doc.Name)
	}
	if len(applied) == 0 {
		return false
	}
	e.history.Push(m)
	e.rev++
	if s, ok := m.(interface{ SelectID() string }); ok && applied[0] == e.Primary().Name && e.onSelect != nil {
		e.onSelect(s.SelectID())
	}
	e.emit(ActionApply, recordOf(m, m.Changes(), applied))
	return true
}

// Undo reverts the most recent history entry. The entry moves to the redo
// stack even when it no longer applies anywhere.
func (e *Engine) Undo() bool {
	entry := e.history.PopUndo()
	if entry == nil {
		return false
	}
	var applied []string
	for _, doc := range e.docs {
		if entry.first.Undo(doc) {
			applied = append(applied, doc.Name)
		} else {
			e.logger.Debug("mutation: undo no-op", "op", entry.first.Op(), "target", entry.first.Target(), "doc", doc.Name)
		}
	}
	if len(applied) == 0 {
		return false
	}
	e.rev++
	ch := entry.Changes()
	e.emit(ActionUndo, recordOf(entry.first, Changes{Old: ch.New, New: ch.Old}, applied))
	return true
}

// Redo re-applies the most recently undone entry.
func (e *Engine) Redo() bool {
	entry := e.history.PopRedo()
	if entry == nil {
		return false
	}
	e.syncRefs(entry.last)
	var applied []string
	for _, doc := range e.docs {
		if entry.last.Execute(doc) {
			applied = append(applied, doc.Name)
		} else {
			e.logger.Debug("mutation: redo no-op", "op", entry.last.Op(), "target", entry.last.Target(), "doc", doc.Name)
		}
	}
	if len(applied) == 0 {
		return false
	}
	e.rev++
	e.emit(ActionRedo, recordOf(entry.last, entry.Changes(), applied))
	return true
}

func (e *Engine) CanUndo() bool { return e.history.CanUndo() }
func (e *Engine) CanRedo() bool { return e.history.CanRedo() }

// EndSession closes any open mutation session (e.g. a cancelled resize).
func (e *Engine) EndSession() { e.history.CloseSession() }

// Revision increases with every successful Apply, Undo and Redo.
func (e *Engine) Revision() uint64 { return e.rev }

// Dirty reports unsaved changes.
func (e *Engine) Dirty() bool { return e.rev != e.savedRev }

// MarkSaved records that the document as of rev has been persisted.
// Changes made after rev keep the engine dirty.
func (e *Engine) MarkSaved(rev uint64) {
	if rev > e.savedRev && rev <= e.rev {
		e.savedRev = rev
	}
}

// syncRefs makes the ids m addresses resolvable in linked documents that
// have not seen them yet, by tree position in the primary.
func (e *Engine) syncRefs(m Mutation) {
	primary := e.Primary()
	for _, id := range m.Refs() {
		if id == "" {
			continue
		}
		for _, doc := range e.docs[1:] {
			doc.SyncID(primary, id)
		}
	}
}

func (e *Engine) emit(action Action, rec Record) {
	if len(e.listeners) == 0 {
		return
	}
	e.seq++
	b := Batch{
		ID:        e.newID(),
		ProjectID: e.projectID,
		Action:    action,
		Seq:       e.seq,
		Revision:  e.rev,
		Records:   []Record{rec},
		Timestamp: e.now().UnixMilli(),
	}
	for _, fn := range e.listeners {
		fn(b)
	}
}
