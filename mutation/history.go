package mutation

// DefaultHistoryLimit bounds the undo stack when no limit is configured.
const DefaultHistoryLimit = 100

// Entry is one undo step. A session entry spans several mutations against
// the same target: undoing it inverts the first (restoring the state from
// before the session), redoing it re-executes the last.
type Entry struct {
	first Mutation
	last  Mutation
	count int
	open  bool
}

// First returns the mutation that opened the entry.
func (e *Entry) First() Mutation { return e.first }

// Last returns the most recent mutation of the entry.
func (e *Entry) Last() Mutation { return e.last }

// Len is the number of mutations coalesced into the entry.
func (e *Entry) Len() int { return e.count }

// DisplayName is the history label.
func (e *Entry) DisplayName() string { return e.first.DisplayName() }

// Changes keeps the first old value and the last new value.
func (e *Entry) Changes() Changes {
	return Changes{Old: e.first.Changes().Old, New: e.last.Changes().New}
}

// joins reports whether m extends this open session.
func (e *Entry) joins(m Mutation) bool {
	return e.open &&
		m.Session() != Standalone &&
		m.Op() == e.last.Op() &&
		m.Target() == e.last.Target()
}

// History is a bounded linear undo stack plus a redo stack. It is not safe
// for concurrent use.
type History struct {
	undo  []*Entry
	redo  []*Entry
	limit int
}

// NewHistory creates a History keeping at most limit undo entries.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit}
}

// Push records an executed mutation. A new entry clears the redo stack;
// a session mutation matching the open entry is folded into it.
func (h *History) Push(m Mutation) {
	if n := len(h.undo); n > 0 && h.undo[n-1].joins(m) {
		top := h.undo[n-1]
		top.last = m
		top.count++
		top.open = m.Session() == PartOfSession
		return
	}
	if n := len(h.undo); n > 0 {
		h.undo[n-1].open = false
	}
	h.redo = nil
	h.undo = append(h.undo, &Entry{first: m, last: m, count: 1, open: m.Session() == PartOfSession})
	if over := len(h.undo) - h.limit; over > 0 {
		clear(h.undo[:over])
		h.undo = h.undo[over:]
	}
}

// CloseSession ends any open session so the next mutation starts a new
// entry.
func (h *History) CloseSession() {
	if n := len(h.undo); n > 0 {
		h.undo[n-1].open = false
	}
}

// PopUndo moves the top undo entry to the redo stack and returns it.
func (h *History) PopUndo() *Entry {
	n := len(h.undo)
	if n == 0 {
		return nil
	}
	e := h.undo[n-1]
	e.open = false
	h.undo = h.undo[:n-1]
	h.redo = append(h.redo, e)
	return e
}

// PopRedo moves the top redo entry back to the undo stack and returns it.
func (h *History) PopRedo() *Entry {
	n := len(h.redo)
	if n == 0 {
		return nil
	}
	e := h.redo[n-1]
	h.redo = h.redo[:n-1]
	h.undo = append(h.undo, e)
	return e
}

func (h *History) CanUndo() bool { return len(h.undo) > 0 }
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// UndoLen and RedoLen report stack depths.
func (h *History) UndoLen() int { return len(h.undo) }
func (h *History) RedoLen() int { return len(h.redo) }

// PeekUndo returns the entry Undo would revert, or nil.
func (h *History) PeekUndo() *Entry {
	if len(h.undo) == 0 {
		return nil
	}
	return h.undo[len(h.undo)-1]
}

// PeekRedo returns the entry Redo would re-apply, or nil.
func (h *History) PeekRedo() *Entry {
	if len(h.redo) == 0 {
		return nil
	}
	return h.redo[len(h.redo)-1]
}

// Clear empties both stacks.
func (h *History) Clear() {
	h.undo = nil
	h.redo = nil
}
