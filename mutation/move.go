package mutation

import "github.com/hazyhaar/pagewright/dom"

// Move relocates a node under a new parent, as produced by drag and drop.
// Index counts the new parent's element children, the moved node excluded.
type Move struct {
	meta
	Parent string
	Index  int
	Name   string
	from   map[string]moveState
}

type moveState struct {
	parent anchor
	index  int // raw child index
}

// NewMove creates a Move of target into parent at index.
func NewMove(target, parent string, index int) *Move {
	return &Move{meta: meta{target: target}, Parent: parent, Index: index, from: make(map[string]moveState)}
}

func (m *Move) Op() Op { return OpMove }

func (m *Move) DisplayName() string {
	if m.Name != "" {
		return "Move " + m.Name
	}
	return "Move"
}

func (m *Move) Refs() []string { return []string{m.target, m.Parent} }

func (m *Move) Changes() Changes {
	st := m.from[m.first]
	return Changes{Old: st.parent.String(), New: m.Parent}
}

// Execute moves the node. Moving a node into itself or one of its
// descendants, or into a parent refused by CanInsertInto, is a no-op.
func (m *Move) Execute(doc *dom.Document) bool {
	n := doc.Resolve(m.target)
	parent := doc.Resolve(m.Parent)
	if n == nil || n.Parent == nil || !CanInsertInto(parent) || dom.Contains(n, parent) {
		return false
	}
	from, ok := anchorOf(doc, n.Parent)
	if !ok {
		return false
	}
	m.from[doc.Name] = moveState{parent: from, index: dom.ChildIndex(n)}
	m.noteFirst(doc)
	dom.InsertAtElement(parent, n, m.Index)
	return true
}

// Undo puts the node back at its recorded parent and raw index.
func (m *Move) Undo(doc *dom.Document) bool {
	st, ok := m.from[doc.Name]
	if !ok {
		return false
	}
	n := doc.Resolve(m.target)
	if n == nil {
		return false
	}
	// The recorded path predates the move, so it is resolved with n detached.
	cur, idx := dom.Detach(n)
	parent := st.parent.resolve(doc)
	if parent == nil {
		dom.InsertAt(cur, n, idx)
		return false
	}
	dom.InsertAt(parent, n, st.index)
	return true
}
