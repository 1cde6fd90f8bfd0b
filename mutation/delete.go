package mutation

import "github.com/hazyhaar/pagewright/dom"

// Delete removes a node. Whether a node may be deleted (required layout
// rows and columns) is decided by the caller.
type Delete struct {
	meta
	Name  string
	state map[string]deleteState
}

type deleteState struct {
	parent anchor
	index  int // raw child index, text nodes included
	markup string
}

// NewDelete creates a Delete of target.
func NewDelete(target string) *Delete {
	return &Delete{meta: meta{target: target}, state: make(map[string]deleteState)}
}

func (m *Delete) Op() Op { return OpDelete }

func (m *Delete) DisplayName() string {
	if m.Name != "" {
		return "Delete " + m.Name
	}
	return "Delete"
}

func (m *Delete) Refs() []string { return []string{m.target} }

func (m *Delete) Changes() Changes { return Changes{Old: m.state[m.first].markup} }

// Execute records the node's parent, position and markup for doc, then
// detaches it.
func (m *Delete) Execute(doc *dom.Document) bool {
	n := doc.Resolve(m.target)
	if n == nil || n.Parent == nil {
		return false
	}
	markup, err := dom.OuterHTML(n)
	if err != nil {
		return false
	}
	parent, ok := anchorOf(doc, n.Parent)
	if !ok {
		return false
	}
	_, idx := dom.Detach(n)
	m.state[doc.Name] = deleteState{parent: parent, index: idx, markup: markup}
	m.noteFirst(doc)
	return true
}

// Undo reinserts the node at the same parent and child index.
func (m *Delete) Undo(doc *dom.Document) bool {
	st, ok := m.state[doc.Name]
	if !ok || doc.Resolve(m.target) != nil {
		return false
	}
	parent := st.parent.resolve(doc)
	if parent == nil {
		return false
	}
	n, err := dom.ParseElement(parent, st.markup)
	if err != nil {
		return false
	}
	dom.InsertAt(parent, n, st.index)
	return true
}
