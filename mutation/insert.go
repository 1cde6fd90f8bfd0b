package mutation

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/pagewright/dom"
)

// Insert adds a new element under a parent. Index counts element children
// of the parent; a negative or out-of-range index appends.
type Insert struct {
	meta
	Markup string
	Parent string
	Index  int
	Name   string // display name, e.g. the element definition
}

// NewInsert creates an Insert of markup (a single element) into parent.
func NewInsert(markup, parent string, index int) *Insert {
	return &Insert{Markup: markup, Parent: parent, Index: index}
}

// CanInsertInto is the structural rule every insertion obeys: the parent
// may not be the <html> element nor sit inside an editable region.
// Definition-level containment is checked by callers.
func CanInsertInto(parent *html.Node) bool {
	if parent == nil || parent.Type != html.ElementNode {
		return false
	}
	if parent.DataAtom == atom.Html {
		return false
	}
	return !dom.InEditable(parent)
}

func (m *Insert) Op() Op { return OpInsert }

func (m *Insert) DisplayName() string {
	if m.Name != "" {
		return "Insert " + m.Name
	}
	return "Insert"
}

func (m *Insert) Refs() []string {
	if m.target == "" {
		return []string{m.Parent}
	}
	return []string{m.target, m.Parent}
}

// Changes reports the inserted markup as the new value.
func (m *Insert) Changes() Changes { return Changes{New: m.Markup} }

// Execute parses the markup in the parent's context and inserts it. On the
// first successful run the new subtree receives identities and Markup is
// rewritten to carry them, so every other document gets the same ids.
func (m *Insert) Execute(doc *dom.Document) bool {
	parent := doc.Resolve(m.Parent)
	if !CanInsertInto(parent) {
		return false
	}
	if m.target != "" && doc.Resolve(m.target) != nil {
		return false
	}
	n, err := dom.ParseElement(parent, m.Markup)
	if err != nil {
		return false
	}
	if m.target == "" {
		ident := doc.Identity()
		ident.Reidentify(doc, n)
		dom.Walk(n, func(c *html.Node) bool {
			ident.EnsureID(c)
			return true
		})
		m.target = ident.ID(n)
		if out, err := dom.OuterHTML(n); err == nil {
			m.Markup = out
		}
		m.noteFirst(doc)
	}
	dom.InsertAtElement(parent, n, m.Index)
	return true
}

// Undo detaches the inserted node if it is still attached.
func (m *Insert) Undo(doc *dom.Document) bool {
	n := doc.Resolve(m.target)
	if n == nil || n.Parent == nil {
		return false
	}
	dom.Detach(n)
	return true
}

// SelectID is the node the editor selects after the insert.
func (m *Insert) SelectID() string { return m.target }
