// Package mutation is the editor's change engine. Every edit to a page is a
// Mutation object that can be executed and undone against any number of
// documents. Mutations address nodes by identity attribute only, so they
// survive re-parses and run unchanged against linked preview copies.
package mutation

import (
	"golang.org/x/net/html"

	"github.com/hazyhaar/pagewright/dom"
)

// Op identifies the mutation type.
type Op string

const (
	OpInsert  Op = "insert"
	OpDelete  Op = "delete"
	OpReplace Op = "replace"
	OpResize  Op = "resize"
	OpStyle   Op = "style"
	OpMove    Op = "move"
)

// SessionFlag groups rapid-fire mutations (resize ticks, style drags) into a
// single undo step.
type SessionFlag uint8

const (
	// Standalone mutations form their own history entry.
	Standalone SessionFlag = iota
	// PartOfSession opens or extends a session.
	PartOfSession
	// LastInSession extends and closes a session.
	LastInSession
)

func (f SessionFlag) String() string {
	switch f {
	case PartOfSession:
		return "part"
	case LastInSession:
		return "last"
	default:
		return "standalone"
	}
}

// Changes is the old/new payload of a mutation, in serialised form.
type Changes struct {
	Old string `json:"old,omitempty"`
	New string `json:"new,omitempty"`
}

// Mutation is one reversible, identity-addressed change. Execute and Undo
// return false when the change does not apply to doc (unknown target,
// containment refused); that is a per-document no-op, not an error.
type Mutation interface {
	Execute(doc *dom.Document) bool
	Undo(doc *dom.Document) bool

	Op() Op
	DisplayName() string
	// Target is the identity of the node the mutation is about.
	Target() string
	// Refs lists every identity the mutation resolves, Target included.
	Refs() []string
	Session() SessionFlag
	Changes() Changes
}

// meta carries the fields shared by all mutation types.
type meta struct {
	target  string
	session SessionFlag
	// first is the name of the first document a state was captured on;
	// Changes reports that document's view.
	first string
}

func (m *meta) Target() string       { return m.target }
func (m *meta) Session() SessionFlag { return m.session }

// SetSession marks the mutation as part of an interactive session.
func (m *meta) SetSession(f SessionFlag) { m.session = f }

func (m *meta) noteFirst(doc *dom.Document) {
	if m.first == "" {
		m.first = doc.Name
	}
}

// anchor locates the parent a node was removed from. An identified parent
// is addressed by id; otherwise by tree path, so recording a position never
// writes an identity the document did not already carry.
type anchor struct {
	id   string
	path dom.Path
}

func anchorOf(doc *dom.Document, n *html.Node) (anchor, bool) {
	if id := doc.Identity().ID(n); id != "" {
		return anchor{id: id}, true
	}
	path, err := dom.PathTo(doc.Root(), n)
	if err != nil {
		return anchor{}, false
	}
	return anchor{path: path}, true
}

func (a anchor) resolve(doc *dom.Document) *html.Node {
	if a.id != "" {
		return doc.Resolve(a.id)
	}
	n := dom.NodeAt(doc.Root(), a.path)
	if n == nil || n.Type != html.ElementNode {
		return nil
	}
	return n
}

// String is the id, or the path as "/i/j/k" for unidentified parents.
func (a anchor) String() string {
	if a.id != "" {
		return a.id
	}
	return a.path.String()
}
