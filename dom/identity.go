package dom

import (
	"golang.org/x/net/html"

	"github.com/hazyhaar/pagewright/idgen"
)

const (
	// DefaultAttr is the attribute carrying node identities.
	DefaultAttr = "data-pw-id"
	// DefaultPrefix prefixes generated node identities.
	DefaultPrefix = "n"
)

// Identity assigns and resolves stable node identifiers. Identifiers come
// from a monotonic sequence and are never reissued, so a deleted node's id
// cannot be confused with a later node during undo.
type Identity struct {
	attr string
	seq  *idgen.Sequence
}

// NewIdentity creates an identity service writing attr with ids "<prefix>N".
func NewIdentity(attr, prefix string) *Identity {
	if attr == "" {
		attr = DefaultAttr
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Identity{attr: attr, seq: idgen.NewSequence(prefix)}
}

// Attr returns the identity attribute name.
func (i *Identity) Attr() string { return i.attr }

// ID returns n's identifier or "" when it has none.
func (i *Identity) ID(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	v, _ := Attr(n, i.attr)
	return v
}

// EnsureID returns n's identifier, assigning a fresh one on first use.
// Only element nodes carry identities; other nodes yield "".
func (i *Identity) EnsureID(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	if v, ok := Attr(n, i.attr); ok && v != "" {
		return v
	}
	id := i.seq.Next()
	SetAttr(n, i.attr, id)
	return id
}

// Issued increases whenever an identifier is assigned or adopted, so a
// caller can tell whether nodes gained identities since it last looked.
func (i *Identity) Issued() uint64 { return i.seq.Last() }

// Resolve finds the element carrying id under root, or nil.
func (i *Identity) Resolve(root *html.Node, id string) *html.Node {
	if root == nil || id == "" {
		return nil
	}
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			if v, ok := Attr(n, i.attr); ok && v == id {
				found = n
				return false
			}
		}
		return true
	})
	return found
}

// adopt registers identities already present under root and strips
// duplicates so id → node stays a bijection.
func (i *Identity) adopt(root *html.Node) {
	seen := make(map[string]bool)
	walk(root, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		v, ok := Attr(n, i.attr)
		if !ok {
			return true
		}
		if v == "" || seen[v] {
			RemoveAttr(n, i.attr)
			return true
		}
		seen[v] = true
		i.seq.Observe(v)
		return true
	})
}

// Reidentify gives every element under n that carries an identity already
// resolvable in doc a fresh one. Used before inserting pasted markup.
func (i *Identity) Reidentify(doc *Document, n *html.Node) {
	walk(n, func(c *html.Node) bool {
		if c.Type != html.ElementNode {
			return true
		}
		if v, ok := Attr(c, i.attr); ok {
			if v == "" || doc.Resolve(v) != nil {
				RemoveAttr(c, i.attr)
				i.EnsureID(c)
			} else {
				i.seq.Observe(v)
			}
		}
		return true
	})
}

// walk visits n and its descendants depth-first until fn returns false.
func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

// Walk visits n and its descendants depth-first until fn returns false.
func Walk(n *html.Node, fn func(*html.Node) bool) { walk(n, fn) }
