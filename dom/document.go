// Package dom is pagewright's document model: golang.org/x/net/html trees
// carrying a node-identity attribute, so that mutations can find "the same"
// node again in a re-parsed or parallel copy of the document.
package dom

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is one live copy of a page: the edit surface, or a linked
// preview/export copy. Copies of the same page share one Identity.
type Document struct {
	Name  string
	root  *html.Node
	ident *Identity
}

// Parse builds a Document from serialised HTML. A nil ident gets a fresh
// Identity with the default attribute and prefix.
func Parse(name, src string, ident *Identity) (*Document, error) {
	if ident == nil {
		ident = NewIdentity(DefaultAttr, DefaultPrefix)
	}
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("dom: parse %s: %w", name, err)
	}
	ident.adopt(root)
	return &Document{Name: name, root: root, ident: ident}, nil
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

// Identity returns the identity service shared by this document's copies.
func (d *Document) Identity() *Identity { return d.ident }

// HTMLElement returns the <html> element.
func (d *Document) HTMLElement() *html.Node {
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Html {
			return c
		}
	}
	return nil
}

// Body returns the <body> element.
func (d *Document) Body() *html.Node {
	h := d.HTMLElement()
	if h == nil {
		return nil
	}
	for c := h.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Body {
			return c
		}
	}
	return nil
}

// HTML serialises the whole document.
func (d *Document) HTML() (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return "", fmt.Errorf("dom: render %s: %w", d.Name, err)
	}
	return buf.String(), nil
}

// Clone produces an independent copy sharing the same Identity, by
// serialising and re-parsing. Identity attributes survive the round trip.
func (d *Document) Clone(name string) (*Document, error) {
	src, err := d.HTML()
	if err != nil {
		return nil, err
	}
	return Parse(name, src, d.ident)
}

// EnsureID returns n's identifier, assigning one if needed.
func (d *Document) EnsureID(n *html.Node) string { return d.ident.EnsureID(n) }

// Resolve finds the element carrying id in this document, or nil.
func (d *Document) Resolve(id string) *html.Node { return d.ident.Resolve(d.root, id) }

// SyncID makes id resolvable in d by copying it from src: the node at the
// same tree path in d receives the attribute if it has the same tag and no
// identity of its own. Returns the resolved node in d, or nil.
func (d *Document) SyncID(src *Document, id string) *html.Node {
	if n := d.Resolve(id); n != nil {
		return n
	}
	from := src.Resolve(id)
	if from == nil {
		return nil
	}
	path, err := PathTo(src.root, from)
	if err != nil {
		return nil
	}
	to := NodeAt(d.root, path)
	if to == nil || to.Type != html.ElementNode || to.Data != from.Data || d.ident.ID(to) != "" {
		return nil
	}
	SetAttr(to, d.ident.Attr(), id)
	return to
}
