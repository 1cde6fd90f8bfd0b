package mutation

import (
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/hazyhaar/pagewright/dom"
)

// contentPolicy sanitises markup entering the page through ReplaceContent.
// Identity, layout class and inline style attributes must survive.
var contentPolicy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowDataAttributes()
	p.AllowAttrs("class", "style", "contenteditable").Globally()
	p.AllowElements("section", "header", "footer", "nav", "main", "article", "aside",
		"figure", "figcaption", "picture", "button", "label", "video", "source")
	p.AllowAttrs("type").OnElements("button")
	p.AllowAttrs("controls", "poster", "width", "height").OnElements("video")
	p.AllowAttrs("src", "type").OnElements("source")
	return p
}()

// Sanitize applies the content policy to markup.
func Sanitize(markup string) string { return contentPolicy.Sanitize(markup) }

// ReplaceContent swaps a node's inner content wholesale.
type ReplaceContent struct {
	meta
	Content string
	stamped bool
	old     map[string]string
}

// NewReplaceContent creates a ReplaceContent; content is sanitised.
func NewReplaceContent(target, content string) *ReplaceContent {
	return &ReplaceContent{
		meta:    meta{target: target},
		Content: Sanitize(content),
		old:     make(map[string]string),
	}
}

func (m *ReplaceContent) Op() Op              { return OpReplace }
func (m *ReplaceContent) DisplayName() string { return "Edit content" }
func (m *ReplaceContent) Refs() []string      { return []string{m.target} }

func (m *ReplaceContent) Changes() Changes {
	return Changes{Old: m.old[m.first], New: m.Content}
}

// Execute replaces the content. The original content of each document is
// captured on the first execution against it and never overwritten, so
// redo after undo keeps the true original. Targets nested inside another
// node's editable region are refused.
func (m *ReplaceContent) Execute(doc *dom.Document) bool {
	n := doc.Resolve(m.target)
	if n == nil || dom.InEditable(n.Parent) {
		return false
	}
	if _, ok := m.old[doc.Name]; !ok {
		inner, err := dom.InnerHTML(n)
		if err != nil {
			return false
		}
		m.old[doc.Name] = inner
		m.noteFirst(doc)
	}
	if !m.stamped {
		return m.stamp(doc, n)
	}
	return dom.SetInnerHTML(n, m.Content) == nil
}

// stamp installs the content for the first time: new elements receive
// identities (clashing ones are reissued) and Content is rewritten to
// carry them, so every other document gets the same ids.
func (m *ReplaceContent) stamp(doc *dom.Document, n *html.Node) bool {
	nodes, err := dom.ParseFragment(n, m.Content)
	if err != nil {
		return false
	}
	for c := n.FirstChild; c != nil; c = n.FirstChild {
		n.RemoveChild(c)
	}
	ident := doc.Identity()
	for _, c := range nodes {
		ident.Reidentify(doc, c)
		dom.Walk(c, func(d *html.Node) bool {
			ident.EnsureID(d)
			return true
		})
		n.AppendChild(c)
	}
	if inner, err := dom.InnerHTML(n); err == nil {
		m.Content = inner
	}
	m.stamped = true
	return true
}

// Undo restores the captured original content.
func (m *ReplaceContent) Undo(doc *dom.Document) bool {
	old, ok := m.old[doc.Name]
	if !ok {
		return false
	}
	n := doc.Resolve(m.target)
	if n == nil {
		return false
	}
	return dom.SetInnerHTML(n, old) == nil
}
