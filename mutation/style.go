package mutation

import (
	"golang.org/x/net/html"

	"github.com/hazyhaar/pagewright/dom"
)

// styleState captures the raw style attribute of a node once per document
// so undo restores it byte for byte, including its absence.
type styleState map[string]dom.AttrState

func (s styleState) capture(m *meta, doc *dom.Document, n *html.Node) {
	if _, ok := s[doc.Name]; ok {
		return
	}
	s[doc.Name] = dom.CaptureAttr(n, "style")
	m.noteFirst(doc)
}

func (s styleState) restore(doc *dom.Document, target string) bool {
	st, ok := s[doc.Name]
	if !ok {
		return false
	}
	n := doc.Resolve(target)
	if n == nil {
		return false
	}
	dom.RestoreAttr(n, "style", st)
	return true
}

// Style sets a single inline style property. An empty Value removes it.
type Style struct {
	meta
	Property string
	Value    string
	old      styleState
}

// NewStyle creates a Style mutation.
func NewStyle(target, property, value string) *Style {
	return &Style{meta: meta{target: target}, Property: property, Value: value, old: make(styleState)}
}

func (m *Style) Op() Op              { return OpStyle }
func (m *Style) DisplayName() string { return "Change " + m.Property }
func (m *Style) Refs() []string      { return []string{m.target} }

func (m *Style) Changes() Changes {
	return Changes{Old: m.old[m.first].Value, New: m.Property + ": " + m.Value}
}

func (m *Style) Execute(doc *dom.Document) bool {
	n := doc.Resolve(m.target)
	if n == nil {
		return false
	}
	m.old.capture(&m.meta, doc, n)
	dom.SetStyle(n, m.Property, m.Value)
	return true
}

func (m *Style) Undo(doc *dom.Document) bool { return m.old.restore(doc, m.target) }

// Resize writes pixel width and height. Interactive resizes emit one Resize
// per pointer move, flagged PartOfSession, and a final LastInSession one.
type Resize struct {
	meta
	Width  float64
	Height float64
	// KeepHeight leaves height untouched (width-only elements such as
	// columns).
	KeepHeight bool
	old        styleState
}

// NewResize creates a Resize of target to w x h pixels.
func NewResize(target string, w, h float64, flag SessionFlag) *Resize {
	return &Resize{meta: meta{target: target, session: flag}, Width: w, Height: h, old: make(styleState)}
}

func (m *Resize) Op() Op              { return OpResize }
func (m *Resize) DisplayName() string { return "Resize" }
func (m *Resize) Refs() []string      { return []string{m.target} }

func (m *Resize) Changes() Changes {
	nw := "width: " + dom.Px(m.Width)
	if !m.KeepHeight {
		nw += "; height: " + dom.Px(m.Height)
	}
	return Changes{Old: m.old[m.first].Value, New: nw}
}

func (m *Resize) Execute(doc *dom.Document) bool {
	n := doc.Resolve(m.target)
	if n == nil {
		return false
	}
	m.old.capture(&m.meta, doc, n)
	dom.SetStyle(n, "width", dom.Px(m.Width))
	if !m.KeepHeight {
		dom.SetStyle(n, "height", dom.Px(m.Height))
	}
	return true
}

func (m *Resize) Undo(doc *dom.Document) bool { return m.old.restore(doc, m.target) }
