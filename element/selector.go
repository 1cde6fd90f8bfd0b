package element

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/pagewright/dom"
)

// Selector is a parsed CSS selector list. Supported forms:
//   - tag: "section", "div"
//   - .class, chained: ".row", "div.row.g-0"
//   - #id: "#hero"
//   - [attr] / [attr=val]: "div[data-pw-embed]", "a[role=button]"
//   - descendant combinator: ".card img"
//   - comma-separated alternatives: "h1, h2, h3"
type Selector struct {
	src  string
	alts [][]simpleSelector // each alternative, outermost compound first
}

type simpleSelector struct {
	tag     string
	id      string
	classes []string
	attrKey string
	attrVal string
	hasVal  bool
}

// ParseSelector parses src. An empty selector or an empty alternative is an
// error.
func ParseSelector(src string) (Selector, error) {
	sel := Selector{src: src}
	for _, alt := range strings.Split(src, ",") {
		parts := strings.Fields(alt)
		if len(parts) == 0 {
			return Selector{}, fmt.Errorf("element: empty selector in %q", src)
		}
		chain := make([]simpleSelector, 0, len(parts))
		for _, p := range parts {
			s, err := parseSimpleSelector(p)
			if err != nil {
				return Selector{}, fmt.Errorf("element: selector %q: %w", src, err)
			}
			chain = append(chain, s)
		}
		sel.alts = append(sel.alts, chain)
	}
	return sel, nil
}

// MustSelector is ParseSelector for built-in, known-good selectors.
func MustSelector(src string) Selector {
	s, err := ParseSelector(src)
	if err != nil {
		panic(err)
	}
	return s
}

// String returns the source text.
func (s Selector) String() string { return s.src }

// Matches reports whether n satisfies any alternative. Descendant parts are
// checked against n's ancestors, innermost first.
func (s Selector) Matches(n *html.Node) bool {
	for _, chain := range s.alts {
		if matchChain(n, chain) {
			return true
		}
	}
	return false
}

// MatchFunc adapts the selector to a definition matcher returning n itself.
func (s Selector) MatchFunc() MatchFunc {
	return func(n *html.Node) (*html.Node, bool) {
		if s.Matches(n) {
			return n, true
		}
		return nil, false
	}
}

func matchChain(n *html.Node, chain []simpleSelector) bool {
	last := len(chain) - 1
	if !chain[last].matches(n) {
		return false
	}
	i := last - 1
	for cur := n.Parent; cur != nil && i >= 0; cur = cur.Parent {
		if chain[i].matches(cur) {
			i--
		}
	}
	return i < 0
}

// parseSimpleSelector parses "tag.class", "#id", "tag[attr=val]", etc.
func parseSimpleSelector(sel string) (simpleSelector, error) {
	var s simpleSelector

	if idx := strings.IndexByte(sel, '['); idx >= 0 {
		if !strings.HasSuffix(sel, "]") {
			return s, fmt.Errorf("unterminated attribute in %q", sel)
		}
		attrPart := sel[idx+1 : len(sel)-1]
		sel = sel[:idx]
		if eqIdx := strings.IndexByte(attrPart, '='); eqIdx >= 0 {
			s.attrKey = attrPart[:eqIdx]
			s.attrVal = strings.Trim(attrPart[eqIdx+1:], `"'`)
			s.hasVal = true
		} else {
			s.attrKey = attrPart
		}
		if s.attrKey == "" {
			return s, fmt.Errorf("empty attribute name in %q", sel)
		}
	}

	if idx := strings.IndexByte(sel, '#'); idx >= 0 {
		s.id = sel[idx+1:]
		sel = sel[:idx]
	}

	if idx := strings.IndexByte(sel, '.'); idx >= 0 {
		for _, c := range strings.Split(sel[idx+1:], ".") {
			if c == "" {
				return s, fmt.Errorf("empty class in %q", sel)
			}
			s.classes = append(s.classes, c)
		}
		sel = sel[:idx]
	}

	s.tag = strings.ToLower(sel)
	if s.tag == "*" {
		s.tag = ""
	}
	return s, nil
}

func (s simpleSelector) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if s.tag != "" && n.Data != s.tag {
		return false
	}
	if s.id != "" {
		if v, _ := dom.Attr(n, "id"); v != s.id {
			return false
		}
	}
	for _, c := range s.classes {
		if !dom.HasClass(n, c) {
			return false
		}
	}
	if s.attrKey != "" {
		v, ok := dom.Attr(n, s.attrKey)
		if !ok || (s.hasVal && v != s.attrVal) {
			return false
		}
	}
	return true
}
