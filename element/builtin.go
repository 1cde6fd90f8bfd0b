package element

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/pagewright/dom"
)

// Content categories used by the built-in catalog.
const (
	Flow         = "flow"
	Phrasing     = "phrasing"
	Heading      = "heading"
	Embedded     = "embedded"
	Interactive  = "interactive"
	Sectioning   = "sectioning"
	FormContent  = "form"
	ListContent  = "list-item"
	ColumnLayout = "layout-column"
)

// EmbedAttr marks the wrapper of an embedded widget.
const EmbedAttr = "data-pw-embed"

// Builtin returns a fresh copy of the built-in catalog.
func Builtin() []*Definition {
	return []*Definition{
		{
			Name: "Embed", Category: "Media", Kind: KindEmbed, Caps: CapResize | CapDrag,
			Specificity:       100,
			Match:             matchEmbed,
			ContentCategories: []string{Flow, Embedded},
			Template:          `<div data-pw-embed="game" data-game="snake" style="width: 480px; height: 320px"></div>`,
			Config: &ConfigSchema{Fields: []ConfigField{
				{Name: "game", Label: "Game", Type: "select", Attr: "data-game",
					Options: []string{"snake", "tetris", "pong", "breakout"}, Default: "snake"},
			}},
		},
		{
			Name: "Image", Category: "Media", Kind: KindMedia, Caps: CapResize | CapLockAspect | CapDrag,
			Specificity:       90,
			Match:             matchImage,
			ContentCategories: []string{Flow, Phrasing, Embedded},
			Template:          `<img src="" alt="">`,
		},
		{
			Name: "Row", Category: "Layout", Kind: KindRow, Caps: CapDrag,
			Specificity:       80,
			Match:             MustSelector("div.row").MatchFunc(),
			AllowedElements:   []string{"Column"},
			ContentCategories: []string{Flow},
			Template:          `<div class="row"><div class="col"></div><div class="col"></div></div>`,
		},
		{
			Name: "Column", Category: "Layout", Kind: KindColumn, Caps: CapResize,
			Specificity:       80,
			Match:             MustSelector("div.col, div.column").MatchFunc(),
			ContentCategories: []string{ColumnLayout},
			Accepts:           []string{Flow},
			Template:          `<div class="col"></div>`,
		},
		{
			Name: "Card", Category: "Layout", Kind: KindCard, Caps: CapResize | CapDrag,
			Specificity:       70,
			Match:             MustSelector("div.card, article.card").MatchFunc(),
			ContentCategories: []string{Flow},
			Accepts:           []string{Flow},
			Template:          `<div class="card"><h3>Title</h3><p>Text</p></div>`,
		},
		{
			Name: "Grid", Category: "Layout", Kind: KindGrid, Caps: CapResize | CapDrag,
			Specificity:       70,
			Match:             MustSelector("div.grid").MatchFunc(),
			ContentCategories: []string{Flow},
			Accepts:           []string{Flow},
			Template:          `<div class="grid"></div>`,
		},
		{
			Name: "List", Category: "Text", Kind: KindText, Caps: CapDrag,
			Specificity:       60,
			Match:             MustSelector("ul, ol").MatchFunc(),
			AllowedElements:   []string{"ListItem"},
			ContentCategories: []string{Flow},
			Template:          `<ul><li>Item</li></ul>`,
		},
		{
			Name: "ListItem", Category: "Text", Kind: KindText, Caps: CapEditText,
			Specificity:       60,
			Match:             MustSelector("li").MatchFunc(),
			ContentCategories: []string{ListContent},
			Accepts:           []string{Flow},
			Template:          `<li>Item</li>`,
		},
		{
			Name: "Heading", Category: "Text", Kind: KindText, Caps: CapEditText | CapDrag,
			Specificity:       50,
			Match:             MustSelector("h1, h2, h3, h4, h5, h6").MatchFunc(),
			ContentCategories: []string{Flow, Heading},
			Accepts:           []string{Phrasing},
			Template:          `<h2>Heading</h2>`,
		},
		{
			Name: "Paragraph", Category: "Text", Kind: KindText, Caps: CapEditText | CapDrag,
			Specificity:       50,
			Match:             MustSelector("p").MatchFunc(),
			ContentCategories: []string{Flow},
			Accepts:           []string{Phrasing},
			Template:          `<p>Text</p>`,
		},
		{
			Name: "Link", Category: "Text", Kind: KindText, Caps: CapEditText | CapDrag,
			Specificity:       50,
			Match:             MustSelector("a").MatchFunc(),
			ContentCategories: []string{Flow, Phrasing, Interactive},
			Accepts:           []string{Phrasing},
			Template:          `<a href="#">Link</a>`,
		},
		{
			Name: "Button", Category: "Form", Kind: KindForm, Caps: CapEditText | CapDrag,
			Specificity:       50,
			Match:             MustSelector("button, a.btn").MatchFunc(),
			ContentCategories: []string{Flow, Phrasing, Interactive},
			Accepts:           []string{Phrasing},
			Template:          `<button type="button">Button</button>`,
		},
		{
			Name: "Input", Category: "Form", Kind: KindForm, Caps: CapResize | CapDrag,
			Specificity:       50,
			Match:             MustSelector("input, textarea, select").MatchFunc(),
			ContentCategories: []string{Flow, Phrasing, Interactive, FormContent},
			Template:          `<input type="text" name="" placeholder="">`,
		},
		{
			Name: "Form", Category: "Form", Kind: KindForm, Caps: CapDrag,
			Specificity:       50,
			Match:             MustSelector("form").MatchFunc(),
			ContentCategories: []string{Flow},
			Accepts:           []string{Flow, FormContent},
			Template:          `<form></form>`,
		},
		{
			Name: "Video", Category: "Media", Kind: KindMedia, Caps: CapResize | CapLockAspect | CapDrag,
			Specificity:       50,
			Match:             MustSelector("video").MatchFunc(),
			ContentCategories: []string{Flow, Phrasing, Embedded},
			Template:          `<video controls></video>`,
		},
		{
			Name: "Section", Category: "Layout", Kind: KindLayout, Caps: CapDrag,
			Specificity:       40,
			Match:             MustSelector("section, header, footer, main, article, nav, aside").MatchFunc(),
			ContentCategories: []string{Flow, Sectioning},
			Accepts:           []string{Flow},
			Template:          `<section></section>`,
		},
		{
			Name: "Text", Category: "Text", Kind: KindText, Caps: CapEditText,
			Specificity:       30,
			Match:             MustSelector("span, strong, em, b, i, u, small, label").MatchFunc(),
			ContentCategories: []string{Flow, Phrasing},
			Accepts:           []string{Phrasing},
			Template:          `<span>Text</span>`,
		},
		{
			Name: "Container", Category: "Layout", Kind: KindLayout, Caps: CapResize | CapDrag,
			Specificity:       20,
			Match:             MustSelector("div").MatchFunc(),
			ContentCategories: []string{Flow},
			Accepts:           []string{Flow},
			Template:          `<div></div>`,
		},
		{
			Name: "Element", Kind: KindGeneric,
			Specificity: 0,
			Match: func(n *html.Node) (*html.Node, bool) {
				switch n.DataAtom {
				case atom.Html, atom.Head, atom.Body:
					return nil, false
				}
				return n, true
			},
			ContentCategories: []string{Flow},
		},
	}
}

// matchEmbed accepts the embed wrapper and anything inside it; the wrapper
// is always the representative node.
func matchEmbed(n *html.Node) (*html.Node, bool) {
	w := dom.Closest(n, func(c *html.Node) bool {
		if c.Type != html.ElementNode {
			return false
		}
		_, ok := dom.Attr(c, EmbedAttr)
		return ok
	})
	return w, w != nil
}

// matchImage accepts <img>, represented by its <picture> or <figure>
// wrapper when it has one.
func matchImage(n *html.Node) (*html.Node, bool) {
	switch n.DataAtom {
	case atom.Img:
		if p := n.Parent; p != nil && (p.DataAtom == atom.Picture || p.DataAtom == atom.Figure) {
			return p, true
		}
		return n, true
	case atom.Picture:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.DataAtom == atom.Img {
				return n, true
			}
		}
	}
	return nil, false
}
