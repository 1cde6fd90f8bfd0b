// Package export turns an edited document into a publishable bundle: clean
// HTML without editor bookkeeping, a Markdown rendition and page metadata.
package export

import (
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/pagewright/dom"
)

// EditorAttrPrefix marks attributes owned by the editor.
const EditorAttrPrefix = "data-pw-"

// Options tunes an export.
type Options struct {
	// BaseURL resolves relative links in the Markdown rendition.
	BaseURL string
	// IdentityAttr is the node identity attribute; dom.DefaultAttr if empty.
	IdentityAttr string
	// KeepIdentity leaves node identities in the HTML output.
	KeepIdentity bool
	// StripAttrs lists further attributes to remove from every element.
	StripAttrs []string
}

// Meta describes the exported page.
type Meta struct {
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Lang        string   `json:"lang,omitempty"`
	Headings    []string `json:"headings,omitempty"`
	Links       []string `json:"links,omitempty"`
	Images      []string `json:"images,omitempty"`
}

// Bundle is the export result.
type Bundle struct {
	HTML     string `json:"html"`
	Markdown string `json:"markdown"`
	Meta     Meta   `json:"meta"`
}

// Exporter renders bundles. It is safe for concurrent use.
type Exporter struct {
	md *converter.Converter
}

// New creates an Exporter.
func New() *Exporter {
	return &Exporter{
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Export renders doc without modifying it.
func (e *Exporter) Export(doc *dom.Document, opts Options) (*Bundle, error) {
	src, err := doc.HTML()
	if err != nil {
		return nil, err
	}
	return e.ExportHTML(src, opts)
}

// ExportHTML renders a serialised document.
func (e *Exporter) ExportHTML(src string, opts Options) (*Bundle, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("export: parse: %w", err)
	}
	strip(root, opts)

	var b Bundle
	b.Meta = collectMeta(root)

	var sb strings.Builder
	if err := html.Render(&sb, root); err != nil {
		return nil, fmt.Errorf("export: render: %w", err)
	}
	b.HTML = sb.String()

	body := findElement(root, atom.Body)
	if body == nil {
		body = root
	}
	bodyHTML, err := dom.InnerHTML(body)
	if err != nil {
		return nil, fmt.Errorf("export: render body: %w", err)
	}
	var md string
	if opts.BaseURL != "" {
		md, err = e.md.ConvertString(bodyHTML, converter.WithDomain(opts.BaseURL))
	} else {
		md, err = e.md.ConvertString(bodyHTML)
	}
	if err != nil {
		return nil, fmt.Errorf("export: markdown: %w", err)
	}
	b.Markdown = strings.TrimSpace(md)
	return &b, nil
}

// strip removes editor attributes: anything under EditorAttrPrefix (the
// identity attribute included unless kept), contenteditable and opts'
// extra attributes.
func strip(root *html.Node, opts Options) {
	identity := opts.IdentityAttr
	if identity == "" {
		identity = dom.DefaultAttr
	}
	extra := make(map[string]bool, len(opts.StripAttrs))
	for _, a := range opts.StripAttrs {
		extra[strings.ToLower(a)] = true
	}
	dom.Walk(root, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		kept := n.Attr[:0]
		for _, a := range n.Attr {
			key := strings.ToLower(a.Key)
			if key == identity {
				if !opts.KeepIdentity {
					continue
				}
			} else if strings.HasPrefix(key, EditorAttrPrefix) || key == "contenteditable" || extra[key] {
				continue
			}
			kept = append(kept, a)
		}
		n.Attr = kept
		return true
	})
}

func collectMeta(root *html.Node) Meta {
	var m Meta
	if h := findElement(root, atom.Html); h != nil {
		m.Lang, _ = dom.Attr(h, "lang")
	}
	dom.Walk(root, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		switch n.DataAtom {
		case atom.Title:
			if m.Title == "" {
				m.Title = textOf(n)
			}
		case atom.Meta:
			if name, _ := dom.Attr(n, "name"); strings.EqualFold(name, "description") {
				m.Description, _ = dom.Attr(n, "content")
			}
		case atom.H1, atom.H2, atom.H3:
			if t := textOf(n); t != "" {
				m.Headings = append(m.Headings, t)
			}
		case atom.A:
			if href, ok := dom.Attr(n, "href"); ok && href != "" {
				m.Links = append(m.Links, href)
			}
		case atom.Img:
			if s, ok := dom.Attr(n, "src"); ok && s != "" {
				m.Images = append(m.Images, s)
			}
		}
		return true
	})
	if m.Title == "" && len(m.Headings) > 0 {
		m.Title = m.Headings[0]
	}
	return m
}

func findElement(root *html.Node, a atom.Atom) *html.Node {
	var found *html.Node
	dom.Walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == a {
			found = n
			return false
		}
		return true
	})
	return found
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	dom.Walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		return true
	})
	return strings.Join(strings.Fields(sb.String()), " ")
}
