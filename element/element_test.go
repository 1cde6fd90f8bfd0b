package element

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/net/html"

	"github.com/hazyhaar/pagewright/dom"
)

const page = `<html><body>` +
	`<div class="row" id="r"><div class="col" id="c1"><p id="p">hi <b id="b">there</b></p></div></div>` +
	`<ul id="ul"><li>a</li></ul>` +
	`<figure id="fig"><img id="img" src="x.png"></figure>` +
	`<div data-pw-embed="game" id="embed"><canvas id="canvas"></canvas></div>` +
	`<div class="card" id="card"></div>` +
	`<h2 id="h2">t</h2>` +
	`<table id="table"></table>` +
	`</body></html>`

func parse(t *testing.T) *dom.Document {
	t.Helper()
	doc, err := dom.Parse("edit", page, nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return doc
}

func byID(t *testing.T, doc *dom.Document, id string) *html.Node {
	t.Helper()
	var found *html.Node
	dom.Walk(doc.Root(), func(n *html.Node) bool {
		if v, _ := dom.Attr(n, "id"); v == id && n.Type == html.ElementNode {
			found = n
			return false
		}
		return true
	})
	if found == nil {
		t.Fatalf("no element #%s", id)
	}
	return found
}

func TestMatch(t *testing.T) {
	r := NewRegistry(nil)
	doc := parse(t)

	tests := []struct {
		id       string
		wantDef  string
		wantNode string // id of the representative node
	}{
		{"r", "Row", "r"},
		{"c1", "Column", "c1"},
		{"p", "Paragraph", "p"},
		{"b", "Text", "b"},
		{"ul", "List", "ul"},
		{"img", "Image", "fig"},
		{"canvas", "Embed", "embed"},
		{"embed", "Embed", "embed"},
		{"card", "Card", "card"},
		{"h2", "Heading", "h2"},
		{"table", "Element", "table"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			m := r.Match(byID(t, doc, tt.id))
			if m == nil {
				t.Fatal("Match: nil")
			}
			if m.Definition.Name != tt.wantDef {
				t.Errorf("definition: got %s, want %s", m.Definition.Name, tt.wantDef)
			}
			if got, _ := dom.Attr(m.Node, "id"); got != tt.wantNode {
				t.Errorf("node: got #%s, want #%s", got, tt.wantNode)
			}
		})
	}
}

func TestMatch_TextNodeUsesParent(t *testing.T) {
	r := NewRegistry(nil)
	doc := parse(t)
	text := byID(t, doc, "h2").FirstChild
	m := r.Match(text)
	if m == nil || m.Definition.Name != "Heading" {
		t.Fatalf("Match(text): got %+v, want Heading", m)
	}
}

func TestMatch_Body(t *testing.T) {
	r := NewRegistry(nil)
	doc := parse(t)
	if m := r.Match(doc.Body()); m != nil {
		t.Errorf("Match(body): got %s, want nil", m.Definition.Name)
	}
}

func TestMatch_SpecificityWins(t *testing.T) {
	broad := &Definition{Name: "Box", Specificity: 10, Match: MustSelector("div").MatchFunc()}
	narrow := &Definition{Name: "Hero", Specificity: 20, Match: MustSelector("div.hero").MatchFunc()}
	doc, _ := dom.Parse("edit", `<html><body><div class="hero" id="h"></div></body></html>`, nil)

	// Registration order must not matter.
	for _, defs := range [][]*Definition{{broad, narrow}, {narrow, broad}} {
		r := NewRegistry(nil, WithDefinitions(defs...))
		m := r.Match(byID(t, doc, "h"))
		if m == nil || m.Definition.Name != "Hero" {
			t.Errorf("Match: got %+v, want Hero", m)
		}
	}
}

func TestMatch_TieKeepsRegistrationOrder(t *testing.T) {
	a := &Definition{Name: "A", Specificity: 5, Match: MustSelector("div").MatchFunc()}
	b := &Definition{Name: "B", Specificity: 5, Match: MustSelector("div").MatchFunc()}
	doc, _ := dom.Parse("edit", `<html><body><div id="d"></div></body></html>`, nil)
	r := NewRegistry(nil, WithDefinitions(a, b))
	if m := r.Match(byID(t, doc, "d")); m.Definition.Name != "A" {
		t.Errorf("tie: got %s, want A", m.Definition.Name)
	}
}

func TestCanInsertInto(t *testing.T) {
	r := NewRegistry(nil)
	doc := parse(t)
	def := func(name string) *Definition {
		d, ok := r.Lookup(name)
		if !ok {
			t.Fatalf("Lookup(%s) failed", name)
		}
		return d
	}

	tests := []struct {
		name   string
		parent *html.Node
		cand   string
		want   bool
	}{
		{"body accepts anything", doc.Body(), "Column", true},
		{"html accepts nothing", doc.HTMLElement(), "Paragraph", false},
		{"row allow-list accepts column", byID(t, doc, "r"), "Column", true},
		{"row allow-list rejects paragraph", byID(t, doc, "r"), "Paragraph", false},
		{"column accepts flow", byID(t, doc, "c1"), "Image", true},
		{"card rejects column category", byID(t, doc, "card"), "Column", false},
		{"paragraph accepts phrasing", byID(t, doc, "p"), "Text", true},
		{"paragraph rejects card", byID(t, doc, "p"), "Card", false},
		{"list allow-list", byID(t, doc, "ul"), "ListItem", true},
		{"generic accepts nothing", byID(t, doc, "table"), "Paragraph", false},
		{"nil parent", nil, "Paragraph", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.CanInsertInto(tt.parent, def(tt.cand))
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
			if again := r.CanInsertInto(tt.parent, def(tt.cand)); again != got {
				t.Error("CanInsertInto not deterministic")
			}
		})
	}
}

func TestCanInsertInto_EmptyAllowListFallsThrough(t *testing.T) {
	box := &Definition{
		Name: "Box", Specificity: 1, Match: MustSelector("div").MatchFunc(),
		AllowedElements: []string{}, Accepts: []string{"flow"},
	}
	leaf := &Definition{Name: "Leaf", Match: MustSelector("i").MatchFunc(), ContentCategories: []string{"flow"}}
	bare := &Definition{Name: "Bare", Match: MustSelector("u").MatchFunc()}
	r := NewRegistry(nil, WithDefinitions(box, leaf, bare))
	doc, _ := dom.Parse("edit", `<html><body><div id="d"></div></body></html>`, nil)

	if !r.CanInsertInto(byID(t, doc, "d"), leaf) {
		t.Error("category intersection ignored when allow-list empty")
	}
	if r.CanInsertInto(byID(t, doc, "d"), bare) {
		t.Error("candidate without categories accepted")
	}
}

func TestCanInsertInto_AllowListBeatsCategories(t *testing.T) {
	box := &Definition{
		Name: "Box", Specificity: 1, Match: MustSelector("div").MatchFunc(),
		AllowedElements: []string{"Other"}, Accepts: []string{"flow"},
	}
	leaf := &Definition{Name: "Leaf", Match: MustSelector("i").MatchFunc(), ContentCategories: []string{"flow"}}
	r := NewRegistry(nil, WithDefinitions(box, leaf))
	doc, _ := dom.Parse("edit", `<html><body><div id="d"></div></body></html>`, nil)

	if r.CanInsertInto(byID(t, doc, "d"), leaf) {
		t.Error("category intersection consulted despite non-empty allow-list")
	}
}

func TestLoad_Idempotent(t *testing.T) {
	r := NewRegistry(nil)
	a, err := r.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	b, err := r.Load()
	if err != nil {
		t.Fatalf("Load again: %v", err)
	}
	if len(a.Elements) != len(b.Elements) || len(a.Categories) != len(b.Categories) {
		t.Errorf("catalog changed: %d/%d elements", len(a.Elements), len(b.Elements))
	}
	for i := 1; i < len(b.Elements); i++ {
		if b.Elements[i-1].Specificity < b.Elements[i].Specificity {
			t.Fatalf("catalog not ordered at %d", i)
		}
	}
}

func TestLoad_DuplicateName(t *testing.T) {
	a := &Definition{Name: "A", Match: MustSelector("div").MatchFunc()}
	r := NewRegistry(nil, WithDefinitions(a, a))
	if _, err := r.Load(); err == nil {
		t.Error("Load with duplicate names: want error")
	}
}

func TestExternalCatalog(t *testing.T) {
	const yml = `
elements:
  - name: Hero
    category: Marketing
    kind: layout
    selector: "section.hero"
    specificity: 75
    accepts: [flow]
    content_categories: [flow, sectioning]
    template: '<section class="hero"></section>'
    resizable: true
`
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	r := NewRegistry(nil, WithCatalogFiles(path))
	cat, err := r.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	var found bool
	for _, c := range cat.Categories {
		if c.Name == "Marketing" && len(c.Elements) == 1 && c.Elements[0] == "Hero" {
			found = true
		}
	}
	if !found {
		t.Errorf("Marketing category missing: %+v", cat.Categories)
	}

	doc, _ := dom.Parse("edit", `<html><body><section class="hero" id="s"></section></body></html>`, nil)
	m := r.Match(byID(t, doc, "s"))
	if m == nil || m.Definition.Name != "Hero" {
		t.Fatalf("Match: got %+v, want Hero", m)
	}
	if !m.Definition.Caps.Has(CapResize) || m.Definition.Kind != KindLayout {
		t.Errorf("caps/kind: got %v/%s", m.Definition.Caps, m.Definition.Kind)
	}
}

func TestExternalCatalog_BadSelector(t *testing.T) {
	_, err := ParseCatalog([]byte("elements:\n  - name: X\n    selector: \"div[\"\n"))
	if err == nil {
		t.Error("ParseCatalog with bad selector: want error")
	}
}

func TestTemplate(t *testing.T) {
	r := NewRegistry(nil)
	if tpl, err := r.Template("Row"); err != nil || tpl == "" {
		t.Errorf("Template(Row): %q, %v", tpl, err)
	}
	if _, err := r.Template("Nope"); err == nil {
		t.Error("Template(Nope): want error")
	}
}

func TestConfigField(t *testing.T) {
	d, _ := NewRegistry(nil).Lookup("Embed")
	f, ok := d.Config.Field("game")
	if !ok {
		t.Fatal("embed has no game field")
	}
	if !f.Valid("pong") || f.Valid("doom") {
		t.Error("select validation wrong")
	}
}
