package dom

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const page = `<!DOCTYPE html><html><head><title>t</title></head><body>` +
	`<section class="hero"><h1>Hello</h1><p>one</p> <p>two</p></section>` +
	`<div contenteditable="true"><span>edit</span></div>` +
	`</body></html>`

func mustParse(t *testing.T, name, src string, ident *Identity) *Document {
	t.Helper()
	doc, err := Parse(name, src, ident)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return doc
}

func find(t *testing.T, doc *Document, tag string) *html.Node {
	t.Helper()
	var found *html.Node
	Walk(doc.Root(), func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == tag {
			found = n
			return false
		}
		return true
	})
	if found == nil {
		t.Fatalf("no <%s> in document", tag)
	}
	return found
}

func TestEnsureID_Stable(t *testing.T) {
	doc := mustParse(t, "edit", page, nil)
	h1 := find(t, doc, "h1")

	first := doc.EnsureID(h1)
	second := doc.EnsureID(h1)
	if first == "" || first != second {
		t.Fatalf("EnsureID: got %q then %q, want equal non-empty", first, second)
	}
	if got := doc.Resolve(first); got != h1 {
		t.Errorf("Resolve(%q): got %v, want h1", first, got)
	}
}

func TestEnsureID_TextNodeHasNoID(t *testing.T) {
	doc := mustParse(t, "edit", page, nil)
	text := find(t, doc, "h1").FirstChild
	if got := doc.EnsureID(text); got != "" {
		t.Errorf("EnsureID(text): got %q, want empty", got)
	}
}

func TestResolve_AfterReparse(t *testing.T) {
	doc := mustParse(t, "edit", page, nil)
	p := find(t, doc, "p")
	id := doc.EnsureID(p)
	want, _ := PathTo(doc.Root(), p)

	clone, err := doc.Clone("preview")
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	got := clone.Resolve(id)
	if got == nil {
		t.Fatalf("Resolve(%q) in clone: nil", id)
	}
	gotPath, _ := PathTo(clone.Root(), got)
	if !equalPath(gotPath, want) {
		t.Errorf("path: got %v, want %v", gotPath, want)
	}
	if got == p {
		t.Error("clone resolved to the original node")
	}
}

func TestResolve_Unknown(t *testing.T) {
	doc := mustParse(t, "edit", page, nil)
	if got := doc.Resolve("n999"); got != nil {
		t.Errorf("Resolve unknown: got %v, want nil", got)
	}
	if got := doc.Resolve(""); got != nil {
		t.Errorf("Resolve empty: got %v, want nil", got)
	}
}

func TestParse_SeedsPastExistingIDs(t *testing.T) {
	src := `<html><body><div data-pw-id="n7"></div><p data-pw-id="n7"></p><span></span></body></html>`
	doc := mustParse(t, "edit", src, nil)

	if _, ok := Attr(find(t, doc, "p"), DefaultAttr); ok {
		t.Error("duplicate id not stripped from <p>")
	}
	if got := doc.EnsureID(find(t, doc, "span")); got != "n8" {
		t.Errorf("EnsureID after n7: got %q, want %q", got, "n8")
	}
}

func TestIDsNeverReused(t *testing.T) {
	doc := mustParse(t, "edit", page, nil)
	h1 := find(t, doc, "h1")
	id := doc.EnsureID(h1)
	Detach(h1)

	fresh, _ := ParseElement(doc.Body(), "<h2>x</h2>")
	doc.Body().AppendChild(fresh)
	if got := doc.EnsureID(fresh); got == id {
		t.Errorf("EnsureID reused deleted id %q", id)
	}
}

func TestSyncID(t *testing.T) {
	src := mustParse(t, "edit", page, nil)
	preview := mustParse(t, "preview", page, src.Identity())
	h1 := find(t, src, "h1")
	id := src.EnsureID(h1)

	if preview.Resolve(id) != nil {
		t.Fatal("id resolved in preview before sync")
	}
	got := preview.SyncID(src, id)
	if got == nil || got.Data != "h1" {
		t.Fatalf("SyncID: got %v, want h1", got)
	}
	if preview.Resolve(id) != got {
		t.Error("Resolve after SyncID did not find the synced node")
	}
}

func TestReidentify(t *testing.T) {
	doc := mustParse(t, "edit", page, nil)
	id := doc.EnsureID(find(t, doc, "h1"))

	pasted, err := ParseElement(doc.Body(), `<div data-pw-id="`+id+`"><b>x</b></div>`)
	if err != nil {
		t.Fatalf("ParseElement: %v", err)
	}
	doc.Identity().Reidentify(doc, pasted)
	if got := doc.Identity().ID(pasted); got == id || got == "" {
		t.Errorf("Reidentify: got %q, want fresh id", got)
	}
}

func TestPathNodeAt(t *testing.T) {
	doc := mustParse(t, "edit", page, nil)
	span := find(t, doc, "span")
	p, err := PathTo(doc.Root(), span)
	if err != nil {
		t.Fatalf("PathTo: %v", err)
	}
	if got := NodeAt(doc.Root(), p); got != span {
		t.Errorf("NodeAt(%v): got %v, want span", p, got)
	}
	if got := NodeAt(doc.Root(), Path{0, 9, 9}); got != nil {
		t.Errorf("NodeAt out of range: got %v, want nil", got)
	}
	orphan := &html.Node{Type: html.ElementNode, Data: "i"}
	if _, err := PathTo(doc.Root(), orphan); err == nil {
		t.Error("PathTo of orphan: want error")
	}
}

func TestInsertAtElement(t *testing.T) {
	doc := mustParse(t, "edit", page, nil)
	section := find(t, doc, "section")

	tests := []struct {
		name string
		k    int
		want []string
	}{
		{"front", 0, []string{"em", "h1", "p", "p"}},
		{"middle", 2, []string{"h1", "p", "em", "p"}},
		{"append", 10, []string{"h1", "p", "p", "em"}},
		{"negative appends", -1, []string{"h1", "p", "p", "em"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			em := &html.Node{Type: html.ElementNode, Data: "em"}
			InsertAtElement(section, em, tt.k)
			defer Detach(em)

			got := tags(ElementChildren(section))
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("children: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetachInsertAt_RoundTrip(t *testing.T) {
	doc := mustParse(t, "edit", page, nil)
	before, _ := doc.HTML()

	p := find(t, doc, "p")
	parent, idx := Detach(p)
	if parent == nil || idx < 0 {
		t.Fatalf("Detach: got (%v, %d)", parent, idx)
	}
	InsertAt(parent, p, idx)

	after, _ := doc.HTML()
	if after != before {
		t.Errorf("round trip:\ngot  %s\nwant %s", after, before)
	}
}

func TestEditable(t *testing.T) {
	doc := mustParse(t, "edit", page, nil)
	span := find(t, doc, "span")
	div := span.Parent

	if !IsEditableRegion(div) {
		t.Error("IsEditableRegion(div): want true")
	}
	if IsEditableRegion(span) {
		t.Error("IsEditableRegion(span): want false")
	}
	if !InEditable(span) {
		t.Error("InEditable(span): want true")
	}
	if InEditable(find(t, doc, "h1")) {
		t.Error("InEditable(h1): want false")
	}

	SetAttr(div, "contenteditable", "false")
	if IsEditableRegion(div) {
		t.Error(`contenteditable="false" counted as editable`)
	}
}

func TestSetInnerHTML(t *testing.T) {
	doc := mustParse(t, "edit", page, nil)
	section := find(t, doc, "section")
	if err := SetInnerHTML(section, "<p>new</p>text"); err != nil {
		t.Fatalf("SetInnerHTML: %v", err)
	}
	got, _ := InnerHTML(section)
	if got != "<p>new</p>text" {
		t.Errorf("InnerHTML: got %q", got)
	}
}

func TestParseElement_Rejects(t *testing.T) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	for _, src := range []string{"", "plain", "<a></a><b></b>"} {
		if _, err := ParseElement(body, src); err == nil {
			t.Errorf("ParseElement(%q): want error", src)
		}
	}
	if _, err := ParseElement(body, "  <div></div>\n"); err != nil {
		t.Errorf("ParseElement with whitespace: %v", err)
	}
}

func TestAttrState(t *testing.T) {
	n := &html.Node{Type: html.ElementNode, Data: "div"}
	absent := CaptureAttr(n, "style")
	SetAttr(n, "style", "width: 1px")
	RestoreAttr(n, "style", absent)
	if _, ok := Attr(n, "style"); ok {
		t.Error("RestoreAttr(absent) left the attribute")
	}

	SetAttr(n, "style", "")
	empty := CaptureAttr(n, "style")
	RemoveAttr(n, "style")
	RestoreAttr(n, "style", empty)
	if v, ok := Attr(n, "style"); !ok || v != "" {
		t.Errorf("RestoreAttr(empty): got (%q, %v)", v, ok)
	}
}

func TestHasClass(t *testing.T) {
	doc := mustParse(t, "edit", page, nil)
	if !HasClass(find(t, doc, "section"), "hero") {
		t.Error("HasClass(hero): want true")
	}
	if HasClass(find(t, doc, "section"), "her") {
		t.Error("HasClass(her): want false")
	}
}

func tags(ns []*html.Node) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.Data
	}
	return out
}

func equalPath(a, b Path) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
