package editor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/pagewright/autosave"
	"github.com/hazyhaar/pagewright/interact"
	"github.com/hazyhaar/pagewright/mutation"
	"github.com/hazyhaar/pagewright/overlay"
)

const fixture = `<html><head></head><body>` +
	`<section data-pw-id="n1"><h2 data-pw-id="n2">Title</h2><p data-pw-id="n3">Hello <b>world</b></p></section>` +
	`<div class="row" data-pw-id="n4"><div class="col" data-pw-id="n5"><p data-pw-id="n6">A</p></div><div class="col" data-pw-id="n7" data-pw-required="">B</div></div>` +
	`<img data-pw-id="n8" src="a.png" style="width: 100px; height: 50px"/>` +
	`<div class="row" data-pw-id="n9"><div class="col" data-pw-id="n10">Only</div></div>` +
	`<div data-pw-id="n11" contenteditable="true"><p>edit me</p></div>` +
	`</body></html>`

func newSession(t *testing.T, opts ...Option) (*Session, *overlay.StaticLayout) {
	t.Helper()
	layout := overlay.NewStaticLayout(overlay.Size{W: 1280, H: 800})
	layout.Set("n1", overlay.Rect{X: 0, Y: 0, W: 800, H: 100})
	layout.Set("n2", overlay.Rect{X: 0, Y: 0, W: 800, H: 40})
	layout.Set("n3", overlay.Rect{X: 0, Y: 50, W: 800, H: 40})
	layout.Set("n8", overlay.Rect{X: 10, Y: 400, W: 100, H: 50})
	s, err := Open(fixture, append([]Option{WithLayout(layout), WithProject("p1")}, opts...)...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s, layout
}

func mustHTML(t *testing.T, s *Session) string {
	t.Helper()
	out, err := s.HTML()
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	return out
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagewright.yaml")
	data := "server:\n  addr: \":9000\"\nautosave:\n  interval: 5s\nhistory:\n  limit: 10\ncatalogs:\n  - extra.yaml\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if cfg.Server.Addr != ":9000" || cfg.Autosave.Interval != 5*time.Second || cfg.History.Limit != 10 {
		t.Errorf("got %+v", cfg)
	}
	if cfg.Autosave.MinInterval != 30*time.Second || cfg.Identity.Attr != "data-pw-id" || cfg.Overlay.HandleSize != 10 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if len(cfg.Catalogs) != 1 {
		t.Errorf("catalogs: got %v", cfg.Catalogs)
	}

	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file: want error")
	}
}

func TestInsert_SelectsNewNode(t *testing.T) {
	s, _ := newSession(t)
	id, err := s.Insert(`<p>New</p>`, "n1", 1)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if id != "n12" {
		t.Errorf("id: got %q, want n12", id)
	}
	if sel := s.Selected(); sel == nil || sel.ID != id || sel.Definition.Name != "Paragraph" {
		t.Errorf("selected: got %+v", sel)
	}
	if !strings.Contains(mustHTML(t, s), `<h2 data-pw-id="n2">Title</h2><p data-pw-id="n12">New</p>`) {
		t.Errorf("html: %s", mustHTML(t, s))
	}
}

func TestInsertElement_Containment(t *testing.T) {
	s, _ := newSession(t)
	tests := []struct {
		name, parent string
		want         error
	}{
		{"Column", "n1", ErrNotAllowed},
		{"Paragraph", "n4", ErrNotAllowed},
		{"Column", "n4", nil},
		{"Paragraph", "n1", nil},
		{"Paragraph", "missing", ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.parent, func(t *testing.T) {
			_, err := s.InsertElement(tt.name, tt.parent, -1)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
	if _, err := s.InsertElement("Nope", "n1", -1); err == nil {
		t.Error("unknown definition: want error")
	}
}

func TestDelete_Policy(t *testing.T) {
	s, _ := newSession(t)
	if err := s.Delete("n7"); !errors.Is(err, ErrProtected) {
		t.Errorf("required column: got %v", err)
	}
	if err := s.Delete("n10"); !errors.Is(err, ErrProtected) {
		t.Errorf("last column: got %v", err)
	}
	if err := s.Delete("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing: got %v", err)
	}

	before := mustHTML(t, s)
	if err := s.Delete("n5"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if strings.Contains(mustHTML(t, s), `data-pw-id="n5"`) {
		t.Error("n5 still present")
	}
	if !s.Undo() {
		t.Fatal("Undo: false")
	}
	if got := mustHTML(t, s); got != before {
		t.Errorf("undo:\n got %s\nwant %s", got, before)
	}
}

func TestDelete_ClearsSelection(t *testing.T) {
	s, _ := newSession(t)
	s.Select("n3")
	if err := s.Delete("n3"); err != nil {
		t.Fatal(err)
	}
	if s.Selected() != nil {
		t.Error("selection survived delete")
	}
	if s.Overlays().Selected.Visible {
		t.Error("selection overlay visible after delete")
	}
}

func TestTracker_HoverAndClick(t *testing.T) {
	s, _ := newSession(t)
	title := s.Resolve("n2")
	para := s.Resolve("n3")

	s.PointerMove(PointerEvent{Target: title.FirstChild, Point: overlay.Point{X: 5, Y: 5}})
	if h := s.Hovered(); h == nil || h.ID != "n2" || h.Definition.Name != "Heading" {
		t.Fatalf("hovered: got %+v", h)
	}
	if !s.Overlays().Hover.Visible {
		t.Error("hover overlay hidden")
	}

	if !s.Click(PointerEvent{Target: para.FirstChild, Point: overlay.Point{X: 5, Y: 60}}) {
		t.Error("click on non-editable target should prevent default")
	}
	if sel := s.Selected(); sel == nil || sel.ID != "n3" {
		t.Fatalf("selected: got %+v", sel)
	}

	// Inside the selected node: hover unchanged.
	s.PointerMove(PointerEvent{Target: para.LastChild, Point: overlay.Point{X: 50, Y: 60}})
	if h := s.Hovered(); h.ID != "n2" {
		t.Errorf("hovered inside selection: got %s, want n2", h.ID)
	}

	s.PointerLeave()
	if s.Overlays().Hover.Visible {
		t.Error("hover overlay visible after leave")
	}
	if s.Hovered() == nil {
		t.Error("hovered context cleared by leave")
	}

	editable := s.Resolve("n11").FirstChild
	if s.Click(PointerEvent{Target: editable}) {
		t.Error("click inside editable region should not prevent default")
	}
}

func TestTracker_InputFocusSuppressesHover(t *testing.T) {
	s, _ := newSession(t)
	s.FocusInput(true)
	s.PointerMove(PointerEvent{Target: s.Resolve("n2")})
	if s.Hovered() != nil {
		t.Error("hover changed while input focused")
	}
	s.FocusInput(false)
	s.PointerMove(PointerEvent{Target: s.Resolve("n2")})
	if s.Hovered() == nil {
		t.Error("hover not tracked after input blur")
	}
}

func TestTracker_ScrollRepositions(t *testing.T) {
	s, layout := newSession(t)
	s.Select("n3")
	layout.ScrollTo(0, 30)
	s.Scroll()
	if got := s.Overlays().Selected.Box.Y; got != 20 {
		t.Errorf("box y after scroll: got %v, want 20", got)
	}
	if s.Selected().ID != "n3" {
		t.Error("scroll changed the selection")
	}
}

func TestTracker_SelectionText(t *testing.T) {
	s, _ := newSession(t)
	var got []bool
	s.Bus().Subscribe(TopicSelectionText, func(ev Event) { got = append(got, ev.Payload.(bool)) })
	s.SelectionChange(true)
	s.SelectionChange(true)
	s.SelectionChange(false)
	if len(got) != 2 || !got[0] || got[1] {
		t.Errorf("events: got %v", got)
	}
	if s.HasSelectedText() {
		t.Error("HasSelectedText after clear")
	}
}

func TestEditing(t *testing.T) {
	s, _ := newSession(t)
	if err := s.BeginEditing("n4"); !errors.Is(err, ErrNotAllowed) {
		t.Errorf("row editing: got %v", err)
	}
	if err := s.BeginEditing("n3"); err != nil {
		t.Fatalf("BeginEditing: %v", err)
	}
	s.PointerMove(PointerEvent{Target: s.Resolve("n2")})
	s.Click(PointerEvent{Target: s.Resolve("n2")})
	if s.Hovered() != nil || s.Selected().ID != "n3" {
		t.Error("contexts changed during editing")
	}
	if err := s.EndEditing("Hi <em>there</em>"); err != nil {
		t.Fatalf("EndEditing: %v", err)
	}
	if got := mustHTML(t, s); !strings.Contains(got, `<p data-pw-id="n3">Hi <em data-pw-id="n12">there</em></p>`) {
		t.Errorf("html: %s", mustHTML(t, s))
	}
	s.Undo()
	if !strings.Contains(mustHTML(t, s), `<p data-pw-id="n3">Hello <b>world</b></p>`) {
		t.Errorf("undo: %s", mustHTML(t, s))
	}

	// Unchanged content records nothing.
	rev := s.Revision()
	s.BeginEditing("n2")
	s.EndEditing("Title")
	if s.Revision() != rev {
		t.Error("unchanged edit recorded a mutation")
	}
}

func TestResize_Session(t *testing.T) {
	s, _ := newSession(t)
	if !s.Select("n8") {
		t.Fatal("select image")
	}
	if s.BeginResize(overlay.Point{X: 50, Y: 420}) {
		t.Fatal("BeginResize off the handle")
	}
	if !s.BeginResize(overlay.Point{X: 110, Y: 450}) {
		t.Fatal("BeginResize on the handle: false")
	}
	if s.Overlays().Selected.Visible {
		t.Error("selection overlay visible during resize")
	}
	if err := s.ResizeMove(overlay.Point{X: 130, Y: 460}); err != nil {
		t.Fatal(err)
	}
	if err := s.ResizeEnd(overlay.Point{X: 150, Y: 470}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(mustHTML(t, s), `style="width: 140px; height: 70px"`) {
		t.Errorf("html: %s", mustHTML(t, s))
	}
	if !s.Overlays().Selected.Visible {
		t.Error("selection overlay hidden after resize")
	}
	if !s.Undo() {
		t.Fatal("Undo")
	}
	if !strings.Contains(mustHTML(t, s), `style="width: 100px; height: 50px"`) {
		t.Errorf("one undo should restore the start size: %s", mustHTML(t, s))
	}
	if s.CanUndo() {
		t.Error("resize produced more than one history entry")
	}
}

func TestDrag_Session(t *testing.T) {
	s, _ := newSession(t)
	if err := s.StartDrag("n3"); err != nil {
		t.Fatalf("StartDrag: %v", err)
	}
	target, ok := s.DragOver("n1", overlay.Point{X: 10, Y: 10})
	if !ok || target.Index != 0 {
		t.Fatalf("DragOver: got %+v, %v", target, ok)
	}
	if _, ok := s.DragOver("n4", overlay.Point{X: 10, Y: 10}); ok {
		t.Error("paragraph accepted by a row")
	}
	s.DragOver("n1", overlay.Point{X: 10, Y: 10})
	if err := s.Drop(); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if !strings.Contains(mustHTML(t, s), `<section data-pw-id="n1"><p data-pw-id="n3">`) {
		t.Errorf("html: %s", mustHTML(t, s))
	}
	s.Undo()
	if !strings.Contains(mustHTML(t, s), `<section data-pw-id="n1"><h2`) {
		t.Errorf("undo: %s", mustHTML(t, s))
	}
}

func TestDrag_PaletteRejected(t *testing.T) {
	s, _ := newSession(t)
	if err := s.StartPaletteDrag("Paragraph"); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.DragOver("n4", overlay.Point{}); ok {
		t.Error("row accepted a paragraph")
	}
	if err := s.Drop(); !errors.Is(err, ErrNoop) {
		t.Errorf("Drop: got %v, want ErrNoop", err)
	}
	if s.DragState() != interact.Cancelled {
		t.Errorf("state: got %s", s.DragState())
	}
	if err := s.StartDrag("n10"); !errors.Is(err, ErrNotAllowed) {
		t.Errorf("column drag: got %v", err)
	}
}

func TestMove_Containment(t *testing.T) {
	s, _ := newSession(t)
	if err := s.Move("n3", "n4", 0); !errors.Is(err, ErrNotAllowed) {
		t.Errorf("into row: got %v", err)
	}
	if err := s.Move("n6", "n1", -1); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if !strings.Contains(mustHTML(t, s), `<p data-pw-id="n6">A</p></section>`) {
		t.Errorf("html: %s", mustHTML(t, s))
	}
}

func TestLinkPreview(t *testing.T) {
	s, _ := newSession(t)
	if err := s.LinkPreview("preview"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetStyle("n2", "color", "red"); err != nil {
		t.Fatal(err)
	}
	prev, err := s.DocumentHTML("preview")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(prev, `style="color: red"`) {
		t.Errorf("preview not mirrored: %s", prev)
	}
	if _, err := s.DocumentHTML("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown doc: got %v", err)
	}
}

func TestFind(t *testing.T) {
	s, _ := newSession(t)
	ids, err := s.Find("div.row div.col")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(ids, ",") != "n5,n7,n10" {
		t.Errorf("got %v", ids)
	}
	if _, err := s.Find("div["); err == nil {
		t.Error("bad selector: want error")
	}
}

func TestBus_EventsAfterUnlock(t *testing.T) {
	var batches []mutation.Batch
	s, _ := newSession(t, WithListener(func(b mutation.Batch) { batches = append(batches, b) }))

	var dirty []bool
	unsub := s.Bus().Subscribe(TopicDirty, func(ev Event) {
		dirty = append(dirty, ev.Payload.(bool))
		// Re-entrant calls must not deadlock.
		_, _ = s.HTML()
	})
	s.SetStyle("n2", "color", "red")
	s.Undo()
	unsub()
	s.Redo()

	if len(batches) != 3 || batches[0].ProjectID != "p1" || batches[1].Action != mutation.ActionUndo {
		t.Errorf("batches: got %+v", batches)
	}
	if len(dirty) != 2 || !dirty[0] || !dirty[1] {
		t.Errorf("dirty events: got %v", dirty)
	}
}

func TestBus_Order(t *testing.T) {
	b := NewBus()
	var got []int
	b.Subscribe(TopicOverlay, func(Event) { got = append(got, 1) })
	un := b.Subscribe(TopicOverlay, func(Event) { got = append(got, 2) })
	b.Subscribe(TopicOverlay, func(Event) { got = append(got, 3) })
	b.Publish(TopicOverlay, nil)
	un()
	b.Publish(TopicOverlay, nil)
	want := []int{1, 2, 3, 1, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestSave(t *testing.T) {
	s, _ := newSession(t)
	if err := s.Save(context.Background()); !errors.Is(err, ErrNoSaver) {
		t.Errorf("no saver: got %v", err)
	}

	var mu sync.Mutex
	var saved []autosave.Snapshot
	s, _ = newSession(t, WithSaver(autosave.SaverFunc(func(_ context.Context, snap autosave.Snapshot) error {
		mu.Lock()
		saved = append(saved, snap)
		mu.Unlock()
		return nil
	})))
	s.SetStyle("n2", "color", "red")
	if !s.Dirty() {
		t.Fatal("not dirty after change")
	}
	if err := s.Save(context.Background()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if s.Dirty() {
		t.Error("dirty after save")
	}
	if len(saved) != 1 || saved[0].Revision != 1 || !strings.Contains(saved[0].HTML, "color: red") {
		t.Errorf("saved: %+v", saved)
	}
	if s.BeforeUnload(context.Background()) {
		t.Error("unload prompt for a clean document")
	}
}

func TestSave_ErrorPropagates(t *testing.T) {
	boom := errors.New("backend down")
	s, _ := newSession(t, WithSaver(autosave.SaverFunc(func(context.Context, autosave.Snapshot) error { return boom })))
	s.SetStyle("n2", "color", "red")
	if err := s.Save(context.Background()); !errors.Is(err, boom) {
		t.Errorf("got %v, want %v", err, boom)
	}
	if !s.Dirty() {
		t.Error("failed save cleared dirty")
	}
}
