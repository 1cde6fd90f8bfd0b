package browser

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/hazyhaar/pagewright/overlay"
)

// Needs a Chrome binary; set PAGEWRIGHT_CHROME=1 (or PAGEWRIGHT_CHROME_URL
// for a remote instance) to run.
func TestPageLayout(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping browser integration in short mode")
	}
	remote := os.Getenv("PAGEWRIGHT_CHROME_URL")
	if remote == "" && os.Getenv("PAGEWRIGHT_CHROME") == "" {
		t.Skip("no chrome configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	b, err := Launch(ctx, Config{RemoteURL: remote, Viewport: overlay.Size{W: 800, H: 600}})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	defer b.Close()

	const markup = `<html><body style="margin:0">` +
		`<div data-pw-id="n1" style="position:absolute;left:10px;top:20px;width:100px;height:50px"></div>` +
		`<div style="height:2000px"></div></body></html>`
	p, err := b.Open(ctx, markup)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	r, ok := p.Rect("n1")
	if !ok {
		t.Fatal("Rect(n1): not found")
	}
	if r != (overlay.Rect{X: 10, Y: 20, W: 100, H: 50}) {
		t.Errorf("Rect: got %+v", r)
	}
	if _, ok := p.Rect("missing"); ok {
		t.Error("Rect(missing): want !ok")
	}
	if vp := p.Viewport(); vp.W != 800 || vp.H != 600 {
		t.Errorf("Viewport: got %+v", vp)
	}

	if err := p.ScrollTo(ctx, 0, 15); err != nil {
		t.Fatalf("ScrollTo: %v", err)
	}
	if r, _ := p.Rect("n1"); r.Y != 5 {
		t.Errorf("Rect after scroll: got y=%v, want 5", r.Y)
	}
}
