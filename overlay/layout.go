package overlay

import (
	"context"
	"sync"
)

// Layout reads live geometry of identified nodes.
type Layout interface {
	// Rect returns the node's bounding box in viewport coordinates.
	Rect(id string) (Rect, bool)
	// Viewport returns the visible area.
	Viewport() Rect
}

// Syncer is a Layout that measures its own rendering of the document, such
// as a browser tab. Sync replaces that rendering with markup.
type Syncer interface {
	Sync(ctx context.Context, markup string) error
}

// StaticLayout is an in-memory Layout. Rects are stored in document
// coordinates and reported relative to the current scroll offset, the way
// a browser reports getBoundingClientRect.
type StaticLayout struct {
	mu       sync.RWMutex
	rects    map[string]Rect
	viewport Size
	scroll   Point
}

// NewStaticLayout creates a layout with a viewport of the given size.
func NewStaticLayout(viewport Size) *StaticLayout {
	return &StaticLayout{rects: make(map[string]Rect), viewport: viewport}
}

// Set records the document-space box of id.
func (l *StaticLayout) Set(id string, r Rect) {
	l.mu.Lock()
	l.rects[id] = r
	l.mu.Unlock()
}

// Delete forgets id.
func (l *StaticLayout) Delete(id string) {
	l.mu.Lock()
	delete(l.rects, id)
	l.mu.Unlock()
}

// ScrollTo sets the scroll offset.
func (l *StaticLayout) ScrollTo(x, y float64) {
	l.mu.Lock()
	l.scroll = Point{X: x, Y: y}
	l.mu.Unlock()
}

// Resize changes the viewport size.
func (l *StaticLayout) Resize(s Size) {
	l.mu.Lock()
	l.viewport = s
	l.mu.Unlock()
}

func (l *StaticLayout) Rect(id string) (Rect, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.rects[id]
	if !ok {
		return Rect{}, false
	}
	return r.Translate(-l.scroll.X, -l.scroll.Y), true
}

func (l *StaticLayout) Viewport() Rect {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Rect{W: l.viewport.W, H: l.viewport.H}
}

// Children returns the viewport rects of ids in order, skipping unknown
// ones. Used for drop index computation.
func Children(l Layout, ids []string) []Rect {
	out := make([]Rect, 0, len(ids))
	for _, id := range ids {
		if r, ok := l.Rect(id); ok {
			out = append(out, r)
		}
	}
	return out
}
