// Package browser renders pagewright documents in headless Chrome through
// go-rod and exposes the page as an overlay.Layout, so overlay geometry
// comes from real CSS layout instead of a static table.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/pagewright/overlay"
)

// Config configures the Chrome connection.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local headless Chrome via launcher.
	RemoteURL string
	// Viewport is the emulated window size. Default: 1280x800.
	Viewport overlay.Size
	// Timeout bounds each CDP call. Default: 5s.
	Timeout time.Duration
	// Attr is the node identity attribute. Default: data-pw-id.
	Attr string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Viewport == (overlay.Size{}) {
		c.Viewport = overlay.Size{W: 1280, H: 800}
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.Attr == "" {
		c.Attr = "data-pw-id"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Browser owns one Chrome connection.
type Browser struct {
	cfg     Config
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// Launch starts Chrome (or connects to a remote instance).
func Launch(ctx context.Context, cfg Config) (*Browser, error) {
	cfg.defaults()
	log := cfg.Logger

	wsURL := cfg.RemoteURL
	var l *launcher.Launcher
	if wsURL != "" {
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l = launcher.New().Headless(true).Context(ctx)
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		log.Info("browser: launched local chrome", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL).Context(ctx)
	if err := b.Connect(); err != nil {
		if l != nil {
			l.Kill()
		}
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	return &Browser{cfg: cfg, browser: b, lnch: l}, nil
}

// Close shuts Chrome down.
func (b *Browser) Close() error {
	err := b.browser.Close()
	if b.lnch != nil {
		b.lnch.Kill()
	}
	return err
}

// Page is a Chrome tab showing one document. It implements overlay.Layout.
type Page struct {
	mu       sync.Mutex
	page     *rod.Page
	cfg      Config
	viewport overlay.Rect
}

// Open creates a tab sized to the configured viewport and loads markup.
func (b *Browser) Open(ctx context.Context, markup string) (*Page, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	vp := b.cfg.Viewport
	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             int(vp.W),
		Height:            int(vp.H),
		DeviceScaleFactor: 1,
	})
	if err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: set viewport: %w", err)
	}
	p := &Page{page: page, cfg: b.cfg, viewport: overlay.Rect{W: vp.W, H: vp.H}}
	if err := p.Sync(ctx, markup); err != nil {
		page.Close()
		return nil, err
	}
	return p, nil
}

// Sync replaces the tab's document with markup and waits for layout.
func (p *Page) Sync(ctx context.Context, markup string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	pg := p.page.Context(ctx)
	if err := pg.SetDocumentContent(markup); err != nil {
		return fmt.Errorf("browser: set content: %w", err)
	}
	if err := pg.WaitLoad(); err != nil {
		p.cfg.Logger.Warn("browser: wait load", "error", err)
	}
	return nil
}

// ScrollTo scrolls the window.
func (p *Page) ScrollTo(ctx context.Context, x, y float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.eval(ctx, `(x, y) => window.scrollTo(x, y)`, x, y)
	if err != nil {
		return fmt.Errorf("browser: scroll: %w", err)
	}
	return nil
}

// eval runs js with the configured per-call timeout. Callers hold p.mu.
func (p *Page) eval(ctx context.Context, js string, args ...any) (*proto.RuntimeRemoteObject, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	return p.page.Context(ctx).Eval(js, args...)
}

const rectJS = `(attr, id) => {
	const el = document.querySelector('[' + attr + '="' + CSS.escape(id) + '"]');
	if (!el) return "";
	const r = el.getBoundingClientRect();
	return JSON.stringify({x: r.x, y: r.y, w: r.width, h: r.height});
}`

// Rect returns the live bounding rect of the node carrying id.
func (p *Page) Rect(id string) (overlay.Rect, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	res, err := p.eval(context.Background(), rectJS, p.cfg.Attr, id)
	if err != nil {
		p.cfg.Logger.Debug("browser: rect", "id", id, "error", err)
		return overlay.Rect{}, false
	}
	raw := res.Value.Str()
	if raw == "" {
		return overlay.Rect{}, false
	}
	var r overlay.Rect
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return overlay.Rect{}, false
	}
	return r, true
}

// Viewport returns the emulated window rect.
func (p *Page) Viewport() overlay.Rect {
	p.mu.Lock()
	defer p.mu.Unlock()
	res, err := p.eval(context.Background(), `() => JSON.stringify({w: window.innerWidth, h: window.innerHeight})`)
	if err != nil {
		return p.viewport
	}
	var vp overlay.Rect
	if err := json.Unmarshal([]byte(res.Value.Str()), &vp); err != nil {
		return p.viewport
	}
	return vp
}

// Close closes the tab.
func (p *Page) Close() error {
	return p.page.Close()
}

var (
	_ overlay.Layout = (*Page)(nil)
	_ overlay.Syncer = (*Page)(nil)
)
