// Package autosave persists a dirty document in the background. A periodic
// tick saves only when there is something to save, nothing else is saving,
// and the minimum interval since the last successful save has elapsed.
// Background failures are logged and retried on a later tick; manual saves
// report their errors.
package autosave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State is the coordinator state.
type State int

const (
	Idle    State = iota // clean
	Pending              // dirty, waiting for the next eligible tick
	Saving               // a save is in flight
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Saving:
		return "saving"
	default:
		return "idle"
	}
}

// ErrSaveInFlight is returned by Save while another manual save runs.
var ErrSaveInFlight = errors.New("autosave: manual save already in flight")

// Snapshot is the serialised document handed to a Saver.
type Snapshot struct {
	HTML     string
	Revision uint64
}

// Source is the document being saved.
type Source interface {
	Dirty() bool
	Snapshot() (Snapshot, error)
	// MarkSaved is called with the revision of a persisted snapshot.
	MarkSaved(rev uint64)
}

// Saver persists snapshots.
type Saver interface {
	Save(ctx context.Context, snap Snapshot) error
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(ctx context.Context, snap Snapshot) error

func (f SaverFunc) Save(ctx context.Context, snap Snapshot) error { return f(ctx, snap) }

// Config controls pacing.
type Config struct {
	// Interval is the tick period. Default: 30s.
	Interval time.Duration
	// MinInterval is the minimum time between successful saves. Default: 30s.
	MinInterval time.Duration
	// UnloadTimeout bounds the best-effort save on unload. Default: 2s.
	UnloadTimeout time.Duration
}

func (c *Config) defaults() {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.MinInterval <= 0 {
		c.MinInterval = 30 * time.Second
	}
	if c.UnloadTimeout <= 0 {
		c.UnloadTimeout = 2 * time.Second
	}
}

// Coordinator paces saves of one Source. Its lock is never held while
// calling into the Source, which has a lock of its own.
type Coordinator struct {
	src    Source
	saver  Saver
	config Config
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	lastSave time.Time
	auto     bool // auto-save in flight
	manual   bool // manual save in flight
}

// New creates a coordinator. The minimum interval counts from creation, so
// the first auto-save happens no earlier than MinInterval after opening.
func New(src Source, saver Saver, cfg Config, logger *slog.Logger) *Coordinator {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{src: src, saver: saver, config: cfg, logger: logger, now: time.Now}
	c.lastSave = c.now()
	return c
}

// SetClock replaces the time source and resets the reference time.
func (c *Coordinator) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.lastSave = now()
	c.mu.Unlock()
}

// State reports the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	busy := c.auto || c.manual
	c.mu.Unlock()
	if busy {
		return Saving
	}
	if c.src.Dirty() {
		return Pending
	}
	return Idle
}

// LastSave returns the time of the last successful save (or creation).
func (c *Coordinator) LastSave() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSave
}

// Run ticks every Interval until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) {
	c.logger.Info("autosave: started",
		"interval", c.config.Interval,
		"min_interval", c.config.MinInterval)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("autosave: stopped")
			return
		case <-ticker.C:
			c.Tick(ctx)
		}
	}
}

// Tick attempts an auto-save and reports whether one succeeded.
func (c *Coordinator) Tick(ctx context.Context) bool {
	if !c.src.Dirty() {
		return false
	}
	c.mu.Lock()
	if c.auto || c.manual || c.now().Sub(c.lastSave) < c.config.MinInterval {
		c.mu.Unlock()
		return false
	}
	c.auto = true
	c.mu.Unlock()

	err := c.run(ctx, func() { c.auto = false })
	if err != nil {
		c.logger.Warn("autosave: save failed", "error", err)
		return false
	}
	return true
}

// Save performs a manual save, regardless of pacing, and returns its error.
func (c *Coordinator) Save(ctx context.Context) error {
	c.mu.Lock()
	if c.manual {
		c.mu.Unlock()
		return ErrSaveInFlight
	}
	c.manual = true
	c.mu.Unlock()

	if err := c.run(ctx, func() { c.manual = false }); err != nil {
		return fmt.Errorf("autosave: manual save: %w", err)
	}
	return nil
}

// BeforeUnload handles page unload. When the document is dirty and no save
// is in flight it makes a best-effort save bounded by UnloadTimeout and
// returns true, asking the shell to show the unsaved-changes prompt.
func (c *Coordinator) BeforeUnload(ctx context.Context) bool {
	if !c.src.Dirty() {
		return false
	}
	c.mu.Lock()
	if c.auto || c.manual {
		c.mu.Unlock()
		return false
	}
	c.auto = true
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.config.UnloadTimeout)
	defer cancel()
	if err := c.run(ctx, func() { c.auto = false }); err != nil {
		c.logger.Warn("autosave: unload save failed", "error", err)
	}
	return true
}

// run snapshots, saves and records success. done clears the in-flight
// flag under the lock.
func (c *Coordinator) run(ctx context.Context, done func()) error {
	snap, err := c.src.Snapshot()
	if err == nil {
		err = c.saver.Save(ctx, snap)
	}
	if err == nil {
		c.src.MarkSaved(snap.Revision)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	done()
	if err != nil {
		return err
	}
	c.lastSave = c.now()
	c.logger.Debug("autosave: saved", "revision", snap.Revision)
	return nil
}
