package editor

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/pagewright/autosave"
	"github.com/hazyhaar/pagewright/dom"
	"github.com/hazyhaar/pagewright/mutation"
	"github.com/hazyhaar/pagewright/overlay"
)

// Config holds all pagewright configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Autosave AutosaveConfig `yaml:"autosave"`
	History  HistoryConfig  `yaml:"history"`
	Overlay  OverlayConfig  `yaml:"overlay"`
	Resize   ResizeConfig   `yaml:"resize"`
	Identity IdentityConfig `yaml:"identity"`
	Browser  BrowserConfig  `yaml:"browser"`
	Journal  JournalConfig  `yaml:"journal"`
	OAuth    OAuthConfig    `yaml:"oauth"`

	// Catalogs lists extra element catalog files, loaded after the
	// built-in definitions.
	Catalogs []string `yaml:"catalogs"`
}

// ServerConfig controls the backend API.
type ServerConfig struct {
	Addr   string `yaml:"addr"`
	DBPath string `yaml:"db_path"`
	// BackendURL is where editor sessions save documents. Empty means
	// in-process persistence.
	BackendURL string `yaml:"backend_url"`
}

// AutosaveConfig controls background saving.
type AutosaveConfig struct {
	Interval      time.Duration `yaml:"interval"`
	MinInterval   time.Duration `yaml:"min_interval"`
	UnloadTimeout time.Duration `yaml:"unload_timeout"`
}

// HistoryConfig bounds the undo stack.
type HistoryConfig struct {
	Limit int `yaml:"limit"`
}

// OverlayConfig controls selection chrome.
type OverlayConfig struct {
	Offset        float64 `yaml:"offset"`
	Padding       float64 `yaml:"padding"`
	HandleSize    float64 `yaml:"handle_size"`
	ToolbarWidth  float64 `yaml:"toolbar_width"`
	ToolbarHeight float64 `yaml:"toolbar_height"`
}

// ResizeConfig sets the resize floor.
type ResizeConfig struct {
	MinWidth  float64 `yaml:"min_width"`
	MinHeight float64 `yaml:"min_height"`
}

// IdentityConfig names the identity attribute.
type IdentityConfig struct {
	Attr   string `yaml:"attr"`
	Prefix string `yaml:"prefix"`
}

// BrowserConfig enables a live Chrome layout.
type BrowserConfig struct {
	Enabled   bool   `yaml:"enabled"`
	RemoteURL string `yaml:"remote_url"`
}

// JournalConfig selects mutation journal sinks.
type JournalConfig struct {
	Stdout     bool   `yaml:"stdout"`
	WebhookURL string `yaml:"webhook_url"`
}

// OAuthConfig holds OAuth client registrations for external data sources.
type OAuthConfig struct {
	Google   OAuthClient `yaml:"google"`
	Airtable OAuthClient `yaml:"airtable"`
}

// OAuthClient is one provider registration.
type OAuthClient struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	RedirectURL  string   `yaml:"redirect_url"`
	Scopes       []string `yaml:"scopes"`
}

func (c *Config) defaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.DBPath == "" {
		c.Server.DBPath = "pagewright.db"
	}
	if c.Autosave.Interval <= 0 {
		c.Autosave.Interval = 30 * time.Second
	}
	if c.Autosave.MinInterval <= 0 {
		c.Autosave.MinInterval = 30 * time.Second
	}
	if c.Autosave.UnloadTimeout <= 0 {
		c.Autosave.UnloadTimeout = 2 * time.Second
	}
	if c.History.Limit <= 0 {
		c.History.Limit = mutation.DefaultHistoryLimit
	}
	if c.Overlay.Offset <= 0 {
		c.Overlay.Offset = 8
	}
	if c.Overlay.Padding <= 0 {
		c.Overlay.Padding = 4
	}
	if c.Overlay.HandleSize <= 0 {
		c.Overlay.HandleSize = 10
	}
	if c.Overlay.ToolbarWidth <= 0 {
		c.Overlay.ToolbarWidth = 240
	}
	if c.Overlay.ToolbarHeight <= 0 {
		c.Overlay.ToolbarHeight = 36
	}
	if c.Resize.MinWidth <= 0 {
		c.Resize.MinWidth = 20
	}
	if c.Resize.MinHeight <= 0 {
		c.Resize.MinHeight = 20
	}
	if c.Identity.Attr == "" {
		c.Identity.Attr = dom.DefaultAttr
	}
	if c.Identity.Prefix == "" {
		c.Identity.Prefix = dom.DefaultPrefix
	}
}

// DefaultConfig returns a config with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.defaults()
	return cfg
}

// LoadConfigFile reads a YAML config file and applies defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("editor: read config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("editor: parse config %s: %w", path, err)
	}
	cfg.defaults()
	return cfg, nil
}

// OverlayOptions converts the overlay section.
func (c *Config) OverlayOptions() overlay.Options {
	return overlay.Options{
		Toolbar:    overlay.Size{W: c.Overlay.ToolbarWidth, H: c.Overlay.ToolbarHeight},
		Offset:     c.Overlay.Offset,
		Padding:    c.Overlay.Padding,
		HandleSize: c.Overlay.HandleSize,
	}
}

// AutosaveOptions converts the autosave section.
func (c *Config) AutosaveOptions() autosave.Config {
	return autosave.Config{
		Interval:      c.Autosave.Interval,
		MinInterval:   c.Autosave.MinInterval,
		UnloadTimeout: c.Autosave.UnloadTimeout,
	}
}
