// Command pagewright runs the project backend, exports projects and serves
// editor sessions to MCP clients.
//
//	pagewright [-config file] [-log-level level] serve
//	pagewright [-config file] export -project ID [-format html|md|json] [-o file]
//	pagewright [-config file] mcp -project ID
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/pagewright/client"
	"github.com/hazyhaar/pagewright/editor"
	"github.com/hazyhaar/pagewright/internal/browser"
	"github.com/hazyhaar/pagewright/journal"
	"github.com/hazyhaar/pagewright/projectapi"
)

const version = "0.3.0"

func main() {
	fs := flag.NewFlagSet("pagewright", flag.ExitOnError)
	cfgPath := fs.String("config", "", "YAML config file")
	logLevel := fs.String("log-level", "info", "debug, info, warn or error")
	fs.Usage = usage(fs)
	fs.Parse(os.Args[1:])

	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(2)
	}
	cmd, args := fs.Arg(0), fs.Args()[1:]

	// stdout belongs to the MCP transport in mcp mode.
	logOut := io.Writer(os.Stdout)
	if cmd == "mcp" || cmd == "export" {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{Level: parseLevel(*logLevel)}))
	slog.SetDefault(logger)

	cfg := editor.DefaultConfig()
	if *cfgPath != "" {
		var err error
		if cfg, err = editor.LoadConfigFile(*cfgPath); err != nil {
			slog.Error("config", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	switch cmd {
	case "serve":
		err = runServe(ctx, cfg, logger)
	case "export":
		err = runExport(ctx, cfg, args, os.Stdout)
	case "mcp":
		err = runMCP(ctx, cfg, args, logger)
	case "version":
		fmt.Println("pagewright", version)
	default:
		fs.Usage()
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error(cmd, "error", err)
		os.Exit(1)
	}
}

func usage(fs *flag.FlagSet) func() {
	return func() {
		fmt.Fprintln(fs.Output(), "usage: pagewright [flags] serve|export|mcp|version [args]")
		fs.PrintDefaults()
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openBackend picks the remote API when one is configured, else the local
// store. The returned close func releases the store.
func openBackend(cfg *editor.Config) (backend, func(), error) {
	if cfg.Server.BackendURL != "" {
		return remoteBackend{c: client.New(cfg.Server.BackendURL)}, func() {}, nil
	}
	st, err := projectapi.OpenStore(cfg.Server.DBPath)
	if err != nil {
		return nil, nil, err
	}
	return storeBackend{st: st}, func() { st.Close() }, nil
}

// journalSinks builds the configured mutation sinks plus extra. Returns
// nil when there is nothing to deliver to.
func journalSinks(cfg *editor.Config, stdout io.Writer, logger *slog.Logger, extra ...journal.Sink) journal.Sink {
	sinks := extra
	if cfg.Journal.Stdout {
		sinks = append(sinks, journal.NewStdout(stdout))
	}
	if cfg.Journal.WebhookURL != "" {
		sinks = append(sinks, journal.NewWebhook(cfg.Journal.WebhookURL, journal.WithWebhookLogger(logger)))
	}
	if len(sinks) == 0 {
		return nil
	}
	return journal.NewRouter(logger, sinks...)
}

func launchBrowser(ctx context.Context, cfg *editor.Config, logger *slog.Logger) (*browser.Browser, error) {
	if !cfg.Browser.Enabled {
		return nil, nil
	}
	return browser.Launch(ctx, browser.Config{
		RemoteURL: cfg.Browser.RemoteURL,
		Viewport:  editor.DefaultViewport,
		Attr:      cfg.Identity.Attr,
		Logger:    logger,
	})
}
