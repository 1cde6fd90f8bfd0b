package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/hazyhaar/pagewright/editor"
	"github.com/hazyhaar/pagewright/export"
)

func runExport(ctx context.Context, cfg *editor.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	projectID := fs.String("project", "", "project id")
	format := fs.String("format", "html", "html, md or json")
	base := fs.String("base", "", "base URL for Markdown links")
	out := fs.String("o", "", "output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *projectID == "" {
		return errors.New("export: -project is required")
	}

	be, closeFn, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	src, err := be.Load(ctx, *projectID)
	if err != nil {
		return err
	}
	b, err := export.New().ExportHTML(src, export.Options{
		BaseURL:      *base,
		IdentityAttr: cfg.Identity.Attr,
	})
	if err != nil {
		return err
	}

	w := stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		defer f.Close()
		w = f
	}
	return writeBundle(w, b, *format)
}

func writeBundle(w io.Writer, b *export.Bundle, format string) error {
	switch format {
	case "html":
		_, err := io.WriteString(w, b.HTML)
		return err
	case "md", "markdown":
		_, err := fmt.Fprintln(w, b.Markdown)
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(b)
	default:
		return fmt.Errorf("export: unknown format %q", format)
	}
}
