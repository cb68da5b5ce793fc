package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yomu-hq/yomu-reader/internal/app"
	"github.com/yomu-hq/yomu-reader/internal/config"
	"github.com/yomu-hq/yomu-reader/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "opmltool failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	importPath := flag.String("import", "", "OPML file to import subscriptions from")
	exportPath := flag.String("export", "", "file to export the current subscriptions to")
	flag.Parse()

	if (*importPath == "") == (*exportPath == "") {
		return fmt.Errorf("exactly one of -import or -export is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if _, err := logger.Init(cfg.LogLevel); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reader, err := app.New(cfg, logger.ZapLogger{})
	if err != nil {
		return fmt.Errorf("init reader: %w", err)
	}
	defer reader.Close()

	if *importPath != "" {
		raw, err := os.ReadFile(*importPath)
		if err != nil {
			return fmt.Errorf("read opml file: %w", err)
		}
		added, err := reader.ImportOPML(ctx, raw)
		if err != nil {
			return fmt.Errorf("import opml: %w", err)
		}
		fmt.Printf("imported %d feeds\n", added)
		return nil
	}

	doc, err := reader.ExportOPML()
	if err != nil {
		return fmt.Errorf("export opml: %w", err)
	}
	if err := os.WriteFile(*exportPath, []byte(doc), 0o644); err != nil {
		return fmt.Errorf("write opml file: %w", err)
	}
	fmt.Printf("exported subscriptions to %s\n", *exportPath)
	return nil
}
