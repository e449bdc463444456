package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quarry-dev/quarry/internal/config"
	"github.com/quarry-dev/quarry/internal/mcptools"
	"github.com/quarry-dev/quarry/internal/watch"
)

// CLI flags parsed from command line.
type cliFlags struct {
	ProjectRoot string
	Export      string
	Mermaid     string
	Kuzu        string
	ServeMCP    bool
	Watch       bool
	NoCache     bool
	Verbose     bool
	Version     bool
}

// version is set by goreleaser at build time.
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var flags cliFlags

	fs := flag.NewFlagSet("quarry", flag.ContinueOnError)
	fs.StringVar(&flags.ProjectRoot, "project-root", ".", "path to the Python project")
	fs.StringVar(&flags.Export, "export", "", "write the relationship graph as JSON to this path ('-' for stdout)")
	fs.StringVar(&flags.Mermaid, "mermaid", "", "write a Mermaid flowchart to this path ('-' for stdout)")
	fs.StringVar(&flags.Kuzu, "kuzu", "", "persist the graph snapshot into a KuzuDB at this path")
	fs.BoolVar(&flags.ServeMCP, "serve-mcp", false, "run as MCP server on stdio")
	fs.BoolVar(&flags.Watch, "watch", false, "keep running and re-analyze on file changes")
	fs.BoolVar(&flags.NoCache, "no-cache", false, "bypass the symbol cache")
	fs.BoolVar(&flags.Verbose, "verbose", false, "enable debug logging")
	fs.BoolVar(&flags.Version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if flags.Version {
		fmt.Println(version)
		return nil
	}

	level := slog.LevelInfo
	if flags.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load(flags.ProjectRoot)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flags.ServeMCP {
		server := mcptools.NewServer(flags.ProjectRoot, cfg)
		return mcptools.RunStdio(ctx, server)
	}

	svc := mcptools.NewService(flags.ProjectRoot, cfg)
	if cfg.CachePath != "" {
		if err := svc.Cache().Load(cfg.CachePath); err != nil {
			slog.Debug("no cache loaded", "path", cfg.CachePath, "error", err)
		}
	}

	start := time.Now()
	result, err := svc.Rebuild(ctx, !flags.NoCache)
	if err != nil {
		return err
	}
	slog.Info("analysis complete",
		"files", result.Succeeded,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"relationships", svc.Graph().RelationshipCount(),
		"elapsed", time.Since(start).Round(time.Millisecond))

	if cfg.CachePath != "" {
		if err := svc.Cache().Persist(cfg.CachePath); err != nil {
			slog.Warn("cache persist failed", "error", err)
		}
	}

	if flags.Export != "" {
		if err := writeExport(svc, flags.Export); err != nil {
			return err
		}
	}
	if flags.Mermaid != "" {
		if err := writeOut(flags.Mermaid, []byte(svc.Graph().Mermaid())); err != nil {
			return err
		}
	}
	if flags.Kuzu != "" {
		if err := saveKuzu(ctx, svc, flags.Kuzu); err != nil {
			return err
		}
	}

	if flags.Watch {
		return runWatch(ctx, svc, flags.ProjectRoot, cfg)
	}
	return nil
}

func writeExport(svc *mcptools.Service, dest string) error {
	data, err := json.MarshalIndent(svc.Graph().Export(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal export: %w", err)
	}
	return writeOut(dest, append(data, '\n'))
}

func writeOut(dest string, data []byte) error {
	if dest == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}

func runWatch(ctx context.Context, svc *mcptools.Service, root string, cfg *config.Config) error {
	w := watch.New(root, cfg.ExcludeDirs, time.Duration(cfg.DebounceMs)*time.Millisecond, watch.Events{
		OnChange: func(paths []string) {
			svc.ReanalyzeFiles(paths)
			slog.Info("re-analyzed", "files", len(paths))
		},
		OnRemove: func(paths []string) {
			svc.RemoveFiles(paths)
			slog.Info("removed", "files", len(paths))
		},
	})

	err := w.Run(ctx)
	if err == context.Canceled {
		return nil
	}
	return err
}
