//go:build cgo

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quarry-dev/quarry/internal/graph"
	"github.com/quarry-dev/quarry/internal/mcptools"
)

func saveKuzu(ctx context.Context, svc *mcptools.Service, dbPath string) error {
	store, err := graph.NewKuzuFileStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.SaveGraph(ctx, svc.Graph()); err != nil {
		return err
	}

	files, rels, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("kuzu stats: %w", err)
	}
	slog.Info("graph persisted", "path", dbPath, "files", files, "relationships", rels)
	return nil
}
