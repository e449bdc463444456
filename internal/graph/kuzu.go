//go:build cgo

package graph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	kuzu "github.com/kuzudb/go-kuzu"
)

// KuzuStore persists relationship-graph snapshots into a KuzuDB database
// so the graph survives across sessions and can be queried with Cypher.
// It requires CGO because the go-kuzu driver wraps KuzuDB's C library.
type KuzuStore struct {
	db   *kuzu.Database
	conn *kuzu.Connection
}

// NewKuzuFileStore opens (or creates) a file-based KuzuDB at dbPath.
// KuzuDB creates the leaf directory itself; only the parent must exist.
func NewKuzuFileStore(dbPath string) (*KuzuStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
	}
	cfg := kuzu.DefaultSystemConfig()
	db, err := kuzu.OpenDatabase(dbPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{db: db, conn: conn}, nil
}

// Close releases the KuzuDB connection and database.
func (s *KuzuStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// ddlStatements defines the Cypher DDL executed by InitSchema. The node
// table must precede the relationship table. Marker targets (<stdlib:X>
// and friends) are stored as SourceFile rows with marker=true.
var ddlStatements = []string{
	`CREATE NODE TABLE IF NOT EXISTS SourceFile(
		path STRING,
		unparseable BOOLEAN,
		marker BOOLEAN,
		relationship_count INT64,
		PRIMARY KEY(path)
	)`,
	`CREATE REL TABLE IF NOT EXISTS RELATES(
		FROM SourceFile TO SourceFile,
		type STRING,
		line INT64,
		source_symbol STRING,
		target_symbol STRING,
		target_line INT64
	)`,
}

// InitSchema creates the node and relationship tables if absent.
func (s *KuzuStore) InitSchema(_ context.Context) error {
	for _, stmt := range ddlStatements {
		res, err := s.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("kuzu: init schema: %w", err)
		}
		res.Close()
	}
	return nil
}

// SaveGraph replaces the stored snapshot with the current graph state.
func (s *KuzuStore) SaveGraph(ctx context.Context, g *Graph) error {
	if err := s.InitSchema(ctx); err != nil {
		return err
	}
	if err := s.exec("MATCH (n:SourceFile) DETACH DELETE n", nil); err != nil {
		return fmt.Errorf("kuzu: clear snapshot: %w", err)
	}

	export := g.Export()

	seen := make(map[string]bool, len(export.Nodes))
	for _, node := range export.Nodes {
		seen[node.Path] = true
		err := s.exec(
			`CREATE (f:SourceFile {path: $path, unparseable: $unparseable, marker: false, relationship_count: $count})`,
			map[string]any{
				"path":        node.Path,
				"unparseable": node.Unparseable,
				"count":       int64(node.RelationshipCount),
			},
		)
		if err != nil {
			return err
		}
	}

	// Marker and otherwise-unanalyzed targets still need nodes for the
	// relationship table's foreign ends.
	for _, rel := range export.Relationships {
		if seen[rel.TargetFile] {
			continue
		}
		seen[rel.TargetFile] = true
		err := s.exec(
			`CREATE (f:SourceFile {path: $path, unparseable: false, marker: $marker, relationship_count: 0})`,
			map[string]any{
				"path":   rel.TargetFile,
				"marker": IsMarkerTarget(rel.TargetFile),
			},
		)
		if err != nil {
			return err
		}
	}

	for _, rel := range export.Relationships {
		err := s.exec(
			`MATCH (a:SourceFile {path: $src}), (b:SourceFile {path: $dst})
			 CREATE (a)-[:RELATES {type: $type, line: $line, source_symbol: $ss, target_symbol: $ts, target_line: $tl}]->(b)`,
			map[string]any{
				"src":  rel.SourceFile,
				"dst":  rel.TargetFile,
				"type": string(rel.Type),
				"line": int64(rel.LineNumber),
				"ss":   rel.SourceSymbol,
				"ts":   rel.TargetSymbol,
				"tl":   int64(rel.TargetLine),
			},
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// Stats returns the stored node and edge counts.
func (s *KuzuStore) Stats(_ context.Context) (files, relationships int, err error) {
	rows, err := s.query("MATCH (n:SourceFile) RETURN count(n)", nil)
	if err != nil {
		return 0, 0, err
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		files = toInt(rows[0][0])
	}

	rows, err = s.query("MATCH ()-[r:RELATES]->() RETURN count(r)", nil)
	if err != nil {
		return 0, 0, err
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		relationships = toInt(rows[0][0])
	}
	return files, relationships, nil
}

// exec runs a parameterized Cypher statement that produces no rows.
func (s *KuzuStore) exec(cypher string, params map[string]any) error {
	if len(params) == 0 {
		res, err := s.conn.Query(cypher)
		if err != nil {
			return fmt.Errorf("kuzu: query: %w", err)
		}
		res.Close()
		return nil
	}

	stmt, err := s.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := s.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("kuzu: execute: %w", err)
	}
	res.Close()
	return nil
}

// query runs a Cypher statement and collects all result rows, each a
// []any in column order.
func (s *KuzuStore) query(cypher string, params map[string]any) ([][]any, error) {
	var res *kuzu.QueryResult
	var err error

	if len(params) == 0 {
		res, err = s.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = s.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

// toInt coerces KuzuDB's typed any values to int.
func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case int32:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
