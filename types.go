package novasql

import "github.com/tuannm99/novasql/internal/engine"

// Package novasql is the top-level facade for NovaSQL engine. Fixing golangci-lint
type Database = engine.Database

type TableMeta = engine.TableMeta

type IndexKind = engine.IndexKind

type IndexMeta = engine.IndexMeta

const IndexKindBTree = engine.IndexKindBTree

// NewDatabase opens (without touching the filesystem yet) the database
// rooted at dataDir.
func NewDatabase(dataDir string) *Database {
	return engine.NewDatabase(dataDir)
}

// NewDatabaseWithPoolConfig is NewDatabase with explicit buffer pool sizing,
// e.g. from a loaded NovaSqlConfig.BufferPool section.
func NewDatabaseWithPoolConfig(dataDir string, poolCapacity, replacerK, bucketSize int) *Database {
	return engine.NewDatabaseWithPoolConfig(dataDir, poolCapacity, replacerK, bucketSize)
}
