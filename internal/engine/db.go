package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/tuannm99/novasql/internal/bufferpool"
	"github.com/tuannm99/novasql/internal/heap"
	"github.com/tuannm99/novasql/internal/record"
	"github.com/tuannm99/novasql/internal/storage"
)

var (
	ErrDatabaseClosed = errors.New("novasql: database is closed")
	ErrInvalidPageID  = errors.New("novasql: invalid page ID")
)

type DatabaseOperation interface {
	CreateTable(name string, schema record.Schema) (*heap.Table, error)
	OpenTable(name string) (*heap.Table, error)
	Close() error
}

type TableMeta struct {
	Name      string        `json:"name"`
	Schema    record.Schema `json:"schema"`
	PageCount uint32        `json:"page_count"`
	Indexes   []IndexMeta   `json:"indexes,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

var _ DatabaseOperation = (*Database)(nil)

type Database struct {
	DataDir string
	SM      *storage.StorageManager

	// poolCapacity/replacerK/bucketSize size every buffer pool this Database
	// hands out (per-table Pools and the shared GlobalPool alike), operator
	// tunable the same way page_size already is via NovaSqlConfig.BufferPool.
	poolCapacity int
	replacerK    int
	bucketSize   int

	mu      sync.Mutex
	closed  bool
	current string // selected sub-database; "" means DataDir itself
	gp      *bufferpool.GlobalPool
}

// NewDatabase creates a new database handle without touching the
// filesystem, sizing its buffer pools from bufferpool's package defaults.
func NewDatabase(dataDir string) *Database {
	return NewDatabaseWithPoolConfig(dataDir, bufferpool.DefaultCapacity, bufferpool.DefaultReplacerK, 0)
}

// NewDatabaseWithPoolConfig is NewDatabase with explicit buffer pool sizing,
// for callers (cmd/server) that loaded a NovaSqlConfig.BufferPool section.
// bucketSize <= 0 uses the hashtable package's own default.
func NewDatabaseWithPoolConfig(dataDir string, poolCapacity, replacerK, bucketSize int) *Database {
	if poolCapacity <= 0 {
		poolCapacity = bufferpool.DefaultCapacity
	}
	if replacerK <= 0 {
		replacerK = bufferpool.DefaultReplacerK
	}
	return &Database{
		DataDir:      dataDir,
		SM:           storage.NewStorageManager(),
		poolCapacity: poolCapacity,
		replacerK:    replacerK,
		bucketSize:   bucketSize,
	}
}

func (db *Database) ensureOpen() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrDatabaseClosed
	}
	return nil
}

// globalPool lazily creates the buffer pool shared across every FileSet this
// Database hands out views over (currently: BTree indexes, opened ad hoc per
// query rather than held for a table's lifetime like heap tables' own Pool).
func (db *Database) globalPool() *bufferpool.GlobalPool {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.gp == nil {
		db.gp = bufferpool.NewGlobalPoolWithConfig(db.SM, db.poolCapacity, db.replacerK, db.bucketSize)
	}
	return db.gp
}

// viewFor adapts a FileSet onto the shared global pool.
func (db *Database) viewFor(fs storage.FileSet) bufferpool.Manager {
	return db.globalPool().View(fs)
}

// BufferView exposes viewFor for callers outside the package (the SQL
// executor, evaluating index lookups against an arbitrary FileSet).
func (db *Database) BufferView(fs storage.FileSet) bufferpool.Manager {
	return db.viewFor(fs)
}

// FlushAllPools flushes every dirty frame in the shared global pool.
func (db *Database) FlushAllPools() error {
	db.mu.Lock()
	gp := db.gp
	db.mu.Unlock()
	if gp == nil {
		return nil
	}
	return gp.FlushAll()
}

// flushAndDropFileSet flushes and evicts every frame belonging to fs from
// the global pool before the caller deletes fs's on-disk segments.
func (db *Database) flushAndDropFileSet(fs storage.FileSet) error {
	db.mu.Lock()
	gp := db.gp
	db.mu.Unlock()
	if gp == nil {
		return nil
	}
	return gp.DropFileSet(fs)
}

func (db *Database) currentDB() string {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.current
}

// CreateDatabase creates a named sub-database (a "tables" directory rooted
// at DataDir/name). It does not select it.
func (db *Database) CreateDatabase(name string) error {
	if err := db.ensureOpen(); err != nil {
		return err
	}
	if err := validateIdent(name); err != nil {
		return err
	}
	return os.MkdirAll(filepath.Join(db.DataDir, name, "tables"), 0o755)
}

// DropDatabase removes a named sub-database and all of its tables. If it is
// the currently selected database, the selection reverts to DataDir itself.
func (db *Database) DropDatabase(name string) (any, error) {
	if err := db.ensureOpen(); err != nil {
		return nil, err
	}
	if err := validateIdent(name); err != nil {
		return nil, err
	}
	db.mu.Lock()
	if db.current == name {
		db.current = ""
	}
	db.mu.Unlock()
	return nil, os.RemoveAll(filepath.Join(db.DataDir, name))
}

// SelectDatabase switches the active sub-database subsequent CreateTable /
// OpenTable / index calls operate on.
func (db *Database) SelectDatabase(name string) (any, error) {
	if err := db.ensureOpen(); err != nil {
		return nil, err
	}
	if err := validateIdent(name); err != nil {
		return nil, err
	}
	dir := filepath.Join(db.DataDir, name)
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("engine: database %q: %w", name, err)
	}
	db.mu.Lock()
	db.current = name
	db.mu.Unlock()
	return nil, nil
}

// validateIdent applies the same identifier rules the SQL parser enforces,
// for names that reach engine methods directly (outside SQL text).
func validateIdent(s string) error {
	if s == "" {
		return fmt.Errorf("engine: empty identifier")
	}
	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return fmt.Errorf("engine: invalid identifier %q", s)
			}
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return fmt.Errorf("engine: invalid identifier %q", s)
		}
	}
	return nil
}

func (db *Database) tableDir() string {
	return filepath.Join(db.DataDir, db.currentDB(), "tables")
}

// TableDir exposes tableDir to callers outside the package (index FileSets
// live alongside table segments).
func (db *Database) TableDir() string {
	return db.tableDir()
}

func (db *Database) tableMetaPath(name string) string {
	return filepath.Join(db.tableDir(), name+".meta.json")
}

// helper: return FileSet for a given table name.
func (db *Database) tableFileSet(name string) storage.FileSet {
	return storage.LocalFileSet{
		Dir:  db.tableDir(),
		Base: name,
	}
}

// writeTableMeta overwrites the meta file for a given table.
func (db *Database) writeTableMeta(meta *TableMeta) error {
	path := db.tableMetaPath(meta.Name)

	if err := os.MkdirAll(db.tableDir(), 0o755); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// readTableMeta loads table metadata from JSON file.
func (db *Database) readTableMeta(name string) (*TableMeta, error) {
	path := db.tableMetaPath(name)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var meta TableMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (db *Database) CreateTable(name string, schema record.Schema) (*heap.Table, error) {
	fs := db.tableFileSet(name)
	bp := bufferpool.NewPoolWithConfig(db.SM, fs, db.poolCapacity, db.replacerK, db.bucketSize)

	meta := &TableMeta{
		Name:      name,
		Schema:    schema,
		PageCount: 0,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.writeTableMeta(meta); err != nil {
		return nil, err
	}

	// Overflow data for this table is stored in a separate fileset with a
	// deterministic naming convention: "<table>_ovf".
	overflowFS := storage.LocalFileSet{
		Dir:  db.tableDir(),
		Base: name + "_ovf",
	}
	ovf := storage.NewOverflowManager(db.SM, overflowFS)

	tbl := heap.NewTable(name, schema, db.SM, fs, bp, ovf, 0)
	return tbl, nil
}

func (db *Database) OpenTable(name string) (*heap.Table, error) {
	fs := db.tableFileSet(name)

	meta, err := db.readTableMeta(name)
	if err != nil {
		return nil, err
	}

	// Count pages on disk as the single source of truth.
	pageCount, err := db.SM.CountPages(fs)
	if err != nil {
		return nil, err
	}

	// Refresh meta PageCount snapshot.
	meta.PageCount = pageCount
	meta.UpdatedAt = time.Now()

	// Best-effort update; if this fails, we still can open the table.
	if err := db.writeTableMeta(meta); err != nil {
		slog.Info("open table:: error write table meta", "err", err)
	}

	bp := bufferpool.NewPoolWithConfig(db.SM, fs, db.poolCapacity, db.replacerK, db.bucketSize)

	// Rebuild the overflow manager for this table based on the same naming
	// convention used in CreateTable.
	overflowFS := storage.LocalFileSet{
		Dir:  db.tableDir(),
		Base: name + "_ovf",
	}
	ovf := storage.NewOverflowManager(db.SM, overflowFS)

	tbl := heap.NewTable(name, meta.Schema, db.SM, fs, bp, ovf, pageCount)
	return tbl, nil
}

func (db *Database) Close() error {
	err := db.FlushAllPools()

	db.mu.Lock()
	db.closed = true
	db.mu.Unlock()

	return err
}

// DropTable removes a table's meta file, heap segments and overflow
// segments. Any cached pages for either FileSet are flushed out of the
// global pool first so a later CreateTable with the same name never serves
// stale frames.
func (db *Database) DropTable(name string) error {
	if err := db.ensureOpen(); err != nil {
		return err
	}

	fs := db.tableFileSet(name)
	overflowFS := storage.LocalFileSet{Dir: db.tableDir(), Base: name + "_ovf"}

	if err := db.flushAndDropFileSet(fs); err != nil {
		return err
	}
	if err := db.flushAndDropFileSet(overflowFS); err != nil {
		return err
	}

	if err := storage.RemoveAllSegments(fs.(storage.LocalFileSet)); err != nil {
		return err
	}
	if err := storage.RemoveAllSegments(overflowFS); err != nil {
		return err
	}

	if err := os.Remove(db.tableMetaPath(name)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ListTables reads every table's meta file under the current sub-database.
// Missing or unreadable files are skipped rather than failing the whole
// listing (best-effort, mirroring OpenTable's own best-effort meta refresh).
func (db *Database) ListTables() ([]*TableMeta, error) {
	if err := db.ensureOpen(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(db.tableDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	const suffix = ".meta.json"
	var metas []*TableMeta
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), suffix)
		meta, err := db.readTableMeta(name)
		if err != nil {
			slog.Warn("list tables: skipping unreadable meta file", "file", e.Name(), "err", err)
			continue
		}
		metas = append(metas, meta)
	}
	return metas, nil
}

// Not supported yet: we do not have a real ALTER TABLE that rewrites data.
// UpdateTableSchema only updates the meta file schema definition.
func (db *Database) UpdateTableSchema(name string, newSchema record.Schema) error {
	meta, err := db.readTableMeta(name)
	if err != nil {
		return err
	}

	meta.Schema = newSchema
	meta.UpdatedAt = time.Now()

	return db.writeTableMeta(meta)
}

// SyncTableMetaPageCount updates the table meta when only PageCount changes.
func (db *Database) SyncTableMetaPageCount(tbl *heap.Table) error {
	meta, err := db.readTableMeta(tbl.Name)
	if err != nil {
		return err
	}
	meta.PageCount = tbl.PageCount
	return db.writeTableMeta(meta)
}
