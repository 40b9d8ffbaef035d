package bufferpool

import "github.com/tuannm99/novasql/internal/storage"

// BufferPool is the multi-relation counterpart of Manager: a single pool
// shared across every FileSet, keyed on (FileSet, PageID) pairs.
type BufferPool interface {
	GetPage(fs storage.FileSet, pageID uint32) (*storage.Page, error)
	Unpin(fs storage.FileSet, page *storage.Page, dirty bool) error
	FlushAll() error
}

var _ BufferPool = (*GlobalPool)(nil)
