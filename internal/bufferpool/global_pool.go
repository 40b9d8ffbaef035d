package bufferpool

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sourcegraph/conc"

	"github.com/tuannm99/novasql/internal/hashtable"
	"github.com/tuannm99/novasql/internal/replacer"
	"github.com/tuannm99/novasql/internal/storage"
	"github.com/tuannm99/novasql/internal/wal"
)

// ErrUnsupportedFileSet is returned when GlobalPool cannot work with a FileSet implementation.
var ErrUnsupportedFileSet = errors.New("bufferpool: unsupported FileSet (global pool requires LocalFileSet)")

// PageTag uniquely identifies a page in the global pool.
type PageTag struct {
	FSKey  string
	PageID uint32
}

func pageTagHash(tag PageTag) uint64 {
	h := uint64(14695981039346656037)
	for i := 0; i < len(tag.FSKey); i++ {
		h ^= uint64(tag.FSKey[i])
		h *= 1099511628211
	}
	h ^= uint64(tag.PageID)
	h *= 1099511628211
	return h
}

// GlobalPool is a single shared buffer pool for ALL relations (heap/index/ovf),
// mimicking PostgreSQL's shared_buffers: one directory and one LRU-K replacer
// cover every FileSet registered with it.
type GlobalPool struct {
	sm *storage.StorageManager
	wm *wal.Manager // present for future redo/undo hookup; not consulted on the read/write path

	mu     sync.Mutex
	frames []*globalFrame // len == capacity, nil == free slot
	table  *hashtable.Directory[PageTag, int]
	repl   Replacer
}

// globalFrame is stored in GlobalPool.frames. FS is required to flush/evict
// correctly since pages from many relations share one frame array.
type globalFrame struct {
	Tag   PageTag
	FS    storage.LocalFileSet
	Page  *storage.Page
	Dirty bool
	Pin   int32
}

// NewGlobalPool creates a capacity-frame pool shared across every FileSet
// later passed to GetPage, using LRU-K with k=DefaultReplacerK. An optional
// *wal.Manager may be supplied so callers that already opened a log can
// hand it to the pool for later use.
func NewGlobalPool(sm *storage.StorageManager, capacity int, wm ...*wal.Manager) *GlobalPool {
	return NewGlobalPoolWithReplacerK(sm, capacity, DefaultReplacerK, wm...)
}

// NewGlobalPoolWithReplacerK is NewGlobalPool with an explicit LRU-K
// parameter, for callers that size the replacer from a loaded config
// rather than taking the default.
func NewGlobalPoolWithReplacerK(sm *storage.StorageManager, capacity, k int, wm ...*wal.Manager) *GlobalPool {
	return NewGlobalPoolWithConfig(sm, capacity, k, 0, wm...)
}

// NewGlobalPoolWithConfig is NewGlobalPoolWithReplacerK with an explicit
// page-table bucket size too (bucketSize <= 0 uses the hashtable package's
// own default).
func NewGlobalPoolWithConfig(sm *storage.StorageManager, capacity, k, bucketSize int, wm ...*wal.Manager) *GlobalPool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if k <= 0 {
		k = DefaultReplacerK
	}
	gp := &GlobalPool{
		sm:     sm,
		frames: make([]*globalFrame, capacity),
		table:  hashtable.New[PageTag, int](bucketSize, pageTagHash),
		repl:   replacer.New(capacity, k),
	}
	if len(wm) > 0 {
		gp.wm = wm[0]
	}
	return gp
}

func (g *GlobalPool) acquireFrame() (int, error) {
	for i, f := range g.frames {
		if f == nil {
			return i, nil
		}
	}

	victimIdx, ok := g.repl.Evict()
	if !ok {
		return -1, ErrNoFreeFrame
	}
	victim := g.frames[victimIdx]
	if victim == nil || victim.Pin != 0 {
		if victim != nil {
			g.repl.RecordAccess(victimIdx)
			g.repl.SetEvictable(victimIdx, true)
		}
		return -1, ErrNoFreeFrame
	}

	if victim.Dirty {
		if err := g.sm.SavePage(victim.FS, victim.Tag.PageID, *victim.Page); err != nil {
			g.repl.RecordAccess(victimIdx)
			g.repl.SetEvictable(victimIdx, true)
			return -1, fmt.Errorf("bufferpool: flush victim %+v: %w", victim.Tag, err)
		}
		victim.Dirty = false
		slog.Debug("bufferpool: flushed dirty victim", "tag", victim.Tag, "frame", victimIdx)
	}

	g.table.Remove(victim.Tag)
	g.frames[victimIdx] = nil
	return victimIdx, nil
}

// GetPage pins and returns the page (fs,pageID).
func (g *GlobalPool) GetPage(fs storage.FileSet, pageID uint32) (*storage.Page, error) {
	key, lfs, ok := storage.FsKeyOf(fs)
	if !ok {
		return nil, ErrUnsupportedFileSet
	}
	tag := PageTag{FSKey: key, PageID: pageID}

	g.mu.Lock()
	defer g.mu.Unlock()

	if idx, ok := g.table.Find(tag); ok {
		f := g.frames[idx]
		if f == nil {
			g.table.Remove(tag)
		} else {
			wasZero := f.Pin == 0
			f.Pin++
			g.repl.RecordAccess(idx)
			if wasZero {
				g.repl.SetEvictable(idx, false)
			}
			return f.Page, nil
		}
	}

	idx, err := g.acquireFrame()
	if err != nil {
		return nil, err
	}

	page, err := g.sm.LoadPage(lfs, pageID)
	if err != nil {
		return nil, fmt.Errorf("bufferpool: load page %+v: %w", tag, err)
	}

	g.frames[idx] = &globalFrame{Tag: tag, FS: lfs, Page: page, Pin: 1}
	g.table.Insert(tag, idx)
	g.repl.RecordAccess(idx)
	g.repl.SetEvictable(idx, false)
	return page, nil
}

// Unpin decreases pin count and marks dirty optionally. Returns
// ErrPageNotResident if (fs,page) isn't resident, or if it is but its pin
// count is already zero, mirroring Pool.UnpinPage.
func (g *GlobalPool) Unpin(fs storage.FileSet, page *storage.Page, dirty bool) error {
	if page == nil {
		return nil
	}
	key, _, ok := storage.FsKeyOf(fs)
	if !ok {
		return ErrUnsupportedFileSet
	}
	tag := PageTag{FSKey: key, PageID: page.PageID()}

	g.mu.Lock()
	defer g.mu.Unlock()

	idx, ok := g.table.Find(tag)
	if !ok {
		return ErrPageNotResident
	}
	f := g.frames[idx]
	if f == nil {
		g.table.Remove(tag)
		return ErrPageNotResident
	}
	if f.Pin == 0 {
		return ErrPageNotResident
	}

	if dirty {
		f.Dirty = true
	}
	f.Pin--
	if f.Pin == 0 {
		g.repl.SetEvictable(idx, true)
	}
	return nil
}

// FlushAll flushes all dirty pages in the global pool, one goroutine per
// dirty frame.
func (g *GlobalPool) FlushAll() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.flushMatching(func(*globalFrame) bool { return true })
}

// FlushFileSet flushes dirty pages belonging to a single relation (FileSet).
func (g *GlobalPool) FlushFileSet(fs storage.FileSet) error {
	key, _, ok := storage.FsKeyOf(fs)
	if !ok {
		return ErrUnsupportedFileSet
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.flushMatching(func(f *globalFrame) bool { return f.Tag.FSKey == key })
}

// flushMatching flushes every dirty frame passing pred, concurrently.
// Caller must hold g.mu.
func (g *GlobalPool) flushMatching(pred func(*globalFrame) bool) error {
	var wg conc.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, f := range g.frames {
		if f == nil || !f.Dirty || !pred(f) {
			continue
		}
		f := f
		wg.Go(func() {
			if err := g.sm.SavePage(f.FS, f.Tag.PageID, *f.Page); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("bufferpool: flush %+v: %w", f.Tag, err)
				}
				mu.Unlock()
				return
			}
			f.Dirty = false
		})
	}
	wg.Wait()
	return firstErr
}

// DropFileSet removes ALL pages of a relation from the global pool.
//
// Must be called before deleting/renaming underlying files. If any page is
// pinned, ErrPagePinned is returned and nothing is removed.
func (g *GlobalPool) DropFileSet(fs storage.FileSet) error {
	key, _, ok := storage.FsKeyOf(fs)
	if !ok {
		return ErrUnsupportedFileSet
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, f := range g.frames {
		if f == nil {
			continue
		}
		if f.Tag.FSKey == key && f.Pin != 0 {
			return ErrPagePinned
		}
	}

	for i, f := range g.frames {
		if f == nil || f.Tag.FSKey != key {
			continue
		}
		if f.Dirty {
			if err := g.sm.SavePage(f.FS, f.Tag.PageID, *f.Page); err != nil {
				return err
			}
		}
		g.table.Remove(f.Tag)
		g.frames[i] = nil
		g.repl.Remove(i)
	}
	return nil
}
