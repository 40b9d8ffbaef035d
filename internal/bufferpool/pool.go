// Package bufferpool keeps a bounded set of disk pages resident in memory,
// handing out pinned pointers to callers and picking eviction victims via
// an LRU-K replacement policy once the pool is full (§4.3).
package bufferpool

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/conc"

	"github.com/tuannm99/novasql/internal/hashtable"
	"github.com/tuannm99/novasql/internal/replacer"
	"github.com/tuannm99/novasql/internal/storage"
)

var (
	DefaultCapacity = 128

	// DefaultReplacerK is the K in LRU-K: a frame must be referenced this
	// many times before it is preferred over a merely-once-seen frame.
	DefaultReplacerK = 2

	ErrNoFreeFrame     = errors.New("bufferpool: no free frame available (all pinned)")
	ErrPagePinned      = errors.New("bufferpool: page is pinned")
	ErrPageNotResident = errors.New("bufferpool: page not resident")
)

// Replacer is the victim-selection policy a Pool delegates eviction
// decisions to. replacer.LRUK satisfies this directly.
type Replacer interface {
	RecordAccess(frameID int)
	SetEvictable(frameID int, evictable bool)
	Evict() (frameID int, ok bool)
	Remove(frameID int)
	Size() int
}

// Manager is the narrow surface consumers outside this package (btree,
// heap, the SQL executor) depend on.
type Manager interface {
	GetPage(pageID uint32) (*storage.Page, error)
	Unpin(page *storage.Page, dirty bool) error
	FlushAll() error
}

type Frame struct {
	PageID uint32
	Page   *storage.Page
	Dirty  bool
	Pin    int32
}

var (
	_ Manager  = (*Pool)(nil)
	_ Replacer = (*replacer.LRUK)(nil)
)

// Pool is a fixed-capacity buffer pool over a single FileSet, keyed by
// PageID via an extendible hash directory and evicted via LRU-K (§4).
type Pool struct {
	sm *storage.StorageManager
	fs storage.FileSet

	mu        sync.Mutex
	frames    []*Frame // len == capacity, nil == free slot
	pageTable *hashtable.Directory[uint32, int]

	replacementPolicy Replacer

	nextPageID uint32
}

func pageIDHash(pageID uint32) uint64 { return uint64(pageID) }

// NewPool creates a pool of the given capacity (frames) backed by sm/fs,
// using LRU-K with k=DefaultReplacerK as its replacement policy.
func NewPool(sm *storage.StorageManager, fs storage.FileSet, capacity int) *Pool {
	return NewPoolWithReplacerK(sm, fs, capacity, DefaultReplacerK)
}

// NewPoolWithReplacerK is NewPool with an explicit LRU-K parameter.
func NewPoolWithReplacerK(sm *storage.StorageManager, fs storage.FileSet, capacity, k int) *Pool {
	return NewPoolWithConfig(sm, fs, capacity, k, 0)
}

// NewPoolWithConfig is NewPoolWithReplacerK with an explicit page-table
// bucket size too (bucketSize <= 0 uses the hashtable package's own
// default), for callers sizing every knob from a loaded config.
func NewPoolWithConfig(sm *storage.StorageManager, fs storage.FileSet, capacity, k, bucketSize int) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	p := &Pool{
		sm:                sm,
		fs:                fs,
		frames:            make([]*Frame, capacity),
		pageTable:         hashtable.New[uint32, int](bucketSize, pageIDHash),
		replacementPolicy: replacer.New(capacity, k),
	}
	if count, err := sm.CountPages(fs); err == nil {
		p.nextPageID = count
	}
	return p
}

// AllocatePage reserves and returns a fresh page id. It does not touch
// disk or the pool; the caller typically follows up with NewPage.
func (p *Pool) AllocatePage() uint32 {
	return atomic.AddUint32(&p.nextPageID, 1) - 1
}

// acquireFrame finds a free slot or evicts a victim, returning its index.
// Caller must hold p.mu.
func (p *Pool) acquireFrame() (int, error) {
	for i, f := range p.frames {
		if f == nil {
			return i, nil
		}
	}

	victimIdx, ok := p.replacementPolicy.Evict()
	if !ok {
		return -1, ErrNoFreeFrame
	}

	victim := p.frames[victimIdx]
	if victim == nil || victim.Pin != 0 {
		if victim != nil {
			p.replacementPolicy.RecordAccess(victimIdx)
			p.replacementPolicy.SetEvictable(victimIdx, true)
		}
		return -1, ErrNoFreeFrame
	}

	if victim.Dirty {
		if err := p.sm.SavePage(p.fs, victim.PageID, *victim.Page); err != nil {
			p.replacementPolicy.RecordAccess(victimIdx)
			p.replacementPolicy.SetEvictable(victimIdx, true)
			return -1, fmt.Errorf("bufferpool: flush victim page %d: %w", victim.PageID, err)
		}
		victim.Dirty = false
		slog.Debug("bufferpool: flushed dirty victim", "pageID", victim.PageID, "frame", victimIdx)
	}

	p.pageTable.Remove(victim.PageID)
	p.frames[victimIdx] = nil
	slog.Debug("bufferpool: evicted frame", "frame", victimIdx, "pageID", victim.PageID)
	return victimIdx, nil
}

// NewPage allocates a fresh page id, installs it into an available frame
// pinned once, and returns the (now in-memory) page.
func (p *Pool) NewPage() (*storage.Page, error) {
	pageID := p.AllocatePage()

	p.mu.Lock()
	defer p.mu.Unlock()

	idx, err := p.acquireFrame()
	if err != nil {
		return nil, err
	}

	page, err := p.sm.LoadPage(p.fs, pageID)
	if err != nil {
		return nil, fmt.Errorf("bufferpool: new page %d: %w", pageID, err)
	}

	// A freshly allocated page is dirty from the moment it's handed out: it
	// has been "written" by zeroing, so even one never touched again by the
	// caller must still be persisted on eviction (§4.3).
	p.frames[idx] = &Frame{PageID: pageID, Page: page, Pin: 1, Dirty: true}
	p.pageTable.Insert(pageID, idx)
	p.replacementPolicy.RecordAccess(idx)
	p.replacementPolicy.SetEvictable(idx, false)
	return page, nil
}

// FetchPage returns the requested page, pinned, loading it from disk (and
// evicting a victim if necessary) on a miss.
func (p *Pool) FetchPage(pageID uint32) (*storage.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if idx, ok := p.pageTable.Find(pageID); ok {
		f := p.frames[idx]
		if f == nil {
			p.pageTable.Remove(pageID)
		} else {
			wasZero := f.Pin == 0
			f.Pin++
			p.replacementPolicy.RecordAccess(idx)
			if wasZero {
				p.replacementPolicy.SetEvictable(idx, false)
			}
			return f.Page, nil
		}
	}

	idx, err := p.acquireFrame()
	if err != nil {
		return nil, err
	}

	page, err := p.sm.LoadPage(p.fs, pageID)
	if err != nil {
		return nil, fmt.Errorf("bufferpool: fetch page %d: %w", pageID, err)
	}

	p.frames[idx] = &Frame{PageID: pageID, Page: page, Pin: 1}
	p.pageTable.Insert(pageID, idx)
	p.replacementPolicy.RecordAccess(idx)
	p.replacementPolicy.SetEvictable(idx, false)
	return page, nil
}

// GetPage is FetchPage under the name the rest of the codebase already
// depends on (btree, heap, the SQL executor).
func (p *Pool) GetPage(pageID uint32) (*storage.Page, error) {
	return p.FetchPage(pageID)
}

// UnpinPage decrements the pin count of pageID, latching in dirty if set.
// The frame becomes evictable once its pin count reaches zero. Sticky:
// once dirty, a page stays dirty until flushed, regardless of how many
// subsequent unpins pass dirty=false (§4.3 Dirty flag). Returns
// ErrPageNotResident if pageID isn't resident, or if it is but its pin
// count is already zero (§4.3/§7 NotResident).
func (p *Pool) UnpinPage(pageID uint32, dirty bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable.Find(pageID)
	if !ok {
		return ErrPageNotResident
	}
	f := p.frames[idx]
	if f == nil {
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
		p.replacementPolicy.SetEvictable(idx, true)
	}
	return nil
}

// Unpin is UnpinPage keyed by the *storage.Page itself, matching Manager.
func (p *Pool) Unpin(page *storage.Page, dirty bool) error {
	if page == nil {
		return nil
	}
	return p.UnpinPage(page.PageID(), dirty)
}

// FlushPage writes pageID back to disk if resident, regardless of its
// dirty flag, clearing dirty on success. Returns ErrPageNotResident if
// pageID isn't resident.
func (p *Pool) FlushPage(pageID uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable.Find(pageID)
	if !ok {
		return ErrPageNotResident
	}
	f := p.frames[idx]
	if f == nil {
		return ErrPageNotResident
	}
	if err := p.sm.SavePage(p.fs, f.PageID, *f.Page); err != nil {
		return fmt.Errorf("bufferpool: flush page %d: %w", pageID, err)
	}
	f.Dirty = false
	return nil
}

// FlushAllPages flushes every dirty resident frame, one goroutine per
// frame, waiting for all writes before returning.
func (p *Pool) FlushAllPages() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var wg conc.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, f := range p.frames {
		if f == nil || !f.Dirty {
			continue
		}
		f := f
		wg.Go(func() {
			if err := p.sm.SavePage(p.fs, f.PageID, *f.Page); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("bufferpool: flush page %d: %w", f.PageID, err)
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

// FlushAll is the Manager-compatible name for FlushAllPages.
func (p *Pool) FlushAll() error {
	return p.FlushAllPages()
}

// DeletePage evicts pageID from the pool without writing it back,
// refusing if it is still pinned (§4.3 DeletePage).
func (p *Pool) DeletePage(pageID uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable.Find(pageID)
	if !ok {
		return nil
	}
	f := p.frames[idx]
	if f == nil {
		p.pageTable.Remove(pageID)
		return nil
	}
	if f.Pin != 0 {
		return ErrPagePinned
	}

	p.frames[idx] = nil
	p.pageTable.Remove(pageID)
	p.replacementPolicy.Remove(idx)
	return nil
}

// DeletePageFromBuffer is the pre-existing name for DeletePage.
func (p *Pool) DeletePageFromBuffer(pageID uint32) error {
	return p.DeletePage(pageID)
}
