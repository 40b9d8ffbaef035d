package bufferpool

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novasql/internal/storage"
)

// newTestPool creates a temporary directory, StorageManager and buffer pool for testing.
// It returns the pool and a cleanup function.
func newTestPool(t *testing.T, capacity int) (*Pool, func()) {
	t.Helper()

	dir, err := os.MkdirTemp("", "novasql-bp-*")
	require.NoError(t, err)

	sm := storage.NewStorageManager()
	fs := storage.LocalFileSet{
		Dir:  dir,
		Base: "testtable",
	}

	pool := NewPool(sm, fs, capacity)

	cleanup := func() {
		_ = os.RemoveAll(dir)
	}

	return pool, cleanup
}

func TestPool_GetPage_LoadsAndPins(t *testing.T) {
	pool, cleanup := newTestPool(t, 4)
	defer cleanup()

	// First GetPage should load from disk and put it in a frame.
	page1, err := pool.GetPage(0)
	require.NoError(t, err)
	require.NotNil(t, page1)
	require.Equal(t, uint32(0), page1.PageID())

	idx, ok := pool.pageTable.Find(0)
	require.True(t, ok)
	require.NotNil(t, pool.frames[idx])

	frame := pool.frames[idx]
	require.Equal(t, uint32(0), frame.PageID)
	require.Equal(t, int32(1), frame.Pin)
	require.False(t, frame.Dirty)

	// Second GetPage for the same page should return the same pointer and increase pin count.
	page2, err := pool.GetPage(0)
	require.NoError(t, err)
	require.Same(t, page1, page2)
	require.Equal(t, int32(2), frame.Pin)
}

func TestPool_GetPage_Full_NoFreeFrameError(t *testing.T) {
	pool, cleanup := newTestPool(t, 1)
	defer cleanup()

	// Fill the only frame with page 0 and keep it pinned.
	page0, err := pool.GetPage(0)
	require.NoError(t, err)
	require.NotNil(t, page0)

	require.Len(t, pool.frames, 1)

	idx0, ok := pool.pageTable.Find(0)
	require.True(t, ok)
	require.NotNil(t, pool.frames[idx0])
	require.Equal(t, int32(1), pool.frames[idx0].Pin)

	// Try to get a different page without unpinning the first one -> no free frame.
	_, err = pool.GetPage(1)
	require.ErrorIs(t, err, ErrNoFreeFrame)
}

func TestPool_EvictDirtyFrameAndFlush(t *testing.T) {
	pool, cleanup := newTestPool(t, 1)
	defer cleanup()

	// Step 1: Load page 0 and modify its content.
	page0, err := pool.GetPage(0)
	require.NoError(t, err)
	require.NotNil(t, page0)

	buf := page0.Buf
	require.NotEmpty(t, buf)
	buf[0] = 42

	// Unpin with dirty = true so the frame is marked dirty and evictable.
	err = pool.Unpin(page0, true)
	require.NoError(t, err)

	idx0, ok := pool.pageTable.Find(0)
	require.True(t, ok)
	require.Equal(t, int32(0), pool.frames[idx0].Pin)
	require.True(t, pool.frames[idx0].Dirty)

	// Step 2: Request page 1, forcing eviction of page 0.
	page1, err := pool.GetPage(1)
	require.NoError(t, err)
	require.NotNil(t, page1)
	require.Equal(t, uint32(1), page1.PageID())

	// Page 0 should have been flushed to disk by eviction.
	reloaded, err := pool.sm.LoadPage(pool.fs, 0)
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	require.Equal(t, byte(42), reloaded.Buf[0])
}

func TestPool_FlushAll_WritesDirtyFrames(t *testing.T) {
	pool, cleanup := newTestPool(t, 2)
	defer cleanup()

	page0, err := pool.GetPage(0)
	require.NoError(t, err)
	page1, err := pool.GetPage(1)
	require.NoError(t, err)

	page0.Buf[10] = 11
	page1.Buf[20] = 22

	require.NoError(t, pool.Unpin(page0, true))
	require.NoError(t, pool.Unpin(page1, true))

	err = pool.FlushAll()
	require.NoError(t, err)

	idx0, ok := pool.pageTable.Find(0)
	require.True(t, ok)
	idx1, ok := pool.pageTable.Find(1)
	require.True(t, ok)

	require.False(t, pool.frames[idx0].Dirty)
	require.False(t, pool.frames[idx1].Dirty)

	reloaded0, err := pool.sm.LoadPage(pool.fs, 0)
	require.NoError(t, err)
	require.Equal(t, byte(11), reloaded0.Buf[10])

	reloaded1, err := pool.sm.LoadPage(pool.fs, 1)
	require.NoError(t, err)
	require.Equal(t, byte(22), reloaded1.Buf[20])
}

// Verify default capacity is used when capacity <= 0.
func TestNewPool_DefaultCapacity(t *testing.T) {
	sm := storage.NewStorageManager()
	dir := t.TempDir()
	fs := storage.LocalFileSet{
		Dir:  dir,
		Base: "testtable",
	}

	pool := NewPool(sm, fs, 0)

	page, err := pool.GetPage(0)
	require.NoError(t, err)
	require.NotNil(t, page)
}

func TestPool_DeletePageFromBuffer_Unpinned(t *testing.T) {
	pool, cleanup := newTestPool(t, 2)
	defer cleanup()

	page0, err := pool.GetPage(0)
	require.NoError(t, err)
	require.NotNil(t, page0)

	idx, ok := pool.pageTable.Find(0)
	require.True(t, ok)
	require.NotNil(t, pool.frames[idx])
	require.Equal(t, int32(1), pool.frames[idx].Pin)

	require.NoError(t, pool.Unpin(page0, false))
	require.Equal(t, int32(0), pool.frames[idx].Pin)

	err = pool.DeletePageFromBuffer(0)
	require.NoError(t, err)

	_, ok = pool.pageTable.Find(0)
	require.False(t, ok)
	require.Nil(t, pool.frames[idx])
}

func TestPool_DeletePageFromBuffer_Pinned_ReturnsError(t *testing.T) {
	pool, cleanup := newTestPool(t, 2)
	defer cleanup()

	page0, err := pool.GetPage(0)
	require.NoError(t, err)
	require.NotNil(t, page0)

	idx, ok := pool.pageTable.Find(0)
	require.True(t, ok)
	require.NotNil(t, pool.frames[idx])
	require.Equal(t, int32(1), pool.frames[idx].Pin)

	err = pool.DeletePageFromBuffer(0)
	require.ErrorIs(t, err, ErrPagePinned)

	idx2, ok := pool.pageTable.Find(0)
	require.True(t, ok)
	require.Equal(t, idx, idx2)
	require.NotNil(t, pool.frames[idx2])
	require.Equal(t, int32(1), pool.frames[idx2].Pin)
}

func TestPool_ReusesFreedFrameSlot(t *testing.T) {
	pool, cleanup := newTestPool(t, 2)
	defer cleanup()

	page0, err := pool.GetPage(0)
	require.NoError(t, err)
	require.NotNil(t, page0)

	idx0, ok := pool.pageTable.Find(0)
	require.True(t, ok)
	require.NotNil(t, pool.frames[idx0])

	require.NoError(t, pool.Unpin(page0, false))
	require.NoError(t, pool.DeletePageFromBuffer(0))
	require.Nil(t, pool.frames[idx0])

	page1, err := pool.GetPage(1)
	require.NoError(t, err)
	require.NotNil(t, page1)

	idx1, ok := pool.pageTable.Find(1)
	require.True(t, ok)
	require.Equal(t, idx0, idx1)
	require.NotNil(t, pool.frames[idx1])
	require.Equal(t, uint32(1), pool.frames[idx1].PageID)
}

// TestPool_NewPage_AllocatesDistinctPageIDs mirrors spec.md scenario S1's
// setup: repeated NewPage calls never hand out the same page id twice.
func TestPool_NewPage_AllocatesDistinctPageIDs(t *testing.T) {
	pool, cleanup := newTestPool(t, 4)
	defer cleanup()

	seen := map[uint32]bool{}
	for i := 0; i < 4; i++ {
		page, err := pool.NewPage()
		require.NoError(t, err)
		require.False(t, seen[page.PageID()], "page id reused: %d", page.PageID())
		seen[page.PageID()] = true
	}
}

// TestPool_NewPage_Full_NoFreeFrameError is spec.md scenario S1: fill the
// pool with pinned frames, then a further NewPage must fail with
// ErrNoFreeFrame without evicting anything pinned.
func TestPool_NewPage_Full_NoFreeFrameError(t *testing.T) {
	pool, cleanup := newTestPool(t, 2)
	defer cleanup()

	_, err := pool.NewPage()
	require.NoError(t, err)
	_, err = pool.NewPage()
	require.NoError(t, err)

	_, err = pool.NewPage()
	require.ErrorIs(t, err, ErrNoFreeFrame)
}

// TestPool_NewPage_FreesUpAfterUnpin is spec.md scenario S1 in full: pool
// size 3, three NewPage calls fill it, a fourth is rejected; unpinning the
// second page lets a further NewPage succeed by evicting exactly that page.
func TestPool_NewPage_FreesUpAfterUnpin(t *testing.T) {
	pool, cleanup := newTestPool(t, 3)
	defer cleanup()

	_, err := pool.NewPage()
	require.NoError(t, err)
	p1, err := pool.NewPage()
	require.NoError(t, err)
	_, err = pool.NewPage()
	require.NoError(t, err)

	_, err = pool.NewPage()
	require.ErrorIs(t, err, ErrNoFreeFrame)

	require.NoError(t, pool.UnpinPage(p1.PageID(), false))

	p3, err := pool.NewPage()
	require.NoError(t, err)
	require.NotNil(t, p3)

	// the evicted page is no longer resident
	_, ok := pool.pageTable.Find(p1.PageID())
	require.False(t, ok)
}

// TestPool_DeletePage_ThenRefetchReadsFromDisk is spec.md scenario S5:
// deleting a pinned page is refused; once unpinned it succeeds, and a
// subsequent FetchPage is a genuine disk read, not a cache hit.
func TestPool_DeletePage_ThenRefetchReadsFromDisk(t *testing.T) {
	pool, cleanup := newTestPool(t, 2)
	defer cleanup()

	page, err := pool.FetchPage(0)
	require.NoError(t, err)
	require.NotNil(t, page)

	require.ErrorIs(t, pool.DeletePage(0), ErrPagePinned)

	require.NoError(t, pool.UnpinPage(0, false))
	require.NoError(t, pool.DeletePage(0))

	_, ok := pool.pageTable.Find(0)
	require.False(t, ok)

	refetched, err := pool.FetchPage(0)
	require.NoError(t, err)
	require.NotSame(t, page, refetched)
}

// TestPool_FlushPage_ClearsDirtyWithoutUnpinning is spec.md scenario S6:
// flushing a page writes it back and clears dirty, but does not change its
// pin count or evict it from the pool.
func TestPool_FlushPage_ClearsDirtyWithoutUnpinning(t *testing.T) {
	pool, cleanup := newTestPool(t, 2)
	defer cleanup()

	page0, err := pool.GetPage(0)
	require.NoError(t, err)
	_, err = pool.GetPage(0)
	require.NoError(t, err)
	page0.Buf[5] = 99
	require.NoError(t, pool.Unpin(page0, true))

	idx, ok := pool.pageTable.Find(0)
	require.True(t, ok)
	require.True(t, pool.frames[idx].Dirty)

	require.NoError(t, pool.FlushPage(0))
	require.False(t, pool.frames[idx].Dirty)
	require.Equal(t, int32(1), pool.frames[idx].Pin)

	// still resident
	_, ok = pool.pageTable.Find(0)
	require.True(t, ok)

	reloaded, err := pool.sm.LoadPage(pool.fs, 0)
	require.NoError(t, err)
	require.Equal(t, byte(99), reloaded.Buf[5])
}

func TestPool_FlushAllPages_ParallelWriteback(t *testing.T) {
	pool, cleanup := newTestPool(t, 8)
	defer cleanup()

	for id := uint32(0); id < 8; id++ {
		page, err := pool.GetPage(id)
		require.NoError(t, err)
		page.Buf[0] = byte(id + 1)
		require.NoError(t, pool.Unpin(page, true))
	}

	require.NoError(t, pool.FlushAllPages())

	for id := uint32(0); id < 8; id++ {
		reloaded, err := pool.sm.LoadPage(pool.fs, id)
		require.NoError(t, err)
		require.Equal(t, byte(id+1), reloaded.Buf[0])
	}
}

// TestPool_NewPage_IsDirty is spec.md §4.3: a fresh page counts as written
// (by zeroing) from the moment it's handed out, so it is still persisted on
// eviction even if the caller never touches it again.
func TestPool_NewPage_IsDirty(t *testing.T) {
	pool, cleanup := newTestPool(t, 1)
	defer cleanup()

	page, err := pool.NewPage()
	require.NoError(t, err)

	idx, ok := pool.pageTable.Find(page.PageID())
	require.True(t, ok)
	require.True(t, pool.frames[idx].Dirty)

	require.NoError(t, pool.UnpinPage(page.PageID(), false))

	// Force eviction of the only frame by allocating another page.
	_, err = pool.NewPage()
	require.NoError(t, err)

	reloaded, err := pool.sm.LoadPage(pool.fs, page.PageID())
	require.NoError(t, err)
	require.NotNil(t, reloaded)
}

// TestPool_UnpinPage_NotResident covers both spec.md §4.3/§7 NotResident
// cases: a page id that was never fetched, and one whose pin count already
// reached zero.
func TestPool_UnpinPage_NotResident(t *testing.T) {
	pool, cleanup := newTestPool(t, 2)
	defer cleanup()

	require.ErrorIs(t, pool.UnpinPage(42, false), ErrPageNotResident)

	_, err := pool.FetchPage(0)
	require.NoError(t, err)
	require.NoError(t, pool.UnpinPage(0, false))
	require.ErrorIs(t, pool.UnpinPage(0, false), ErrPageNotResident)
}

// TestPool_FlushPage_NotResident mirrors TestPool_UnpinPage_NotResident for
// FlushPage.
func TestPool_FlushPage_NotResident(t *testing.T) {
	pool, cleanup := newTestPool(t, 2)
	defer cleanup()

	require.ErrorIs(t, pool.FlushPage(42), ErrPageNotResident)
}
