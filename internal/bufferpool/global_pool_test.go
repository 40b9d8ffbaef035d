package bufferpool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novasql/internal/storage"
)

func newTestGlobalPool(t *testing.T, capacity int) (*GlobalPool, storage.LocalFileSet, storage.LocalFileSet) {
	t.Helper()

	dir := t.TempDir()
	sm := storage.NewStorageManager()
	gp := NewGlobalPool(sm, capacity)

	usersFS := storage.LocalFileSet{Dir: dir, Base: "users"}
	ordersFS := storage.LocalFileSet{Dir: dir, Base: "orders"}
	return gp, usersFS, ordersFS
}

func TestGlobalPool_SameFileSetPageIDIsOneEntry(t *testing.T) {
	gp, users, _ := newTestGlobalPool(t, 4)

	p1, err := gp.GetPage(users, 0)
	require.NoError(t, err)
	p2, err := gp.GetPage(users, 0)
	require.NoError(t, err)
	require.Same(t, p1, p2)
}

func TestGlobalPool_DistinctFileSetsSamePageIDDoNotCollide(t *testing.T) {
	gp, users, orders := newTestGlobalPool(t, 4)

	pUsers, err := gp.GetPage(users, 0)
	require.NoError(t, err)
	pOrders, err := gp.GetPage(orders, 0)
	require.NoError(t, err)

	require.NotSame(t, pUsers, pOrders)

	usersKey, _, _ := storage.FsKeyOf(users)
	ordersKey, _, _ := storage.FsKeyOf(orders)
	_, ok := gp.table.Find(PageTag{FSKey: usersKey, PageID: 0})
	require.True(t, ok)
	_, ok = gp.table.Find(PageTag{FSKey: ordersKey, PageID: 0})
	require.True(t, ok)
}

func TestGlobalPool_FlushFileSetOnlyFlushesThatRelation(t *testing.T) {
	gp, users, orders := newTestGlobalPool(t, 4)

	pUsers, err := gp.GetPage(users, 0)
	require.NoError(t, err)
	pOrders, err := gp.GetPage(orders, 0)
	require.NoError(t, err)

	pUsers.Buf[0] = 7
	pOrders.Buf[0] = 9
	require.NoError(t, gp.Unpin(users, pUsers, true))
	require.NoError(t, gp.Unpin(orders, pOrders, true))

	require.NoError(t, gp.FlushFileSet(users))

	reloadedUsers, err := gp.sm.LoadPage(users, 0)
	require.NoError(t, err)
	require.Equal(t, byte(7), reloadedUsers.Buf[0])

	// orders frame is still dirty in memory (not flushed), so reading straight
	// from disk should not observe the write.
	reloadedOrders, err := gp.sm.LoadPage(orders, 0)
	require.NoError(t, err)
	require.Equal(t, byte(0), reloadedOrders.Buf[0])
}

func TestGlobalPool_Unpin_NotResident(t *testing.T) {
	gp, users, _ := newTestGlobalPool(t, 4)

	p, err := gp.GetPage(users, 0)
	require.NoError(t, err)

	require.NoError(t, gp.Unpin(users, p, false))
	require.ErrorIs(t, gp.Unpin(users, p, false), ErrPageNotResident)
}

func TestGlobalPool_DropFileSet_RefusesWhilePinned(t *testing.T) {
	gp, users, _ := newTestGlobalPool(t, 4)

	page, err := gp.GetPage(users, 0)
	require.NoError(t, err)
	require.NotNil(t, page)

	err = gp.DropFileSet(users)
	require.ErrorIs(t, err, ErrPagePinned)
}

func TestGlobalPool_DropFileSet_RemovesResidentFrames(t *testing.T) {
	gp, users, orders := newTestGlobalPool(t, 4)

	pUsers, err := gp.GetPage(users, 0)
	require.NoError(t, err)
	pOrders, err := gp.GetPage(orders, 0)
	require.NoError(t, err)

	require.NoError(t, gp.Unpin(users, pUsers, false))
	require.NoError(t, gp.Unpin(orders, pOrders, false))

	require.NoError(t, gp.DropFileSet(users))

	usersKey, _, _ := storage.FsKeyOf(users)
	_, ok := gp.table.Find(PageTag{FSKey: usersKey, PageID: 0})
	require.False(t, ok, "dropped fileset should be gone from the directory")

	// the other relation's page is untouched
	p, err := gp.GetPage(orders, 0)
	require.NoError(t, err)
	require.Same(t, pOrders, p)
}

func TestGlobalPool_View_ScopesFlushToItsFileSet(t *testing.T) {
	gp, users, orders := newTestGlobalPool(t, 4)

	usersView := gp.View(users)
	ordersView := gp.View(orders)

	pu, err := usersView.GetPage(0)
	require.NoError(t, err)
	po, err := ordersView.GetPage(0)
	require.NoError(t, err)

	pu.Buf[0] = 1
	po.Buf[0] = 2
	require.NoError(t, usersView.Unpin(pu, true))
	require.NoError(t, ordersView.Unpin(po, true))

	require.NoError(t, usersView.FlushAll())

	reloadedUsers, err := gp.sm.LoadPage(users, 0)
	require.NoError(t, err)
	require.Equal(t, byte(1), reloadedUsers.Buf[0])

	reloadedOrders, err := gp.sm.LoadPage(orders, 0)
	require.NoError(t, err)
	require.Equal(t, byte(0), reloadedOrders.Buf[0])
}
