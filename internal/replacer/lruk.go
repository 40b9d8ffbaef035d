// Package replacer implements the LRU-K frame replacement policy used by
// the buffer pool manager to pick eviction victims.
package replacer

import (
	"container/list"
	"fmt"
)

// record is the per-frame bookkeeping the replacer tracks. It lives as an
// element's Value in exactly one of the replacer's two lists at a time, so
// it can be relocated between lists without invalidating any external
// reference to it.
type record struct {
	frameID     int
	accessCount int
	evictable   bool
}

// LRUK selects eviction victims using the LRU-K heuristic: frames with
// fewer than K recorded accesses are evicted before any frame with K or
// more, and each cohort is ordered so the oldest/least-recently-used entry
// is evicted first (§4.2).
//
// history holds frames with access_count < K in first-access order
// (FIFO; tail = newest). cache holds frames with access_count >= K in
// recency order (LRU; tail = most recently used). Both lists are
// intrusive doubly-linked lists of *record via container/list, and
// frameIndex maps a frame id to its *list.Element so RecordAccess/
// SetEvictable/Remove can locate a frame's record in O(1) without storing
// raw pointers that could outlive a relocation.
type LRUK struct {
	k             int
	replacerSize  int
	history       *list.List
	cache         *list.List
	frameIndex    map[int]*list.Element
	evictableSize int
}

// New creates a replacer tracking up to replacerSize frames (ids in
// [0, replacerSize)), moving a frame to the cache list only once it has
// been accessed k times.
func New(replacerSize, k int) *LRUK {
	return &LRUK{
		k:            k,
		replacerSize: replacerSize,
		history:      list.New(),
		cache:        list.New(),
		frameIndex:   make(map[int]*list.Element),
	}
}

func (r *LRUK) checkBounds(frameID int) {
	if frameID < 0 || frameID >= r.replacerSize {
		panic(fmt.Sprintf("replacer: frame id %d out of range [0, %d)", frameID, r.replacerSize))
	}
}

// RecordAccess registers an access to frameID, per the placement rule in
// §4.2: a frame moves from unseen -> history tail on its first access,
// shuffles to the history tail while access_count stays under k, jumps to
// the cache tail the instant access_count reaches k, and thereafter moves
// to the cache tail on every further access.
func (r *LRUK) RecordAccess(frameID int) {
	r.checkBounds(frameID)

	elem, tracked := r.frameIndex[frameID]
	if !tracked {
		rec := &record{frameID: frameID, accessCount: 1}
		r.frameIndex[frameID] = r.history.PushBack(rec)
		return
	}

	rec := elem.Value.(*record)
	rec.accessCount++

	switch {
	case rec.accessCount == r.k:
		r.history.Remove(elem)
		r.frameIndex[frameID] = r.cache.PushBack(rec)
	case rec.accessCount > r.k:
		r.cache.Remove(elem)
		r.frameIndex[frameID] = r.cache.PushBack(rec)
	default:
		r.history.Remove(elem)
		r.frameIndex[frameID] = r.history.PushBack(rec)
	}
}

// SetEvictable marks a tracked frame as (un)evictable, maintaining Size().
// It panics with InvalidFrame semantics if frameID is untracked or out of
// bounds (§4.2 Bounds check).
func (r *LRUK) SetEvictable(frameID int, evictable bool) {
	r.checkBounds(frameID)

	elem, tracked := r.frameIndex[frameID]
	if !tracked {
		panic(fmt.Sprintf("replacer: SetEvictable on untracked frame %d", frameID))
	}

	rec := elem.Value.(*record)
	if rec.evictable == evictable {
		return
	}
	rec.evictable = evictable
	if evictable {
		r.evictableSize++
	} else {
		r.evictableSize--
	}
}

// Evict scans the history list head-to-tail for the first evictable
// frame, falling back to the cache list identically if history holds
// none. The chosen frame is fully removed from the replacer.
func (r *LRUK) Evict() (int, bool) {
	if elem := r.firstEvictable(r.history); elem != nil {
		return r.takeFrom(r.history, elem), true
	}
	if elem := r.firstEvictable(r.cache); elem != nil {
		return r.takeFrom(r.cache, elem), true
	}
	return 0, false
}

func (r *LRUK) firstEvictable(l *list.List) *list.Element {
	for e := l.Front(); e != nil; e = e.Next() {
		if e.Value.(*record).evictable {
			return e
		}
	}
	return nil
}

func (r *LRUK) takeFrom(l *list.List, elem *list.Element) int {
	rec := elem.Value.(*record)
	l.Remove(elem)
	delete(r.frameIndex, rec.frameID)
	r.evictableSize--
	return rec.frameID
}

// Remove force-removes a tracked, evictable frame (e.g. the pool deleted
// its page). It is a silent no-op for an untracked frame, but panics if
// the frame is tracked and not evictable.
func (r *LRUK) Remove(frameID int) {
	elem, tracked := r.frameIndex[frameID]
	if !tracked {
		return
	}

	rec := elem.Value.(*record)
	if !rec.evictable {
		panic(fmt.Sprintf("replacer: Remove on non-evictable frame %d", frameID))
	}

	if rec.accessCount >= r.k {
		r.cache.Remove(elem)
	} else {
		r.history.Remove(elem)
	}
	delete(r.frameIndex, frameID)
	r.evictableSize--
}

// Size returns the number of tracked frames currently marked evictable.
func (r *LRUK) Size() int {
	return r.evictableSize
}
