package hashtable

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// identityHash lets tests reason about exactly which directory slot a key
// lands in without fighting a real hash function.
func identityHash(key int) uint64 { return uint64(key) }

func TestDirectory_FindInsertRemove(t *testing.T) {
	d := New[int, string](2, identityHash)

	_, ok := d.Find(1)
	require.False(t, ok)

	d.Insert(1, "one")
	v, ok := d.Find(1)
	require.True(t, ok)
	require.Equal(t, "one", v)

	d.Insert(1, "uno")
	v, ok = d.Find(1)
	require.True(t, ok)
	require.Equal(t, "uno", v)

	require.True(t, d.Remove(1))
	_, ok = d.Find(1)
	require.False(t, ok)
	require.False(t, d.Remove(1))
}

// TestDirectory_Growth mirrors spec.md scenario S4: bucket size 2, start
// depth 0, insert keys 0..4. After key 4, global depth must have grown to
// at least 2, there must be at least 3 buckets, and every inserted key
// remains findable.
func TestDirectory_Growth(t *testing.T) {
	d := New[int, int](2, identityHash)
	require.Equal(t, 0, d.GlobalDepth())
	require.Equal(t, 1, d.NumBuckets())

	for k := 0; k <= 4; k++ {
		d.Insert(k, k*10)
	}

	require.GreaterOrEqual(t, d.GlobalDepth(), 2)
	require.GreaterOrEqual(t, d.NumBuckets(), 3)

	for k := 0; k <= 4; k++ {
		v, ok := d.Find(k)
		require.True(t, ok, "key %d should be findable", k)
		require.Equal(t, k*10, v)
	}
}

func TestDirectory_DirectorySizeIsPowerOfTwo(t *testing.T) {
	d := New[int, int](1, identityHash)
	for k := 0; k < 64; k++ {
		d.Insert(k, k)
		require.Equal(t, 1<<uint(d.GlobalDepth()), len(d.dir))
	}
}

// TestDirectory_LocalDepthNeverExceedsGlobalDepth checks invariant 7 from
// spec.md §3: every bucket's local depth is <= the directory's global
// depth, and directory slots sharing the low local-depth bits of a
// bucket all reference that same bucket.
func TestDirectory_LocalDepthNeverExceedsGlobalDepth(t *testing.T) {
	d := New[int, int](1, identityHash)
	for k := 0; k < 128; k++ {
		d.Insert(k, k)
	}
	for i := 0; i < len(d.dir); i++ {
		ld := d.LocalDepth(i)
		require.LessOrEqual(t, ld, d.GlobalDepth())

		b := d.dir[i]
		lowMask := (1 << uint(ld)) - 1
		for j := 0; j < len(d.dir); j++ {
			if d.dir[j] == b {
				require.Equal(t, i&lowMask, j&lowMask)
			}
		}
	}
}

func TestDirectory_DefaultBucketSizeOnInvalidInput(t *testing.T) {
	d := New[int, int](0, identityHash)
	require.Equal(t, defaultBucketSize, d.bucketSize)
}

func TestDirectory_OverwriteDoesNotCountAgainstBucketCapacity(t *testing.T) {
	d := New[int, int](2, identityHash)
	d.Insert(0, 1)
	d.Insert(0, 2)
	require.Equal(t, 1, d.NumBuckets())
	v, ok := d.Find(0)
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestDirectory_ConcurrentInsertFind(t *testing.T) {
	d := New[int, int](4, identityHash)
	done := make(chan struct{})
	for w := 0; w < 8; w++ {
		w := w
		go func() {
			for i := 0; i < 200; i++ {
				key := w*1000 + i
				d.Insert(key, key)
				d.Find(key)
			}
			done <- struct{}{}
		}()
	}
	for w := 0; w < 8; w++ {
		<-done
	}
}
