package galloc

import (
	"math"
	"testing"

	"github.com/cznic/mathutil"
	"github.com/stretchr/testify/require"
)

const quota = 32 << 20

var (
	max    = 2 * 4096
	bigMax = 2 * mmapThreshold
)

func churn(t *testing.T, max int) {
	var a Allocator
	rem := quota
	var bufs [][]byte
	rng, err := mathutil.NewFC32(0, math.MaxInt32, true)
	require.NoError(t, err)

	rng.Seed(42)
	pos := rng.Pos()
	for rem > 0 {
		size := rng.Next()%max + 1
		rem -= size
		b, err := a.Malloc(size)
		require.NoError(t, err)

		bufs = append(bufs, b)
		for i := range b {
			b[i] = byte(rng.Next())
		}
	}
	t.Logf("allocs %v, mmaps %v, bytes %v", a.allocs, a.mmaps, a.bytes)

	rng.Seek(pos)
	for i, b := range bufs {
		require.Equal(t, rng.Next()%max+1, len(b), "buf %d length", i)
		for i, g := range b {
			require.Equal(t, byte(rng.Next()), g, "buf byte %d", i)
			b[i] = 0
		}
	}

	for i := range bufs {
		j := rng.Next() % len(bufs)
		bufs[i], bufs[j] = bufs[j], bufs[i]
	}

	for _, b := range bufs {
		require.NoError(t, a.Free(b))
	}

	st := a.Stats()
	require.Zero(t, st.Allocs)
	require.Zero(t, st.Mmaps)
	require.Equal(t, int(a.prim.brkSize), st.Bytes)
}

func TestChurnSmall(t *testing.T) { churn(t, max) }
func TestChurnBig(t *testing.T)   { churn(t, bigMax) }

func TestFreeEmptySlice(t *testing.T) {
	var a Allocator
	b, err := a.Malloc(1)
	require.NoError(t, err)
	require.NoError(t, a.Free(b[:0]))

	st := a.Stats()
	require.Zero(t, st.Allocs)
	require.Zero(t, st.Mmaps)
	require.Equal(t, initMemAlloc, st.Bytes)
}

func TestFreeNil(t *testing.T) {
	var a Allocator
	require.NoError(t, a.Free(nil))
}

func TestMallocZero(t *testing.T) {
	var a Allocator
	b, err := a.Malloc(0)
	require.NoError(t, err)
	require.Nil(t, b)
}

func TestMallocNegativePanics(t *testing.T) {
	var a Allocator
	require.Panics(t, func() { a.Malloc(-1) })
}

func TestCallocZeroFactor(t *testing.T) {
	var a Allocator
	b, err := a.Calloc(0, 8)
	require.NoError(t, err)
	require.Nil(t, b)

	b, err = a.Calloc(8, 0)
	require.NoError(t, err)
	require.Nil(t, b)
}

func TestCallocOverflow(t *testing.T) {
	var a Allocator
	_, err := a.Calloc(math.MaxInt, math.MaxInt)
	require.ErrorIs(t, err, ErrOverflow)
}

func TestCallocZeroesRecycledBlock(t *testing.T) {
	var a Allocator
	p, err := a.Malloc(1000)
	require.NoError(t, err)
	for i := range p {
		p[i] = 0xff
	}
	require.NoError(t, a.Free(p))

	b, err := a.Calloc(1000, 1)
	require.NoError(t, err)
	for i, v := range b {
		require.Zerof(t, v, "byte %d not zero", i)
	}
}

func TestFreeOfFreedIsNoop(t *testing.T) {
	var a Allocator
	b, err := a.Malloc(16)
	require.NoError(t, err)
	require.NoError(t, a.Free(b))
	require.NoError(t, a.Free(b))
}

func TestReallocOfFreedFails(t *testing.T) {
	var a Allocator
	b, err := a.Malloc(16)
	require.NoError(t, err)
	require.NoError(t, a.Free(b))

	_, err = a.Realloc(b, 32)
	require.ErrorIs(t, err, ErrFreedPointer)
}

func TestReallocNilDelegatesToMalloc(t *testing.T) {
	var a Allocator
	b, err := a.Realloc(nil, 64)
	require.NoError(t, err)
	require.Len(t, b, 64)
}

func TestReallocZeroFrees(t *testing.T) {
	var a Allocator
	b, err := a.Malloc(64)
	require.NoError(t, err)

	r, err := a.Realloc(b, 0)
	require.NoError(t, err)
	require.Nil(t, r)
	require.NoError(t, a.Free(b))
}

func TestReallocSameSizeReturnsSamePointer(t *testing.T) {
	var a Allocator
	b, err := a.Malloc(64)
	require.NoError(t, err)

	r, err := a.Realloc(b, 64)
	require.NoError(t, err)
	require.Equal(t, addrOfSlice(b), addrOfSlice(r))
}

func TestCloseResetsAllocatorAndUnmapsLiveMappings(t *testing.T) {
	var a Allocator
	_, err := a.Malloc(64)
	require.NoError(t, err)
	big, err := a.Malloc(200000)
	require.NoError(t, err)
	require.NotZero(t, big)

	require.NoError(t, a.Close())
	require.Equal(t, Allocator{}, a)

	// A closed Allocator is a zero value, so it can be reused from scratch.
	fresh, err := a.Malloc(16)
	require.NoError(t, err)
	require.Len(t, fresh, 16)
}

func TestCloseOnZeroValueIsNoop(t *testing.T) {
	var a Allocator
	require.NoError(t, a.Close())
}

func benchmarkMalloc(b *testing.B, size int) {
	var a Allocator
	bufs := make([][]byte, 0, b.N)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p, err := a.Malloc(size)
		if err != nil {
			b.Fatal(err)
		}
		bufs = append(bufs, p)
	}
	b.StopTimer()
	for _, p := range bufs {
		a.Free(p)
	}
}

func BenchmarkMalloc16(b *testing.B) { benchmarkMalloc(b, 1<<4) }
func BenchmarkMalloc64(b *testing.B) { benchmarkMalloc(b, 1<<6) }
