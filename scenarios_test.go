package galloc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// These tests follow the end-to-end scenarios listed as test-suite seeds.
// Numeric expectations assume H == 32 and initMemAlloc == 131072, which
// hold on every 64-bit target this package supports (see header_test.go).

func TestScenario1_SmallInitialAllocTriggersReservation(t *testing.T) {
	var a Allocator
	b, err := a.Malloc(100)
	require.NoError(t, err)
	require.Len(t, b, 100)

	require.Equal(t, uintptr(32), H)
	first := headerFromPayload(addrOfSlice(b))
	require.Equal(t, uintptr(104), first.size)
	require.Equal(t, statusAlloc, first.status)

	second := first.next
	require.NotNil(t, second)
	require.Equal(t, uintptr(131072-32-136), second.size)
	require.Equal(t, statusFree, second.status)
	require.Nil(t, second.next)
}

func TestScenario2_SplitLeavesNoBlockSmallerThanHeader(t *testing.T) {
	var a Allocator
	b, err := a.Malloc(1)
	require.NoError(t, err)

	first := headerFromPayload(addrOfSlice(b))
	require.Equal(t, uintptr(8), first.size)
	require.Equal(t, uintptr(131072-32-40), first.next.size)
}

func TestScenario3_CoalesceOnSubsequentAlloc(t *testing.T) {
	var a Allocator
	b1, err := a.Malloc(100)
	require.NoError(t, err)
	b2, err := a.Malloc(100)
	require.NoError(t, err)

	lowerAddr := addrOfSlice(b1)
	require.Less(t, lowerAddr, addrOfSlice(b2))

	require.NoError(t, a.Free(b1))
	require.NoError(t, a.Free(b2))

	b3, err := a.Malloc(180)
	require.NoError(t, err)
	require.Equal(t, lowerAddr, addrOfSlice(b3))
}

func TestScenario4_LargeRequestUsesMapping(t *testing.T) {
	var a Allocator
	b, err := a.Malloc(200000)
	require.NoError(t, err)

	h := headerFromPayload(addrOfSlice(b))
	require.Equal(t, statusMapped, h.status)
	require.Nil(t, h.prev)
	require.Nil(t, h.next)

	require.NoError(t, a.Free(b))
	require.Zero(t, a.Stats().Mmaps)
	require.Zero(t, a.Stats().Bytes)
}

func TestScenario5_ReallocTailGrowExtendsBreak(t *testing.T) {
	var a Allocator
	b1, err := a.Malloc(100)
	require.NoError(t, err)
	b2, err := a.Malloc(100)
	require.NoError(t, err)

	require.NoError(t, a.Free(b2))

	grown, err := a.Realloc(b1, 200000)
	require.NoError(t, err)

	h := headerFromPayload(addrOfSlice(grown))
	require.Equal(t, statusAlloc, h.status)
	require.Nil(t, h.next, "list should collapse to a single tail block")
	require.Equal(t, a.anchor, h)
}

func TestScenario6_ReallocOfMappedBlockRelocates(t *testing.T) {
	var a Allocator
	p, err := a.Malloc(200000)
	require.NoError(t, err)
	for i := range p[:100] {
		p[i] = byte(i + 1)
	}

	q, err := a.Realloc(p, 100)
	require.NoError(t, err)

	h := headerFromPayload(addrOfSlice(q))
	require.NotEqual(t, statusMapped, h.status, "realloc of a mapped block must relocate into the break region")
	for i := 0; i < 100; i++ {
		require.Equal(t, byte(i+1), q[i])
	}
}

func TestScenario7_CallocZeroes(t *testing.T) {
	var a Allocator

	// Churn the heap first so the eventual allocation is likely to land in
	// a recycled FREE block rather than fresh break memory.
	for i := 0; i < 8; i++ {
		junk, err := a.Malloc(64)
		require.NoError(t, err)
		for j := range junk {
			junk[j] = 0xff
		}
		require.NoError(t, a.Free(junk))
	}

	b, err := a.Calloc(1000, 1)
	require.NoError(t, err)
	require.Len(t, b, 1000)
	for i, v := range b {
		require.Zerof(t, v, "byte %d not zero", i)
	}
}
