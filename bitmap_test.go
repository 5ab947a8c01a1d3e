package bwfs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBitmapAllocateFreeIdempotence(t *testing.T) {
	b := NewBitmap(64)
	b.Set(0) // superblock reservation: bit 0 is never deallocated

	var allocated []int
	for i := 0; i < 10; i++ {
		idx, ok := b.Allocate()
		if !ok {
			t.Fatalf("unexpected allocation failure at iteration %d", i)
		}
		allocated = append(allocated, idx)
	}

	for _, idx := range allocated {
		b.Deallocate(idx)
	}

	seen := make(map[int]bool)
	for range allocated {
		idx, ok := b.Allocate()
		if !ok {
			t.Fatal("allocate failed after freeing the same count of bits")
		}
		seen[idx] = true
	}

	for _, idx := range allocated {
		if !seen[idx] {
			t.Errorf("index %d was not reissued by allocate after deallocation", idx)
		}
	}
}

func TestBitmapDeallocateZeroIsNoOp(t *testing.T) {
	b := NewBitmap(8)
	b.Set(0)
	b.Deallocate(0)
	require.True(t, b.Get(0), "bit 0 must remain set even after Deallocate(0)")
}

func TestBitmapOutOfRange(t *testing.T) {
	b := NewBitmap(8)
	require.False(t, b.Get(100))
	b.Set(100)    // no-op
	b.Clear(-1)   // no-op
	require.False(t, b.Get(100))
}

func TestBitmapAllocateFull(t *testing.T) {
	b := NewBitmap(4)
	for i := 0; i < 4; i++ {
		if _, ok := b.Allocate(); !ok {
			t.Fatalf("allocate %d should have succeeded", i)
		}
	}
	if _, ok := b.Allocate(); ok {
		t.Fatal("allocate on a full bitmap should fail")
	}
}

func TestBitmapJSONRoundTrip(t *testing.T) {
	b := NewBitmap(20)
	b.Set(0)
	b.Set(5)
	b.Set(19)

	data, err := json.Marshal(b)
	require.NoError(t, err)
	require.Contains(t, string(data), `"bits":[`)
	require.Contains(t, string(data), `"size":20`)

	var decoded Bitmap
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, 20, decoded.Size())
	require.True(t, decoded.Get(0))
	require.True(t, decoded.Get(5))
	require.True(t, decoded.Get(19))
	require.False(t, decoded.Get(1))
}
