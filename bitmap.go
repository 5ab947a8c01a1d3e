package bwfs

import "encoding/json"

// Bitmap is a compact bit-array supporting first-fit allocation. It persists
// as a literal JSON array of byte values plus an explicit logical size, not
// Go's default base64 []byte encoding, so a hand-written Marshal/Unmarshal
// pair is required.
type Bitmap struct {
	bits []byte
	size int
}

// NewBitmap builds an all-clear bitmap covering size bits.
func NewBitmap(size int) *Bitmap {
	return &Bitmap{
		bits: make([]byte, (size+7)/8),
		size: size,
	}
}

func (b *Bitmap) Size() int { return b.size }

// Get reports whether bit idx is set. Out-of-range reads as false.
func (b *Bitmap) Get(idx int) bool {
	if idx < 0 || idx >= b.size {
		return false
	}
	return b.bits[idx/8]&(1<<uint(7-idx%8)) != 0
}

// Set marks bit idx allocated. Out-of-range is a no-op.
func (b *Bitmap) Set(idx int) {
	if idx < 0 || idx >= b.size {
		return
	}
	b.bits[idx/8] |= 1 << uint(7-idx%8)
}

// Clear marks bit idx free. Out-of-range is a no-op; clearing bit 0 is
// likewise a no-op since block 0 is the permanently reserved superblock.
func (b *Bitmap) Clear(idx int) {
	if idx == 0 {
		return
	}
	if idx < 0 || idx >= b.size {
		return
	}
	b.bits[idx/8] &^= 1 << uint(7-idx%8)
}

// Allocate returns the lowest clear bit, setting it, or ok=false if full.
func (b *Bitmap) Allocate() (idx int, ok bool) {
	for i := 0; i < b.size; i++ {
		if !b.Get(i) {
			b.Set(i)
			return i, true
		}
	}
	return 0, false
}

// Deallocate is an alias for Clear kept for symmetry with Allocate; bit 0
// can never be deallocated.
func (b *Bitmap) Deallocate(idx int) {
	b.Clear(idx)
}

func (b *Bitmap) Clone() *Bitmap {
	cp := make([]byte, len(b.bits))
	copy(cp, b.bits)
	return &Bitmap{bits: cp, size: b.size}
}

type bitmapWire struct {
	Bits []int `json:"bits"`
	Size int     `json:"size"`
}

func (b *Bitmap) MarshalJSON() ([]byte, error) {
	w := bitmapWire{Bits: make([]int, len(b.bits)), Size: b.size}
	for i, v := range b.bits {
		w.Bits[i] = int(v)
	}
	return json.Marshal(w)
}

func (b *Bitmap) UnmarshalJSON(data []byte) error {
	var w bitmapWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	b.bits = make([]byte, len(w.Bits))
	for i, v := range w.Bits {
		b.bits[i] = byte(v)
	}
	b.size = w.Size
	return nil
}
