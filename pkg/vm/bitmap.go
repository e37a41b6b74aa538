package vm

import (
	"math/bits"
)

// Bitmap is a fixed-length bit vector. The executor uses it for filter
// masks and for the true/false planes of three-valued logic.
type Bitmap struct {
	bits   []uint64
	length int
}

// NewBitmap creates a new bitmap with all bits initially clear (0).
func NewBitmap(length int) *Bitmap {
	numWords := (length + 63) / 64
	return &Bitmap{
		bits:   make([]uint64, numWords),
		length: length,
	}
}

// Len returns the length of the bitmap.
func (b *Bitmap) Len() int {
	return b.length
}

// Set sets the bit at index i to 1.
func (b *Bitmap) Set(i int) {
	if i < 0 || i >= b.length {
		return
	}
	b.bits[i/64] |= uint64(1) << (i % 64)
}

// IsSet returns true if the bit at index i is 1.
func (b *Bitmap) IsSet(i int) bool {
	if i < 0 || i >= b.length {
		return false
	}
	return b.bits[i/64]&(uint64(1)<<(i%64)) != 0
}

// PopCount returns the number of bits set to 1.
func (b *Bitmap) PopCount() int {
	count := 0
	for _, word := range b.bits {
		count += bits.OnesCount64(word)
	}
	return count
}

// And returns a new bitmap that is the bitwise AND of b and other.
func (b *Bitmap) And(other *Bitmap) *Bitmap {
	result := NewBitmap(b.length)
	for i := range result.bits {
		if i < len(other.bits) {
			result.bits[i] = b.bits[i] & other.bits[i]
		}
	}
	return result
}

// Or returns a new bitmap that is the bitwise OR of b and other.
func (b *Bitmap) Or(other *Bitmap) *Bitmap {
	result := NewBitmap(b.length)
	for i := range result.bits {
		result.bits[i] = b.bits[i]
		if i < len(other.bits) {
			result.bits[i] |= other.bits[i]
		}
	}
	result.trim()
	return result
}

// Indices returns the positions of the set bits in ascending order.
func (b *Bitmap) Indices() []int {
	out := make([]int, 0, b.PopCount())
	for w, word := range b.bits {
		for word != 0 {
			tz := bits.TrailingZeros64(word)
			out = append(out, w*64+tz)
			word &= word - 1
		}
	}
	return out
}

// trim clears the bits beyond length in the last word.
func (b *Bitmap) trim() {
	if rem := b.length % 64; rem != 0 && len(b.bits) > 0 {
		b.bits[len(b.bits)-1] &= (uint64(1) << rem) - 1
	}
}
