// Package bitvec implements a fixed-length bit vector with word-chunk
// integer decoding. Bit 0 is the first (most significant) bit of the first
// chunk.
package bitvec

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"
)

const wordBits = 64

var (
	ErrIndexOutOfRange = errors.New("bit index out of range")
	ErrMisalignedWord  = errors.New("word width does not divide vector length")
	ErrWordWidth       = errors.New("word width must be in [1, 64]")
	ErrLengthMismatch  = errors.New("vector length mismatch")
)

// Vector is a fixed-length sequence of bits. The zero value is an empty vector.
type Vector struct {
	words []uint64
	n     int
}

// New returns a zeroed vector of n bits. It panics if n is negative, like make.
func New(n int) *Vector {
	if n < 0 {
		panic(fmt.Sprintf("bitvec: negative length %d", n))
	}
	return &Vector{words: make([]uint64, (n+wordBits-1)/wordBits), n: n}
}

// Parse builds a vector from a string of '0' and '1' characters.
func Parse(s string) (*Vector, error) {
	v := New(len(s))
	for i, r := range s {
		switch r {
		case '0':
		case '1':
			v.words[i/wordBits] |= 1 << (i % wordBits)
		default:
			return nil, fmt.Errorf("parse bit %d: unexpected %q", i, r)
		}
	}
	return v, nil
}

func (v *Vector) Len() int {
	return v.n
}

func (v *Vector) Bit(i int) (bool, error) {
	if err := v.checkIndex(i); err != nil {
		return false, err
	}
	return v.bit(i), nil
}

func (v *Vector) Set(i int, on bool) error {
	if err := v.checkIndex(i); err != nil {
		return err
	}
	v.set(i, on)
	return nil
}

// Invert flips the bit at i.
func (v *Vector) Invert(i int) error {
	if err := v.checkIndex(i); err != nil {
		return err
	}
	v.words[i/wordBits] ^= 1 << (i % wordBits)
	return nil
}

// Slice copies bits [from, to) into a new vector.
func (v *Vector) Slice(from, to int) (*Vector, error) {
	if from < 0 || to > v.n || from > to {
		return nil, fmt.Errorf("%w: slice [%d:%d] of %d bits", ErrIndexOutOfRange, from, to, v.n)
	}
	out := New(to - from)
	for i := from; i < to; i++ {
		if v.bit(i) {
			out.set(i-from, true)
		}
	}
	return out, nil
}

// Concat returns a new vector holding the bits of a followed by the bits of b.
// Nil arguments are treated as empty.
func Concat(a, b *Vector) *Vector {
	a, b = orEmpty(a), orEmpty(b)
	out := New(a.n + b.n)
	for i := 0; i < a.n; i++ {
		if a.bit(i) {
			out.set(i, true)
		}
	}
	for i := 0; i < b.n; i++ {
		if b.bit(i) {
			out.set(a.n+i, true)
		}
	}
	return out
}

func (v *Vector) Clone() *Vector {
	return &Vector{words: append([]uint64(nil), v.words...), n: v.n}
}

func (v *Vector) Equal(other *Vector) bool {
	if other == nil || v.n != other.n {
		return false
	}
	for i := range v.words {
		if v.words[i] != other.words[i] {
			return false
		}
	}
	return true
}

// Distance returns the number of positions at which a and b differ.
func Distance(a, b *Vector) (int, error) {
	if a.n != b.n {
		return 0, fmt.Errorf("%w: %d != %d", ErrLengthMismatch, a.n, b.n)
	}
	d := 0
	for i := range a.words {
		d += bits.OnesCount64(a.words[i] ^ b.words[i])
	}
	return d, nil
}

// Unsigned interprets consecutive word-sized chunks as unsigned integers.
func (v *Vector) Unsigned(word int) ([]uint64, error) {
	if err := v.checkWord(word); err != nil {
		return nil, err
	}
	out := make([]uint64, 0, v.n/word)
	for start := 0; start < v.n; start += word {
		out = append(out, v.chunk(start, word))
	}
	return out, nil
}

// Signed interprets consecutive word-sized chunks as two's-complement integers.
func (v *Vector) Signed(word int) ([]int64, error) {
	if err := v.checkWord(word); err != nil {
		return nil, err
	}
	out := make([]int64, 0, v.n/word)
	for start := 0; start < v.n; start += word {
		out = append(out, signExtend(v.chunk(start, word), word))
	}
	return out, nil
}

// String renders the vector as '0'/'1' characters.
func (v *Vector) String() string {
	var b strings.Builder
	b.Grow(v.n)
	for i := 0; i < v.n; i++ {
		if v.bit(i) {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

func (v *Vector) chunk(start, word int) uint64 {
	var u uint64
	for j := 0; j < word; j++ {
		u <<= 1
		if v.bit(start + j) {
			u |= 1
		}
	}
	return u
}

func signExtend(u uint64, word int) int64 {
	if word == wordBits {
		return int64(u)
	}
	if u&(1<<(word-1)) != 0 {
		return int64(u) - int64(1)<<word
	}
	return int64(u)
}

func (v *Vector) bit(i int) bool {
	return v.words[i/wordBits]&(1<<(i%wordBits)) != 0
}

func (v *Vector) set(i int, on bool) {
	if on {
		v.words[i/wordBits] |= 1 << (i % wordBits)
	} else {
		v.words[i/wordBits] &^= 1 << (i % wordBits)
	}
}

func (v *Vector) checkIndex(i int) error {
	if i < 0 || i >= v.n {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, v.n)
	}
	return nil
}

func (v *Vector) checkWord(word int) error {
	if word < 1 || word > wordBits {
		return fmt.Errorf("%w: got %d", ErrWordWidth, word)
	}
	if v.n%word != 0 {
		return fmt.Errorf("%w: %d bits by %d", ErrMisalignedWord, v.n, word)
	}
	return nil
}

func orEmpty(v *Vector) *Vector {
	if v == nil {
		return &Vector{}
	}
	return v
}
