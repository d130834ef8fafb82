// Package limb defines the limb model: a multi-precision integer of
// width W is an ordered sequence of W 64-bit limbs, little-endian (limb
// 0 least significant). Limb i of an array operand lives at base + 8*i.
package limb

import (
	"errors"
	"fmt"

	"github.com/fiwia/limbgen/pkg/x86"
)

// Size is the width of one limb in bytes.
const Size = 8

// ErrBadWidth reports a width no function can be generated at.
var ErrBadWidth = errors.New("bad limb width")

// Width is the number of limbs composing one operand.
type Width int

// Validate reports whether the width is usable for generation.
func (w Width) Validate() error {
	if w < 1 {
		return fmt.Errorf("%w: %d, must be at least 1", ErrBadWidth, int(w))
	}
	return nil
}

// Bytes returns the byte size of one operand of this width.
func (w Width) Bytes() int {
	return int(w) * Size
}

// Double returns the width of a double-width result, as produced by
// full multiplication.
func (w Width) Double() Width {
	return w * 2
}

// Accessors returns the w memory operands addressing each limb of the
// array whose base pointer is held in base, least significant first.
func Accessors(base x86.Operand, w Width) []x86.Mem {
	out := make([]x86.Mem, w)
	for i := range out {
		out[i] = x86.Mem{Base: base, Disp: i}
	}
	return out
}
