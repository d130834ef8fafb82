// Scratch register management for the operation emitters.
// Tracks which caller-saved registers are vacant and which have been
// written, so the inline renderer can declare an exact clobber list.

package emit

import (
	"fmt"
	"sort"

	"github.com/fiwia/limbgen/pkg/x86"
)

// RegStore hands out caller-saved scratch registers.
// Allocation prefers the highest-numbered vacant register, which keeps
// rax/rdx/rcx free for the instructions that demand them.
type RegStore struct {
	free    []x86.Reg
	written map[x86.Reg]bool
}

// NewRegStore creates a store with every scratch register vacant.
func NewRegStore() *RegStore {
	s := &RegStore{written: make(map[x86.Reg]bool)}
	s.free = append(s.free, x86.ScratchRegs...)
	return s
}

// Take allocates the preferred vacant register.
// Exhaustion means an emitter asked for more registers than its block
// size permits, which is a bug in the emitter, not a caller error.
func (s *RegStore) Take(write bool) x86.Reg {
	if len(s.free) == 0 {
		panic("emit: no vacant scratch register")
	}
	r := s.free[len(s.free)-1]
	s.free = s.free[:len(s.free)-1]
	if write {
		s.written[r] = true
	}
	return r
}

// TakeReg allocates a specific register, which must be vacant.
func (s *RegStore) TakeReg(r x86.Reg, write bool) x86.Reg {
	for i, f := range s.free {
		if f == r {
			s.free = append(s.free[:i], s.free[i+1:]...)
			if write {
				s.written[r] = true
			}
			return r
		}
	}
	panic(fmt.Sprintf("emit: register %s is not vacant", r))
}

// Untake returns a register to the vacant pool.
func (s *RegStore) Untake(r x86.Reg) {
	s.free = append(s.free, r)
	sort.Slice(s.free, func(i, j int) bool { return s.free[i] < s.free[j] })
}

// MarkWritten records a write to a register that was allocated
// elsewhere (the ABI return register).
func (s *RegStore) MarkWritten(r x86.Reg) {
	s.written[r] = true
}

// Clobbers lists every register that was written, in register order.
func (s *RegStore) Clobbers() []x86.Reg {
	out := make([]x86.Reg, 0, len(s.written))
	for r := range s.written {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
