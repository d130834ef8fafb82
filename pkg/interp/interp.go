// Package interp executes generated instruction sequences on a
// simulated machine: sixteen integer registers, the four modeled
// condition flags and a sparse 64-bit memory. It implements exactly
// the mnemonic subset the emitters produce, so tests can run a built
// function against reference arithmetic without assembling anything.
package interp

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/fiwia/limbgen/pkg/emit"
	"github.com/fiwia/limbgen/pkg/x86"
)

var (
	ErrUnknownInstruction = errors.New("unknown instruction")
	ErrBadOperand         = errors.New("bad operand")
	ErrUnboundLabel       = errors.New("unbound label")
)

// Machine is the simulated processor state.
type Machine struct {
	regs  map[x86.Reg]uint64
	flags x86.Flag
	mem   map[uint64]uint64
}

func NewMachine() *Machine {
	return &Machine{
		regs: make(map[x86.Reg]uint64),
		mem:  make(map[uint64]uint64),
	}
}

// Reg returns the full 64-bit value of r.
func (m *Machine) Reg(r x86.Reg) uint64 { return m.regs[r] }

// SetReg sets the full 64-bit value of r.
func (m *Machine) SetReg(r x86.Reg, v uint64) { m.regs[r] = v }

// Flag reports whether f is set.
func (m *Machine) Flag(f x86.Flag) bool { return m.flags&f != 0 }

func (m *Machine) setFlag(f x86.Flag, on bool) {
	if on {
		m.flags |= f
	} else {
		m.flags &^= f
	}
}

// StoreSlice writes vals as consecutive limbs starting at addr.
func (m *Machine) StoreSlice(addr uint64, vals []uint64) {
	for i, v := range vals {
		m.mem[addr+8*uint64(i)] = v
	}
}

// LoadSlice reads n consecutive limbs starting at addr.
func (m *Machine) LoadSlice(addr uint64, n int) []uint64 {
	out := make([]uint64, n)
	for i := range out {
		out[i] = m.mem[addr+8*uint64(i)]
	}
	return out
}

// address resolves a memory operand to its byte address.
func (m *Machine) address(op x86.Mem) (uint64, error) {
	base, ok := op.Base.(x86.RegOp)
	if !ok {
		return 0, fmt.Errorf("%w: memory base %s", ErrBadOperand, op.Base)
	}
	return m.regs[base.Reg] + 8*uint64(int64(op.Disp)), nil
}

// read evaluates an operand as a source.
func (m *Machine) read(op x86.Operand) (uint64, error) {
	switch o := op.(type) {
	case x86.RegOp:
		v := m.regs[o.Reg]
		switch o.Form {
		case x86.Dword:
			return v & 0xffffffff, nil
		case x86.Byte:
			return v & 0xff, nil
		}
		return v, nil
	case x86.Imm:
		return uint64(int64(o)), nil
	case x86.Mem:
		addr, err := m.address(o)
		if err != nil {
			return 0, err
		}
		return m.mem[addr], nil
	}
	return 0, fmt.Errorf("%w: %s", ErrBadOperand, op)
}

// write stores a result into a destination operand. A 32-bit write
// zero-extends into the full register; a byte write leaves the upper
// bits alone.
func (m *Machine) write(op x86.Operand, v uint64) error {
	switch o := op.(type) {
	case x86.RegOp:
		switch o.Form {
		case x86.Dword:
			m.regs[o.Reg] = v & 0xffffffff
		case x86.Byte:
			m.regs[o.Reg] = m.regs[o.Reg]&^uint64(0xff) | v&0xff
		default:
			m.regs[o.Reg] = v
		}
		return nil
	case x86.Mem:
		addr, err := m.address(o)
		if err != nil {
			return err
		}
		m.mem[addr] = v
		return nil
	}
	return fmt.Errorf("%w: cannot write %s", ErrBadOperand, op)
}

// arith flag helpers. The overflow identities hold with carry/borrow
// included, so add-with-carry and subtract-with-borrow reuse them.

func (m *Machine) setAddFlags(x, y, r uint64, carry uint64) {
	m.setFlag(x86.CF, carry != 0)
	m.setFlag(x86.OF, (^(x^y)&(x^r))>>63 != 0)
	m.setFlag(x86.ZF, r == 0)
	m.setFlag(x86.SF, r>>63 != 0)
}

func (m *Machine) setSubFlags(x, y, r uint64, borrow uint64) {
	m.setFlag(x86.CF, borrow != 0)
	m.setFlag(x86.OF, ((x^y)&(x^r))>>63 != 0)
	m.setFlag(x86.ZF, r == 0)
	m.setFlag(x86.SF, r>>63 != 0)
}

func (m *Machine) setLogicFlags(r uint64) {
	m.setFlag(x86.CF, false)
	m.setFlag(x86.OF, false)
	m.setFlag(x86.ZF, r == 0)
	m.setFlag(x86.SF, r>>63 != 0)
}

func (m *Machine) cf() uint64 {
	if m.Flag(x86.CF) {
		return 1
	}
	return 0
}

func (m *Machine) of() uint64 {
	if m.Flag(x86.OF) {
		return 1
	}
	return 0
}

// Run executes the sequence from its first line to the end.
func (m *Machine) Run(code []x86.Line) error {
	labels := make(map[x86.LabelRef]int)
	for i, line := range code {
		if l, ok := line.(x86.LabelDef); ok {
			labels[l.Name] = i
		}
	}

	pc := 0
	for pc < len(code) {
		inst, ok := code[pc].(x86.Inst)
		if !ok {
			pc++
			continue
		}
		next, err := m.step(inst, labels, pc)
		if err != nil {
			return fmt.Errorf("at %q: %w", x86.FormatLine(inst), err)
		}
		pc = next
	}
	return nil
}

func (m *Machine) step(inst x86.Inst, labels map[x86.LabelRef]int, pc int) (int, error) {
	a := inst.Args

	src := func(i int) (uint64, error) { return m.read(a[i]) }

	switch inst.Mnemonic {
	case "movq", "movzbq":
		v, err := src(0)
		if err != nil {
			return 0, err
		}
		return pc + 1, m.write(a[1], v)

	case "addq", "adcq", "adcxq", "adoxq":
		x, err := src(0)
		if err != nil {
			return 0, err
		}
		y, err := src(1)
		if err != nil {
			return 0, err
		}
		var cin uint64
		switch inst.Mnemonic {
		case "adcq":
			cin = m.cf()
		case "adcxq":
			cin = m.cf()
		case "adoxq":
			cin = m.of()
		}
		r, c1 := bits.Add64(y, x, cin)
		switch inst.Mnemonic {
		case "adcxq":
			m.setFlag(x86.CF, c1 != 0)
		case "adoxq":
			m.setFlag(x86.OF, c1 != 0)
		default:
			m.setAddFlags(y, x, r, c1)
		}
		return pc + 1, m.write(a[1], r)

	case "subq", "sbbq", "cmpq":
		x, err := src(0)
		if err != nil {
			return 0, err
		}
		y, err := src(1)
		if err != nil {
			return 0, err
		}
		var bin uint64
		if inst.Mnemonic == "sbbq" {
			bin = m.cf()
		}
		r, b1 := bits.Sub64(y, x, bin)
		m.setSubFlags(y, x, r, b1)
		if inst.Mnemonic == "cmpq" {
			return pc + 1, nil
		}
		return pc + 1, m.write(a[1], r)

	case "negq":
		v, err := src(0)
		if err != nil {
			return 0, err
		}
		r := -v
		m.setFlag(x86.CF, v != 0)
		m.setFlag(x86.OF, v == 1<<63)
		m.setFlag(x86.ZF, r == 0)
		m.setFlag(x86.SF, r>>63 != 0)
		return pc + 1, m.write(a[0], r)

	case "andq", "orq", "xorq", "xorl", "testq":
		x, err := src(0)
		if err != nil {
			return 0, err
		}
		y, err := src(1)
		if err != nil {
			return 0, err
		}
		var r uint64
		switch inst.Mnemonic {
		case "andq", "testq":
			r = y & x
		case "orq":
			r = y | x
		default:
			r = y ^ x
		}
		m.setLogicFlags(r)
		if inst.Mnemonic == "testq" {
			return pc + 1, nil
		}
		return pc + 1, m.write(a[1], r)

	case "notq":
		v, err := src(0)
		if err != nil {
			return 0, err
		}
		return pc + 1, m.write(a[0], ^v)

	case "mulq":
		v, err := src(0)
		if err != nil {
			return 0, err
		}
		hi, lo := bits.Mul64(m.regs[x86.RAX], v)
		m.regs[x86.RAX] = lo
		m.regs[x86.RDX] = hi
		m.setFlag(x86.CF, hi != 0)
		m.setFlag(x86.OF, hi != 0)
		m.setFlag(x86.ZF, false)
		m.setFlag(x86.SF, false)
		return pc + 1, nil

	case "imulq":
		x, err := src(0)
		if err != nil {
			return 0, err
		}
		y, err := src(1)
		if err != nil {
			return 0, err
		}
		m.setFlag(x86.CF, false)
		m.setFlag(x86.OF, false)
		return pc + 1, m.write(a[1], x*y)

	case "divq":
		v, err := src(0)
		if err != nil {
			return 0, err
		}
		q, r := bits.Div64(m.regs[x86.RDX], m.regs[x86.RAX], v)
		m.regs[x86.RAX] = q
		m.regs[x86.RDX] = r
		return pc + 1, nil

	case "mulxq":
		v, err := src(0)
		if err != nil {
			return 0, err
		}
		hi, lo := bits.Mul64(m.regs[x86.RDX], v)
		if err := m.write(a[1], lo); err != nil {
			return 0, err
		}
		return pc + 1, m.write(a[2], hi)

	case "shlq", "shrq", "sarq":
		c, err := src(0)
		if err != nil {
			return 0, err
		}
		c &= 63
		v, err := src(1)
		if err != nil {
			return 0, err
		}
		if c == 0 {
			return pc + 1, nil
		}
		var r uint64
		switch inst.Mnemonic {
		case "shlq":
			r = v << c
			m.setFlag(x86.CF, v>>(64-c)&1 != 0)
		case "shrq":
			r = v >> c
			m.setFlag(x86.CF, v>>(c-1)&1 != 0)
		default:
			r = uint64(int64(v) >> c)
			m.setFlag(x86.CF, v>>(c-1)&1 != 0)
		}
		m.setFlag(x86.ZF, r == 0)
		m.setFlag(x86.SF, r>>63 != 0)
		return pc + 1, m.write(a[1], r)

	case "shldq", "shrdq":
		c, err := src(0)
		if err != nil {
			return 0, err
		}
		c &= 63
		donor, err := src(1)
		if err != nil {
			return 0, err
		}
		v, err := src(2)
		if err != nil {
			return 0, err
		}
		if c == 0 {
			return pc + 1, nil
		}
		var r uint64
		if inst.Mnemonic == "shldq" {
			r = v<<c | donor>>(64-c)
		} else {
			r = v>>c | donor<<(64-c)
		}
		m.setFlag(x86.ZF, r == 0)
		m.setFlag(x86.SF, r>>63 != 0)
		return pc + 1, m.write(a[2], r)

	case "shlxq", "shrxq", "sarxq":
		c, err := src(0)
		if err != nil {
			return 0, err
		}
		c &= 63
		v, err := src(1)
		if err != nil {
			return 0, err
		}
		var r uint64
		switch inst.Mnemonic {
		case "shlxq":
			r = v << c
		case "shrxq":
			r = v >> c
		default:
			r = uint64(int64(v) >> c)
		}
		return pc + 1, m.write(a[2], r)

	case "setl":
		return pc + 1, m.write(a[0], bool2u64(m.Flag(x86.SF) != m.Flag(x86.OF)))
	case "setge":
		return pc + 1, m.write(a[0], bool2u64(m.Flag(x86.SF) == m.Flag(x86.OF)))

	case "cmovaq":
		if !m.Flag(x86.CF) && !m.Flag(x86.ZF) {
			v, err := src(0)
			if err != nil {
				return 0, err
			}
			return pc + 1, m.write(a[1], v)
		}
		return pc + 1, nil

	case "cmovnzq":
		if !m.Flag(x86.ZF) {
			v, err := src(0)
			if err != nil {
				return 0, err
			}
			return pc + 1, m.write(a[1], v)
		}
		return pc + 1, nil

	case "jnc":
		target, ok := a[0].(x86.LabelRef)
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrBadOperand, a[0])
		}
		if m.Flag(x86.CF) {
			return pc + 1, nil
		}
		idx, ok := labels[target]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnboundLabel, target)
		}
		return idx, nil
	}

	return 0, fmt.Errorf("%w: %s", ErrUnknownInstruction, inst.Mnemonic)
}

func bool2u64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// Call runs a function built for the standalone surface: arguments go
// into the SysV argument registers and the returned value is whatever
// the function left in rax.
func (m *Machine) Call(fn *emit.Function, args ...uint64) (uint64, error) {
	if fn.Inline != nil {
		return 0, fmt.Errorf("%s: cannot call an inline fragment", fn.Name())
	}
	if len(args) > len(x86.ABIArgRegs) {
		return 0, fmt.Errorf("%s: too many arguments", fn.Name())
	}
	for i, v := range args {
		m.regs[x86.ABIArgRegs[i]] = v
	}
	if err := m.Run(fn.Code); err != nil {
		return 0, fmt.Errorf("%s: %w", fn.Name(), err)
	}
	return m.regs[x86.RAX], nil
}
