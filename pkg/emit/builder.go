// Package emit contains the operation emitters: for each primitive in
// the catalogue, one emitter produces the instruction sequence
// implementing it for an arbitrary limb width W and feature tier. A
// Builder abstracts over the two calling surfaces a sequence can be
// generated for: a standalone SysV ABI function body, or an inline-asm
// fragment with symbolic operand bindings.
package emit

import (
	"fmt"

	"github.com/fiwia/limbgen/pkg/x86"
)

// Builder is the emitters' view of the function under construction.
type Builder interface {
	// Emit appends lines to the sequence.
	Emit(lines ...x86.Line)
	// Regs exposes the scratch register store.
	Regs() *RegStore
	// FixReg declares that the emitter will claim this register by
	// name, so arguments arriving in it must be relocated first.
	FixReg(r x86.Reg)
	// SetNArgs relocates every colliding argument up front. Only
	// needed when an argument must survive past a later FixReg claim.
	SetNArgs(n int)
	// TakeArg returns an operand holding argument i.
	TakeArg(i int) x86.Operand
	// TakeArgInto returns argument i, constrained to live in r.
	TakeArgInto(i int, r x86.Reg) x86.Operand
	// TakeZero returns an operand holding the value zero.
	TakeZero() x86.Operand
	// TakeRet returns the operand the return value is built in. When
	// mayOverwrite is false the operand must not alias any input.
	TakeRet(mayOverwrite bool) x86.Operand
	// WriteRet materializes the return value from src.
	WriteRet(src x86.Operand)
	// NewLabel returns a fresh branch target.
	NewLabel() x86.LabelRef
	// Seq returns the accumulated sequence.
	Seq() []x86.Line
}

// --- SysV ABI builder ---

// abiBuilder emits a standalone function body: arguments arrive in the
// SysV integer argument registers, the result leaves in rax.
type abiBuilder struct {
	name   string
	regs   *RegStore
	fixed  []x86.Reg
	argMap []x86.Reg
	seq    []x86.Line
	labelN int
}

func newABIBuilder(name string) *abiBuilder {
	b := &abiBuilder{name: name, regs: NewRegStore()}
	b.argMap = append(b.argMap, x86.ABIArgRegs...)
	return b
}

func (b *abiBuilder) Emit(lines ...x86.Line) {
	b.seq = append(b.seq, lines...)
}

func (b *abiBuilder) Regs() *RegStore { return b.regs }

func (b *abiBuilder) FixReg(r x86.Reg) {
	b.fixed = append(b.fixed, r)
}

func (b *abiBuilder) isFixed(r x86.Reg) bool {
	for _, f := range b.fixed {
		if f == r {
			return true
		}
	}
	return false
}

func (b *abiBuilder) SetNArgs(n int) {
	var taken []x86.Reg
	for i := 0; i < n; i++ {
		r := b.argMap[i]
		if b.isFixed(r) {
			dst := b.regs.Take(true)
			b.Emit(x86.I("movq", x86.R(r), x86.R(dst)))
			b.argMap[i] = dst
			taken = append(taken, dst)
		}
	}
	for _, r := range taken {
		b.regs.Untake(r)
	}
}

func (b *abiBuilder) TakeArg(i int) x86.Operand {
	r := b.argMap[i]
	if b.isFixed(r) {
		src := b.regs.TakeReg(r, false)
		dst := b.regs.Take(true)
		b.Emit(x86.I("movq", x86.R(src), x86.R(dst)))
		b.regs.Untake(src)
		return x86.R(dst)
	}
	return x86.R(b.regs.TakeReg(r, false))
}

func (b *abiBuilder) TakeArgInto(i int, into x86.Reg) x86.Operand {
	r := b.argMap[i]
	if r == into && !b.isFixed(r) {
		return x86.R(b.regs.TakeReg(r, false))
	}
	src := b.regs.TakeReg(r, false)
	dst := b.regs.TakeReg(into, true)
	b.Emit(x86.I("movq", x86.R(src), x86.R(dst)))
	b.regs.Untake(src)
	return x86.R(dst)
}

func (b *abiBuilder) TakeZero() x86.Operand {
	r := b.regs.Take(true)
	zero := x86.RegOp{Reg: r, Form: x86.Dword}
	b.Emit(x86.I("xorl", zero, zero))
	return x86.R(r)
}

func (b *abiBuilder) TakeRet(mayOverwrite bool) x86.Operand {
	return x86.R(b.regs.TakeReg(x86.RAX, true))
}

func (b *abiBuilder) WriteRet(src x86.Operand) {
	b.regs.MarkWritten(x86.RAX)
	if r, ok := src.(x86.RegOp); ok && r.Reg == x86.RAX && r.Form == x86.Quad {
		return
	}
	b.Emit(x86.I("movq", src, x86.R(x86.RAX)))
}

func (b *abiBuilder) NewLabel() x86.LabelRef {
	b.labelN++
	return x86.LabelRef(fmt.Sprintf(".L%s_%d", b.name, b.labelN))
}

func (b *abiBuilder) Seq() []x86.Line { return b.seq }

// --- Inline-asm builder ---

// InlineInfo carries the operand bindings an inline fragment needs.
type InlineInfo struct {
	// ArgLetters holds the single-register constraint letter for each
	// argument; "" means any register.
	ArgLetters []string
	// RetLetter constrains the return value; "" means any register.
	// Only meaningful when the function returns a value.
	RetLetter string
	// RetEarly marks the return binding earlyclobber.
	RetEarly bool
	// NeedsZero requests an extra zero-valued input operand.
	NeedsZero bool
	// Clobbers lists every scratch register the fragment writes.
	Clobbers []x86.Reg
}

// inlineBuilder emits an inline-asm fragment: arguments are symbolic
// operands resolved by constraint bindings, scratch registers are real
// and declared as clobbers.
type inlineBuilder struct {
	regs     *RegStore
	args     []string // constraint letter per argument
	hasRet   bool
	retLet   string
	retEarly bool
	zero     bool
	seq      []x86.Line
	labelN   int
}

func newInlineBuilder() *inlineBuilder {
	return &inlineBuilder{regs: NewRegStore()}
}

func (b *inlineBuilder) Emit(lines ...x86.Line) {
	b.seq = append(b.seq, lines...)
}

func (b *inlineBuilder) Regs() *RegStore { return b.regs }

func (b *inlineBuilder) FixReg(r x86.Reg) {}

func (b *inlineBuilder) SetNArgs(n int) {}

func (b *inlineBuilder) TakeArg(i int) x86.Operand {
	if len(b.args) != i {
		panic("emit: arguments must be taken in order")
	}
	b.args = append(b.args, "")
	return x86.Sym{Key: fmt.Sprintf("arg%d", i)}
}

func (b *inlineBuilder) TakeArgInto(i int, into x86.Reg) x86.Operand {
	letter := x86.ConstraintLetter(into)
	if letter == "" {
		panic(fmt.Sprintf("emit: register %s has no constraint letter", into))
	}
	if len(b.args) != i {
		panic("emit: arguments must be taken in order")
	}
	b.args = append(b.args, letter)
	return x86.Sym{Key: fmt.Sprintf("arg%d", i)}
}

func (b *inlineBuilder) TakeZero() x86.Operand {
	b.zero = true
	return x86.Sym{Key: "zero"}
}

func (b *inlineBuilder) TakeRet(mayOverwrite bool) x86.Operand {
	b.hasRet = true
	b.retEarly = !mayOverwrite
	return x86.Sym{Key: "ret"}
}

func (b *inlineBuilder) WriteRet(src x86.Operand) {
	b.hasRet = true
	if r, ok := src.(x86.RegOp); ok && r.Form == x86.Quad {
		if letter := x86.ConstraintLetter(r.Reg); letter != "" {
			b.retLet = letter
			return
		}
	}
	b.Emit(x86.I("movq", src, x86.Sym{Key: "ret"}))
}

func (b *inlineBuilder) NewLabel() x86.LabelRef {
	// The "!=" marker becomes "%=" after escaping, so each expansion
	// of the fragment gets unique label names.
	b.labelN++
	return x86.LabelRef(fmt.Sprintf(".L!=_%d", b.labelN))
}

func (b *inlineBuilder) Seq() []x86.Line { return b.seq }

func (b *inlineBuilder) info() *InlineInfo {
	return &InlineInfo{
		ArgLetters: b.args,
		RetLetter:  b.retLet,
		RetEarly:   b.retEarly,
		NeedsZero:  b.zero,
		Clobbers:   b.regs.Clobbers(),
	}
}
