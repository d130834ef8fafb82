// Word-shift emitters: shifting by a multiple of 64 is pure limb
// relocation, done branch-free with conditional moves. Each pass
// tests the count once and then conditionally moves every limb one
// candidate position, so the sequence's shape never depends on the
// count's value.
//
// Small widths use one pass per possible shift amount; larger widths
// decompose the count into its bits, one pass per power of two, plus a
// final pass that floods the fill value when the count is out of
// range.

package emit

import (
	"github.com/fiwia/limbgen/pkg/limb"
	"github.com/fiwia/limbgen/pkg/x86"
)

// wordAssign conditionally moves limb srcI to limb dstI under cond; a
// negative srcI means the fill value.
type wordAssign func(srcI, dstI int, cond string)

func condShrWords(n, amount int, assign wordAssign, cond string) {
	for i := 0; i < n; i++ {
		srcI := i + amount
		if srcI >= n {
			srcI = -1
		}
		assign(srcI, i, cond)
	}
}

func condShlWords(n, amount int, assign wordAssign, cond string) {
	for i := n - 1; i >= 0; i-- {
		srcI := i - amount
		if srcI < 0 {
			srcI = -1
		}
		assign(srcI, i, cond)
	}
}

// countCheck emits the test for pass i of the one-pass-per-amount
// ladder: "count > i", with the i == 0 case a plain test for nonzero.
func countCheck(b Builder, count x86.Operand, i int) {
	if i == 0 {
		b.Emit(x86.I("testq", count, count))
	} else {
		b.Emit(x86.I("cmpq", x86.Imm(int64(i)), count))
	}
}

func dumbShrWords(b Builder, count x86.Operand, n int, assign wordAssign) {
	for i := 0; i < n; i++ {
		countCheck(b, count, i)
		condShrWords(n-i, 1, assign, "a")
	}
}

func dumbShlWords(b Builder, count x86.Operand, n int, assign wordAssign) {
	for i := 0; i < n; i++ {
		countCheck(b, count, i)
		shifted := func(srcI, dstI int, cond string) {
			if srcI >= 0 {
				srcI += i
			}
			assign(srcI, dstI+i, cond)
		}
		condShlWords(n-i, 1, shifted, "a")
	}
}

// fancyShiftWords decomposes the count: for each bit below n, test it
// and move by that power of two; a final above-range check floods the
// fill.
func fancyShiftWords(b Builder, count x86.Operand, n int, condPass func(n, amount int, assign wordAssign, cond string), assign wordAssign) {
	for bit := 1; bit < n; bit <<= 1 {
		b.Emit(x86.I("testq", x86.Imm(int64(bit)), count))
		condPass(n, bit, assign, "nz")
	}
	b.Emit(x86.I("cmpq", x86.Imm(int64(n-1)), count))
	condPass(n, n, assign, "a")
}

func shiftWordsAuto(b Builder, count x86.Operand, n int, left bool, assign wordAssign) {
	if n <= 8 {
		if left {
			dumbShlWords(b, count, n, assign)
		} else {
			dumbShrWords(b, count, n, assign)
		}
		return
	}
	if left {
		fancyShiftWords(b, count, n, condShlWords, assign)
	} else {
		fancyShiftWords(b, count, n, condShrWords, assign)
	}
}

// takeFill returns the vacated-limb fill value: zero, or the top
// limb's sign replicated, sourced from top.
func takeFill(b Builder, signed bool, top x86.Operand) x86.Operand {
	if !signed {
		return b.TakeZero()
	}
	fill := x86.R(b.Regs().Take(true))
	b.Emit(x86.I("movq", top, fill))
	b.Emit(x86.I("sarq", x86.Imm(63), fill))
	return fill
}

// emitShiftWords generates shr_words/S_shr_words/shl_words. Widths up
// to m keep every limb in a register across all passes; wider inputs
// run the passes against memory, reading each limb from the output
// array once it has been written there.
func emitShiftWords(b Builder, n int, left, signed bool, m int) {
	a := b.TakeArg(0)
	count := b.TakeArg(1)
	dst := b.TakeArg(2)

	aM := x86.Mem{Base: a}
	dM := x86.Mem{Base: dst}

	if n > m {
		fill := takeFill(b, signed, aM.Displace(n-1))
		tmp := x86.R(b.Regs().Take(true))

		writtenToDst := make([]bool, n)
		getPtr := func(i int) x86.Operand {
			if writtenToDst[i] {
				return dM.Displace(i)
			}
			return aM.Displace(i)
		}

		assign := func(srcI, dstI int, cond string) {
			b.Emit(x86.I("movq", getPtr(dstI), tmp))
			if srcI < 0 {
				b.Emit(x86.I("cmov"+cond+"q", fill, tmp))
			} else {
				b.Emit(x86.I("cmov"+cond+"q", getPtr(srcI), tmp))
			}
			b.Emit(x86.I("movq", tmp, dM.Displace(dstI)))
			writtenToDst[dstI] = true
		}

		shiftWordsAuto(b, count, n, left, assign)

		for _, w := range writtenToDst {
			if !w {
				panic("emit: word shift left a limb unwritten")
			}
		}
		return
	}

	tmpRegs := make([]x86.Operand, n)
	for i, acc := range limb.Accessors(a, limb.Width(n)) {
		tmpRegs[i] = x86.R(b.Regs().Take(true))
		b.Emit(x86.I("movq", acc, tmpRegs[i]))
	}

	fill := takeFill(b, signed, tmpRegs[n-1])

	assign := func(srcI, dstI int, cond string) {
		if srcI < 0 {
			b.Emit(x86.I("cmov"+cond+"q", fill, tmpRegs[dstI]))
		} else {
			b.Emit(x86.I("cmov"+cond+"q", tmpRegs[srcI], tmpRegs[dstI]))
		}
	}

	shiftWordsAuto(b, count, n, left, assign)

	for i := range tmpRegs {
		b.Emit(x86.I("movq", tmpRegs[i], dM.Displace(i)))
	}
}
