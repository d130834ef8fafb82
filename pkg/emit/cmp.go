// Comparison emitters. The ordered comparisons run a borrow chain that
// discards the difference and keeps only the final flags; equality is a
// plain xor/or accumulation with no chain at all.

package emit

import "github.com/fiwia/limbgen/pkg/x86"

// emitCmplt generates cmplt/S_cmplt over the borrow chain of a - b.
// Unsigned returns the borrow as an all-ones/zero mask. Signed folds
// the sign bits in via setl, which reads exactly the SF and OF left by
// the top-limb subtraction, and returns a literal 0 or 1.
func emitCmplt(b Builder, n int, signed bool) {
	a := b.TakeArg(0)
	src := b.TakeArg(1)
	tmp := x86.R(b.Regs().Take(true))

	aM := x86.Mem{Base: a}
	bM := x86.Mem{Base: src}

	for i := 0; i < n; i++ {
		b.Emit(x86.I("movq", aM.Displace(i), tmp))
		chainStep(b, aorsSub, i, bM.Displace(i), tmp)
	}

	ret := b.TakeRet(true)
	if signed {
		b.Emit(x86.I("setl", x86.WithForm(ret, x86.Byte)))
		b.Emit(x86.I("movzbq", x86.WithForm(ret, x86.Byte), ret))
	} else {
		materializeFlag(b, ret)
	}
}

// emitCmple generates cmple/S_cmple. a <= b is computed as the
// complement of b < a, so the chain subtracts a from b. Unsigned
// inverts the borrow mask with notq; signed uses setge on the b - a
// flags, again a literal 0 or 1.
func emitCmple(b Builder, n int, signed bool) {
	a := b.TakeArg(0)
	src := b.TakeArg(1)
	tmp := x86.R(b.Regs().Take(true))

	aM := x86.Mem{Base: a}
	bM := x86.Mem{Base: src}

	for i := 0; i < n; i++ {
		b.Emit(x86.I("movq", bM.Displace(i), tmp))
		chainStep(b, aorsSub, i, aM.Displace(i), tmp)
	}

	ret := b.TakeRet(true)
	if signed {
		b.Emit(x86.I("setge", x86.WithForm(ret, x86.Byte)))
		b.Emit(x86.I("movzbq", x86.WithForm(ret, x86.Byte), ret))
	} else {
		materializeFlag(b, ret)
		b.Emit(x86.I("notq", ret))
	}
}

// emitCmpeq generates cmpeq: OR together the xor of every limb pair,
// then turn "accumulator is zero" into an all-ones mask with the
// subtract-one/borrow trick.
func emitCmpeq(b Builder, n int) {
	a := b.TakeArg(0)
	src := b.TakeArg(1)
	tmp := x86.R(b.Regs().Take(true))

	ret := b.TakeRet(false)

	aM := x86.Mem{Base: a}
	bM := x86.Mem{Base: src}

	for i := 0; i < n; i++ {
		if i == 0 {
			b.Emit(x86.I("movq", aM, ret))
			b.Emit(x86.I("xorq", bM, ret))
		} else {
			b.Emit(x86.I("movq", aM.Displace(i), tmp))
			b.Emit(x86.I("xorq", bM.Displace(i), tmp))
			b.Emit(x86.I("orq", tmp, ret))
		}
	}

	b.Emit(x86.I("subq", x86.Imm(1), ret))
	materializeFlag(b, ret)
}
