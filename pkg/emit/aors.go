// Add/subtract emitters: the carry and borrow chains shared by the
// plain, masked and scalar variants, and negation.
//
// Every chain has the same shape: step 0 uses the flag-setting
// instruction (add/sub), steps 1..W-1 use the flag-consuming variant
// (adc/sbb), and nothing between two chain steps may touch the flags.
// The final carry or borrow is materialized branch-free with
// "sbbq r, r", yielding all-ones when the flag is set and zero
// otherwise.

package emit

import "github.com/fiwia/limbgen/pkg/x86"

// aorsKind selects the add or the subtract instruction pair.
type aorsKind struct {
	addsub string // flag-setting first step
	adcsbb string // flag-propagating later steps
}

var (
	aorsAdd = aorsKind{addsub: "addq", adcsbb: "adcq"}
	aorsSub = aorsKind{addsub: "subq", adcsbb: "sbbq"}
)

// chainStep emits one step of a carry/borrow chain: the flag-setting
// form for step 0, the propagating form after.
func chainStep(b Builder, k aorsKind, i int, src, dst x86.Operand) {
	if i == 0 {
		b.Emit(x86.I(k.addsub, src, dst))
	} else {
		b.Emit(x86.I(k.adcsbb, src, dst))
	}
}

// materializeFlag converts the carry/borrow flag into an all-ones or
// zero value in ret.
func materializeFlag(b Builder, ret x86.Operand) {
	b.Emit(x86.I("sbbq", ret, ret))
}

// emitAors generates add or sub: combine limb i of b into limb i of a
// in place, chain the flag through all W limbs, return the final
// carry/borrow as a mask.
func emitAors(b Builder, n int, k aorsKind) {
	a := b.TakeArg(0)
	src := b.TakeArg(1)
	tmp := x86.R(b.Regs().Take(true))

	aM := x86.Mem{Base: a}
	bM := x86.Mem{Base: src}

	for i := 0; i < n; i++ {
		b.Emit(x86.I("movq", bM.Displace(i), tmp))
		chainStep(b, k, i, tmp, aM.Displace(i))
	}

	ret := b.TakeRet(true)
	materializeFlag(b, ret)
}

// aorsMaskedBlock processes one block of a masked chain: AND the mask
// into up to len(mRegs) source limbs, then run the chain over them.
// When restore is set the saved carry in regC is pushed back into the
// flag first (shift the mask's top bit out); when save is set the
// carry is parked in regC for the next block.
func aorsMaskedBlock(b Builder, aM, bM x86.Mem, regC, mask x86.Operand, mRegs []x86.Operand, k aorsKind, save, restore bool) {
	for i, mr := range mRegs {
		b.Emit(x86.I("movq", bM.Displace(i), mr))
		b.Emit(x86.I("andq", mask, mr))
	}

	if restore {
		b.Emit(x86.I("shlq", x86.Imm(1), regC))
	}

	for i, mr := range mRegs {
		if !restore && i == 0 {
			b.Emit(x86.I(k.addsub, mr, aM.Displace(i)))
		} else {
			b.Emit(x86.I(k.adcsbb, mr, aM.Displace(i)))
		}
	}

	if save {
		b.Emit(x86.I("sbbq", regC, regC))
	}
}

// emitAorsMasked generates add_masked/sub_masked: the second operand is
// ANDed with a mask that is all-ones or zero by contract, so a zero
// mask turns the whole chain into an add/sub of zero. No instruction
// depends on the mask's value for control flow.
func emitAorsMasked(b Builder, n int, k aorsKind, m int) {
	a := b.TakeArg(0)
	src := b.TakeArg(1)
	mask := b.TakeArg(2)

	aM := x86.Mem{Base: a}
	bM := x86.Mem{Base: src}

	if n > m {
		regC := x86.R(b.Regs().Take(true))
		mRegs := make([]x86.Operand, m)
		for i := range mRegs {
			mRegs[i] = x86.R(b.Regs().Take(true))
		}
		restore := false
		for n > 0 {
			thisM := m
			if n < m {
				thisM = n
			}
			aorsMaskedBlock(b, aM, bM, regC, mask, mRegs[:thisM], k, thisM != n, restore)
			aM = aM.Displace(thisM)
			bM = bM.Displace(thisM)
			restore = true
			n -= thisM
		}
	} else {
		mRegs := make([]x86.Operand, n)
		for i := range mRegs {
			mRegs[i] = x86.R(b.Regs().Take(true))
		}
		aorsMaskedBlock(b, aM, bM, nil, mask, mRegs, k, false, false)
	}

	ret := b.TakeRet(true)
	materializeFlag(b, ret)
	// A masked-out operation must report no carry; the AND keeps the
	// returned mask inside the input mask.
	b.Emit(x86.I("andq", mask, ret))
}

// emitAorsQ generates add_q/sub_q: combine the scalar at limb 0, then
// propagate the flag through the remaining limbs against zero. The
// leaky variant exits the propagation early once the flag dies; it
// trades uniform timing for speed and is documented as such.
func emitAorsQ(b Builder, n int, k aorsKind, leaky bool) {
	a := b.TakeArg(0)
	scalar := b.TakeArg(1)

	aM := x86.Mem{Base: a}

	var done x86.LabelRef
	if leaky && n > 2 {
		done = b.NewLabel()
	}

	for i := 0; i < n; i++ {
		if i == 0 {
			b.Emit(x86.I(k.addsub, scalar, aM))
			// No early exit after limb 0: the flag is set about half
			// the time there, which the branch predictor cannot learn.
			// From limb 1 on the probability is 2^-64.
			continue
		}
		b.Emit(x86.I(k.adcsbb, x86.Imm(0), aM.Displace(i)))
		if done != "" && i != n-1 {
			b.Emit(x86.I("jnc", done))
		}
	}

	if done != "" {
		b.Emit(x86.LabelDef{Name: done})
	}

	ret := b.TakeRet(true)
	materializeFlag(b, ret)
}

// emitNegate generates negate: 0 - a into the distinct output array,
// borrow-chained, returning the final borrow mask. Limb 0 uses neg;
// later limbs subtract from a zeroed temporary so the borrow threads
// through.
func emitNegate(b Builder, n int) {
	a := b.TakeArg(0)
	out := b.TakeArg(1)
	tmp := x86.R(b.Regs().Take(true))

	aM := x86.Mem{Base: a}
	outM := x86.Mem{Base: out}

	for i := 0; i < n; i++ {
		if i == 0 {
			b.Emit(x86.I("movq", aM, tmp))
			b.Emit(x86.I("negq", tmp))
		} else {
			b.Emit(x86.I("movq", x86.Imm(0), tmp))
			b.Emit(x86.I("sbbq", aM.Displace(i), tmp))
		}
		b.Emit(x86.I("movq", tmp, outM.Displace(i)))
	}

	ret := b.TakeRet(true)
	materializeFlag(b, ret)
}
