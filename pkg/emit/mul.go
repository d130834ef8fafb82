// Multiplication and division emitters.
//
// The schoolbook multiplies are built from one shared row primitive:
// multiply src[0..n) by a single limb and add (or store) the partial
// products into dst, threading the high halves through a carry
// register. The baseline form uses mulq and must own rax/rdx; the BMI2
// form uses mulxq, which reads rdx and leaves the flags alone, so the
// add-into-dst carry chain can run uninterrupted across the whole row.

package emit

import "github.com/fiwia/limbgen/pkg/x86"

func untakeOp(b Builder, op x86.Operand) {
	r, ok := op.(x86.RegOp)
	if !ok {
		panic("emit: cannot untake a symbolic operand")
	}
	b.Regs().Untake(r.Reg)
}

// mulAux multiplies src[0..n) by mulby, combining the partial products
// into dst. Limbs at index >= undefFrom are stored, the rest are added
// to. Returns the register holding the final high limb, or nil when
// dropLastCarry discards it (the last step then uses imulq, which
// skips the high half entirely).
func mulAux(b Builder, n, undefFrom int, src x86.Mem, mulby x86.Operand, dst x86.Mem, zero x86.Operand, dropLastCarry bool) x86.Operand {
	rax := x86.R(b.Regs().TakeReg(x86.RAX, true))
	rdx := x86.R(b.Regs().TakeReg(x86.RDX, true))

	carry := x86.R(b.Regs().Take(true))

	for i := 0; i < n; i++ {
		dropFollowingCarry := dropLastCarry && i+1 == n

		if i > 0 {
			b.Emit(x86.I("movq", rdx, carry))
		}

		b.Emit(x86.I("movq", mulby, rax))

		if dropFollowingCarry {
			b.Emit(x86.I("imulq", src.Displace(i), rax))
		} else {
			b.Emit(x86.I("mulq", src.Displace(i)))
		}

		if i > 0 {
			b.Emit(x86.I("addq", carry, rax))
			if !dropFollowingCarry {
				b.Emit(x86.I("adcq", zero, rdx))
			}
		}

		if i >= undefFrom {
			b.Emit(x86.I("movq", rax, dst.Displace(i)))
		} else {
			b.Emit(x86.I("addq", rax, dst.Displace(i)))
			if !dropFollowingCarry {
				b.Emit(x86.I("adcq", zero, rdx))
			}
		}
	}

	untakeOp(b, carry)
	untakeOp(b, rax)
	if dropLastCarry {
		untakeOp(b, rdx)
		return nil
	}
	return rdx
}

// mulAuxBMI2 is mulAux for mulxq: the multiplier is already in rdx and
// the flags survive each step, so carries ride a single adc chain.
// cyMeaningful reports whether the carry flag is live on return. The
// high and carry registers swap roles every step; when n is odd they
// are pre-swapped so that the register passed as regCarry (when the
// caller supplies one) is also the one holding the final carry.
func mulAuxBMI2(b Builder, n, undefFrom int, src x86.Mem, dst x86.Mem, zero x86.Operand, dropLastCarry bool, regCarry x86.Operand) (x86.Operand, bool) {
	if regCarry == nil {
		regCarry = x86.R(b.Regs().Take(true))
	}
	var regLo x86.Operand = x86.R(b.Regs().Take(true))
	var regHi x86.Operand = x86.R(b.Regs().Take(true))

	if n%2 == 1 {
		regHi, regCarry = regCarry, regHi
	}

	cyMeaningful := false

	for i := 0; i < n; i++ {
		dropFollowingCarry := dropLastCarry && i+1 == n

		b.Emit(x86.I("mulxq", src.Displace(i), regLo, regHi))

		if i > 0 {
			insn := "addq"
			if cyMeaningful {
				insn = "adcq"
			}
			b.Emit(x86.I(insn, regCarry, regLo))
			cyMeaningful = true
		}

		if i >= undefFrom {
			b.Emit(x86.I("movq", regLo, dst.Displace(i)))
		} else {
			if cyMeaningful && !dropFollowingCarry {
				b.Emit(x86.I("adcq", zero, regHi))
			}
			b.Emit(x86.I("addq", regLo, dst.Displace(i)))
			cyMeaningful = true
		}

		regHi, regCarry = regCarry, regHi
	}

	untakeOp(b, regLo)
	untakeOp(b, regHi)
	if dropLastCarry {
		untakeOp(b, regCarry)
		return nil, cyMeaningful
	}
	return regCarry, cyMeaningful
}

// mulAuxAuto runs mulAux with the multiplier loaded from memory first.
// For a single limb the memory operand feeds the multiply directly.
func mulAuxAuto(b Builder, n, undefFrom int, src x86.Mem, mulby x86.Operand, dst x86.Mem, zero x86.Operand, dropLastCarry bool) x86.Operand {
	if n == 1 {
		return mulAux(b, n, undefFrom, src, mulby, dst, zero, dropLastCarry)
	}
	regMulby := x86.R(b.Regs().Take(true))
	b.Emit(x86.I("movq", mulby, regMulby))
	result := mulAux(b, n, undefFrom, src, regMulby, dst, zero, dropLastCarry)
	untakeOp(b, regMulby)
	return result
}

// longMulStep is one full row of the schoolbook multiply: src times one
// limb of the multiplicand, n+1 limbs of output into dst.
func longMulStep(b Builder, n, undefFrom int, src x86.Mem, mulby x86.Operand, dst x86.Mem, zero x86.Operand) {
	lastCarry := mulAuxAuto(b, n, undefFrom, src, mulby, dst, zero, false)

	if n >= undefFrom {
		b.Emit(x86.I("movq", lastCarry, dst.Displace(n)))
	} else {
		b.Emit(x86.I("addq", lastCarry, dst.Displace(n)))
	}

	untakeOp(b, lastCarry)
}

func longMulStepBMI2(b Builder, n, undefFrom int, src x86.Mem, dst x86.Mem, zero x86.Operand) {
	lastCarry, cyMeaningful := mulAuxBMI2(b, n, undefFrom, src, dst, zero, false, nil)

	if n >= undefFrom {
		if cyMeaningful {
			b.Emit(x86.I("adcq", zero, lastCarry))
		}
		b.Emit(x86.I("movq", lastCarry, dst.Displace(n)))
	} else {
		insn := "addq"
		if cyMeaningful {
			insn = "adcq"
		}
		b.Emit(x86.I(insn, lastCarry, dst.Displace(n)))
	}

	untakeOp(b, lastCarry)
}

// emitMulPlain generates the baseline full multiply: n rows of
// longMulStep, row 0 storing, later rows adding into the overlap.
func emitMulPlain(b Builder, n int) {
	b.FixReg(x86.RAX)
	b.FixReg(x86.RDX)

	a := b.TakeArg(0)
	mulby := b.TakeArg(1)
	dst := b.TakeArg(2)

	aM := x86.Mem{Base: a}
	bM := x86.Mem{Base: mulby}
	dM := x86.Mem{Base: dst}

	for i := 0; i < n; i++ {
		undefFrom := 0
		if i > 0 {
			undefFrom = n
		}
		longMulStep(b, n, undefFrom, aM, bM.Displace(i), dM.Displace(i), x86.Imm(0))
	}
}

func emitMulBMI2(b Builder, n int) {
	b.FixReg(x86.RDX)

	a := b.TakeArg(0)
	mulby := b.TakeArg(1)
	dst := b.TakeArg(2)

	rdx := x86.R(b.Regs().TakeReg(x86.RDX, true))

	aM := x86.Mem{Base: a}
	bM := x86.Mem{Base: mulby}
	dM := x86.Mem{Base: dst}

	for i := 0; i < n; i++ {
		undefFrom := 0
		if i > 0 {
			undefFrom = n
		}
		b.Emit(x86.I("movq", bM.Displace(i), rdx))
		longMulStepBMI2(b, n, undefFrom, aM, dM.Displace(i), x86.Imm(0))
	}
}

// emitMulADX generates the full multiply on two independent carry
// chains: adcxq accumulates into the destination through CF while
// adoxq threads the high halves through OF, so the two never stall on
// each other. Each row starts with an xorl that both clears the chains
// and refreshes the zero register used to fold them at the row's end.
func emitMulADX(b Builder, n int) {
	if n == 1 {
		// A single row has no chain overlap to win from.
		emitMulBMI2(b, n)
		return
	}

	b.FixReg(x86.RDX)

	a := b.TakeArg(0)
	mulby := b.TakeArg(1)
	dst := b.TakeArg(2)

	rdx := x86.R(b.Regs().TakeReg(x86.RDX, true))

	zr := b.Regs().Take(true)
	zeroQ := x86.R(zr)
	zeroD := x86.RegOp{Reg: zr, Form: x86.Dword}

	regLo := x86.R(b.Regs().Take(true))
	regHi := x86.R(b.Regs().Take(true))
	regCarry := x86.R(b.Regs().Take(true))

	aM := x86.Mem{Base: a}
	bM := x86.Mem{Base: mulby}
	dM := x86.Mem{Base: dst}

	for j := 0; j < n; j++ {
		b.Emit(x86.I("movq", bM.Displace(j), rdx))
		b.Emit(x86.I("xorl", zeroD, zeroD))

		row := dM.Displace(j)
		for i := 0; i < n; i++ {
			if i == 0 {
				b.Emit(x86.I("mulxq", aM, regLo, regCarry))
				if j > 0 {
					b.Emit(x86.I("adcxq", row, regLo))
				}
				b.Emit(x86.I("movq", regLo, row))
				continue
			}
			b.Emit(x86.I("mulxq", aM.Displace(i), regLo, regHi))
			b.Emit(x86.I("adoxq", regCarry, regLo))
			if j > 0 {
				b.Emit(x86.I("adcxq", row.Displace(i), regLo))
			}
			b.Emit(x86.I("movq", regLo, row.Displace(i)))
			regHi, regCarry = regCarry, regHi
		}

		// The final limb cannot overflow: the row's true sum fits in
		// n+1 limbs, so folding both chain flags into the last high
		// half stays below 2^64.
		b.Emit(x86.I("adoxq", zeroQ, regCarry))
		if j > 0 {
			b.Emit(x86.I("adcxq", zeroQ, regCarry))
		}
		b.Emit(x86.I("movq", regCarry, row.Displace(n)))
	}
}

// emitMul picks the full-multiply form for the feature tier.
func emitMul(b Builder, n int, hasMULX, hasADX bool) {
	switch {
	case hasADX:
		emitMulADX(b, n)
	case hasMULX:
		emitMulBMI2(b, n)
	default:
		emitMulPlain(b, n)
	}
}

// emitMulLo generates mul_lo: the low n limbs of the product only.
// Row i multiplies by b[i] and needs just n-i limbs, with the final
// high half of every row dropped.
func emitMulLo(b Builder, n int, hasMULX bool) {
	if hasMULX {
		b.FixReg(x86.RDX)
	} else {
		b.FixReg(x86.RAX)
		b.FixReg(x86.RDX)
	}

	a := b.TakeArg(0)
	mulby := b.TakeArg(1)
	dst := b.TakeArg(2)

	var rdx x86.Operand
	if hasMULX {
		rdx = x86.R(b.Regs().TakeReg(x86.RDX, true))
	}

	aM := x86.Mem{Base: a}
	bM := x86.Mem{Base: mulby}
	dM := x86.Mem{Base: dst}

	for i := 0; i < n; i++ {
		undefFrom := 0
		if i > 0 {
			undefFrom = n
		}
		if hasMULX {
			b.Emit(x86.I("movq", bM.Displace(i), rdx))
			mulAuxBMI2(b, n-i, undefFrom, aM, dM.Displace(i), x86.Imm(0), true, nil)
		} else {
			mulAuxAuto(b, n-i, undefFrom, aM, bM.Displace(i), dM.Displace(i), x86.Imm(0), true)
		}
	}
}

// emitMulQ generates mul_q: multiply the n-limb src by a scalar into
// dst, returning the high limb.
func emitMulQ(b Builder, n int, hasMULX bool) {
	if hasMULX {
		b.FixReg(x86.RDX)
		b.SetNArgs(3)

		src := b.TakeArg(0)
		b.TakeArgInto(1, x86.RDX)
		dst := b.TakeArg(2)

		result := b.TakeRet(false)

		lastCarry, cyMeaningful := mulAuxBMI2(b, n, 0, x86.Mem{Base: src}, x86.Mem{Base: dst}, x86.Imm(0), false, result)
		if lastCarry != result {
			panic("emit: scalar multiply carry ended in the wrong register")
		}
		if cyMeaningful {
			b.Emit(x86.I("adcq", x86.Imm(0), lastCarry))
		}
		return
	}

	b.FixReg(x86.RAX)
	b.FixReg(x86.RDX)

	src := b.TakeArg(0)
	m := b.TakeArg(1)
	dst := b.TakeArg(2)

	lastCarry := mulAux(b, n, 0, x86.Mem{Base: src}, m, x86.Mem{Base: dst}, x86.Imm(0), false)
	b.WriteRet(lastCarry)
}

// emitDivQ generates div_q and mod_q: schoolbook division by a single
// limb, most significant limb first, the running remainder riding in
// rdx between divq steps. mod_q skips the quotient stores.
func emitDivQ(b Builder, n int, wantQuotient bool) {
	b.FixReg(x86.RAX)
	b.FixReg(x86.RDX)

	a := b.TakeArg(0)
	m := b.TakeArg(1)
	var dM x86.Mem
	if wantQuotient {
		dM = x86.Mem{Base: b.TakeArg(2)}
	}

	aM := x86.Mem{Base: a}

	rax := x86.R(b.Regs().TakeReg(x86.RAX, true))
	rdx := x86.R(b.Regs().TakeReg(x86.RDX, true))

	b.Emit(x86.I("xorl", x86.RegOp{Reg: x86.RDX, Form: x86.Dword}, x86.RegOp{Reg: x86.RDX, Form: x86.Dword}))

	for i := n - 1; i >= 0; i-- {
		b.Emit(x86.I("movq", aM.Displace(i), rax))
		b.Emit(x86.I("divq", m))
		if wantQuotient {
			b.Emit(x86.I("movq", rax, dM.Displace(i)))
		}
	}

	b.WriteRet(rdx)
}
