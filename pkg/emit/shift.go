// Bit-shift emitters. Each output limb is a funnel shift of two
// adjacent source limbs; the boundary limb shifts in zeroes, or the
// sign for the arithmetic right shift.
//
// The baseline form keeps the count in cl and uses shrdq/shldq, which
// are correct for a zero count. The BMI2 form replaces the funnel with
// shrxq/shlxq plus an orq of the neighbour shifted by the negated
// count; shifts mask the count mod 64, so a zero count would pull the
// whole neighbour in. The BMI2 form is therefore only used by the
// nonzero-count entry points.

package emit

import "github.com/fiwia/limbgen/pkg/x86"

type shiftRegs struct {
	count    x86.Operand
	negCount x86.Operand
	scratch  x86.Operand
}

var cl = x86.RegOp{Reg: x86.RCX, Form: x86.Byte}

// doShr produces one limb of the right shift: src shifted right, with
// donor supplying the bits entering from above. A nil donor marks the
// top limb, which takes zero or sign bits instead.
func doShr(b Builder, src, dst, donor x86.Operand, r shiftRegs, signed, useBMI2 bool) {
	baseInsn := "shr"
	if signed && donor == nil {
		baseInsn = "sar"
	}
	if useBMI2 {
		b.Emit(x86.I(baseInsn+"xq", r.count, src, dst))
		if donor != nil {
			b.Emit(x86.I("shlxq", r.negCount, donor, r.scratch))
			b.Emit(x86.I("orq", r.scratch, dst))
		}
		return
	}
	if src != dst {
		b.Emit(x86.I("movq", src, dst))
	}
	if donor != nil {
		b.Emit(x86.I("shrdq", cl, donor, dst))
	} else {
		b.Emit(x86.I(baseInsn+"q", cl, dst))
	}
}

// doShl is the left-shift counterpart; the donor supplies bits from
// below.
func doShl(b Builder, src, dst, donor x86.Operand, r shiftRegs, useBMI2 bool) {
	if useBMI2 {
		b.Emit(x86.I("shlxq", r.count, src, dst))
		if donor != nil {
			b.Emit(x86.I("shrxq", r.negCount, donor, r.scratch))
			b.Emit(x86.I("orq", r.scratch, dst))
		}
		return
	}
	if src != dst {
		b.Emit(x86.I("movq", src, dst))
	}
	if donor != nil {
		b.Emit(x86.I("shldq", cl, donor, dst))
	} else {
		b.Emit(x86.I("shlq", cl, dst))
	}
}

func takeShiftRegs(b Builder, useBMI2 bool) shiftRegs {
	if !useBMI2 {
		return shiftRegs{count: b.TakeArgInto(1, x86.RCX)}
	}
	r := shiftRegs{count: b.TakeArg(1)}
	r.negCount = x86.R(b.Regs().Take(true))
	r.scratch = x86.R(b.Regs().Take(true))
	b.Emit(x86.I("movq", r.count, r.negCount))
	b.Emit(x86.I("negq", r.negCount))
	return r
}

// emitShr generates shr/S_shr (count may be zero, baseline form only)
// and shr_nz/S_shr_nz (nonzero count, BMI2 allowed). Limbs are
// produced low to high; two temporaries alternate between holding the
// limb under construction and its donor.
func emitShr(b Builder, n int, signed, useBMI2 bool) {
	if !useBMI2 {
		b.FixReg(x86.RCX)
	}

	a := b.TakeArg(0)
	r := takeShiftRegs(b, useBMI2)
	dst := b.TakeArg(2)

	tmp1 := x86.R(b.Regs().Take(true))
	tmp2 := x86.R(b.Regs().Take(true))

	aM := x86.Mem{Base: a}
	dM := x86.Mem{Base: dst}

	for i := 0; i < n; i++ {
		var src x86.Operand
		if i == 0 {
			src = aM.Displace(i)
		} else {
			src = tmp1
		}

		var donor x86.Operand
		if i != n-1 {
			b.Emit(x86.I("movq", aM.Displace(i+1), tmp2))
			donor = tmp2
		}

		doShr(b, src, tmp1, donor, r, signed, useBMI2)
		b.Emit(x86.I("movq", tmp1, dM.Displace(i)))
		tmp1, tmp2 = tmp2, tmp1
	}
}

// emitShl generates shl (baseline) and shl_nz (BMI2 allowed),
// producing limbs high to low.
func emitShl(b Builder, n int, useBMI2 bool) {
	if !useBMI2 {
		b.FixReg(x86.RCX)
	}

	a := b.TakeArg(0)
	r := takeShiftRegs(b, useBMI2)
	dst := b.TakeArg(2)

	tmp1 := x86.R(b.Regs().Take(true))
	tmp2 := x86.R(b.Regs().Take(true))

	aM := x86.Mem{Base: a}
	dM := x86.Mem{Base: dst}

	for i := n - 1; i >= 0; i-- {
		var src x86.Operand
		if i == n-1 {
			src = aM.Displace(i)
		} else {
			src = tmp1
		}

		var donor x86.Operand
		if i != 0 {
			b.Emit(x86.I("movq", aM.Displace(i-1), tmp2))
			donor = tmp2
		}

		doShl(b, src, tmp1, donor, r, useBMI2)
		b.Emit(x86.I("movq", tmp1, dM.Displace(i)))
		tmp1, tmp2 = tmp2, tmp1
	}
}
