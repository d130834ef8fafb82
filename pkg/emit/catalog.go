package emit

import (
	"errors"
	"fmt"

	"github.com/fiwia/limbgen/pkg/feature"
	"github.com/fiwia/limbgen/pkg/limb"
	"github.com/fiwia/limbgen/pkg/x86"
)

// NamePrefix starts every generated symbol; the full name is
// NamePrefix_<op>_<width>.
const NamePrefix = "asm"

var (
	ErrUnknownFunction = errors.New("unknown function")
)

// ParamKind classifies a parameter of a generated function.
type ParamKind int

const (
	// PtrInOut points at a limb array that is read and written.
	PtrInOut ParamKind = iota
	// PtrIn points at a limb array that is only read.
	PtrIn
	// PtrOut points at a limb array that is only written.
	PtrOut
	// Scalar is a single limb passed by value.
	Scalar
)

// CType returns the C declaration type for the parameter.
func (k ParamKind) CType() string {
	switch k {
	case PtrIn:
		return "uint64_t const *"
	case Scalar:
		return "uint64_t"
	default:
		return "uint64_t *"
	}
}

// ReturnKind classifies what a generated function returns.
type ReturnKind int

const (
	// RetNone returns nothing.
	RetNone ReturnKind = iota
	// RetMask returns all-ones or zero.
	RetMask
	// RetBit returns a literal 0 or 1.
	RetBit
	// RetHighLimb returns the product limb above the written array.
	RetHighLimb
	// RetRemainder returns the division remainder.
	RetRemainder
)

// CType returns the C declaration type for the return value.
func (k ReturnKind) CType() string {
	if k == RetNone {
		return "void"
	}
	return "uint64_t"
}

// Op is one catalogue entry: a primitive generatable at any width.
type Op struct {
	Name   string
	Params []ParamKind
	Ret    ReturnKind

	emit func(b Builder, n int, tier feature.Tier, inline bool)
}

// WritesMemory reports whether the op stores through any pointer
// parameter. Pure comparisons do not, and their inline form can omit
// the memory clobber.
func (op Op) WritesMemory() bool {
	for _, p := range op.Params {
		if p == PtrInOut || p == PtrOut {
			return true
		}
	}
	return false
}

// SymbolName returns the linker symbol for the op at width w.
func (op Op) SymbolName(w limb.Width) string {
	return fmt.Sprintf("%s_%s_%d", NamePrefix, op.Name, w)
}

// Block size for the masked add/sub and word-shift register windows.
// The inline form spends more registers because its arguments do not
// occupy fixed ABI registers.
func blockSize(inline bool) int {
	if inline {
		return 8
	}
	return 4
}

// Catalogue returns every op, in the order they appear in the
// generated files.
func Catalogue() []Op {
	twoPtr := []ParamKind{PtrInOut, PtrIn}
	twoConst := []ParamKind{PtrIn, PtrIn}
	ptrScalar := []ParamKind{PtrInOut, Scalar}
	mulArgs := []ParamKind{PtrIn, PtrIn, PtrOut}
	scalarOut := []ParamKind{PtrIn, Scalar, PtrOut}

	return []Op{
		{Name: "add", Params: twoPtr, Ret: RetMask,
			emit: func(b Builder, n int, _ feature.Tier, _ bool) { emitAors(b, n, aorsAdd) }},
		{Name: "sub", Params: twoPtr, Ret: RetMask,
			emit: func(b Builder, n int, _ feature.Tier, _ bool) { emitAors(b, n, aorsSub) }},
		{Name: "add_masked", Params: []ParamKind{PtrInOut, PtrIn, Scalar}, Ret: RetMask,
			emit: func(b Builder, n int, _ feature.Tier, inline bool) {
				emitAorsMasked(b, n, aorsAdd, blockSize(inline))
			}},
		{Name: "sub_masked", Params: []ParamKind{PtrInOut, PtrIn, Scalar}, Ret: RetMask,
			emit: func(b Builder, n int, _ feature.Tier, inline bool) {
				emitAorsMasked(b, n, aorsSub, blockSize(inline))
			}},
		{Name: "negate", Params: []ParamKind{PtrIn, PtrOut}, Ret: RetMask,
			emit: func(b Builder, n int, _ feature.Tier, _ bool) { emitNegate(b, n) }},

		{Name: "add_q", Params: ptrScalar, Ret: RetMask,
			emit: func(b Builder, n int, _ feature.Tier, _ bool) { emitAorsQ(b, n, aorsAdd, false) }},
		{Name: "sub_q", Params: ptrScalar, Ret: RetMask,
			emit: func(b Builder, n int, _ feature.Tier, _ bool) { emitAorsQ(b, n, aorsSub, false) }},
		{Name: "add_q_leaky", Params: ptrScalar, Ret: RetMask,
			emit: func(b Builder, n int, _ feature.Tier, _ bool) { emitAorsQ(b, n, aorsAdd, true) }},
		{Name: "sub_q_leaky", Params: ptrScalar, Ret: RetMask,
			emit: func(b Builder, n int, _ feature.Tier, _ bool) { emitAorsQ(b, n, aorsSub, true) }},

		{Name: "cmplt", Params: twoConst, Ret: RetMask,
			emit: func(b Builder, n int, _ feature.Tier, _ bool) { emitCmplt(b, n, false) }},
		{Name: "cmple", Params: twoConst, Ret: RetMask,
			emit: func(b Builder, n int, _ feature.Tier, _ bool) { emitCmple(b, n, false) }},
		{Name: "S_cmplt", Params: twoConst, Ret: RetBit,
			emit: func(b Builder, n int, _ feature.Tier, _ bool) { emitCmplt(b, n, true) }},
		{Name: "S_cmple", Params: twoConst, Ret: RetBit,
			emit: func(b Builder, n int, _ feature.Tier, _ bool) { emitCmple(b, n, true) }},
		{Name: "cmpeq", Params: twoConst, Ret: RetMask,
			emit: func(b Builder, n int, _ feature.Tier, _ bool) { emitCmpeq(b, n) }},

		{Name: "mul_q", Params: scalarOut, Ret: RetHighLimb,
			emit: func(b Builder, n int, t feature.Tier, _ bool) { emitMulQ(b, n, t.HasMULX()) }},
		{Name: "div_q", Params: scalarOut, Ret: RetRemainder,
			emit: func(b Builder, n int, _ feature.Tier, _ bool) { emitDivQ(b, n, true) }},
		{Name: "mod_q", Params: []ParamKind{PtrIn, Scalar}, Ret: RetRemainder,
			emit: func(b Builder, n int, _ feature.Tier, _ bool) { emitDivQ(b, n, false) }},
		{Name: "mul_lo", Params: mulArgs, Ret: RetNone,
			emit: func(b Builder, n int, t feature.Tier, _ bool) { emitMulLo(b, n, t.HasMULX()) }},
		{Name: "mul", Params: mulArgs, Ret: RetNone,
			emit: func(b Builder, n int, t feature.Tier, _ bool) { emitMul(b, n, t.HasMULX(), t.HasADX()) }},

		{Name: "shr_nz", Params: scalarOut, Ret: RetNone,
			emit: func(b Builder, n int, t feature.Tier, _ bool) { emitShr(b, n, false, t.HasMULX()) }},
		{Name: "S_shr_nz", Params: scalarOut, Ret: RetNone,
			emit: func(b Builder, n int, t feature.Tier, _ bool) { emitShr(b, n, true, t.HasMULX()) }},
		{Name: "shl_nz", Params: scalarOut, Ret: RetNone,
			emit: func(b Builder, n int, t feature.Tier, _ bool) { emitShl(b, n, t.HasMULX()) }},

		{Name: "shr", Params: scalarOut, Ret: RetNone,
			emit: func(b Builder, n int, _ feature.Tier, _ bool) { emitShr(b, n, false, false) }},
		{Name: "S_shr", Params: scalarOut, Ret: RetNone,
			emit: func(b Builder, n int, _ feature.Tier, _ bool) { emitShr(b, n, true, false) }},
		{Name: "shl", Params: scalarOut, Ret: RetNone,
			emit: func(b Builder, n int, _ feature.Tier, _ bool) { emitShl(b, n, false) }},

		{Name: "shr_words", Params: scalarOut, Ret: RetNone,
			emit: func(b Builder, n int, _ feature.Tier, inline bool) {
				emitShiftWords(b, n, false, false, blockSize(inline))
			}},
		{Name: "S_shr_words", Params: scalarOut, Ret: RetNone,
			emit: func(b Builder, n int, _ feature.Tier, inline bool) {
				emitShiftWords(b, n, false, true, blockSize(inline))
			}},
		{Name: "shl_words", Params: scalarOut, Ret: RetNone,
			emit: func(b Builder, n int, _ feature.Tier, inline bool) {
				emitShiftWords(b, n, true, false, blockSize(inline))
			}},
	}
}

// Select filters the catalogue down to the named ops, keeping
// catalogue order. Names may be bare op names or full symbol names at
// width w. An empty name list selects everything.
func Select(names []string, w limb.Width) ([]Op, error) {
	all := Catalogue()
	if len(names) == 0 {
		return all, nil
	}
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}
	var out []Op
	for _, op := range all {
		if wanted[op.Name] || wanted[op.SymbolName(w)] {
			out = append(out, op)
			delete(wanted, op.Name)
			delete(wanted, op.SymbolName(w))
		}
	}
	for name := range wanted {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFunction, name)
	}
	return out, nil
}

// Function is one generated function: an op instantiated at a width.
type Function struct {
	Op    Op
	Width limb.Width
	Code  []x86.Line
	// Inline holds the operand bindings when the function was built
	// for the inline-asm surface; nil for the standalone ABI form.
	Inline *InlineInfo
}

// Name returns the function's symbol name.
func (f *Function) Name() string {
	return f.Op.SymbolName(f.Width)
}

// Build instantiates op at width w for the given feature tier. The
// inline flag selects the inline-asm surface. Every built sequence is
// checked for flag discipline before it is returned.
func Build(op Op, w limb.Width, tier feature.Tier, inline bool) (*Function, error) {
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op.Name, err)
	}

	fn := &Function{Op: op, Width: w}
	if inline {
		b := newInlineBuilder()
		op.emit(b, int(w), tier, true)
		fn.Code = b.Seq()
		fn.Inline = b.info()
	} else {
		b := newABIBuilder(op.SymbolName(w))
		op.emit(b, int(w), tier, false)
		fn.Code = b.Seq()
	}

	if err := x86.VerifyFlags(fn.Code); err != nil {
		return nil, fmt.Errorf("%s: %w", fn.Name(), err)
	}
	return fn, nil
}
