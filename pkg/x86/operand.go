package x86

import "fmt"

// Form selects which partial view of a register an operand names.
type Form int

const (
	Quad  Form = iota // full 64-bit register, %rax
	Dword             // low 32 bits, %eax
	Byte              // low 8 bits, %al
)

// Operand is one instruction operand in AT&T syntax.
// Symbolic operands (Sym) print with a '!' sigil in place of '%'; the
// inline renderer rewrites them to extended-asm operand references while
// the standalone renderer must never see them.
type Operand interface {
	implOperand()
	String() string
}

// RegOp names a concrete register, possibly a sub-register view.
type RegOp struct {
	Reg  Reg
	Form Form
}

// R is shorthand for a full-width register operand.
func R(r Reg) RegOp { return RegOp{Reg: r} }

func (o RegOp) String() string {
	switch o.Form {
	case Dword:
		return "%" + regNames[o.Reg].d
	case Byte:
		return "%" + regNames[o.Reg].b
	default:
		return "%" + regNames[o.Reg].q
	}
}

// Sym is a placeholder operand bound by the inline renderer: arguments
// ("arg0", "arg1", ...), the return value ("ret") or a zero input
// ("zero"). Its textual form uses '!' so that the escape pass can turn
// "![arg0]" into "%[arg0]" after doubling literal percents.
type Sym struct {
	Key  string
	Form Form
}

func (o Sym) String() string {
	switch o.Form {
	case Dword:
		return fmt.Sprintf("!k[%s]", o.Key)
	case Byte:
		return fmt.Sprintf("!b[%s]", o.Key)
	default:
		return fmt.Sprintf("![%s]", o.Key)
	}
}

// Mem addresses limb Disp of the array whose base pointer lives in Base.
// Limb i resolves to base + 8*i; Disp counts limbs, not bytes.
type Mem struct {
	Base Operand
	Disp int
}

func (o Mem) String() string {
	if o.Disp != 0 {
		return fmt.Sprintf("%d(%s)", o.Disp*8, o.Base)
	}
	return fmt.Sprintf("(%s)", o.Base)
}

// Displace returns a new Mem shifted by n limbs.
func (o Mem) Displace(n int) Mem {
	return Mem{Base: o.Base, Disp: o.Disp + n}
}

// Imm is an immediate operand, printed $v.
type Imm int64

func (o Imm) String() string {
	return fmt.Sprintf("$%d", int64(o))
}

// LabelRef names a branch target.
type LabelRef string

func (o LabelRef) String() string {
	return string(o)
}

// WithForm returns op reduced to the given partial-register view.
// Only register and symbolic operands have sub-register forms.
func WithForm(op Operand, f Form) Operand {
	switch o := op.(type) {
	case RegOp:
		return RegOp{Reg: o.Reg, Form: f}
	case Sym:
		return Sym{Key: o.Key, Form: f}
	}
	panic(fmt.Sprintf("x86: operand %s has no %v form", op, f))
}

func (RegOp) implOperand()    {}
func (Sym) implOperand()      {}
func (Mem) implOperand()      {}
func (Imm) implOperand()      {}
func (LabelRef) implOperand() {}
