package x86

// Reg identifies a 64-bit general-purpose register.
// RSP is deliberately absent: generated routines never touch the stack.
type Reg int

const (
	NoReg Reg = iota - 1
	RAX
	RDI
	RSI
	RDX
	RCX
	R8
	R9
	R10
	R11
	RBX
	R12
	R13
	R14
	R15
)

// regNames holds the quad/dword/byte spellings for each register.
var regNames = [...]struct {
	q, d, b string
}{
	RAX: {"rax", "eax", "al"},
	RDI: {"rdi", "edi", "dil"},
	RSI: {"rsi", "esi", "sil"},
	RDX: {"rdx", "edx", "dl"},
	RCX: {"rcx", "ecx", "cl"},
	R8:  {"r8", "r8d", "r8b"},
	R9:  {"r9", "r9d", "r9b"},
	R10: {"r10", "r10d", "r10b"},
	R11: {"r11", "r11d", "r11b"},
	RBX: {"rbx", "ebx", "bl"},
	R12: {"r12", "r12d", "r12b"},
	R13: {"r13", "r13d", "r13b"},
	R14: {"r14", "r14d", "r14b"},
	R15: {"r15", "r15d", "r15b"},
}

// Name returns the 64-bit register name without the % sigil, e.g. "rax".
func (r Reg) Name() string {
	return regNames[r].q
}

func (r Reg) String() string {
	return "%" + regNames[r].q
}

// ScratchRegs lists the caller-saved registers available to emitters,
// in allocation-preference order (highest index taken first).
var ScratchRegs = []Reg{RAX, RDI, RSI, RDX, RCX, R8, R9, R10, R11}

// ABIArgRegs lists the SysV AMD64 integer argument registers in order.
var ABIArgRegs = []Reg{RDI, RSI, RDX, RCX, R8, R9}

// constraintLetters maps registers to their GCC inline-asm constraint
// letter, for the registers that have one.
var constraintLetters = map[Reg]string{
	RAX: "a",
	RBX: "b",
	RCX: "c",
	RDX: "d",
	RSI: "S",
	RDI: "D",
}

// ConstraintLetter returns the inline-asm constraint letter for r,
// or "" when r has no single-register constraint.
func ConstraintLetter(r Reg) string {
	return constraintLetters[r]
}

// RegByName resolves a 64-bit register name like "rax" to its Reg.
func RegByName(name string) (Reg, bool) {
	for r := RAX; r <= R15; r++ {
		if regNames[r].q == name {
			return r, true
		}
	}
	return NoReg, false
}
