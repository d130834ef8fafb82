// Package x86 defines the x86-64 instruction representation emitted by
// the generator: instruction records with explicit condition-flag
// read/write sets, register operands, limb-indexed memory operands and
// symbolic operands for inline-asm rendering. Output syntax is AT&T
// (GNU as), source operand before destination.
package x86

import "fmt"

// Flag is a condition-code bit set. Only the flags the generated
// sequences depend on are modeled.
type Flag uint8

const (
	CF Flag = 1 << iota // carry
	OF                  // overflow
	ZF                  // zero
	SF                  // sign
)

// AllFlags covers every modeled flag.
const AllFlags = CF | OF | ZF | SF

// Line is one element of an emitted sequence: an instruction or a
// label definition.
type Line interface {
	implLine()
}

// Inst is a single emitted instruction record. Flag effects are derived
// from the mnemonic; consecutive flag producer/consumer pairs form a
// hard ordering constraint that no pass may reorder across.
type Inst struct {
	Mnemonic string
	Args     []Operand
}

// LabelDef marks a branch target.
type LabelDef struct {
	Name LabelRef
}

func (Inst) implLine()     {}
func (LabelDef) implLine() {}

// I constructs an instruction record.
func I(mnemonic string, args ...Operand) Inst {
	return Inst{Mnemonic: mnemonic, Args: args}
}

// flagEffect describes what an instruction does to the condition flags.
type flagEffect struct {
	reads  Flag
	writes Flag
}

// flagTable covers every mnemonic the emitters produce. Mnemonics not
// in the table neither read nor write flags.
var flagTable = map[string]flagEffect{
	"addq":  {writes: CF | OF | ZF | SF},
	"subq":  {writes: CF | OF | ZF | SF},
	"negq":  {writes: CF | OF | ZF | SF},
	"cmpq":  {writes: CF | OF | ZF | SF},
	"testq": {writes: CF | OF | ZF | SF},
	"adcq":  {reads: CF, writes: CF | OF | ZF | SF},
	"sbbq":  {reads: CF, writes: CF | OF | ZF | SF},
	"adcxq": {reads: CF, writes: CF},
	"adoxq": {reads: OF, writes: OF},
	"andq":  {writes: CF | OF | ZF | SF},
	"orq":   {writes: CF | OF | ZF | SF},
	"xorq":  {writes: CF | OF | ZF | SF},
	"xorl":  {writes: CF | OF | ZF | SF},
	"notq":  {},
	// mulq/imulq/divq leave ZF and SF undefined; model them as
	// clobbered so the verifier never accepts a chain through them.
	"mulq":  {writes: AllFlags},
	"imulq": {writes: AllFlags},
	"divq":  {writes: AllFlags},
	"mulxq": {},
	"shlq":  {writes: CF | OF | ZF | SF},
	"shrq":  {writes: CF | OF | ZF | SF},
	"sarq":  {writes: CF | OF | ZF | SF},
	"shldq": {writes: CF | OF | ZF | SF},
	"shrdq": {writes: CF | OF | ZF | SF},
	"shlxq": {},
	"shrxq": {},
	"sarxq": {},

	"movq":   {},
	"movzbq": {},

	"cmovaq":  {reads: CF | ZF},
	"cmovnzq": {reads: ZF},
	"setl":    {reads: SF | OF},
	"setge":   {reads: SF | OF},

	"jnc": {reads: CF},
	"jmp": {},
}

// ReadsFlags reports which flags the instruction consumes.
func (in Inst) ReadsFlags() Flag {
	return flagTable[in.Mnemonic].reads
}

// WritesFlags reports which flags the instruction produces or clobbers.
func (in Inst) WritesFlags() Flag {
	return flagTable[in.Mnemonic].writes
}

// KnownMnemonic reports whether the mnemonic has a flag-effect entry.
func KnownMnemonic(m string) bool {
	_, ok := flagTable[m]
	return ok
}

// VerifyFlags checks that no instruction in the sequence consumes a
// condition flag before some earlier instruction has produced it. A
// carry or borrow chain that was broken by a reordering or by an
// interleaved flag-clobbering instruction typically fails this check
// because the consuming adc/sbb ends up ahead of its producer.
func VerifyFlags(seq []Line) error {
	var defined Flag
	for idx, line := range seq {
		in, ok := line.(Inst)
		if !ok {
			continue
		}
		if r := in.ReadsFlags(); r&^defined != 0 {
			return fmt.Errorf("instruction %d (%s) reads undefined flags", idx, in.Mnemonic)
		}
		defined |= in.WritesFlags()
	}
	return nil
}
