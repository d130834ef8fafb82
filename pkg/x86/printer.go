package x86

import (
	"fmt"
	"io"
	"strings"
)

// Printer outputs instruction sequences in GNU as (AT&T) syntax.
type Printer struct {
	w io.Writer
}

// NewPrinter creates a new instruction printer.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// PrintLine outputs one instruction or label definition.
func (p *Printer) PrintLine(line Line) {
	fmt.Fprintf(p.w, "%s\n", FormatLine(line))
}

// PrintSeq outputs a whole sequence.
func (p *Printer) PrintSeq(seq []Line) {
	for _, line := range seq {
		p.PrintLine(line)
	}
}

// FormatLine renders one line without a trailing newline.
func FormatLine(line Line) string {
	switch l := line.(type) {
	case LabelDef:
		return fmt.Sprintf("%s:", l.Name)
	case Inst:
		if len(l.Args) == 0 {
			return l.Mnemonic
		}
		args := make([]string, len(l.Args))
		for i, a := range l.Args {
			args[i] = a.String()
		}
		return fmt.Sprintf("%s %s", l.Mnemonic, strings.Join(args, ", "))
	default:
		return fmt.Sprintf("# unknown line: %T", line)
	}
}
