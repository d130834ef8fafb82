// Package render turns built functions into the three output surfaces:
// standalone GNU assembly, a C header of extern declarations, and a C
// header of inline-asm wrapper functions.
package render

import (
	"errors"
	"fmt"
	"io"

	"github.com/fiwia/limbgen/pkg/emit"
	"github.com/fiwia/limbgen/pkg/feature"
	"github.com/fiwia/limbgen/pkg/limb"
)

// Mode selects the output surface.
type Mode int

const (
	// ModeAsm produces standalone assembly, one ABI function per op.
	ModeAsm Mode = iota
	// ModeHeader produces the matching extern declarations.
	ModeHeader
	// ModeInline produces always-inlined C wrappers around inline asm.
	ModeInline
)

var ErrBadMode = errors.New("bad output mode")

// ParseMode maps a command-line mode name to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "asm":
		return ModeAsm, nil
	case "header":
		return ModeHeader, nil
	case "inline":
		return ModeInline, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrBadMode, s)
}

func (m Mode) String() string {
	switch m {
	case ModeAsm:
		return "asm"
	case ModeHeader:
		return "header"
	case ModeInline:
		return "inline"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Generate builds the selected ops at the given width and renders them
// in the given mode. An empty names list selects the full catalogue.
func Generate(w io.Writer, width limb.Width, tier feature.Tier, mode Mode, names []string) error {
	ops, err := emit.Select(names, width)
	if err != nil {
		return err
	}

	inline := mode == ModeInline
	funcs := make([]*emit.Function, 0, len(ops))
	for _, op := range ops {
		fn, err := emit.Build(op, width, tier, inline)
		if err != nil {
			return err
		}
		funcs = append(funcs, fn)
	}

	switch mode {
	case ModeAsm:
		return Asm(w, funcs)
	case ModeHeader:
		return Header(w, funcs)
	case ModeInline:
		return Inline(w, funcs)
	}
	return fmt.Errorf("%w: %v", ErrBadMode, mode)
}

// cParams renders the parameter list of fn with or without names.
func cParams(fn *emit.Function, named bool) string {
	out := ""
	for i, p := range fn.Op.Params {
		if i > 0 {
			out += ", "
		}
		if named {
			out += fmt.Sprintf("%s arg%d", p.CType(), i)
		} else {
			out += p.CType()
		}
	}
	return out
}
