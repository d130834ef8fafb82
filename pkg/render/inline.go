package render

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fiwia/limbgen/pkg/emit"
	"github.com/fiwia/limbgen/pkg/x86"
)

// Inline writes the functions as always-inlined C wrappers around GCC
// extended asm. Symbolic operands become named operand bindings; the
// '!' sigil they print with turns into '%' after literal percents are
// doubled, which also rewrites the ".L!=" label marker into the
// per-expansion "%=" form.
func Inline(w io.Writer, funcs []*emit.Function) error {
	_, err := fmt.Fprintf(w, "// %s\n#pragma once\n#include <stdint.h>\n#include \"asm_config.h\"\n", banner)
	if err != nil {
		return err
	}

	for _, fn := range funcs {
		if fn.Inline == nil {
			return fmt.Errorf("%s: built for the standalone surface", fn.Name())
		}
		if err := inlineFunc(w, fn); err != nil {
			return err
		}
	}
	return nil
}

func inlineFunc(w io.Writer, fn *emit.Function) error {
	info := fn.Inline
	ret := fn.Op.Ret.CType()
	isVoid := ret == "void"

	fmt.Fprintf(w, "\nasm_attrs %s %s(%s)\n{\n", ret, fn.Name(), cParams(fn, true))
	if !isVoid {
		fmt.Fprintf(w, "    %s ret;\n", ret)
	}

	fmt.Fprintf(w, "    asm volatile (\n")
	for _, line := range fn.Code {
		s := x86.FormatLine(line)
		s = strings.ReplaceAll(s, "%", "%%")
		s = strings.ReplaceAll(s, "!", "%")
		fmt.Fprintf(w, "    \"%s\\n\"\n", s)
	}

	clobbers := append([]x86.Reg(nil), info.Clobbers...)

	var outputs, inputs []string

	for i, letter := range info.ArgLetters {
		if letter == "" {
			letter = "r"
		}
		inputs = append(inputs, fmt.Sprintf("[arg%d] \"%s\" (arg%d)", i, letter, i))
	}

	if !isVoid {
		letter := info.RetLetter
		early := info.RetEarly
		if letter == "" {
			letter = "r"
		} else {
			// A return value pinned to a scratched register owns that
			// register for the whole fragment.
			for j, r := range clobbers {
				if x86.ConstraintLetter(r) == letter {
					clobbers = append(clobbers[:j], clobbers[j+1:]...)
					early = true
					break
				}
			}
		}
		mode := "="
		if early {
			mode = "=&"
		}
		outputs = append(outputs, fmt.Sprintf("[ret] \"%s%s\" (ret)", mode, letter))
	}

	if info.NeedsZero {
		inputs = append(inputs, "[zero] \"r\" ((uint64_t) 0)")
	}

	names := make([]string, 0, len(clobbers)+2)
	for _, r := range clobbers {
		names = append(names, fmt.Sprintf("%q", r.Name()))
	}
	names = append(names, `"cc"`)
	if fn.Op.WritesMemory() {
		names = append(names, `"memory"`)
	}
	sort.Strings(names)

	fmt.Fprintf(w, "    : %s\n", orNone(outputs, "/*no outputs*/"))
	fmt.Fprintf(w, "    : %s\n", orNone(inputs, "/*no inputs*/"))
	fmt.Fprintf(w, "    : %s\n", orNone(names, "/*no clobbers*/"))
	fmt.Fprintf(w, "    );\n")

	if !isVoid {
		fmt.Fprintf(w, "    return ret;\n")
	}
	_, err := fmt.Fprintf(w, "}\n")
	return err
}

func orNone(items []string, none string) string {
	if len(items) == 0 {
		return none
	}
	return strings.Join(items, ", ")
}
