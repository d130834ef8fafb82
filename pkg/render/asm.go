package render

import (
	"errors"
	"fmt"
	"io"

	"github.com/fiwia/limbgen/pkg/emit"
	"github.com/fiwia/limbgen/pkg/x86"
)

// ErrSymbolicOperand reports an unresolved symbolic operand reaching
// the standalone renderer. Only inline fragments may carry them.
var ErrSymbolicOperand = errors.New("symbolic operand in standalone assembly")

// banner heads every generated file.
const banner = "Auto-generated; do not edit."

func checkResolved(fn *emit.Function) error {
	for _, line := range fn.Code {
		inst, ok := line.(x86.Inst)
		if !ok {
			continue
		}
		for _, arg := range inst.Args {
			if symbolic(arg) {
				return fmt.Errorf("%w: %s in %s", ErrSymbolicOperand, arg, fn.Name())
			}
		}
	}
	return nil
}

func symbolic(op x86.Operand) bool {
	switch o := op.(type) {
	case x86.Sym:
		return true
	case x86.Mem:
		return symbolic(o.Base)
	}
	return false
}

// Asm writes the functions as standalone GNU assembly: global symbols,
// 32-byte aligned, each body ending in retq.
func Asm(w io.Writer, funcs []*emit.Function) error {
	if _, err := fmt.Fprintf(w, "# %s\n", banner); err != nil {
		return err
	}

	p := x86.NewPrinter(w)
	for _, fn := range funcs {
		if fn.Inline != nil {
			return fmt.Errorf("%s: built for the inline surface", fn.Name())
		}
		if err := checkResolved(fn); err != nil {
			return err
		}

		name := fn.Name()
		fmt.Fprintf(w, "\n.global %s\n", name)
		fmt.Fprintf(w, ".type %s, @function\n", name)
		fmt.Fprintf(w, ".align 32\n")
		fmt.Fprintf(w, "%s:\n", name)
		p.PrintSeq(fn.Code)
		if _, err := fmt.Fprintf(w, "retq\n"); err != nil {
			return err
		}
	}
	return nil
}

// Header writes the extern declarations matching the standalone
// assembly.
func Header(w io.Writer, funcs []*emit.Function) error {
	if _, err := fmt.Fprintf(w, "// %s\n#pragma once\n#include <stdint.h>\n\n", banner); err != nil {
		return err
	}

	for _, fn := range funcs {
		ret := fn.Op.Ret.CType()
		_, err := fmt.Fprintf(w, "extern %s %s(%s);\n", ret, fn.Name(), cParams(fn, false))
		if err != nil {
			return err
		}
	}
	return nil
}
