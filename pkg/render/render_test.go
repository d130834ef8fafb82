package render

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/fiwia/limbgen/pkg/emit"
	"github.com/fiwia/limbgen/pkg/feature"
	"github.com/fiwia/limbgen/pkg/limb"
)

func generate(t *testing.T, width int, tier feature.Tier, mode Mode, names ...string) string {
	t.Helper()
	var buf bytes.Buffer
	if err := Generate(&buf, limb.Width(width), tier, mode, names); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return buf.String()
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
		err  bool
	}{
		{in: "asm", want: ModeAsm},
		{in: "header", want: ModeHeader},
		{in: "inline", want: ModeInline},
		{in: "", err: true},
		{in: "obj", err: true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.err {
			if !errors.Is(err, ErrBadMode) {
				t.Errorf("ParseMode(%q) err = %v, want ErrBadMode", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseMode(%q) = %v, %v, want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestAsmOutput(t *testing.T) {
	got := generate(t, 1, feature.Baseline, ModeAsm, "add")
	want := `# Auto-generated; do not edit.

.global asm_add_1
.type asm_add_1, @function
.align 32
asm_add_1:
movq (%rsi), %r11
addq %r11, (%rdi)
sbbq %rax, %rax
retq
`
	if got != want {
		t.Errorf("asm output:\n%s\nwant:\n%s", got, want)
	}
}

func TestAsmFullCatalogue(t *testing.T) {
	got := generate(t, 4, feature.ADX, ModeAsm)
	for _, op := range emit.Catalogue() {
		sym := op.SymbolName(4)
		if !strings.Contains(got, ".global "+sym+"\n") {
			t.Errorf("missing global for %s", sym)
		}
		if !strings.Contains(got, sym+":\n") {
			t.Errorf("missing label for %s", sym)
		}
	}
}

func TestHeaderOutput(t *testing.T) {
	got := generate(t, 2, feature.Baseline, ModeHeader, "add", "negate", "mul", "mod_q")
	want := `// Auto-generated; do not edit.
#pragma once
#include <stdint.h>

extern uint64_t asm_add_2(uint64_t *, uint64_t const *);
extern uint64_t asm_negate_2(uint64_t const *, uint64_t *);
extern uint64_t asm_mod_q_2(uint64_t const *, uint64_t);
extern void asm_mul_2(uint64_t const *, uint64_t const *, uint64_t *);
`
	if got != want {
		t.Errorf("header output:\n%s\nwant:\n%s", got, want)
	}
}

func TestInlineOutput(t *testing.T) {
	got := generate(t, 1, feature.Baseline, ModeInline, "add")
	want := `// Auto-generated; do not edit.
#pragma once
#include <stdint.h>
#include "asm_config.h"

asm_attrs uint64_t asm_add_1(uint64_t * arg0, uint64_t const * arg1)
{
    uint64_t ret;
    asm volatile (
    "movq (%[arg1]), %%r11\n"
    "addq %%r11, (%[arg0])\n"
    "sbbq %[ret], %[ret]\n"
    : [ret] "=r" (ret)
    : [arg0] "r" (arg0), [arg1] "r" (arg1)
    : "cc", "memory", "r11"
    );
    return ret;
}
`
	if got != want {
		t.Errorf("inline output:\n%s\nwant:\n%s", got, want)
	}
}

func TestInlineComparisonOmitsMemoryClobber(t *testing.T) {
	got := generate(t, 2, feature.Baseline, ModeInline, "cmplt")
	if strings.Contains(got, `"memory"`) {
		t.Error("pure comparison should not clobber memory")
	}
	if !strings.Contains(got, `"cc"`) {
		t.Error("flag clobber missing")
	}
}

func TestInlineDivPinsRemainder(t *testing.T) {
	got := generate(t, 2, feature.Baseline, ModeInline, "div_q")
	if !strings.Contains(got, `[ret] "=&d" (ret)`) {
		t.Errorf("remainder must be an earlyclobber rdx output:\n%s", got)
	}
	if strings.Contains(got, `"rdx"`) {
		t.Error("rdx is the return binding, not a clobber")
	}
	if !strings.Contains(got, `"rax"`) {
		t.Error("rax clobber missing")
	}
}

func TestInlineVoidFunctionHasNoRet(t *testing.T) {
	got := generate(t, 2, feature.Baseline, ModeInline, "shl")
	if strings.Contains(got, "uint64_t ret;") || strings.Contains(got, "return ret;") {
		t.Errorf("void wrapper declares a return value:\n%s", got)
	}
	if !strings.Contains(got, "/*no outputs*/") {
		t.Errorf("void wrapper should have no outputs:\n%s", got)
	}
}

func TestInlineWordShiftBindsZero(t *testing.T) {
	got := generate(t, 2, feature.Baseline, ModeInline, "shr_words")
	if !strings.Contains(got, `[zero] "r" ((uint64_t) 0)`) {
		t.Errorf("zero input binding missing:\n%s", got)
	}
}

func TestInlineLabelsUseExpansionMarker(t *testing.T) {
	got := generate(t, 3, feature.Baseline, ModeInline, "add_q_leaky")
	if !strings.Contains(got, ".L%=_1") {
		t.Errorf("inline labels must be unique per expansion:\n%s", got)
	}
}

func TestGenerateUnknownFunction(t *testing.T) {
	var buf bytes.Buffer
	err := Generate(&buf, 4, feature.Baseline, ModeAsm, []string{"frobnicate"})
	if !errors.Is(err, emit.ErrUnknownFunction) {
		t.Errorf("err = %v, want ErrUnknownFunction", err)
	}
}

func TestGenerateBadWidth(t *testing.T) {
	var buf bytes.Buffer
	err := Generate(&buf, 0, feature.Baseline, ModeAsm, nil)
	if err == nil {
		t.Error("width 0 accepted")
	}
}

func TestAsmRejectsInlineBuild(t *testing.T) {
	op := emit.Catalogue()[0]
	fn, err := emit.Build(op, 1, feature.Baseline, true)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := Asm(&buf, []*emit.Function{fn}); err == nil {
		t.Error("inline-built function accepted by the standalone renderer")
	}
}
