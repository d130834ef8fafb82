package emit

import (
	"errors"
	"strings"
	"testing"

	"github.com/fiwia/limbgen/pkg/feature"
	"github.com/fiwia/limbgen/pkg/limb"
	"github.com/fiwia/limbgen/pkg/x86"
)

func buildOp(t *testing.T, name string, w int, tier feature.Tier, inline bool) *Function {
	t.Helper()
	for _, op := range Catalogue() {
		if op.Name == name {
			fn, err := Build(op, limb.Width(w), tier, inline)
			if err != nil {
				t.Fatalf("Build(%s, %d): %v", name, w, err)
			}
			return fn
		}
	}
	t.Fatalf("no op named %q", name)
	return nil
}

func lines(fn *Function) []string {
	out := make([]string, len(fn.Code))
	for i, l := range fn.Code {
		out[i] = x86.FormatLine(l)
	}
	return out
}

func checkLines(t *testing.T, fn *Function, want []string) {
	t.Helper()
	got := lines(fn)
	if len(got) != len(want) {
		t.Fatalf("%s: got %d lines, want %d:\n%s", fn.Name(), len(got), len(want), strings.Join(got, "\n"))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("%s line %d: got %q, want %q", fn.Name(), i, got[i], want[i])
		}
	}
}

func TestAddSequence(t *testing.T) {
	fn := buildOp(t, "add", 2, feature.Baseline, false)
	checkLines(t, fn, []string{
		"movq (%rsi), %r11",
		"addq %r11, (%rdi)",
		"movq 8(%rsi), %r11",
		"adcq %r11, 8(%rdi)",
		"sbbq %rax, %rax",
	})
}

func TestSubSequence(t *testing.T) {
	fn := buildOp(t, "sub", 1, feature.Baseline, false)
	checkLines(t, fn, []string{
		"movq (%rsi), %r11",
		"subq %r11, (%rdi)",
		"sbbq %rax, %rax",
	})
}

func TestNegateSequence(t *testing.T) {
	fn := buildOp(t, "negate", 2, feature.Baseline, false)
	checkLines(t, fn, []string{
		"movq (%rdi), %r11",
		"negq %r11",
		"movq %r11, (%rsi)",
		"movq $0, %r11",
		"sbbq 8(%rdi), %r11",
		"movq %r11, 8(%rsi)",
		"sbbq %rax, %rax",
	})
}

func TestCmpeqSequence(t *testing.T) {
	fn := buildOp(t, "cmpeq", 2, feature.Baseline, false)
	checkLines(t, fn, []string{
		"movq (%rdi), %rax",
		"xorq (%rsi), %rax",
		"movq 8(%rdi), %r11",
		"xorq 8(%rsi), %r11",
		"orq %r11, %rax",
		"subq $1, %rax",
		"sbbq %rax, %rax",
	})
}

func TestSignedCmpltSequence(t *testing.T) {
	fn := buildOp(t, "S_cmplt", 2, feature.Baseline, false)
	checkLines(t, fn, []string{
		"movq (%rdi), %r11",
		"subq (%rsi), %r11",
		"movq 8(%rdi), %r11",
		"sbbq 8(%rsi), %r11",
		"setl %al",
		"movzbq %al, %rax",
	})
}

func TestAddQLeakySequence(t *testing.T) {
	fn := buildOp(t, "add_q_leaky", 3, feature.Baseline, false)
	checkLines(t, fn, []string{
		"addq %rsi, (%rdi)",
		"adcq $0, 8(%rdi)",
		"jnc .Lasm_add_q_leaky_3_1",
		"adcq $0, 16(%rdi)",
		".Lasm_add_q_leaky_3_1:",
		"sbbq %rax, %rax",
	})
}

func TestAddQLeakySmallWidthHasNoBranch(t *testing.T) {
	// With two limbs or fewer the early exit cannot skip anything.
	for _, w := range []int{1, 2} {
		fn := buildOp(t, "add_q_leaky", w, feature.Baseline, false)
		for _, s := range lines(fn) {
			if strings.HasPrefix(s, "jnc") {
				t.Errorf("width %d: unexpected branch %q", w, s)
			}
		}
	}
}

func TestDivQSequence(t *testing.T) {
	fn := buildOp(t, "div_q", 2, feature.Baseline, false)
	checkLines(t, fn, []string{
		"movq %rdx, %r11",
		"xorl %edx, %edx",
		"movq 8(%rdi), %rax",
		"divq %rsi",
		"movq %rax, 8(%r11)",
		"movq (%rdi), %rax",
		"divq %rsi",
		"movq %rax, (%r11)",
		"movq %rdx, %rax",
	})
}

func TestModQSkipsQuotientStores(t *testing.T) {
	fn := buildOp(t, "mod_q", 3, feature.Baseline, false)
	for _, s := range lines(fn) {
		if strings.HasPrefix(s, "movq %rax,") {
			t.Errorf("mod_q stores a quotient limb: %q", s)
		}
	}
}

func TestMulQMulxSequence(t *testing.T) {
	fn := buildOp(t, "mul_q", 2, feature.MULX, false)
	checkLines(t, fn, []string{
		"movq %rdx, %r11",
		"movq %rsi, %rdx",
		"mulxq (%rdi), %r10, %r9",
		"movq %r10, (%r11)",
		"mulxq 8(%rdi), %r10, %rax",
		"addq %r9, %r10",
		"movq %r10, 8(%r11)",
		"adcq $0, %rax",
	})
}

func TestMaskedTailSequence(t *testing.T) {
	fn := buildOp(t, "add_masked", 2, feature.Baseline, false)
	got := lines(fn)
	wantTail := []string{
		"sbbq %rax, %rax",
		"andq %rdx, %rax",
	}
	if len(got) < len(wantTail) {
		t.Fatalf("sequence too short: %v", got)
	}
	for i, w := range wantTail {
		if s := got[len(got)-len(wantTail)+i]; s != w {
			t.Errorf("tail line %d: got %q, want %q", i, s, w)
		}
	}
}

func TestMaskedBlockCarrySaves(t *testing.T) {
	// Nine limbs with the four-wide ABI window: blocks of 4, 4 and 1,
	// so the carry is parked twice and restored twice.
	fn := buildOp(t, "add_masked", 9, feature.Baseline, false)
	saves, restores := 0, 0
	for _, s := range lines(fn) {
		if strings.HasPrefix(s, "shlq $1,") {
			restores++
		}
		// "sbbq %rX, %rX" materializes a flag into a register.
		if parts := strings.Split(s, " "); len(parts) == 3 &&
			parts[0] == "sbbq" && parts[1] == parts[2]+"," {
			saves++
		}
	}
	if restores != 2 {
		t.Errorf("restores = %d, want 2", restores)
	}
	// 2 block saves plus the final mask materialization.
	if saves != 3 {
		t.Errorf("carry materializations = %d, want 3", saves)
	}
}

func TestShiftWordsBranchFree(t *testing.T) {
	for _, name := range []string{"shr_words", "S_shr_words", "shl_words"} {
		for _, w := range []int{1, 3, 4, 5, 9, 16} {
			fn := buildOp(t, name, w, feature.Baseline, false)
			for _, s := range lines(fn) {
				if strings.HasPrefix(s, "j") {
					t.Errorf("%s width %d: branch %q in branch-free ladder", name, w, s)
				}
			}
		}
	}
}

func TestShiftNzUsesBMI2Forms(t *testing.T) {
	fn := buildOp(t, "shr_nz", 2, feature.MULX, false)
	var sawShrx, sawShlx bool
	for _, s := range lines(fn) {
		if strings.HasPrefix(s, "shrxq") {
			sawShrx = true
		}
		if strings.HasPrefix(s, "shlxq") {
			sawShlx = true
		}
		if strings.Contains(s, "%cl") {
			t.Errorf("BMI2 shift uses cl: %q", s)
		}
	}
	if !sawShrx || !sawShlx {
		t.Errorf("expected shrxq and shlxq in the funnel, got:\n%s", strings.Join(lines(fn), "\n"))
	}
}

func TestGeneralShiftStaysBaseline(t *testing.T) {
	// A zero count breaks the shlx/shrx funnel, so the general shifts
	// must use the cl forms even when BMI2 is available.
	for _, name := range []string{"shr", "S_shr", "shl"} {
		fn := buildOp(t, name, 3, feature.ADX, false)
		for _, s := range lines(fn) {
			if strings.HasPrefix(s, "shlx") || strings.HasPrefix(s, "shrx") || strings.HasPrefix(s, "sarx") {
				t.Errorf("%s: unexpected BMI2 form %q", name, s)
			}
		}
	}
}

func TestSignedShrTopLimbUsesSar(t *testing.T) {
	fn := buildOp(t, "S_shr", 2, feature.Baseline, false)
	var sawSar bool
	for _, s := range lines(fn) {
		if strings.HasPrefix(s, "sarq") {
			sawSar = true
		}
	}
	if !sawSar {
		t.Errorf("signed right shift never emits sarq:\n%s", strings.Join(lines(fn), "\n"))
	}
}

func TestMulADXUsesBothChains(t *testing.T) {
	fn := buildOp(t, "mul", 4, feature.ADX, false)
	var adcx, adox int
	for _, s := range lines(fn) {
		if strings.HasPrefix(s, "adcxq") {
			adcx++
		}
		if strings.HasPrefix(s, "adoxq") {
			adox++
		}
	}
	if adcx == 0 || adox == 0 {
		t.Errorf("adcx = %d, adox = %d, want both nonzero", adcx, adox)
	}
}

func TestMulADXWidthOneFallsBack(t *testing.T) {
	fn := buildOp(t, "mul", 1, feature.ADX, false)
	for _, s := range lines(fn) {
		if strings.HasPrefix(s, "adcxq") || strings.HasPrefix(s, "adoxq") {
			t.Errorf("single-limb multiply should not use the dual chains: %q", s)
		}
	}
}

func TestInlineBindings(t *testing.T) {
	tests := []struct {
		op      string
		w       int
		letters []string
		retLet  string
		early   bool
	}{
		{op: "add", w: 1, letters: []string{"", ""}},
		{op: "cmpeq", w: 2, letters: []string{"", ""}, early: true},
		{op: "div_q", w: 2, letters: []string{"", "", ""}, retLet: "d"},
		{op: "mod_q", w: 2, letters: []string{"", ""}, retLet: "d"},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			fn := buildOp(t, tt.op, tt.w, feature.Baseline, true)
			info := fn.Inline
			if info == nil {
				t.Fatal("no inline info")
			}
			if len(info.ArgLetters) != len(tt.letters) {
				t.Fatalf("arg letters = %v, want %d entries", info.ArgLetters, len(tt.letters))
			}
			for i, want := range tt.letters {
				if info.ArgLetters[i] != want {
					t.Errorf("arg %d letter = %q, want %q", i, info.ArgLetters[i], want)
				}
			}
			if info.RetLetter != tt.retLet {
				t.Errorf("ret letter = %q, want %q", info.RetLetter, tt.retLet)
			}
			if info.RetEarly != tt.early {
				t.Errorf("ret earlyclobber = %v, want %v", info.RetEarly, tt.early)
			}
		})
	}
}

func TestInlineMulQPinsMultiplier(t *testing.T) {
	fn := buildOp(t, "mul_q", 2, feature.MULX, true)
	if got := fn.Inline.ArgLetters[1]; got != "d" {
		t.Errorf("multiplier constraint = %q, want %q", got, "d")
	}
	if !fn.Inline.RetEarly {
		t.Error("result register must be earlyclobber")
	}
}

func TestInlineAddSequence(t *testing.T) {
	fn := buildOp(t, "add", 1, feature.Baseline, true)
	checkLines(t, fn, []string{
		"movq (![arg1]), %r11",
		"addq %r11, (![arg0])",
		"sbbq ![ret], ![ret]",
	})
	if len(fn.Inline.Clobbers) != 1 || fn.Inline.Clobbers[0] != x86.R11 {
		t.Errorf("clobbers = %v, want [r11]", fn.Inline.Clobbers)
	}
}

func TestInlineZeroInputOnlyForUnsignedWordShift(t *testing.T) {
	unsigned := buildOp(t, "shr_words", 2, feature.Baseline, true)
	if !unsigned.Inline.NeedsZero {
		t.Error("unsigned word shift should bind a zero input")
	}
	signed := buildOp(t, "S_shr_words", 2, feature.Baseline, true)
	if signed.Inline.NeedsZero {
		t.Error("signed word shift fills with the sign, not zero")
	}
}

func TestCatalogueShape(t *testing.T) {
	ops := Catalogue()
	if len(ops) != 28 {
		t.Fatalf("catalogue has %d ops, want 28", len(ops))
	}
	seen := make(map[string]bool)
	for _, op := range ops {
		if seen[op.Name] {
			t.Errorf("duplicate op %q", op.Name)
		}
		seen[op.Name] = true
		if op.emit == nil {
			t.Errorf("op %q has no emitter", op.Name)
		}
	}
	if got := ops[0].SymbolName(4); got != "asm_add_4" {
		t.Errorf("symbol name = %q, want asm_add_4", got)
	}
}

func TestWritesMemory(t *testing.T) {
	byName := make(map[string]Op)
	for _, op := range Catalogue() {
		byName[op.Name] = op
	}
	for _, name := range []string{"cmplt", "cmple", "S_cmplt", "S_cmple", "cmpeq", "mod_q"} {
		if byName[name].WritesMemory() {
			t.Errorf("%s should not write memory", name)
		}
	}
	for _, name := range []string{"add", "negate", "mul", "div_q", "shl_words"} {
		if !byName[name].WritesMemory() {
			t.Errorf("%s should write memory", name)
		}
	}
}

func TestSelect(t *testing.T) {
	ops, err := Select([]string{"mul", "add"}, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 2 || ops[0].Name != "add" || ops[1].Name != "mul" {
		t.Errorf("selection out of catalogue order: %v", ops)
	}

	ops, err = Select([]string{"asm_sub_8"}, 8)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 1 || ops[0].Name != "sub" {
		t.Errorf("symbol-name selection failed: %v", ops)
	}

	_, err = Select([]string{"frobnicate"}, 4)
	if !errors.Is(err, ErrUnknownFunction) {
		t.Errorf("err = %v, want ErrUnknownFunction", err)
	}
}

func TestBuildRejectsBadWidth(t *testing.T) {
	op := Catalogue()[0]
	if _, err := Build(op, 0, feature.Baseline, false); err == nil {
		t.Error("width 0 accepted")
	}
	if _, err := Build(op, -3, feature.Baseline, false); err == nil {
		t.Error("negative width accepted")
	}
}

func TestEveryOpVerifiesAtEveryWidthAndTier(t *testing.T) {
	widths := []int{1, 2, 3, 4, 5, 8, 9, 12, 16}
	tiers := []feature.Tier{feature.Baseline, feature.MULX, feature.ADX}
	for _, op := range Catalogue() {
		for _, w := range widths {
			for _, tier := range tiers {
				for _, inline := range []bool{false, true} {
					if _, err := Build(op, limb.Width(w), tier, inline); err != nil {
						t.Errorf("Build(%s, w=%d, %s, inline=%v): %v", op.Name, w, tier, inline, err)
					}
				}
			}
		}
	}
}
