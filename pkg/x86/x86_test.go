package x86

import "testing"

func TestRegForms(t *testing.T) {
	tests := []struct {
		name string
		op   Operand
		want string
	}{
		{"rax quad", R(RAX), "%rax"},
		{"rax dword", RegOp{Reg: RAX, Form: Dword}, "%eax"},
		{"rax byte", RegOp{Reg: RAX, Form: Byte}, "%al"},
		{"rdi byte", RegOp{Reg: RDI, Form: Byte}, "%dil"},
		{"r8 dword", RegOp{Reg: R8, Form: Dword}, "%r8d"},
		{"r11 byte", RegOp{Reg: R11, Form: Byte}, "%r11b"},
		{"rcx byte", RegOp{Reg: RCX, Form: Byte}, "%cl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.op.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMemDisplacement(t *testing.T) {
	base := Mem{Base: R(RDI)}
	tests := []struct {
		name string
		op   Operand
		want string
	}{
		{"limb 0", base, "(%rdi)"},
		{"limb 1", base.Displace(1), "8(%rdi)"},
		{"limb 5", base.Displace(5), "40(%rdi)"},
		{"sym base", Mem{Base: Sym{Key: "arg0"}, Disp: 2}, "16(![arg0])"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.op.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMemDisplaceDoesNotMutate(t *testing.T) {
	base := Mem{Base: R(RSI), Disp: 1}
	_ = base.Displace(3)
	if base.Disp != 1 {
		t.Errorf("Displace mutated receiver: disp = %d", base.Disp)
	}
}

func TestFormatLine(t *testing.T) {
	tests := []struct {
		name string
		line Line
		want string
	}{
		{"no args", I("retq"), "retq"},
		{"add mem", I("addq", R(RCX), Mem{Base: R(RDI), Disp: 1}), "addq %rcx, 8(%rdi)"},
		{"imm", I("adcq", Imm(0), Mem{Base: R(RDI), Disp: 2}), "adcq $0, 16(%rdi)"},
		{"label def", LabelDef{Name: ".Lasm_add_q_leaky_3_1"}, ".Lasm_add_q_leaky_3_1:"},
		{"jump", I("jnc", LabelRef(".Ldone")), "jnc .Ldone"},
		{"byte form", I("setl", RegOp{Reg: RAX, Form: Byte}), "setl %al"},
		{"sym operand", I("movq", Mem{Base: Sym{Key: "arg1"}}, R(R10)), "movq (![arg1]), %r10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatLine(tt.line); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFlagEffects(t *testing.T) {
	tests := []struct {
		mnemonic string
		reads    Flag
		writes   Flag
	}{
		{"addq", 0, CF | OF | ZF | SF},
		{"adcq", CF, CF | OF | ZF | SF},
		{"sbbq", CF, CF | OF | ZF | SF},
		{"adcxq", CF, CF},
		{"adoxq", OF, OF},
		{"mulxq", 0, 0},
		{"movq", 0, 0},
		{"jnc", CF, 0},
		{"setl", SF | OF, 0},
	}
	for _, tt := range tests {
		t.Run(tt.mnemonic, func(t *testing.T) {
			in := I(tt.mnemonic)
			if got := in.ReadsFlags(); got != tt.reads {
				t.Errorf("reads = %b, want %b", got, tt.reads)
			}
			if got := in.WritesFlags(); got != tt.writes {
				t.Errorf("writes = %b, want %b", got, tt.writes)
			}
		})
	}
}

func TestVerifyFlags(t *testing.T) {
	good := []Line{
		I("addq", R(RCX), Mem{Base: R(RDI)}),
		I("adcq", R(RCX), Mem{Base: R(RDI), Disp: 1}),
		I("sbbq", R(RAX), R(RAX)),
	}
	if err := VerifyFlags(good); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	broken := []Line{
		I("movq", R(RCX), R(RAX)),
		I("adcq", R(RCX), Mem{Base: R(RDI)}),
	}
	if err := VerifyFlags(broken); err == nil {
		t.Error("expected error for adc without a carry producer")
	}
}

func TestConstraintLetters(t *testing.T) {
	tests := []struct {
		reg  Reg
		want string
	}{
		{RAX, "a"},
		{RDX, "d"},
		{RSI, "S"},
		{RDI, "D"},
		{R8, ""},
		{R11, ""},
	}
	for _, tt := range tests {
		if got := ConstraintLetter(tt.reg); got != tt.want {
			t.Errorf("ConstraintLetter(%s) = %q, want %q", tt.reg, got, tt.want)
		}
	}
}
