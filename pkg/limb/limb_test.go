package limb

import (
	"errors"
	"testing"

	"github.com/fiwia/limbgen/pkg/x86"
)

func TestWidthValidate(t *testing.T) {
	tests := []struct {
		w       Width
		wantErr bool
	}{
		{1, false},
		{4, false},
		{1000, false},
		{0, true},
		{-3, true},
	}
	for _, tt := range tests {
		err := tt.w.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("Width(%d).Validate() = %v, wantErr %v", tt.w, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrBadWidth) {
			t.Errorf("Width(%d).Validate() = %v, want ErrBadWidth", tt.w, err)
		}
	}
}

func TestWidthDouble(t *testing.T) {
	if got := Width(3).Double(); got != 6 {
		t.Errorf("Double() = %d, want 6", got)
	}
	if got := Width(4).Bytes(); got != 32 {
		t.Errorf("Bytes() = %d, want 32", got)
	}
}

func TestAccessors(t *testing.T) {
	accs := Accessors(x86.R(x86.RDI), 3)
	want := []string{"(%rdi)", "8(%rdi)", "16(%rdi)"}
	if len(accs) != len(want) {
		t.Fatalf("got %d accessors, want %d", len(accs), len(want))
	}
	for i, w := range want {
		if got := accs[i].String(); got != w {
			t.Errorf("limb %d: got %q, want %q", i, got, w)
		}
	}
}
