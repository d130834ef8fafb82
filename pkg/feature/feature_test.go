package feature

import "testing"

func TestTierOrdering(t *testing.T) {
	if Baseline.HasMULX() || Baseline.HasADX() {
		t.Error("baseline must not include extensions")
	}
	if !MULX.HasMULX() || MULX.HasADX() {
		t.Error("mulx tier must include mulx but not adx")
	}
	if !ADX.HasMULX() || !ADX.HasADX() {
		t.Error("adx tier must include both families")
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Tier
		wantErr bool
	}{
		{"baseline", Baseline, false},
		{"mulx", MULX, false},
		{"bmi2", MULX, false},
		{"adx", ADX, false},
		{"avx512", Baseline, true},
		{"", Baseline, true},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestString(t *testing.T) {
	for _, tier := range []Tier{Baseline, MULX, ADX} {
		round, err := Parse(tier.String())
		if err != nil || round != tier {
			t.Errorf("Parse(String(%v)) = %v, %v", tier, round, err)
		}
	}
}
