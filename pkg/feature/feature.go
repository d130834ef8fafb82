// Package feature defines the feature profile consumed by the
// emitters: a closed, ordered tier of extended-instruction families
// assumed available on the target. Selection happens entirely at
// generation time; generated code never branches on CPU capabilities.
package feature

import "fmt"

// Tier names the instruction families usable for a generation run.
// Each tier strictly includes the previous one.
type Tier int

const (
	// Baseline assumes no extensions beyond the x86-64 base ISA.
	Baseline Tier = iota
	// MULX adds the BMI2 family: mulx and the flagless shlx/shrx/sarx.
	MULX
	// ADX adds adcx/adox dual carry chains on top of MULX.
	ADX
)

// HasMULX reports whether the BMI2 family may be emitted.
func (t Tier) HasMULX() bool {
	return t >= MULX
}

// HasADX reports whether adcx/adox may be emitted.
func (t Tier) HasADX() bool {
	return t >= ADX
}

func (t Tier) String() string {
	switch t {
	case Baseline:
		return "baseline"
	case MULX:
		return "mulx"
	case ADX:
		return "adx"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

// Parse resolves a tier name as accepted on the command line.
func Parse(s string) (Tier, error) {
	switch s {
	case "baseline":
		return Baseline, nil
	case "mulx", "bmi2":
		return MULX, nil
	case "adx":
		return ADX, nil
	default:
		return Baseline, fmt.Errorf("unknown cpu tier %q (want baseline, mulx or adx)", s)
	}
}
