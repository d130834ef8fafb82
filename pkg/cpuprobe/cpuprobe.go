// Package cpuprobe reports which extended instruction families the
// running CPU supports. The generator core never probes hardware
// itself; it consumes the feature tier this package produces. Detection
// is delegated to golang.org/x/sys/cpu, and every capability can be
// forced on or off with a LIMBGEN_CAP_<NAME> environment variable,
// which is useful for cross-generation and for CI machines.
package cpuprobe

import (
	"fmt"
	"strings"

	"github.com/xyproto/env/v2"
	"golang.org/x/sys/cpu"

	"github.com/fiwia/limbgen/pkg/feature"
)

// Capability names one probeable instruction family.
type Capability string

const (
	// BMI2 covers mulx and the flagless shift instructions.
	BMI2 Capability = "bmi2"
	// ADX covers the adcx/adox dual carry-chain family.
	ADX Capability = "adx"
	// AVX covers 256-bit vector loads.
	AVX Capability = "avx"
	// AVX2 covers 256-bit vector shuffles.
	AVX2 Capability = "avx2"
)

// Capabilities lists every capability the probe knows, in the order
// they are reported.
var Capabilities = []Capability{BMI2, ADX, AVX, AVX2}

// ErrUnknownCapability is wrapped by Supported for unrecognized names.
var ErrUnknownCapability = fmt.Errorf("unknown capability")

// Supported reports whether the capability is usable. An environment
// override LIMBGEN_CAP_<NAME>=0|1 takes precedence over detection.
func Supported(c Capability) (bool, error) {
	if v := env.Str("LIMBGEN_CAP_" + strings.ToUpper(string(c))); v != "" {
		return v != "0", nil
	}
	switch c {
	case BMI2:
		return cpu.X86.HasBMI2, nil
	case ADX:
		return cpu.X86.HasADX, nil
	case AVX:
		return cpu.X86.HasAVX, nil
	case AVX2:
		return cpu.X86.HasAVX2, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownCapability, string(c))
	}
}

// Detect returns the best feature tier the current machine (or the
// environment overrides) allows.
func Detect() feature.Tier {
	bmi2, _ := Supported(BMI2)
	if !bmi2 {
		return feature.Baseline
	}
	adx, _ := Supported(ADX)
	if !adx {
		return feature.MULX
	}
	return feature.ADX
}
