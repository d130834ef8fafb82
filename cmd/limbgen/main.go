package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fiwia/limbgen/pkg/cpuprobe"
	"github.com/fiwia/limbgen/pkg/feature"
	"github.com/fiwia/limbgen/pkg/limb"
	"github.com/fiwia/limbgen/pkg/render"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// Generation options
var (
	genMode  string
	genWidth int
	genFuncs []string
	genCPU   string
	genOut   string
)

// errUnsupported reports a capability the current CPU lacks; probe
// turns it into exit code 1 so shell conditionals can branch on it.
var errUnsupported = errors.New("capability not supported")

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errUnsupported) {
			return 1
		}
		if errors.Is(err, cpuprobe.ErrUnknownCapability) {
			fmt.Fprintf(os.Stderr, "limbgen: %v\n", err)
			return 2
		}
		fmt.Fprintf(os.Stderr, "limbgen: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "limbgen",
		Short: "limbgen generates x86-64 multi-precision integer primitives",
		Long: `limbgen emits exact x86-64 assembly for fixed-width multi-precision
integer arithmetic: carry-chained add/sub, comparisons, schoolbook
multiply and divide, and branch-free shifts, at any limb width. The
same catalogue renders as standalone assembly, a C header, or inline
asm wrappers.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.AddCommand(newGenCmd(out, errOut))
	rootCmd.AddCommand(newProbeCmd(out, errOut))

	return rootCmd
}

func newGenCmd(out, errOut io.Writer) *cobra.Command {
	genCmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate functions at a limb width",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return doGen(out, errOut)
		},
	}

	genCmd.Flags().StringVarP(&genMode, "mode", "m", "asm", "Output surface: asm, header or inline")
	genCmd.Flags().IntVarP(&genWidth, "width", "w", 0, "Limb width (number of 64-bit words)")
	genCmd.Flags().StringSliceVarP(&genFuncs, "funcs", "f", nil, "Generate only the named functions")
	genCmd.Flags().StringVarP(&genCPU, "cpu", "c", "auto", "Feature tier: baseline, mulx, adx or auto")
	genCmd.Flags().StringVarP(&genOut, "output", "o", "", "Output file (default stdout)")
	genCmd.MarkFlagRequired("width")

	return genCmd
}

func doGen(out, errOut io.Writer) error {
	mode, err := render.ParseMode(genMode)
	if err != nil {
		return err
	}

	tier, err := resolveTier(genCPU, errOut)
	if err != nil {
		return err
	}

	w := out
	if genOut != "" {
		f, err := os.Create(genOut)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	return render.Generate(w, limb.Width(genWidth), tier, mode, genFuncs)
}

// resolveTier maps the --cpu flag to a feature tier, probing the host
// when asked for "auto".
func resolveTier(name string, errOut io.Writer) (feature.Tier, error) {
	if name == "auto" {
		tier := cpuprobe.Detect()
		fmt.Fprintf(errOut, "limbgen: detected feature tier %s\n", tier)
		return tier, nil
	}
	return feature.Parse(name)
}

func newProbeCmd(out, errOut io.Writer) *cobra.Command {
	probeCmd := &cobra.Command{
		Use:   "probe <capability>",
		Short: "Report whether the host CPU supports a capability",
		Long: `probe exits 0 when the host supports the named capability, 1 when it
does not, and 2 when the capability name is unknown. Capabilities:
bmi2, adx, avx, avx2.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := cpuprobe.Supported(cpuprobe.Capability(args[0]))
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: %s", errUnsupported, args[0])
			}
			fmt.Fprintf(out, "%s\n", args[0])
			return nil
		},
	}
	return probeCmd
}
