package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

// GenTestSpec is one yaml-driven generation scenario.
type GenTestSpec struct {
	Name      string   `yaml:"name"`
	Args      []string `yaml:"args"`
	Expect    []string `yaml:"expect"`     // Strings that must appear in output
	ExpectNot []string `yaml:"expect_not"` // Strings that must NOT appear in output
	Skip      string   `yaml:"skip,omitempty"`
}

// GenTestFile is the testdata/gen.yaml structure.
type GenTestFile struct {
	Tests []GenTestSpec `yaml:"tests"`
}

func TestGenIntegration(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "gen.yaml"))
	if err != nil {
		t.Fatalf("reading testdata: %v", err)
	}

	var file GenTestFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		t.Fatalf("parsing testdata: %v", err)
	}
	if len(file.Tests) == 0 {
		t.Fatal("no tests in gen.yaml")
	}

	for _, spec := range file.Tests {
		t.Run(spec.Name, func(t *testing.T) {
			if spec.Skip != "" {
				t.Skip(spec.Skip)
			}

			resetFlags()
			var out, errOut bytes.Buffer
			cmd := newRootCmd(&out, &errOut)
			cmd.SetArgs(spec.Args)
			if err := cmd.Execute(); err != nil {
				t.Fatalf("limbgen %s: %v\nstderr: %s", strings.Join(spec.Args, " "), err, errOut.String())
			}

			got := out.String()
			for _, want := range spec.Expect {
				if !strings.Contains(got, want) {
					t.Errorf("output missing %q\noutput:\n%s", want, got)
				}
			}
			for _, not := range spec.ExpectNot {
				if strings.Contains(got, not) {
					t.Errorf("output must not contain %q\noutput:\n%s", not, got)
				}
			}
		})
	}
}
