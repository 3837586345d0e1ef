package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func write(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := write(t, t.TempDir(), `
[analysis]
two_phase = false
max_diagnostics = 5
mutability = true

[output]
format = "json"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	opts := cfg.Options()
	if opts.TwoPhase || opts.MaxDiagnostics != 5 || !opts.DropFlags || !opts.ReassignDrops || !opts.Mutability {
		t.Fatalf("options = %+v", opts)
	}
	if cfg.Output.Format != "json" || cfg.Output.Color != "auto" || !cfg.Output.Notes {
		t.Fatalf("output = %+v", cfg.Output)
	}
	if cfg.Path != path {
		t.Fatalf("path = %q", cfg.Path)
	}
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":    "[analysis]\ntwo_phaze = true\n",
		"unknown format": "[output]\nformat = \"xml\"\n",
		"bad color":      "[output]\ncolor = \"sometimes\"\n",
		"negative jobs":  "[driver]\njobs = -1\n",
		"syntax":         "[analysis\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(write(t, t.TempDir(), content)); err == nil {
				t.Fatalf("accepted %q", content)
			}
		})
	}

	_, err := Load(write(t, t.TempDir(), "[analysis]\ntwo_phaze = true\n"))
	if !errors.Is(err, ErrUnknownKeys) || !strings.Contains(err.Error(), "analysis.two_phaze") {
		t.Fatalf("err = %v", err)
	}
}

func TestDiscoverWalksUp(t *testing.T) {
	root := t.TempDir()
	write(t, root, "[driver]\njobs = 3\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	cfg, err := Discover(nested)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Driver.Jobs != 3 {
		t.Fatalf("jobs = %d", cfg.Driver.Jobs)
	}
}

func TestDiscoverDefaults(t *testing.T) {
	cfg, err := Discover(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Path != "" && !strings.HasSuffix(cfg.Path, FileName) {
		t.Fatalf("path = %q", cfg.Path)
	}
}
