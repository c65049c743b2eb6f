package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigLintSuccess(t *testing.T) {
	stdout, stderr, path, err := runConfigLint(t, configManifest(
		`version: "1"`,
		"termination:",
		"  gracePeriod: 3s",
		"  saveAttempts: 1",
	))
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if want := path + ": OK\n"; stdout != want {
		t.Fatalf("unexpected stdout: got %q want %q", stdout, want)
	}
	if stderr != "" {
		t.Fatalf("unexpected stderr output: %q", stderr)
	}
}

func TestConfigLintSchemaViolation(t *testing.T) {
	stdout, stderr, _, err := runConfigLint(t, configManifest(
		`version: "1"`,
		"termination:",
		"  retries: 3",
	))
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if stdout != "" {
		t.Fatalf("expected empty stdout, got %q", stdout)
	}
	if !strings.Contains(stderr, "schema validation failed") {
		t.Fatalf("stderr does not mention schema failure: %q", stderr)
	}
	if !strings.Contains(stderr, "termination") {
		t.Fatalf("stderr does not mention termination path: %q", stderr)
	}
}

func TestConfigLintSemanticViolation(t *testing.T) {
	_, stderr, path, err := runConfigLint(t, configManifest(
		`version: "1"`,
		"termination:",
		"  saveShortcut: hyper+s",
	))
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !strings.Contains(stderr, "termination.saveShortcut") {
		t.Fatalf("stderr does not mention the field: %q", stderr)
	}
	if !strings.Contains(stderr, filepath.Base(path)) {
		t.Fatalf("stderr does not mention the file: %q", stderr)
	}
}

func TestConfigLintMissingFile(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"config", "lint", filepath.Join(t.TempDir(), "absent.yaml")})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestConfigShowAppliesEnvironment(t *testing.T) {
	t.Setenv("TASKTIDE_SAVE_ATTEMPTS", "4")

	stdout, _, err := runCLI(t, newFakeProcesses(), configManifest(
		`version: "1"`,
		"search:",
		"  scope: registry",
	), "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	for _, want := range []string{"saveAttempts: 4", "scope: registry", "tickInterval: 1s"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("expected %q in output:\n%s", want, stdout)
		}
	}
}

func runConfigLint(t *testing.T, manifest string) (stdout, stderr, path string, err error) {
	t.Helper()
	dir := t.TempDir()
	path = filepath.Join(dir, "tasktide.yaml")
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cmd := NewRootCmd()
	outBuf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{"config", "lint", path})

	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), path, err
}

func configManifest(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}
