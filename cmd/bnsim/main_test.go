package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/output"
	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/simulation"
)

// isolateHome points HOME at a temp directory so the registry and config
// never touch the real ~/.bnsim/.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := filepath.Join(t.TempDir(), "home")
	if err := os.MkdirAll(home, 0700); err != nil {
		t.Fatalf("Failed to create temp home: %v", err)
	}
	t.Setenv("HOME", home)
	for _, v := range []string{"BNSIM_COMPRESSION_LEVEL", "BNSIM_BUFFER_SIZE", "BNSIM_LOG_LEVEL", "BNSIM_REGISTRY", "BNSIM_REGISTRY_PATH"} {
		t.Setenv(v, "")
	}
	return home
}

// runCmd executes the root command with args and returns its stdout.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	rootCmd := newRootCmd()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func decodeSummary(t *testing.T, out string) simulation.Summary {
	t.Helper()
	var sum simulation.Summary
	if err := json.Unmarshal([]byte(out), &sum); err != nil {
		t.Fatalf("decoding summary %q: %v", out, err)
	}
	return sum
}

func TestSTS_Avalanches(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()

	out, err := runCmd(t, "sts", "-N", "100", "-m", "0", "-s", "7", "-A", "3", "-o", dir, "--json")
	if err != nil {
		t.Fatalf("sts: %v", err)
	}
	sum := decodeSummary(t, out)

	want := filepath.Join(dir, "BN_STS_binomial_N0000100_m0.00e+00_A3.00e+00_seed0007_avalanches.gz")
	if sum.Path != want {
		t.Errorf("Path = %s, want %s", sum.Path, want)
	}
	records, _, err := output.ReadAll(sum.Path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for _, r := range records {
		if r != (output.Record{A: 1, B: 1}) {
			t.Errorf("record = %+v, want (1, 1)", r)
		}
	}
}

func TestSTS_TimeSeriesText(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()

	out, err := runCmd(t, "sts", "-N", "50", "-m", "0.5", "-s", "1", "-T", "20", "-o", dir)
	if err != nil {
		t.Fatalf("sts: %v", err)
	}
	for _, want := range []string{"(sts)", "steps:      20", "records:    20", "_time-series.gz"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDriven_ScientificNotationAndDriveFlag(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()

	out, err := runCmd(t, "driven", "-N", "1e1", "-m", "0", "-h", "0", "-s", "42", "-T", "5e0", "-o", dir, "--json")
	if err != nil {
		t.Fatalf("driven: %v", err)
	}
	sum := decodeSummary(t, out)
	if sum.Params.N != 10 || sum.Steps != 5 || sum.Records != 5 {
		t.Errorf("unexpected summary %+v", sum)
	}
	if sum.MeanActivity != 0 {
		t.Errorf("MeanActivity = %v, want 0", sum.MeanActivity)
	}

	out, err = runCmd(t, "driven", "-N", "20", "-m", "0.5", "-h", "0.25", "-s", "1", "-T", "3", "-o", dir, "--json")
	if err != nil {
		t.Fatalf("driven: %v", err)
	}
	if sum := decodeSummary(t, out); sum.Params.H != 0.25 {
		t.Errorf("H = %v, want 0.25", sum.Params.H)
	}
}

func TestDriven_Help(t *testing.T) {
	out, err := runCmd(t, "driven", "--help")
	if err != nil {
		t.Fatalf("driven --help: %v", err)
	}
	if !strings.Contains(out, "-h, --drive") || !strings.Contains(out, "--help") {
		t.Errorf("help output missing flags:\n%s", out)
	}
}

func TestSimulate_FlagErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"sts missing N", []string{"sts", "-m", "1", "-s", "1", "-A", "3"}},
		{"sts missing horizon", []string{"sts", "-N", "10", "-m", "1", "-s", "1"}},
		{"sts both horizons", []string{"sts", "-N", "10", "-m", "1", "-s", "1", "-A", "3", "-T", "3"}},
		{"sts non-integral N", []string{"sts", "-N", "10.5", "-m", "1", "-s", "1", "-A", "3"}},
		{"sts negative seed", []string{"sts", "-N", "10", "-m", "1", "-s", "-1", "-A", "3"}},
		{"driven missing h", []string{"driven", "-N", "10", "-m", "1", "-s", "1", "-T", "3"}},
		{"driven missing T", []string{"driven", "-N", "10", "-m", "1", "-h", "0.1", "-s", "1"}},
		{"driven zero T", []string{"driven", "-N", "10", "-m", "1", "-h", "0.1", "-s", "1", "-T", "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateHome(t)
			dir := t.TempDir()

			_, err := runCmd(t, append(tt.args, "-o", dir)...)
			if err == nil {
				t.Fatal("expected error")
			}
			entries, _ := os.ReadDir(dir)
			if len(entries) != 0 {
				t.Errorf("expected nothing written, found %d entries", len(entries))
			}
		})
	}
}

func TestRunsAndInspect(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()

	out, err := runCmd(t, "sts", "-N", "100", "-m", "0", "-s", "7", "-A", "3", "-o", dir, "--json")
	if err != nil {
		t.Fatalf("sts: %v", err)
	}
	sum := decodeSummary(t, out)

	out, err = runCmd(t, "runs")
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if !strings.Contains(out, sum.RunID) {
		t.Errorf("runs output missing run ID:\n%s", out)
	}

	out, err = runCmd(t, "runs", sum.RunID, "--json")
	if err != nil {
		t.Fatalf("runs <id>: %v", err)
	}
	var listed struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal([]byte(out), &listed); err != nil || listed.Count != 1 {
		t.Errorf("runs --json = %s (err %v)", out, err)
	}

	if _, err := runCmd(t, "runs", "no-such-run"); err == nil {
		t.Error("expected error for unknown run")
	}

	out, err = runCmd(t, "inspect", sum.Path)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if !strings.Contains(out, "kind:    avalanches") || !strings.Contains(out, "records: 3") {
		t.Errorf("unexpected inspect output:\n%s", out)
	}
}

func TestRuns_Empty(t *testing.T) {
	isolateHome(t)

	out, err := runCmd(t, "runs")
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if !strings.Contains(out, "No runs recorded.") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestRuns_RegistryDisabled(t *testing.T) {
	isolateHome(t)
	t.Setenv("BNSIM_REGISTRY", "false")

	if _, err := runCmd(t, "runs"); err == nil {
		t.Error("expected error with registry disabled")
	}
}

func TestBackupAndRestore(t *testing.T) {
	home := isolateHome(t)
	dir := t.TempDir()

	out, err := runCmd(t, "sts", "-N", "100", "-m", "0", "-s", "7", "-A", "3", "-o", dir, "--json")
	if err != nil {
		t.Fatalf("sts: %v", err)
	}
	sum := decodeSummary(t, out)

	out, err = runCmd(t, "backup", "--json")
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	var created struct {
		Path     string `json:"path"`
		RunCount int    `json:"run_count"`
	}
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatalf("decoding backup output %q: %v", out, err)
	}
	if created.RunCount != 1 || filepath.Dir(created.Path) != filepath.Join(home, ".bnsim", "backups") {
		t.Errorf("unexpected backup %+v", created)
	}

	out, err = runCmd(t, "backup", "list")
	if err != nil {
		t.Fatalf("backup list: %v", err)
	}
	if !strings.Contains(out, filepath.Base(created.Path)) {
		t.Errorf("backup list missing %s:\n%s", created.Path, out)
	}

	// Restore into a fresh registry.
	t.Setenv("BNSIM_REGISTRY_PATH", filepath.Join(t.TempDir(), "fresh.db"))
	out, err = runCmd(t, "backup", "restore", created.Path)
	if err != nil {
		t.Fatalf("backup restore: %v", err)
	}
	if !strings.Contains(out, "Restored 1 runs (0 skipped)") {
		t.Errorf("unexpected restore output: %s", out)
	}
	if out, err = runCmd(t, "runs", sum.RunID); err != nil || !strings.Contains(out, sum.RunID) {
		t.Errorf("restored run not listed (err %v):\n%s", err, out)
	}

	if _, err := runCmd(t, "backup", "restore", created.Path, "--mode", "clobber"); err == nil {
		t.Error("expected error for unknown restore mode")
	}
}

func TestConfigSetGet(t *testing.T) {
	home := isolateHome(t)

	if _, err := runCmd(t, "config", "set", "output.buffer_size", "1MB"); err != nil {
		t.Fatalf("config set: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, ".bnsim", "config.yaml")); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	out, err := runCmd(t, "config", "get", "output.buffer_size")
	if err != nil {
		t.Fatalf("config get: %v", err)
	}
	if strings.TrimSpace(out) != "output.buffer_size = 1MB" {
		t.Errorf("config get = %q", out)
	}

	if _, err := runCmd(t, "config", "set", "output.compression_level", "12"); err == nil {
		t.Error("expected validation error for compression level 12")
	}
	if _, err := runCmd(t, "config", "get", "no.such.key"); err == nil {
		t.Error("expected error for unknown key")
	}

	out, err = runCmd(t, "config", "list")
	if err != nil {
		t.Fatalf("config list: %v", err)
	}
	found := false
	for _, line := range strings.Split(out, "\n") {
		if f := strings.Fields(line); len(f) == 2 && f[0] == "registry.enabled:" && f[1] == "true" {
			found = true
		}
	}
	if !found {
		t.Errorf("registry.enabled not listed as true:\n%s", out)
	}
}

func TestConfig_ExplicitFileAndLogLevel(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "bnsim.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0600); err != nil {
		t.Fatal(err)
	}

	out, err := runCmd(t, "--config", path, "config", "get", "logging.level")
	if err != nil {
		t.Fatalf("config get: %v", err)
	}
	if strings.TrimSpace(out) != "logging.level = debug" {
		t.Errorf("config get = %q", out)
	}

	out, err = runCmd(t, "--config", path, "--log-level", "trace", "config", "get", "logging.level")
	if err != nil {
		t.Fatalf("config get: %v", err)
	}
	if strings.TrimSpace(out) != "logging.level = trace" {
		t.Errorf("config get with --log-level = %q", out)
	}

	if _, err := runCmd(t, "--log-level", "loud", "config", "list"); err == nil {
		t.Error("expected error for invalid log level")
	}
}

func TestVersion(t *testing.T) {
	out, err := runCmd(t, "version", "--json")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var v map[string]string
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decoding version: %v", err)
	}
	if v["version"] != version {
		t.Errorf("version = %q, want %q", v["version"], version)
	}
}
