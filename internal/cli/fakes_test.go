package cli

import (
	"bytes"
	stdcontext "context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/Paintersrp/tasktide/internal/runtime"
)

type fakeProcesses struct {
	mu      sync.Mutex
	procs   map[int32]runtime.ProcessRecord
	openErr error
	killed  []int32
	codes   []uint32
}

func newFakeProcesses(records ...runtime.ProcessRecord) *fakeProcesses {
	f := &fakeProcesses{procs: make(map[int32]runtime.ProcessRecord)}
	for _, rec := range records {
		f.procs[rec.PID] = rec
	}
	return f
}

func (f *fakeProcesses) Snapshot(stdcontext.Context) ([]runtime.ProcessRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]runtime.ProcessRecord, 0, len(f.procs))
	for _, rec := range f.procs {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out, nil
}

func (f *fakeProcesses) Exists(_ stdcontext.Context, pid int32) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.procs[pid]
	return ok, nil
}

func (f *fakeProcesses) Open(pid int32) (runtime.ProcessHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	if _, ok := f.procs[pid]; !ok {
		return nil, runtime.ErrProcessNotFound
	}
	return &fakeHandle{owner: f, pid: pid}, nil
}

func (f *fakeProcesses) killedPIDs() []int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int32(nil), f.killed...)
}

type fakeHandle struct {
	owner *fakeProcesses
	pid   int32
}

func (h *fakeHandle) Kill(code uint32) error {
	h.owner.mu.Lock()
	defer h.owner.mu.Unlock()
	delete(h.owner.procs, h.pid)
	h.owner.killed = append(h.owner.killed, h.pid)
	h.owner.codes = append(h.owner.codes, code)
	return nil
}

func (h *fakeHandle) Close() error { return nil }

// runCLI executes the root command against fake processes. An empty config
// runs with defaults.
func runCLI(t *testing.T, procs *fakeProcesses, configYAML string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "tasktide.yaml")
	if configYAML != "" {
		if err := os.WriteFile(cfgPath, []byte(configYAML), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
	}

	root, ctx := newRootCommand()
	ctx.platform = &platform{snapshots: procs, control: procs}

	outBuf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	root.SetOut(outBuf)
	root.SetErr(errBuf)
	root.SetArgs(append([]string{"--config", cfgPath, "--env-file", filepath.Join(dir, ".env")}, args...))
	root.SetContext(stdcontext.Background())

	// Explicit paths must exist.
	if configYAML == "" {
		if err := os.WriteFile(cfgPath, []byte("version: \"1\"\n"), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), nil, 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}

	err = root.Execute()
	return outBuf.String(), errBuf.String(), err
}

func lines(s string) []string {
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}
