package process

import (
	"context"
	"fmt"
	"sync"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/Paintersrp/tasktide/internal/runtime"
)

type cacheKey struct {
	pid     int32
	created int64
}

// Snapshotter enumerates processes through gopsutil. CPU usage is computed
// as the delta since the previous snapshot that observed the same process, so
// the first sighting of a process reports zero.
type Snapshotter struct {
	mu    sync.Mutex
	procs map[cacheKey]*process.Process
}

// NewSnapshotter constructs a gopsutil backed snapshot provider.
func NewSnapshotter() *Snapshotter {
	return &Snapshotter{procs: make(map[cacheKey]*process.Process)}
}

var _ runtime.Snapshotter = (*Snapshotter)(nil)

// Snapshot returns every process that could be inspected. Processes that exit
// while the snapshot is being taken are skipped.
func (s *Snapshotter) Snapshot(ctx context.Context) ([]runtime.ProcessRecord, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[cacheKey]*process.Process, len(procs))
	records := make([]runtime.ProcessRecord, 0, len(procs))
	for _, p := range procs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		created, _ := p.CreateTimeWithContext(ctx)
		key := cacheKey{pid: p.Pid, created: created}
		if cached, ok := s.procs[key]; ok {
			p = cached
		}
		next[key] = p

		record := runtime.ProcessRecord{PID: p.Pid, Name: name}
		if pct, err := p.PercentWithContext(ctx, 0); err == nil {
			record.CPUPercent = pct
		}
		if mem, err := p.MemoryInfoWithContext(ctx); err == nil && mem != nil {
			record.MemoryBytes = mem.RSS
		}
		if exe, err := p.ExeWithContext(ctx); err == nil {
			record.ExePath = exe
		}
		records = append(records, record)
	}
	s.procs = next
	return records, nil
}
