// Package process lists and terminates running processes.
package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	gproc "github.com/shirou/gopsutil/v3/process"

	"github.com/sysdock/sysdock/internal/model"
)

// ErrInvalidPID is returned by End for pids that can never name a process.
var ErrInvalidPID = errors.New("invalid pid")

// IconFunc resolves an executable path to an encoded icon. It is optional
// and may fail or panic; either way the record simply has no icon.
type IconFunc func(ctx context.Context, exe string) (string, error)

// handle is the slice of *gproc.Process the lister reads.
type handle interface {
	NameWithContext(ctx context.Context) (string, error)
	ExeWithContext(ctx context.Context) (string, error)
	CPUPercentWithContext(ctx context.Context) (float64, error)
	MemoryInfoWithContext(ctx context.Context) (*gproc.MemoryInfoStat, error)
	CreateTimeWithContext(ctx context.Context) (int64, error)
}

type entry struct {
	pid int32
	h   handle
}

// Lister enumerates processes on every call; nothing is cached.
type Lister struct {
	log  *slog.Logger
	icon IconFunc
	now  func() time.Time

	enumerate func(ctx context.Context) ([]entry, error)
	find      func(ctx context.Context, pid int32) (killer, error)
}

type killer interface {
	KillWithContext(ctx context.Context) error
	IsRunningWithContext(ctx context.Context) (bool, error)
}

// NewLister returns a Lister over the live process table. icon may be nil.
func NewLister(log *slog.Logger, icon IconFunc) *Lister {
	if log == nil {
		log = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Lister{
		log:       log.With("component", "process"),
		icon:      icon,
		now:       time.Now,
		enumerate: systemProcesses,
		find:      findProcess,
	}
}

func systemProcesses(ctx context.Context) ([]entry, error) {
	ps, err := gproc.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]entry, 0, len(ps))
	for _, p := range ps {
		out = append(out, entry{pid: p.Pid, h: p})
	}
	return out, nil
}

func findProcess(ctx context.Context, pid int32) (killer, error) {
	return gproc.NewProcessWithContext(ctx, pid)
}

// List returns one record per running process. Processes that exit while
// being read are skipped.
func (l *Lister) List(ctx context.Context) []model.Process {
	entries, err := l.enumerate(ctx)
	if err != nil {
		l.log.Debug("enumerate processes", "err", err)
		return []model.Process{}
	}
	now := l.now()
	out := make([]model.Process, 0, len(entries))
	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}
		p, ok := l.read(ctx, e, now)
		if ok {
			out = append(out, p)
		}
	}
	return out
}

func (l *Lister) read(ctx context.Context, e entry, now time.Time) (model.Process, bool) {
	name, err := e.h.NameWithContext(ctx)
	if err != nil {
		// Gone between enumeration and read.
		return model.Process{}, false
	}
	p := model.Process{PID: e.pid, Name: name}

	if exe, err := e.h.ExeWithContext(ctx); err == nil && exe != "" {
		p.Exe = model.Ptr(exe)
		p.Icon = l.iconFor(ctx, exe)
	}
	if pct, err := e.h.CPUPercentWithContext(ctx); err == nil {
		p.CPU = pct
	}
	if mi, err := e.h.MemoryInfoWithContext(ctx); err == nil && mi != nil {
		p.MemoryMB = float64(mi.RSS) / (1024 * 1024)
	}
	if ms, err := e.h.CreateTimeWithContext(ctx); err == nil && ms > 0 {
		if d := now.Sub(time.UnixMilli(ms)); d > 0 {
			p.RunTime = d.Truncate(time.Second)
		}
	}
	return p, true
}

func (l *Lister) iconFor(ctx context.Context, exe string) (icon *string) {
	if l.icon == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			l.log.Debug("icon lookup panicked", "exe", exe, "panic", r)
			icon = nil
		}
	}()
	s, err := l.icon(ctx, exe)
	if err != nil || s == "" {
		return nil
	}
	return &s
}

// End terminates pid. A pid that names no process counts as success.
func (l *Lister) End(ctx context.Context, pid int32) error {
	if pid <= 0 {
		return fmt.Errorf("end process %d: %w", pid, ErrInvalidPID)
	}
	p, err := l.find(ctx, pid)
	if errors.Is(err, gproc.ErrorProcessNotRunning) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("end process %d: %w", pid, err)
	}
	if err := p.KillWithContext(ctx); err != nil {
		if running, rerr := p.IsRunningWithContext(ctx); rerr == nil && !running {
			return nil
		}
		return fmt.Errorf("end process %d: %w", pid, err)
	}
	l.log.Info("process terminated", "pid", pid)
	return nil
}

// SortKey orders a process listing.
type SortKey string

const (
	SortCPU  SortKey = "cpu"
	SortMem  SortKey = "mem"
	SortPID  SortKey = "pid"
	SortName SortKey = "name"
)

// ParseSortKey accepts cpu, mem, pid or name, case-insensitively.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortCPU, SortMem, SortPID, SortName:
		return k, nil
	case "memory":
		return SortMem, nil
	}
	return "", fmt.Errorf("unknown sort key %q (want cpu, mem, pid or name)", s)
}

// Sort orders ps in place. CPU and memory sort descending, PID and name
// ascending; ties fall back to PID.
func Sort(ps []model.Process, key SortKey) {
	less := func(i, j int) bool { return ps[i].PID < ps[j].PID }
	switch key {
	case SortCPU:
		less = func(i, j int) bool {
			if ps[i].CPU != ps[j].CPU {
				return ps[i].CPU > ps[j].CPU
			}
			return ps[i].PID < ps[j].PID
		}
	case SortMem:
		less = func(i, j int) bool {
			if ps[i].MemoryMB != ps[j].MemoryMB {
				return ps[i].MemoryMB > ps[j].MemoryMB
			}
			return ps[i].PID < ps[j].PID
		}
	case SortName:
		less = func(i, j int) bool {
			a, b := strings.ToLower(ps[i].Name), strings.ToLower(ps[j].Name)
			if a != b {
				return a < b
			}
			return ps[i].PID < ps[j].PID
		}
	}
	sort.SliceStable(ps, less)
}
