package process

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"testing"
	"time"

	gproc "github.com/shirou/gopsutil/v3/process"
	"gotest.tools/v3/assert"

	"github.com/sysdock/sysdock/internal/model"
)

type fakeProc struct {
	name    string
	exe     string
	cpu     float64
	rss     uint64
	created int64
	gone    bool
}

var errGone = errors.New("no such process")

func (f fakeProc) NameWithContext(context.Context) (string, error) {
	if f.gone {
		return "", errGone
	}
	return f.name, nil
}

func (f fakeProc) ExeWithContext(context.Context) (string, error) {
	if f.exe == "" {
		return "", errors.New("permission denied")
	}
	return f.exe, nil
}

func (f fakeProc) CPUPercentWithContext(context.Context) (float64, error) { return f.cpu, nil }

func (f fakeProc) MemoryInfoWithContext(context.Context) (*gproc.MemoryInfoStat, error) {
	return &gproc.MemoryInfoStat{RSS: f.rss}, nil
}

func (f fakeProc) CreateTimeWithContext(context.Context) (int64, error) { return f.created, nil }

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestLister(icon IconFunc, procs map[int32]fakeProc) *Lister {
	l := NewLister(slog.New(slog.NewTextHandler(io.Discard, nil)), icon)
	l.now = func() time.Time { return now }
	l.enumerate = func(context.Context) ([]entry, error) {
		var out []entry
		for _, pid := range []int32{1, 2, 3, 4} {
			if p, ok := procs[pid]; ok {
				out = append(out, entry{pid: pid, h: p})
			}
		}
		return out, nil
	}
	return l
}

func TestList(t *testing.T) {
	l := newTestLister(nil, map[int32]fakeProc{
		1: {name: "init", exe: "/sbin/init", cpu: 0.5, rss: 8 << 20, created: now.Add(-90 * time.Minute).UnixMilli()},
		2: {name: "ghost", gone: true},
		3: {name: "kworker", rss: 0},
	})
	ps := l.List(context.Background())

	assert.Equal(t, len(ps), 2)
	assert.Equal(t, ps[0].PID, int32(1))
	assert.Equal(t, *ps[0].Exe, "/sbin/init")
	assert.Equal(t, ps[0].MemoryMB, 8.0)
	assert.Equal(t, ps[0].RunTime, 90*time.Minute)
	assert.Assert(t, ps[0].Icon == nil)

	assert.Equal(t, ps[1].Name, "kworker")
	assert.Assert(t, ps[1].Exe == nil)
	assert.Equal(t, ps[1].RunTime, time.Duration(0))
}

func TestList_EnumerateError(t *testing.T) {
	l := newTestLister(nil, nil)
	l.enumerate = func(context.Context) ([]entry, error) { return nil, errors.New("boom") }
	ps := l.List(context.Background())
	assert.Assert(t, ps != nil)
	assert.Equal(t, len(ps), 0)
}

func TestList_IconFailuresAreIsolated(t *testing.T) {
	icon := func(_ context.Context, exe string) (string, error) {
		switch exe {
		case "/bin/panics":
			panic("bad bitmap")
		case "/bin/fails":
			return "", errors.New("no icon")
		}
		return "data:image/png;base64,AAAA", nil
	}
	l := newTestLister(icon, map[int32]fakeProc{
		1: {name: "ok", exe: "/bin/ok"},
		2: {name: "panics", exe: "/bin/panics"},
		3: {name: "fails", exe: "/bin/fails"},
		4: {name: "noexe"},
	})
	ps := l.List(context.Background())
	assert.Equal(t, len(ps), 4)
	assert.Equal(t, *ps[0].Icon, "data:image/png;base64,AAAA")
	assert.Assert(t, ps[1].Icon == nil)
	assert.Assert(t, ps[2].Icon == nil)
	assert.Assert(t, ps[3].Icon == nil)
}

func TestEnd_MissingPID(t *testing.T) {
	l := NewLister(slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	l.find = func(context.Context, int32) (killer, error) { return nil, gproc.ErrorProcessNotRunning }
	assert.NilError(t, l.End(context.Background(), 999999))
}

func TestEnd_MissingPIDLive(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("relies on /proc")
	}
	l := NewLister(slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	assert.NilError(t, l.End(context.Background(), 2147483000))
}

func TestEnd_InvalidPID(t *testing.T) {
	l := NewLister(slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	assert.Assert(t, errors.Is(l.End(context.Background(), 0), ErrInvalidPID))
	assert.Assert(t, errors.Is(l.End(context.Background(), -4), ErrInvalidPID))
}

type fakeKiller struct {
	killErr error
	running bool
}

func (f fakeKiller) KillWithContext(context.Context) error { return f.killErr }
func (f fakeKiller) IsRunningWithContext(context.Context) (bool, error) {
	return f.running, nil
}

func TestEnd_KillRace(t *testing.T) {
	l := NewLister(slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	l.find = func(context.Context, int32) (killer, error) {
		return fakeKiller{killErr: errors.New("esrch"), running: false}, nil
	}
	assert.NilError(t, l.End(context.Background(), 42))

	l.find = func(context.Context, int32) (killer, error) {
		return fakeKiller{killErr: errors.New("eperm"), running: true}, nil
	}
	assert.ErrorContains(t, l.End(context.Background(), 42), "eperm")
}

func TestEnd_Child(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs sleep")
	}
	path, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not found")
	}
	cmd := exec.Command(path, "30")
	assert.NilError(t, cmd.Start())

	l := NewLister(slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	assert.NilError(t, l.End(context.Background(), int32(cmd.Process.Pid)))

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		assert.Assert(t, err != nil)
	case <-time.After(5 * time.Second):
		t.Fatal("child survived End")
	}
}

func TestSort(t *testing.T) {
	ps := []model.Process{
		{PID: 3, Name: "b", CPU: 1, MemoryMB: 10},
		{PID: 1, Name: "C", CPU: 5, MemoryMB: 5},
		{PID: 2, Name: "a", CPU: 5, MemoryMB: 20},
	}
	pids := func() []int32 {
		var out []int32
		for _, p := range ps {
			out = append(out, p.PID)
		}
		return out
	}

	Sort(ps, SortCPU)
	assert.DeepEqual(t, pids(), []int32{1, 2, 3})
	Sort(ps, SortMem)
	assert.DeepEqual(t, pids(), []int32{2, 3, 1})
	Sort(ps, SortName)
	assert.DeepEqual(t, pids(), []int32{2, 3, 1})
	Sort(ps, SortPID)
	assert.DeepEqual(t, pids(), []int32{1, 2, 3})
}

func TestParseSortKey(t *testing.T) {
	for in, want := range map[string]SortKey{"cpu": SortCPU, "MEM": SortMem, "memory": SortMem, " pid ": SortPID, "name": SortName} {
		got, err := ParseSortKey(in)
		assert.NilError(t, err)
		assert.Equal(t, got, want)
	}
	_, err := ParseSortKey("disk")
	assert.ErrorContains(t, err, "unknown sort key")
}
