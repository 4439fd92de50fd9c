package command

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/poll"

	"github.com/sysdock/sysdock/internal/external"
	"github.com/sysdock/sysdock/internal/model"
	"github.com/sysdock/sysdock/internal/sampler"
)

type fakeSnaps struct {
	rows  atomic.Int64
	rates atomic.Bool
}

func (f *fakeSnaps) Compose(context.Context) model.Snapshot {
	return model.Snapshot{CPU: model.CPU{Name: "fake", Usage: 12}}
}

func (f *fakeSnaps) LogRow(context.Context) model.LogRow {
	n := f.rows.Add(1)
	return model.LogRow{Timestamp: "t", CPUUsage: float64(n), MemoryUsed: 1 << 30, MemoryTotal: 2 << 30}
}

func (f *fakeSnaps) Network(_ context.Context, rates bool) []model.NetworkInterface {
	f.rates.Store(rates)
	return []model.NetworkInterface{{Name: "eth0", Status: model.StatusConnected, IPAddresses: []string{"10.0.0.2"}}}
}

type fakeProcs struct {
	ended []int32
}

func (f *fakeProcs) List(context.Context) []model.Process {
	return []model.Process{{PID: 1, Name: "init"}, {PID: 42, Name: "app"}}
}

func (f *fakeProcs) End(_ context.Context, pid int32) error {
	f.ended = append(f.ended, pid)
	return nil
}

type fakeTools struct{}

func (fakeTools) DiskHealth(_ context.Context, device string) (external.Health, error) {
	if device == "/dev/slow" {
		return external.HealthUnknown, external.ErrTimeout
	}
	return external.HealthPassed, nil
}

func (fakeTools) SystemLogs(context.Context, int) ([]model.SystemLogEntry, error) {
	return []model.SystemLogEntry{{Level: "Error", Message: "x"}}, nil
}

func (fakeTools) Latency(_ context.Context, host string) (external.PingResult, error) {
	return external.PingResult{Host: host, AvgRTT: time.Millisecond}, nil
}

func (fakeTools) OpenPath(context.Context, string) error { return nil }

func newService() (*Service, *fakeSnaps, *fakeProcs) {
	snaps := &fakeSnaps{}
	procs := &fakeProcs{}
	s := NewWithDeps(Deps{
		Snapshots: snaps,
		Processes: procs,
		Tools:     fakeTools{},
		Log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return s, snaps, procs
}

func TestDelegation(t *testing.T) {
	s, snaps, procs := newService()
	ctx := context.Background()

	assert.Equal(t, s.SystemOverview(ctx).CPU.Name, "fake")
	assert.Equal(t, len(s.ListProcesses(ctx)), 2)

	assert.Equal(t, s.NetworkInfo(ctx)[0].Name, "eth0")
	assert.Assert(t, !snaps.rates.Load())
	s.NetworkRates(ctx)
	assert.Assert(t, snaps.rates.Load())

	assert.NilError(t, s.EndProcess(ctx, 42))
	assert.DeepEqual(t, procs.ended, []int32{42})

	h, err := s.DiskHealth(ctx, "/dev/sda")
	assert.NilError(t, err)
	assert.Equal(t, h, external.HealthPassed)
	_, err = s.DiskHealth(ctx, "/dev/slow")
	assert.Assert(t, errors.Is(err, external.ErrTimeout))

	logs, err := s.SystemLogs(ctx, 10)
	assert.NilError(t, err)
	assert.Equal(t, len(logs), 1)

	res, err := s.Latency(ctx, "gw")
	assert.NilError(t, err)
	assert.Equal(t, res.Host, "gw")
	assert.NilError(t, s.OpenPath(ctx, "/"))
}

func TestSamplingLifecycle(t *testing.T) {
	s, _, _ := newService()

	assert.Assert(t, !s.SamplingActive())
	assert.Equal(t, s.SamplingInterval(), time.Duration(0))
	assert.NilError(t, s.StartSamplingEvery(10*time.Millisecond))
	assert.Assert(t, s.SamplingActive())
	assert.Equal(t, s.SamplingInterval(), 10*time.Millisecond)

	err := s.StartSampling(1)
	assert.Assert(t, errors.Is(err, sampler.ErrAlreadyActive))

	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if len(s.SamplingLog()) >= 2 {
			return poll.Success()
		}
		return poll.Continue("waiting for rows")
	}, poll.WithTimeout(2*time.Second))

	err = s.ClearSamplingLog()
	assert.Assert(t, errors.Is(err, sampler.ErrActive))
	assert.Assert(t, len(s.SamplingLog()) >= 2)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NilError(t, s.Shutdown(ctx))
	assert.Assert(t, !s.SamplingActive())

	a, b := s.SamplingLog(), s.SamplingLog()
	assert.DeepEqual(t, a, b)

	var buf bytes.Buffer
	assert.NilError(t, s.ExportSamplingLog(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, len(lines), len(a)+1)
	assert.Assert(t, strings.HasSuffix(lines[1], ",1.00,2.00,0.00,0.00"), lines[1])

	assert.NilError(t, s.ClearSamplingLog())
	assert.Equal(t, len(s.SamplingLog()), 0)
}

func TestStartSampling_Invalid(t *testing.T) {
	s, _, _ := newService()
	assert.Assert(t, errors.Is(s.StartSampling(0), sampler.ErrInvalidInterval))
	assert.Assert(t, !s.SamplingActive())
}
