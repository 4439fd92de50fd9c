package snapshot

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/sysdock/sysdock/internal/model"
	"github.com/sysdock/sysdock/internal/probe"
)

// fakeSource replays CPU time readings in order and returns fixed values
// for everything else.
type fakeSource struct {
	mu       sync.Mutex
	times    []probe.Times
	counters [][]model.NetCounters
	mem      model.Memory
	disks    []model.Disk
	addrs    []model.NetAddrs
	gpus     []model.GPU
}

func (f *fakeSource) Host(context.Context) model.Host { return model.Host{Hostname: "box"} }
func (f *fakeSource) CPUInfo(context.Context) model.CPU {
	return model.CPU{Name: "Fake CPU", Cores: 4, Usage: 99}
}

func (f *fakeSource) CPUTimes(context.Context) (probe.Times, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.times) == 0 {
		return probe.Times{}, false
	}
	t := f.times[0]
	f.times = f.times[1:]
	return t, true
}

func (f *fakeSource) Memory(context.Context) model.Memory { return f.mem }
func (f *fakeSource) Disks(context.Context) []model.Disk  { return f.disks }
func (f *fakeSource) GPUs(context.Context) []model.GPU    { return f.gpus }
func (f *fakeSource) NetAddrs(context.Context) []model.NetAddrs {
	return f.addrs
}

func (f *fakeSource) NetCounters(context.Context) []model.NetCounters {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.counters) == 0 {
		return nil
	}
	c := f.counters[0]
	if len(f.counters) > 1 {
		f.counters = f.counters[1:]
	}
	return c
}

func newComposer(src probe.Source) *Composer {
	c := New(src, 10*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return c
}

func approx(got, want float64) bool { return math.Abs(got-want) < 1e-6 }

func TestUsage(t *testing.T) {
	assert.Equal(t, Usage(probe.Times{Busy: 10, Total: 100}, probe.Times{Busy: 35, Total: 200}), 25.0)
	assert.Equal(t, Usage(probe.Times{Busy: 10, Total: 100}, probe.Times{Busy: 10, Total: 100}), 0.0)
	assert.Equal(t, Usage(probe.Times{Busy: 50, Total: 100}, probe.Times{Busy: 10, Total: 200}), 0.0)
	assert.Equal(t, Usage(probe.Times{Busy: 0, Total: 100}, probe.Times{Busy: 500, Total: 200}), 100.0)
}

func TestCompose(t *testing.T) {
	src := &fakeSource{
		times: []probe.Times{{Busy: 100, Total: 1000}, {Busy: 150, Total: 1100}},
		mem:   model.Memory{Total: 8 << 30, Used: 2 << 30, Percent: 25},
		disks: []model.Disk{model.NewDisk("sda1", "/", "ext4", 1000, 400, model.MediumSSD)},
	}
	snap := newComposer(src).Compose(context.Background())

	assert.Equal(t, snap.CPU.Usage, 50.0)
	assert.Equal(t, snap.CPU.Name, "Fake CPU")
	assert.Equal(t, snap.Host.Hostname, "box")
	assert.Equal(t, snap.Memory.Used, uint64(2<<30))
	assert.Equal(t, len(snap.Disks), 1)
	assert.Assert(t, snap.GPUs != nil)
	assert.Equal(t, len(snap.GPUs), 0)
	assert.Equal(t, snap.Timestamp.Year(), 2024)
}

func TestCompose_NoCPUTimes(t *testing.T) {
	snap := newComposer(&fakeSource{}).Compose(context.Background())
	assert.Equal(t, snap.CPU.Usage, 0.0)
	assert.Assert(t, !math.IsNaN(snap.CPU.Usage))
	assert.Assert(t, snap.Disks != nil)
}

func TestCompose_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &fakeSource{times: []probe.Times{{Busy: 1, Total: 10}, {Busy: 9, Total: 20}}}
	snap := newComposer(src).Compose(ctx)
	assert.Equal(t, snap.CPU.Usage, 0.0)
}

func TestLogRow(t *testing.T) {
	src := &fakeSource{
		times: []probe.Times{{Busy: 0, Total: 0}, {Busy: 30, Total: 100}},
		mem:   model.Memory{Total: 1000, Used: 400},
		disks: []model.Disk{
			model.NewDisk("a", "/", "", 100, 40, ""),
			model.NewDisk("b", "/home", "", 300, 100, ""),
		},
	}
	row := newComposer(src).LogRow(context.Background())
	assert.Equal(t, row.Timestamp, "2024-05-01T12:00:00Z")
	assert.Equal(t, row.CPUUsage, 30.0)
	assert.Equal(t, row.MemoryUsed, uint64(400))
	assert.Equal(t, row.MemoryTotal, uint64(1000))
	assert.Equal(t, row.DiskUsed, uint64(260))
	assert.Equal(t, row.DiskTotal, uint64(400))
}

func TestNetwork(t *testing.T) {
	src := &fakeSource{
		counters: [][]model.NetCounters{{{Name: "eth0", BytesRecv: 500, BytesSent: 100}}},
		addrs:    []model.NetAddrs{{Name: "eth0", Addrs: []string{"10.0.0.2/24"}}},
	}
	ifaces := newComposer(src).Network(context.Background(), false)
	assert.Equal(t, len(ifaces), 1)
	assert.Equal(t, ifaces[0].Status, model.StatusConnected)
	assert.DeepEqual(t, ifaces[0].IPAddresses, []string{"10.0.0.2"})
	assert.Assert(t, ifaces[0].RxBytesPerSec == nil)
	assert.Equal(t, ifaces[0].CapturedAt, int64(1714564800))
}

func TestNetwork_Rates(t *testing.T) {
	src := &fakeSource{
		counters: [][]model.NetCounters{
			{{Name: "eth0", BytesRecv: 1000, BytesSent: 1000}},
			{{Name: "eth0", BytesRecv: 2000, BytesSent: 1500}, {Name: "wg0"}},
		},
	}
	c := newComposer(src)
	ifaces := c.Network(context.Background(), true)
	assert.Equal(t, len(ifaces), 2)

	// Window is 10ms, so deltas scale by 100.
	assert.Assert(t, approx(*ifaces[0].RxBytesPerSec, 100000), "rx %v", *ifaces[0].RxBytesPerSec)
	assert.Assert(t, approx(*ifaces[0].TxBytesPerSec, 50000), "tx %v", *ifaces[0].TxBytesPerSec)
	assert.Assert(t, ifaces[1].RxBytesPerSec == nil)
	assert.Equal(t, ifaces[1].Status, model.StatusDisconnected)
}
