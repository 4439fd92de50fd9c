// Package snapshot composes probe readings into immutable snapshots.
package snapshot

import (
	"context"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sysdock/sysdock/internal/model"
	"github.com/sysdock/sysdock/internal/netmatch"
	"github.com/sysdock/sysdock/internal/probe"
)

// DefaultWindow separates the two CPU (and network) readings.
const DefaultWindow = 100 * time.Millisecond

// Composer turns a probe.Source into snapshots. It holds no per-call state
// and is safe for concurrent use.
type Composer struct {
	src    probe.Source
	window time.Duration
	log    *slog.Logger
	now    func() time.Time
}

// New returns a Composer reading from src. A non-positive window uses
// DefaultWindow.
func New(src probe.Source, window time.Duration, log *slog.Logger) *Composer {
	if window <= 0 {
		window = DefaultWindow
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Composer{src: src, window: window, log: log.With("component", "snapshot"), now: time.Now}
}

// Compose builds a full snapshot. It blocks for about one window while the
// CPU is double-sampled; the other families are probed meanwhile.
func (c *Composer) Compose(ctx context.Context) model.Snapshot {
	snap := model.Snapshot{Timestamp: c.now()}

	var g errgroup.Group
	var usage float64
	g.Go(func() error {
		usage = c.cpuUsage(ctx)
		return nil
	})
	g.Go(func() error {
		snap.CPU = c.src.CPUInfo(ctx)
		return nil
	})
	g.Go(func() error {
		snap.Host = c.src.Host(ctx)
		return nil
	})
	g.Go(func() error {
		snap.Memory = c.src.Memory(ctx)
		return nil
	})
	g.Go(func() error {
		snap.Disks = nonNil(c.src.Disks(ctx))
		return nil
	})
	g.Go(func() error {
		snap.GPUs = nonNil(c.src.GPUs(ctx))
		return nil
	})
	_ = g.Wait()

	snap.CPU.Usage = usage
	return snap
}

// LogRow builds one sampler row: CPU, memory and aggregate disk only.
func (c *Composer) LogRow(ctx context.Context) model.LogRow {
	var g errgroup.Group
	var (
		usage float64
		mem   model.Memory
		disks []model.Disk
	)
	g.Go(func() error {
		usage = c.cpuUsage(ctx)
		return nil
	})
	g.Go(func() error {
		mem = c.src.Memory(ctx)
		return nil
	})
	g.Go(func() error {
		disks = c.src.Disks(ctx)
		return nil
	})
	_ = g.Wait()

	used, total := model.DiskTotals(disks)
	return model.LogRow{
		Timestamp:   c.now().Format(time.RFC3339),
		CPUUsage:    usage,
		MemoryUsed:  mem.Used,
		MemoryTotal: mem.Total,
		DiskUsed:    used,
		DiskTotal:   total,
	}
}

// Network returns the reconciled interface list. With rates set, counters
// are read twice one window apart and per-second rates are filled in.
func (c *Composer) Network(ctx context.Context, rates bool) []model.NetworkInterface {
	var first map[string]model.NetCounters
	if rates {
		first = byName(c.src.NetCounters(ctx))
		if !c.sleep(ctx) {
			rates = false
		}
	}
	counters := c.src.NetCounters(ctx)
	addrs := c.src.NetAddrs(ctx)
	ifaces := netmatch.Reconcile(counters, addrs, c.now().Unix())

	if rates {
		secs := c.window.Seconds()
		for i := range ifaces {
			prev, ok := first[ifaces[i].Name]
			if !ok {
				continue
			}
			ifaces[i].RxBytesPerSec = model.Ptr(rate(prev.BytesRecv, ifaces[i].BytesReceived, secs))
			ifaces[i].TxBytesPerSec = model.Ptr(rate(prev.BytesSent, ifaces[i].BytesSent, secs))
		}
	}
	return ifaces
}

// cpuUsage reports busy percent over one window.
func (c *Composer) cpuUsage(ctx context.Context) float64 {
	before, ok := c.src.CPUTimes(ctx)
	if !ok || !c.sleep(ctx) {
		return 0
	}
	after, ok := c.src.CPUTimes(ctx)
	if !ok {
		return 0
	}
	return Usage(before, after)
}

// Usage derives busy percent from two cumulative readings, clamped to
// [0, 100]. Zero when no time elapsed or counters went backwards.
func Usage(before, after probe.Times) float64 {
	dt := after.Total - before.Total
	if dt <= 0 {
		return 0
	}
	pct := (after.Busy - before.Busy) / dt * 100
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}

func (c *Composer) sleep(ctx context.Context) bool {
	t := time.NewTimer(c.window)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func rate(before, after uint64, secs float64) float64 {
	if after < before || secs <= 0 {
		return 0
	}
	return float64(after-before) / secs
}

func byName(cs []model.NetCounters) map[string]model.NetCounters {
	m := make(map[string]model.NetCounters, len(cs))
	for _, c := range cs {
		m[c.Name] = c
	}
	return m
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
