// Package probe reads raw host state through gopsutil and per-OS
// facilities. Nothing here returns an error to the caller: a failed or
// unsupported probe yields zero values, nil optionals or empty slices, and
// the failure is logged at debug level.
package probe

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"

	"github.com/sysdock/sysdock/internal/model"
)

// Times is a cumulative CPU time reading. Usage is derived from the delta
// of two readings.
type Times struct {
	Busy  float64
	Total float64
}

// Source is the set of per-family probes the snapshot composer consumes.
type Source interface {
	Host(ctx context.Context) model.Host
	// CPUInfo returns static processor details and load average. Usage is
	// left at zero; it needs two CPUTimes readings.
	CPUInfo(ctx context.Context) model.CPU
	CPUTimes(ctx context.Context) (Times, bool)
	Memory(ctx context.Context) model.Memory
	Disks(ctx context.Context) []model.Disk
	NetCounters(ctx context.Context) []model.NetCounters
	NetAddrs(ctx context.Context) []model.NetAddrs
	GPUs(ctx context.Context) []model.GPU
}

// platform holds the OS-specific parts. Exactly one implementation is
// compiled in, chosen by build tags.
type platform interface {
	// diskMedia returns a classifier valid for one Disks call.
	diskMedia(ctx context.Context) func(device, mount string) string
	linkInfo(name string) (linkType *string, speedMbps *uint64)
	gpus(ctx context.Context) []model.GPU
}

// Options tune a System.
type Options struct {
	// CommandTimeout bounds every external tool a probe spawns.
	CommandTimeout time.Duration
	// DisableGPU skips GPU enumeration entirely.
	DisableGPU bool
}

// System is the production Source.
type System struct {
	log  *slog.Logger
	opts Options
	plat platform
}

var _ Source = (*System)(nil)

// New returns a System for the running OS.
func New(log *slog.Logger, opts Options) *System {
	if log == nil {
		log = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = DefaultCommandTimeout
	}
	s := &System{log: log.With("component", "probe"), opts: opts}
	s.plat = newPlatform(s.log, opts.CommandTimeout)
	return s
}

func (s *System) Host(ctx context.Context) model.Host {
	h := model.Host{OS: runtime.GOOS, Arch: runtime.GOARCH}
	if name, err := os.Hostname(); err == nil {
		h.Hostname = name
	}
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		s.log.Debug("host info unavailable", "err", err)
		return h
	}
	if info.Hostname != "" {
		h.Hostname = info.Hostname
	}
	h.Platform = strings.TrimSpace(info.Platform + " " + info.PlatformVersion)
	h.Kernel = info.KernelVersion
	if info.KernelArch != "" {
		h.Arch = info.KernelArch
	}
	h.Uptime = time.Duration(info.Uptime) * time.Second
	return h
}

func (s *System) CPUInfo(ctx context.Context) model.CPU {
	var c model.CPU
	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		c.Name = strings.TrimSpace(infos[0].ModelName)
		if infos[0].Mhz > 0 {
			c.FrequencyMHz = model.Ptr(infos[0].Mhz)
		}
	} else if err != nil {
		s.log.Debug("cpu info unavailable", "err", err)
	}
	if n, err := cpu.CountsWithContext(ctx, false); err == nil {
		c.Cores = n
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil && n > 0 {
		c.Threads = model.Ptr(n)
	}
	if runtime.GOOS != "windows" {
		if avg, err := load.AvgWithContext(ctx); err == nil && avg != nil {
			c.Load1, c.Load5, c.Load15 = avg.Load1, avg.Load5, avg.Load15
		}
	}
	// Some sensor drivers fail individually; partial results still count.
	temps, err := host.SensorsTemperaturesWithContext(ctx)
	if err != nil && len(temps) == 0 {
		s.log.Debug("temperature sensors unavailable", "err", err)
	}
	c.TemperatureC = CPUTemperature(temps)
	return c
}

func (s *System) CPUTimes(ctx context.Context) (Times, bool) {
	times, err := cpu.TimesWithContext(ctx, false)
	if err != nil || len(times) == 0 {
		s.log.Debug("cpu times unavailable", "err", err)
		return Times{}, false
	}
	t := times[0]
	total := t.Total()
	return Times{Busy: total - t.Idle - t.Iowait, Total: total}, true
}

func (s *System) Memory(ctx context.Context) model.Memory {
	var m model.Memory
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		m.Total, m.Used, m.Available = vm.Total, vm.Used, vm.Available
		m.Percent = model.Percent(vm.Used, vm.Total)
	} else {
		s.log.Debug("virtual memory unavailable", "err", err)
	}
	if sw, err := mem.SwapMemoryWithContext(ctx); err == nil {
		m.SwapTotal, m.SwapUsed = sw.Total, sw.Used
		m.SwapPercent = model.Percent(sw.Used, sw.Total)
	}
	return m
}

func (s *System) Disks(ctx context.Context) []model.Disk {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		s.log.Debug("disk partitions unavailable", "err", err)
		return []model.Disk{}
	}
	medium := s.plat.diskMedia(ctx)
	seen := make(map[string]bool, len(parts))
	disks := make([]model.Disk, 0, len(parts))
	for _, p := range parts {
		if seen[p.Mountpoint] || skipPartition(p) {
			continue
		}
		seen[p.Mountpoint] = true
		usage, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil {
			s.log.Debug("disk usage unavailable", "mount", p.Mountpoint, "err", err)
			continue
		}
		disks = append(disks, model.NewDisk(p.Device, p.Mountpoint, p.Fstype,
			usage.Total, usage.Free, medium(p.Device, p.Mountpoint)))
	}
	return disks
}

func skipPartition(p disk.PartitionStat) bool {
	switch p.Fstype {
	case "squashfs", "overlay", "tmpfs", "devtmpfs":
		return true
	}
	return strings.HasPrefix(p.Device, "/dev/loop")
}

func (s *System) NetCounters(ctx context.Context) []model.NetCounters {
	stats, err := net.IOCountersWithContext(ctx, true)
	if err != nil {
		s.log.Debug("net counters unavailable", "err", err)
		return nil
	}
	out := make([]model.NetCounters, 0, len(stats))
	for _, st := range stats {
		out = append(out, model.NetCounters{
			Name:        st.Name,
			BytesRecv:   st.BytesRecv,
			BytesSent:   st.BytesSent,
			PacketsRecv: st.PacketsRecv,
			PacketsSent: st.PacketsSent,
			ErrIn:       st.Errin,
			ErrOut:      st.Errout,
		})
	}
	return out
}

func (s *System) NetAddrs(ctx context.Context) []model.NetAddrs {
	ifaces, err := net.InterfacesWithContext(ctx)
	if err != nil {
		s.log.Debug("net interfaces unavailable", "err", err)
		return nil
	}
	out := make([]model.NetAddrs, 0, len(ifaces))
	for _, ifc := range ifaces {
		a := model.NetAddrs{Name: ifc.Name}
		for _, addr := range ifc.Addrs {
			a.Addrs = append(a.Addrs, addr.Addr)
		}
		if ifc.HardwareAddr != "" {
			a.MAC = model.Ptr(ifc.HardwareAddr)
		}
		a.LinkType, a.LinkSpeedMbps = s.plat.linkInfo(ifc.Name)
		out = append(out, a)
	}
	return out
}

func (s *System) GPUs(ctx context.Context) []model.GPU {
	if s.opts.DisableGPU {
		return []model.GPU{}
	}
	gpus := s.plat.gpus(ctx)
	if gpus == nil {
		return []model.GPU{}
	}
	return gpus
}

// CPUTemperature picks the hottest CPU package sensor. Nil when none of
// the sensors look like a CPU.
func CPUTemperature(temps []host.TemperatureStat) *float64 {
	var best *float64
	for _, t := range temps {
		key := strings.ToLower(t.SensorKey)
		if !isCPUSensor(key) || t.Temperature <= 0 {
			continue
		}
		if best == nil || t.Temperature > *best {
			best = model.Ptr(t.Temperature)
		}
	}
	return best
}

func isCPUSensor(key string) bool {
	for _, k := range []string{"coretemp", "k10temp", "zenpower", "cpu", "package", "tctl", "tdie"} {
		if strings.Contains(key, k) {
			return true
		}
	}
	return false
}
