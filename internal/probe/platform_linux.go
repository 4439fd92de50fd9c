//go:build linux

package probe

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sysdock/sysdock/internal/model"
)

// linuxPlatform reads sysfs and asks nvidia-smi about NVIDIA cards.
type linuxPlatform struct {
	log     *slog.Logger
	timeout time.Duration
	sysRoot string
}

func newPlatform(log *slog.Logger, timeout time.Duration) platform {
	return &linuxPlatform{log: log, timeout: timeout, sysRoot: "/sys"}
}

func (p *linuxPlatform) diskMedia(context.Context) func(device, mount string) string {
	return func(device, _ string) string {
		return p.medium(device)
	}
}

func (p *linuxPlatform) medium(device string) string {
	name := filepath.Base(device)
	if strings.HasPrefix(device, "/dev/mapper/") || name == "" {
		return model.MediumUnknown
	}
	for _, dev := range blockCandidates(name) {
		base := filepath.Join(p.sysRoot, "block", dev)
		rot, err := os.ReadFile(filepath.Join(base, "queue", "rotational"))
		if err != nil {
			continue
		}
		if rem, err := os.ReadFile(filepath.Join(base, "removable")); err == nil && strings.TrimSpace(string(rem)) == "1" {
			return model.MediumRemovable
		}
		return MediumFromRotational(string(rot))
	}
	return model.MediumUnknown
}

// blockCandidates returns the device itself followed by its likely parent
// disk: sda1 -> sda, nvme0n1p2 -> nvme0n1, mmcblk0p1 -> mmcblk0.
func blockCandidates(name string) []string {
	out := []string{name}
	trimmed := strings.TrimRight(name, "0123456789")
	if trimmed == name || trimmed == "" {
		return out
	}
	if strings.HasSuffix(trimmed, "p") && (strings.HasPrefix(name, "nvme") || strings.HasPrefix(name, "mmcblk")) {
		return append(out, strings.TrimSuffix(trimmed, "p"))
	}
	return append(out, trimmed)
}

// MediumFromRotational maps the content of queue/rotational to a medium.
func MediumFromRotational(v string) string {
	switch strings.TrimSpace(v) {
	case "0":
		return model.MediumSSD
	case "1":
		return model.MediumHDD
	default:
		return model.MediumUnknown
	}
}

func (p *linuxPlatform) linkInfo(name string) (*string, *uint64) {
	base := filepath.Join(p.sysRoot, "class", "net", name)
	var linkType *string
	switch {
	case exists(filepath.Join(base, "wireless")):
		linkType = model.Ptr("Wireless")
	case exists(filepath.Join(base, "bridge")):
		linkType = model.Ptr("Bridge")
	default:
		if b, err := os.ReadFile(filepath.Join(base, "type")); err == nil {
			linkType = arpHardwareType(strings.TrimSpace(string(b)), exists(filepath.Join(base, "device")))
		}
	}
	var speed *uint64
	if b, err := os.ReadFile(filepath.Join(base, "speed")); err == nil {
		speed = ParseLinkSpeed(string(b))
	}
	return linkType, speed
}

// arpHardwareType maps ARPHRD_* values from if_arp.h.
func arpHardwareType(v string, physical bool) *string {
	switch v {
	case "1":
		if !physical {
			return model.Ptr("Virtual")
		}
		return model.Ptr("Ethernet")
	case "772":
		return model.Ptr("Loopback")
	case "65534":
		return model.Ptr("Tunnel")
	case "768", "769", "776", "778":
		return model.Ptr("Tunnel")
	default:
		return nil
	}
}

// ParseLinkSpeed reads /sys/class/net/<if>/speed. Down or virtual links
// report -1 or fail the read; both are nil.
func ParseLinkSpeed(v string) *uint64 {
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || n <= 0 {
		return nil
	}
	return model.Ptr(uint64(n))
}

func (p *linuxPlatform) gpus(ctx context.Context) []model.GPU {
	out, err := RunCommand(ctx, p.timeout, "nvidia-smi", nvidiaQuery...)
	if err == nil {
		if gpus := ParseNvidiaSMI(out); len(gpus) > 0 {
			return gpus
		}
	} else {
		p.log.Debug("nvidia-smi unavailable", "err", err)
	}
	return p.drmGPUs()
}

// drmGPUs enumerates /sys/class/drm/cardN. Only amdgpu exposes VRAM and
// busy percent through sysfs; other drivers get a name and vendor.
func (p *linuxPlatform) drmGPUs() []model.GPU {
	entries, err := os.ReadDir(filepath.Join(p.sysRoot, "class", "drm"))
	if err != nil {
		return nil
	}
	var cards []string
	for _, e := range entries {
		if isCardDevice(e.Name()) {
			cards = append(cards, e.Name())
		}
	}
	sort.Strings(cards)

	var gpus []model.GPU
	for _, card := range cards {
		dev := filepath.Join(p.sysRoot, "class", "drm", card, "device")
		vendor := PCIVendorName(readTrim(filepath.Join(dev, "vendor")))
		device := readTrim(filepath.Join(dev, "device"))
		if vendor == "" && device == "" {
			continue
		}
		name := strings.TrimSpace(vendor + " GPU " + device)
		g := model.GPU{Name: name, Vendor: vendor}
		if v, ok := readUint(filepath.Join(dev, "mem_info_vram_total")); ok {
			g.MemoryBytes = model.Ptr(v)
		}
		if v, ok := readUint(filepath.Join(dev, "mem_info_vram_used")); ok {
			g.MemoryUsed = model.Ptr(v)
		}
		if v, ok := readUint(filepath.Join(dev, "gpu_busy_percent")); ok {
			g.Utilization = model.Ptr(float64(v))
		}
		if driver, err := os.Readlink(filepath.Join(dev, "driver")); err == nil {
			g.Driver = model.Ptr(filepath.Base(driver))
		}
		gpus = append(gpus, g)
	}
	return gpus
}

// isCardDevice accepts card0, card1, ... but not connectors (card0-DP-1)
// or render nodes.
func isCardDevice(name string) bool {
	suffix, ok := strings.CutPrefix(name, "card")
	if !ok || suffix == "" {
		return false
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func readTrim(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func readUint(path string) (uint64, bool) {
	s := readTrim(path)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 10, 64)
	return v, err == nil
}
