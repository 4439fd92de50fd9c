//go:build linux

package probe

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/sysdock/sysdock/internal/model"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	assert.NilError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	assert.NilError(t, os.WriteFile(path, []byte(content), 0o644))
}

func fakeSys(t *testing.T) *linuxPlatform {
	t.Helper()
	return &linuxPlatform{
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		sysRoot: t.TempDir(),
	}
}

func TestBlockCandidates(t *testing.T) {
	assert.DeepEqual(t, blockCandidates("sda1"), []string{"sda1", "sda"})
	assert.DeepEqual(t, blockCandidates("sda"), []string{"sda"})
	assert.DeepEqual(t, blockCandidates("nvme0n1p2"), []string{"nvme0n1p2", "nvme0n1"})
	assert.DeepEqual(t, blockCandidates("mmcblk0p1"), []string{"mmcblk0p1", "mmcblk0"})
}

func TestMedium(t *testing.T) {
	p := fakeSys(t)
	writeFile(t, filepath.Join(p.sysRoot, "block", "sda", "queue", "rotational"), "1\n")
	writeFile(t, filepath.Join(p.sysRoot, "block", "sda", "removable"), "0\n")
	writeFile(t, filepath.Join(p.sysRoot, "block", "nvme0n1", "queue", "rotational"), "0\n")
	writeFile(t, filepath.Join(p.sysRoot, "block", "sdb", "queue", "rotational"), "1\n")
	writeFile(t, filepath.Join(p.sysRoot, "block", "sdb", "removable"), "1\n")

	assert.Equal(t, p.medium("/dev/sda2"), model.MediumHDD)
	assert.Equal(t, p.medium("/dev/nvme0n1p1"), model.MediumSSD)
	assert.Equal(t, p.medium("/dev/sdb1"), model.MediumRemovable)
	assert.Equal(t, p.medium("/dev/vda1"), model.MediumUnknown)
	assert.Equal(t, p.medium("/dev/mapper/root"), model.MediumUnknown)
}

func TestLinkInfo(t *testing.T) {
	p := fakeSys(t)
	net := filepath.Join(p.sysRoot, "class", "net")
	writeFile(t, filepath.Join(net, "eth0", "type"), "1\n")
	writeFile(t, filepath.Join(net, "eth0", "speed"), "1000\n")
	assert.NilError(t, os.MkdirAll(filepath.Join(net, "eth0", "device"), 0o755))
	writeFile(t, filepath.Join(net, "wlan0", "type"), "1\n")
	assert.NilError(t, os.MkdirAll(filepath.Join(net, "wlan0", "wireless"), 0o755))
	writeFile(t, filepath.Join(net, "veth1", "type"), "1\n")
	writeFile(t, filepath.Join(net, "veth1", "speed"), "-1\n")

	typ, speed := p.linkInfo("eth0")
	assert.Equal(t, *typ, "Ethernet")
	assert.Equal(t, *speed, uint64(1000))

	typ, speed = p.linkInfo("wlan0")
	assert.Equal(t, *typ, "Wireless")
	assert.Assert(t, speed == nil)

	typ, speed = p.linkInfo("veth1")
	assert.Equal(t, *typ, "Virtual")
	assert.Assert(t, speed == nil)

	typ, speed = p.linkInfo("missing0")
	assert.Assert(t, typ == nil)
	assert.Assert(t, speed == nil)
}

func TestDRMGPUs(t *testing.T) {
	p := fakeSys(t)
	drm := filepath.Join(p.sysRoot, "class", "drm")
	writeFile(t, filepath.Join(drm, "card0", "device", "vendor"), "0x1002\n")
	writeFile(t, filepath.Join(drm, "card0", "device", "device"), "0x744c\n")
	writeFile(t, filepath.Join(drm, "card0", "device", "mem_info_vram_total"), "25753026560\n")
	writeFile(t, filepath.Join(drm, "card0", "device", "gpu_busy_percent"), "7\n")
	writeFile(t, filepath.Join(drm, "card0-DP-1", "status"), "connected\n")
	assert.NilError(t, os.MkdirAll(filepath.Join(drm, "renderD128"), 0o755))

	gpus := p.drmGPUs()
	assert.Equal(t, len(gpus), 1)
	assert.Equal(t, gpus[0].Name, "AMD GPU 0x744c")
	assert.Equal(t, gpus[0].Vendor, "AMD")
	assert.Equal(t, *gpus[0].MemoryBytes, uint64(25753026560))
	assert.Equal(t, *gpus[0].Utilization, 7.0)
	assert.Assert(t, gpus[0].MemoryUsed == nil)
	assert.Assert(t, gpus[0].Driver == nil)
}

func TestParseLinkSpeed(t *testing.T) {
	assert.Equal(t, *ParseLinkSpeed("10000\n"), uint64(10000))
	assert.Assert(t, ParseLinkSpeed("-1") == nil)
	assert.Assert(t, ParseLinkSpeed("") == nil)
}

func TestIsCardDevice(t *testing.T) {
	assert.Assert(t, isCardDevice("card0"))
	assert.Assert(t, isCardDevice("card12"))
	assert.Assert(t, !isCardDevice("card"))
	assert.Assert(t, !isCardDevice("card0-HDMI-A-1"))
	assert.Assert(t, !isCardDevice("renderD128"))
}
