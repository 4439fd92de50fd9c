//go:build windows

package probe

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/yusufpapurcu/wmi"

	"github.com/sysdock/sysdock/internal/model"
)

const storageNamespace = `root\Microsoft\Windows\Storage`

// wmiQueryFunc decodes the rows of q into dst, a pointer to a slice.
type wmiQueryFunc func(q string, dst interface{}, namespace string) error

func runWMI(q string, dst interface{}, namespace string) error {
	if namespace == "" {
		return wmi.Query(q, dst)
	}
	return wmi.QueryNamespace(q, dst, namespace)
}

// windowsPlatform answers through WMI.
type windowsPlatform struct {
	log     *slog.Logger
	timeout time.Duration
	query   wmiQueryFunc
}

func newPlatform(log *slog.Logger, timeout time.Duration) platform {
	return &windowsPlatform{log: log, timeout: timeout, query: runWMI}
}

type win32VideoController struct {
	Name                 string
	AdapterRAM           *uint32
	DriverVersion        *string
	AdapterCompatibility *string
}

type msftPartition struct {
	DriveLetter uint16
	DiskNumber  uint32
}

type msftPhysicalDisk struct {
	DeviceId  string
	MediaType uint16
	BusType   uint16
}

// wmiRows runs q with the platform timeout. The WMI call itself is not
// cancellable; on timeout it is abandoned along with the slice it fills.
func wmiRows[T any](ctx context.Context, p *windowsPlatform, q, namespace string) ([]T, error) {
	return boundedQuery(ctx, p.timeout, func(dst *[]T) error {
		return p.query(q, dst, namespace)
	})
}

func (p *windowsPlatform) gpus(ctx context.Context) []model.GPU {
	q := "SELECT Name, AdapterRAM, DriverVersion, AdapterCompatibility FROM Win32_VideoController"
	rows, err := wmiRows[win32VideoController](ctx, p, q, "")
	if err != nil {
		p.log.Debug("Win32_VideoController query failed", "err", err)
		return nil
	}
	gpus := make([]model.GPU, 0, len(rows))
	for _, r := range rows {
		g := model.GPU{Name: strings.TrimSpace(r.Name), Driver: r.DriverVersion}
		if r.AdapterRAM != nil && *r.AdapterRAM > 0 {
			g.MemoryBytes = model.Ptr(uint64(*r.AdapterRAM))
		}
		if r.AdapterCompatibility != nil {
			g.Vendor = *r.AdapterCompatibility
		}
		gpus = append(gpus, g)
	}
	return gpus
}

// diskMedia maps drive letters to the physical disk's media type:
// MSFT_PhysicalDisk.MediaType 3 = HDD, 4 = SSD.
func (p *windowsPlatform) diskMedia(ctx context.Context) func(device, mount string) string {
	parts, err := wmiRows[msftPartition](ctx, p, "SELECT DriveLetter, DiskNumber FROM MSFT_Partition", storageNamespace)
	if err != nil {
		p.log.Debug("MSFT_Partition query failed", "err", err)
	}
	disks, err := wmiRows[msftPhysicalDisk](ctx, p, "SELECT DeviceId, MediaType, BusType FROM MSFT_PhysicalDisk", storageNamespace)
	if err != nil {
		p.log.Debug("MSFT_PhysicalDisk query failed", "err", err)
	}
	byNumber := make(map[string]msftPhysicalDisk, len(disks))
	for _, d := range disks {
		byNumber[d.DeviceId] = d
	}
	byLetter := make(map[string]string, len(parts))
	for _, part := range parts {
		if part.DriveLetter == 0 {
			continue
		}
		letter := strings.ToUpper(string(rune(part.DriveLetter)))
		d, ok := byNumber[strconv.FormatUint(uint64(part.DiskNumber), 10)]
		if !ok {
			continue
		}
		byLetter[letter] = windowsMedium(d)
	}
	return func(device, mount string) string {
		letter := strings.ToUpper(strings.TrimSuffix(strings.TrimSuffix(mount, `\`), ":"))
		if m, ok := byLetter[letter]; ok {
			return m
		}
		return model.MediumUnknown
	}
}

func windowsMedium(d msftPhysicalDisk) string {
	// BusType 7 is USB.
	if d.BusType == 7 {
		return model.MediumRemovable
	}
	switch d.MediaType {
	case 3:
		return model.MediumHDD
	case 4:
		return model.MediumSSD
	default:
		return model.MediumUnknown
	}
}

// linkInfo is not resolved on Windows; gopsutil's interface list carries no
// link speed and the adapter names differ from the counters' names.
func (p *windowsPlatform) linkInfo(string) (*string, *uint64) {
	return nil, nil
}
