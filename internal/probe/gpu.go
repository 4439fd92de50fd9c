package probe

import (
	"bufio"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/sysdock/sysdock/internal/model"
)

// nvidiaQuery is the field list handed to nvidia-smi. ParseNvidiaSMI
// expects columns in this order.
var nvidiaQuery = []string{
	"--query-gpu=name,utilization.gpu,memory.used,memory.total,temperature.gpu,driver_version",
	"--format=csv,noheader,nounits",
}

// ParseNvidiaSMI parses nvidia-smi CSV output. Columns reported as
// "[N/A]" or "[Not Supported]" become nil.
func ParseNvidiaSMI(out string) []model.GPU {
	var gpus []model.GPU
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		parts := strings.Split(sc.Text(), ",")
		if len(parts) < 5 {
			continue
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		g := model.GPU{Name: parts[0], Vendor: "NVIDIA"}
		g.Utilization = optFloat(parts[1])
		if used := optFloat(parts[2]); used != nil {
			g.MemoryUsed = model.Ptr(uint64(*used * 1024 * 1024))
		}
		if total := optFloat(parts[3]); total != nil {
			g.MemoryBytes = model.Ptr(uint64(*total * 1024 * 1024))
		}
		g.TemperatureC = optFloat(parts[4])
		if len(parts) > 5 && parts[5] != "" && !strings.HasPrefix(parts[5], "[") {
			g.Driver = model.Ptr(parts[5])
		}
		gpus = append(gpus, g)
	}
	return gpus
}

type systemProfiler struct {
	Displays []struct {
		Name    string `json:"_name"`
		Model   string `json:"sppci_model"`
		Vendor  string `json:"spdisplays_vendor"`
		VRAM    string `json:"spdisplays_vram"`
		VRAMDyn string `json:"spdisplays_vram_shared"`
	} `json:"SPDisplaysDataType"`
}

// ParseSystemProfiler parses `system_profiler SPDisplaysDataType -json`.
func ParseSystemProfiler(out []byte) []model.GPU {
	var sp systemProfiler
	if err := json.Unmarshal(out, &sp); err != nil {
		return nil
	}
	gpus := make([]model.GPU, 0, len(sp.Displays))
	for _, d := range sp.Displays {
		name := d.Model
		if name == "" {
			name = d.Name
		}
		if name == "" {
			continue
		}
		g := model.GPU{Name: name, Vendor: vendorFromProfiler(d.Vendor)}
		vram := d.VRAM
		if vram == "" {
			vram = d.VRAMDyn
		}
		if b, ok := ParseSize(vram); ok {
			g.MemoryBytes = model.Ptr(b)
		}
		gpus = append(gpus, g)
	}
	return gpus
}

func vendorFromProfiler(v string) string {
	v = strings.TrimPrefix(v, "sppci_vendor_")
	if i := strings.IndexByte(v, '('); i > 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}

// ParseSize reads sizes like "1536 MB" or "8 GB" into bytes.
func ParseSize(s string) (uint64, bool) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return 0, false
	}
	n, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || n < 0 {
		return 0, false
	}
	var mult float64
	switch strings.ToUpper(fields[1]) {
	case "KB":
		mult = 1 << 10
	case "MB":
		mult = 1 << 20
	case "GB":
		mult = 1 << 30
	case "TB":
		mult = 1 << 40
	default:
		return 0, false
	}
	return uint64(n * mult), true
}

// PCIVendorName maps a PCI vendor ID like "0x10de" to a vendor name.
func PCIVendorName(id string) string {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(id), "0x")) {
	case "10de":
		return "NVIDIA"
	case "1002":
		return "AMD"
	case "8086":
		return "Intel"
	case "1af4":
		return "Virtio"
	case "15ad":
		return "VMware"
	case "1234":
		return "QEMU"
	default:
		return ""
	}
}

func optFloat(s string) *float64 {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" || strings.HasPrefix(s, "[") {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}
