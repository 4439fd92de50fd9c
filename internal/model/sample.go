package model

import "time"

// Interface reachability values.
const (
	StatusConnected    = "Connected"
	StatusDisconnected = "Disconnected"
)

// Storage medium classifications.
const (
	MediumSSD       = "SSD"
	MediumHDD       = "HDD"
	MediumRemovable = "Removable"
	MediumUnknown   = "Unknown"
)

// CPU aggregates instantaneous CPU usage and static processor details.
type CPU struct {
	Name         string   `json:"name"`
	Usage        float64  `json:"usage"` // percent 0-100, delta over the sample window
	Cores        int      `json:"cores"`
	Threads      *int     `json:"threads,omitempty"`
	FrequencyMHz *float64 `json:"frequency_mhz,omitempty"`
	TemperatureC *float64 `json:"temperature_c,omitempty"`
	Load1        float64  `json:"load_1"`
	Load5        float64  `json:"load_5"`
	Load15       float64  `json:"load_15"`
}

// Memory captures RAM and swap usage in bytes.
type Memory struct {
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	Available   uint64  `json:"available"`
	Percent     float64 `json:"percentage"`
	SwapTotal   uint64  `json:"swap_total"`
	SwapUsed    uint64  `json:"swap_used"`
	SwapPercent float64 `json:"swap_percentage"`
}

// Disk is one mounted filesystem. Build it with NewDisk so the
// used/available/total relation holds.
type Disk struct {
	Name       string  `json:"name"`
	MountPoint string  `json:"mount_point"`
	Filesystem string  `json:"filesystem,omitempty"`
	Total      uint64  `json:"total"`
	Used       uint64  `json:"used"`
	Available  uint64  `json:"available"`
	Percent    float64 `json:"percentage"`
	Medium     string  `json:"medium"`
}

// GPU holds a single display adapter. Every measurement is optional.
type GPU struct {
	Name         string   `json:"name"`
	Vendor       string   `json:"vendor,omitempty"`
	MemoryBytes  *uint64  `json:"adapter_ram,omitempty"`
	MemoryUsed   *uint64  `json:"memory_used,omitempty"`
	Driver       *string  `json:"driver_version,omitempty"`
	Utilization  *float64 `json:"utilization,omitempty"`
	TemperatureC *float64 `json:"temperature_c,omitempty"`
}

// NetCounters is one entry of the traffic-counter enumeration. It is the
// source of truth for interface identity.
type NetCounters struct {
	Name        string
	BytesRecv   uint64
	BytesSent   uint64
	PacketsRecv uint64
	PacketsSent uint64
	ErrIn       uint64
	ErrOut      uint64
}

// NetAddrs is one entry of the address enumeration: IPs, MAC and link data
// under the platform's own naming.
type NetAddrs struct {
	Name          string
	Addrs         []string
	MAC           *string
	LinkType      *string
	LinkSpeedMbps *uint64
}

// NetworkInterface is the reconciled view of one interface.
type NetworkInterface struct {
	Name            string   `json:"name"`
	Status          string   `json:"status"`
	BytesReceived   uint64   `json:"bytes_received"`
	BytesSent       uint64   `json:"bytes_transmitted"`
	PacketsReceived uint64   `json:"packets_received"`
	PacketsSent     uint64   `json:"packets_transmitted"`
	ErrorsIn        uint64   `json:"errors_in"`
	ErrorsOut       uint64   `json:"errors_out"`
	IPAddresses     []string `json:"ip_addresses"`
	MAC             *string  `json:"mac_address,omitempty"`
	LinkType        *string  `json:"interface_type,omitempty"`
	LinkSpeedMbps   *uint64  `json:"link_speed_mbps,omitempty"`
	RxBytesPerSec   *float64 `json:"rx_bytes_per_sec,omitempty"`
	TxBytesPerSec   *float64 `json:"tx_bytes_per_sec,omitempty"`
	CapturedAt      int64    `json:"captured_at"`
}

// Host identifies the machine.
type Host struct {
	Hostname string        `json:"hostname"`
	OS       string        `json:"os"`
	Platform string        `json:"platform"`
	Kernel   string        `json:"kernel"`
	Arch     string        `json:"arch"`
	Uptime   time.Duration `json:"uptime"`
}

// Snapshot is one point-in-time overview reading. Network interfaces are
// not part of it; the network commands serve them on their own.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Host      Host      `json:"host"`
	CPU       CPU       `json:"cpu"`
	Memory    Memory    `json:"memory"`
	Disks     []Disk    `json:"disks"`
	GPUs      []GPU     `json:"gpus"`
}

// Process is a single entry of a process listing. PIDs may be reused by the
// OS between listings; records carry no identity beyond the PID.
type Process struct {
	PID      int32         `json:"pid"`
	Name     string        `json:"name"`
	Exe      *string       `json:"exe,omitempty"`
	CPU      float64       `json:"cpu"`
	MemoryMB float64       `json:"memory"`
	RunTime  time.Duration `json:"run_time"`
	Icon     *string       `json:"icon,omitempty"`
}

// LogRow is one sampler tick.
type LogRow struct {
	Timestamp   string  `json:"timestamp"`
	CPUUsage    float64 `json:"cpu_usage"`
	MemoryUsed  uint64  `json:"memory_usage"`
	MemoryTotal uint64  `json:"memory_total"`
	DiskUsed    uint64  `json:"disk_usage"`
	DiskTotal   uint64  `json:"disk_total"`
}

// SystemLogEntry is one line of the OS event log.
type SystemLogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Source    string `json:"source"`
	Message   string `json:"message"`
}
