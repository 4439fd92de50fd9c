package model

// Percent returns used/total*100, or 0 when total is 0.
func Percent(used, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(used) * 100 / float64(total)
}

// NewDisk builds a Disk from total and available bytes. Available is
// clamped to total, so Used+Available == Total and Used never underflows.
func NewDisk(name, mount, fs string, total, available uint64, medium string) Disk {
	if available > total {
		available = total
	}
	used := total - available
	if medium == "" {
		medium = MediumUnknown
	}
	return Disk{
		Name:       name,
		MountPoint: mount,
		Filesystem: fs,
		Total:      total,
		Used:       used,
		Available:  available,
		Percent:    Percent(used, total),
		Medium:     medium,
	}
}

// DiskTotals sums used and total bytes across disks.
func DiskTotals(disks []Disk) (used, total uint64) {
	for _, d := range disks {
		used += d.Used
		total += d.Total
	}
	return used, total
}

// Ptr returns a pointer to v. Used for optional record fields.
func Ptr[T any](v T) *T { return &v }
