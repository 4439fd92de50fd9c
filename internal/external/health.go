package external

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Health is the SMART overall-health verdict.
type Health string

const (
	HealthPassed  Health = "PASSED"
	HealthFailed  Health = "FAILED"
	HealthUnknown Health = "Unknown"
)

// DiskHealth asks smartctl for the overall health of device.
func (r *Runner) DiskHealth(ctx context.Context, device string) (Health, error) {
	if strings.TrimSpace(device) == "" {
		return HealthUnknown, errors.New("disk health: empty device")
	}
	out, err := r.run(ctx, r.timeout, "smartctl", "-H", device)
	if errors.Is(err, ErrTimeout) {
		return HealthUnknown, fmt.Errorf("disk health %s: %w", device, err)
	}
	// smartctl encodes findings in its exit status, so a non-zero exit
	// with a readable verdict is still an answer.
	h := ParseSmartctl(out)
	if h == HealthUnknown && err != nil {
		return h, fmt.Errorf("disk health %s: %w", device, err)
	}
	r.log.Debug("disk health", "device", device, "health", h)
	return h, nil
}

// ParseSmartctl extracts the verdict from `smartctl -H` output. ATA drives
// print "overall-health self-assessment test result: PASSED"; SCSI drives
// print "SMART Health Status: OK".
func ParseSmartctl(out string) Health {
	for _, line := range strings.Split(out, "\n") {
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(key)
		if !strings.Contains(key, "overall-health") && !strings.Contains(key, "health status") {
			continue
		}
		switch v := strings.ToUpper(strings.TrimSpace(val)); {
		case strings.HasPrefix(v, "PASSED"), v == "OK":
			return HealthPassed
		case strings.HasPrefix(v, "FAILED"):
			return HealthFailed
		}
	}
	return HealthUnknown
}
