//go:build darwin

package probe

import (
	"context"
	"log/slog"
	"time"

	"github.com/sysdock/sysdock/internal/model"
)

// darwinPlatform parses system_profiler and diskutil output.
type darwinPlatform struct {
	log     *slog.Logger
	timeout time.Duration
}

func newPlatform(log *slog.Logger, timeout time.Duration) platform {
	return &darwinPlatform{log: log, timeout: timeout}
}

func (p *darwinPlatform) gpus(ctx context.Context) []model.GPU {
	out, err := RunCommand(ctx, p.timeout, "system_profiler", "SPDisplaysDataType", "-json")
	if err != nil {
		p.log.Debug("system_profiler failed", "err", err)
		return nil
	}
	return ParseSystemProfiler([]byte(out))
}

func (p *darwinPlatform) diskMedia(ctx context.Context) func(device, mount string) string {
	cache := make(map[string]string)
	return func(device, _ string) string {
		if m, ok := cache[device]; ok {
			return m
		}
		m := model.MediumUnknown
		if out, err := RunCommand(ctx, p.timeout, "diskutil", "info", device); err == nil {
			m = ParseDiskutilInfo(out)
		} else {
			p.log.Debug("diskutil failed", "device", device, "err", err)
		}
		cache[device] = m
		return m
	}
}

func (p *darwinPlatform) linkInfo(string) (*string, *uint64) {
	return nil, nil
}
