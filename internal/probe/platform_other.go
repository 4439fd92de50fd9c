//go:build !linux && !windows && !darwin

package probe

import (
	"context"
	"log/slog"
	"time"

	"github.com/sysdock/sysdock/internal/model"
)

// otherPlatform covers the BSDs and everything else gopsutil builds on.
type otherPlatform struct{}

func newPlatform(*slog.Logger, time.Duration) platform { return otherPlatform{} }

func (otherPlatform) diskMedia(context.Context) func(device, mount string) string {
	return func(string, string) string { return model.MediumUnknown }
}

func (otherPlatform) linkInfo(string) (*string, *uint64) { return nil, nil }

func (otherPlatform) gpus(context.Context) []model.GPU { return nil }
