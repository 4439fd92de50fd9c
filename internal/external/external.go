// Package external wraps the single-shot OS tools sysdock shells out to.
// Every call is bounded by the runner's timeout; a hung tool yields
// ErrTimeout, never a stuck caller.
package external

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/sysdock/sysdock/internal/probe"
)

// ErrTimeout is returned when a tool outlives its budget.
var ErrTimeout = probe.ErrTimeout

// ErrUnsupported is returned on platforms with no tool for the request.
var ErrUnsupported = errors.New("not supported on this platform")

type runFunc func(ctx context.Context, timeout time.Duration, name string, args ...string) (string, error)

// Runner executes external tools.
type Runner struct {
	log       *slog.Logger
	timeout   time.Duration
	pingCount int
	goos      string
	run       runFunc
	ping      pingFunc
}

// Options tune a Runner.
type Options struct {
	Timeout   time.Duration
	PingCount int
}

// New returns a Runner for the running OS.
func New(log *slog.Logger, opts Options) *Runner {
	if log == nil {
		log = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if opts.Timeout <= 0 {
		opts.Timeout = probe.DefaultCommandTimeout
	}
	if opts.PingCount <= 0 {
		opts.PingCount = 3
	}
	return &Runner{
		log:       log.With("component", "external"),
		timeout:   opts.Timeout,
		pingCount: opts.PingCount,
		goos:      runtime.GOOS,
		run:       probe.RunCommand,
		ping:      icmpPing,
	}
}

// OpenPath hands path to the desktop's default handler.
func (r *Runner) OpenPath(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("open path: %w", err)
	}
	var name string
	switch r.goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		name = "xdg-open"
	case "darwin":
		name = "open"
	case "windows":
		name = "explorer"
	default:
		return fmt.Errorf("open path: %w", ErrUnsupported)
	}
	_, err := r.run(ctx, r.timeout, name, path)
	switch {
	case errors.Is(err, ErrTimeout):
		return fmt.Errorf("open path: %w", err)
	case err != nil && r.goos == "windows":
		// explorer exits 1 even when it opened the window.
		r.log.Debug("explorer exit status ignored", "err", err)
		return nil
	case err != nil:
		return fmt.Errorf("open path: %w", err)
	}
	return nil
}
