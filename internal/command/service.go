// Package command is the single entry point presentation layers call. It
// owns the one sampler of the process and delegates everything else.
package command

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/sysdock/sysdock/internal/config"
	"github.com/sysdock/sysdock/internal/external"
	"github.com/sysdock/sysdock/internal/model"
	"github.com/sysdock/sysdock/internal/probe"
	"github.com/sysdock/sysdock/internal/process"
	"github.com/sysdock/sysdock/internal/sampler"
	"github.com/sysdock/sysdock/internal/snapshot"
)

// Snapshots composes host readings.
type Snapshots interface {
	Compose(ctx context.Context) model.Snapshot
	LogRow(ctx context.Context) model.LogRow
	Network(ctx context.Context, rates bool) []model.NetworkInterface
}

// Processes lists and terminates processes.
type Processes interface {
	List(ctx context.Context) []model.Process
	End(ctx context.Context, pid int32) error
}

// Tools runs single-shot external utilities.
type Tools interface {
	DiskHealth(ctx context.Context, device string) (external.Health, error)
	SystemLogs(ctx context.Context, limit int) ([]model.SystemLogEntry, error)
	Latency(ctx context.Context, host string) (external.PingResult, error)
	OpenPath(ctx context.Context, path string) error
}

// Deps are the collaborators of a Service.
type Deps struct {
	Snapshots  Snapshots
	Processes  Processes
	Tools      Tools
	MaxLogRows int
	Log        *slog.Logger
}

// Service implements every command. Create exactly one per process.
type Service struct {
	log     *slog.Logger
	snaps   Snapshots
	procs   Processes
	tools   Tools
	sampler *sampler.Sampler
}

// New wires the production collaborators from cfg.
func New(cfg config.Config, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	src := probe.New(log, probe.Options{
		CommandTimeout: cfg.CommandTimeout,
		DisableGPU:     !cfg.EnableGPU,
	})
	return NewWithDeps(Deps{
		Snapshots:  snapshot.New(src, cfg.CPUWindow, log),
		Processes:  process.NewLister(log, nil),
		Tools:      external.New(log, external.Options{Timeout: cfg.CommandTimeout, PingCount: cfg.PingCount}),
		MaxLogRows: cfg.MaxLogRows,
		Log:        log,
	})
}

// NewWithDeps builds a Service over caller-supplied collaborators.
func NewWithDeps(d Deps) *Service {
	log := d.Log
	if log == nil {
		log = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Service{
		log:     log.With("component", "command"),
		snaps:   d.Snapshots,
		procs:   d.Processes,
		tools:   d.Tools,
		sampler: sampler.New(d.Snapshots, log, sampler.WithMaxRows(d.MaxLogRows)),
	}
}

// SystemOverview returns a full snapshot. It always succeeds; missing data
// shows up as zeros and nil optionals.
func (s *Service) SystemOverview(ctx context.Context) model.Snapshot {
	return s.snaps.Compose(ctx)
}

// ListProcesses returns every running process in enumeration order.
func (s *Service) ListProcesses(ctx context.Context) []model.Process {
	return s.procs.List(ctx)
}

// NetworkInfo returns the reconciled interface list.
func (s *Service) NetworkInfo(ctx context.Context) []model.NetworkInterface {
	return s.snaps.Network(ctx, false)
}

// NetworkRates is NetworkInfo with per-second throughput filled in.
func (s *Service) NetworkRates(ctx context.Context) []model.NetworkInterface {
	return s.snaps.Network(ctx, true)
}

// EndProcess terminates pid. An already gone pid is not an error.
func (s *Service) EndProcess(ctx context.Context, pid int32) error {
	return s.procs.End(ctx, pid)
}

// StartSampling begins logging one row every seconds seconds.
func (s *Service) StartSampling(seconds int) error {
	return s.StartSamplingEvery(time.Duration(seconds) * time.Second)
}

// StartSamplingEvery is StartSampling with sub-second resolution.
func (s *Service) StartSamplingEvery(interval time.Duration) error {
	if err := s.sampler.Start(interval); err != nil {
		return fmt.Errorf("start sampling: %w", err)
	}
	return nil
}

// StopSampling returns at once; the loop may still finish one iteration.
func (s *Service) StopSampling() {
	s.sampler.Stop()
}

// SamplingLog returns a copy of the recorded rows.
func (s *Service) SamplingLog() []model.LogRow {
	return s.sampler.Log()
}

// ClearSamplingLog empties the log; it fails while sampling is active.
func (s *Service) ClearSamplingLog() error {
	if err := s.sampler.Clear(); err != nil {
		return fmt.Errorf("clear sampling log: %w", err)
	}
	return nil
}

// SamplingActive reports whether the sampler loop is running.
func (s *Service) SamplingActive() bool {
	return s.sampler.Active()
}

// SamplingInterval returns the interval of the current or last run. Zero
// before the first start.
func (s *Service) SamplingInterval() time.Duration {
	return s.sampler.Interval()
}

// ExportSamplingLog writes the current log to w as CSV.
func (s *Service) ExportSamplingLog(w io.Writer) error {
	return sampler.WriteCSV(w, s.sampler.Log())
}

// Shutdown stops sampling and waits for the loop to exit or ctx to end.
func (s *Service) Shutdown(ctx context.Context) error {
	s.sampler.Stop()
	done := make(chan struct{})
	go func() {
		s.sampler.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DiskHealth reports the SMART verdict for device.
func (s *Service) DiskHealth(ctx context.Context, device string) (external.Health, error) {
	return s.tools.DiskHealth(ctx, device)
}

// SystemLogs returns recent OS log entries.
func (s *Service) SystemLogs(ctx context.Context, limit int) ([]model.SystemLogEntry, error) {
	return s.tools.SystemLogs(ctx, limit)
}

// Latency pings host.
func (s *Service) Latency(ctx context.Context, host string) (external.PingResult, error) {
	return s.tools.Latency(ctx, host)
}

// OpenPath opens path with the desktop's default handler.
func (s *Service) OpenPath(ctx context.Context, path string) error {
	return s.tools.OpenPath(ctx, path)
}
