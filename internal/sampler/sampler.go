// Package sampler runs the background performance logger: one goroutine at
// a time appends a row per interval to an in-memory log that any caller may
// read.
package sampler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/sysdock/sysdock/internal/model"
)

var (
	// ErrAlreadyActive is returned by Start while a loop is running.
	ErrAlreadyActive = errors.New("sampler already active")
	// ErrActive is returned by Clear while a loop is running.
	ErrActive = errors.New("cannot clear log while sampler is active")
	// ErrInvalidInterval is returned by Start for a non-positive interval.
	ErrInvalidInterval = errors.New("sampling interval must be positive")
)

// RowSource produces one log row per tick.
type RowSource interface {
	LogRow(ctx context.Context) model.LogRow
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithMaxRows caps the log; the oldest rows are dropped first. Zero keeps
// everything.
func WithMaxRows(n int) Option {
	return func(s *Sampler) {
		if n > 0 {
			s.maxRows = n
		}
	}
}

// Sampler owns the (active, log) pair. Every read and write of either field
// goes through mu, so start/stop/clear/append are linearizable.
type Sampler struct {
	src     RowSource
	log     *slog.Logger
	maxRows int

	mu       sync.Mutex
	active   bool
	gen      uint64
	interval time.Duration
	rows     []model.LogRow

	wg sync.WaitGroup
}

// New returns an idle Sampler pulling rows from src.
func New(src RowSource, log *slog.Logger, opts ...Option) *Sampler {
	if log == nil {
		log = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	s := &Sampler{src: src, log: log.With("component", "sampler")}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start spawns the sampling loop. It fails with ErrAlreadyActive instead of
// restarting or duplicating a running loop.
func (s *Sampler) Start(interval time.Duration) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return ErrAlreadyActive
	}
	s.active = true
	s.gen++
	s.interval = interval
	s.wg.Add(1)
	go s.run(s.gen, interval)
	s.log.Info("sampling started", "interval", interval)
	return nil
}

// Stop clears the active flag and returns at once. The loop notices on its
// next check, after any in-flight row or sleep has finished; callers must
// not assume it has exited when Stop returns.
func (s *Sampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		s.log.Info("sampling stopped", "rows", len(s.rows))
	}
	s.active = false
}

// Active reports whether a loop is running.
func (s *Sampler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Interval returns the interval of the current or last run.
func (s *Sampler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Log returns a copy of the rows recorded so far.
func (s *Sampler) Log() []model.LogRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.LogRow, len(s.rows))
	copy(out, s.rows)
	return out
}

// Len returns the number of recorded rows.
func (s *Sampler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// Clear empties the log. It refuses while active, leaving the log as is.
func (s *Sampler) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return ErrActive
	}
	s.rows = nil
	return nil
}

// Wait blocks until every loop goroutine has returned. Meant for process
// teardown after Stop; it can take up to one interval.
func (s *Sampler) Wait() {
	s.wg.Wait()
}

func (s *Sampler) run(gen uint64, interval time.Duration) {
	defer s.wg.Done()
	ctx := context.Background()
	for s.current(gen) {
		if row, ok := s.produce(ctx); ok {
			if !s.append(gen, row) {
				return
			}
		}
		time.Sleep(interval)
	}
}

// current reports whether the loop of generation gen should keep going. A
// loop from an earlier Start that wakes after Stop+Start sees a newer
// generation and exits rather than running beside the new loop.
func (s *Sampler) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active && s.gen == gen
}

func (s *Sampler) produce(ctx context.Context) (row model.LogRow, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("log row production panicked", "panic", r)
			ok = false
		}
	}()
	return s.src.LogRow(ctx), true
}

// append records row if gen is still the active generation. The check and
// the write share one critical section.
func (s *Sampler) append(gen uint64, row model.LogRow) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active || s.gen != gen {
		return false
	}
	s.rows = append(s.rows, row)
	if s.maxRows > 0 && len(s.rows) > s.maxRows {
		s.rows = append([]model.LogRow(nil), s.rows[len(s.rows)-s.maxRows:]...)
	}
	return true
}
