package probe

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// ErrTimeout is returned by RunCommand when the command outlives its budget.
var ErrTimeout = errors.New("command timed out")

// DefaultCommandTimeout bounds external tools when the caller has no opinion.
const DefaultCommandTimeout = 2 * time.Second

// RunCommand runs name with args and returns combined output. The process
// is killed once timeout elapses or ctx is done.
func RunCommand(ctx context.Context, timeout time.Duration, name string, args ...string) (string, error) {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = 100 * time.Millisecond
	out, err := cmd.CombinedOutput()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("%s: %w after %v", name, ErrTimeout, timeout)
	}
	if err != nil {
		return string(out), fmt.Errorf("%s: %w", name, err)
	}
	return string(out), nil
}

// boundedQuery runs fn on its own goroutine and waits at most timeout for
// it. fn decodes into a slice owned by that goroutine; the slice reaches
// the caller only over the channel, so a query abandoned on timeout keeps
// writing to memory nobody reads.
func boundedQuery[T any](ctx context.Context, timeout time.Duration, fn func(dst *[]T) error) ([]T, error) {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		rows []T
		err  error
	}
	done := make(chan result, 1)
	go func() {
		var rows []T
		err := fn(&rows)
		done <- result{rows, err}
	}()
	select {
	case r := <-done:
		return r.rows, r.err
	case <-ctx.Done():
		return nil, ErrTimeout
	}
}
