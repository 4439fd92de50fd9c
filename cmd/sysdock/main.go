package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sysdock/sysdock/internal/command"
	"github.com/sysdock/sysdock/internal/config"
	"github.com/sysdock/sysdock/internal/ui"
)

type app struct {
	flags  *config.Flags
	cfg    config.Config
	log    *slog.Logger
	svc    *command.Service
	stdout io.Writer
	stderr io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &app{stdout: os.Stdout, stderr: os.Stderr}
	err := newRootCmd(a).ExecuteContext(ctx)
	a.shutdown()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "sysdock",
		Short: "Host telemetry aggregator",
		Long: `sysdock reports CPU, memory, disk, GPU, network and process state,
records periodic performance samples and runs a live terminal dashboard.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if f, ok := a.stdout.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
				return ui.RunTUI(a.cfg, a.svc)
			}
			return a.overview(cmd.Context())
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	a.flags = config.BindFlags(root.PersistentFlags())

	root.AddCommand(
		overviewCmd(a),
		processesCmd(a),
		networkCmd(a),
		killCmd(a),
		recordCmd(a),
		healthCmd(a),
		logsCmd(a),
		pingCmd(a),
		openCmd(a),
		tuiCmd(a),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := a.flags.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	a.cfg = cfg
	a.log = cfg.Logger(a.stderr)
	a.svc = command.New(cfg, a.log)
	a.log.Debug("configured", "interval", cfg.Interval, "format", cfg.Format, "gpu", cfg.EnableGPU)
	return nil
}

// shutdown stops any sampling and gives the loop a moment to exit.
func (a *app) shutdown() {
	if a.svc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.svc.Shutdown(ctx); err != nil {
		a.log.Debug("sampler still running at exit", "err", err)
	}
}

func (a *app) printer() printer {
	return printer{w: a.stdout, format: a.cfg.Format}
}
