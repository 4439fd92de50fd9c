package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sysdock/sysdock/internal/model"
	"github.com/sysdock/sysdock/internal/process"
	"github.com/sysdock/sysdock/internal/ui"
)

func overviewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "overview",
		Short: "Print a full system snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.overview(cmd.Context())
		},
	}
}

func (a *app) overview(ctx context.Context) error {
	s := a.svc.SystemOverview(ctx)
	return a.printer().print(s, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "Host\t%s (%s, %s %s)\n", s.Host.Hostname, s.Host.Platform, s.Host.OS, s.Host.Arch)
		fmt.Fprintf(tw, "Kernel\t%s\n", s.Host.Kernel)
		fmt.Fprintf(tw, "Uptime\t%s\n", humanDuration(s.Host.Uptime))
		fmt.Fprintf(tw, "CPU\t%s\n", s.CPU.Name)
		threads := "-"
		if s.CPU.Threads != nil {
			threads = strconv.Itoa(*s.CPU.Threads)
		}
		fmt.Fprintf(tw, "Cores/Threads\t%d/%s\n", s.CPU.Cores, threads)
		fmt.Fprintf(tw, "CPU usage\t%.1f%%\n", s.CPU.Usage)
		if s.CPU.FrequencyMHz != nil {
			fmt.Fprintf(tw, "Frequency\t%.0f MHz\n", *s.CPU.FrequencyMHz)
		}
		if s.CPU.TemperatureC != nil {
			fmt.Fprintf(tw, "Temperature\t%.1f°C\n", *s.CPU.TemperatureC)
		}
		fmt.Fprintf(tw, "Load\t%.2f %.2f %.2f\n", s.CPU.Load1, s.CPU.Load5, s.CPU.Load15)
		fmt.Fprintf(tw, "Memory\t%s / %s (%.1f%%)\n",
			humanize.IBytes(s.Memory.Used), humanize.IBytes(s.Memory.Total), s.Memory.Percent)
		fmt.Fprintf(tw, "Swap\t%s / %s (%.1f%%)\n",
			humanize.IBytes(s.Memory.SwapUsed), humanize.IBytes(s.Memory.SwapTotal), s.Memory.SwapPercent)
		for _, d := range s.Disks {
			fmt.Fprintf(tw, "Disk %s\t%s / %s (%.1f%%) %s %s\n", d.MountPoint,
				humanize.IBytes(d.Used), humanize.IBytes(d.Total), d.Percent, d.Filesystem, d.Medium)
		}
		for _, g := range s.GPUs {
			line := g.Name
			if g.MemoryBytes != nil {
				line += " " + humanize.IBytes(*g.MemoryBytes)
			}
			if g.Driver != nil {
				line += " driver " + *g.Driver
			}
			fmt.Fprintf(tw, "GPU\t%s (%s)\n", line, g.Vendor)
		}
	})
}

func processesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "processes",
		Short: "List running processes (see --sort and --limit)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := process.ParseSortKey(a.cfg.Sort)
			if err != nil {
				return err
			}
			ps := a.svc.ListProcesses(cmd.Context())
			process.Sort(ps, key)
			if a.cfg.Limit > 0 && len(ps) > a.cfg.Limit {
				ps = ps[:a.cfg.Limit]
			}
			return a.printer().print(ps, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "PID\tNAME\tCPU%\tMEM\tRUNTIME\tEXE")
				for _, p := range ps {
					fmt.Fprintf(tw, "%d\t%s\t%.1f\t%.1f MiB\t%s\t%s\n",
						p.PID, p.Name, p.CPU, p.MemoryMB, humanDuration(p.RunTime), orDash(p.Exe))
				}
			})
		},
	}
}

func networkCmd(a *app) *cobra.Command {
	var withRates bool
	cmd := &cobra.Command{
		Use:   "network",
		Short: "List network interfaces with addresses and counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var ifaces []model.NetworkInterface
			if withRates {
				ifaces = a.svc.NetworkRates(cmd.Context())
			} else {
				ifaces = a.svc.NetworkInfo(cmd.Context())
			}
			return a.printer().print(ifaces, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "NAME\tSTATUS\tADDRESSES\tMAC\tTYPE\tSPEED\tRX\tTX")
				for _, n := range ifaces {
					speed := "-"
					if n.LinkSpeedMbps != nil {
						speed = fmt.Sprintf("%d Mb/s", *n.LinkSpeedMbps)
					}
					rx, tx := humanize.IBytes(n.BytesReceived), humanize.IBytes(n.BytesSent)
					if n.RxBytesPerSec != nil && n.TxBytesPerSec != nil {
						rx = humanize.IBytes(uint64(*n.RxBytesPerSec)) + "/s"
						tx = humanize.IBytes(uint64(*n.TxBytesPerSec)) + "/s"
					}
					addrs := strings.Join(n.IPAddresses, ",")
					if addrs == "" {
						addrs = "-"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
						n.Name, n.Status, addrs, orDash(n.MAC), orDash(n.LinkType), speed, rx, tx)
				}
			})
		},
	}
	cmd.Flags().BoolVar(&withRates, "rates", false, "sample twice and report per-second throughput")
	return cmd
}

func parsePID(s string) (int32, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid pid %q", s)
	}
	return int32(n), nil
}

func killCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "kill <pid>",
		Short: "Terminate a process; an already gone pid is not an error",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePID(args[0])
			if err != nil {
				return err
			}
			if err := a.svc.EndProcess(cmd.Context(), pid); err != nil {
				return err
			}
			res := struct {
				PID   int32 `json:"pid"`
				Ended bool  `json:"ended"`
			}{pid, true}
			return a.printer().print(res, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "ended\t%d\n", pid)
			})
		},
	}
}

func recordCmd(a *app) *cobra.Command {
	var (
		duration time.Duration
		csvPath  string
	)
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Sample performance every --interval for --duration and print the log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if duration <= 0 {
				return errors.New("duration must be positive")
			}
			if err := a.svc.StartSamplingEvery(a.cfg.Interval); err != nil {
				return err
			}
			a.log.Info("recording", "interval", a.cfg.Interval, "duration", duration)
			t := time.NewTimer(duration)
			select {
			case <-t.C:
			case <-cmd.Context().Done():
				t.Stop()
			}
			a.svc.StopSampling()
			rows := a.svc.SamplingLog()

			if csvPath != "" {
				if err := writeCSVFile(a, csvPath); err != nil {
					return err
				}
			}
			return a.printer().print(rows, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "TIME\tCPU%\tMEMORY\tDISK")
				for _, r := range rows {
					fmt.Fprintf(tw, "%s\t%.1f\t%s / %s\t%s / %s\n", r.Timestamp, r.CPUUsage,
						humanize.IBytes(r.MemoryUsed), humanize.IBytes(r.MemoryTotal),
						humanize.IBytes(r.DiskUsed), humanize.IBytes(r.DiskTotal))
				}
			})
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", 10*time.Second, "how long to record")
	cmd.Flags().StringVar(&csvPath, "csv", "", "also write the log as CSV to this file")
	return cmd
}

func writeCSVFile(a *app, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	if err := a.svc.ExportSamplingLog(f); err != nil {
		f.Close()
		return fmt.Errorf("write csv: %w", err)
	}
	return f.Close()
}

func healthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health <device>",
		Short: "Report SMART overall health via smartctl",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.svc.DiskHealth(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			res := struct {
				Device string `json:"device"`
				Health string `json:"health"`
			}{args[0], string(h)}
			return a.printer().print(res, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "%s\t%s\n", res.Device, res.Health)
			})
		},
	}
}

func logsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logs",
		Short: "Print recent system log entries (see --limit)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := a.svc.SystemLogs(cmd.Context(), a.cfg.Limit)
			if err != nil {
				return err
			}
			return a.printer().print(entries, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "TIME\tLEVEL\tSOURCE\tMESSAGE")
				for _, e := range entries {
					msg := strings.ReplaceAll(e.Message, "\n", " ")
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Timestamp, e.Level, e.Source, msg)
				}
			})
		},
	}
}

func pingCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ping <host>",
		Short: "Measure ICMP round-trip latency to a host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.svc.Latency(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printer().print(res, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "%s (%s)\t%d/%d received\t%.0f%% loss\tmin/avg/max %v/%v/%v\n",
					res.Host, res.Addr, res.Received, res.Sent, res.LossPercent,
					res.MinRTT, res.AvgRTT, res.MaxRTT)
			})
		},
	}
}

func openCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "open <path>",
		Short: "Open a file or directory with the desktop's default handler",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.svc.OpenPath(cmd.Context(), args[0])
		},
	}
}

func tuiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Run the live terminal dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ui.RunTUI(a.cfg, a.svc)
		},
	}
}
