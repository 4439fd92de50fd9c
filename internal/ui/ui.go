package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/sysdock/sysdock/internal/config"
	"github.com/sysdock/sysdock/internal/model"
	"github.com/sysdock/sysdock/internal/process"
)

// Backend is the part of the command surface the TUI drives.
type Backend interface {
	SystemOverview(ctx context.Context) model.Snapshot
	ListProcesses(ctx context.Context) []model.Process
	NetworkRates(ctx context.Context) []model.NetworkInterface
	StartSamplingEvery(interval time.Duration) error
	StopSampling()
	SamplingLog() []model.LogRow
	ClearSamplingLog() error
	SamplingActive() bool
	SamplingInterval() time.Duration
}

type keyMap struct {
	Start key.Binding
	Stop  key.Binding
	Clear key.Binding
	Quit  key.Binding
}

func (k keyMap) ShortHelp() []key.Binding { return []key.Binding{k.Start, k.Stop, k.Clear, k.Quit} }

func (k keyMap) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

var keys = keyMap{
	Start: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start")),
	Stop:  key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop")),
	Clear: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear")),
	Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// Model renders periodic refreshes pulled from the backend.
type Model struct {
	cfg     config.Config
	backend Backend
	help    help.Model

	snap     model.Snapshot
	procs    []model.Process
	ifaces   []model.NetworkInterface
	rows     []model.LogRow
	active   bool
	interval time.Duration
	loading  bool
	status   string

	width  int
	height int
}

func New(cfg config.Config, b Backend) *Model {
	return &Model{
		cfg:     cfg,
		backend: b,
		help:    help.New(),
		width:   120,
		height:  40,
	}
}

// Messages
type (
	tickMsg struct{}
	dataMsg struct {
		snap   model.Snapshot
		procs  []model.Process
		ifaces []model.NetworkInterface
	}
)

func (m *Model) tickCmd() tea.Cmd {
	return tea.Tick(m.cfg.Interval, func(time.Time) tea.Msg { return tickMsg{} })
}

// refreshCmd probes off the UI goroutine; a snapshot blocks for one CPU
// window.
func (m *Model) refreshCmd() tea.Cmd {
	b := m.backend
	sortKey, err := process.ParseSortKey(m.cfg.Sort)
	if err != nil {
		sortKey = process.SortCPU
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		procs := b.ListProcesses(ctx)
		process.Sort(procs, sortKey)
		return dataMsg{
			snap:   b.SystemOverview(ctx),
			procs:  procs,
			ifaces: b.NetworkRates(ctx),
		}
	}
}

func (m *Model) Init() tea.Cmd {
	m.loading = true
	return tea.Batch(m.refreshCmd(), m.tickCmd())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	case tickMsg:
		m.syncSampler()
		if m.loading {
			return m, m.tickCmd()
		}
		m.loading = true
		return m, tea.Batch(m.refreshCmd(), m.tickCmd())
	case dataMsg:
		m.loading = false
		m.snap, m.procs, m.ifaces = msg.snap, msg.procs, msg.ifaces
		m.syncSampler()
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, keys.Quit):
		m.backend.StopSampling()
		return tea.Quit
	case key.Matches(msg, keys.Start):
		if err := m.backend.StartSamplingEvery(m.cfg.Interval); err != nil {
			m.status = err.Error()
		} else {
			m.status = fmt.Sprintf("sampling every %v", m.cfg.Interval)
		}
	case key.Matches(msg, keys.Stop):
		m.backend.StopSampling()
		m.status = "sampling stopped"
	case key.Matches(msg, keys.Clear):
		if err := m.backend.ClearSamplingLog(); err != nil {
			m.status = err.Error()
		} else {
			m.status = "log cleared"
		}
	}
	m.syncSampler()
	return nil
}

func (m *Model) syncSampler() {
	m.active = m.backend.SamplingActive()
	m.interval = m.backend.SamplingInterval()
	m.rows = m.backend.SamplingLog()
}

// Styles
var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("45"))
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	offStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	gaugeFill   = "█"
	gaugeEmpty  = "░"
	cardStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("60")).
			Padding(0, 1).
			MarginRight(1)
)

func (m *Model) View() string {
	s := m.snap
	header := titleStyle.Render("sysdock") + "  " +
		subtleStyle.Render(fmt.Sprintf("%s  %s %s  up %s",
			s.Host.Hostname, s.Host.Platform, s.Host.Kernel, s.Host.Uptime.Truncate(time.Minute)))
	if !s.Timestamp.IsZero() {
		header += "  " + subtleStyle.Render(s.Timestamp.Format("Mon Jan 2 15:04:05 MST 2006"))
	}

	cpuBody := fmt.Sprintf("%s\n%s  %d cores  load %.2f %.2f %.2f",
		gaugeBar(s.CPU.Usage, 28), truncate(s.CPU.Name, 28), s.CPU.Cores,
		s.CPU.Load1, s.CPU.Load5, s.CPU.Load15)
	if s.CPU.TemperatureC != nil {
		cpuBody += fmt.Sprintf("  %.0f°C", *s.CPU.TemperatureC)
	}
	cpuCard := card("CPU", cpuBody)

	memCard := card("Memory",
		fmt.Sprintf("%s\n%s / %s | Swap %3.0f%%",
			gaugeBar(s.Memory.Percent, 28),
			humanize.IBytes(s.Memory.Used),
			humanize.IBytes(s.Memory.Total),
			s.Memory.SwapPercent))

	columns := []string{cpuCard, memCard}
	if len(s.Disks) > 0 {
		columns = append(columns, card("Disks", renderDisks(s.Disks, 4)))
	}
	if len(s.GPUs) > 0 {
		columns = append(columns, card("GPU", renderGPUs(s.GPUs)))
	}

	procTable := card("Processes ("+m.cfg.Sort+")", renderProcesses(m.procs, 10))
	netTable := card("Network", renderInterfaces(m.ifaces, 8))

	line1 := lipgloss.JoinHorizontal(lipgloss.Top, columns...)
	line2 := lipgloss.JoinHorizontal(lipgloss.Top, procTable, netTable)
	line3 := card("Sampler", m.samplerBody())

	return lipgloss.JoinVertical(lipgloss.Left, header, line1, line2, line3)
}

func (m *Model) samplerBody() string {
	state := offStyle.Render("stopped")
	if m.active {
		state = okStyle.Render("recording every " + m.interval.String())
	}
	body := fmt.Sprintf("%s  %d rows", state, len(m.rows))
	if n := len(m.rows); n > 0 {
		last := m.rows[n-1]
		body += fmt.Sprintf("  last %s cpu %.1f%%", last.Timestamp, last.CPUUsage)
	}
	if m.status != "" {
		body += "  " + subtleStyle.Render(m.status)
	}
	return body + "\n" + m.help.View(keys)
}

// Helpers
func gaugeBar(pct float64, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int((pct / 100) * float64(width))
	if filled > width {
		filled = width
	}
	return fmt.Sprintf("[%s%s] %5.1f%%",
		strings.Repeat(gaugeFill, filled),
		strings.Repeat(gaugeEmpty, width-filled),
		pct)
}

func card(title, body string) string {
	return cardStyle.Render(labelStyle.Render(title) + "\n" + body)
}

func renderDisks(disks []model.Disk, limit int) string {
	var b strings.Builder
	for i := 0; i < min(limit, len(disks)); i++ {
		d := disks[i]
		fmt.Fprintf(&b, "%-12s %s %s free (%s)\n",
			truncate(d.MountPoint, 12), gaugeBar(d.Percent, 12), humanize.IBytes(d.Available), d.Medium)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderGPUs(gpus []model.GPU) string {
	lines := make([]string, 0, len(gpus))
	for _, g := range gpus {
		line := truncate(g.Name, 24)
		if g.Utilization != nil {
			line += fmt.Sprintf(" %4.0f%%", *g.Utilization)
		}
		if g.MemoryBytes != nil {
			line += " " + humanize.IBytes(*g.MemoryBytes)
		}
		if g.TemperatureC != nil {
			line += fmt.Sprintf(" %2.0f°C", *g.TemperatureC)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func renderProcesses(rows []model.Process, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-18s %-7s %-6s %-8s\n", "name", "pid", "cpu", "mem")
	for i := 0; i < min(limit, len(rows)); i++ {
		r := rows[i]
		fmt.Fprintf(&b, "%-18s %-7d %6.1f %7.1fM\n",
			truncate(r.Name, 18), r.PID, r.CPU, r.MemoryMB)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderInterfaces(ifaces []model.NetworkInterface, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %-12s %-16s %s\n", "iface", "status", "address", "rx/tx")
	for i := 0; i < min(limit, len(ifaces)); i++ {
		n := ifaces[i]
		addr := "-"
		if len(n.IPAddresses) > 0 {
			addr = n.IPAddresses[0]
		}
		status := okStyle.Render(fmt.Sprintf("%-12s", n.Status))
		if n.Status != model.StatusConnected {
			status = offStyle.Render(fmt.Sprintf("%-12s", n.Status))
		}
		fmt.Fprintf(&b, "%-12s %s %-16s %s\n", truncate(n.Name, 12), status, truncate(addr, 16), rates(n))
	}
	return strings.TrimRight(b.String(), "\n")
}

func rates(n model.NetworkInterface) string {
	if n.RxBytesPerSec == nil || n.TxBytesPerSec == nil {
		return humanize.IBytes(n.BytesReceived) + " / " + humanize.IBytes(n.BytesSent)
	}
	return humanize.IBytes(uint64(*n.RxBytesPerSec)) + "/s / " + humanize.IBytes(uint64(*n.TxBytesPerSec)) + "/s"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// RunTUI starts the Bubble Tea program.
func RunTUI(cfg config.Config, b Backend) error {
	prog := tea.NewProgram(New(cfg, b), tea.WithAltScreen())
	_, err := prog.Run()
	return err
}
