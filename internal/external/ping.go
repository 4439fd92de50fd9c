package external

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// PingResult summarises one ICMP echo run.
type PingResult struct {
	Host        string        `json:"host"`
	Addr        string        `json:"addr"`
	Sent        int           `json:"sent"`
	Received    int           `json:"received"`
	LossPercent float64       `json:"loss_percent"`
	MinRTT      time.Duration `json:"min_rtt"`
	AvgRTT      time.Duration `json:"avg_rtt"`
	MaxRTT      time.Duration `json:"max_rtt"`
}

type pingFunc func(ctx context.Context, host string, count int, timeout time.Duration) (PingResult, error)

// Latency pings host pingCount times. The whole run is bounded by the
// runner timeout plus one second per echo.
func (r *Runner) Latency(ctx context.Context, host string) (PingResult, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return PingResult{}, errors.New("latency: empty host")
	}
	budget := r.timeout + time.Duration(r.pingCount)*time.Second
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	res, err := r.ping(ctx, host, r.pingCount, budget)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return res, fmt.Errorf("latency %s: %w", host, ErrTimeout)
		}
		return res, fmt.Errorf("latency %s: %w", host, err)
	}
	r.log.Debug("latency", "host", host, "avg", res.AvgRTT, "loss", res.LossPercent)
	return res, nil
}

func icmpPing(ctx context.Context, host string, count int, timeout time.Duration) (PingResult, error) {
	p, err := probing.NewPinger(host)
	if err != nil {
		return PingResult{Host: host}, err
	}
	p.Count = count
	p.Timeout = timeout
	p.Interval = 200 * time.Millisecond
	// Unprivileged UDP pings are unavailable on Windows.
	p.SetPrivileged(runtime.GOOS == "windows")
	if err := p.RunWithContext(ctx); err != nil {
		return PingResult{Host: host}, err
	}
	return fromStats(host, p.Statistics()), nil
}

func fromStats(host string, st *probing.Statistics) PingResult {
	res := PingResult{Host: host}
	if st == nil {
		return res
	}
	if st.IPAddr != nil {
		res.Addr = st.IPAddr.String()
	}
	res.Sent = st.PacketsSent
	res.Received = st.PacketsRecv
	res.LossPercent = st.PacketLoss
	res.MinRTT = st.MinRtt
	res.AvgRTT = st.AvgRtt
	res.MaxRTT = st.MaxRtt
	return res
}
