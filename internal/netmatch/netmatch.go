// Package netmatch pairs the traffic-counter interface list with the
// address interface list. The two come from different OS enumerations and
// their names often disagree. Matching is by name first (equal or
// containing), then a loopback-free fallback.
package netmatch

import (
	"net/netip"
	"sort"
	"strings"
	"unicode"

	"github.com/sysdock/sysdock/internal/model"
)

// Stage reports which rule produced a Match.
type Stage int

const (
	StageNone Stage = iota
	// StageExact covers equal names and names containing one another.
	StageExact
	StageFallback
)

func (s Stage) String() string {
	switch s {
	case StageExact:
		return "exact"
	case StageFallback:
		return "fallback"
	default:
		return "none"
	}
}

// Match is the address set associated with one counters entry.
type Match struct {
	Addrs []string
	Stage Stage
	// Source is the first address entry matched by name, even when it
	// carried no addresses. Nil when no name matched at all.
	Source *model.NetAddrs
}

// Normalize strips non-alphanumeric characters and lower-cases.
func Normalize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// Resolve finds the addresses for the interface called name among cands.
func Resolve(name string, cands []model.NetAddrs) Match {
	n := Normalize(name)

	var addrs []string
	var named *model.NetAddrs
	for i := range cands {
		if !nameMatch(n, Normalize(cands[i].Name)) {
			continue
		}
		addrs = append(addrs, cands[i].Addrs...)
		if named == nil {
			named = &cands[i]
		}
	}
	if out := clean(addrs, false); len(out) > 0 {
		return Match{Addrs: out, Stage: StageExact, Source: named}
	}

	var all []string
	for _, c := range cands {
		all = append(all, c.Addrs...)
	}
	if out := clean(all, true); len(out) > 0 {
		return Match{Addrs: out, Stage: StageFallback, Source: named}
	}
	return Match{Stage: StageNone, Source: named}
}

// Reconcile merges counters with addresses into interface records. The
// result has one entry per counters entry, in the same order.
func Reconcile(counters []model.NetCounters, cands []model.NetAddrs, capturedAt int64) []model.NetworkInterface {
	out := make([]model.NetworkInterface, 0, len(counters))
	for _, c := range counters {
		m := Resolve(c.Name, cands)
		rec := model.NetworkInterface{
			Name:            c.Name,
			Status:          model.StatusDisconnected,
			BytesReceived:   c.BytesRecv,
			BytesSent:       c.BytesSent,
			PacketsReceived: c.PacketsRecv,
			PacketsSent:     c.PacketsSent,
			ErrorsIn:        c.ErrIn,
			ErrorsOut:       c.ErrOut,
			IPAddresses:     m.Addrs,
			CapturedAt:      capturedAt,
		}
		if rec.IPAddresses == nil {
			rec.IPAddresses = []string{}
		}
		if len(rec.IPAddresses) > 0 {
			rec.Status = model.StatusConnected
		}
		if m.Source != nil {
			rec.MAC = clonePtr(m.Source.MAC)
			rec.LinkType = clonePtr(m.Source.LinkType)
			rec.LinkSpeedMbps = clonePtr(m.Source.LinkSpeedMbps)
		}
		out = append(out, rec)
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// nameMatch reports equality or containment of two normalized names.
// Containment covers every prefix and suffix relation as well.
func nameMatch(a, b string) bool {
	if a == "" || b == "" {
		return a == b
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// clean strips CIDR suffixes, drops unparsable entries, optionally drops
// loopback, then dedups and sorts.
func clean(addrs []string, dropLoopback bool) []string {
	seen := make(map[string]struct{}, len(addrs))
	var out []string
	for _, raw := range addrs {
		ip, ok := parseAddr(raw)
		if !ok {
			continue
		}
		if dropLoopback && ip.IsLoopback() {
			continue
		}
		s := ip.String()
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func parseAddr(raw string) (netip.Addr, bool) {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, '/'); i >= 0 {
		raw = raw[:i]
	}
	ip, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Addr{}, false
	}
	return ip.WithZone("").Unmap(), true
}
