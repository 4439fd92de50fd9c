package external

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sysdock/sysdock/internal/model"
)

// DefaultLogLimit caps SystemLogs when the caller passes zero.
const DefaultLogLimit = 50

// SystemLogs returns up to limit recent entries from the OS event log,
// newest last. Platforms without a supported log return an empty slice.
func (r *Runner) SystemLogs(ctx context.Context, limit int) ([]model.SystemLogEntry, error) {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	switch r.goos {
	case "linux":
		out, err := r.run(ctx, r.timeout, "journalctl", "-n", strconv.Itoa(limit), "-o", "json", "--no-pager")
		if err != nil {
			return []model.SystemLogEntry{}, fmt.Errorf("system logs: %w", err)
		}
		return ParseJournal(out), nil
	case "windows":
		script := fmt.Sprintf("Get-WinEvent -LogName System -MaxEvents %d | "+
			"Select-Object TimeCreated,LevelDisplayName,ProviderName,Message | "+
			"ConvertTo-Csv -NoTypeInformation", limit)
		out, err := r.run(ctx, r.timeout, "powershell", "-NoProfile", "-NonInteractive", "-Command", script)
		if err != nil {
			return []model.SystemLogEntry{}, fmt.Errorf("system logs: %w", err)
		}
		return ParseWinEventCSV(out)
	}
	return []model.SystemLogEntry{}, nil
}

type journalRecord struct {
	Realtime   string          `json:"__REALTIME_TIMESTAMP"`
	Priority   string          `json:"PRIORITY"`
	Identifier string          `json:"SYSLOG_IDENTIFIER"`
	Comm       string          `json:"_COMM"`
	Message    json.RawMessage `json:"MESSAGE"`
}

// ParseJournal decodes `journalctl -o json` output, one object per line.
// Malformed lines are skipped.
func ParseJournal(out string) []model.SystemLogEntry {
	entries := []model.SystemLogEntry{}
	sc := bufio.NewScanner(strings.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var rec journalRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		src := rec.Identifier
		if src == "" {
			src = rec.Comm
		}
		entries = append(entries, model.SystemLogEntry{
			Timestamp: journalTime(rec.Realtime),
			Level:     priorityLevel(rec.Priority),
			Source:    src,
			Message:   journalMessage(rec.Message),
		})
	}
	return entries
}

func journalTime(us string) string {
	n, err := strconv.ParseInt(us, 10, 64)
	if err != nil {
		return ""
	}
	return time.UnixMicro(n).UTC().Format(time.RFC3339)
}

// journalMessage handles MESSAGE as a string or, for non-UTF-8 payloads,
// an array of byte values.
func journalMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var bs []byte
	var ints []int
	if err := json.Unmarshal(raw, &ints); err == nil {
		for _, v := range ints {
			bs = append(bs, byte(v))
		}
		return strings.ToValidUTF8(string(bs), "?")
	}
	return ""
}

func priorityLevel(p string) string {
	switch p {
	case "0", "1", "2":
		return "Critical"
	case "3":
		return "Error"
	case "4":
		return "Warning"
	case "5", "6":
		return "Information"
	case "7":
		return "Debug"
	}
	return "Information"
}

// ParseWinEventCSV decodes Get-WinEvent rows piped through ConvertTo-Csv.
func ParseWinEventCSV(out string) ([]model.SystemLogEntry, error) {
	entries := []model.SystemLogEntry{}
	out = strings.TrimSpace(out)
	if out == "" {
		return entries, nil
	}
	cr := csv.NewReader(strings.NewReader(out))
	cr.FieldsPerRecord = -1
	recs, err := cr.ReadAll()
	if err != nil {
		return entries, fmt.Errorf("parse event csv: %w", err)
	}
	if len(recs) < 2 {
		return entries, nil
	}
	col := map[string]int{}
	for i, h := range recs[0] {
		col[strings.TrimSpace(h)] = i
	}
	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	for _, rec := range recs[1:] {
		level := field(rec, "LevelDisplayName")
		if level == "" {
			level = "Information"
		}
		entries = append(entries, model.SystemLogEntry{
			Timestamp: field(rec, "TimeCreated"),
			Level:     level,
			Source:    field(rec, "ProviderName"),
			Message:   field(rec, "Message"),
		})
	}
	return entries, nil
}
