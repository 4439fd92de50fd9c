package sampler

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/sysdock/sysdock/internal/model"
)

var csvHeader = []string{
	"Timestamp",
	"CPU Usage (%)",
	"Memory Usage (GB)",
	"Memory Total (GB)",
	"Disk Usage (GB)",
	"Disk Total (GB)",
}

// WriteCSV writes rows as CSV with byte counts converted to GiB.
func WriteCSV(w io.Writer, rows []model.LogRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		rec := []string{
			r.Timestamp,
			strconv.FormatFloat(r.CPUUsage, 'f', 2, 64),
			gib(r.MemoryUsed),
			gib(r.MemoryTotal),
			gib(r.DiskUsed),
			gib(r.DiskTotal),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func gib(b uint64) string {
	return strconv.FormatFloat(float64(b)/(1<<30), 'f', 2, 64)
}
