package probe

import (
	"strings"

	"github.com/sysdock/sysdock/internal/model"
)

// ParseDiskutilInfo reads the "Solid State" and "Removable Media" lines of
// `diskutil info`.
func ParseDiskutilInfo(out string) string {
	medium := model.MediumUnknown
	for _, line := range strings.Split(out, "\n") {
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key, val = strings.TrimSpace(key), strings.TrimSpace(val)
		switch key {
		case "Removable Media":
			if val == "Removable" {
				return model.MediumRemovable
			}
		case "Solid State":
			if val == "Yes" {
				medium = model.MediumSSD
			} else if val == "No" {
				medium = model.MediumHDD
			}
		}
	}
	return medium
}
