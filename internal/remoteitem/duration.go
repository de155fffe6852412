package remoteitem

import (
	"math"
	"strconv"
	"strings"
)

// ParseDuration converts an itunes:duration value ("245", "245.6", "4:05",
// "01:04:05") to whole seconds. Zero and unparsable values report false.
func ParseDuration(value string) (int, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	parts := strings.Split(value, ":")
	if len(parts) > 3 {
		return 0, false
	}
	total := 0.0
	for _, part := range parts {
		n, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || n < 0 || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		total = total*60 + n
	}
	seconds := int(math.Round(total))
	if seconds <= 0 {
		return 0, false
	}
	return seconds, true
}
