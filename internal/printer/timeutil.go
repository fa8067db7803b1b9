package printer

import (
	"fmt"
	"time"
)

var agoUnits = []struct {
	name string
	size time.Duration
}{
	{name: "day", size: 24 * time.Hour},
	{name: "hour", size: time.Hour},
	{name: "minute", size: time.Minute},
	{name: "second", size: time.Second},
}

// TimeAgo returns how long ago t was using its biggest whole unit, e.g. "3 minutes ago".
func TimeAgo(t time.Time) string {
	return timeAgo(time.Now(), t)
}

func timeAgo(now, t time.Time) string {
	diff := now.Sub(t)
	if diff < 0 {
		return "in the future"
	}
	if diff < time.Second {
		return "just now"
	}

	for _, u := range agoUnits {
		n := int(diff / u.size)
		if n == 0 {
			continue
		}
		if n == 1 {
			return fmt.Sprintf("1 %s ago", u.name)
		}
		return fmt.Sprintf("%d %ss ago", n, u.name)
	}

	return "just now"
}

// FormatDuration returns a rounded duration string.
// Examples: "250ms", "1.5s", "1m30s".
func FormatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "0s"
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return d.Round(100 * time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}
