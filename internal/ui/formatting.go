package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

var (
	sizeUnits  = []string{"B", "KB", "MB", "GB", "TB"}
	speedUnits = []string{"B/s", "KB/s", "MB/s", "GB/s"}
)

// scale picks the 1024-based unit for n, clamped to the available units
func scale(n float64, units int) (float64, int) {
	i := 0
	for n >= 1024 && i < units-1 {
		n /= 1024
		i++
	}
	return n, i
}

// FormatBytes renders a byte count as "0 B", "512 B", "1.5 KB", "2.3 GB"
func FormatBytes(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	v, i := scale(float64(bytes), len(sizeUnits))
	if i == 0 {
		return fmt.Sprintf("%.0f %s", v, sizeUnits[i])
	}
	return fmt.Sprintf("%.1f %s", v, sizeUnits[i])
}

// FormatSpeed renders a transfer rate as "12.5 MB/s"
func FormatSpeed(bytesPerSecond float64) string {
	if bytesPerSecond <= 0 || math.IsNaN(bytesPerSecond) || math.IsInf(bytesPerSecond, 0) {
		return "0 B/s"
	}
	v, i := scale(bytesPerSecond, len(speedUnits))
	return fmt.Sprintf("%.1f %s", v, speedUnits[i])
}

// FormatDuration renders a duration as "2hrs 5mins", "3mins 12secs" or "< 1sec".
// Seconds are dropped once the duration reaches five minutes.
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "--"
	}

	total := int64(d / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60

	var parts []string
	if hours > 0 {
		parts = append(parts, plural(hours, "hr"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "min"))
	}
	if hours == 0 && minutes < 5 && secs > 0 {
		parts = append(parts, plural(secs, "sec"))
	}

	if len(parts) == 0 {
		return "< 1sec"
	}
	return strings.Join(parts, " ")
}

func plural(n int64, unit string) string {
	if n > 1 {
		return fmt.Sprintf("%d%ss", n, unit)
	}
	return fmt.Sprintf("%d%s", n, unit)
}

// FormatTimeRemaining estimates how long the remaining bytes take at the given rate
func FormatTimeRemaining(remaining int64, bytesPerSecond float64) string {
	if bytesPerSecond <= 0 {
		return "--"
	}
	seconds := math.Ceil(float64(remaining) / bytesPerSecond)
	return FormatDuration(time.Duration(seconds) * time.Second)
}

// FormatTimeOfDay renders a wall clock time as "3:04 pm"
func FormatTimeOfDay(t time.Time) string {
	return t.Format("3:04 pm")
}

// FormatPercent renders a 0-100 percentage without decimals
func FormatPercent(percent float64) string {
	return fmt.Sprintf("%3.0f%%", math.Floor(percent))
}

// ColorizeStatus title-cases an upload status and colors it by outcome
func ColorizeStatus(status string) string {
	display := titleCaser.String(strings.ReplaceAll(status, "_", " "))

	switch strings.ToLower(status) {
	case "completed":
		return GreenStyle.Render(display)
	case "uploading":
		return CyanStyle.Render(display)
	case "pending":
		return PendingStyle.Render(display)
	case "paused":
		return YellowStyle.Render(display)
	case "error":
		return RedStyle.Render(display)
	default:
		return BoldStyle.Render(display)
	}
}

// FormatError formats an error message with styling.
// The trailing newline keeps bubbletea from overwriting the last line on exit.
func FormatError(err error) string {
	if err == nil {
		return ""
	}
	return ErrorStyle.Render(fmt.Sprintf("✗ Error: %s", err.Error())) + "\n"
}
