package display

import (
	"fmt"
	"time"
)

const (
	kibibyte = 1024
	mebibyte = kibibyte * 1024
	gibibyte = mebibyte * 1024
)

const timeLayout = "2006-01-02 15:04"

// FormatSize renders a byte count using 1024-based units.
func FormatSize(size uint64) string {
	switch {
	case size < kibibyte:
		return fmt.Sprintf("%d B", size)
	case size < mebibyte:
		return fmt.Sprintf("%.2f KB", float64(size)/kibibyte)
	case size < gibibyte:
		return fmt.Sprintf("%.2f MB", float64(size)/mebibyte)
	default:
		return fmt.Sprintf("%.2f GB", float64(size)/gibibyte)
	}
}

func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Local().Format(timeLayout)
}

func FormatExtension(extension string) string {
	if extension == "" {
		return "none"
	}
	return extension
}
