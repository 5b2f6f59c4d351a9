package export

import (
	"math"
	"time"
)

func nameOr(names map[string]string, id string) string {
	if name, ok := names[id]; ok && name != "" {
		return name
	}
	return id
}

func formatTime(t *time.Time, layout string) string {
	if t == nil {
		return ""
	}
	return t.Format(layout)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
