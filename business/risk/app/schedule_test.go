package app

import (
	"testing"
	"time"
)

func TestNextReset(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		hour int
		want time.Time
	}{
		{"later today", time.Date(2026, 5, 1, 3, 0, 0, 0, time.UTC), 4, time.Date(2026, 5, 1, 4, 0, 0, 0, time.UTC)},
		{"tomorrow", time.Date(2026, 5, 1, 5, 0, 0, 0, time.UTC), 4, time.Date(2026, 5, 2, 4, 0, 0, 0, time.UTC)},
		{"exact boundary", time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), 0, time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)},
		{"month rollover", time.Date(2026, 5, 31, 23, 0, 0, 0, time.UTC), 0, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		if got := NextReset(tt.now, tt.hour); !got.Equal(tt.want) {
			t.Errorf("%s: NextReset() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
