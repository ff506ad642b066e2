package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCalculateSpread(t *testing.T) {
	tests := []struct {
		name      string
		buy       string
		sell      string
		wantAbs   string
		wantBPS   string
		wantRatio string
	}{
		{"equal_prices", "3400", "3400", "0", "0", "0"},
		{"sell_higher_1pct", "3400", "3434", "34", "100", "0.01"},
		{"sell_lower_1pct", "3400", "3366", "-34", "-100", "-0.01"},
		{"zero_buy_no_panic", "0", "3400", "3400", "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := CalculateSpread(decimal.RequireFromString(tt.buy), decimal.RequireFromString(tt.sell))
			if !s.Absolute.Equal(decimal.RequireFromString(tt.wantAbs)) {
				t.Errorf("Absolute = %s, want %s", s.Absolute, tt.wantAbs)
			}
			if !s.BasisPoints.Equal(decimal.RequireFromString(tt.wantBPS)) {
				t.Errorf("BasisPoints = %s, want %s", s.BasisPoints, tt.wantBPS)
			}
			if !s.Ratio.Equal(decimal.RequireFromString(tt.wantRatio)) {
				t.Errorf("Ratio = %s, want %s", s.Ratio, tt.wantRatio)
			}
		})
	}
}

func TestDeviation(t *testing.T) {
	got := Deviation(decimal.NewFromInt(100), decimal.NewFromInt(94))
	if !got.Equal(decimal.RequireFromString("0.06")) {
		t.Errorf("Deviation = %s, want 0.06", got)
	}
	if !Deviation(decimal.Zero, decimal.NewFromInt(5)).IsZero() {
		t.Error("Deviation from zero should be zero")
	}
}

func TestQuote_AgeAndDegrade(t *testing.T) {
	now := time.Now()
	q := Quote{Value: decimal.NewFromInt(1), Confidence: 0.9, ObservedAt: now.Add(-3 * time.Second), Source: "binance"}

	if got := q.Age(now); got != 3*time.Second {
		t.Errorf("Age = %v, want 3s", got)
	}

	d := q.Degrade(0.5, "cache:binance")
	if d.Confidence != 0.45 || d.Source != "cache:binance" {
		t.Errorf("Degrade = %+v", d)
	}
	if q.Confidence != 0.9 {
		t.Error("Degrade must not mutate the receiver")
	}
	if (Quote{}).Age(now) != 0 {
		t.Error("zero ObservedAt should report zero age")
	}
}
