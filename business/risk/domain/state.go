// Package domain contains the core domain types for the risk context.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Level grades how close losses are to the daily cap.
type Level string

const (
	LevelLow      Level = "LOW"
	LevelMedium   Level = "MEDIUM"
	LevelHigh     Level = "HIGH"
	LevelCritical Level = "CRITICAL"
)

// LevelFor bands loss against limit: >80% CRITICAL, >50% HIGH, >20% MEDIUM.
func LevelFor(loss, limit decimal.Decimal) Level {
	if !limit.IsPositive() {
		return LevelLow
	}
	ratio := loss.Div(limit)
	switch {
	case ratio.GreaterThan(decimal.RequireFromString("0.8")):
		return LevelCritical
	case ratio.GreaterThan(decimal.RequireFromString("0.5")):
		return LevelHigh
	case ratio.GreaterThan(decimal.RequireFromString("0.2")):
		return LevelMedium
	default:
		return LevelLow
	}
}

// Alert records a risk event.
type Alert struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	Action    string    `json:"action_taken"`
	Timestamp time.Time `json:"timestamp"`
}

// State is the mutable risk ledger. Owned by the gate under one mutex.
type State struct {
	ActiveTrades     int             `json:"active_trade_count"`
	DailyLoss        decimal.Decimal `json:"daily_loss"`
	DailyProfit      decimal.Decimal `json:"daily_profit"`
	TradingAllowed   bool            `json:"trading_allowed"`
	EmergencyStopped bool            `json:"emergency_stopped"`
	StopReason       string          `json:"stop_reason,omitempty"`
	TotalTrades      int             `json:"total_trades"`
	SuccessfulTrades int             `json:"successful_trades"`
	FailedTrades     int             `json:"failed_trades"`
	LastReset        time.Time       `json:"last_reset"`
}

// Snapshot is a point-in-time copy of the ledger plus derived values.
type Snapshot struct {
	State
	HourlyLoss   decimal.Decimal `json:"hourly_loss"`
	BlockLoss    decimal.Decimal `json:"block_loss"`
	ErrorCount   int             `json:"error_count_in_window"`
	RiskLevel    Level           `json:"risk_level"`
	WinRate      float64         `json:"win_rate"`
	RecentAlerts []Alert         `json:"recent_alerts"`
}
