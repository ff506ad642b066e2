package domain

import "time"

// RecoveryAction is the signal the supervisor emits to its driver.
type RecoveryAction string

const (
	ActionNone           RecoveryAction = "NONE"
	ActionRestartService RecoveryAction = "RESTART_SERVICE"
	ActionSwitchBackup   RecoveryAction = "SWITCH_BACKUP"
	ActionEmergencyStop  RecoveryAction = "EMERGENCY_STOP"
	ActionScaleResources RecoveryAction = "SCALE_RESOURCES"
)

// RecoveryEvent records one issued action.
type RecoveryEvent struct {
	At     time.Time      `json:"timestamp"`
	Action RecoveryAction `json:"action"`
	Health Health         `json:"health"`
}

// RecoveryStats summarizes the recovery state machine.
type RecoveryStats struct {
	Retries      int             `json:"current_retry_count"`
	MaxRetries   int             `json:"max_retries"`
	Total        int             `json:"total_recoveries"`
	LastAction   RecoveryAction  `json:"last_action"`
	LastRecovery time.Time       `json:"last_recovery,omitempty"`
	History      []RecoveryEvent `json:"recent_actions"`
}
