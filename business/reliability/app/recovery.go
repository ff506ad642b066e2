package app

import (
	"context"
	"sync"
	"time"

	"github.com/fd1az/flashguard/business/reliability/domain"
	"github.com/fd1az/flashguard/internal/logger"
)

// RecoveryConfig tunes the recovery state machine.
type RecoveryConfig struct {
	Cooldown   time.Duration
	MaxRetries int
	History    int
}

// DefaultRecoveryConfig returns production settings.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{Cooldown: 5 * time.Minute, MaxRetries: 3, History: 10}
}

// AutoRecovery maps observed health to a recovery action. After issuing an
// action it stays silent for the cooldown. Restarts are bounded by
// MaxRetries; past that a critical system escalates to an emergency stop.
type AutoRecovery struct {
	config RecoveryConfig
	logger logger.LoggerInterface
	now    func() time.Time

	mu         sync.Mutex
	retries    int
	total      int
	lastAt     time.Time
	lastAction domain.RecoveryAction
	history    []domain.RecoveryEvent
}

// NewAutoRecovery creates the state machine.
func NewAutoRecovery(cfg RecoveryConfig, log logger.LoggerInterface) *AutoRecovery {
	def := DefaultRecoveryConfig()
	if cfg.Cooldown < 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.History <= 0 {
		cfg.History = def.History
	}
	return &AutoRecovery{
		config:     cfg,
		logger:     log,
		now:        time.Now,
		lastAction: domain.ActionNone,
	}
}

// WithClock replaces the time source.
func (r *AutoRecovery) WithClock(now func() time.Time) *AutoRecovery {
	r.now = now
	return r
}

// Decide returns the action for health. HEALTHY always clears the retry
// budget, even inside the cooldown.
func (r *AutoRecovery) Decide(ctx context.Context, health domain.Health) domain.RecoveryAction {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if health == domain.HealthHealthy {
		r.retries = 0
		return domain.ActionNone
	}
	if !r.lastAt.IsZero() && now.Sub(r.lastAt) < r.config.Cooldown {
		return domain.ActionNone
	}

	var action domain.RecoveryAction
	switch health {
	case domain.HealthCritical, domain.HealthOffline:
		if r.retries < r.config.MaxRetries {
			r.retries++
			action = domain.ActionRestartService
			r.logger.Warn(ctx, "critical health, restarting services",
				"attempt", r.retries, "max_retries", r.config.MaxRetries)
		} else {
			action = domain.ActionEmergencyStop
			r.logger.Error(ctx, "recovery retries exhausted, escalating to emergency stop",
				"max_retries", r.config.MaxRetries)
		}
	case domain.HealthDegraded:
		action = domain.ActionScaleResources
		r.logger.Warn(ctx, "degraded health, shedding load")
	default:
		return domain.ActionNone
	}

	r.total++
	r.lastAt = now
	r.lastAction = action
	r.history = append(r.history, domain.RecoveryEvent{At: now, Action: action, Health: health})
	if len(r.history) > r.config.History {
		r.history = append(r.history[:0:0], r.history[len(r.history)-r.config.History:]...)
	}
	return action
}

// Stats returns a copy of the recovery counters.
func (r *AutoRecovery) Stats() domain.RecoveryStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	history := make([]domain.RecoveryEvent, len(r.history))
	copy(history, r.history)
	return domain.RecoveryStats{
		Retries:      r.retries,
		MaxRetries:   r.config.MaxRetries,
		Total:        r.total,
		LastAction:   r.lastAction,
		LastRecovery: r.lastAt,
		History:      history,
	}
}
