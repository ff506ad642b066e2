package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/flashguard/business/safety/domain"
	"github.com/fd1az/flashguard/internal/logger"
)

const (
	tracerName = "github.com/fd1az/flashguard/business/safety"
	meterName  = "github.com/fd1az/flashguard/business/safety"
)

// Gate runs every sub-check for an opportunity and aggregates the verdict.
// A rejection here never touches risk counters. A run of escalateAfter
// systemic rejections, with no pass in between, trips the emergency stop;
// per-opportunity rejections neither count toward the run nor break it.
type Gate struct {
	checks        []Check
	escalator     Escalator
	escalateAfter int
	logger        logger.LoggerInterface
	tracer        trace.Tracer
	now           func() time.Time

	mu          sync.Mutex
	stats       domain.Stats
	consecutive int

	verdicts metric.Int64Counter
}

// NewGate creates a gate over checks, run in the given order.
// escalator may be nil; escalateAfter <= 0 disables escalation.
func NewGate(log logger.LoggerInterface, escalator Escalator, escalateAfter int, checks ...Check) (*Gate, error) {
	verdicts, err := otel.Meter(meterName).Int64Counter(
		"safety_check_results_total",
		metric.WithDescription("Safety sub-check results by level"),
	)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return &Gate{
		checks:        checks,
		escalator:     escalator,
		escalateAfter: escalateAfter,
		logger:        log,
		tracer:        otel.Tracer(tracerName),
		now:           time.Now,
		verdicts:      verdicts,
	}, nil
}

// Check runs all sub-checks. REJECT if any sub-check rejects, WARNING if
// any warns, SAFE otherwise.
func (g *Gate) Check(ctx context.Context, sc *domain.Context) domain.Report {
	ctx, span := g.tracer.Start(ctx, "safety.check")
	defer span.End()
	if sc != nil {
		span.SetAttributes(attribute.String("opportunity_id", sc.OpportunityID))
	}

	results := make([]domain.CheckResult, 0, len(g.checks))
	for _, c := range g.checks {
		r := c.Check(ctx, sc)
		r.Check = c.Name()
		results = append(results, r)
		g.verdicts.Add(ctx, 1, metric.WithAttributes(
			attribute.String("check", r.Check),
			attribute.String("level", r.Level.String()),
		))
	}
	rep := domain.Aggregate(results, g.now())
	span.SetAttributes(attribute.String("level", rep.Level.String()))

	g.account(ctx, sc, rep)
	return rep
}

func (g *Gate) account(ctx context.Context, sc *domain.Context, rep domain.Report) {
	id := ""
	if sc != nil {
		id = sc.OpportunityID
	}

	g.mu.Lock()
	g.stats.TotalChecks++
	escalate := false
	if rep.Passed() {
		g.consecutive = 0
	} else {
		g.stats.FailedChecks++
		g.stats.RejectedTrades++
		if rep.Systemic() {
			g.consecutive++
			escalate = g.escalator != nil && g.escalateAfter > 0 && g.consecutive == g.escalateAfter
		}
	}
	consecutive := g.consecutive
	g.mu.Unlock()

	switch rep.Level {
	case domain.LevelReject, domain.LevelDangerous:
		g.logger.Warn(ctx, "trade rejected by safety gate",
			"opportunity_id", id,
			"issues", strings.Join(rep.Issues, "; "),
		)
	case domain.LevelWarning:
		g.logger.Info(ctx, "trade passed with warnings",
			"opportunity_id", id,
			"warnings", strings.Join(rep.Warnings, "; "),
		)
	case domain.LevelSafe:
	}

	if escalate {
		g.escalator.EmergencyStop(ctx, fmt.Sprintf("Safety escalation: %d consecutive systemic rejections", consecutive))
	}
}

// Stats returns decision counters.
func (g *Gate) Stats() domain.Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.stats
	s.SuccessRate = 100
	if s.TotalChecks > 0 {
		s.SuccessRate = float64(s.TotalChecks-s.FailedChecks) / float64(s.TotalChecks) * 100
	}
	return s
}
