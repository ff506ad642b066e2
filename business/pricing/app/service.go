package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/flashguard/business/pricing/domain"
	"github.com/fd1az/flashguard/internal/apperror"
	"github.com/fd1az/flashguard/internal/asset"
	"github.com/fd1az/flashguard/internal/cache"
	"github.com/fd1az/flashguard/internal/logger"
)

const tracerName = "github.com/fd1az/flashguard/business/pricing/app"

// ServiceConfig tunes the pricing service.
type ServiceConfig struct {
	FetchTimeout       time.Duration
	CacheTTL           time.Duration // how long a last-known price may back a miss
	FallbackConfidence float64       // confidence multiplier for cached prices
}

// PricingService queries sources in order and falls back to the last-known
// price at reduced confidence. It implements PriceSource.
type PricingService struct {
	config    ServiceConfig
	sources   []NamedSource
	registry  *asset.Registry
	lastKnown *cache.Cache[string, domain.Quote]
	logger    logger.LoggerInterface
	tracer    trace.Tracer
	now       func() time.Time
}

// NewPricingService creates a new PricingService. Sources are tried in order.
func NewPricingService(cfg ServiceConfig, registry *asset.Registry, log logger.LoggerInterface, sources ...NamedSource) (*PricingService, error) {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 5 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	if cfg.FallbackConfidence <= 0 {
		cfg.FallbackConfidence = 0.8
	}

	lastKnown, err := cache.New[string, domain.Quote](cfg.CacheTTL)
	if err != nil {
		return nil, err
	}

	return &PricingService{
		config:    cfg,
		sources:   sources,
		registry:  registry,
		lastKnown: lastKnown,
		logger:    log,
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
	}, nil
}

// Price returns a live quote, a pegged quote for stablecoins, or the cached
// last-known quote with degraded confidence.
func (s *PricingService) Price(ctx context.Context, token string) (*domain.Quote, error) {
	token = strings.ToUpper(strings.TrimSpace(token))
	ctx, span := s.tracer.Start(ctx, "pricing.price",
		trace.WithAttributes(attribute.String("token", token)),
	)
	defer span.End()

	if t, ok := s.registry.BySymbol(token); ok && t.Stable {
		return &domain.Quote{
			Token:      token,
			Value:      decimal.NewFromInt(1),
			Source:     "peg",
			Kind:       domain.KindSignedFeed,
			Confidence: 1,
			ObservedAt: s.now(),
		}, nil
	}

	var errs []error
	for _, src := range s.sources {
		q, err := s.fetch(ctx, src, token)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.lastKnown.Set(ctx, token, *q, s.config.CacheTTL)
		span.SetAttributes(attribute.String("source", q.Source))
		return q, nil
	}

	if cached, ok := s.lastKnown.Get(ctx, token); ok {
		degraded := cached.Degrade(s.config.FallbackConfidence, "cache:"+cached.Source)
		s.logger.Warn(ctx, "live price unavailable, using last known",
			"token", token, "source", cached.Source, "age", degraded.Age(s.now()).String())
		span.AddEvent("cache_fallback")
		return &degraded, nil
	}

	err := apperror.New(apperror.CodePriceUnavailable,
		apperror.WithCause(errors.Join(errs...)),
		apperror.WithContext(token))
	span.RecordError(err)
	return nil, err
}

func (s *PricingService) fetch(ctx context.Context, src NamedSource, token string) (*domain.Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.FetchTimeout)
	defer cancel()

	q, err := src.Price(ctx, token)
	if err != nil {
		s.logger.Debug(ctx, "price source miss", "source", src.Name(), "token", token, "error", err)
		return nil, err
	}
	return q, nil
}

// Close releases the last-known cache.
func (s *PricingService) Close() error {
	s.lastKnown.Close()
	return nil
}
