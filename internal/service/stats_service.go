package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/incident-service/internal/cache"
	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/insights"
	"github.com/spec-kit/incident-service/internal/repository"
	"github.com/spec-kit/incident-service/internal/stats"
	apperrors "github.com/spec-kit/incident-service/pkg/util/errorutil"
)

// StatsDependencies bundles collaborators for the reporting endpoints.
type StatsDependencies struct {
	IncidentRepo repository.IncidentRepository
	RegionRepo   repository.RegionRepository
	StatsCache   *cache.StatsCache
	Logger       *zap.Logger
}

// StatsService serves rollups over a snapshot of the record set. The
// computations themselves are pure; this service only adds the snapshot
// load and the invalidation-keyed cache in front of them.
type StatsService struct {
	incidents repository.IncidentRepository
	regions   repository.RegionRepository
	cache     *cache.StatsCache
	logger    *zap.Logger
	now       func() time.Time
}

// NewStatsService constructs the service.
func NewStatsService(deps StatsDependencies) *StatsService {
	return &StatsService{
		incidents: deps.IncidentRepo,
		regions:   deps.RegionRepo,
		cache:     deps.StatsCache,
		logger:    deps.Logger,
		now:       time.Now,
	}
}

// RegionOverview returns backlog figures per visible region.
func (s *StatsService) RegionOverview(ctx context.Context) ([]stats.RegionStats, error) {
	key := s.cache.Key("regions", s.now().Format("2006-01-02"))
	var cached []stats.RegionStats
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	records, visibility, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	overview := stats.AggregateRegions(records, s.now(), visibility)
	s.cache.Set(ctx, key, overview)
	return overview, nil
}

// SLAReport returns the three SLA tiers for one closing month.
func (s *StatsService) SLAReport(ctx context.Context, year int, month time.Month) (*stats.MonthlySLAReport, error) {
	if month < time.January || month > time.December {
		return nil, apperrors.NewValidationError("month out of range", map[string]any{"month": int(month)})
	}
	key := s.cache.Key("sla", fmt.Sprintf("%04d-%02d", year, month))
	var cached stats.MonthlySLAReport
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	records, visibility, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	report := stats.SLAMonthly(records, year, month, visibility)
	s.cache.Set(ctx, key, report)
	return &report, nil
}

// SupplierRanking returns the monthly supplier scorecards, best first.
func (s *StatsService) SupplierRanking(ctx context.Context, year int, month time.Month) ([]stats.SupplierScore, error) {
	if month < time.January || month > time.December {
		return nil, apperrors.NewValidationError("month out of range", map[string]any{"month": int(month)})
	}
	key := s.cache.Key("suppliers", fmt.Sprintf("%04d-%02d", year, month))
	var cached []stats.SupplierScore
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	records, _, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	ranking := stats.SupplierScorecards(records, year, month)
	s.cache.Set(ctx, key, ranking)
	return ranking, nil
}

// Insights evaluates the anomaly ruleset over the current record set.
func (s *StatsService) Insights(ctx context.Context) ([]insights.RuleResult, error) {
	key := s.cache.Key("insights", s.now().Format("2006-01-02"))
	var cached []insights.RuleResult
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	records, visibility, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	ruleCtx := insights.RuleContext{Records: records, Visibility: visibility, Now: s.now()}
	results := insights.Evaluate(insights.BuildRuleset(ruleCtx), records)
	s.cache.Set(ctx, key, results)
	return results, nil
}

// SetRegionVisibility toggles a region in or out of the active scope and
// drops every cached rollup that depended on it.
func (s *StatsService) SetRegionVisibility(ctx context.Context, regione string, visible bool) error {
	if regione == "" {
		return apperrors.NewValidationError("regione required", nil)
	}
	if err := s.regions.SetVisibility(ctx, regione, visible); err != nil {
		return apperrors.MapError(err)
	}
	s.cache.Invalidate(ctx)
	return nil
}

func (s *StatsService) snapshot(ctx context.Context) ([]domain.Incident, map[string]bool, error) {
	records, err := s.incidents.Query(ctx, repository.IncidentFilter{})
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	visibility, err := s.regions.Visibility(ctx)
	if err != nil {
		s.logger.Warn("region visibility unavailable; treating all regions as visible", zap.Error(err))
		visibility = map[string]bool{}
	}
	return records, visibility, nil
}
