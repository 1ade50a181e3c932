package service

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"

	"github.com/propwatch/propwatch/internal/repository"
	"github.com/propwatch/propwatch/pkg/database"
	"github.com/propwatch/propwatch/pkg/logger"
)

// MetricSource resolves the latest value of a named metric for threshold
// rules. ErrNoValue means the metric has never been recorded, which is not a
// rule evaluation failure.
type MetricSource interface {
	LatestValue(ctx context.Context, name, component string) (float64, error)
}

// ErrNoValue is returned when no sample exists for the requested metric.
var ErrNoValue = fmt.Errorf("no value recorded for metric")

// StoreMetricSource reads the latest sample from the metric store.
type StoreMetricSource struct {
	metrics repository.MetricsRepository
}

func NewStoreMetricSource(metrics repository.MetricsRepository) *StoreMetricSource {
	return &StoreMetricSource{metrics: metrics}
}

func (s *StoreMetricSource) LatestValue(ctx context.Context, name, component string) (float64, error) {
	sample, err := s.metrics.Latest(ctx, name, component)
	if err == database.ErrNotFound {
		return 0, ErrNoValue
	}
	if err != nil {
		return 0, err
	}
	return sample.Value, nil
}

// PrometheusMetricSource resolves metric names as instant PromQL queries
// against an external Prometheus. Used when rules reference metrics the
// service does not collect itself.
type PrometheusMetricSource struct {
	api v1.API
	log *logger.Logger
}

func NewPrometheusMetricSource(url string, log *logger.Logger) (*PrometheusMetricSource, error) {
	client, err := api.NewClient(api.Config{Address: url})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}
	return &PrometheusMetricSource{api: v1.NewAPI(client), log: log}, nil
}

func (s *PrometheusMetricSource) LatestValue(ctx context.Context, name, component string) (float64, error) {
	query := name
	if component != "" {
		query = fmt.Sprintf(`%s{component=%q}`, name, component)
	}

	result, warnings, err := s.api.Query(ctx, query, time.Now())
	if err != nil {
		s.log.WithError(err).WithField("query", query).Error("Prometheus query failed")
		return 0, err
	}
	if len(warnings) > 0 {
		s.log.WithField("warnings", warnings).Warn("Prometheus query warnings")
	}

	switch v := result.(type) {
	case *model.Scalar:
		return float64(v.Value), nil
	case model.Vector:
		if len(v) > 0 {
			return float64(v[0].Value), nil
		}
	}
	return 0, ErrNoValue
}

// FallbackMetricSource queries primary first and falls through to secondary
// when the primary has no sample.
type FallbackMetricSource struct {
	primary   MetricSource
	secondary MetricSource
}

func NewFallbackMetricSource(primary, secondary MetricSource) *FallbackMetricSource {
	return &FallbackMetricSource{primary: primary, secondary: secondary}
}

func (s *FallbackMetricSource) LatestValue(ctx context.Context, name, component string) (float64, error) {
	value, err := s.primary.LatestValue(ctx, name, component)
	if err == ErrNoValue && s.secondary != nil {
		return s.secondary.LatestValue(ctx, name, component)
	}
	return value, err
}
