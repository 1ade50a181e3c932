package service

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/propwatch/propwatch/internal/models"
	"github.com/propwatch/propwatch/internal/repository"
	"github.com/propwatch/propwatch/pkg/logger"
)

// SystemSampler records host metrics (CPU, memory, disk, load) into the
// metric store so threshold rules can watch them.
type SystemSampler struct {
	metrics   repository.MetricsRepository
	log       *logger.Logger
	interval  time.Duration
	component string
}

func NewSystemSampler(metrics repository.MetricsRepository, log *logger.Logger, interval time.Duration) *SystemSampler {
	return &SystemSampler{
		metrics:   metrics,
		log:       log,
		interval:  interval,
		component: "system",
	}
}

// Run samples on a fixed interval until ctx is cancelled.
func (s *SystemSampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if err := s.Sample(ctx); err != nil {
		s.log.WithError(err).Warn("Failed initial system sample")
	}

	for {
		select {
		case <-ticker.C:
			if err := s.Sample(ctx); err != nil {
				s.log.WithError(err).Warn("Failed to sample system metrics")
			}
		case <-ctx.Done():
			s.log.Info("Stopping system sampler")
			return
		}
	}
}

// Sample collects one round of host metrics. Individual probe failures are
// logged and skipped; the round stores whatever could be read.
func (s *SystemSampler) Sample(ctx context.Context) error {
	now := time.Now()
	samples := make([]models.MetricSample, 0, 6)

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err != nil {
		s.log.WithError(err).Debug("CPU probe failed")
	} else if len(percents) > 0 {
		samples = append(samples, s.sample("cpu_percent", percents[0], "%", now))
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		s.log.WithError(err).Debug("Memory probe failed")
	} else {
		samples = append(samples,
			s.sample("memory_percent", vm.UsedPercent, "%", now),
			s.sample("memory_available_mb", float64(vm.Available)/1024/1024, "MB", now))
	}

	if usage, err := disk.UsageWithContext(ctx, "/"); err != nil {
		s.log.WithError(err).Debug("Disk probe failed")
	} else {
		samples = append(samples,
			s.sample("disk_percent", usage.UsedPercent, "%", now),
			s.sample("disk_free_gb", float64(usage.Free)/1024/1024/1024, "GB", now))
	}

	if avg, err := load.AvgWithContext(ctx); err != nil {
		s.log.WithError(err).Debug("Load probe failed")
	} else {
		samples = append(samples, s.sample("load_1m", avg.Load1, "", now))
	}

	if len(samples) == 0 {
		return nil
	}

	for _, sample := range samples {
		systemMetricValue.WithLabelValues(sample.Name).Set(sample.Value)
	}

	return s.metrics.InsertBatch(ctx, samples)
}

func (s *SystemSampler) sample(name string, value float64, unit string, at time.Time) models.MetricSample {
	return models.MetricSample{
		Name:      name,
		Value:     value,
		Unit:      unit,
		Category:  "system",
		Component: s.component,
		Timestamp: at,
	}
}
