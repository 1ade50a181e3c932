package etl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/propwatch/propwatch/internal/models"
	"github.com/propwatch/propwatch/internal/repository"
	"github.com/propwatch/propwatch/pkg/logger"
)

// ListingsFetchPlugin pulls the external listings feed and stores a snapshot
// per listing, plus a metric sample of how many were captured.
type ListingsFetchPlugin struct {
	listings   repository.ListingRepository
	metrics    repository.MetricsRepository
	feedURL    string
	httpClient *http.Client
	log        *logger.Logger
}

func NewListingsFetchPlugin(
	listings repository.ListingRepository,
	metrics repository.MetricsRepository,
	feedURL string,
	log *logger.Logger,
) *ListingsFetchPlugin {
	return &ListingsFetchPlugin{
		listings: listings,
		metrics:  metrics,
		feedURL:  feedURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		log: log,
	}
}

func (p *ListingsFetchPlugin) Name() string { return "listings_fetch" }

type feedListing struct {
	Source    string  `json:"source"`
	ListingID string  `json:"listing_id"`
	Address   string  `json:"address"`
	City      string  `json:"city"`
	Price     float64 `json:"price"`
	Status    string  `json:"status"`
}

func (p *ListingsFetchPlugin) Run(ctx context.Context) (map[string]interface{}, error) {
	if p.feedURL == "" {
		return nil, fmt.Errorf("listings feed URL is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.feedURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	var feed []feedListing
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("failed to decode feed: %w", err)
	}

	now := time.Now()
	snapshots := make([]models.ListingSnapshot, 0, len(feed))
	for _, item := range feed {
		if item.ListingID == "" {
			continue
		}
		snapshots = append(snapshots, models.ListingSnapshot{
			Source:     item.Source,
			ListingID:  item.ListingID,
			Address:    item.Address,
			City:       item.City,
			Price:      item.Price,
			Status:     item.Status,
			CapturedAt: now,
		})
	}

	if err := p.listings.InsertBatch(ctx, snapshots); err != nil {
		return nil, fmt.Errorf("failed to store snapshots: %w", err)
	}

	sample := &models.MetricSample{
		Name:      "listings_fetched",
		Value:     float64(len(snapshots)),
		Category:  "etl",
		Component: p.Name(),
		Timestamp: now,
	}
	if err := p.metrics.Insert(ctx, sample); err != nil {
		p.log.WithError(err).Warn("Failed to record listings_fetched metric")
	}

	return map[string]interface{}{
		"fetched": len(snapshots),
		"skipped": len(feed) - len(snapshots),
	}, nil
}

// RetentionPolicy sets per-collection retention in days. Zero disables
// cleanup for that collection.
type RetentionPolicy struct {
	MetricsDays  int
	EventsDays   int
	AlertsDays   int
	ListingsDays int
}

// RetentionCleanupPlugin removes documents older than the retention policy.
// Only resolved alerts are eligible for deletion.
type RetentionCleanupPlugin struct {
	metrics  repository.MetricsRepository
	events   repository.EventRepository
	alerts   repository.AlertRepository
	listings repository.ListingRepository
	policy   RetentionPolicy
	log      *logger.Logger
}

func NewRetentionCleanupPlugin(
	metrics repository.MetricsRepository,
	events repository.EventRepository,
	alerts repository.AlertRepository,
	listings repository.ListingRepository,
	policy RetentionPolicy,
	log *logger.Logger,
) *RetentionCleanupPlugin {
	return &RetentionCleanupPlugin{
		metrics:  metrics,
		events:   events,
		alerts:   alerts,
		listings: listings,
		policy:   policy,
		log:      log,
	}
}

func (p *RetentionCleanupPlugin) Name() string { return "retention_cleanup" }

func (p *RetentionCleanupPlugin) Run(ctx context.Context) (map[string]interface{}, error) {
	now := time.Now()
	details := make(map[string]interface{})

	if p.policy.MetricsDays > 0 {
		deleted, err := p.metrics.DeleteOlderThan(ctx, now.AddDate(0, 0, -p.policy.MetricsDays))
		if err != nil {
			return details, fmt.Errorf("metrics cleanup failed: %w", err)
		}
		details["metrics_deleted"] = deleted
	}

	if p.policy.EventsDays > 0 {
		deleted, err := p.events.DeleteOlderThan(ctx, now.AddDate(0, 0, -p.policy.EventsDays))
		if err != nil {
			return details, fmt.Errorf("events cleanup failed: %w", err)
		}
		details["events_deleted"] = deleted
	}

	if p.policy.AlertsDays > 0 {
		deleted, err := p.alerts.DeleteResolvedOlderThan(ctx, now.AddDate(0, 0, -p.policy.AlertsDays))
		if err != nil {
			return details, fmt.Errorf("alerts cleanup failed: %w", err)
		}
		details["alerts_deleted"] = deleted
	}

	if p.policy.ListingsDays > 0 {
		deleted, err := p.listings.DeleteOlderThan(ctx, now.AddDate(0, 0, -p.policy.ListingsDays))
		if err != nil {
			return details, fmt.Errorf("listings cleanup failed: %w", err)
		}
		details["listings_deleted"] = deleted
	}

	return details, nil
}
