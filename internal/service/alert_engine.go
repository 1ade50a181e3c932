package service

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/propwatch/propwatch/internal/models"
	"github.com/propwatch/propwatch/internal/repository"
	"github.com/propwatch/propwatch/pkg/logger"
)

// AlertCreator turns a triggered rule into a stored (and dispatched) alert.
// The bool reports whether a new alert was actually inserted; a deduplicated
// hit returns the existing alert and false.
type AlertCreator interface {
	CreateAlert(ctx context.Context, input CreateAlertInput) (*models.Alert, bool, error)
}

// CreateAlertInput is the payload for creating an alert, either from a rule
// or manually via the API.
type CreateAlertInput struct {
	AlertType string
	Severity  models.Severity
	Component string
	Message   string
	Details   map[string]interface{}
	RuleID    *primitive.ObjectID
}

// AlertEngine periodically evaluates enabled alert rules. A failing rule is
// logged and skipped; it never aborts the pass.
type AlertEngine struct {
	rules    repository.RuleRepository
	events   repository.EventRepository
	source   MetricSource
	alerts   AlertCreator
	log      *logger.Logger
	interval time.Duration
	now      func() time.Time
}

func NewAlertEngine(
	rules repository.RuleRepository,
	events repository.EventRepository,
	source MetricSource,
	alerts AlertCreator,
	log *logger.Logger,
	interval time.Duration,
) *AlertEngine {
	return &AlertEngine{
		rules:    rules,
		events:   events,
		source:   source,
		alerts:   alerts,
		log:      log,
		interval: interval,
		now:      time.Now,
	}
}

// Run evaluates rules on a fixed interval until ctx is cancelled.
func (e *AlertEngine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	if _, err := e.CheckAlertRules(ctx); err != nil {
		e.log.WithError(err).Error("Failed initial alert check")
	}

	for {
		select {
		case <-ticker.C:
			start := e.now()
			if _, err := e.CheckAlertRules(ctx); err != nil {
				e.log.WithError(err).Error("Failed to check alert rules")
			} else {
				alertCheckDuration.Observe(time.Since(start).Seconds())
			}
		case <-ctx.Done():
			e.log.Info("Stopping alert engine")
			return
		}
	}
}

// CheckAlertRules evaluates every enabled rule once and returns the number of
// alerts created.
func (e *AlertEngine) CheckAlertRules(ctx context.Context) (int, error) {
	rules, err := e.rules.GetEnabled(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load rules: %w", err)
	}

	created := 0
	now := e.now()

	for i := range rules {
		rule := rules[i]

		if rule.LastTriggered != nil &&
			now.Sub(*rule.LastTriggered) < time.Duration(rule.CooldownMinutes)*time.Minute {
			continue
		}

		triggered, message, details, err := e.evaluate(ctx, &rule, now)
		if err != nil {
			ruleEvaluationErrors.WithLabelValues(rule.Name).Inc()
			e.log.WithError(err).WithField("rule", rule.Name).Error("Rule evaluation failed")
			continue
		}
		if !triggered {
			continue
		}

		ruleID := rule.ID
		_, createdNew, err := e.alerts.CreateAlert(ctx, CreateAlertInput{
			AlertType: rule.AlertType,
			Severity:  rule.Severity,
			Component: rule.Component,
			Message:   message,
			Details:   details,
			RuleID:    &ruleID,
		})
		if err != nil {
			e.log.WithError(err).WithField("rule", rule.Name).Error("Failed to create alert")
			continue
		}
		if !createdNew {
			// Deduplicated against an existing active alert. The rule did not
			// fire, so its cooldown must not arm.
			continue
		}

		if err := e.rules.SetLastTriggered(ctx, rule.ID, now); err != nil {
			e.log.WithError(err).WithField("rule", rule.Name).Error("Failed to update last_triggered")
		}

		created++
		e.log.WithFields(logger.Fields{
			"rule":     rule.Name,
			"severity": rule.Severity,
			"type":     rule.AlertType,
		}).Warn("Alert rule triggered")
	}

	return created, nil
}

func (e *AlertEngine) evaluate(ctx context.Context, rule *models.AlertRule, now time.Time) (bool, string, map[string]interface{}, error) {
	switch rule.Condition.Type {
	case models.ConditionThreshold:
		return e.evaluateThreshold(ctx, rule)
	case models.ConditionFrequency:
		return e.evaluateFrequency(ctx, rule, now)
	case models.ConditionPattern:
		return e.evaluatePattern(ctx, rule, now)
	default:
		return false, "", nil, fmt.Errorf("unknown condition type %q", rule.Condition.Type)
	}
}

func (e *AlertEngine) evaluateThreshold(ctx context.Context, rule *models.AlertRule) (bool, string, map[string]interface{}, error) {
	cond := rule.Condition.Threshold
	if cond == nil {
		return false, "", nil, fmt.Errorf("threshold condition missing payload")
	}

	value, err := e.source.LatestValue(ctx, cond.MetricName, rule.Component)
	if err == ErrNoValue {
		// A metric that was never recorded cannot breach a threshold.
		return false, "", nil, nil
	}
	if err != nil {
		return false, "", nil, err
	}

	if !compareThreshold(value, cond.Operator, cond.Threshold) {
		return false, "", nil, nil
	}

	message := fmt.Sprintf("%s is %.2f (%s %.2f)", cond.MetricName, value, cond.Operator, cond.Threshold)
	details := map[string]interface{}{
		"metric_name":   cond.MetricName,
		"current_value": value,
		"operator":      cond.Operator,
		"threshold":     cond.Threshold,
	}
	return true, message, details, nil
}

func (e *AlertEngine) evaluateFrequency(ctx context.Context, rule *models.AlertRule, now time.Time) (bool, string, map[string]interface{}, error) {
	cond := rule.Condition.Frequency
	if cond == nil {
		return false, "", nil, fmt.Errorf("frequency condition missing payload")
	}

	since := now.Add(-time.Duration(cond.PeriodMinutes) * time.Minute)
	count, err := e.events.CountSince(ctx, cond.EventType, rule.Component, since)
	if err != nil {
		return false, "", nil, err
	}

	if count < cond.Count {
		return false, "", nil, nil
	}

	message := fmt.Sprintf("%d %s events in the last %d minutes (limit %d)",
		count, cond.EventType, cond.PeriodMinutes, cond.Count)
	details := map[string]interface{}{
		"event_type":     cond.EventType,
		"count":          count,
		"period_minutes": cond.PeriodMinutes,
		"limit":          cond.Count,
	}
	return true, message, details, nil
}

// evaluatePattern scans recent event messages for a regexp match. The window
// defaults to the engine interval doubled so a slow pass cannot miss events.
func (e *AlertEngine) evaluatePattern(ctx context.Context, rule *models.AlertRule, now time.Time) (bool, string, map[string]interface{}, error) {
	cond := rule.Condition.Pattern
	if cond == nil {
		return false, "", nil, fmt.Errorf("pattern condition missing payload")
	}

	re, err := regexp.Compile(cond.Pattern)
	if err != nil {
		return false, "", nil, fmt.Errorf("invalid pattern: %w", err)
	}

	since := now.Add(-2 * e.interval)
	events, err := e.events.Recent(ctx, cond.Source, since, 0)
	if err != nil {
		return false, "", nil, err
	}

	for _, event := range events {
		if re.MatchString(event.Message) {
			message := fmt.Sprintf("pattern %q matched event: %s", cond.Pattern, event.Message)
			details := map[string]interface{}{
				"pattern":       cond.Pattern,
				"matched_event": event.Message,
				"event_type":    event.Type,
			}
			return true, message, details, nil
		}
	}
	return false, "", nil, nil
}

func compareThreshold(value float64, operator string, threshold float64) bool {
	switch operator {
	case ">":
		return value > threshold
	case ">=":
		return value >= threshold
	case "<":
		return value < threshold
	case "<=":
		return value <= threshold
	case "==":
		return value == threshold
	case "!=":
		return value != threshold
	default:
		return false
	}
}
