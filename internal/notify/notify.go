// Package notify publishes batch-completed events. Every target is best-effort: a failed
// notification is logged and never fails the job that produced it.
package notify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/aradaody/defi-technique/internal/config"
)

// Event statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// BatchCompleted end-of-run summary of a loader job.
type BatchCompleted struct {
	Job         string         `json:"job"` // "patients" or "documents"
	RunID       string         `json:"run_id"`
	UploadID    int            `json:"upload_id"`
	LoadDate    string         `json:"load_date"`
	Status      string         `json:"status"`
	Error       string         `json:"error,omitempty"`
	Counts      map[string]int `json:"counts"`
	ErrorReport string         `json:"error_report,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
}

// Notifier delivers an event to one target.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, event *BatchCompleted) error
	Close() error
}

// Multi fans an event out to every configured notifier.
type Multi struct {
	notifiers []Notifier
	logger    *zap.Logger
}

func NewMulti(logger *zap.Logger, notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers, logger: logger}
}

// New builds the notifiers enabled in cfg. A target that cannot be reached at startup is
// logged and left out.
func New(cfg *config.NotifyConfig, logger *zap.Logger) *Multi {
	m := NewMulti(logger)

	if cfg.RedisAddr != "" {
		m.Add(NewRedisStreamNotifier(cfg))
	}
	if cfg.MQTTBroker != "" {
		n, err := NewMQTTNotifier(cfg)
		if err != nil {
			logger.Warn("MQTT notifier disabled", zap.String("broker", cfg.MQTTBroker), zap.Error(err))
		} else {
			m.Add(n)
		}
	}
	if cfg.WebhookURL != "" {
		m.Add(NewWebhookNotifier(cfg.WebhookURL, cfg.WebhookTimeout))
	}
	return m
}

// Add appends a notifier.
func (m *Multi) Add(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Len number of notifiers.
func (m *Multi) Len() int {
	return len(m.notifiers)
}

func (m *Multi) Name() string { return "multi" }

// Notify sends to every notifier, even after a failure. The joined error is returned for
// callers that want it; the failures are already logged.
func (m *Multi) Notify(ctx context.Context, event *BatchCompleted) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, event); err != nil {
			m.logger.Warn("Failed to publish batch event",
				zap.String("notifier", n.Name()),
				zap.String("job", event.Job),
				zap.String("run_id", event.RunID),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Close() error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
