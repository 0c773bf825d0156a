package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mentorlab/mentorbot/internal/gateway"
	"github.com/mentorlab/mentorbot/internal/joblock"
	"github.com/mentorlab/mentorbot/internal/storage"
)

const (
	// retryBatchSize limits how many queued messages one drain pass
	// re-attempts. Each item gets exactly one retry; a second failure
	// drops the message.
	retryBatchSize = 5

	// Users silent for longer than this get a nudge.
	inactivityCutoff = 3 * 24 * time.Hour

	// Reminders only go out between these local hours.
	reminderWindowStart = 8
	reminderWindowEnd   = 21

	reportWindow      = 24 * time.Hour
	maxReportedErrors = 10

	retentionPeriod = 30 * 24 * time.Hour
)

// Store is the database surface the jobs depend on. Implemented by
// storage.Store.
type Store interface {
	InactiveUsersSince(cutoff time.Time) ([]storage.InactiveUser, error)
	DequeueRetryBatch(limit int) ([]storage.RetryItem, error)
	RetryQueueLength() (int, error)
	LogHealth(component, status, message string) error
	ErrorsSince(cutoff time.Time) ([]storage.HealthEvent, error)
	CountSuggestions() (int, error)
	DeleteLogsBefore(cutoff time.Time) (int64, error)
}

// Notifier is best-effort delivery. Implemented by gateway.SafeSender.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string, opts *gateway.SendOptions) gateway.SendResult
}

// ContentImporter pulls fresh articles into the knowledge base.
// Implemented by ingest.Importer.
type ContentImporter interface {
	Run(ctx context.Context) (fetched, added int, err error)
}

// Jobs holds the dependencies shared by the periodic job bodies.
type Jobs struct {
	store    Store
	notifier Notifier
	direct   gateway.Sender
	importer ContentImporter
	locks    *joblock.Registry
	admins   []int64
	logger   *slog.Logger
	now      func() time.Time
}

// NewJobs wires the job bodies. direct is used by the retry drain so a
// failed retry does not re-queue itself; everything else sends through
// notifier. admins receive reports and may be empty.
func NewJobs(store Store, notifier Notifier, direct gateway.Sender, importer ContentImporter, locks *joblock.Registry, admins []int64) *Jobs {
	return &Jobs{
		store:    store,
		notifier: notifier,
		direct:   direct,
		importer: importer,
		locks:    locks,
		admins:   admins,
		logger:   slog.Default(),
		now:      time.Now,
	}
}

// Intervals configures how often each job runs.
type Intervals struct {
	Reminder   time.Duration
	RetryDrain time.Duration
	Heartbeat  time.Duration
	Ingestion  time.Duration
	Report     time.Duration
	Cleanup    time.Duration
}

// DefaultIntervals returns the standard schedule.
func DefaultIntervals() Intervals {
	return Intervals{
		Reminder:   24 * time.Hour,
		RetryDrain: 10 * time.Minute,
		Heartbeat:  time.Hour,
		Ingestion:  6 * time.Hour,
		Report:     24 * time.Hour,
		Cleanup:    24 * time.Hour,
	}
}

// All returns every job wired to its interval, ready for a Scheduler.
func (j *Jobs) All(iv Intervals) []Job {
	return []Job{
		{Name: "reminder_sweep", Interval: iv.Reminder, Run: j.ReminderSweep},
		{Name: "retry_drain", Interval: iv.RetryDrain, Run: j.RetryDrain},
		{Name: "heartbeat", Interval: iv.Heartbeat, Run: j.Heartbeat},
		{Name: "content_ingestion", Interval: iv.Ingestion, Run: j.ContentIngestion},
		{Name: "admin_report", Interval: iv.Report, Run: j.AdminReport},
		{Name: "retention_cleanup", Interval: iv.Cleanup, Run: j.RetentionCleanup},
	}
}

// ReminderSweep nudges users who have been silent for a few days. Sends
// are suppressed outside the daytime window so nobody gets pinged at 3am.
func (j *Jobs) ReminderSweep(ctx context.Context) error {
	return j.locks.Do("reminder_sweep", func() error {
		now := j.now()
		if now.Hour() < reminderWindowStart || now.Hour() >= reminderWindowEnd {
			j.logger.Debug("reminder sweep outside send window, skipping")
			return nil
		}

		users, err := j.store.InactiveUsersSince(now.Add(-inactivityCutoff))
		if err != nil {
			return fmt.Errorf("listing inactive users: %w", err)
		}

		for _, u := range users {
			j.notifier.Send(ctx, u.UserID, reminderText(u.Username), nil)
		}
		if len(users) > 0 {
			j.logger.Info("sent inactivity reminders", "count", len(users))
		}
		return nil
	})
}

// RetryDrain re-attempts a batch of queued messages. Delivery goes through
// the raw sender: a message that fails its retry is dropped, not re-queued.
func (j *Jobs) RetryDrain(ctx context.Context) error {
	items, err := j.store.DequeueRetryBatch(retryBatchSize)
	if err != nil {
		return fmt.Errorf("dequeuing retry batch: %w", err)
	}
	if len(items) == 0 {
		return nil
	}

	delivered := 0
	for _, item := range items {
		if err := j.direct.SendMessage(ctx, item.ChatID, item.Text, nil); err != nil {
			j.logger.Warn("retry delivery failed, dropping message",
				"chat_id", item.ChatID, "error", err)
			continue
		}
		delivered++
	}

	j.logger.Info("drained retry queue", "batch", len(items), "delivered", delivered)
	return nil
}

// Heartbeat records a liveness event so the health log shows the loop is up.
func (j *Jobs) Heartbeat(ctx context.Context) error {
	pending, err := j.store.RetryQueueLength()
	if err != nil {
		return fmt.Errorf("reading retry queue length: %w", err)
	}

	msg := fmt.Sprintf("alive, %d queued retries", pending)
	if err := j.store.LogHealth("bot", storage.StatusAlive, msg); err != nil {
		return fmt.Errorf("recording heartbeat: %w", err)
	}
	return nil
}

// ContentIngestion runs the importer under its lock. A failed run bubbles
// the error up so the scheduler records it and the next admin report sees
// it.
func (j *Jobs) ContentIngestion(ctx context.Context) error {
	return j.locks.Do("content_ingestion", func() error {
		fetched, added, err := j.importer.Run(ctx)
		if err != nil {
			return fmt.Errorf("running import: %w", err)
		}

		j.logger.Info("content ingestion finished", "fetched", fetched, "added", added)
		return nil
	})
}

// AdminReport sends administrators a summary of the last day: knowledge
// base size plus any ERROR events.
func (j *Jobs) AdminReport(ctx context.Context) error {
	now := j.now()

	errs, err := j.store.ErrorsSince(now.Add(-reportWindow))
	if err != nil {
		return fmt.Errorf("collecting error events: %w", err)
	}
	count, err := j.store.CountSuggestions()
	if err != nil {
		return fmt.Errorf("counting suggestions: %w", err)
	}

	text := reportText(errs, count)
	if len(j.admins) == 0 {
		j.logger.Info("no admins configured, report logged only", "errors", len(errs), "suggestions", count)
		return nil
	}

	for _, admin := range j.admins {
		j.notifier.Send(ctx, admin, text, nil)
	}
	return nil
}

// RetentionCleanup deletes message logs and health events older than the
// retention period and tells the admins what was removed.
func (j *Jobs) RetentionCleanup(ctx context.Context) error {
	deleted, err := j.store.DeleteLogsBefore(j.now().Add(-retentionPeriod))
	if err != nil {
		return fmt.Errorf("deleting old logs: %w", err)
	}

	j.logger.Info("retention cleanup finished", "deleted", deleted)
	if deleted == 0 {
		return nil
	}

	text := fmt.Sprintf("🧹 Cleanup removed %d log records older than 30 days.", deleted)
	for _, admin := range j.admins {
		j.notifier.Send(ctx, admin, text, nil)
	}
	return nil
}

func reminderText(username string) string {
	name := username
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("👋 Hi %s! It's been a few days since your last question. Anything I can help you with today?", name)
}

func reportText(errs []storage.HealthEvent, suggestions int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 Daily status report\n\n")
	fmt.Fprintf(&sb, "Knowledge base: %d suggestions\n", suggestions)
	fmt.Fprintf(&sb, "Errors in the last 24h: %d\n", len(errs))

	for i, ev := range errs {
		if i == maxReportedErrors {
			fmt.Fprintf(&sb, "…and %d more\n", len(errs)-maxReportedErrors)
			break
		}
		fmt.Fprintf(&sb, "- [%s] %s: %s\n", ev.CreatedAt.Format("15:04"), ev.Component, ev.Message)
	}
	return sb.String()
}
