package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/wednesday-bot/wednesday/internal/messaging"
	"github.com/wednesday-bot/wednesday/internal/store"
)

// Default schedules for the background jobs.
const (
	// DefaultReminderPollExpr is how often due reminders are checked.
	DefaultReminderPollExpr = "@every 45s"
	// DefaultKeepAliveExpr is how often the gateway session is pinged.
	DefaultKeepAliveExpr = "@every 10m"
	// deliveryTimeout bounds a single reminder send.
	deliveryTimeout = 30 * time.Second
)

// ReminderNotifier polls the store for due reminders and delivers them.
type ReminderNotifier struct {
	st     store.Store
	sender messaging.Sender
	now    func() time.Time
}

// NewReminderNotifier creates a reminder notifier.
func NewReminderNotifier(st store.Store, sender messaging.Sender) *ReminderNotifier {
	return &ReminderNotifier{st: st, sender: sender, now: time.Now}
}

// Run delivers every due, unnotified reminder. A reminder is marked notified
// only after a successful send so failed deliveries are retried on the next
// poll.
func (n *ReminderNotifier) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	due, err := n.st.DueReminders(n.now())
	if err != nil {
		slog.Error("ReminderNotifier could not load due reminders", "error", err)
		return
	}
	for _, r := range due {
		text := "⏰ Reminder: " + r.Message
		if err := n.sender.SendText(ctx, r.Phone, text); err != nil {
			slog.Error("ReminderNotifier delivery failed, will retry", "error", err, "reminder_id", r.ID, "phone", r.Phone)
			continue
		}
		if err := n.st.MarkReminderNotified(r.ID); err != nil {
			slog.Error("ReminderNotifier could not mark reminder notified", "error", err, "reminder_id", r.ID)
			continue
		}
		slog.Info("ReminderNotifier delivered reminder", "reminder_id", r.ID, "phone", r.Phone)
	}
}

// Register schedules the notifier on the given scheduler.
func (n *ReminderNotifier) Register(s *Scheduler, expr string) error {
	if expr == "" {
		expr = DefaultReminderPollExpr
	}
	return s.AddJob(expr, n.Run)
}

// RegisterKeepAlive schedules a periodic connectivity probe; the probe itself
// re-creates a missing gateway session as a side effect.
func RegisterKeepAlive(s *Scheduler, sender messaging.Sender, expr string) error {
	if expr == "" {
		expr = DefaultKeepAliveExpr
	}
	return s.AddJob(expr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		defer cancel()
		if !sender.Connected(ctx) {
			slog.Warn("keepalive probe found transport disconnected")
		}
	})
}
