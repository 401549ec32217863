// Package recovery handles application restarts gracefully. Components
// register their own recovery logic and the manager runs them all during
// startup, before the server begins accepting traffic.
package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/wednesday-bot/wednesday/internal/store"
)

// Recoverable defines the interface for components that can recover their state.
type Recoverable interface {
	// RecoverState is called during application startup to restore component state.
	RecoverState(ctx context.Context) error
}

// Manager orchestrates recovery of all registered components.
type Manager struct {
	recoverables []Recoverable
}

// NewManager creates a recovery manager.
func NewManager() *Manager {
	return &Manager{recoverables: make([]Recoverable, 0)}
}

// Register adds a component that can be recovered.
func (m *Manager) Register(r Recoverable) {
	m.recoverables = append(m.recoverables, r)
}

// RecoverAll performs recovery of all registered components.
func (m *Manager) RecoverAll(ctx context.Context) error {
	slog.Info("Starting application recovery", "components", len(m.recoverables))

	recoveredCount := 0
	errorCount := 0

	for _, recoverable := range m.recoverables {
		if err := recoverable.RecoverState(ctx); err != nil {
			slog.Error("Component recovery failed", "error", err, "component", fmt.Sprintf("%T", recoverable))
			errorCount++
			continue
		}
		recoveredCount++
	}

	slog.Info("Application recovery completed", "recovered", recoveredCount, "errors", errorCount)

	if errorCount > 0 {
		return fmt.Errorf("recovery completed with %d errors out of %d components", errorCount, len(m.recoverables))
	}
	return nil
}

// StaleAudioCleaner removes temp audio files left behind by a previous run
// that was killed mid-pipeline.
type StaleAudioCleaner struct {
	dir string
}

// NewStaleAudioCleaner creates a cleaner over the given temp directory,
// defaulting to os.TempDir.
func NewStaleAudioCleaner(dir string) *StaleAudioCleaner {
	if dir == "" {
		dir = os.TempDir()
	}
	return &StaleAudioCleaner{dir: dir}
}

// RecoverState deletes leftover voice temp files from earlier runs.
func (c *StaleAudioCleaner) RecoverState(ctx context.Context) error {
	removed := 0
	for _, pattern := range []string{"wednesday-voice-*", "wednesday-tts-*"} {
		matches, err := filepath.Glob(filepath.Join(c.dir, pattern))
		if err != nil {
			return fmt.Errorf("failed to scan temp audio files: %w", err)
		}
		for _, path := range matches {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				slog.Warn("Could not remove stale audio file", "error", err, "file", path)
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		slog.Info("Removed stale temp audio files", "count", removed)
	}
	return nil
}

// ReminderBacklog surfaces reminders that came due while the service was
// down. Delivery itself is left to the scheduler's poll, which picks up
// overdue reminders on its first run.
type ReminderBacklog struct {
	st  store.Store
	now func() time.Time
}

// NewReminderBacklog creates a backlog reporter over the store.
func NewReminderBacklog(st store.Store) *ReminderBacklog {
	return &ReminderBacklog{st: st, now: time.Now}
}

// RecoverState reports how many reminders are overdue and undelivered.
func (b *ReminderBacklog) RecoverState(ctx context.Context) error {
	due, err := b.st.DueReminders(b.now())
	if err != nil {
		return fmt.Errorf("failed to load reminder backlog: %w", err)
	}
	if len(due) > 0 {
		slog.Info("Reminder backlog found, will deliver on next poll", "count", len(due))
	}
	return nil
}
