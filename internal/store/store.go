// Package store provides storage backends for Wednesday.
//
// It persists conversation history, tasks, reminders, contacts, and per-user
// preferences. A SQLite backend is the canonical store, with a PostgreSQL
// variant selected by DSN detection and a mutex-guarded in-memory
// implementation used as a fallback and in tests.
package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wednesday-bot/wednesday/internal/models"
)

// Opts holds configuration options for store implementations.
type Opts struct {
	DSN string
	// MaxMessages caps per-phone conversation history; older entries are evicted.
	MaxMessages int
	// MaxConversations caps the number of distinct tracked conversations.
	// Zero means unlimited. Only the in-memory store enforces it; the SQL
	// backends persist history and have no memory pressure to relieve.
	MaxConversations int
}

// Option defines a configuration option for store construction.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithMaxMessages sets the per-phone conversation history cap.
func WithMaxMessages(n int) Option {
	return func(o *Opts) { o.MaxMessages = n }
}

// WithMaxConversations caps the number of distinct tracked conversations.
func WithMaxConversations(n int) Option {
	return func(o *Opts) { o.MaxConversations = n }
}

// Store is the persistence interface consumed by the webhook pipeline and the
// function handlers. Implementations must be safe for concurrent use.
type Store interface {
	// Conversation history, bounded per phone with FIFO eviction.
	AddConversationMessage(phone string, msg models.ConversationMessage) error
	GetConversationHistory(phone string, limit int) ([]models.ConversationMessage, error)
	ConversationCount() (int, error)
	ClearConversation(phone string) error

	// Tasks.
	CreateTask(t models.Task) error
	ListTasks(phone string, includeCompleted bool) ([]models.Task, error)
	CompleteTask(phone, id string) (*models.Task, error)

	// Reminders.
	CreateReminder(r models.Reminder) error
	ListReminders(phone string, includeNotified bool) ([]models.Reminder, error)
	DueReminders(now time.Time) ([]models.Reminder, error)
	MarkReminderNotified(id string) error

	// Contacts.
	AddContact(c models.Contact) error
	SearchContacts(phone, query string) ([]models.Contact, error)

	// Per-user voice reply preference, default enabled.
	GetVoicePreference(phone string) (bool, error)
	SetVoicePreference(phone string, enabled bool) error

	Close() error
}

// InMemoryStore is a mutex-guarded in-memory implementation of Store.
// Concurrent appends for the same phone are serialized, so history trimming
// stays atomic.
type InMemoryStore struct {
	mu               sync.Mutex
	maxMessages      int
	maxConversations int
	conversations    map[string][]models.ConversationMessage
	lastActive       map[string]time.Time
	tasks            map[string]models.Task
	reminders        map[string]models.Reminder
	contacts         map[string]models.Contact
	voicePrefs       map[string]bool
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore(opts ...Option) *InMemoryStore {
	cfg := Opts{MaxMessages: models.DefaultMaxMessagesPerUser}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = models.DefaultMaxMessagesPerUser
	}
	return &InMemoryStore{
		maxMessages:      cfg.MaxMessages,
		maxConversations: cfg.MaxConversations,
		conversations:    make(map[string][]models.ConversationMessage),
		lastActive:       make(map[string]time.Time),
		tasks:            make(map[string]models.Task),
		reminders:        make(map[string]models.Reminder),
		contacts:         make(map[string]models.Contact),
		voicePrefs:       make(map[string]bool),
	}
}

// AddConversationMessage appends a turn and trims the history to the cap.
// When the conversation cap is set, the least recently active conversation
// is evicted to make room.
func (s *InMemoryStore) AddConversationMessage(phone string, msg models.ConversationMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := append(s.conversations[phone], msg)
	if len(history) > s.maxMessages {
		history = history[len(history)-s.maxMessages:]
	}
	s.conversations[phone] = history
	s.lastActive[phone] = time.Now()

	for s.maxConversations > 0 && len(s.conversations) > s.maxConversations {
		var oldest string
		var oldestAt time.Time
		for p, at := range s.lastActive {
			if p == phone {
				continue
			}
			if oldest == "" || at.Before(oldestAt) {
				oldest, oldestAt = p, at
			}
		}
		if oldest == "" {
			break
		}
		delete(s.conversations, oldest)
		delete(s.lastActive, oldest)
	}
	return nil
}

// GetConversationHistory returns up to limit most recent messages in arrival order.
func (s *InMemoryStore) GetConversationHistory(phone string, limit int) ([]models.ConversationMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := s.conversations[phone]
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	out := make([]models.ConversationMessage, len(history))
	copy(out, history)
	return out, nil
}

// ConversationCount returns the number of phones with any history.
func (s *InMemoryStore) ConversationCount() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations), nil
}

// ClearConversation drops all history for a phone.
func (s *InMemoryStore) ClearConversation(phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, phone)
	delete(s.lastActive, phone)
	return nil
}

// CreateTask stores a new task.
func (s *InMemoryStore) CreateTask(t models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t
	return nil
}

// ListTasks returns tasks for a phone ordered by creation time.
func (s *InMemoryStore) ListTasks(phone string, includeCompleted bool) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Task
	for _, t := range s.tasks {
		if t.Phone != phone {
			continue
		}
		if t.Completed && !includeCompleted {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// CompleteTask marks a task completed and returns it; nil if not found.
func (s *InMemoryStore) CompleteTask(phone, id string) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.Phone != phone {
		return nil, nil
	}
	now := time.Now()
	t.Completed = true
	t.CompletedAt = &now
	s.tasks[id] = t
	return &t, nil
}

// CreateReminder stores a new reminder.
func (s *InMemoryStore) CreateReminder(r models.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reminders[r.ID] = r
	return nil
}

// ListReminders returns reminders for a phone ordered by remind_at.
func (s *InMemoryStore) ListReminders(phone string, includeNotified bool) ([]models.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Reminder
	for _, r := range s.reminders {
		if r.Phone != phone {
			continue
		}
		if r.Notified && !includeNotified {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RemindAt.Before(out[j].RemindAt) })
	return out, nil
}

// DueReminders returns un-notified reminders whose remind_at is at or before now.
func (s *InMemoryStore) DueReminders(now time.Time) ([]models.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Reminder
	for _, r := range s.reminders {
		if !r.Notified && !r.RemindAt.After(now) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RemindAt.Before(out[j].RemindAt) })
	return out, nil
}

// MarkReminderNotified flags a reminder as delivered.
func (s *InMemoryStore) MarkReminderNotified(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.reminders[id]; ok {
		r.Notified = true
		s.reminders[id] = r
	}
	return nil
}

// AddContact stores a contact.
func (s *InMemoryStore) AddContact(c models.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts[c.ID] = c
	return nil
}

// SearchContacts returns contacts for a phone whose name matches query (case-insensitive substring).
func (s *InMemoryStore) SearchContacts(phone, query string) ([]models.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := strings.ToLower(query)
	var out []models.Contact
	for _, c := range s.contacts {
		if c.Phone != phone {
			continue
		}
		if q == "" || strings.Contains(strings.ToLower(c.Name), q) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetVoicePreference returns the stored preference, defaulting to enabled.
func (s *InMemoryStore) GetVoicePreference(phone string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.voicePrefs[phone]; ok {
		return v, nil
	}
	return true, nil
}

// SetVoicePreference stores the per-user voice reply toggle.
func (s *InMemoryStore) SetVoicePreference(phone string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voicePrefs[phone] = enabled
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
