// Package store provides storage backends for Wednesday.
//
// This file implements the PostgreSQL-backed store variant.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/wednesday-bot/wednesday/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants.
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database.
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool.
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused.
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore implements Store on a PostgreSQL database.
type PostgresStore struct {
	db          *sql.DB
	maxMessages int
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	cfg := Opts{MaxMessages: models.DefaultMaxMessagesPerUser}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = models.DefaultMaxMessagesPerUser
	}
	return &PostgresStore{db: db, maxMessages: cfg.MaxMessages}, nil
}

// AddConversationMessage appends a turn and evicts the oldest rows past the cap.
func (s *PostgresStore) AddConversationMessage(phone string, msg models.ConversationMessage) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin conversation append: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO conversation_messages (phone, role, content, timestamp) VALUES ($1, $2, $3, $4)`,
		phone, msg.Role, msg.Content, msg.Timestamp,
	); err != nil {
		slog.Error("PostgresStore AddConversationMessage insert failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to insert conversation message: %w", err)
	}

	if _, err := tx.Exec(
		`DELETE FROM conversation_messages WHERE phone = $1 AND id NOT IN (
			SELECT id FROM conversation_messages WHERE phone = $1 ORDER BY id DESC LIMIT $2
		)`,
		phone, s.maxMessages,
	); err != nil {
		slog.Error("PostgresStore conversation trim failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to trim conversation: %w", err)
	}

	return tx.Commit()
}

// GetConversationHistory returns up to limit most recent messages in arrival order.
func (s *PostgresStore) GetConversationHistory(phone string, limit int) ([]models.ConversationMessage, error) {
	if limit <= 0 {
		limit = s.maxMessages
	}
	rows, err := s.db.Query(
		`SELECT role, content, timestamp FROM (
			SELECT id, role, content, timestamp FROM conversation_messages
			WHERE phone = $1 ORDER BY id DESC LIMIT $2
		) recent ORDER BY id ASC`,
		phone, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation history: %w", err)
	}
	defer rows.Close()

	var history []models.ConversationMessage
	for rows.Next() {
		var m models.ConversationMessage
		if err := rows.Scan(&m.Role, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		history = append(history, m)
	}
	return history, rows.Err()
}

// ConversationCount returns the number of distinct phones with history.
func (s *PostgresStore) ConversationCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(DISTINCT phone) FROM conversation_messages`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count conversations: %w", err)
	}
	return n, nil
}

// ClearConversation drops all history for a phone.
func (s *PostgresStore) ClearConversation(phone string) error {
	_, err := s.db.Exec(`DELETE FROM conversation_messages WHERE phone = $1`, phone)
	if err != nil {
		return fmt.Errorf("failed to clear conversation for %s: %w", phone, err)
	}
	return nil
}

// CreateTask inserts a new task row; tags are JSON-encoded.
func (s *PostgresStore) CreateTask(t models.Task) error {
	tags, err := json.Marshal(t.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode task tags: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO tasks (id, phone, title, description, due_date, priority, completed, created_at, completed_at, tags)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.Phone, t.Title, nilIfEmpty(t.Description), t.DueDate, t.Priority, t.Completed, t.CreatedAt, t.CompletedAt, string(tags),
	)
	if err != nil {
		slog.Error("PostgresStore CreateTask failed", "error", err, "id", t.ID)
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// ListTasks returns tasks for a phone ordered by creation time.
func (s *PostgresStore) ListTasks(phone string, includeCompleted bool) ([]models.Task, error) {
	query := `SELECT id, phone, title, description, due_date, priority, completed, created_at, completed_at, tags
		FROM tasks WHERE phone = $1`
	if !includeCompleted {
		query += ` AND NOT completed`
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.Query(query, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// CompleteTask marks a task completed and returns it; nil if not found.
func (s *PostgresStore) CompleteTask(phone, id string) (*models.Task, error) {
	now := time.Now()
	res, err := s.db.Exec(
		`UPDATE tasks SET completed = TRUE, completed_at = $1 WHERE id = $2 AND phone = $3`,
		now, id, phone,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to complete task %s: %w", id, err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return nil, nil
	}

	rows, err := s.db.Query(
		`SELECT id, phone, title, description, due_date, priority, completed, created_at, completed_at, tags
		 FROM tasks WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload task %s: %w", id, err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	t, err := scanTask(rows)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateReminder inserts a new reminder row.
func (s *PostgresStore) CreateReminder(r models.Reminder) error {
	_, err := s.db.Exec(
		`INSERT INTO reminders (id, phone, message, remind_at, notified, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.Phone, r.Message, r.RemindAt, r.Notified, r.CreatedAt,
	)
	if err != nil {
		slog.Error("PostgresStore CreateReminder failed", "error", err, "id", r.ID)
		return fmt.Errorf("failed to insert reminder: %w", err)
	}
	return nil
}

// ListReminders returns reminders for a phone ordered by remind_at.
func (s *PostgresStore) ListReminders(phone string, includeNotified bool) ([]models.Reminder, error) {
	query := `SELECT id, phone, message, remind_at, notified, created_at FROM reminders WHERE phone = $1`
	if !includeNotified {
		query += ` AND NOT notified`
	}
	query += ` ORDER BY remind_at ASC`

	rows, err := s.db.Query(query, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer rows.Close()
	return collectReminders(rows)
}

// DueReminders returns un-notified reminders due at or before now.
func (s *PostgresStore) DueReminders(now time.Time) ([]models.Reminder, error) {
	rows, err := s.db.Query(
		`SELECT id, phone, message, remind_at, notified, created_at
		 FROM reminders WHERE NOT notified AND remind_at <= $1 ORDER BY remind_at ASC`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due reminders: %w", err)
	}
	defer rows.Close()
	return collectReminders(rows)
}

// MarkReminderNotified flags a reminder as delivered.
func (s *PostgresStore) MarkReminderNotified(id string) error {
	_, err := s.db.Exec(`UPDATE reminders SET notified = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark reminder %s notified: %w", id, err)
	}
	return nil
}

// AddContact inserts a contact row.
func (s *PostgresStore) AddContact(c models.Contact) error {
	_, err := s.db.Exec(
		`INSERT INTO contacts (id, phone, name, email, cell) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.Phone, c.Name, nilIfEmpty(c.Email), nilIfEmpty(c.Cell),
	)
	if err != nil {
		return fmt.Errorf("failed to insert contact: %w", err)
	}
	return nil
}

// SearchContacts returns contacts matching the query by name substring.
func (s *PostgresStore) SearchContacts(phone, query string) ([]models.Contact, error) {
	rows, err := s.db.Query(
		`SELECT id, phone, name, email, cell FROM contacts
		 WHERE phone = $1 AND name ILIKE '%' || $2 || '%' ORDER BY name ASC`,
		phone, query,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}
	defer rows.Close()

	var contacts []models.Contact
	for rows.Next() {
		var c models.Contact
		var email, cell sql.NullString
		if err := rows.Scan(&c.ID, &c.Phone, &c.Name, &email, &cell); err != nil {
			return nil, fmt.Errorf("failed to scan contact row: %w", err)
		}
		c.Email = email.String
		c.Cell = cell.String
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// GetVoicePreference returns the stored preference, defaulting to enabled.
func (s *PostgresStore) GetVoicePreference(phone string) (bool, error) {
	var enabled bool
	err := s.db.QueryRow(`SELECT voice_replies FROM user_preferences WHERE phone = $1`, phone).Scan(&enabled)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return true, fmt.Errorf("failed to query voice preference: %w", err)
	}
	return enabled, nil
}

// SetVoicePreference upserts the per-user voice reply toggle.
func (s *PostgresStore) SetVoicePreference(phone string, enabled bool) error {
	_, err := s.db.Exec(
		`INSERT INTO user_preferences (phone, voice_replies) VALUES ($1, $2)
		 ON CONFLICT (phone) DO UPDATE SET voice_replies = EXCLUDED.voice_replies`,
		phone, enabled,
	)
	if err != nil {
		return fmt.Errorf("failed to set voice preference: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
