// Package store provides storage backends for Wednesday.
//
// This file implements the SQLite-backed store, the canonical persistence layer.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/wednesday-bot/wednesday/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore implements Store on a single SQLite database file.
type SQLiteStore struct {
	db          *sql.DB
	maxMessages int
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	cfg := Opts{MaxMessages: models.DefaultMaxMessagesPerUser}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "", "max_messages", cfg.MaxMessages)

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = models.DefaultMaxMessagesPerUser
	}
	return &SQLiteStore{db: db, maxMessages: cfg.MaxMessages}, nil
}

// AddConversationMessage appends a turn and evicts the oldest rows past the cap.
func (s *SQLiteStore) AddConversationMessage(phone string, msg models.ConversationMessage) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin conversation append: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO conversation_messages (phone, role, content, timestamp) VALUES (?, ?, ?, ?)`,
		phone, msg.Role, msg.Content, msg.Timestamp,
	); err != nil {
		slog.Error("SQLiteStore AddConversationMessage insert failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to insert conversation message: %w", err)
	}

	// FIFO eviction: keep only the newest maxMessages rows per phone.
	if _, err := tx.Exec(
		`DELETE FROM conversation_messages WHERE phone = ? AND id NOT IN (
			SELECT id FROM conversation_messages WHERE phone = ? ORDER BY id DESC LIMIT ?
		)`,
		phone, phone, s.maxMessages,
	); err != nil {
		slog.Error("SQLiteStore conversation trim failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to trim conversation: %w", err)
	}

	return tx.Commit()
}

// GetConversationHistory returns up to limit most recent messages in arrival order.
func (s *SQLiteStore) GetConversationHistory(phone string, limit int) ([]models.ConversationMessage, error) {
	if limit <= 0 {
		limit = s.maxMessages
	}
	rows, err := s.db.Query(
		`SELECT role, content, timestamp FROM (
			SELECT id, role, content, timestamp FROM conversation_messages
			WHERE phone = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`,
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
func (s *SQLiteStore) ConversationCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(DISTINCT phone) FROM conversation_messages`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count conversations: %w", err)
	}
	return n, nil
}

// ClearConversation drops all history for a phone.
func (s *SQLiteStore) ClearConversation(phone string) error {
	_, err := s.db.Exec(`DELETE FROM conversation_messages WHERE phone = ?`, phone)
	if err != nil {
		return fmt.Errorf("failed to clear conversation for %s: %w", phone, err)
	}
	return nil
}

// CreateTask inserts a new task row; tags are JSON-encoded.
func (s *SQLiteStore) CreateTask(t models.Task) error {
	tags, err := json.Marshal(t.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode task tags: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO tasks (id, phone, title, description, due_date, priority, completed, created_at, completed_at, tags)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Phone, t.Title, nilIfEmpty(t.Description), t.DueDate, t.Priority, t.Completed, t.CreatedAt, t.CompletedAt, string(tags),
	)
	if err != nil {
		slog.Error("SQLiteStore CreateTask failed", "error", err, "id", t.ID)
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// ListTasks returns tasks for a phone ordered by creation time.
func (s *SQLiteStore) ListTasks(phone string, includeCompleted bool) ([]models.Task, error) {
	query := `SELECT id, phone, title, description, due_date, priority, completed, created_at, completed_at, tags
		FROM tasks WHERE phone = ?`
	if !includeCompleted {
		query += ` AND completed = 0`
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
func (s *SQLiteStore) CompleteTask(phone, id string) (*models.Task, error) {
	now := time.Now()
	res, err := s.db.Exec(
		`UPDATE tasks SET completed = 1, completed_at = ? WHERE id = ? AND phone = ?`,
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
		 FROM tasks WHERE id = ?`, id)
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

func scanTask(rows *sql.Rows) (models.Task, error) {
	var t models.Task
	var description, tags sql.NullString
	var dueDate, completedAt sql.NullTime
	if err := rows.Scan(&t.ID, &t.Phone, &t.Title, &description, &dueDate, &t.Priority, &t.Completed, &t.CreatedAt, &completedAt, &tags); err != nil {
		return t, fmt.Errorf("failed to scan task row: %w", err)
	}
	t.Description = description.String
	if dueDate.Valid {
		t.DueDate = &dueDate.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &t.Tags); err != nil {
			slog.Warn("SQLiteStore could not decode task tags", "error", err, "id", t.ID)
		}
	}
	return t, nil
}

// CreateReminder inserts a new reminder row.
func (s *SQLiteStore) CreateReminder(r models.Reminder) error {
	_, err := s.db.Exec(
		`INSERT INTO reminders (id, phone, message, remind_at, notified, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Phone, r.Message, r.RemindAt, r.Notified, r.CreatedAt,
	)
	if err != nil {
		slog.Error("SQLiteStore CreateReminder failed", "error", err, "id", r.ID)
		return fmt.Errorf("failed to insert reminder: %w", err)
	}
	return nil
}

// ListReminders returns reminders for a phone ordered by remind_at.
func (s *SQLiteStore) ListReminders(phone string, includeNotified bool) ([]models.Reminder, error) {
	query := `SELECT id, phone, message, remind_at, notified, created_at FROM reminders WHERE phone = ?`
	if !includeNotified {
		query += ` AND notified = 0`
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
func (s *SQLiteStore) DueReminders(now time.Time) ([]models.Reminder, error) {
	rows, err := s.db.Query(
		`SELECT id, phone, message, remind_at, notified, created_at
		 FROM reminders WHERE notified = 0 AND remind_at <= ? ORDER BY remind_at ASC`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due reminders: %w", err)
	}
	defer rows.Close()
	return collectReminders(rows)
}

func collectReminders(rows *sql.Rows) ([]models.Reminder, error) {
	var reminders []models.Reminder
	for rows.Next() {
		var r models.Reminder
		if err := rows.Scan(&r.ID, &r.Phone, &r.Message, &r.RemindAt, &r.Notified, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reminder row: %w", err)
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

// MarkReminderNotified flags a reminder as delivered.
func (s *SQLiteStore) MarkReminderNotified(id string) error {
	_, err := s.db.Exec(`UPDATE reminders SET notified = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark reminder %s notified: %w", id, err)
	}
	return nil
}

// AddContact inserts a contact row.
func (s *SQLiteStore) AddContact(c models.Contact) error {
	_, err := s.db.Exec(
		`INSERT INTO contacts (id, phone, name, email, cell) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Phone, c.Name, nilIfEmpty(c.Email), nilIfEmpty(c.Cell),
	)
	if err != nil {
		return fmt.Errorf("failed to insert contact: %w", err)
	}
	return nil
}

// SearchContacts returns contacts matching the query by name substring.
func (s *SQLiteStore) SearchContacts(phone, query string) ([]models.Contact, error) {
	rows, err := s.db.Query(
		`SELECT id, phone, name, email, cell FROM contacts
		 WHERE phone = ? AND name LIKE '%' || ? || '%' COLLATE NOCASE ORDER BY name ASC`,
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
func (s *SQLiteStore) GetVoicePreference(phone string) (bool, error) {
	var enabled bool
	err := s.db.QueryRow(`SELECT voice_replies FROM user_preferences WHERE phone = ?`, phone).Scan(&enabled)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return true, fmt.Errorf("failed to query voice preference: %w", err)
	}
	return enabled, nil
}

// SetVoicePreference upserts the per-user voice reply toggle.
func (s *SQLiteStore) SetVoicePreference(phone string, enabled bool) error {
	_, err := s.db.Exec(
		`INSERT INTO user_preferences (phone, voice_replies) VALUES (?, ?)
		 ON CONFLICT(phone) DO UPDATE SET voice_replies = excluded.voice_replies`,
		phone, enabled,
	)
	if err != nil {
		return fmt.Errorf("failed to set voice preference: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
