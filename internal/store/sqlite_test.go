package store

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/wednesday-bot/wednesday/internal/models"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "wednesday-test.db")
	s, err := NewSQLiteStore(WithSQLiteDSN(dsn), WithMaxMessages(5))
	if err != nil {
		t.Fatalf("failed to open SQLite store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteConversationRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)

	for i := 0; i < 8; i++ {
		msg := models.ConversationMessage{Role: "user", Content: fmt.Sprintf("msg %d", i), Timestamp: time.Now()}
		if err := s.AddConversationMessage("123", msg); err != nil {
			t.Fatalf("add message %d: %v", i, err)
		}
	}

	history, err := s.GetConversationHistory("123", 0)
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if len(history) != 5 {
		t.Fatalf("history length = %d, want 5 after trim", len(history))
	}
	if history[0].Content != "msg 3" {
		t.Errorf("oldest surviving entry = %q, want msg 3", history[0].Content)
	}

	count, err := s.ConversationCount()
	if err != nil || count != 1 {
		t.Errorf("ConversationCount = %d err %v, want 1", count, err)
	}

	if err := s.ClearConversation("123"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	history, _ = s.GetConversationHistory("123", 0)
	if len(history) != 0 {
		t.Errorf("history not cleared: %d entries left", len(history))
	}
}

func TestSQLiteTaskLifecycle(t *testing.T) {
	s := newTestSQLiteStore(t)

	due := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	task := models.Task{
		ID:        "task_1",
		Phone:     "123",
		Title:     "water the plants",
		Priority:  "low",
		DueDate:   &due,
		CreatedAt: time.Now(),
		Tags:      []string{"home", "recurring"},
	}
	if err := s.CreateTask(task); err != nil {
		t.Fatalf("create: %v", err)
	}

	tasks, err := s.ListTasks("123", false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("open tasks = %d, want 1", len(tasks))
	}
	got := tasks[0]
	if got.Title != task.Title || got.Priority != "low" {
		t.Errorf("task fields lost in round trip: %+v", got)
	}
	if got.DueDate == nil || !got.DueDate.Equal(due) {
		t.Errorf("due date mismatch: got %v want %v", got.DueDate, due)
	}
	if len(got.Tags) != 2 {
		t.Errorf("tags not persisted: %+v", got.Tags)
	}

	done, err := s.CompleteTask("123", "task_1")
	if err != nil || done == nil {
		t.Fatalf("complete: done=%v err=%v", done, err)
	}
	if !done.Completed || done.CompletedAt == nil {
		t.Errorf("completion fields not set: %+v", done)
	}

	tasks, _ = s.ListTasks("123", false)
	if len(tasks) != 0 {
		t.Errorf("completed task still open: %+v", tasks)
	}
}

func TestSQLiteReminderLifecycle(t *testing.T) {
	s := newTestSQLiteStore(t)
	now := time.Now().UTC()

	s.CreateReminder(models.Reminder{ID: "rem_1", Phone: "123", Message: "overdue", RemindAt: now.Add(-time.Minute), CreatedAt: now})
	s.CreateReminder(models.Reminder{ID: "rem_2", Phone: "123", Message: "later", RemindAt: now.Add(time.Hour), CreatedAt: now})

	due, err := s.DueReminders(now)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 1 || due[0].ID != "rem_1" {
		t.Fatalf("due reminders = %+v, want only rem_1", due)
	}

	if err := s.MarkReminderNotified("rem_1"); err != nil {
		t.Fatalf("mark notified: %v", err)
	}
	due, _ = s.DueReminders(now)
	if len(due) != 0 {
		t.Errorf("notified reminder still due: %+v", due)
	}
}

func TestSQLiteContactsAndPreferences(t *testing.T) {
	s := newTestSQLiteStore(t)

	s.AddContact(models.Contact{ID: "c_1", Phone: "123", Name: "Alice Smith", Cell: "555-0100"})
	s.AddContact(models.Contact{ID: "c_2", Phone: "123", Name: "Bob Jones"})

	found, err := s.SearchContacts("123", "ALICE")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 1 || found[0].Cell != "555-0100" {
		t.Errorf("search result = %+v", found)
	}

	pref, err := s.GetVoicePreference("123")
	if err != nil || !pref {
		t.Fatalf("default voice preference should be enabled, got %v err %v", pref, err)
	}
	if err := s.SetVoicePreference("123", false); err != nil {
		t.Fatalf("set pref: %v", err)
	}
	// Upsert path: set again.
	if err := s.SetVoicePreference("123", false); err != nil {
		t.Fatalf("re-set pref: %v", err)
	}
	pref, _ = s.GetVoicePreference("123")
	if pref {
		t.Error("disabled preference not persisted")
	}
}
