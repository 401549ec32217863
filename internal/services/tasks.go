package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wednesday-bot/wednesday/internal/models"
	"github.com/wednesday-bot/wednesday/internal/store"
	"github.com/wednesday-bot/wednesday/internal/util"
)

// TaskService provides task, reminder, contact, and user-preference management
// backed by the store.
type TaskService struct {
	st store.Store
}

// NewTaskService creates a task service over the given store.
func NewTaskService(st store.Store) *TaskService {
	return &TaskService{st: st}
}

// CreateTask records a new task and returns a confirmation.
func (s *TaskService) CreateTask(ctx context.Context, phone, title, description, dueDate, priority string, tags []string) string {
	t := models.Task{
		ID:          util.GenerateTaskID(),
		Phone:       phone,
		Title:       title,
		Description: description,
		Priority:    priority,
		CreatedAt:   time.Now(),
		Tags:        tags,
	}
	if dueDate != "" {
		due, err := parseWhen(dueDate)
		if err != nil {
			return fmt.Sprintf("⚠️ I couldn't understand the due date %q. Use a format like 2026-08-30 or 2026-08-30T17:00:00Z.", dueDate)
		}
		t.DueDate = &due
	}
	if err := t.Validate(); err != nil {
		return "⚠️ " + err.Error()
	}
	if err := s.st.CreateTask(t); err != nil {
		return fmt.Sprintf("⚠️ Couldn't save the task: %v", err)
	}

	out := fmt.Sprintf("✅ Task added: %s (priority %s", t.Title, t.Priority)
	if t.DueDate != nil {
		out += ", due " + t.DueDate.Format("Mon 2 Jan 15:04")
	}
	return out + ")."
}

// ListTasks returns the user's open tasks as a formatted list.
func (s *TaskService) ListTasks(ctx context.Context, phone string, includeCompleted bool) string {
	tasks, err := s.st.ListTasks(phone, includeCompleted)
	if err != nil {
		return fmt.Sprintf("⚠️ Couldn't load your tasks: %v", err)
	}
	if len(tasks) == 0 {
		return "🗒️ You have no open tasks. Enjoy it while it lasts."
	}

	var b strings.Builder
	b.WriteString("🗒️ Your tasks:\n")
	for i, t := range tasks {
		mark := " "
		if t.Completed {
			mark = "x"
		}
		fmt.Fprintf(&b, "%d. [%s] %s (%s", i+1, mark, t.Title, t.Priority)
		if t.DueDate != nil {
			fmt.Fprintf(&b, ", due %s", t.DueDate.Format("Mon 2 Jan"))
		}
		b.WriteString(")\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// CompleteTask marks a task done, matched by ID or by title substring.
func (s *TaskService) CompleteTask(ctx context.Context, phone, identifier string) string {
	if done, err := s.st.CompleteTask(phone, identifier); err == nil && done != nil {
		return fmt.Sprintf("✅ Marked \"%s\" as done.", done.Title)
	}

	// Fall back to a title match over open tasks.
	tasks, err := s.st.ListTasks(phone, false)
	if err != nil {
		return fmt.Sprintf("⚠️ Couldn't load your tasks: %v", err)
	}
	needle := strings.ToLower(identifier)
	for _, t := range tasks {
		if strings.Contains(strings.ToLower(t.Title), needle) {
			done, err := s.st.CompleteTask(phone, t.ID)
			if err != nil || done == nil {
				return fmt.Sprintf("⚠️ Couldn't complete \"%s\".", t.Title)
			}
			return fmt.Sprintf("✅ Marked \"%s\" as done.", done.Title)
		}
	}
	return fmt.Sprintf("🤷 No open task matching %q.", identifier)
}

// CreateReminder records a one-shot reminder and returns a confirmation.
func (s *TaskService) CreateReminder(ctx context.Context, phone, message, remindAt string) string {
	when, err := parseWhen(remindAt)
	if err != nil {
		return fmt.Sprintf("⚠️ I couldn't understand the time %q. Use a format like 2026-08-28T18:30:00Z.", remindAt)
	}
	r := models.Reminder{
		ID:        util.GenerateReminderID(),
		Phone:     phone,
		Message:   message,
		RemindAt:  when,
		CreatedAt: time.Now(),
	}
	if err := r.Validate(); err != nil {
		return "⚠️ " + err.Error()
	}
	if err := s.st.CreateReminder(r); err != nil {
		return fmt.Sprintf("⚠️ Couldn't save the reminder: %v", err)
	}
	return fmt.Sprintf("⏰ Reminder set for %s: %s", when.Format("Mon 2 Jan 15:04"), message)
}

// ListReminders returns the user's pending reminders.
func (s *TaskService) ListReminders(ctx context.Context, phone string) string {
	reminders, err := s.st.ListReminders(phone, false)
	if err != nil {
		return fmt.Sprintf("⚠️ Couldn't load your reminders: %v", err)
	}
	if len(reminders) == 0 {
		return "⏰ You have no pending reminders."
	}

	var b strings.Builder
	b.WriteString("⏰ Your reminders:\n")
	for i, r := range reminders {
		fmt.Fprintf(&b, "%d. %s — %s\n", i+1, r.RemindAt.Format("Mon 2 Jan 15:04"), r.Message)
	}
	return strings.TrimRight(b.String(), "\n")
}

// AddContact saves an address-book entry and returns a confirmation.
func (s *TaskService) AddContact(ctx context.Context, phone, name, cell, email string) string {
	c := models.Contact{
		ID:    util.GenerateContactID(),
		Phone: phone,
		Name:  strings.TrimSpace(name),
		Cell:  cell,
		Email: email,
	}
	if c.Name == "" {
		return "⚠️ The contact needs a name."
	}
	if err := s.st.AddContact(c); err != nil {
		return fmt.Sprintf("⚠️ Couldn't save the contact: %v", err)
	}
	return fmt.Sprintf("👥 Saved %s to your contacts.", c.Name)
}

// SearchContacts looks up contacts by name for the user.
func (s *TaskService) SearchContacts(ctx context.Context, phone, query string) string {
	contacts, err := s.st.SearchContacts(phone, query)
	if err != nil {
		return fmt.Sprintf("⚠️ Couldn't search your contacts: %v", err)
	}
	if len(contacts) == 0 {
		return fmt.Sprintf("🤷 No contacts matching %q.", query)
	}

	var b strings.Builder
	b.WriteString("👥 Contacts:\n")
	for _, c := range contacts {
		fmt.Fprintf(&b, "• %s", c.Name)
		if c.Cell != "" {
			fmt.Fprintf(&b, " (%s)", c.Cell)
		}
		if c.Email != "" {
			fmt.Fprintf(&b, " <%s>", c.Email)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// SetVoiceResponses stores the user's voice-reply preference.
func (s *TaskService) SetVoiceResponses(ctx context.Context, phone string, enabled bool) string {
	if err := s.st.SetVoicePreference(phone, enabled); err != nil {
		return fmt.Sprintf("⚠️ Couldn't update your voice preference: %v", err)
	}
	if enabled {
		return "🔊 Voice replies are on."
	}
	return "🔇 Voice replies are off. Text only from here."
}

// parseWhen accepts RFC 3339 timestamps and a few human-friendly layouts.
func parseWhen(s string) (time.Time, error) {
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
