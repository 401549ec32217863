// Package models defines the core data structures for Wednesday.
//
// It includes the webhook payload, conversation history entries, function calls
// produced by the LLM dispatcher, and the task/reminder records shared across modules.
package models

import (
	"errors"
	"strings"
	"time"
)

// Default limits for conversation and rate-limit handling.
const (
	// DefaultMaxMessagesPerUser caps the per-phone conversation history length.
	DefaultMaxMessagesPerUser = 15
	// DefaultMaxRequestsPerMinute caps webhook requests per phone in a rolling minute.
	DefaultMaxRequestsPerMinute = 30
	// DefaultMaxVoiceResponseLength is the longest text reply still spoken aloud.
	DefaultMaxVoiceResponseLength = 200
)

// Webhook processing status values returned to the messaging gateway.
const (
	StatusOK          = "ok"
	StatusIgnored     = "ignored"
	StatusRateLimited = "rate_limited"
	StatusError       = "error"
)

// Ignore reasons reported alongside StatusIgnored.
const (
	IgnoreReasonFromMe      = "from_me"
	IgnoreReasonMissingData = "missing_data"
)

// OriginalTypeVoice marks a payload that has already been through voice preprocessing.
const OriginalTypeVoice = "voice"

// Validation errors shared across modules.
var (
	ErrEmptyRecipient = errors.New("recipient cannot be empty")
	ErrEmptyMessage   = errors.New("message cannot be empty")
	ErrEmptyTitle     = errors.New("task title cannot be empty")
	ErrEmptyReminder  = errors.New("reminder message cannot be empty")
	ErrBadRemindAt    = errors.New("remind_at must be a valid timestamp")
)

// WebhookPayload is the inbound message envelope posted by the WhatsApp gateway.
// Fields mirror the WAHA webhook body; ChatID and From are alternative sender keys,
// Body and Text alternative content keys.
type WebhookPayload struct {
	ID           string `json:"id,omitempty"`
	ChatID       string `json:"chatId,omitempty"`
	From         string `json:"from,omitempty"`
	Body         string `json:"body,omitempty"`
	Text         string `json:"text,omitempty"`
	Type         string `json:"type,omitempty"`
	HasMedia     bool   `json:"hasMedia,omitempty"`
	FromMe       bool   `json:"fromMe,omitempty"`
	OriginalType string `json:"original_type,omitempty"`
}

// WebhookRequest is the outer webhook body; the gateway nests the payload under a
// "payload" key but some configurations post the fields at the top level.
type WebhookRequest struct {
	Payload *WebhookPayload `json:"payload,omitempty"`

	// Top-level fallbacks for flat webhook bodies.
	WebhookPayload
}

// Effective returns the nested payload when present, otherwise the flat one.
func (r *WebhookRequest) Effective() *WebhookPayload {
	if r.Payload != nil {
		return r.Payload
	}
	return &r.WebhookPayload
}

// Sender returns the sender identifier, preferring chatId over from.
func (p *WebhookPayload) Sender() string {
	if p.ChatID != "" {
		return p.ChatID
	}
	return p.From
}

// Content returns the message content, preferring body over text.
func (p *WebhookPayload) Content() string {
	if p.Body != "" {
		return p.Body
	}
	return p.Text
}

// mediaPlaceholders are body strings some gateways substitute for voice notes.
var mediaPlaceholders = map[string]bool{
	"[audio]":         true,
	"[voice message]": true,
	"[media]":         true,
	"[ptt]":           true,
}

// IsVoice reports whether the payload looks like a voice or media message that has
// not yet been through voice preprocessing.
func (p *WebhookPayload) IsVoice() bool {
	if p.OriginalType == OriginalTypeVoice {
		return false
	}
	switch strings.ToLower(p.Type) {
	case "ptt", "audio", "voice":
		return true
	}
	if p.HasMedia {
		return true
	}
	return mediaPlaceholders[strings.ToLower(strings.TrimSpace(p.Content()))]
}

// ConversationMessage is a single turn in a user's conversation history.
type ConversationMessage struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// FunctionCall is the structured result of an LLM function-calling response.
// It is produced by the dispatcher and consumed immediately by the executor;
// it is never persisted.
type FunctionCall struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
}

// DispatchResult is what the LLM dispatcher hands back to the webhook handler:
// either a function call to execute or free-text content to send as-is.
type DispatchResult struct {
	Call    *FunctionCall `json:"call,omitempty"`
	Content string        `json:"content,omitempty"`
}

// Task is a user-created to-do record.
type Task struct {
	ID          string     `json:"id"`
	Phone       string     `json:"phone"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Priority    string     `json:"priority"` // low, medium, high, urgent
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
}

// Validate checks required task fields and defaults the priority.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return ErrEmptyTitle
	}
	if t.Phone == "" {
		return ErrEmptyRecipient
	}
	switch t.Priority {
	case "low", "medium", "high", "urgent":
	case "":
		t.Priority = "medium"
	default:
		t.Priority = "medium"
	}
	return nil
}

// Reminder is a scheduled one-shot notification.
type Reminder struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone"`
	Message   string    `json:"message"`
	RemindAt  time.Time `json:"remind_at"`
	Notified  bool      `json:"notified"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks required reminder fields.
func (r *Reminder) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return ErrEmptyReminder
	}
	if r.Phone == "" {
		return ErrEmptyRecipient
	}
	if r.RemindAt.IsZero() {
		return ErrBadRemindAt
	}
	return nil
}

// Contact is a stored address-book entry searchable by the assistant.
type Contact struct {
	ID    string `json:"id"`
	Phone string `json:"phone"` // owning user
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Cell  string `json:"cell,omitempty"`
}
