package messaging

import (
	"context"
	"log/slog"
	"sync"

	"github.com/wednesday-bot/wednesday/internal/twiliowhatsapp"
)

// TwilioSender implements Sender over the Twilio WhatsApp API.
type TwilioSender struct {
	client twiliowhatsapp.TwilioWhatsAppSender

	mu      sync.RWMutex
	stopped bool
}

// NewTwilioSender creates a Twilio-backed sender.
func NewTwilioSender(client twiliowhatsapp.TwilioWhatsAppSender) *TwilioSender {
	return &TwilioSender{client: client}
}

// ValidateAndCanonicalizeRecipient reduces the recipient to bare digits;
// the Twilio client adds the whatsapp: prefix itself.
func (s *TwilioSender) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return CanonicalizePhone(recipient)
}

// SendText sends a plain text message via Twilio.
func (s *TwilioSender) SendText(ctx context.Context, to string, body string) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	return s.client.SendMessage(ctx, to, body)
}

// SendVoice cannot upload local audio through Twilio, which only accepts
// public media URLs. The fallback text is sent and the audio file removed.
func (s *TwilioSender) SendVoice(ctx context.Context, to string, audioFile string, fallbackText string) error {
	removeAudioFile(audioFile)
	slog.Debug("TwilioSender voice upload not supported, sending text fallback", "to", to)
	return s.SendText(ctx, to, fallbackText)
}

// Connected reports whether the sender is usable. Twilio is stateless HTTP,
// so any non-stopped sender counts as connected.
func (s *TwilioSender) Connected(ctx context.Context) bool {
	return !s.isStopped()
}

// Stop marks the sender stopped.
func (s *TwilioSender) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.stopped = true
		slog.Info("TwilioSender stopped")
	}
	return nil
}

func (s *TwilioSender) isStopped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopped
}
