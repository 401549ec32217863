package messaging

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/wednesday-bot/wednesday/internal/models"
	"github.com/wednesday-bot/wednesday/internal/whatsapp"
	"go.mau.fi/whatsmeow/types/events"
)

// WhatsmeowSender implements Sender over a direct whatsmeow connection,
// bypassing the WAHA gateway. Incoming text messages are surfaced on the
// Messages channel as webhook-shaped payloads so the same processing path
// handles both transports.
type WhatsmeowSender struct {
	client   whatsapp.WhatsAppSender
	waClient *whatsapp.Client // nil when constructed with a mock
	messages chan models.WebhookPayload

	mu      sync.RWMutex
	stopped bool
}

// NewWhatsmeowSender creates a whatsmeow-backed sender.
func NewWhatsmeowSender(client whatsapp.WhatsAppSender) *WhatsmeowSender {
	s := &WhatsmeowSender{
		client:   client,
		messages: make(chan models.WebhookPayload, DefaultChannelBufferSize),
	}
	if waClient, ok := client.(*whatsapp.Client); ok {
		s.waClient = waClient
	}
	return s
}

// ValidateAndCanonicalizeRecipient reduces the recipient to bare digits;
// whatsmeow builds the JID itself.
func (s *WhatsmeowSender) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return CanonicalizePhone(recipient)
}

// SendText sends a plain text message.
func (s *WhatsmeowSender) SendText(ctx context.Context, to string, body string) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	return s.client.SendMessage(ctx, to, body)
}

// SendVoice is not supported over this transport; the fallback text is sent
// instead and the audio file is removed.
func (s *WhatsmeowSender) SendVoice(ctx context.Context, to string, audioFile string, fallbackText string) error {
	removeAudioFile(audioFile)
	slog.Debug("WhatsmeowSender voice not supported, sending text fallback", "to", to)
	return s.SendText(ctx, to, fallbackText)
}

// Connected reports whether the whatsmeow connection is live. Mock-backed
// senders are always considered connected.
func (s *WhatsmeowSender) Connected(ctx context.Context) bool {
	if s.isStopped() {
		return false
	}
	if s.waClient == nil {
		return true
	}
	return s.waClient.IsConnected()
}

// Messages returns the channel of inbound messages.
func (s *WhatsmeowSender) Messages() <-chan models.WebhookPayload {
	return s.messages
}

// Start registers the event handler that feeds inbound messages into the
// Messages channel. It is a no-op for mock-backed senders.
func (s *WhatsmeowSender) Start(ctx context.Context) error {
	if s.waClient == nil || s.waClient.GetClient() == nil {
		slog.Debug("WhatsmeowSender no live client, skipping event handling")
		return nil
	}

	s.waClient.GetClient().AddEventHandler(func(evt interface{}) {
		if msg, ok := evt.(*events.Message); ok {
			s.handleIncomingMessage(msg)
		}
	})
	slog.Debug("WhatsmeowSender event handler registered")
	return nil
}

// Stop stops background processing and disconnects.
func (s *WhatsmeowSender) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.messages)
	if s.waClient != nil {
		s.waClient.Disconnect()
	}
	slog.Info("WhatsmeowSender stopped")
	return nil
}

func (s *WhatsmeowSender) isStopped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopped
}

// handleIncomingMessage converts a whatsmeow message event into the same
// payload shape the webhook receives.
func (s *WhatsmeowSender) handleIncomingMessage(evt *events.Message) {
	if evt.Message == nil {
		return
	}

	var messageText string
	msgType := "chat"
	switch {
	case evt.Message.Conversation != nil:
		messageText = *evt.Message.Conversation
	case evt.Message.ExtendedTextMessage != nil && evt.Message.ExtendedTextMessage.Text != nil:
		messageText = *evt.Message.ExtendedTextMessage.Text
	case evt.Message.AudioMessage != nil:
		msgType = "ptt"
	default:
		slog.Debug("WhatsmeowSender ignoring unsupported message type", "from", evt.Info.Sender.String())
		return
	}

	payload := models.WebhookPayload{
		ID:       evt.Info.ID,
		From:     evt.Info.Sender.User,
		Body:     messageText,
		Type:     msgType,
		HasMedia: msgType == "ptt",
		FromMe:   evt.Info.IsFromMe,
	}

	if s.isStopped() {
		return
	}
	select {
	case s.messages <- payload:
		slog.Debug("WhatsmeowSender inbound message forwarded", "from", payload.From)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsmeowSender messages channel blocked, dropping message", "from", payload.From)
	}
}
