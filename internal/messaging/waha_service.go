package messaging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/wednesday-bot/wednesday/internal/waha"
)

// WAHASender implements Sender over the WAHA HTTP gateway. This is the
// default transport.
type WAHASender struct {
	client *waha.Client

	mu      sync.RWMutex
	stopped bool
}

// NewWAHASender creates a WAHA-backed sender.
func NewWAHASender(client *waha.Client) *WAHASender {
	return &WAHASender{client: client}
}

// ValidateAndCanonicalizeRecipient accepts bare phone numbers and full JIDs.
// Bare numbers are reduced to digits and given the user JID suffix.
func (s *WAHASender) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	if strings.Contains(recipient, "@c.us") || strings.Contains(recipient, "@g.us") {
		return recipient, nil
	}
	canonical, err := CanonicalizePhone(recipient)
	if err != nil {
		return "", err
	}
	return waha.CanonicalizeChatID(canonical), nil
}

// SendText sends a plain text message through the gateway.
func (s *WAHASender) SendText(ctx context.Context, to string, body string) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	return s.client.SendText(ctx, to, body)
}

// SendVoice sends an audio file as a voice note, letting the gateway client
// walk its own endpoint fallback chain down to plain text.
func (s *WAHASender) SendVoice(ctx context.Context, to string, audioFile string, fallbackText string) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	return s.client.SendVoice(ctx, to, audioFile, fallbackText)
}

// Connected reports whether the gateway session is usable.
func (s *WAHASender) Connected(ctx context.Context) bool {
	return !s.isStopped() && s.client.HealthCheck(ctx)
}

// Typing shows a typing indicator while a reply is being prepared. The
// indicator outlives the request, so it runs on its own deadline instead of
// the request context, which is usually cancelled before the wait ends.
func (s *WAHASender) Typing(ctx context.Context, to string, seconds int) {
	if s.isStopped() {
		return
	}
	d := time.Duration(seconds) * time.Second
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d+5*time.Second)
		defer cancel()
		s.client.Typing(ctx, to, d)
	}()
}

// Stop marks the sender stopped. The gateway itself keeps running; it is an
// external process.
func (s *WAHASender) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.stopped = true
		slog.Info("WAHASender stopped")
	}
	return nil
}

func (s *WAHASender) isStopped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopped
}
