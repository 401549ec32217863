// Package messaging defines the pluggable outbound-message abstraction and its
// transport implementations (WAHA gateway, direct whatsmeow, Twilio).
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"time"
)

// Constants for transport configuration.
const (
	// DefaultChannelBufferSize buffers inbound message events per transport.
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout bounds non-blocking channel hand-offs.
	DefaultChannelTimeout = 1 * time.Second
)

// ErrServiceStopped is returned for sends after Stop.
var ErrServiceStopped = errors.New("messaging service is stopped")

// phoneNumberRegex matches everything that is not a digit.
var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// Sender delivers assistant replies to a recipient. SendVoice implementations
// that cannot deliver audio fall back to sending fallbackText and must remove
// the audio file either way.
type Sender interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient
	// identifier according to the transport's addressing rules.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendText sends a plain text message.
	SendText(ctx context.Context, to string, body string) error

	// SendVoice sends an audio file as a voice note, falling back to
	// fallbackText when the transport cannot deliver audio.
	SendVoice(ctx context.Context, to string, audioFile string, fallbackText string) error

	// Connected reports whether the transport is currently able to deliver.
	Connected(ctx context.Context) bool

	// Stop stops background processing and cleans up resources.
	Stop() error
}

// CanonicalizePhone strips a recipient down to digits and validates the
// result. Used by transports that address by bare phone number.
func CanonicalizePhone(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}

	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", canonical)
	}

	if recipient != canonical {
		slog.Debug("messaging canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// removeAudioFile deletes a temp audio file, tolerating a missing file.
func removeAudioFile(audioFile string) {
	if audioFile == "" {
		return
	}
	if err := os.Remove(audioFile); err != nil && !os.IsNotExist(err) {
		slog.Warn("messaging could not remove temp audio", "error", err, "file", audioFile)
	}
}
