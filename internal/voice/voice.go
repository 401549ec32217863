package voice

import (
	"context"
	"log/slog"
	"os"

	"github.com/wednesday-bot/wednesday/internal/models"
	"github.com/wednesday-bot/wednesday/internal/store"
)

// TranscriptionPlaceholder replaces the message body when a voice note cannot
// be turned into text for any reason.
const TranscriptionPlaceholder = "[Voice message received but could not transcribe]"

// MediaDownloader fetches a message's media attachment into a local temp file.
// *waha.Client satisfies this.
type MediaDownloader interface {
	DownloadMedia(ctx context.Context, messageID string) (string, error)
}

// Pipeline turns inbound voice notes into text payloads. It never fails the
// message: any stage that breaks leaves the placeholder body in place so the
// webhook flow continues as if a text message had arrived.
type Pipeline struct {
	downloader  MediaDownloader
	transcriber Transcriber
}

// NewPipeline creates a voice preprocessing pipeline. A nil transcriber is
// allowed and degrades every voice note to the placeholder.
func NewPipeline(downloader MediaDownloader, transcriber Transcriber) *Pipeline {
	return &Pipeline{downloader: downloader, transcriber: transcriber}
}

// Preprocess rewrites a voice payload in place: the body becomes the
// transcript (or the placeholder) and OriginalType is marked so the payload
// is not treated as voice again. Non-voice payloads pass through untouched.
// The downloaded temp audio file is always removed.
func (p *Pipeline) Preprocess(ctx context.Context, payload *models.WebhookPayload) *models.WebhookPayload {
	if payload == nil || !payload.IsVoice() {
		return payload
	}

	payload.OriginalType = models.OriginalTypeVoice
	payload.Body = TranscriptionPlaceholder
	payload.Text = ""

	if payload.ID == "" || p.downloader == nil {
		slog.Warn("voice.Preprocess cannot download media", "has_id", payload.ID != "")
		return payload
	}

	audioFile, err := p.downloader.DownloadMedia(ctx, payload.ID)
	if err != nil {
		slog.Warn("voice.Preprocess media download failed", "error", err, "message_id", payload.ID)
		return payload
	}
	defer func() {
		if err := os.Remove(audioFile); err != nil && !os.IsNotExist(err) {
			slog.Warn("voice.Preprocess could not remove temp audio", "error", err, "file", audioFile)
		}
	}()

	if p.transcriber == nil {
		slog.Warn("voice.Preprocess no transcriber configured", "message_id", payload.ID)
		return payload
	}

	transcript, err := p.transcriber.Transcribe(ctx, audioFile)
	if err != nil || transcript == "" {
		slog.Warn("voice.Preprocess transcription failed", "error", err, "message_id", payload.ID)
		return payload
	}

	payload.Body = transcript
	slog.Info("voice.Preprocess transcribed voice note", "message_id", payload.ID, "length", len(transcript))
	return payload
}

// Responder decides whether a reply should be spoken aloud.
type Responder struct {
	enabled     bool
	maxReplyLen int
	st          store.Store
}

// NewResponder creates a voice-reply policy. enabled is the global toggle;
// maxReplyLen caps how long a spoken reply to a text message may be, with
// zero or negative selecting the default.
func NewResponder(enabled bool, maxReplyLen int, st store.Store) *Responder {
	if maxReplyLen <= 0 {
		maxReplyLen = models.DefaultMaxVoiceResponseLength
	}
	return &Responder{enabled: enabled, maxReplyLen: maxReplyLen, st: st}
}

// ShouldRespondWithVoice reports whether the reply to phone should be sent as
// a voice note. Voice replies require the global toggle and the user's stored
// preference. A voice message always earns a voice reply; a text message only
// does when the reply is short enough to be worth listening to.
func (r *Responder) ShouldRespondWithVoice(phone string, userSentVoice bool, replyLength int) bool {
	if !r.enabled {
		return false
	}
	if r.st != nil {
		pref, err := r.st.GetVoicePreference(phone)
		if err != nil {
			slog.Warn("voice preference lookup failed, assuming enabled", "error", err, "phone", phone)
		} else if !pref {
			return false
		}
	}
	if userSentVoice {
		return true
	}
	return replyLength > 0 && replyLength <= r.maxReplyLen
}
