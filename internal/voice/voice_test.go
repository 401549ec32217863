package voice

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/wednesday-bot/wednesday/internal/models"
	"github.com/wednesday-bot/wednesday/internal/store"
)

type fakeDownloader struct {
	file string
	err  error
}

func (f *fakeDownloader) DownloadMedia(ctx context.Context, messageID string) (string, error) {
	return f.file, f.err
}

type fakeTranscriber struct {
	transcript string
	err        error
	gotFile    string
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioFile string) (string, error) {
	f.gotFile = audioFile
	return f.transcript, f.err
}

func tempAudioFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wednesday-voice-test.ogg")
	if err := os.WriteFile(path, []byte("OggS"), 0o600); err != nil {
		t.Fatalf("write temp audio: %v", err)
	}
	return path
}

func TestPreprocessIgnoresTextMessages(t *testing.T) {
	p := NewPipeline(&fakeDownloader{}, &fakeTranscriber{})
	payload := &models.WebhookPayload{ID: "msg_1", Type: "chat", Body: "just text"}

	out := p.Preprocess(context.Background(), payload)
	if out.Body != "just text" || out.OriginalType != "" {
		t.Errorf("text payload modified: %+v", out)
	}
}

func TestPreprocessTranscribesVoice(t *testing.T) {
	audio := tempAudioFile(t)
	tr := &fakeTranscriber{transcript: "remind me to call mom"}
	p := NewPipeline(&fakeDownloader{file: audio}, tr)

	payload := &models.WebhookPayload{ID: "msg_1", Type: "ptt"}
	out := p.Preprocess(context.Background(), payload)

	if out.Body != "remind me to call mom" {
		t.Errorf("body = %q, want transcript", out.Body)
	}
	if out.OriginalType != models.OriginalTypeVoice {
		t.Errorf("original type not marked: %q", out.OriginalType)
	}
	if out.IsVoice() {
		t.Error("preprocessed payload must no longer register as voice")
	}
	if tr.gotFile != audio {
		t.Errorf("transcriber got %q, want %q", tr.gotFile, audio)
	}
	if _, err := os.Stat(audio); !os.IsNotExist(err) {
		t.Error("temp audio file not removed after transcription")
	}
}

func TestPreprocessDownloadFailure(t *testing.T) {
	p := NewPipeline(&fakeDownloader{err: errors.New("gateway down")}, &fakeTranscriber{transcript: "unused"})

	payload := &models.WebhookPayload{ID: "msg_1", Type: "ptt"}
	out := p.Preprocess(context.Background(), payload)

	if out.Body != TranscriptionPlaceholder {
		t.Errorf("body = %q, want placeholder", out.Body)
	}
	if out.OriginalType != models.OriginalTypeVoice {
		t.Error("failed voice payload must still be marked as preprocessed")
	}
}

func TestPreprocessTranscriptionFailure(t *testing.T) {
	audio := tempAudioFile(t)
	p := NewPipeline(&fakeDownloader{file: audio}, &fakeTranscriber{err: errors.New("stt quota")})

	payload := &models.WebhookPayload{ID: "msg_1", Type: "audio"}
	out := p.Preprocess(context.Background(), payload)

	if out.Body != TranscriptionPlaceholder {
		t.Errorf("body = %q, want placeholder", out.Body)
	}
	if _, err := os.Stat(audio); !os.IsNotExist(err) {
		t.Error("temp audio file not removed after failed transcription")
	}
}

func TestPreprocessEmptyTranscript(t *testing.T) {
	audio := tempAudioFile(t)
	p := NewPipeline(&fakeDownloader{file: audio}, &fakeTranscriber{transcript: ""})

	out := p.Preprocess(context.Background(), &models.WebhookPayload{ID: "msg_1", Type: "ptt"})
	if out.Body != TranscriptionPlaceholder {
		t.Errorf("empty transcript should leave the placeholder, got %q", out.Body)
	}
}

func TestPreprocessMissingMessageID(t *testing.T) {
	p := NewPipeline(&fakeDownloader{file: "unused"}, &fakeTranscriber{transcript: "unused"})

	out := p.Preprocess(context.Background(), &models.WebhookPayload{Type: "ptt"})
	if out.Body != TranscriptionPlaceholder {
		t.Errorf("payload without ID should degrade to placeholder, got %q", out.Body)
	}
}

func TestResponderGlobalToggle(t *testing.T) {
	r := NewResponder(false, 0, store.NewInMemoryStore())
	if r.ShouldRespondWithVoice("123", true, 10) {
		t.Error("disabled responder must never speak")
	}
}

func TestResponderUserPreference(t *testing.T) {
	st := store.NewInMemoryStore()
	st.SetVoicePreference("123", false)

	r := NewResponder(true, 0, st)
	if r.ShouldRespondWithVoice("123", true, 10) {
		t.Error("user opt-out must override everything else")
	}
	if !r.ShouldRespondWithVoice("456", true, 10) {
		t.Error("other users keep the default preference")
	}
}

func TestResponderVoiceInAlwaysVoiceOut(t *testing.T) {
	r := NewResponder(true, 50, store.NewInMemoryStore())
	if !r.ShouldRespondWithVoice("123", true, 10_000) {
		t.Error("a voice message should always earn a voice reply")
	}
}

func TestResponderLengthGateForTextInput(t *testing.T) {
	r := NewResponder(true, 50, store.NewInMemoryStore())

	if !r.ShouldRespondWithVoice("123", false, 50) {
		t.Error("reply at the length cap should be spoken")
	}
	if r.ShouldRespondWithVoice("123", false, 51) {
		t.Error("reply over the length cap should stay text")
	}
	if r.ShouldRespondWithVoice("123", false, 0) {
		t.Error("empty reply should not be spoken")
	}
}
