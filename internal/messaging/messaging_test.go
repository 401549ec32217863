package messaging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wednesday-bot/wednesday/internal/twiliowhatsapp"
	"github.com/wednesday-bot/wednesday/internal/waha"
)

func TestCanonicalizePhone(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"plain digits", "1234567890", "1234567890", false},
		{"formatted", "+1 (234) 567-890", "1234567890", false},
		{"jid stripped to digits", "1234567890@c.us", "1234567890", false},
		{"empty", "", "", true},
		{"no digits", "not-a-number", "", true},
		{"too short", "12345", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CanonicalizePhone(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Errorf("CanonicalizePhone(%q) = %q, want error", tc.in, got)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Errorf("CanonicalizePhone(%q) = %q, %v, want %q", tc.in, got, err, tc.want)
			}
		})
	}
}

func TestWAHASenderRecipientCanonicalization(t *testing.T) {
	s := NewWAHASender(nil)

	got, err := s.ValidateAndCanonicalizeRecipient("1234567890")
	if err != nil || got != "1234567890@c.us" {
		t.Errorf("bare number: got %q, %v", got, err)
	}

	// Full JIDs pass through untouched, group JIDs included.
	got, err = s.ValidateAndCanonicalizeRecipient("1234567890@c.us")
	if err != nil || got != "1234567890@c.us" {
		t.Errorf("user JID: got %q, %v", got, err)
	}
	got, err = s.ValidateAndCanonicalizeRecipient("12345-67890@g.us")
	if err != nil || got != "12345-67890@g.us" {
		t.Errorf("group JID: got %q, %v", got, err)
	}

	if _, err := s.ValidateAndCanonicalizeRecipient("bogus"); err == nil {
		t.Error("digit-free recipient should be rejected")
	}
}

func TestWAHASenderStopped(t *testing.T) {
	s := NewWAHASender(nil)
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if err := s.SendText(context.Background(), "123456", "hi"); err != ErrServiceStopped {
		t.Errorf("SendText after Stop = %v, want ErrServiceStopped", err)
	}
	if err := s.SendVoice(context.Background(), "123456", "", "hi"); err != ErrServiceStopped {
		t.Errorf("SendVoice after Stop = %v, want ErrServiceStopped", err)
	}
	if s.Connected(context.Background()) {
		t.Error("stopped sender reports connected")
	}
}

func TestWAHASenderTypingOutlivesRequest(t *testing.T) {
	paths := make(chan string, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewWAHASender(waha.NewClient(waha.WithURL(srv.URL)))

	// The webhook handler's context is gone by the time the indicator stops;
	// both gateway calls must still go out.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Typing(ctx, "1234567890", 0)

	for _, want := range []string{"/api/startTyping", "/api/stopTyping"} {
		select {
		case got := <-paths:
			if got != want {
				t.Fatalf("typing call = %s, want %s", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("%s never reached the gateway", want)
		}
	}
}

func TestTwilioSenderSendText(t *testing.T) {
	mock := twiliowhatsapp.NewMockClient()
	s := NewTwilioSender(mock)

	if err := s.SendText(context.Background(), "1234567890", "hello"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if len(mock.SentMessages) != 1 || mock.SentMessages[0].Body != "hello" {
		t.Errorf("message not recorded: %+v", mock.SentMessages)
	}
}

func TestTwilioSenderVoiceFallsBackToText(t *testing.T) {
	mock := twiliowhatsapp.NewMockClient()
	s := NewTwilioSender(mock)

	audio := filepath.Join(t.TempDir(), "wednesday-tts-test.mp3")
	if err := os.WriteFile(audio, []byte("mp3"), 0o600); err != nil {
		t.Fatalf("write audio: %v", err)
	}

	if err := s.SendVoice(context.Background(), "1234567890", audio, "spoken reply as text"); err != nil {
		t.Fatalf("SendVoice: %v", err)
	}
	if len(mock.SentMessages) != 1 || mock.SentMessages[0].Body != "spoken reply as text" {
		t.Errorf("fallback text not sent: %+v", mock.SentMessages)
	}
	if _, err := os.Stat(audio); !os.IsNotExist(err) {
		t.Error("audio file not removed on text fallback")
	}
}

func TestTwilioSenderStopped(t *testing.T) {
	s := NewTwilioSender(twiliowhatsapp.NewMockClient())
	s.Stop()

	if err := s.SendText(context.Background(), "123456", "hi"); err != ErrServiceStopped {
		t.Errorf("SendText after Stop = %v, want ErrServiceStopped", err)
	}
	if s.Connected(context.Background()) {
		t.Error("stopped sender reports connected")
	}
}
