package voice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestGoogleSpeech(sttURL, ttsURL string) *GoogleSpeech {
	return &GoogleSpeech{
		apiKey: "test-key",
		sttURL: sttURL,
		ttsURL: ttsURL,
		http:   &http.Client{Timeout: 5 * time.Second},
	}
}

func TestTranscribe(t *testing.T) {
	var gotConfig map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "test-key" {
			t.Error("API key not passed as query parameter")
		}
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		gotConfig, _ = req["config"].(map[string]any)
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"alternatives": []map[string]any{{"transcript": " remind me to stretch "}}},
			},
		})
	}))
	defer srv.Close()

	audio := filepath.Join(t.TempDir(), "note.ogg")
	os.WriteFile(audio, []byte("OggS"), 0o600)

	g := newTestGoogleSpeech(srv.URL, "")
	transcript, err := g.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if transcript != "remind me to stretch" {
		t.Errorf("transcript = %q, want trimmed text", transcript)
	}
	if gotConfig["encoding"] != "OGG_OPUS" {
		t.Errorf("encoding = %v, want OGG_OPUS for .ogg input", gotConfig["encoding"])
	}
}

func TestTranscribeMP3Encoding(t *testing.T) {
	var encoding string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		cfg, _ := req["config"].(map[string]any)
		encoding, _ = cfg["encoding"].(string)
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"alternatives": []map[string]any{{"transcript": "ok"}}},
			},
		})
	}))
	defer srv.Close()

	audio := filepath.Join(t.TempDir(), "note.mp3")
	os.WriteFile(audio, []byte("mp3"), 0o600)

	g := newTestGoogleSpeech(srv.URL, "")
	if _, err := g.Transcribe(context.Background(), audio); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if encoding != "MP3" {
		t.Errorf("encoding = %q, want MP3 for .mp3 input", encoding)
	}
}

func TestTranscribeNoSpeech(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer srv.Close()

	audio := filepath.Join(t.TempDir(), "silence.ogg")
	os.WriteFile(audio, []byte("OggS"), 0o600)

	g := newTestGoogleSpeech(srv.URL, "")
	if _, err := g.Transcribe(context.Background(), audio); err == nil {
		t.Error("empty recognition result should be an error")
	}
}

func TestTranscribeUnconfigured(t *testing.T) {
	g := NewGoogleSpeech("")
	if _, err := g.Transcribe(context.Background(), "whatever.ogg"); err == nil {
		t.Error("missing API key should be an error")
	}
	if g.IsConfigured() {
		t.Error("empty key reports configured")
	}
}

func TestSynthesizeWalksVoiceFallbackChain(t *testing.T) {
	var voicesTried []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		voice, _ := req["voice"].(map[string]any)
		name, _ := voice["name"].(string)
		voicesTried = append(voicesTried, name)

		// The primary voice is unavailable; the second one works.
		if name == "en-US-Journey-F" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"audioContent": base64.StdEncoding.EncodeToString([]byte("mp3 bytes")),
		})
	}))
	defer srv.Close()

	g := newTestGoogleSpeech("", srv.URL)
	audioFile, err := g.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	defer os.Remove(audioFile)

	if len(voicesTried) != 2 || voicesTried[1] != "en-US-Standard-C" {
		t.Errorf("fallback chain not walked in order: %v", voicesTried)
	}
	data, err := os.ReadFile(audioFile)
	if err != nil || string(data) != "mp3 bytes" {
		t.Errorf("audio file contents wrong: %q err %v", data, err)
	}
}

func TestSynthesizeAllVoicesFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	g := newTestGoogleSpeech("", srv.URL)
	if _, err := g.Synthesize(context.Background(), "hello"); err == nil {
		t.Error("exhausted voice chain should be an error")
	}
}
