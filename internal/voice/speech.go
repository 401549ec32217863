// Package voice implements the inbound voice-note pipeline and outbound
// text-to-speech for Wednesday.
package voice

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// speechTimeout bounds STT/TTS API calls.
const speechTimeout = 30 * time.Second

// Transcriber converts an audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioFile string) (string, error)
}

// Synthesizer converts text into a temporary audio file and returns its path.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

// GoogleSpeech implements Transcriber and Synthesizer over the Google Cloud
// Speech-to-Text and Text-to-Speech REST APIs, authenticated by API key.
type GoogleSpeech struct {
	apiKey string
	sttURL string
	ttsURL string
	http   *http.Client
}

// ttsVoices is the synthesis fallback chain: the primary voice first, then
// alternate standard voices, then a different voice family as last resort.
var ttsVoices = []struct {
	languageCode string
	name         string
}{
	{"en-US", "en-US-Journey-F"},
	{"en-US", "en-US-Standard-C"},
	{"en-US", "en-US-Wavenet-F"},
	{"en-GB", "en-GB-Standard-A"},
}

// NewGoogleSpeech creates the Google speech provider. An empty API key leaves
// both directions unavailable; callers degrade gracefully.
func NewGoogleSpeech(apiKey string) *GoogleSpeech {
	return &GoogleSpeech{
		apiKey: apiKey,
		sttURL: "https://speech.googleapis.com/v1/speech:recognize",
		ttsURL: "https://texttospeech.googleapis.com/v1/text:synthesize",
		http:   &http.Client{Timeout: speechTimeout},
	}
}

// IsConfigured reports whether an API key is available.
func (g *GoogleSpeech) IsConfigured() bool { return g.apiKey != "" }

// Transcribe runs speech recognition on the audio file.
func (g *GoogleSpeech) Transcribe(ctx context.Context, audioFile string) (string, error) {
	if !g.IsConfigured() {
		return "", fmt.Errorf("speech recognition not configured")
	}

	data, err := os.ReadFile(audioFile)
	if err != nil {
		return "", fmt.Errorf("failed to read audio file: %w", err)
	}

	encoding := "OGG_OPUS"
	if strings.HasSuffix(strings.ToLower(audioFile), ".mp3") {
		encoding = "MP3"
	}

	payload := map[string]any{
		"config": map[string]any{
			"encoding":                   encoding,
			"sampleRateHertz":            16000, // WhatsApp voice notes are 16 kHz
			"languageCode":               "en-US",
			"alternativeLanguageCodes":   []string{"en-GB", "es-ES", "fr-FR"},
			"enableAutomaticPunctuation": true,
		},
		"audio": map[string]any{"content": base64.StdEncoding.EncodeToString(data)},
	}

	var result struct {
		Results []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"results"`
	}
	if err := g.postJSON(ctx, g.sttURL, payload, &result); err != nil {
		return "", err
	}
	if len(result.Results) == 0 || len(result.Results[0].Alternatives) == 0 {
		return "", fmt.Errorf("no speech recognized in audio")
	}
	transcript := strings.TrimSpace(result.Results[0].Alternatives[0].Transcript)
	slog.Info("GoogleSpeech transcription complete", "length", len(transcript))
	return transcript, nil
}

// Synthesize renders text to an MP3 file, walking the voice fallback chain
// until one succeeds.
func (g *GoogleSpeech) Synthesize(ctx context.Context, text string) (string, error) {
	if !g.IsConfigured() {
		return "", fmt.Errorf("speech synthesis not configured")
	}

	var lastErr error
	for _, v := range ttsVoices {
		audioFile, err := g.synthesizeWithVoice(ctx, text, v.languageCode, v.name)
		if err == nil {
			return audioFile, nil
		}
		slog.Warn("GoogleSpeech voice failed, trying next", "voice", v.name, "error", err)
		lastErr = err
	}
	return "", fmt.Errorf("all synthesis voices failed: %w", lastErr)
}

func (g *GoogleSpeech) synthesizeWithVoice(ctx context.Context, text, languageCode, voiceName string) (string, error) {
	payload := map[string]any{
		"input": map[string]any{"text": text},
		"voice": map[string]any{"languageCode": languageCode, "name": voiceName},
		"audioConfig": map[string]any{
			"audioEncoding": "MP3",
			"speakingRate":  1.0,
			"pitch":         0.0,
		},
	}

	var result struct {
		AudioContent string `json:"audioContent"`
	}
	if err := g.postJSON(ctx, g.ttsURL, payload, &result); err != nil {
		return "", err
	}
	if result.AudioContent == "" {
		return "", fmt.Errorf("empty synthesis response")
	}

	audio, err := base64.StdEncoding.DecodeString(result.AudioContent)
	if err != nil {
		return "", fmt.Errorf("failed to decode synthesis audio: %w", err)
	}

	tmp, err := os.CreateTemp("", "wednesday-tts-*.mp3")
	if err != nil {
		return "", fmt.Errorf("failed to create temp audio file: %w", err)
	}
	if _, err := tmp.Write(audio); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write synthesis audio: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func (g *GoogleSpeech) postJSON(ctx context.Context, url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode speech request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"?key="+g.apiKey, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build speech request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("speech request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("speech request failed: status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
