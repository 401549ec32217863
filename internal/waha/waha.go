// Package waha wraps the WAHA WhatsApp HTTP gateway for Wednesday.
//
// The gateway is treated as an opaque HTTP API: a named session that must be
// started and kept alive, a primary sendText endpoint with a session-scoped
// fallback, voice/media send endpoints, and media download URLs derived from
// message IDs.
package waha

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// Default gateway configuration.
const (
	// DefaultSession is the WAHA session name used when none is configured.
	DefaultSession = "default"
	// DefaultRequestTimeout bounds individual gateway HTTP calls.
	DefaultRequestTimeout = 20 * time.Second
	// DefaultKeepAliveInterval is how often the session is pinged.
	DefaultKeepAliveInterval = 600 * time.Second
)

// JIDSuffix is the WhatsApp chat ID suffix for individual users.
const JIDSuffix = "@c.us"

// Opts holds configuration options for the gateway client.
type Opts struct {
	URL        string // full sendText endpoint or gateway base URL
	APIKey     string
	Session    string
	HTTPClient *http.Client
}

// Option defines a configuration option for the gateway client.
type Option func(*Opts)

// WithURL sets the gateway URL. Either the full sendText endpoint (as WAHA_URL
// is commonly configured) or the bare base URL is accepted.
func WithURL(url string) Option {
	return func(o *Opts) { o.URL = url }
}

// WithAPIKey sets the X-Api-Key header value.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithSession sets the WAHA session name.
func WithSession(session string) Option {
	return func(o *Opts) { o.Session = session }
}

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client is a WAHA gateway client.
type Client struct {
	sendTextURL string
	baseURL     string
	apiKey      string
	session     string
	http        *http.Client
}

// NewClient creates a gateway client from the provided options.
func NewClient(opts ...Option) *Client {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Session == "" {
		cfg.Session = DefaultSession
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultRequestTimeout}
	}

	base := cfg.URL
	sendText := cfg.URL
	if idx := strings.Index(cfg.URL, "/api/"); idx >= 0 {
		base = cfg.URL[:idx]
	} else {
		base = strings.TrimRight(cfg.URL, "/")
		sendText = base + "/api/sendText"
	}

	slog.Debug("waha.NewClient configured", "base_url_set", base != "", "session", cfg.Session, "api_key_set", cfg.APIKey != "")
	return &Client{
		sendTextURL: sendText,
		baseURL:     base,
		apiKey:      cfg.APIKey,
		session:     cfg.Session,
		http:        cfg.HTTPClient,
	}
}

// Session returns the configured session name.
func (c *Client) Session() string { return c.session }

// BaseURL returns the gateway base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// CanonicalizeChatID appends the user JID suffix when the phone has none.
func CanonicalizeChatID(phone string) string {
	if strings.Contains(phone, "@c.us") || strings.Contains(phone, "@g.us") {
		return phone
	}
	return phone + JIDSuffix
}

func (c *Client) setHeaders(req *http.Request, isJSON bool) {
	if isJSON {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
}

func (c *Client) postJSON(ctx context.Context, url string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode gateway payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway request: %w", err)
	}
	c.setHeaders(req, true)
	return c.http.Do(req)
}

// HealthCheck reports whether the gateway session is in a usable state.
// A missing session is created and started before reporting healthy.
func (c *Client) HealthCheck(ctx context.Context) bool {
	if c.baseURL == "" {
		return false
	}
	url := fmt.Sprintf("%s/api/sessions/%s", c.baseURL, c.session)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	c.setHeaders(req, false)

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Warn("waha.HealthCheck gateway unreachable", "error", err)
		return false
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var body struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return false
		}
		switch strings.ToLower(body.Status) {
		case "working", "active", "connected", "ready":
			return true
		}
		return false
	case resp.StatusCode == http.StatusNotFound:
		c.createSession(ctx)
		c.startSession(ctx)
		return true
	default:
		return false
	}
}

func (c *Client) createSession(ctx context.Context) {
	url := fmt.Sprintf("%s/api/sessions/%s", c.baseURL, c.session)
	resp, err := c.postJSON(ctx, url, map[string]string{})
	if err != nil {
		slog.Error("waha.createSession failed", "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusConflict {
		slog.Warn("waha.createSession unexpected status", "status", resp.StatusCode)
	}
}

func (c *Client) startSession(ctx context.Context) bool {
	url := fmt.Sprintf("%s/api/sessions/%s/start", c.baseURL, c.session)
	resp, err := c.postJSON(ctx, url, map[string]string{})
	if err != nil {
		slog.Error("waha.startSession failed", "error", err)
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusAccepted {
		return true
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(string(body)), "already started") {
		return true
	}
	slog.Warn("waha.startSession unexpected status", "status", resp.StatusCode)
	return false
}

// SendText sends a text message. The session is health-probed first; when it is
// unhealthy the send fails without a delivery attempt. A non-2xx from the
// primary sendText endpoint is retried once against the session-scoped
// messages endpoint.
func (c *Client) SendText(ctx context.Context, phone, text string) error {
	if !c.HealthCheck(ctx) {
		return fmt.Errorf("gateway session %q not ready", c.session)
	}

	chatID := CanonicalizeChatID(phone)
	payload := map[string]any{
		"chatId":  chatID,
		"text":    text,
		"session": c.session,
	}

	resp, err := c.postJSON(ctx, c.sendTextURL, payload)
	if err == nil {
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
			slog.Debug("waha.SendText delivered via primary endpoint", "chat_id", chatID)
			return nil
		}
		slog.Warn("waha.SendText primary endpoint failed, trying session endpoint", "status", resp.StatusCode)
	} else {
		slog.Warn("waha.SendText primary endpoint error, trying session endpoint", "error", err)
	}

	altURL := fmt.Sprintf("%s/api/sessions/%s/messages/text", c.baseURL, c.session)
	resp, err = c.postJSON(ctx, altURL, payload)
	if err != nil {
		return fmt.Errorf("gateway send failed on both endpoints: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		slog.Debug("waha.SendText delivered via session endpoint", "chat_id", chatID)
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("gateway send failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

// SendVoice sends an audio file as a voice note. It attempts the dedicated
// voice endpoint, then the generic media endpoint, and finally falls back to
// SendText with fallbackText. The audio file is removed on every exit path.
func (c *Client) SendVoice(ctx context.Context, phone, audioFile, fallbackText string) error {
	defer func() {
		if err := os.Remove(audioFile); err != nil && !os.IsNotExist(err) {
			slog.Warn("waha.SendVoice could not remove temp audio", "error", err, "file", audioFile)
		}
	}()

	data, err := os.ReadFile(audioFile)
	if err != nil {
		slog.Error("waha.SendVoice could not read audio file", "error", err, "file", audioFile)
		return c.SendText(ctx, phone, fallbackText)
	}

	chatID := CanonicalizeChatID(phone)
	filePayload := map[string]any{
		"mimetype": "audio/mpeg",
		"filename": "reply.mp3",
		"data":     base64.StdEncoding.EncodeToString(data),
	}

	voiceURL := fmt.Sprintf("%s/api/sendVoice", c.baseURL)
	if c.trySendMedia(ctx, voiceURL, chatID, filePayload) {
		slog.Debug("waha.SendVoice delivered via voice endpoint", "chat_id", chatID)
		return nil
	}

	fileURL := fmt.Sprintf("%s/api/sendFile", c.baseURL)
	if c.trySendMedia(ctx, fileURL, chatID, filePayload) {
		slog.Debug("waha.SendVoice delivered via file endpoint", "chat_id", chatID)
		return nil
	}

	slog.Warn("waha.SendVoice all media endpoints failed, falling back to text", "chat_id", chatID)
	return c.SendText(ctx, phone, fallbackText)
}

func (c *Client) trySendMedia(ctx context.Context, url, chatID string, file map[string]any) bool {
	payload := map[string]any{
		"chatId":  chatID,
		"file":    file,
		"session": c.session,
	}
	resp, err := c.postJSON(ctx, url, payload)
	if err != nil {
		slog.Warn("waha media send error", "error", err, "url", url)
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated
}

// MediaURL constructs the download URL for a message's media attachment.
func (c *Client) MediaURL(messageID string) string {
	return fmt.Sprintf("%s/api/files/%s/%s.oga", c.baseURL, c.session, messageID)
}

// DownloadMedia fetches a message's media attachment into a temporary file and
// returns its path. A connection failure, a non-200 status, and a JSON
// content-type (a mocked gateway returning metadata instead of audio) are all
// reported as errors.
func (c *Client) DownloadMedia(ctx context.Context, messageID string) (string, error) {
	url := c.MediaURL(messageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build media request: %w", err)
	}
	c.setHeaders(req, false)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway unreachable for media download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("media download failed: status %d", resp.StatusCode)
	}
	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.Contains(contentType, "application/json") {
		return "", fmt.Errorf("media download returned JSON instead of audio")
	}

	suffix := ".oga"
	switch {
	case strings.Contains(contentType, "mp3") || strings.Contains(contentType, "mpeg"):
		suffix = ".mp3"
	case strings.Contains(contentType, "ogg") || strings.Contains(contentType, "opus"):
		suffix = ".ogg"
	}

	tmp, err := os.CreateTemp("", "wednesday-voice-*"+suffix)
	if err != nil {
		return "", fmt.Errorf("failed to create temp audio file: %w", err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write audio file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close audio file: %w", err)
	}
	return tmp.Name(), nil
}

// Typing shows a typing indicator for the given duration. Failures are logged
// and ignored; the indicator is cosmetic.
func (c *Client) Typing(ctx context.Context, phone string, d time.Duration) {
	chatID := CanonicalizeChatID(phone)
	payload := map[string]any{"chatId": chatID, "session": c.session}

	if resp, err := c.postJSON(ctx, c.baseURL+"/api/startTyping", payload); err == nil {
		resp.Body.Close()
	} else {
		slog.Debug("waha.Typing start failed", "error", err)
		return
	}

	select {
	case <-time.After(d):
	case <-ctx.Done():
	}

	if resp, err := c.postJSON(ctx, c.baseURL+"/api/stopTyping", payload); err == nil {
		resp.Body.Close()
	} else {
		slog.Debug("waha.Typing stop failed", "error", err)
	}
}
