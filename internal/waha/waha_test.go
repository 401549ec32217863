package waha

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

func TestCanonicalizeChatID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1234567890", "1234567890@c.us"},
		{"1234567890@c.us", "1234567890@c.us"},
		{"1234567890-111@g.us", "1234567890-111@g.us"},
	}
	for _, tc := range cases {
		if got := CanonicalizeChatID(tc.in); got != tc.want {
			t.Errorf("CanonicalizeChatID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNewClientURLParsing(t *testing.T) {
	c := NewClient(WithURL("http://waha:3000/api/sendText"))
	if c.BaseURL() != "http://waha:3000" {
		t.Errorf("base URL from full endpoint = %q", c.BaseURL())
	}
	if c.sendTextURL != "http://waha:3000/api/sendText" {
		t.Errorf("sendText URL = %q", c.sendTextURL)
	}

	c = NewClient(WithURL("http://waha:3000/"))
	if c.BaseURL() != "http://waha:3000" {
		t.Errorf("base URL from bare URL = %q", c.BaseURL())
	}
	if c.sendTextURL != "http://waha:3000/api/sendText" {
		t.Errorf("derived sendText URL = %q", c.sendTextURL)
	}
}

func TestHealthCheckWorkingSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sessions/default" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "secret" {
			t.Errorf("missing API key header")
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "WORKING"})
	}))
	defer srv.Close()

	c := NewClient(WithURL(srv.URL), WithAPIKey("secret"))
	if !c.HealthCheck(context.Background()) {
		t.Error("working session reported unhealthy")
	}
}

func TestHealthCheckStoppedSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "STOPPED"})
	}))
	defer srv.Close()

	c := NewClient(WithURL(srv.URL))
	if c.HealthCheck(context.Background()) {
		t.Error("stopped session reported healthy")
	}
}

func TestHealthCheckCreatesMissingSession(t *testing.T) {
	var created, started bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/sessions/default":
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPost && r.URL.Path == "/api/sessions/default":
			created = true
		case r.Method == http.MethodPost && r.URL.Path == "/api/sessions/default/start":
			started = true
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient(WithURL(srv.URL))
	if !c.HealthCheck(context.Background()) {
		t.Error("missing session should be created and reported healthy")
	}
	if !created || !started {
		t.Errorf("session bootstrap incomplete: created=%v started=%v", created, started)
	}
}

func TestSendTextPrimaryEndpoint(t *testing.T) {
	var sent map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/sessions/default":
			json.NewEncoder(w).Encode(map[string]string{"status": "WORKING"})
		case "/api/sendText":
			json.NewDecoder(r.Body).Decode(&sent)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient(WithURL(srv.URL))
	if err := c.SendText(context.Background(), "1234567890", "hello"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if sent["chatId"] != "1234567890@c.us" || sent["text"] != "hello" {
		t.Errorf("unexpected payload: %+v", sent)
	}
	if sent["session"] != "default" {
		t.Errorf("session missing from payload: %+v", sent)
	}
}

func TestSendTextFallsBackToSessionEndpoint(t *testing.T) {
	var fallbackHit bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/sessions/default":
			json.NewEncoder(w).Encode(map[string]string{"status": "WORKING"})
		case "/api/sendText":
			w.WriteHeader(http.StatusInternalServerError)
		case "/api/sessions/default/messages/text":
			fallbackHit = true
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient(WithURL(srv.URL))
	if err := c.SendText(context.Background(), "123", "hi"); err != nil {
		t.Fatalf("SendText should succeed via session endpoint: %v", err)
	}
	if !fallbackHit {
		t.Error("session-scoped endpoint was never tried")
	}
}

func TestSendTextFailsWhenSessionUnhealthy(t *testing.T) {
	var deliveryAttempted bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/sessions/default" && r.Method == http.MethodGet {
			json.NewEncoder(w).Encode(map[string]string{"status": "FAILED"})
			return
		}
		if strings.Contains(r.URL.Path, "sendText") || strings.Contains(r.URL.Path, "messages") {
			deliveryAttempted = true
		}
	}))
	defer srv.Close()

	c := NewClient(WithURL(srv.URL))
	if err := c.SendText(context.Background(), "123", "hi"); err == nil {
		t.Fatal("send against failed session should error")
	}
	if deliveryAttempted {
		t.Error("delivery attempted despite unhealthy session")
	}
}

func TestDownloadMedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/files/default/msg_1.oga" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "audio/ogg; codecs=opus")
		w.Write([]byte("OggS fake audio"))
	}))
	defer srv.Close()

	c := NewClient(WithURL(srv.URL))
	path, err := c.DownloadMedia(context.Background(), "msg_1")
	if err != nil {
		t.Fatalf("DownloadMedia: %v", err)
	}
	defer os.Remove(path)

	if !strings.HasSuffix(path, ".ogg") {
		t.Errorf("suffix not derived from content type: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "OggS fake audio" {
		t.Errorf("downloaded file contents wrong: %q err %v", data, err)
	}
}

func TestDownloadMediaRejectsJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error":"no media"}`))
	}))
	defer srv.Close()

	c := NewClient(WithURL(srv.URL))
	if _, err := c.DownloadMedia(context.Background(), "msg_1"); err == nil {
		t.Error("JSON response should be treated as a download failure")
	}
}

func TestDownloadMediaNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(WithURL(srv.URL))
	if _, err := c.DownloadMedia(context.Background(), "missing"); err == nil {
		t.Error("404 should be a download failure")
	}
}
