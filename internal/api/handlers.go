package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/wednesday-bot/wednesday/internal/models"
	"github.com/wednesday-bot/wednesday/internal/voice"
)

// webhookHandler receives inbound WhatsApp messages from the gateway.
// Every outcome is acknowledged with HTTP 200 so the gateway never retries;
// failures are reported in the response body instead.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	start := time.Now()

	switch r.Method {
	case http.MethodGet:
		// Gateway webhook verification probe.
		writeJSONResponse(w, http.StatusOK, map[string]string{"status": "online"})
		return
	case http.MethodPost:
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req models.WebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.webhookHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusOK, models.WebhookResponse{
			Status:           models.StatusError,
			Reason:           "invalid_json",
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.processTimeout)
	defer cancel()

	resp := s.processMessage(ctx, req.Effective())
	resp.ProcessingTimeMs = time.Since(start).Milliseconds()
	writeJSONResponse(w, http.StatusOK, resp)
}

// ProcessDirect runs the inbound pipeline for a message received outside the
// webhook, such as over the direct whatsmeow transport.
func (s *Server) ProcessDirect(ctx context.Context, payload *models.WebhookPayload) models.WebhookResponse {
	ctx, cancel := context.WithTimeout(ctx, s.processTimeout)
	defer cancel()
	return s.processMessage(ctx, payload)
}

// processMessage runs the full inbound pipeline for one payload: filtering,
// rate limiting, voice preprocessing, dispatch, function execution, and reply
// delivery.
func (s *Server) processMessage(ctx context.Context, payload *models.WebhookPayload) models.WebhookResponse {
	if payload.FromMe {
		slog.Debug("Server.processMessage: ignoring own message")
		return models.WebhookResponse{Status: models.StatusIgnored, Reason: models.IgnoreReasonFromMe}
	}

	phone := payload.Sender()
	if phone == "" || (payload.Content() == "" && !payload.IsVoice()) {
		slog.Debug("Server.processMessage: ignoring message with missing data", "phone_set", phone != "")
		return models.WebhookResponse{Status: models.StatusIgnored, Reason: models.IgnoreReasonMissingData}
	}

	if s.limiter != nil && !s.limiter.Allow(phone) {
		slog.Warn("Server.processMessage: rate limit exceeded", "phone", phone)
		return models.WebhookResponse{Status: models.StatusRateLimited}
	}

	if s.voice != nil {
		payload = s.voice.Preprocess(ctx, payload)
	} else if payload.IsVoice() {
		// No voice pipeline on this transport; degrade to the placeholder so
		// the dispatcher never sees an empty voice-note body.
		payload.OriginalType = models.OriginalTypeVoice
		payload.Body = voice.TranscriptionPlaceholder
		payload.Text = ""
	}
	userSentVoice := payload.OriginalType == models.OriginalTypeVoice

	slog.Info("Server.processMessage: dispatching message", "phone", phone, "voice", userSentVoice, "length", len(payload.Content()))
	result := s.dispatcher.Dispatch(ctx, payload.Content(), phone)

	reply := result.Content
	if result.Call != nil && s.executor != nil {
		reply = s.executor.Execute(ctx, phone, result.Call)
	}
	if reply == "" {
		return models.WebhookResponse{Status: models.StatusOK}
	}

	s.processed.Add(1)
	if err := s.deliverReply(ctx, phone, reply, userSentVoice); err != nil {
		slog.Error("Server.processMessage: reply delivery failed", "error", err, "phone", phone)
		return models.WebhookResponse{Status: models.StatusError, Reason: "send_failed", Reply: reply}
	}
	return models.WebhookResponse{Status: models.StatusOK, Reply: reply}
}

// deliverReply sends the reply, spoken when the voice policy says so and
// synthesis succeeds, as text otherwise.
func (s *Server) deliverReply(ctx context.Context, phone, reply string, userSentVoice bool) error {
	to, err := s.sender.ValidateAndCanonicalizeRecipient(phone)
	if err != nil {
		return err
	}

	if typer, ok := s.sender.(interface {
		Typing(ctx context.Context, to string, seconds int)
	}); ok {
		typer.Typing(ctx, to, DefaultTypingSeconds)
	}

	if s.policy != nil && s.synth != nil && s.policy.ShouldRespondWithVoice(phone, userSentVoice, len(reply)) {
		audioFile, synthErr := s.synth.Synthesize(ctx, reply)
		if synthErr != nil {
			slog.Warn("Server.deliverReply: synthesis failed, sending text", "error", synthErr, "phone", phone)
			return s.sender.SendText(ctx, to, reply)
		}
		return s.sender.SendVoice(ctx, to, audioFile, reply)
	}
	return s.sender.SendText(ctx, to, reply)
}

// voicePreprocessorHandler transcribes a voice payload and returns the
// rewritten payload without dispatching it. Useful for debugging the STT leg
// in isolation.
func (s *Server) voicePreprocessorHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req models.WebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.voicePreprocessorHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.processTimeout)
	defer cancel()

	payload := req.Effective()
	if s.voice != nil {
		payload = s.voice.Preprocess(ctx, payload)
	}
	writeJSONResponse(w, http.StatusOK, models.Success(payload))
}

// sendRequest is the body for POST /send.
type sendRequest struct {
	To      string `json:"to"`
	Message string `json:"message,omitempty"`
}

// sendHandler initiates a conversation from the assistant's side. When no
// message is given the model composes an opening greeting, which also seeds
// the conversation history.
func (s *Server) sendHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.sendHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	to, err := s.sender.ValidateAndCanonicalizeRecipient(req.To)
	if err != nil {
		slog.Warn("Server.sendHandler: recipient validation failed", "error", err, "original_to", req.To)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.processTimeout)
	defer cancel()

	message := req.Message
	if message == "" {
		result := s.dispatcher.Dispatch(ctx, s.initiationPrompt, req.To)
		message = result.Content
		if message == "" {
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to generate greeting"))
			return
		}
	}

	if err := s.sender.SendText(ctx, to, message); err != nil {
		slog.Error("Server.sendHandler: failed to send message", "error", err, "to", to)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to send message"))
		return
	}

	slog.Info("Server.sendHandler: message sent successfully", "to", to)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Message sent successfully", nil))
}

// healthHandler reports service health for monitoring and load balancing.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	healthData := map[string]interface{}{
		"status":          "healthy",
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds":  int64(time.Since(s.startTime).Seconds()),
		"memory_alloc_mb": memStats.Alloc / 1024 / 1024,
		"goroutines":      runtime.NumGoroutine(),
	}

	if s.st != nil {
		if count, err := s.st.ConversationCount(); err != nil {
			slog.Warn("Health check: failed to count conversations", "error", err)
			healthData["status"] = "degraded"
			healthData["error"] = "Failed to fetch conversation metrics"
		} else {
			healthData["active_conversations"] = count
		}
	}

	if s.sender != nil {
		healthData["transport_connected"] = s.sender.Connected(ctx)
	}

	statusCode := http.StatusOK
	if healthData["status"] == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, statusCode, healthData)
}

// statusHandler reports runtime counters.
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	stats := map[string]interface{}{
		"replies_sent":   s.processed.Load(),
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		"started_at":     s.startTime.UTC().Format(time.RFC3339),
	}
	writeJSONResponse(w, http.StatusOK, models.Success(stats))
}

// gatewayStatusHandler reports whether the messaging transport can deliver.
func (s *Server) gatewayStatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	connected := s.sender != nil && s.sender.Connected(ctx)
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"connected": connected,
	}))
}
