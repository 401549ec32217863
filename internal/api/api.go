// Package api provides the HTTP server for Wednesday.
//
// It exposes the WhatsApp webhook, a voice preprocessing endpoint, a
// conversation initiation endpoint, and health/status endpoints. The server
// integrates the store, messaging, voice, and assistant modules.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/wednesday-bot/wednesday/internal/messaging"
	"github.com/wednesday-bot/wednesday/internal/models"
	"github.com/wednesday-bot/wednesday/internal/ratelimit"
	"github.com/wednesday-bot/wednesday/internal/store"
	"github.com/wednesday-bot/wednesday/internal/voice"
)

// Default server configuration.
const (
	// DefaultAddr is the default listen address.
	DefaultAddr = ":8080"
	// DefaultReadTimeout bounds request reads.
	DefaultReadTimeout = 15 * time.Second
	// DefaultWriteTimeout bounds response writes. Webhook processing includes
	// a model call, so this is generous.
	DefaultWriteTimeout = 120 * time.Second
	// DefaultProcessTimeout bounds the processing of a single inbound message.
	DefaultProcessTimeout = 90 * time.Second
	// DefaultTypingSeconds is how long the typing indicator is shown while a
	// reply is being prepared.
	DefaultTypingSeconds = 3
)

// DefaultInitiationPrompt is sent to the model when POST /send carries no
// message, so the assistant opens the conversation itself.
const DefaultInitiationPrompt = "Introduce yourself briefly and ask how you can help today."

// Dispatcher runs one conversational turn and never fails.
type Dispatcher interface {
	Dispatch(ctx context.Context, message, phone string) models.DispatchResult
}

// FunctionExecutor resolves a function call to a reply string.
type FunctionExecutor interface {
	Execute(ctx context.Context, phone string, call *models.FunctionCall) string
}

// VoicePreprocessor rewrites voice payloads into text payloads.
type VoicePreprocessor interface {
	Preprocess(ctx context.Context, payload *models.WebhookPayload) *models.WebhookPayload
}

// VoicePolicy decides whether a reply should be spoken.
type VoicePolicy interface {
	ShouldRespondWithVoice(phone string, userSentVoice bool, replyLength int) bool
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr             string
	ProcessTimeout   time.Duration
	InitiationPrompt string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithProcessTimeout bounds the processing of a single inbound message.
func WithProcessTimeout(d time.Duration) Option {
	return func(o *Opts) { o.ProcessTimeout = d }
}

// WithInitiationPrompt overrides the prompt used to open conversations.
func WithInitiationPrompt(prompt string) Option {
	return func(o *Opts) { o.InitiationPrompt = prompt }
}

// Deps collects the modules the server orchestrates. Store, Sender, and
// Dispatcher are required; the rest degrade gracefully when nil.
type Deps struct {
	Store      store.Store
	Sender     messaging.Sender
	Dispatcher Dispatcher
	Executor   FunctionExecutor
	Voice      VoicePreprocessor
	Policy     VoicePolicy
	Synth      voice.Synthesizer
	Limiter    *ratelimit.Limiter
}

// Server is the Wednesday HTTP server.
type Server struct {
	addr             string
	processTimeout   time.Duration
	initiationPrompt string

	st         store.Store
	sender     messaging.Sender
	dispatcher Dispatcher
	executor   FunctionExecutor
	voice      VoicePreprocessor
	policy     VoicePolicy
	synth      voice.Synthesizer
	limiter    *ratelimit.Limiter

	startTime time.Time
	processed atomic.Int64
}

// NewServer creates the API server from its dependencies and options.
func NewServer(deps Deps, opts ...Option) *Server {
	cfg := Opts{
		Addr:             DefaultAddr,
		ProcessTimeout:   DefaultProcessTimeout,
		InitiationPrompt: DefaultInitiationPrompt,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Server{
		addr:             cfg.Addr,
		processTimeout:   cfg.ProcessTimeout,
		initiationPrompt: cfg.InitiationPrompt,
		st:               deps.Store,
		sender:           deps.Sender,
		dispatcher:       deps.Dispatcher,
		executor:         deps.Executor,
		voice:            deps.Voice,
		policy:           deps.Policy,
		synth:            deps.Synth,
		limiter:          deps.Limiter,
		startTime:        time.Now(),
	}
}

// Handler returns the routed http.Handler, exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.webhookHandler)
	mux.HandleFunc("/voice-preprocessor", s.voicePreprocessorHandler)
	mux.HandleFunc("/send", s.sendHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/status", s.statusHandler)
	mux.HandleFunc("/waha-status", s.gatewayStatusHandler)
	return mux
}

// Run starts the HTTP server and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Wednesday API listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Wednesday API shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
