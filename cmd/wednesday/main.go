// Command wednesday runs the Wednesday WhatsApp personal assistant.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/wednesday-bot/wednesday/internal/api"
	"github.com/wednesday-bot/wednesday/internal/assistant"
	"github.com/wednesday-bot/wednesday/internal/genai"
	"github.com/wednesday-bot/wednesday/internal/lockfile"
	"github.com/wednesday-bot/wednesday/internal/messaging"
	"github.com/wednesday-bot/wednesday/internal/models"
	"github.com/wednesday-bot/wednesday/internal/ratelimit"
	"github.com/wednesday-bot/wednesday/internal/recovery"
	"github.com/wednesday-bot/wednesday/internal/scheduler"
	"github.com/wednesday-bot/wednesday/internal/services"
	"github.com/wednesday-bot/wednesday/internal/store"
	"github.com/wednesday-bot/wednesday/internal/tone"
	"github.com/wednesday-bot/wednesday/internal/twiliowhatsapp"
	"github.com/wednesday-bot/wednesday/internal/util"
	"github.com/wednesday-bot/wednesday/internal/voice"
	"github.com/wednesday-bot/wednesday/internal/waha"
	"github.com/wednesday-bot/wednesday/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for Wednesday state data
	DefaultStateDir = "/var/lib/wednesday"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "wednesday.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	slog.Info("Bootstrapping Wednesday with configured modules")
	if err := run(config, flags); err != nil {
		slog.Error("Wednesday failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Wednesday exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL     string
	StateDir        string
	APIAddr         string
	Transport       string
	WahaURL         string
	WahaAPIKey      string
	WahaSession     string
	WhatsAppDSN     string
	GeminiAPIKey    string
	GeminiModel     string
	SpeechAPIKey    string
	Personality     string
	InitialPrompt   string
	VoiceEnabled    bool
	MaxVoiceLength  int
	MaxPerMinute    int
	MaxMessages     int
	MaxConvos       int
	WeatherAPIKey   string
	NewsAPIKey      string
	SpotifyClientID string
	SpotifySecret   string
	GoogleDemo      bool
	ReminderExpr    string
	KeepAliveSecs   int
	ProcessTimeout  time.Duration
}

// Flags holds command line flag values
type Flags struct {
	stateDir  *string
	dbDSN     *string
	apiAddr   *string
	transport *string
	qrOutput  *string
	numeric   *bool
}

// initializeLogger sets up structured logging
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		StateDir:        os.Getenv("WEDNESDAY_STATE_DIR"),
		APIAddr:         os.Getenv("API_ADDR"),
		Transport:       os.Getenv("TRANSPORT"),
		WahaURL:         os.Getenv("WAHA_URL"),
		WahaAPIKey:      os.Getenv("WAHA_API_KEY"),
		WahaSession:     os.Getenv("WAHA_SESSION"),
		WhatsAppDSN:     os.Getenv("WHATSAPP_DB_DSN"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     os.Getenv("GEMINI_MODEL"),
		SpeechAPIKey:    os.Getenv("GOOGLE_SPEECH_API_KEY"),
		Personality:     os.Getenv("PERSONALITY_PROMPT"),
		InitialPrompt:   os.Getenv("INITIAL_MESSAGE_PROMPT"),
		VoiceEnabled:    util.ParseBoolEnv("ENABLE_VOICE_RESPONSES", true),
		MaxVoiceLength:  util.ParseIntEnv("MAX_VOICE_RESPONSE_LENGTH", models.DefaultMaxVoiceResponseLength),
		MaxPerMinute:    util.ParseIntEnv("MAX_REQUESTS_PER_MINUTE", models.DefaultMaxRequestsPerMinute),
		MaxMessages:     util.ParseIntEnv("MAX_MESSAGES_PER_USER", models.DefaultMaxMessagesPerUser),
		MaxConvos:       util.ParseIntEnv("MAX_CONVERSATIONS", 0),
		WeatherAPIKey:   os.Getenv("OPENWEATHER_API_KEY"),
		NewsAPIKey:      os.Getenv("NEWS_API_KEY"),
		SpotifyClientID: os.Getenv("SPOTIFY_CLIENT_ID"),
		SpotifySecret:   os.Getenv("SPOTIFY_CLIENT_SECRET"),
		GoogleDemo:      util.ParseBoolEnv("GOOGLE_SERVICES_DEMO", true),
		ReminderExpr:    os.Getenv("REMINDER_POLL_SCHEDULE"),
		KeepAliveSecs:   util.ParseIntEnv("WAHA_KEEPALIVE_INTERVAL", 600),
		ProcessTimeout:  util.ParseDurationEnv("PROCESS_TIMEOUT", api.DefaultProcessTimeout),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No WEDNESDAY_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.Transport == "" {
		config.Transport = "waha"
	}
	return config
}

// parseCommandLineFlags parses command line flags, with environment values as defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:  flag.String("state-dir", config.StateDir, "Directory for Wednesday state data"),
		dbDSN:     flag.String("db-dsn", config.DatabaseURL, "Database connection string (SQLite path or PostgreSQL URL)"),
		apiAddr:   flag.String("addr", config.APIAddr, "API listen address"),
		transport: flag.String("transport", config.Transport, "Messaging transport: waha, whatsmeow, or twilio"),
		qrOutput:  flag.String("qr-output", "", "Path to write WhatsApp login QR code (whatsmeow transport)"),
		numeric:   flag.Bool("numeric-code", false, "Use numeric WhatsApp login code instead of QR (whatsmeow transport)"),
	}
	flag.Parse()
	return flags
}

// ensureDirectoriesExist creates the state directory when using file-backed storage
func ensureDirectoriesExist(flags Flags) error {
	return os.MkdirAll(*flags.stateDir, 0o755)
}

// buildStore selects the storage backend from the DSN: PostgreSQL for
// postgres URLs, SQLite otherwise, memory-only when explicitly requested.
func buildStore(config Config, flags Flags) (store.Store, error) {
	dsn := *flags.dbDSN
	switch {
	case dsn == "memory":
		slog.Info("Using in-memory store")
		return store.NewInMemoryStore(
			store.WithMaxMessages(config.MaxMessages),
			store.WithMaxConversations(config.MaxConvos),
		), nil
	case store.DetectDSNType(dsn) == "postgres":
		slog.Info("Using PostgreSQL store")
		return store.NewPostgresStore(store.WithPostgresDSN(dsn), store.WithMaxMessages(config.MaxMessages))
	default:
		if dsn == "" {
			dsn = filepath.Join(*flags.stateDir, DefaultDBFileName)
		}
		slog.Info("Using SQLite store", "path", dsn)
		return store.NewSQLiteStore(store.WithSQLiteDSN(dsn), store.WithMaxMessages(config.MaxMessages))
	}
}

// buildSender selects the messaging transport.
func buildSender(config Config, flags Flags) (messaging.Sender, *waha.Client, error) {
	switch *flags.transport {
	case "whatsmeow":
		waOpts := []whatsapp.Option{}
		dsn := config.WhatsAppDSN
		if dsn == "" {
			dsn = filepath.Join(*flags.stateDir, "whatsmeow.db") + "?_foreign_keys=on"
		}
		waOpts = append(waOpts, whatsapp.WithDBDSN(dsn))
		if *flags.qrOutput != "" {
			waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
		}
		if *flags.numeric {
			waOpts = append(waOpts, whatsapp.WithNumericCode())
		}
		client, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return nil, nil, err
		}
		return messaging.NewWhatsmeowSender(client), nil, nil

	case "twilio":
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, nil, err
		}
		return messaging.NewTwilioSender(client), nil, nil

	default:
		client := waha.NewClient(
			waha.WithURL(config.WahaURL),
			waha.WithAPIKey(config.WahaAPIKey),
			waha.WithSession(config.WahaSession),
		)
		return messaging.NewWAHASender(client), client, nil
	}
}

// run wires the modules together and serves until interrupted.
func run(config Config, flags Flags) error {
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := buildStore(config, flags)
	if err != nil {
		return err
	}
	defer st.Close()

	sender, wahaClient, err := buildSender(config, flags)
	if err != nil {
		return err
	}
	defer sender.Stop()

	genaiOpts := []genai.Option{genai.WithAPIKey(config.GeminiAPIKey)}
	if config.GeminiModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(config.GeminiModel))
	}
	gaClient, err := genai.NewClient(genaiOpts...)
	if err != nil {
		return err
	}

	spotify := services.NewSpotifyService(config.SpotifyClientID, config.SpotifySecret)
	google := services.NewGoogleService(!config.GoogleDemo)
	weather := services.NewWeatherService(config.WeatherAPIKey)
	news := services.NewNewsService(config.NewsAPIKey)
	tasks := services.NewTaskService(st)

	styles := tone.NewManager()
	dispatcher := assistant.NewDispatcher(gaClient, st, config.Personality)
	dispatcher.UseStyles(styles)
	executor := assistant.NewExecutor(spotify, google, weather, news, tasks)
	executor.UseStyles(styles)

	speech := voice.NewGoogleSpeech(config.SpeechAPIKey)
	// Only the WAHA gateway can fetch media; on the other transports the
	// pipeline degrades every voice note to the placeholder transcript.
	var downloader voice.MediaDownloader
	if wahaClient != nil {
		downloader = wahaClient
	}
	pipeline := voice.NewPipeline(downloader, speech)
	responder := voice.NewResponder(config.VoiceEnabled, config.MaxVoiceLength, st)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec := recovery.NewManager()
	rec.Register(recovery.NewStaleAudioCleaner(""))
	rec.Register(recovery.NewReminderBacklog(st))
	if err := rec.RecoverAll(ctx); err != nil {
		slog.Warn("Startup recovery reported errors, continuing", "error", err)
	}

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	notifier := scheduler.NewReminderNotifier(st, sender)
	if err := notifier.Register(sched, config.ReminderExpr); err != nil {
		return err
	}
	keepAliveExpr := ""
	if config.KeepAliveSecs > 0 {
		keepAliveExpr = fmt.Sprintf("@every %ds", config.KeepAliveSecs)
	}
	if err := scheduler.RegisterKeepAlive(sched, sender, keepAliveExpr); err != nil {
		return err
	}

	// Whatsmeow transport receives messages directly instead of via webhook.
	deps := api.Deps{
		Store:      st,
		Sender:     sender,
		Dispatcher: dispatcher,
		Executor:   executor,
		Voice:      pipeline,
		Policy:     responder,
		Synth:      speech,
		Limiter:    ratelimit.NewLimiter(config.MaxPerMinute),
	}

	apiOpts := []api.Option{api.WithProcessTimeout(config.ProcessTimeout)}
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if config.InitialPrompt != "" {
		apiOpts = append(apiOpts, api.WithInitiationPrompt(config.InitialPrompt))
	}
	srv := api.NewServer(deps, apiOpts...)

	if ws, ok := sender.(*messaging.WhatsmeowSender); ok {
		if err := ws.Start(ctx); err != nil {
			return err
		}
		go consumeDirectMessages(ctx, srv, ws)
	}

	return srv.Run(ctx)
}

// consumeDirectMessages feeds whatsmeow inbound messages through the same
// processing path the webhook uses.
func consumeDirectMessages(ctx context.Context, srv *api.Server, ws *messaging.WhatsmeowSender) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-ws.Messages():
			if !ok {
				return
			}
			srv.ProcessDirect(ctx, &payload)
		}
	}
}
