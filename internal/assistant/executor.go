package assistant

import (
	"context"
	"fmt"
	"log/slog"

	"strings"

	"github.com/wednesday-bot/wednesday/internal/models"
	"github.com/wednesday-bot/wednesday/internal/services"
	"github.com/wednesday-bot/wednesday/internal/tone"
)

// Executor maps function-call names to service handlers. It is total: every
// input resolves to a reply string, never an error or a panic.
type Executor struct {
	spotify *services.SpotifyService
	google  *services.GoogleService
	weather *services.WeatherService
	news    *services.NewsService
	tasks   *services.TaskService
	styles  *tone.Manager
}

// NewExecutor creates an executor over the given services.
func NewExecutor(spotify *services.SpotifyService, google *services.GoogleService, weather *services.WeatherService, news *services.NewsService, tasks *services.TaskService) *Executor {
	return &Executor{spotify: spotify, google: google, weather: weather, news: news, tasks: tasks}
}

// UseStyles attaches the reply-style manager backing set_reply_style.
func (e *Executor) UseStyles(m *tone.Manager) {
	e.styles = m
}

// Execute dispatches the call to its handler and returns the reply string.
// Unknown names return UnhandledFunctionReply; handler panics are converted to
// error strings naming the failing function.
func (e *Executor) Execute(ctx context.Context, phone string, call *models.FunctionCall) (reply string) {
	if call == nil {
		return UnhandledFunctionReply
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Executor handler panicked", "function", call.Name, "panic", r)
			reply = fmt.Sprintf("Error executing %s: %v", call.Name, r)
		}
	}()

	slog.Debug("Executor dispatching", "function", call.Name, "phone", phone)

	switch call.Name {
	case "play_song":
		name, ok := stringParam(call, "song_name")
		if !ok {
			return missingParam(call.Name, "song_name")
		}
		return e.spotify.PlaySong(ctx, name)

	case "play_playlist":
		name, ok := stringParam(call, "playlist_name")
		if !ok {
			return missingParam(call.Name, "playlist_name")
		}
		return e.spotify.PlayPlaylist(ctx, name)

	case "play_album":
		name, ok := stringParam(call, "album_name")
		if !ok {
			return missingParam(call.Name, "album_name")
		}
		return e.spotify.PlayAlbum(ctx, name)

	case "get_current_song":
		return e.spotify.CurrentSong(ctx)

	case "send_email":
		to, okTo := stringParam(call, "to")
		subject, okSub := stringParam(call, "subject")
		body, okBody := stringParam(call, "body")
		if !okTo || !okSub || !okBody {
			return missingParam(call.Name, "to, subject and body")
		}
		return e.google.SendEmail(ctx, to, subject, body)

	case "summarize_emails":
		return e.google.SummarizeEmails(ctx)

	case "create_event":
		summary, okSum := stringParam(call, "summary")
		start, okStart := stringParam(call, "start_time")
		end, okEnd := stringParam(call, "end_time")
		if !okSum || !okStart || !okEnd {
			return missingParam(call.Name, "summary, start_time and end_time")
		}
		location, _ := stringParam(call, "location")
		return e.google.CreateEvent(ctx, summary, location, start, end, listParam(call, "attendees"))

	case "get_weather":
		location, ok := stringParam(call, "location")
		if !ok {
			return missingParam(call.Name, "location")
		}
		return e.weather.CurrentWeather(ctx, location)

	case "get_forecast":
		location, ok := stringParam(call, "location")
		if !ok {
			return missingParam(call.Name, "location")
		}
		return e.weather.Forecast(ctx, location)

	case "get_news":
		topic, _ := stringParam(call, "topic")
		return e.news.TopHeadlines(ctx, topic)

	case "create_task":
		title, ok := stringParam(call, "title")
		if !ok {
			return missingParam(call.Name, "title")
		}
		description, _ := stringParam(call, "description")
		dueDate, _ := stringParam(call, "due_date")
		priority, _ := stringParam(call, "priority")
		return e.tasks.CreateTask(ctx, phone, title, description, dueDate, priority, nil)

	case "list_tasks":
		return e.tasks.ListTasks(ctx, phone, boolParam(call, "include_completed"))

	case "complete_task":
		task, ok := stringParam(call, "task")
		if !ok {
			return missingParam(call.Name, "task")
		}
		return e.tasks.CompleteTask(ctx, phone, task)

	case "create_reminder":
		message, okMsg := stringParam(call, "message")
		remindAt, okAt := stringParam(call, "remind_at")
		if !okMsg || !okAt {
			return missingParam(call.Name, "message and remind_at")
		}
		return e.tasks.CreateReminder(ctx, phone, message, remindAt)

	case "list_reminders":
		return e.tasks.ListReminders(ctx, phone)

	case "add_contact":
		name, ok := stringParam(call, "name")
		if !ok {
			return missingParam(call.Name, "name")
		}
		cell, _ := stringParam(call, "cell")
		email, _ := stringParam(call, "email")
		return e.tasks.AddContact(ctx, phone, name, cell, email)

	case "search_contacts":
		query, ok := stringParam(call, "query")
		if !ok {
			return missingParam(call.Name, "query")
		}
		return e.tasks.SearchContacts(ctx, phone, query)

	case "toggle_voice_responses":
		enabled, ok := call.Parameters["enabled"].(bool)
		if !ok {
			return missingParam(call.Name, "enabled")
		}
		return e.tasks.SetVoiceResponses(ctx, phone, enabled)

	case "set_reply_style":
		if e.styles == nil {
			return UnhandledFunctionReply
		}
		if boolParam(call, "reset") {
			e.styles.Clear(phone)
			return "🎨 Reply style reset to default."
		}
		applied := e.styles.Set(phone, listParam(call, "styles"))
		if len(applied) == 0 {
			return "🤷 None of those styles are available. Try: " + strings.Join(tone.AllowedTags(), ", ")
		}
		return "🎨 Reply style updated: " + strings.Join(applied, ", ")

	default:
		slog.Warn("Executor unknown function", "function", call.Name)
		return UnhandledFunctionReply
	}
}

func missingParam(function, param string) string {
	return fmt.Sprintf("Error executing %s: missing required parameter %s", function, param)
}

// stringParam extracts a non-empty string parameter.
func stringParam(call *models.FunctionCall, key string) (string, bool) {
	v, ok := call.Parameters[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// boolParam extracts a boolean parameter, defaulting to false.
func boolParam(call *models.FunctionCall, key string) bool {
	if v, ok := call.Parameters[key].(bool); ok {
		return v
	}
	return false
}

// listParam extracts a list-of-strings parameter, tolerating mixed JSON types.
func listParam(call *models.FunctionCall, key string) []string {
	raw, ok := call.Parameters[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
