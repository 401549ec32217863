package assistant

import (
	"context"
	"strings"
	"testing"

	"github.com/wednesday-bot/wednesday/internal/models"
	"github.com/wednesday-bot/wednesday/internal/services"
	"github.com/wednesday-bot/wednesday/internal/store"
	"github.com/wednesday-bot/wednesday/internal/tone"
)

func newDemoExecutor(t *testing.T) *Executor {
	t.Helper()
	st := store.NewInMemoryStore()
	return NewExecutor(
		services.NewSpotifyService("", ""),
		services.NewGoogleService(false),
		services.NewWeatherService(""),
		services.NewNewsService(""),
		services.NewTaskService(st),
	)
}

func call(name string, params map[string]any) *models.FunctionCall {
	if params == nil {
		params = map[string]any{}
	}
	return &models.FunctionCall{Name: name, Parameters: params}
}

func TestExecuteUnknownFunction(t *testing.T) {
	e := newDemoExecutor(t)
	got := e.Execute(context.Background(), "123", call("launch_missiles", nil))
	if got != UnhandledFunctionReply {
		t.Errorf("unknown function reply = %q, want %q", got, UnhandledFunctionReply)
	}
}

func TestExecuteNilCall(t *testing.T) {
	e := newDemoExecutor(t)
	if got := e.Execute(context.Background(), "123", nil); got != UnhandledFunctionReply {
		t.Errorf("nil call reply = %q, want %q", got, UnhandledFunctionReply)
	}
}

func TestExecuteMissingParameter(t *testing.T) {
	e := newDemoExecutor(t)
	got := e.Execute(context.Background(), "123", call("play_song", nil))
	want := "Error executing play_song: missing required parameter song_name"
	if got != want {
		t.Errorf("missing param reply = %q, want %q", got, want)
	}

	got = e.Execute(context.Background(), "123", call("send_email", map[string]any{"to": "a@b.c"}))
	if !strings.Contains(got, "missing required parameter") {
		t.Errorf("partial email params should be rejected, got %q", got)
	}
}

func TestExecuteDemoModeReplies(t *testing.T) {
	e := newDemoExecutor(t)
	ctx := context.Background()

	if got := e.Execute(ctx, "123", call("play_song", map[string]any{"song_name": "Creep"})); !strings.Contains(got, "Creep") {
		t.Errorf("play_song demo reply should name the song: %q", got)
	}
	if got := e.Execute(ctx, "123", call("get_weather", map[string]any{"location": "Lisbon"})); !strings.Contains(got, "Lisbon") {
		t.Errorf("get_weather demo reply should name the location: %q", got)
	}
	if got := e.Execute(ctx, "123", call("get_news", nil)); !strings.Contains(got, "headlines") {
		t.Errorf("get_news demo reply unexpected: %q", got)
	}
	if got := e.Execute(ctx, "123", call("summarize_emails", nil)); !strings.Contains(got, "demo mode") {
		t.Errorf("summarize_emails demo reply unexpected: %q", got)
	}
}

func TestExecuteTaskRoundTrip(t *testing.T) {
	e := newDemoExecutor(t)
	ctx := context.Background()

	got := e.Execute(ctx, "123", call("create_task", map[string]any{"title": "buy milk", "priority": "high"}))
	if !strings.Contains(got, "buy milk") || !strings.Contains(got, "high") {
		t.Fatalf("create_task reply = %q", got)
	}

	got = e.Execute(ctx, "123", call("list_tasks", nil))
	if !strings.Contains(got, "buy milk") {
		t.Errorf("list_tasks should include the created task: %q", got)
	}

	got = e.Execute(ctx, "123", call("complete_task", map[string]any{"task": "milk"}))
	if !strings.Contains(got, "Marked") {
		t.Errorf("complete_task by title substring failed: %q", got)
	}
}

func TestExecuteReminderValidation(t *testing.T) {
	e := newDemoExecutor(t)
	got := e.Execute(context.Background(), "123", call("create_reminder", map[string]any{
		"message":   "stretch",
		"remind_at": "whenever you feel like it",
	}))
	if !strings.Contains(got, "couldn't understand the time") {
		t.Errorf("bad remind_at should produce a parse complaint: %q", got)
	}

	got = e.Execute(context.Background(), "123", call("create_reminder", map[string]any{
		"message":   "stretch",
		"remind_at": "2026-08-28T18:30:00Z",
	}))
	if !strings.Contains(got, "Reminder set") {
		t.Errorf("valid reminder rejected: %q", got)
	}
}

func TestExecuteSetReplyStyle(t *testing.T) {
	e := newDemoExecutor(t)
	ctx := context.Background()

	// Without a style manager attached the function is unhandled.
	if got := e.Execute(ctx, "123", call("set_reply_style", map[string]any{"styles": []any{"concise"}})); got != UnhandledFunctionReply {
		t.Fatalf("styleless executor reply = %q", got)
	}

	e.UseStyles(tone.NewManager())

	got := e.Execute(ctx, "123", call("set_reply_style", map[string]any{"styles": []any{"concise", "no_emojis"}}))
	if !strings.Contains(got, "concise") || !strings.Contains(got, "no_emojis") {
		t.Errorf("applied styles missing from reply: %q", got)
	}

	got = e.Execute(ctx, "123", call("set_reply_style", map[string]any{"styles": []any{"telepathic"}}))
	if !strings.Contains(got, "None of those styles") {
		t.Errorf("unknown style should list the available tags: %q", got)
	}

	got = e.Execute(ctx, "123", call("set_reply_style", map[string]any{"reset": true}))
	if !strings.Contains(got, "reset") {
		t.Errorf("reset reply = %q", got)
	}
}

func TestExecuteContactRoundTrip(t *testing.T) {
	e := newDemoExecutor(t)
	ctx := context.Background()

	got := e.Execute(ctx, "123", call("add_contact", map[string]any{
		"name": "Alice Smith", "cell": "5551234", "email": "alice@example.com",
	}))
	if !strings.Contains(got, "Alice Smith") {
		t.Fatalf("add_contact reply = %q", got)
	}

	got = e.Execute(ctx, "123", call("search_contacts", map[string]any{"query": "alice"}))
	if !strings.Contains(got, "Alice Smith") || !strings.Contains(got, "5551234") {
		t.Errorf("saved contact not found: %q", got)
	}

	got = e.Execute(ctx, "123", call("add_contact", nil))
	if !strings.Contains(got, "missing required parameter name") {
		t.Errorf("nameless contact accepted: %q", got)
	}
}

func TestExecuteToggleVoiceResponses(t *testing.T) {
	st := store.NewInMemoryStore()
	e := NewExecutor(
		services.NewSpotifyService("", ""),
		services.NewGoogleService(false),
		services.NewWeatherService(""),
		services.NewNewsService(""),
		services.NewTaskService(st),
	)
	ctx := context.Background()

	got := e.Execute(ctx, "123", call("toggle_voice_responses", map[string]any{"enabled": false}))
	if !strings.Contains(got, "off") {
		t.Fatalf("disable reply = %q", got)
	}
	if pref, _ := st.GetVoicePreference("123"); pref {
		t.Error("disabled preference not persisted")
	}

	got = e.Execute(ctx, "123", call("toggle_voice_responses", map[string]any{"enabled": true}))
	if !strings.Contains(got, "on") {
		t.Fatalf("enable reply = %q", got)
	}
	if pref, _ := st.GetVoicePreference("123"); !pref {
		t.Error("enabled preference not persisted")
	}

	got = e.Execute(ctx, "123", call("toggle_voice_responses", nil))
	if !strings.Contains(got, "missing required parameter enabled") {
		t.Errorf("missing enabled parameter accepted: %q", got)
	}
}

func TestExecuteHandlesEveryRegisteredFunction(t *testing.T) {
	// Every function advertised to the model must dispatch to a handler;
	// UnhandledFunctionReply is reserved for names outside the registry.
	e := newDemoExecutor(t)
	e.UseStyles(tone.NewManager())
	ctx := context.Background()

	for _, decl := range Registry() {
		name := decl.Function.Name
		got := e.Execute(ctx, "123", call(name, nil))
		if got == UnhandledFunctionReply {
			t.Errorf("%s is declared but not dispatched", name)
		}
		if got == "" {
			t.Errorf("%s returned an empty reply", name)
		}
	}
}

func TestExecuteRecoversFromPanic(t *testing.T) {
	// A nil service makes the handler panic; Execute must convert that into
	// an error reply instead of crashing the webhook goroutine.
	e := NewExecutor(nil, nil, nil, nil, nil)
	got := e.Execute(context.Background(), "123", call("get_current_song", nil))
	if !strings.HasPrefix(got, "Error executing get_current_song:") {
		t.Errorf("panic not converted to error reply: %q", got)
	}
}
