package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/wednesday-bot/wednesday/internal/genai"
	"github.com/wednesday-bot/wednesday/internal/models"
	"github.com/wednesday-bot/wednesday/internal/store"
	"github.com/wednesday-bot/wednesday/internal/tone"
)

// DefaultPersonality is the personality preamble when none is configured.
const DefaultPersonality = "You are Wednesday, a helpful personal assistant with the personality of Jarvis from Iron Man, plus a tiny bit of sarcasm and sass when the mood calls for it. " +
	"You can play music, send emails, create calendar events, check the weather and news, and manage tasks and reminders. " +
	"When the user asks for any of those, you MUST use the available functions instead of replying with text."

// DelayReply is returned when the model call times out or fails.
const DelayReply = "Sorry, I'm experiencing delays right now. Give me a moment and try again."

// fallbackReply is returned when the model produces neither text nor a call.
const fallbackReply = "Sorry, I couldn't understand or generate a response."

// DefaultHistoryLimit is how many recent turns are included in the prompt.
const DefaultHistoryLimit = 10

// Dispatcher sends user messages to the model with the function registry
// attached and normalizes the outcome. It never returns an error: every call,
// successful or not, yields a DispatchResult and records exactly two new
// conversation entries (the user turn and the resulting assistant turn).
type Dispatcher struct {
	client       genai.ClientInterface
	st           store.Store
	personality  string
	historyLimit int
	styles       *tone.Manager
}

// NewDispatcher creates a dispatcher. An empty personality selects the default.
func NewDispatcher(client genai.ClientInterface, st store.Store, personality string) *Dispatcher {
	if personality == "" {
		personality = DefaultPersonality
	}
	return &Dispatcher{
		client:       client,
		st:           st,
		personality:  personality,
		historyLimit: DefaultHistoryLimit,
	}
}

// UseStyles attaches a reply-style manager whose per-user guide is appended
// to the system prompt.
func (d *Dispatcher) UseStyles(m *tone.Manager) {
	d.styles = m
}

// Dispatch runs one conversational turn for phone.
func (d *Dispatcher) Dispatch(ctx context.Context, message, phone string) models.DispatchResult {
	history, err := d.st.GetConversationHistory(phone, d.historyLimit)
	if err != nil {
		slog.Warn("Dispatcher could not load history, continuing without", "error", err, "phone", phone)
	}

	prompt := d.buildPrompt(history, message)
	system := d.personality
	if d.styles != nil {
		if guide := d.styles.Guide(phone); guide != "" {
			system += "\n\n" + guide
		}
	}
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(system),
		openai.UserMessage(prompt),
	}

	result, err := d.client.ChatWithTools(ctx, messages, Registry())
	if err != nil {
		slog.Error("Dispatcher model call failed", "error", err, "phone", phone)
		d.record(phone, message, DelayReply)
		return models.DispatchResult{Content: DelayReply}
	}

	if len(result.ToolCalls) > 0 {
		tc := result.ToolCalls[0]
		params := NormalizeArguments(tc.Arguments)
		call := &models.FunctionCall{Name: tc.Name, Parameters: params}
		d.record(phone, message, fmt.Sprintf("Function call: %s(%v)", tc.Name, params))
		slog.Info("Dispatcher resolved function call", "function", tc.Name, "phone", phone)
		return models.DispatchResult{Call: call}
	}

	content := strings.TrimSpace(result.Content)
	if content == "" {
		content = fallbackReply
	}
	d.record(phone, message, content)
	return models.DispatchResult{Content: content}
}

// buildPrompt joins the recent history as plain text ahead of the new message.
func (d *Dispatcher) buildPrompt(history []models.ConversationMessage, message string) string {
	var b strings.Builder
	if len(history) > 0 {
		b.WriteString("Here's the conversation history:\n")
		for _, m := range history {
			role := "User"
			if m.Role == "assistant" {
				role = "Assistant"
			}
			fmt.Fprintf(&b, "%s: %s\n", role, m.Content)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "User: %s", message)
	return b.String()
}

// record appends the user turn and the assistant turn to the conversation.
func (d *Dispatcher) record(phone, userMsg, assistantMsg string) {
	now := time.Now()
	if err := d.st.AddConversationMessage(phone, models.ConversationMessage{Role: "user", Content: userMsg, Timestamp: now}); err != nil {
		slog.Error("Dispatcher could not record user turn", "error", err, "phone", phone)
	}
	if err := d.st.AddConversationMessage(phone, models.ConversationMessage{Role: "assistant", Content: assistantMsg, Timestamp: now}); err != nil {
		slog.Error("Dispatcher could not record assistant turn", "error", err, "phone", phone)
	}
}

// NormalizeArguments converts the model's raw JSON argument payload into a
// plain key/value map so the executor only ever sees simple data. Malformed
// payloads yield an empty map rather than an error.
func NormalizeArguments(raw string) map[string]any {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		slog.Warn("NormalizeArguments could not decode arguments", "error", err)
		return map[string]any{}
	}
	if params == nil {
		return map[string]any{}
	}
	return params
}
