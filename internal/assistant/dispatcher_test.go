package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/wednesday-bot/wednesday/internal/genai"
	"github.com/wednesday-bot/wednesday/internal/store"
	"github.com/wednesday-bot/wednesday/internal/tone"
)

type fakeModel struct {
	result   *genai.ChatResult
	err      error
	messages []openai.ChatCompletionMessageParamUnion
	tools    []openai.ChatCompletionToolParam
}

func (f *fakeModel) ChatWithTools(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, tools []openai.ChatCompletionToolParam) (*genai.ChatResult, error) {
	f.messages = messages
	f.tools = tools
	return f.result, f.err
}


func TestDispatchTextReply(t *testing.T) {
	st := store.NewInMemoryStore()
	model := &fakeModel{result: &genai.ChatResult{Content: "Hello! How can I help?"}}
	d := NewDispatcher(model, st, "")

	res := d.Dispatch(context.Background(), "hi there", "123")
	if res.Call != nil || res.Content != "Hello! How can I help?" {
		t.Fatalf("unexpected result: %+v", res)
	}

	history, _ := st.GetConversationHistory("123", 0)
	if len(history) != 2 {
		t.Fatalf("recorded turns = %d, want 2", len(history))
	}
	if history[0].Role != "user" || history[0].Content != "hi there" {
		t.Errorf("user turn not recorded: %+v", history[0])
	}
	if history[1].Role != "assistant" || history[1].Content != "Hello! How can I help?" {
		t.Errorf("assistant turn not recorded: %+v", history[1])
	}

	if len(model.tools) == 0 {
		t.Error("function registry not attached to the model call")
	}
}

func TestDispatchFunctionCall(t *testing.T) {
	st := store.NewInMemoryStore()
	model := &fakeModel{result: &genai.ChatResult{
		ToolCalls: []genai.ToolCall{{ID: "call_1", Name: "get_weather", Arguments: `{"location":"Cape Town"}`}},
	}}
	d := NewDispatcher(model, st, "")

	res := d.Dispatch(context.Background(), "weather?", "123")
	if res.Call == nil {
		t.Fatalf("expected a function call, got %+v", res)
	}
	if res.Call.Name != "get_weather" || res.Call.Parameters["location"] != "Cape Town" {
		t.Errorf("call not normalized: %+v", res.Call)
	}

	history, _ := st.GetConversationHistory("123", 0)
	if len(history) != 2 || !strings.HasPrefix(history[1].Content, "Function call: get_weather") {
		t.Errorf("function call turn not recorded: %+v", history)
	}
}

func TestDispatchModelFailure(t *testing.T) {
	st := store.NewInMemoryStore()
	model := &fakeModel{err: errors.New("deadline exceeded")}
	d := NewDispatcher(model, st, "")

	res := d.Dispatch(context.Background(), "hi", "123")
	if res.Content != DelayReply {
		t.Errorf("failure reply = %q, want DelayReply", res.Content)
	}

	// The failed turn is still part of the conversation.
	history, _ := st.GetConversationHistory("123", 0)
	if len(history) != 2 || history[1].Content != DelayReply {
		t.Errorf("failure turn not recorded: %+v", history)
	}
}

func TestDispatchEmptyCompletion(t *testing.T) {
	st := store.NewInMemoryStore()
	model := &fakeModel{result: &genai.ChatResult{Content: "   "}}
	d := NewDispatcher(model, st, "")

	res := d.Dispatch(context.Background(), "hi", "123")
	if res.Content != fallbackReply {
		t.Errorf("blank completion reply = %q, want fallback", res.Content)
	}
}

func TestDispatchIncludesHistoryInPrompt(t *testing.T) {
	st := store.NewInMemoryStore()
	model := &fakeModel{result: &genai.ChatResult{Content: "ok"}}
	d := NewDispatcher(model, st, "")

	d.Dispatch(context.Background(), "first message", "123")
	d.Dispatch(context.Background(), "second message", "123")

	if len(model.messages) != 2 {
		t.Fatalf("prompt messages = %d, want system + user", len(model.messages))
	}
	prompt := model.messages[1].OfUser.Content.OfString.Value
	if !strings.Contains(prompt, "conversation history") || !strings.Contains(prompt, "first message") {
		t.Errorf("history missing from prompt:\n%s", prompt)
	}
	if !strings.HasSuffix(prompt, "User: second message") {
		t.Errorf("new message not at the end of the prompt:\n%s", prompt)
	}
}

func TestDispatchAppendsStyleGuide(t *testing.T) {
	st := store.NewInMemoryStore()
	model := &fakeModel{result: &genai.ChatResult{Content: "ok"}}
	d := NewDispatcher(model, st, "")

	styles := tone.NewManager()
	styles.Set("123", []string{"concise"})
	d.UseStyles(styles)

	d.Dispatch(context.Background(), "hi", "123")
	system := model.messages[0].OfSystem.Content.OfString.Value
	if !strings.Contains(system, "Reply style preferences") {
		t.Errorf("style guide not appended to system prompt:\n%s", system)
	}
}

func TestNormalizeArguments(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want int
	}{
		{"valid object", `{"a":1,"b":"x"}`, 2},
		{"empty string", "", 0},
		{"whitespace", "   ", 0},
		{"malformed", `{"a":`, 0},
		{"null", "null", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := NormalizeArguments(tc.raw)
			if params == nil {
				t.Fatal("NormalizeArguments returned nil map")
			}
			if len(params) != tc.want {
				t.Errorf("len = %d, want %d", len(params), tc.want)
			}
		})
	}
}
