// Package assistant implements the LLM dispatcher and function executor that
// sit between the webhook and the service integrations.
package assistant

import (
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
)

// UnhandledFunctionReply is returned for function names the executor doesn't know.
const UnhandledFunctionReply = "I couldn't handle that function call."

// Registry returns the function declarations advertised to the model.
// It carries no runtime logic; it only tells the model what it may call.
func Registry() []openai.ChatCompletionToolParam {
	return []openai.ChatCompletionToolParam{
		tool("play_song", "Play a specific song on Spotify",
			props{"song_name": strProp("Name of the song to play")}, "song_name"),
		tool("play_playlist", "Play a Spotify playlist from the user's library",
			props{"playlist_name": strProp("Name of the playlist to play")}, "playlist_name"),
		tool("play_album", "Play a Spotify album from the user's library",
			props{"album_name": strProp("Name of the album to play")}, "album_name"),
		tool("get_current_song", "Get the currently playing song on Spotify", props{}),
		tool("send_email", "Send an email via Gmail",
			props{
				"to":      strProp("Recipient email address"),
				"subject": strProp("Email subject line"),
				"body":    strProp("Email body text"),
			}, "to", "subject", "body"),
		tool("summarize_emails", "Summarize recent important emails (like today)", props{}),
		tool("create_event", "Create a Google Calendar event and invite people",
			props{
				"summary":    strProp("Event title"),
				"location":   strProp("Event location (optional)"),
				"start_time": strProp("Start time in RFC 3339 format, e.g. 2026-08-28T14:00:00Z"),
				"end_time":   strProp("End time in RFC 3339 format"),
				"attendees": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "List of emails to invite",
				},
			}, "summary", "start_time", "end_time"),
		tool("get_weather", "Get the current weather for a location",
			props{"location": strProp("City or place name, e.g. 'Cape Town'")}, "location"),
		tool("get_forecast", "Get the multi-day weather forecast for a location",
			props{"location": strProp("City or place name")}, "location"),
		tool("get_news", "Get current news headlines, optionally about a topic",
			props{"topic": strProp("Topic to filter headlines by (optional)")}),
		tool("create_task", "Create a task or to-do item for the user",
			props{
				"title":       strProp("Short task title"),
				"description": strProp("Longer task description (optional)"),
				"due_date":    strProp("Due date, e.g. 2026-08-30 or RFC 3339 (optional)"),
				"priority": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"low", "medium", "high", "urgent"},
					"description": "Task priority, defaults to medium",
				},
			}, "title"),
		tool("list_tasks", "List the user's open tasks",
			props{"include_completed": map[string]interface{}{
				"type":        "boolean",
				"description": "Also include completed tasks",
			}}),
		tool("complete_task", "Mark one of the user's tasks as completed",
			props{"task": strProp("Task ID or part of the task title")}, "task"),
		tool("create_reminder", "Set a reminder to be delivered at a specific time",
			props{
				"message":   strProp("What to remind the user about"),
				"remind_at": strProp("When to remind, RFC 3339 format, e.g. 2026-08-28T18:30:00Z"),
			}, "message", "remind_at"),
		tool("list_reminders", "List the user's pending reminders", props{}),
		tool("add_contact", "Save a person to the user's contacts",
			props{
				"name":  strProp("Contact's full name"),
				"cell":  strProp("Contact's phone number (optional)"),
				"email": strProp("Contact's email address (optional)"),
			}, "name"),
		tool("search_contacts", "Search the user's saved contacts by name",
			props{"query": strProp("Name or part of a name to search for")}, "query"),
		tool("toggle_voice_responses", "Turn voice note replies on or off for this user",
			props{"enabled": map[string]interface{}{
				"type":        "boolean",
				"description": "true to receive voice replies, false for text only",
			}}, "enabled"),
		tool("set_reply_style", "Adjust how the assistant writes its replies, e.g. concise, casual, no_emojis",
			props{
				"styles": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Style tags to apply, e.g. concise, detailed, formal, casual, no_emojis, bullet_points, extra_sassy",
				},
				"reset": map[string]interface{}{
					"type":        "boolean",
					"description": "Reset the reply style to default",
				},
			}),
	}
}

type props map[string]interface{}

func strProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func tool(name, description string, properties props, required ...string) openai.ChatCompletionToolParam {
	if required == nil {
		required = []string{}
	}
	return openai.ChatCompletionToolParam{
		Type: "function",
		Function: shared.FunctionDefinitionParam{
			Name:        name,
			Description: openai.String(description),
			Parameters: shared.FunctionParameters{
				"type":       "object",
				"properties": map[string]interface{}(properties),
				"required":   required,
			},
		},
	}
}
