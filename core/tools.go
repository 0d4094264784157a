package core

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	toolNameSend  = "ntfy_send"
	toolNameFetch = "ntfy_fetch"
)

func registerTools(mcpServer *server.MCPServer, client *NtfyClient, logger *log.Logger) {
	mcpServer.AddTool(sendTool(), sendHandler(client, logger))
	mcpServer.AddTool(fetchTool(), fetchHandler(client, logger))
}

func sendTool() mcp.Tool {
	return mcp.NewTool(toolNameSend,
		mcp.WithDescription("Send a push notification via the configured ntfy server. "+
			"Markdown formatting in the message is detected automatically and up to three URLs "+
			"in the message become clickable view buttons, unless overridden."),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("Notification body"),
		),
		mcp.WithString("title",
			mcp.Description("Notification title"),
		),
		mcp.WithString("priority",
			mcp.Description("Notification priority"),
			mcp.Enum("min", "low", "default", "high", "max"),
		),
		mcp.WithArray("tags",
			mcp.Description("Tags or emoji shortcodes to attach"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithBoolean("markdown",
			mcp.Description("Force markdown formatting on or off. Omit to auto-detect from the message."),
		),
		mcp.WithArray("actions",
			mcp.Description("Explicit view action buttons as {url, label, clear} objects, max 3. "+
				"Omit to derive buttons from URLs found in the message; pass an empty array for none."),
			mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"url":   map[string]any{"type": "string"},
					"label": map[string]any{"type": "string"},
					"clear": map[string]any{"type": "boolean"},
				},
				"required": []string{"url"},
			}),
		),
		mcp.WithString("topic",
			mcp.Description("Topic to publish to, overrides the configured default"),
		),
		mcp.WithString("delay",
			mcp.Description("Delivery delay, e.g. 30m or tomorrow 10am"),
		),
		mcp.WithString("click",
			mcp.Description("URL to open when the notification itself is tapped"),
		),
		mcp.WithString("icon",
			mcp.Description("URL of an icon to show with the notification"),
		),
		mcp.WithString("email",
			mcp.Description("Address to forward the notification to by e-mail"),
		),
	)
}

func fetchTool() mcp.Tool {
	return mcp.NewTool(toolNameFetch,
		mcp.WithDescription("Fetch messages cached by the ntfy server for a topic, "+
			"optionally filtered by content, title, priority or tag."),
		mcp.WithString("topic",
			mcp.Description("Topic to read, overrides the configured default"),
		),
		mcp.WithString("since",
			mcp.Description("How far back to look: a duration (10m, 3h), a unix timestamp, "+
				"a message id, or 'all'. Defaults to 10m."),
		),
		mcp.WithString("message_contains",
			mcp.Description("Only messages whose body contains this text (case-insensitive)"),
		),
		mcp.WithString("title_contains",
			mcp.Description("Only messages whose title contains this text (case-insensitive)"),
		),
		mcp.WithString("priority",
			mcp.Description("Only messages with exactly this priority"),
			mcp.Enum("min", "low", "default", "high", "max"),
		),
		mcp.WithString("tag",
			mcp.Description("Only messages carrying this tag"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of messages to return, most recent kept"),
		),
	)
}

func sendHandler(client *NtfyClient, logger *log.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		message := strArg(args, "message")
		if strings.TrimSpace(message) == "" {
			return mcp.NewToolResultError("message is required"), nil
		}

		request := PublishRequest{
			Topic:    strArg(args, "topic"),
			Message:  message,
			Title:    strArg(args, "title"),
			Priority: strArg(args, "priority"),
			Tags:     strSliceArg(args, "tags"),
			Delay:    strArg(args, "delay"),
			Click:    strArg(args, "click"),
			Icon:     strArg(args, "icon"),
			Email:    strArg(args, "email"),
			Markdown: boolPtrArg(args, "markdown"),
			Actions:  actionsArg(args),
		}

		receipt, err := client.Publish(ctx, request)
		if err != nil {
			logger.Printf("Tool %s failed: %v", toolNameSend, err)
			return mcp.NewToolResultError(fmt.Sprintf("failed to send notification: %v", err)), nil
		}

		var summary strings.Builder
		fmt.Fprintf(&summary, "Notification sent to topic %q", receipt.Topic)
		if receipt.ID != "" {
			fmt.Fprintf(&summary, " (id %s)", receipt.ID)
		}
		summary.WriteString(".")
		if receipt.Markdown {
			summary.WriteString(" Markdown formatting enabled.")
		}
		if len(receipt.Actions) > 0 {
			labels := make([]string, 0, len(receipt.Actions))
			for _, action := range receipt.Actions {
				labels = append(labels, action.Label)
			}
			fmt.Fprintf(&summary, " %d view action(s) attached: %s.", len(receipt.Actions), strings.Join(labels, ", "))
		}

		return mcp.NewToolResultText(summary.String()), nil
	}
}

func fetchHandler(client *NtfyClient, logger *log.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		params := FetchParams{
			Topic:           strArg(args, "topic"),
			Since:           strArg(args, "since"),
			MessageContains: strArg(args, "message_contains"),
			TitleContains:   strArg(args, "title_contains"),
			Priority:        strArg(args, "priority"),
			Tag:             strArg(args, "tag"),
			Limit:           intArg(args, "limit", 0),
		}

		messages, err := client.Fetch(ctx, params)
		if err != nil {
			logger.Printf("Tool %s failed: %v", toolNameFetch, err)
			return mcp.NewToolResultError(fmt.Sprintf("failed to fetch messages: %v", err)), nil
		}

		if len(messages) == 0 {
			return mcp.NewToolResultText("No cached messages matched."), nil
		}

		var out strings.Builder
		fmt.Fprintf(&out, "Found %d message(s):\n\n", len(messages))
		for i, message := range messages {
			fmt.Fprintf(&out, "[%d] %s", i+1, formatMessage(message))
		}
		return mcp.NewToolResultText(out.String()), nil
	}
}

func formatMessage(message Message) string {
	var out strings.Builder
	title := message.Title
	if title == "" {
		title = "(no title)"
	}
	fmt.Fprintf(&out, "%s — %s\n", title, time.Unix(message.Time, 0).UTC().Format(time.RFC3339))
	if message.Message != "" {
		fmt.Fprintf(&out, "    %s\n", message.Message)
	}
	meta := make([]string, 0, 3)
	if message.Priority != 0 {
		meta = append(meta, fmt.Sprintf("priority: %d", message.Priority))
	}
	if len(message.Tags) > 0 {
		meta = append(meta, "tags: "+strings.Join(message.Tags, ","))
	}
	if message.ID != "" {
		meta = append(meta, "id: "+message.ID)
	}
	if len(meta) > 0 {
		fmt.Fprintf(&out, "    %s\n", strings.Join(meta, " | "))
	}
	out.WriteString("\n")
	return out.String()
}

func strArg(args map[string]interface{}, key string) string {
	if value, ok := args[key].(string); ok {
		return value
	}
	return ""
}

func intArg(args map[string]interface{}, key string, defaultValue int) int {
	switch value := args[key].(type) {
	case float64:
		return int(value)
	case int:
		return value
	}
	return defaultValue
}

func boolPtrArg(args map[string]interface{}, key string) *bool {
	if value, ok := args[key].(bool); ok {
		return &value
	}
	return nil
}

func strSliceArg(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	values := make([]string, 0, len(raw))
	for _, item := range raw {
		if value, ok := item.(string); ok && value != "" {
			values = append(values, value)
		}
	}
	return values
}

// actionsArg parses explicit action overrides. The returned slice is non-nil
// whenever the argument was present, so an empty array suppresses the derived
// buttons instead of re-enabling them.
func actionsArg(args map[string]interface{}) []ViewAction {
	raw, ok := args["actions"].([]interface{})
	if !ok {
		return nil
	}
	actions := make([]ViewAction, 0, len(raw))
	for _, item := range raw {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		action := ViewAction{Clear: true}
		action.URL, _ = entry["url"].(string)
		if action.URL == "" {
			continue
		}
		if label, ok := entry["label"].(string); ok && label != "" {
			action.Label = label
		} else {
			action.Label = actionLabel(action.URL)
		}
		if clear, ok := entry["clear"].(bool); ok {
			action.Clear = clear
		}
		actions = append(actions, action)
	}
	if len(actions) > maxViewActions {
		actions = actions[:maxViewActions]
	}
	return actions
}
