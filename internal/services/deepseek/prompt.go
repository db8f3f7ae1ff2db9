package deepseek

import (
	"fmt"
	"strings"
)

const (
	toolSwitchTemplate = "switch_workflow"
	toolTextToImage    = "text_to_image"
	toolListTasks      = "get_user_tasks"
)

func buildSystemPrompt(currentTemplate string, templates []string) string {
	var b strings.Builder
	b.WriteString("You are the conversational front end of an image processing bot. ")
	b.WriteString("Decide whether the user wants to switch the active workflow, generate an image from text, or see their queued tasks. ")
	b.WriteString("Call the matching tool when the intent is clear. ")
	b.WriteString("Otherwise answer briefly in the user's language.\n")
	if currentTemplate != "" {
		fmt.Fprintf(&b, "Active workflow: %s.\n", currentTemplate)
	}
	if len(templates) > 0 {
		fmt.Fprintf(&b, "Available workflows: %s.\n", strings.Join(templates, ", "))
	}
	return b.String()
}

func buildTools(templates []string) []tool {
	templateEnum := make([]any, 0, len(templates))
	for _, name := range templates {
		templateEnum = append(templateEnum, name)
	}

	return []tool{
		{
			Type: "function",
			Function: toolFunction{
				Name:        toolSwitchTemplate,
				Description: "Switch the chat's active image processing workflow.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"template_name": map[string]any{
							"type":        "string",
							"description": "Name of the workflow to switch to.",
							"enum":        templateEnum,
						},
					},
					"required": []any{"template_name"},
				},
			},
		},
		{
			Type: "function",
			Function: toolFunction{
				Name:        toolTextToImage,
				Description: "Generate a new image from a text description.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"prompt": map[string]any{
							"type":        "string",
							"description": "The image description to render.",
						},
					},
					"required": []any{"prompt"},
				},
			},
		},
		{
			Type: "function",
			Function: toolFunction{
				Name:        toolListTasks,
				Description: "List the user's currently queued tasks.",
				Parameters: map[string]any{
					"type":       "object",
					"properties": map[string]any{},
				},
			},
		},
	}
}
