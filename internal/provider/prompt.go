package provider

import "strings"

const (
	selectedStart = "[SELECTED CONTENT]"
	selectedEnd   = "[/SELECTED CONTENT]"
	userCommand   = "[USER COMMAND]"
	contextStart  = "[CONTEXT]"
	contextEnd    = "[/CONTEXT]"
)

const DefaultTranscriptionPrompt = `You clean up dictated text. Fix punctuation, capitalization and obvious recognition errors. Do not add, remove or reorder content. Return only the corrected text.`

const DefaultEditingPrompt = `You are an assistant that edits documents based on a spoken user command. The current content is marked by ` + selectedStart + ` and ` + selectedEnd + `, the command by ` + userCommand + `. Surrounding text, if any, is marked by ` + contextStart + ` and ` + contextEnd + `.

Your response MUST contain ONLY the text that should replace the selected content. Do not include markers, explanations or code fences. Preserve line breaks, bullet points and indentation exactly.`

// EditPrompt assembles the user message for an edit pass.
func EditPrompt(selected, command, surrounding string) string {
	var b strings.Builder
	b.WriteString(selectedStart)
	b.WriteString("\n")
	b.WriteString(selected)
	b.WriteString("\n")
	b.WriteString(selectedEnd)
	b.WriteString("\n")
	b.WriteString(userCommand)
	b.WriteString("\n")
	b.WriteString(command)
	if surrounding != "" {
		b.WriteString("\n")
		b.WriteString(contextStart)
		b.WriteString("\n")
		b.WriteString(surrounding)
		b.WriteString("\n")
		b.WriteString(contextEnd)
	}
	return b.String()
}

func joinSegments(parts []string) string {
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
