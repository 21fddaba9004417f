package transcript

import (
	"strings"

	"github.com/colloquy-ai/colloquy/pkg/llm"
	"github.com/colloquy-ai/colloquy/pkg/types"
)

// RenderOptions controls how a transcript is turned into LLM messages.
type RenderOptions struct {
	// Preamble, when non-empty, becomes the leading system message.
	Preamble string

	// Epilogue, when non-empty, becomes a trailing system message. Used to
	// re-anchor long conversations on the persona.
	Epilogue string
}

// Render converts the transcript into the message list sent to the LLM.
// Consecutive bot messages merge into one assistant message joined by single
// spaces: the collator splits replies into per-sentence entries and the
// model should see them as one utterance. Action markers become function
// call/result messages.
func Render(t *Transcript, opts RenderOptions) []llm.Message {
	var out []llm.Message
	if opts.Preamble != "" {
		out = append(out, llm.Message{Role: llm.RoleSystem, Content: opts.Preamble})
	}

	for _, entry := range t.Entries() {
		switch e := entry.(type) {
		case *Message:
			text := e.Text()
			if text == "" {
				continue
			}
			role := llm.RoleUser
			if e.Sender != types.SenderHuman {
				role = llm.RoleAssistant
			}
			if n := len(out); n > 0 && out[n-1].Role == role && role == llm.RoleAssistant && out[n-1].FunctionCall == nil {
				out[n-1].Content = strings.TrimRight(out[n-1].Content, " ") + " " + text
				continue
			}
			out = append(out, llm.Message{Role: role, Content: text})

		case *ActionStart:
			out = append(out, llm.Message{
				Role: llm.RoleAssistant,
				FunctionCall: &llm.FunctionCall{
					Name:      e.ActionType,
					Arguments: e.ActionInput,
				},
			})

		case *ActionFinish:
			out = append(out, llm.Message{
				Role:    llm.RoleFunction,
				Name:    e.ActionType,
				Content: e.ActionOutput,
			})
		}
	}

	if opts.Epilogue != "" {
		out = append(out, llm.Message{Role: llm.RoleSystem, Content: opts.Epilogue})
	}
	return out
}
