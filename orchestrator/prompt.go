package orchestrator

import (
	"fmt"
	"strings"

	"github.com/Kerastion/trioflow/evolution"
	"github.com/Kerastion/trioflow/llm"
	"github.com/Kerastion/trioflow/types"
)

// buildMessages renders the prompt for one completion: the variant's system
// and style text plus the topic as the system message, then the trailing
// history window. The speaker's own past utterances become assistant
// messages; everyone else's arrive as role-tagged user messages.
func buildMessages(v *evolution.PromptVariant, speaker types.Role, topic string, history types.History, window int) []llm.Message {
	var sys strings.Builder
	sys.WriteString(strings.TrimSpace(v.SystemText))
	if style := strings.TrimSpace(v.StyleText); style != "" {
		sys.WriteString("\n\nStyle: ")
		sys.WriteString(style)
	}
	if topic != "" {
		sys.WriteString("\n\nTopic: ")
		sys.WriteString(topic)
	}

	tail := history.Tail(window)
	msgs := make([]llm.Message, 0, len(tail)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: sys.String()})

	for _, u := range tail {
		if u.IsError {
			continue
		}
		if u.Role == speaker {
			msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: u.Text})
			continue
		}
		msgs = append(msgs, llm.Message{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf("[%s] %s", u.Role, u.Text),
		})
	}

	// An empty history still needs a user turn to complete against.
	if len(msgs) == 1 {
		msgs = append(msgs, llm.Message{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf("Start the conversation about: %s", topic),
		})
	}
	return msgs
}
