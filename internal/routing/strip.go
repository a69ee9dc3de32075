package routing

import "github.com/moegate/moegate/internal/llm"

// StripImages rewrites multimodal turns as plain text so a request can be
// resubmitted to a text-only backup expert: image parts are dropped and the
// remaining text parts joined with single spaces. Plain-text turns pass
// through unchanged.
func StripImages(messages []llm.ChatMessage) []llm.ChatMessage {
	out := make([]llm.ChatMessage, len(messages))
	for i, msg := range messages {
		if !msg.Multimodal() {
			out[i] = msg
			continue
		}
		msg.Content = msg.Text()
		msg.Parts = nil
		out[i] = msg
	}
	return out
}
