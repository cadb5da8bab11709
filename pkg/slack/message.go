package slack

import (
	"unicode/utf8"

	goslack "github.com/slack-go/slack"
)

// maxBlockTextLength is Slack's practical per-block text ceiling; replies
// and announcement bodies are truncated to it before being sent.
const maxBlockTextLength = 2900

// BuildPlainMessage wraps text in a single Block Kit section block, the
// shape every Brain-originated chat message (replies, announcements) uses.
func BuildPlainMessage(text string) []goslack.Block {
	return []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, truncateForSlack(text), false, false),
			nil, nil,
		),
	}
}

// truncateForSlack trims text to maxBlockTextLength runes, never splitting
// a multi-byte rune, and appends a truncation notice.
func truncateForSlack(text string) string {
	if utf8.RuneCountInString(text) <= maxBlockTextLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxBlockTextLength]) + "\n\n_... (truncated)_"
}
