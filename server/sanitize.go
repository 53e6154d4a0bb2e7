package server

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Browser clients insert message content as HTML, so content is stored
// with markup stripped and entities escaped. Text clients unescape it.
var textPolicy = bluemonday.StrictPolicy()

const maxChannelNameLen = 50

// SanitizeMessage strips markup from message content
func SanitizeMessage(content string) string {
	return strings.TrimSpace(textPolicy.Sanitize(content))
}

// ValidUsername reports whether name survives the text policy unchanged,
// which rules out markup and the characters it would escape.
func ValidUsername(name string) bool {
	return name != "" && textPolicy.Sanitize(name) == name
}

// SanitizeChannelName returns a plain-text channel name without markup,
// angle brackets or a leading '#', clamped to 50 characters.
func SanitizeChannelName(name string) string {
	cleaned := html.UnescapeString(textPolicy.Sanitize(name))
	cleaned = strings.NewReplacer("<", "", ">", "").Replace(cleaned)
	cleaned = strings.TrimPrefix(strings.TrimSpace(cleaned), "#")
	if r := []rune(cleaned); len(r) > maxChannelNameLen {
		cleaned = string(r[:maxChannelNameLen])
	}
	return strings.TrimSpace(cleaned)
}
