package main

import (
	"fmt"
	"html"
	"strings"

	"github.com/charmbracelet/glamour"
)

var markdownMarkers = []string{"**", "__", "~~", "`", "](", "\n- ", "\n* ", "\n> ", "\n1. "}

// looksLikeMarkdown reports whether text uses any markdown syntax worth
// running through glamour
func looksLikeMarkdown(text string) bool {
	padded := "\n" + text
	for _, marker := range markdownMarkers {
		if strings.Contains(padded, marker) {
			return true
		}
	}
	return strings.HasPrefix(text, "#")
}

func newMarkdownRenderer(style string, width int) (*glamour.TermRenderer, error) {
	if width < 20 {
		width = 20
	}
	return glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
}

// renderContent turns server text into display text. The server escapes
// HTML entities for browser clients, so they are decoded first.
func renderContent(content string, styles themeStyles, md *glamour.TermRenderer, username string) string {
	text := html.UnescapeString(content)
	if md != nil && looksLikeMarkdown(text) {
		if out, err := md.Render(text); err == nil {
			return strings.TrimRight(strings.TrimLeft(out, "\n"), " \n")
		}
	}
	if username != "" && strings.Contains(text, "@"+username) {
		return styles.Mention.Render(text)
	}
	return styles.Msg.Render(text)
}

// authorName returns the display name of an escaped author and whether it
// is the local user.
func authorName(author, username string) (string, bool) {
	name := html.UnescapeString(author)
	return name, name == username
}

func renderAuthor(author string, styles themeStyles, username string) string {
	name, mine := authorName(author, username)
	if mine {
		return styles.Me.Render(name)
	}
	return styles.User.Render(name)
}

func renderItems(items []Item, styles themeStyles, md *glamour.TermRenderer, username string) string {
	var b strings.Builder
	for _, item := range items {
		switch item.Kind {
		case ItemStatus:
			b.WriteString(styles.Status.Render(item.Status))
		case ItemMessage:
			msg := item.Message
			author := renderAuthor(msg.Author, styles, username)
			content := renderContent(msg.Content, styles, md, username)
			if strings.Contains(content, "\n") {
				fmt.Fprintf(&b, "%s %s\n%s", styles.Time.Render("["+msg.Timestamp+"]"), author, content)
			} else {
				fmt.Fprintf(&b, "%s %s: %s", styles.Time.Render("["+msg.Timestamp+"]"), author, content)
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
