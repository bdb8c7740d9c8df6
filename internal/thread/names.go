package thread

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

const threadNameWidth = 48

// deriveThreadName builds a sidebar title from message text: the first
// non-empty line, whitespace collapsed, truncated to a fixed display
// width. Returns "" when the text has no usable content.
func deriveThreadName(text string) string {
	for _, line := range strings.Split(text, "\n") {
		name := strings.Join(strings.Fields(line), " ")
		if name == "" {
			continue
		}
		if runewidth.StringWidth(name) > threadNameWidth {
			name = runewidth.Truncate(name, threadNameWidth, "…")
		}
		return name
	}
	return ""
}
