package conv

import (
	stdhtml "html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	textPolicy  = bluemonday.StrictPolicy()
	blankLines  = regexp.MustCompile(`\n{3,}`)
	skipContent = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)
	blockEnd    = regexp.MustCompile(`(?i)</(p|div|h[1-6]|li|tr|section|article|blockquote|pre)>|<br\s*/?>`)
)

// HTMLToText strips a page down to its readable text. Script and style
// bodies go first, block boundaries become newlines, then every remaining
// tag is removed.
func HTMLToText(in string) string {
	s := skipContent.ReplaceAllString(in, "")
	s = blockEnd.ReplaceAllString(s, "$0\n")
	s = textPolicy.Sanitize(s)

	var lines []string
	for _, line := range strings.Split(s, "\n") {
		lines = append(lines, strings.TrimSpace(line))
	}
	s = strings.Join(lines, "\n")
	s = stdhtml.UnescapeString(s)
	return strings.TrimSpace(blankLines.ReplaceAllString(s, "\n\n"))
}
