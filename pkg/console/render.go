// Package console turns interpreter and adventure output into something a
// host can display: shared.Message values for the browser terminal or plain
// text for a local terminal.
package console

import (
	"html"
	"regexp"
	"strings"
)

var (
	reMarked = regexp.MustCompile(`\[\[(.+?)\]\]`)
	reTag    = regexp.MustCompile(`<[^>]*>`)
)

// GuruCode is the code shown on the failure screen.
const GuruCode = "00000004.0000AAC0"

// RenderMarked escapes s for HTML and wraps every [[text]] span in a
// highlight span.
func RenderMarked(s string) string {
	var b strings.Builder
	last := 0
	for _, m := range reMarked.FindAllStringSubmatchIndex(s, -1) {
		b.WriteString(html.EscapeString(s[last:m[0]]))
		b.WriteString(`<span class="highlight">`)
		b.WriteString(html.EscapeString(s[m[2]:m[3]]))
		b.WriteString(`</span>`)
		last = m[1]
	}
	b.WriteString(html.EscapeString(s[last:]))
	return b.String()
}

// StripHTML removes tags and decodes entities.
func StripHTML(s string) string {
	return html.UnescapeString(reTag.ReplaceAllString(s, ""))
}

// markedToANSI renders [[text]] spans in reverse video, or drops the
// brackets when ansi is false.
func markedToANSI(s string, ansi bool) string {
	if !ansi {
		return reMarked.ReplaceAllString(s, "$1")
	}
	return reMarked.ReplaceAllString(s, "\x1b[7m$1\x1b[0m")
}
