// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package markdown converts post bodies written in Markdown into the HTML
// stored alongside each post. Posts are user input, so raw HTML in the
// source is never passed through.
package markdown

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

// Formatter renders post bodies, optionally replacing emoticon codes with
// images.
type Formatter struct {
	plain     goldmark.Markdown
	emoticons goldmark.Markdown
}

// NewFormatter creates a Formatter. Emoticon images are served from
// mediaURL + "forum/img/emoticons/". A nil set uses DefaultEmoticons.
func NewFormatter(mediaURL string, set map[string]string) *Formatter {
	if set == nil {
		set = DefaultEmoticons()
	}
	if !strings.HasSuffix(mediaURL, "/") {
		mediaURL += "/"
	}
	return &Formatter{
		plain:     newMarkdown(),
		emoticons: newMarkdown(NewEmoticons(set, mediaURL+"forum/img/emoticons/")),
	}
}

// newMarkdown builds a goldmark instance with the shared extensions plus
// any extra ones.
func newMarkdown(extra ...goldmark.Extender) goldmark.Markdown {
	exts := []goldmark.Extender{
		extension.GFM,         // GitHub-Flavored Markdown: tables, strikethrough, autolinks, task lists
		extension.Typographer, // Smart quotes and dashes
		highlighting.NewHighlighting( // Syntax highlighting for fenced code blocks
			highlighting.WithStyle("monokai"),
			highlighting.WithFormatOptions(),
		),
	}
	return goldmark.New(
		goldmark.WithExtensions(append(exts, extra...)...),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(), // Auto-generate heading IDs for anchors
		),
	)
}

// Format converts a post body into HTML. With emoticons set, emoticon
// codes standing on their own are replaced with images.
func (f *Formatter) Format(body string, emoticons bool) (string, error) {
	md := f.plain
	if emoticons {
		md = f.emoticons
	}
	var buf bytes.Buffer
	if err := md.Convert([]byte(strings.TrimSpace(body)), &buf); err != nil {
		return "", fmt.Errorf("format post: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

var lineStart = regexp.MustCompile(`(?m)^`)

// QuotePost returns a Markdown body quoting another post, crediting its
// author and linking back to it.
func QuotePost(username, body, url string) string {
	return fmt.Sprintf("**%s** [wrote](%s \"View quoted post\"):\n\n%s\n\n",
		username, url, lineStart.ReplaceAllString(strings.TrimSpace(body), "> "))
}
