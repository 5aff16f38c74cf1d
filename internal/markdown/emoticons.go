// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package markdown

import (
	"bytes"
	"sort"
	"unicode"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// DefaultEmoticons maps emoticon codes to image file names.
func DefaultEmoticons() map[string]string {
	return map[string]string{
		":angry:":    "angry.gif",
		":blink:":    "blink.gif",
		":D":         "grin.gif",
		":huh:":      "huh.gif",
		":lol:":      "lol.gif",
		":o":         "ohmy.gif",
		":ph34r:":    "ph34r.gif",
		":rolleyes:": "rolleyes.gif",
		":(":         "sad.gif",
		":)":         "smile.gif",
		":p":         "tongue.gif",
		":unsure:":   "unsure.gif",
		":wacko:":    "wacko.gif",
		";)":         "wink.gif",
		":wub:":      "wub.gif",
	}
}

// KindEmoticon is the node kind of an Emoticon.
var KindEmoticon = ast.NewNodeKind("Emoticon")

// Emoticon is an inline node standing for one emoticon image.
type Emoticon struct {
	ast.BaseInline
	Code  string
	Image string
}

// Kind implements ast.Node.
func (n *Emoticon) Kind() ast.NodeKind {
	return KindEmoticon
}

// Dump implements ast.Node.
func (n *Emoticon) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Code": n.Code, "Image": n.Image}, nil)
}

type emoticonParser struct {
	codes    [][]byte // longest first
	images   map[string]string
	triggers []byte
}

func (p *emoticonParser) Trigger() []byte {
	return p.triggers
}

func (p *emoticonParser) Parse(parent ast.Node, block text.Reader, pc parser.Context) ast.Node {
	if prev := block.PrecendingCharacter(); !unicode.IsSpace(prev) {
		return nil
	}
	line, _ := block.PeekLine()
	for _, code := range p.codes {
		if !bytes.HasPrefix(line, code) {
			continue
		}
		if rest := line[len(code):]; len(rest) > 0 {
			r, _ := utf8.DecodeRune(rest)
			if !unicode.IsSpace(r) && !unicode.IsPunct(r) {
				continue
			}
		}
		block.Advance(len(code))
		return &Emoticon{Code: string(code), Image: p.images[string(code)]}
	}
	return nil
}

type emoticonRenderer struct {
	baseURL string
}

func (r *emoticonRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindEmoticon, r.render)
}

func (r *emoticonRenderer) render(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*Emoticon)
	_, _ = w.WriteString(`<img src="`)
	_, _ = w.Write(util.EscapeHTML(util.URLEscape([]byte(r.baseURL+n.Image), false)))
	_, _ = w.WriteString(`" alt="`)
	_, _ = w.Write(util.EscapeHTML([]byte(n.Code)))
	_, _ = w.WriteString(`">`)
	return ast.WalkContinue, nil
}

type emoticons struct {
	set     map[string]string
	baseURL string
}

// NewEmoticons returns a goldmark extension replacing the codes in set
// with images under baseURL. A code only matches when it is preceded by
// whitespace or the start of a line and followed by whitespace,
// punctuation or the end of a line.
func NewEmoticons(set map[string]string, baseURL string) goldmark.Extender {
	return &emoticons{set: set, baseURL: baseURL}
}

func (e *emoticons) Extend(m goldmark.Markdown) {
	p := &emoticonParser{images: e.set}
	seen := make(map[byte]bool)
	for code := range e.set {
		if code == "" {
			continue
		}
		p.codes = append(p.codes, []byte(code))
		if !seen[code[0]] {
			seen[code[0]] = true
			p.triggers = append(p.triggers, code[0])
		}
	}
	sort.Slice(p.codes, func(i, j int) bool {
		if len(p.codes[i]) != len(p.codes[j]) {
			return len(p.codes[i]) > len(p.codes[j])
		}
		return bytes.Compare(p.codes[i], p.codes[j]) < 0
	})

	m.Parser().AddOptions(parser.WithInlineParsers(
		util.Prioritized(p, 999),
	))
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(&emoticonRenderer{baseURL: e.baseURL}, 500),
	))
}
