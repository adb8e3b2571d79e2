// Package richtext converts between editable note text, in which inline images
// are marked by a placeholder token, and the flat markup string notes are
// persisted as.
//
// Images are coupled to placeholders purely by position: the Nth placeholder in
// document order belongs to the Nth image payload, in both directions.
package richtext

import (
	"errors"
	"io"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
)

const (
	// Placeholder marks where an image sits in editable text.
	Placeholder = "[IMG]"
	// LineBreak separates lines in markup.
	LineBreak = "<br/>"
)

var (
	imgTagRe  = regexp.MustCompile(`(?i)<img\b[^<>]*>`)
	dataSrcRe = regexp.MustCompile(`(?i)\bsrc\s*=\s*"data:image/[a-z0-9.+-]+;base64,([^"]*)"`)
	brRe      = regexp.MustCompile(`(?i)<br[ \t]*/?>`)
	// Only complete tags on one line are markup; a stray < is text.
	tagRe = regexp.MustCompile(`<[^<>\n]*>`)

	entityReplacer = strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
	)
)

// Document is the editable form of a note body.
type Document struct {
	Text   string
	Images []string
	// Degraded is set when the markup could not be parsed cleanly and Text is
	// a best-effort plain rendering.
	Degraded bool
}

// Encode produces markup from text and its ordered image payloads. Each
// placeholder consumes the next unused payload; placeholders left over once the
// payloads run out stay literal, and surplus payloads are not emitted.
func Encode(text string, images []string) string {
	lines := strings.Split(text, "\n")
	next := 0
	for i, line := range lines {
		if next >= len(images) {
			break
		}
		if !strings.Contains(line, Placeholder) {
			continue
		}
		var b strings.Builder
		rest := line
		for next < len(images) {
			j := strings.Index(rest, Placeholder)
			if j < 0 {
				break
			}
			b.WriteString(rest[:j])
			b.WriteString(imageTag(images[next]))
			next++
			rest = rest[j+len(Placeholder):]
		}
		b.WriteString(rest)
		lines[i] = b.String()
	}
	return strings.Join(lines, LineBreak)
}

// Decode parses markup back into editable text and image payloads. It never
// fails. Text between image tags is decoded on its own; a stray "<" stays
// literal. Invalid UTF-8 is replaced and marks the document Degraded; if
// parsing panics the result is a Degraded plain rendering without images.
func Decode(markup string) (doc Document) {
	if markup == "" {
		return Document{}
	}
	defer func() {
		if r := recover(); r != nil {
			doc = fallback(markup)
		}
	}()

	degraded := false
	if !utf8.ValidString(markup) {
		markup = strings.ToValidUTF8(markup, "\uFFFD")
		degraded = true
	}

	var b strings.Builder
	var images []string
	last := 0
	for _, loc := range imgTagRe.FindAllStringIndex(markup, -1) {
		b.WriteString(plainText(markup[last:loc[0]]))
		// An image we cannot carry must not shift later placeholders.
		if payload, ok := tagPayload(markup[loc[0]:loc[1]]); ok {
			images = append(images, payload)
			b.WriteString(Placeholder)
		}
		last = loc[1]
	}
	b.WriteString(plainText(markup[last:]))

	return Document{
		Text:     b.String(),
		Images:   images,
		Degraded: degraded,
	}
}

// DecodeBody decodes a stored note body. Bodies that carry no markup at all
// (notes written before inline images existed) are returned verbatim.
func DecodeBody(body string) Document {
	if !IsMarkup(body) {
		return Document{Text: body}
	}
	return Decode(body)
}

// IsMarkup reports whether body was produced by Encode with at least one line
// break or image.
func IsMarkup(body string) bool {
	return imgTagRe.MatchString(body) || brRe.MatchString(body)
}

// Markup re-encodes the document.
func (d Document) Markup() string {
	return Encode(d.Text, d.Images)
}

// Placeholders returns the number of placeholder tokens in the text.
func (d Document) Placeholders() int {
	return strings.Count(d.Text, Placeholder)
}

// FirstImage returns the payload of the first embedded image in markup.
func FirstImage(markup string) (string, bool) {
	for _, tag := range imgTagRe.FindAllString(markup, -1) {
		if payload, ok := tagPayload(tag); ok {
			return payload, true
		}
	}
	return "", false
}

// HasImages reports whether markup embeds at least one image.
func HasImages(markup string) bool {
	_, ok := FirstImage(markup)
	return ok
}

func imageTag(payload string) string {
	return `<img src="data:image/jpeg;base64,` + compact(payload) + `" style="max-width:100%;" />`
}

func tagPayload(tag string) (string, bool) {
	m := dataSrcRe.FindStringSubmatch(tag)
	if m == nil {
		return "", false
	}
	payload := compact(m[1])
	return payload, payload != ""
}

// compact drops whitespace; stored payloads may be MIME-wrapped.
func compact(payload string) string {
	if strings.IndexFunc(payload, unicode.IsSpace) < 0 {
		return payload
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, payload)
}

func plainText(markup string) string {
	s := brRe.ReplaceAllString(markup, "\n")
	s = tagRe.ReplaceAllString(s, "")
	return entityReplacer.Replace(s)
}

func fallback(markup string) Document {
	return Document{Text: render(strings.ToValidUTF8(markup, "\uFFFD"), ""), Degraded: true}
}

// render tokenizes markup into plain text. Line breaks become newlines and
// each image becomes image.
func render(markup, image string) string {
	z := html.NewTokenizer(strings.NewReader(markup))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				// An unterminated tag at the end is text.
				b.Write(z.Raw())
			}
			return b.String()
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "br":
				b.WriteByte('\n')
			case "img":
				b.WriteString(image)
			}
		}
	}
}
