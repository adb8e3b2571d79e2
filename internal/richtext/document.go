package richtext

import (
	"strings"
	"unicode/utf8"
)

// SegmentKind tells text runs apart from resolved images.
type SegmentKind int

const (
	SegmentText SegmentKind = iota
	SegmentImage
)

// Segment is one display run of a document.
type Segment struct {
	Kind    SegmentKind
	Text    string // set for SegmentText
	Index   int    // image position, set for SegmentImage
	Payload string // set for SegmentImage
}

// Segments resolves placeholders to images in document order. Placeholders
// beyond the last image are kept as literal text.
func (d Document) Segments() []Segment {
	var out []Segment
	rest := d.Text
	for next := 0; next < len(d.Images); next++ {
		j := strings.Index(rest, Placeholder)
		if j < 0 {
			break
		}
		if j > 0 {
			out = append(out, Segment{Kind: SegmentText, Text: rest[:j]})
		}
		out = append(out, Segment{Kind: SegmentImage, Index: next, Payload: d.Images[next]})
		rest = rest[j+len(Placeholder):]
	}
	if rest != "" {
		out = append(out, Segment{Kind: SegmentText, Text: rest})
	}
	return out
}

// InsertImage places payload at byte offset pos of the text on a line of its
// own and splices it into Images at the matching position, so placeholders
// before pos keep their images. Offsets inside a placeholder are moved past it.
func (d *Document) InsertImage(pos int, payload string) {
	pos = d.clampOffset(pos)
	index := strings.Count(d.Text[:pos], Placeholder)
	if index > len(d.Images) {
		index = len(d.Images)
	}

	marker := Placeholder + "\n"
	if pos > 0 && d.Text != "" && d.Text[pos-1] != '\n' {
		marker = "\n" + marker
	}
	d.Text = d.Text[:pos] + marker + d.Text[pos:]

	images := make([]string, 0, len(d.Images)+1)
	images = append(images, d.Images[:index]...)
	images = append(images, compact(payload))
	images = append(images, d.Images[index:]...)
	d.Images = images
}

func (d *Document) clampOffset(pos int) int {
	if pos < 0 || pos > len(d.Text) {
		pos = len(d.Text)
	}
	for pos < len(d.Text) && !utf8.RuneStart(d.Text[pos]) {
		pos++
	}
	// Step out of a placeholder the offset lands inside of.
	start := pos - len(Placeholder) + 1
	if start < 0 {
		start = 0
	}
	for i := start; i < pos; i++ {
		if strings.HasPrefix(d.Text[i:], Placeholder) {
			return i + len(Placeholder)
		}
	}
	return pos
}
