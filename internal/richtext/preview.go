package richtext

import "strings"

const (
	// ImageLabel stands in for an image in previews.
	ImageLabel = "[Image]"
	// DefaultPreviewLimit is the rune budget of a list-row preview.
	DefaultPreviewLimit = 100
)

// Preview renders a one-line plain-text summary of a note body, with images
// shown as ImageLabel and the result cut to limit runes plus "...".
func Preview(body string, limit int) string {
	if body == "" {
		return ""
	}
	if limit <= 0 {
		limit = DefaultPreviewLimit
	}
	text := body
	if IsMarkup(body) {
		text = render(body, ImageLabel)
	}
	text = strings.Join(strings.Fields(text), " ")

	runes := []rune(text)
	if len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return text
}
