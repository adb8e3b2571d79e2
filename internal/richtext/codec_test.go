package richtext

import (
	"reflect"
	"strings"
	"testing"
)

const (
	imgA = "QUFBQQ=="
	imgB = "QkJCQg=="
	imgC = "Q0NDQw=="
)

func sameImages(a, b []string) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

func TestEncode_ReplacesPlaceholdersInOrder(t *testing.T) {
	got := Encode("intro\n[IMG]\nmid [IMG] end", []string{imgA, imgB})
	want := `intro<br/><img src="data:image/jpeg;base64,` + imgA + `" style="max-width:100%;" />` +
		`<br/>mid <img src="data:image/jpeg;base64,` + imgB + `" style="max-width:100%;" /> end`
	if got != want {
		t.Errorf("markup =\n%s\nwant\n%s", got, want)
	}
}

func TestEncode_PlainLinesUnchanged(t *testing.T) {
	got := Encode("a & b\n\"quoted\"", nil)
	if got != `a & b<br/>"quoted"` {
		t.Errorf("markup = %q", got)
	}
}

func TestEncode_MoreTokensThanImages(t *testing.T) {
	got := Encode("[IMG] [IMG]", []string{imgA})
	if strings.Count(got, "<img") != 1 {
		t.Fatalf("expected one image tag in %q", got)
	}
	if !strings.HasSuffix(got, " "+Placeholder) {
		t.Errorf("excess token should stay literal: %q", got)
	}
}

func TestEncode_SurplusImagesDropped(t *testing.T) {
	got := Encode("only [IMG]", []string{imgA, imgB})
	if strings.Contains(got, imgB) {
		t.Errorf("unreferenced image emitted: %q", got)
	}
}

func TestDecode_Steps(t *testing.T) {
	markup := `<p>Hello &amp; welcome</p><br/><img src="data:image/jpeg;base64,` + imgA + `" /><br>` +
		`x &lt;y&gt; &quot;z&quot; &#39;w&#39;<BR />` +
		`<img style="a" src="data:image/png;base64,` + imgB + `">`
	doc := Decode(markup)
	if doc.Degraded {
		t.Fatal("unexpected degraded decode")
	}
	wantText := "Hello & welcome\n" + Placeholder + "\nx <y> \"z\" 'w'\n" + Placeholder
	if doc.Text != wantText {
		t.Errorf("text = %q, want %q", doc.Text, wantText)
	}
	if !reflect.DeepEqual(doc.Images, []string{imgA, imgB}) {
		t.Errorf("images = %v", doc.Images)
	}
}

func TestDecode_EntitiesSinglePass(t *testing.T) {
	doc := Decode("&amp;lt;")
	if doc.Text != "&lt;" {
		t.Errorf("text = %q, want %q", doc.Text, "&lt;")
	}
}

func TestDecode_Empty(t *testing.T) {
	doc := Decode("")
	if doc.Text != "" || len(doc.Images) != 0 || doc.Degraded {
		t.Errorf("doc = %+v", doc)
	}
}

func TestDecode_ImageWithoutDataPayloadDropped(t *testing.T) {
	markup := `<img src="https://example.com/x.png" /><br/><img src="data:image/jpeg;base64,` + imgA + `" />`
	doc := Decode(markup)
	if doc.Text != "\n"+Placeholder {
		t.Errorf("text = %q", doc.Text)
	}
	if len(doc.Images) != 1 || doc.Images[0] != imgA {
		t.Errorf("images = %v", doc.Images)
	}
}

func TestDecode_WrappedPayloadCompacted(t *testing.T) {
	doc := Decode("<img src=\"data:image/jpeg;base64,QUFB\nQQ==\n\" />")
	if len(doc.Images) != 1 || doc.Images[0] != imgA {
		t.Errorf("images = %v", doc.Images)
	}
}

func TestDecode_StrayAngleBracketIsText(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"comparison after image", "[IMG]\nif x<y then"},
		{"open tag on last line", "see [IMG]\na <b"},
		{"brackets around placeholder", "<[IMG]>"},
		{"unterminated image tag text", "[IMG] <img src"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := Decode(Encode(tt.text, []string{imgA}))
			if doc.Degraded {
				t.Fatal("unexpected degraded decode")
			}
			if doc.Text != tt.text {
				t.Errorf("text = %q, want %q", doc.Text, tt.text)
			}
			if !reflect.DeepEqual(doc.Images, []string{imgA}) {
				t.Errorf("images = %v", doc.Images)
			}
		})
	}
}

func TestDecode_UnterminatedImageTagKeptAsText(t *testing.T) {
	doc := Decode(`<b>bold</b> text <img src="data:image/jpeg;base64,` + imgA)
	if doc.Degraded || len(doc.Images) != 0 {
		t.Fatalf("document = %+v", doc)
	}
	if !strings.HasPrefix(doc.Text, "bold text <img") {
		t.Errorf("text = %q", doc.Text)
	}
}

func TestFallback_StripsTagsAndImages(t *testing.T) {
	doc := fallback(`<b>bold</b> &amp; x<br/>y<img src="data:image/jpeg;base64,` + imgA + `" />z`)
	if !doc.Degraded || len(doc.Images) != 0 {
		t.Fatalf("document = %+v", doc)
	}
	if doc.Text != "bold & x\nyz" {
		t.Errorf("text = %q", doc.Text)
	}
}

func TestDecode_InvalidUTF8(t *testing.T) {
	doc := Decode("ok\xff<br/>next")
	if !doc.Degraded {
		t.Error("invalid UTF-8 should mark the document degraded")
	}
	if !strings.HasPrefix(doc.Text, "ok") || !strings.HasSuffix(doc.Text, "\nnext") {
		t.Errorf("text = %q", doc.Text)
	}
}

func TestDecode_LiteralTokenWithoutImage(t *testing.T) {
	markup := Encode("[IMG] and [IMG]", []string{imgA})
	doc := Decode(markup)
	if doc.Placeholders() != 2 || len(doc.Images) != 1 {
		t.Fatalf("placeholders=%d images=%d", doc.Placeholders(), len(doc.Images))
	}
	segs := doc.Segments()
	if len(segs) != 2 || segs[0].Kind != SegmentImage || segs[1].Text != " and "+Placeholder {
		t.Errorf("segments = %+v", segs)
	}
}

func TestDecodeBody_PlainLegacyBody(t *testing.T) {
	doc := DecodeBody("Milk, bread <3")
	if doc.Text != "Milk, bread <3" || doc.Degraded {
		t.Errorf("doc = %+v", doc)
	}
	if IsMarkup("Milk, bread <3") {
		t.Error("plain body misdetected as markup")
	}
	if !IsMarkup("a<br/>b") {
		t.Error("line-break markup not detected")
	}
}

func TestFirstImage(t *testing.T) {
	markup := Encode("x\n[IMG]\n[IMG]", []string{imgB, imgC})
	got, ok := FirstImage(markup)
	if !ok || got != imgB {
		t.Errorf("FirstImage = %q, %v", got, ok)
	}
	if _, ok := FirstImage("no images here"); ok {
		t.Error("expected no image")
	}
	if !HasImages(markup) || HasImages("<br/>") {
		t.Error("HasImages mismatch")
	}
}

func TestSegments_PositionalCoupling(t *testing.T) {
	images := []string{imgA, imgB}
	before := Decode(Encode("first [IMG]\nsecond [IMG]", images)).Segments()
	after := Decode(Encode("second [IMG]\nfirst [IMG]", images)).Segments()

	imageAfter := func(segs []Segment, label string) string {
		for i, s := range segs {
			if s.Kind == SegmentText && strings.HasSuffix(s.Text, label+" ") && i+1 < len(segs) {
				return segs[i+1].Payload
			}
		}
		return ""
	}
	if imageAfter(before, "first") != imgA || imageAfter(before, "second") != imgB {
		t.Fatalf("unexpected binding before edit: %+v", before)
	}
	if imageAfter(after, "second") != imgA || imageAfter(after, "first") != imgB {
		t.Errorf("images must follow document order, got %+v", after)
	}
}

func TestInsertImage(t *testing.T) {
	doc := Document{Text: "top\n[IMG]\nbottom", Images: []string{imgB}}

	doc.InsertImage(len("top"), imgA)
	if doc.Text != "top\n[IMG]\n\n[IMG]\nbottom" {
		t.Errorf("text = %q", doc.Text)
	}
	if !reflect.DeepEqual(doc.Images, []string{imgA, imgB}) {
		t.Errorf("images = %v", doc.Images)
	}

	doc.InsertImage(-1, imgC)
	if !strings.HasSuffix(doc.Text, "bottom\n[IMG]\n") {
		t.Errorf("append text = %q", doc.Text)
	}
	if doc.Images[2] != imgC {
		t.Errorf("images = %v", doc.Images)
	}
}

func TestInsertImage_InsidePlaceholder(t *testing.T) {
	doc := Document{Text: "[IMG]", Images: []string{imgA}}
	doc.InsertImage(2, imgB)
	if doc.Text != "[IMG]\n[IMG]\n" {
		t.Errorf("text = %q", doc.Text)
	}
	if !reflect.DeepEqual(doc.Images, []string{imgA, imgB}) {
		t.Errorf("images = %v", doc.Images)
	}
}

func TestInsertImage_EmptyDocument(t *testing.T) {
	var doc Document
	doc.InsertImage(0, imgA)
	if doc.Text != "[IMG]\n" || len(doc.Images) != 1 {
		t.Errorf("doc = %+v", doc)
	}
	if got := Decode(doc.Markup()); got.Placeholders() != 1 || !sameImages(got.Images, doc.Images) {
		t.Errorf("round trip = %+v", got)
	}
}

func TestPreview(t *testing.T) {
	markup := Encode("Shopping\n[IMG]\nmilk   and eggs", []string{imgA})
	if got := Preview(markup, 0); got != "Shopping [Image] milk and eggs" {
		t.Errorf("preview = %q", got)
	}
	long := strings.Repeat("ж", 120)
	got := Preview(long, 0)
	if len([]rune(got)) != DefaultPreviewLimit+3 || !strings.HasSuffix(got, "...") {
		t.Errorf("truncated preview = %q", got)
	}
	stray := Encode("[IMG]\nif x<y then", []string{imgA})
	if got := Preview(stray, 0); got != "[Image] if x<y then" {
		t.Errorf("preview = %q", got)
	}
	if Preview("", 10) != "" {
		t.Error("empty body should preview empty")
	}
}
