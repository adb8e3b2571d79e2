package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/notekeep/internal/notestore"
	"github.com/starford/notekeep/internal/richtext"
)

// DraftRequest is the request body for creating or editing a note.
type DraftRequest struct {
	Title  string   `json:"title" example:"Groceries"`
	Text   string   `json:"text" example:"Milk\n[IMG]\nBread"`
	Images []string `json:"images"`
}

// Validate checks that every image is a base64 payload.
func (r DraftRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Images, validation.Each(validation.Required, is.Base64)),
	)
}

func (r DraftRequest) draft() notestore.Draft {
	return notestore.Draft{Title: r.Title, Text: r.Text, Images: r.Images}
}

// IndicesRequest selects notes by position within one list.
type IndicesRequest struct {
	Indices []int `json:"indices" example:"0,2" validate:"required"`
}

// Validate requires the indices field and rejects negative positions.
func (r IndicesRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Indices, validation.NotNil, validation.Each(validation.Min(0))),
	)
}

// InsertImageRequest embeds one image into an existing note. Position is a
// byte offset into the decoded text; when absent the image is appended.
type InsertImageRequest struct {
	Position *int   `json:"position,omitempty" example:"12"`
	Payload  string `json:"payload" validate:"required"`
}

// Validate requires a base64 payload.
func (r InsertImageRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Payload, validation.Required, is.Base64),
	)
}

// EncodeRequest is the body of POST /richtext/encode.
type EncodeRequest struct {
	Text   string   `json:"text" example:"a\n[IMG]"`
	Images []string `json:"images"`
}

// Validate checks that every image is a base64 payload.
func (r EncodeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Images, validation.Each(validation.Required, is.Base64)),
	)
}

// DecodeRequest is the body of POST /richtext/decode.
type DecodeRequest struct {
	Markup string `json:"markup" example:"a<br/>b" validate:"required"`
}

// Validate accepts any markup; malformed input decodes as degraded.
func (r DecodeRequest) Validate() error { return nil }

// NoteListItem is one row of a list response.
type NoteListItem struct {
	Index     int    `json:"index" example:"0" validate:"required"`
	ID        string `json:"id" example:"1700000000000" validate:"required"`
	Title     string `json:"title" example:"Buy groceries" validate:"required"`
	Preview   string `json:"preview" example:"Milk, bread, eggs, fruit" validate:"required"`
	HasImage  bool   `json:"has_image"`
	Completed bool   `json:"completed"`
	CreatedAt int64  `json:"created_at" example:"1700000000000"`
}

// ListsResponse holds both sequences.
type ListsResponse struct {
	Active    []NoteListItem `json:"active" validate:"required"`
	Completed []NoteListItem `json:"completed" validate:"required"`
}

// NoteDetail is a single note with its decoded body.
type NoteDetail struct {
	List      string   `json:"list" example:"active" validate:"required"`
	Index     int      `json:"index" example:"0"`
	ID        string   `json:"id" example:"1700000000000" validate:"required"`
	Title     string   `json:"title" example:"Buy groceries"`
	Text      string   `json:"text" example:"Milk\n[IMG]"`
	Images    []string `json:"images"`
	Degraded  bool     `json:"degraded"`
	Markup    string   `json:"markup"`
	HasImage  bool     `json:"has_image"`
	ImageURI  *string  `json:"image_uri,omitempty"`
	Completed bool     `json:"completed"`
	CreatedAt int64    `json:"created_at" example:"1700000000000"`
}

// ImagePayloadResponse is returned after an image upload.
type ImagePayloadResponse struct {
	Payload string `json:"payload" validate:"required"`
	Width   int    `json:"width" example:"800"`
	Height  int    `json:"height" example:"600"`
}

// MarkupResponse carries encoded markup.
type MarkupResponse struct {
	Markup string `json:"markup" validate:"required"`
}

// DocumentResponse carries a decoded document.
type DocumentResponse struct {
	Text         string   `json:"text"`
	Images       []string `json:"images"`
	Degraded     bool     `json:"degraded"`
	Placeholders int      `json:"placeholders"`
}

func detailOf(v notestore.View) NoteDetail {
	return NoteDetail{
		List:      string(v.List),
		Index:     v.Index,
		ID:        v.Note.ID,
		Title:     v.Note.Title,
		Text:      v.Document.Text,
		Images:    nonNil(v.Document.Images),
		Degraded:  v.Document.Degraded,
		Markup:    v.Note.Body,
		HasImage:  v.HasImage(),
		ImageURI:  v.Note.ImageRef,
		Completed: v.Note.Completed,
		CreatedAt: v.Note.CreatedAt,
	}
}

func documentOf(d richtext.Document) DocumentResponse {
	return DocumentResponse{
		Text:         d.Text,
		Images:       nonNil(d.Images),
		Degraded:     d.Degraded,
		Placeholders: d.Placeholders(),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
