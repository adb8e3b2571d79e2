package notestore

import (
	"fmt"
	"slices"

	"github.com/starford/notekeep/internal/apperr"
	"github.com/starford/notekeep/internal/models"
	"github.com/starford/notekeep/internal/richtext"
)

// Draft is the editable form of a note: text with placeholder tokens and the
// image payloads bound to them by position.
type Draft struct {
	Title  string
	Text   string
	Images []string
}

// Body returns the stored form of the draft. Drafts without images keep
// their text verbatim; anything with an image is encoded as markup.
func (d Draft) Body() string {
	if len(d.Images) == 0 {
		return d.Text
	}
	return richtext.Encode(d.Text, d.Images)
}

// View pairs a stored note with its decoded body.
type View struct {
	Note     models.Note
	List     models.List
	Index    int
	Document richtext.Document
}

// HasImage reports whether the note shows a thumbnail: a legacy reference or
// an image embedded in the body.
func (v View) HasImage() bool {
	return v.Note.HasLegacyImage() || richtext.HasImages(v.Note.Body)
}

// Create adds a new note built from d to the front of the active sequence.
func (s *Store) Create(d Draft) (View, error) {
	body := d.Body()
	note := s.NewNote(DefaultTitle(d.Title, body, false), body)
	if err := s.Add(note); err != nil {
		return View{}, err
	}
	return viewOf(note, models.ListActive, 0), nil
}

// Edit replaces the title and body of the active note at index, keeping its
// id, creation time and legacy image reference.
func (s *Store) Edit(index int, d Draft) (View, error) {
	return s.rewrite(index, func(n *models.Note) error {
		n.Body = d.Body()
		n.Title = DefaultTitle(d.Title, n.Body, true)
		return nil
	})
}

// View returns the decoded note at index in list.
func (s *Store) View(list models.List, index int) (View, error) {
	note, err := s.Get(list, index)
	if err != nil {
		return View{}, err
	}
	return viewOf(note, list, index), nil
}

func viewOf(note models.Note, list models.List, index int) View {
	return View{
		Note:     note,
		List:     list,
		Index:    index,
		Document: richtext.DecodeBody(note.Body),
	}
}

// InsertImage embeds payload into the active note at index, at byte offset
// pos of its decoded text. Offsets out of range append the image.
func (s *Store) InsertImage(index, pos int, payload string) (View, error) {
	return s.rewrite(index, func(n *models.Note) error {
		doc, err := editable(*n)
		if err != nil {
			return err
		}
		doc.InsertImage(pos, payload)
		n.Body = Draft{Text: doc.Text, Images: doc.Images}.Body()
		return nil
	})
}

// Revise replaces the title and text of the active note at index while
// keeping its embedded images, rebound to placeholders by position.
func (s *Store) Revise(index int, title, text string) (View, error) {
	return s.rewrite(index, func(n *models.Note) error {
		doc, err := editable(*n)
		if err != nil {
			return err
		}
		n.Body = Draft{Text: text, Images: doc.Images}.Body()
		n.Title = DefaultTitle(title, n.Body, true)
		return nil
	})
}

// editable decodes the body of n for a partial edit. A degraded decode is
// refused, since re-encoding it would overwrite the stored body.
func editable(n models.Note) (richtext.Document, error) {
	doc := richtext.DecodeBody(n.Body)
	if doc.Degraded {
		return doc, fmt.Errorf("notestore: note %s has an unreadable body: %w", n.ID, apperr.ErrInvalidInput)
	}
	return doc, nil
}

// rewrite applies fn to a copy of the active note at index and persists it.
func (s *Store) rewrite(index int, fn func(*models.Note) error) (View, error) {
	var note models.Note
	err := s.mutate(func() (Change, error) {
		if err := checkIndex(index, len(s.active)); err != nil {
			return Change{}, err
		}
		note = s.active[index]
		if err := fn(&note); err != nil {
			return Change{}, err
		}
		next := slices.Clone(s.active)
		next[index] = note
		if err := s.persist(KeyActive, next); err != nil {
			return Change{}, err
		}
		s.active = next
		return s.change(ChangeUpdated, models.ListActive, note.ID), nil
	})
	if err != nil {
		return View{}, err
	}
	return viewOf(note, models.ListActive, index), nil
}
