package notestore

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/notekeep/internal/apperr"
	"github.com/starford/notekeep/internal/models"
	"github.com/starford/notekeep/internal/richtext"
	"github.com/starford/notekeep/internal/storage"
)

// failingKV wraps a KV and fails Put for the configured key.
type failingKV struct {
	storage.KV
	failKey string
}

func (f *failingKV) Put(key, value string) error {
	if key == f.failKey {
		return errors.New("disk full")
	}
	return f.KV.Put(key, value)
}

// clearFailKV removes the active slot and then fails, like a file backend
// that stops half way through.
type clearFailKV struct {
	storage.KV
}

func (c *clearFailKV) Clear() error {
	if err := c.KV.Delete(KeyActive); err != nil {
		return err
	}
	return errors.New("permission denied")
}

func fixedClock() func() time.Time {
	t0 := time.UnixMilli(1_700_000_000_000)
	return func() time.Time { return t0 }
}

func openStore(t *testing.T, kv storage.KV) *Store {
	t.Helper()
	s, _, err := Open(kv, WithClock(fixedClock()))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return s
}

func putNotes(t *testing.T, kv storage.KV, key string, notes []models.Note) {
	t.Helper()
	data, err := json.Marshal(notes)
	if err != nil {
		t.Fatal(err)
	}
	if err := kv.Put(key, string(data)); err != nil {
		t.Fatal(err)
	}
}

func titles(notes []models.Note) string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.Title
	}
	return strings.Join(out, ",")
}

// storeWith returns a store whose active sequence holds the given titles in order.
func storeWith(t *testing.T, kv storage.KV, names ...string) *Store {
	t.Helper()
	notes := make([]models.Note, len(names))
	for i, n := range names {
		notes[i] = models.Note{ID: n, Title: n}
	}
	putNotes(t, kv, KeyActive, notes)
	return openStore(t, kv)
}

func TestOpen_SeedsWhenEmpty(t *testing.T) {
	s, rep, err := Open(storage.NewMemory(), WithClock(fixedClock()))
	if err != nil {
		t.Fatal(err)
	}
	if !rep.ActiveSeeded || rep.Fallback() {
		t.Errorf("report = %+v, want seeded without fallback", rep)
	}
	if got := titles(s.ListActive()); got != "Buy groceries,Do homework,Call mom" {
		t.Errorf("active = %q", got)
	}
	if got := s.ListActive()[1].Body; got != "Math and physics" {
		t.Errorf("seed body = %q", got)
	}
	if n := len(s.ListCompleted()); n != 0 {
		t.Errorf("completed = %d, want 0", n)
	}
}

func TestOpen_SeedIDsUnique(t *testing.T) {
	s := openStore(t, storage.NewMemory())
	seen := map[string]bool{}
	for _, n := range s.ListActive() {
		if seen[n.ID] {
			t.Fatalf("duplicate id %s", n.ID)
		}
		seen[n.ID] = true
	}
}

func TestOpen_MalformedFallsBack(t *testing.T) {
	kv := storage.NewMemory()
	_ = kv.Put(KeyActive, "{not json")
	_ = kv.Put(KeyCompleted, `[{"id": 1`)

	s, rep, err := Open(kv)
	if err != nil {
		t.Fatal(err)
	}
	if !rep.ActiveFallback || !rep.CompletedFallback || !rep.ActiveSeeded {
		t.Errorf("report = %+v", rep)
	}
	if len(s.ListActive()) != 3 {
		t.Errorf("active = %d, want 3 seeds", len(s.ListActive()))
	}
	if len(s.ListCompleted()) != 0 {
		t.Errorf("completed = %d, want 0", len(s.ListCompleted()))
	}
}

func TestOpen_NullSlotIsEmpty(t *testing.T) {
	kv := storage.NewMemory()
	_ = kv.Put(KeyActive, "null")
	_ = kv.Put(KeyCompleted, "null")

	s, rep, err := Open(kv)
	if err != nil {
		t.Fatal(err)
	}
	if rep.ActiveSeeded || rep.Fallback() {
		t.Errorf("report = %+v", rep)
	}
	if len(s.ListActive())+len(s.ListCompleted()) != 0 {
		t.Errorf("active=%d completed=%d, want both empty", len(s.ListActive()), len(s.ListCompleted()))
	}
}

func TestOpen_EmptyArrayIsNotSeeded(t *testing.T) {
	kv := storage.NewMemory()
	_ = kv.Put(KeyActive, "[]")
	s, rep, err := Open(kv)
	if err != nil {
		t.Fatal(err)
	}
	if rep.ActiveSeeded {
		t.Error("stored empty list must not be replaced by seeds")
	}
	if len(s.ListActive()) != 0 {
		t.Errorf("active = %d, want 0", len(s.ListActive()))
	}
}

func TestOpen_NormalizesLegacyImageRef(t *testing.T) {
	kv := storage.NewMemory()
	_ = kv.Put(KeyActive, `[{"id":"1","title":"a","description":"","completed":false,"createdAt":1,"imageUri":"null"},`+
		`{"id":"2","title":"b","description":"","completed":false,"createdAt":2,"imageUri":""},`+
		`{"id":"3","title":"c","description":"","completed":false,"createdAt":3,"imageUri":"content://x"}]`)
	s := openStore(t, kv)
	got := s.ListActive()
	if got[0].ImageRef != nil || got[1].ImageRef != nil {
		t.Error("null and empty refs should normalize to absent")
	}
	if got[2].ImageRef == nil || *got[2].ImageRef != "content://x" {
		t.Errorf("ref = %v, want content://x", got[2].ImageRef)
	}
}

func TestAdd_PrependsAndPersists(t *testing.T) {
	kv := storage.NewMemory()
	s := storeWith(t, kv, "A")
	if err := s.Add(s.NewNote("B", "")); err != nil {
		t.Fatal(err)
	}
	if got := titles(s.ListActive()); got != "B,A" {
		t.Errorf("active = %q", got)
	}

	reopened := openStore(t, kv)
	if got := titles(reopened.ListActive()); got != "B,A" {
		t.Errorf("persisted active = %q", got)
	}
}

func TestCompleteMany_DescendingOrder(t *testing.T) {
	kv := storage.NewMemory()
	s := storeWith(t, kv, "A", "B", "C", "D")

	if err := s.CompleteMany([]int{0, 2}); err != nil {
		t.Fatal(err)
	}
	if got := titles(s.ListActive()); got != "B,D" {
		t.Errorf("active = %q, want B,D", got)
	}
	if got := titles(s.ListCompleted()); got != "A,C" {
		t.Errorf("completed = %q, want A,C", got)
	}
	for _, n := range s.ListCompleted() {
		if !n.Completed {
			t.Errorf("%s not marked completed", n.Title)
		}
	}

	reopened := openStore(t, kv)
	if got := titles(reopened.ListCompleted()); got != "A,C" {
		t.Errorf("persisted completed = %q", got)
	}
}

func TestCompleteMany_PrependsToExisting(t *testing.T) {
	kv := storage.NewMemory()
	putNotes(t, kv, KeyCompleted, []models.Note{{ID: "Z", Title: "Z", Completed: true}})
	s := storeWith(t, kv, "A", "B")
	if err := s.CompleteMany([]int{1, 0, 1}); err != nil {
		t.Fatal(err)
	}
	if got := titles(s.ListCompleted()); got != "A,B,Z" {
		t.Errorf("completed = %q, want A,B,Z", got)
	}
}

func TestDeleteMany(t *testing.T) {
	s := storeWith(t, storage.NewMemory(), "A", "B", "C", "D")
	if err := s.DeleteMany([]int{3, 1}); err != nil {
		t.Fatal(err)
	}
	if got := titles(s.ListActive()); got != "A,C" {
		t.Errorf("active = %q, want A,C", got)
	}
}

func TestDeleteCompletedMany(t *testing.T) {
	kv := storage.NewMemory()
	putNotes(t, kv, KeyCompleted, []models.Note{{ID: "X", Title: "X"}, {ID: "Y", Title: "Y"}})
	s := storeWith(t, kv, "A")
	if err := s.DeleteCompletedMany([]int{0}); err != nil {
		t.Fatal(err)
	}
	if got := titles(s.ListCompleted()); got != "Y" {
		t.Errorf("completed = %q, want Y", got)
	}
	if got := titles(s.ListActive()); got != "A" {
		t.Errorf("active = %q, want A", got)
	}
}

func TestBatch_OutOfRangeRejectsWholeBatch(t *testing.T) {
	s := storeWith(t, storage.NewMemory(), "A", "B")

	for name, fn := range map[string]func() error{
		"complete": func() error { return s.CompleteMany([]int{0, 2}) },
		"delete":   func() error { return s.DeleteMany([]int{-1}) },
		"update":   func() error { return s.Update(5, models.Note{}) },
	} {
		err := fn()
		if !errors.Is(err, apperr.ErrIndexOutOfRange) {
			t.Errorf("%s: err = %v, want ErrIndexOutOfRange", name, err)
		}
	}
	if got := titles(s.ListActive()); got != "A,B" {
		t.Errorf("active = %q, want unchanged", got)
	}
	if len(s.ListCompleted()) != 0 {
		t.Error("completed changed")
	}
}

func TestBatch_EmptyIsNoop(t *testing.T) {
	var changes int
	kv := storage.NewMemory()
	putNotes(t, kv, KeyActive, []models.Note{{ID: "A", Title: "A"}})
	s, _, err := Open(kv, WithListener(func(Change) { changes++ }))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.CompleteMany(nil); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteMany([]int{}); err != nil {
		t.Fatal(err)
	}
	if changes != 0 {
		t.Errorf("changes = %d, want 0", changes)
	}
	if _, err := kv.Get(KeyCompleted); !errors.Is(err, apperr.ErrNotFound) {
		t.Error("no-op batch should not write")
	}
}

func TestPersistFailure_RollsBack(t *testing.T) {
	mem := storage.NewMemory()
	putNotes(t, mem, KeyActive, []models.Note{{ID: "A", Title: "A"}, {ID: "B", Title: "B"}})
	kv := &failingKV{KV: mem, failKey: KeyCompleted}
	s := openStore(t, kv)

	if err := s.CompleteMany([]int{0}); err == nil {
		t.Fatal("expected error")
	}
	if got := titles(s.ListActive()); got != "A,B" {
		t.Errorf("active = %q, want A,B", got)
	}

	raw, err := mem.Get(KeyActive)
	if err != nil {
		t.Fatal(err)
	}
	var stored []models.Note
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		t.Fatal(err)
	}
	if got := titles(stored); got != "A,B" {
		t.Errorf("stored active = %q, want restored A,B", got)
	}

	kv.failKey = KeyActive
	if err := s.Add(models.Note{ID: "C", Title: "C"}); err == nil {
		t.Fatal("expected error")
	}
	if got := titles(s.ListActive()); got != "A,B" {
		t.Errorf("active after failed add = %q", got)
	}
}

func TestClearAll(t *testing.T) {
	kv := storage.NewMemory()
	putNotes(t, kv, KeyCompleted, []models.Note{{ID: "X", Title: "X"}})
	s := storeWith(t, kv, "A")
	if err := s.ClearAll(); err != nil {
		t.Fatal(err)
	}
	if len(s.ListActive())+len(s.ListCompleted()) != 0 {
		t.Error("sequences not emptied")
	}
	for _, key := range []string{KeyActive, KeyCompleted} {
		if _, err := kv.Get(key); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("%s still stored", key)
		}
	}
}

func TestClearAll_FailureRestoresSlots(t *testing.T) {
	mem := storage.NewMemory()
	putNotes(t, mem, KeyCompleted, []models.Note{{ID: "X", Title: "X"}})
	putNotes(t, mem, KeyActive, []models.Note{{ID: "A", Title: "A"}, {ID: "B", Title: "B"}})
	s := openStore(t, &clearFailKV{KV: mem})

	if err := s.ClearAll(); err == nil {
		t.Fatal("expected error")
	}
	if got := titles(s.ListActive()); got != "A,B" {
		t.Errorf("active = %q, want A,B", got)
	}

	reopened, rep, err := Open(mem)
	if err != nil {
		t.Fatal(err)
	}
	if rep.ActiveSeeded {
		t.Error("active slot lost after failed clear")
	}
	if got := titles(reopened.ListActive()); got != "A,B" {
		t.Errorf("stored active = %q, want A,B", got)
	}
	if got := titles(reopened.ListCompleted()); got != "X" {
		t.Errorf("stored completed = %q, want X", got)
	}
}

func TestReload(t *testing.T) {
	kv := storage.NewMemory()
	s := storeWith(t, kv, "A")
	putNotes(t, kv, KeyActive, []models.Note{{ID: "Q", Title: "Q"}, {ID: "R", Title: "R"}})

	var got Change
	s.listeners = append(s.listeners, func(c Change) { got = c })
	if _, err := s.Reload(); err != nil {
		t.Fatal(err)
	}
	if titles(s.ListActive()) != "Q,R" {
		t.Errorf("active = %q", titles(s.ListActive()))
	}
	if got.Kind != ChangeReloaded || got.Active != 2 {
		t.Errorf("change = %+v", got)
	}
}

func TestLastWritten(t *testing.T) {
	kv := storage.NewMemory()
	s := storeWith(t, kv, "A")
	if err := s.Add(models.Note{ID: "B", Title: "B"}); err != nil {
		t.Fatal(err)
	}
	raw, _ := kv.Get(KeyActive)
	if s.LastWritten(KeyActive) != storage.Checksum(raw) {
		t.Error("LastWritten does not match stored value")
	}
}

func TestNewNote_IDsIncrease(t *testing.T) {
	s := openStore(t, storage.NewMemory())
	prev := s.NewNote("", "")
	for range 5 {
		n := s.NewNote("", "")
		if len(n.ID) < len(prev.ID) || (len(n.ID) == len(prev.ID) && n.ID <= prev.ID) {
			t.Fatalf("id %s not after %s", n.ID, prev.ID)
		}
		prev = n
	}
}

func TestNewNote_IDsSurviveRestart(t *testing.T) {
	kv := storage.NewMemory()
	putNotes(t, kv, KeyActive, []models.Note{{ID: "1700000000500", Title: "future"}})
	s := openStore(t, kv)
	if n := s.NewNote("", ""); n.ID != "1700000000501" {
		t.Errorf("id = %s, want 1700000000501", n.ID)
	}
}

func TestConcurrentAdds(t *testing.T) {
	s := storeWith(t, storage.NewMemory())
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Add(s.NewNote("x", "")); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if n := len(s.ListActive()); n != 20 {
		t.Errorf("active = %d, want 20", n)
	}
}

func TestDefaultTitle(t *testing.T) {
	tests := []struct {
		title, body string
		editing     bool
		want        string
	}{
		{"  Shopping ", "", false, "Shopping"},
		{"", "", false, DefaultNewTitle},
		{" ", "\n", true, DefaultEditTitle},
		{"", "body", false, ""},
	}
	for _, tt := range tests {
		if got := DefaultTitle(tt.title, tt.body, tt.editing); got != tt.want {
			t.Errorf("DefaultTitle(%q, %q, %v) = %q, want %q", tt.title, tt.body, tt.editing, got, tt.want)
		}
	}
}

func TestCreateAndEditDraft(t *testing.T) {
	s := storeWith(t, storage.NewMemory())

	v, err := s.Create(Draft{Text: "look\n[IMG]\nend", Images: []string{"QUJD"}})
	if err != nil {
		t.Fatal(err)
	}
	if v.Note.Title != DefaultNewTitle && v.Note.Title != "" {
		t.Errorf("title = %q", v.Note.Title)
	}
	if !richtext.HasImages(v.Note.Body) || !v.HasImage() {
		t.Errorf("body should embed image: %q", v.Note.Body)
	}
	if v.Document.Text != "look\n[IMG]\nend" || len(v.Document.Images) != 1 {
		t.Errorf("document = %+v", v.Document)
	}

	edited, err := s.Edit(0, Draft{Title: "t", Text: "plain"})
	if err != nil {
		t.Fatal(err)
	}
	if edited.Note.ID != v.Note.ID || edited.Note.CreatedAt != v.Note.CreatedAt {
		t.Error("edit must keep id and creation time")
	}
	if edited.Note.Body != "plain" || edited.HasImage() {
		t.Errorf("body = %q", edited.Note.Body)
	}

	empty, err := s.Edit(0, Draft{})
	if err != nil {
		t.Fatal(err)
	}
	if empty.Note.Title != DefaultEditTitle {
		t.Errorf("title = %q, want %q", empty.Note.Title, DefaultEditTitle)
	}
}

func TestView_PlainLegacyBody(t *testing.T) {
	kv := storage.NewMemory()
	putNotes(t, kv, KeyActive, []models.Note{{ID: "1", Title: "old", Body: "a < b\nc"}})
	s := openStore(t, kv)
	v, err := s.View(models.ListActive, 0)
	if err != nil {
		t.Fatal(err)
	}
	if v.Document.Text != "a < b\nc" || v.Document.Degraded {
		t.Errorf("document = %+v", v.Document)
	}
	if _, err := s.View("archived", 0); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestRevise_KeepsImageNextToStrayBracket(t *testing.T) {
	s := storeWith(t, storage.NewMemory())
	if _, err := s.Create(Draft{Text: "[IMG]\nbuy a<b", Images: []string{"QUJD"}}); err != nil {
		t.Fatal(err)
	}

	v, err := s.Revise(0, "t", "[IMG]\nbuy a<b today")
	if err != nil {
		t.Fatal(err)
	}
	if !richtext.HasImages(v.Note.Body) {
		t.Fatalf("image lost: %q", v.Note.Body)
	}
	if v.Document.Text != "[IMG]\nbuy a<b today" || len(v.Document.Images) != 1 {
		t.Errorf("document = %+v", v.Document)
	}

	v, err = s.InsertImage(0, 0, "REVG")
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Document.Images) != 2 || !strings.HasSuffix(v.Document.Text, "buy a<b today") {
		t.Errorf("document = %+v", v.Document)
	}
}

func TestRevise_RefusesUnreadableBody(t *testing.T) {
	s := storeWith(t, storage.NewMemory())
	body := "ok\xff<br/><img src=\"data:image/jpeg;base64,QUJD\" />"
	if err := s.Add(models.Note{ID: "1", Title: "bad", Body: body}); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Revise(0, "t", "replaced"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("revise err = %v, want ErrInvalidInput", err)
	}
	if _, err := s.InsertImage(0, -1, "REVG"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("insert err = %v, want ErrInvalidInput", err)
	}
	got, err := s.Active(0)
	if err != nil {
		t.Fatal(err)
	}
	if got.Body != body {
		t.Errorf("body = %q, want unchanged", got.Body)
	}
}
