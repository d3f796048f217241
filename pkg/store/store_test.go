package store

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

type testOffer struct {
	Title string `json:"title"`
	Views int    `json:"views"`
}

// ---------------------------------------------------------------------------
// Store[T]
// ---------------------------------------------------------------------------

func TestNextIDSequence(t *testing.T) {
	s := New[testOffer](100)
	if id := s.NextID(); id != 100 {
		t.Errorf("expected first id 100, got %d", id)
	}
	if id := s.NextID(); id != 101 {
		t.Errorf("expected second id 101, got %d", id)
	}

	if New[testOffer](0).NextID() != 1 {
		t.Error("expected non-positive start to default to 1")
	}
}

func TestSetGetOverwrite(t *testing.T) {
	s := New[testOffer](1)
	s.Set(1, testOffer{Title: "first"})
	s.Set(2, testOffer{Title: "second"})
	s.Set(1, testOffer{Title: "renamed"})

	got, ok := s.Get(1)
	if !ok || got.Title != "renamed" {
		t.Errorf("Get(1) = %+v, %v", got, ok)
	}
	if s.Count() != 2 {
		t.Errorf("expected count 2, got %d", s.Count())
	}
	list := s.List()
	if list[0].Title != "renamed" || list[1].Title != "second" {
		t.Errorf("overwrite should keep insertion position, got %+v", list)
	}
	if _, ok := s.Get(99); ok {
		t.Error("expected missing id")
	}
}

func TestSetAdvancesSequence(t *testing.T) {
	s := New[testOffer](1)
	s.Set(40, testOffer{})
	if id := s.NextID(); id != 41 {
		t.Errorf("expected NextID after explicit Set to be 41, got %d", id)
	}
}

func TestUpdate(t *testing.T) {
	s := New[testOffer](1)
	s.Set(1, testOffer{Title: "a"})

	got, ok := s.Update(1, func(o *testOffer) { o.Views++ })
	if !ok || got.Views != 1 {
		t.Fatalf("Update() = %+v, %v", got, ok)
	}
	stored, _ := s.Get(1)
	if stored.Views != 1 {
		t.Error("update was not persisted")
	}
	if _, ok := s.Update(2, func(*testOffer) {}); ok {
		t.Error("expected false for missing id")
	}
}

func TestDelete(t *testing.T) {
	s := New[testOffer](1)
	s.Set(1, testOffer{Title: "a"})
	s.Set(2, testOffer{Title: "b"})

	if !s.Delete(1) {
		t.Error("expected delete to report existing item")
	}
	if s.Delete(1) {
		t.Error("expected second delete to report false")
	}
	if list := s.List(); len(list) != 1 || list[0].Title != "b" {
		t.Errorf("unexpected list after delete: %+v", list)
	}
}

func TestFilterAndFind(t *testing.T) {
	s := New[testOffer](1)
	for i, title := range []string{"a", "b", "c"} {
		s.Set(i+1, testOffer{Title: title, Views: i})
	}

	got := s.Filter(func(_ int, o testOffer) bool { return o.Views > 0 })
	if len(got) != 2 || got[0].Title != "b" {
		t.Errorf("unexpected filter result %+v", got)
	}
	none := s.Filter(func(int, testOffer) bool { return false })
	if none == nil || len(none) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", none)
	}

	id, o, ok := s.Find(func(_ int, o testOffer) bool { return o.Title == "c" })
	if !ok || id != 3 || o.Title != "c" {
		t.Errorf("Find() = %d, %+v, %v", id, o, ok)
	}
	if _, _, ok := s.Find(func(int, testOffer) bool { return false }); ok {
		t.Error("expected no match")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := New[testOffer](1)
	s.Set(3, testOffer{Title: "c"})
	s.Set(1, testOffer{Title: "a"})

	snap := s.Snapshot()
	snap[1] = testOffer{Title: "mutated"}
	if got, _ := s.Get(1); got.Title != "a" {
		t.Error("snapshot must be a copy")
	}

	other := New[testOffer](1)
	other.Set(9, testOffer{Title: "old"})
	other.LoadSnapshot(s.Snapshot())
	if _, ok := other.Get(9); ok {
		t.Error("LoadSnapshot should replace existing items")
	}
	list := other.List()
	if len(list) != 2 || list[0].Title != "a" || list[1].Title != "c" {
		t.Errorf("expected ascending id order, got %+v", list)
	}
	if id := other.NextID(); id != 4 {
		t.Errorf("expected sequence to continue at 4, got %d", id)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	s := New[testOffer](1)
	s.Set(7, testOffer{Title: "seven", Views: 2})

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if string(data) != `{"7":{"title":"seven","views":2}}` {
		t.Errorf("unexpected JSON %s", data)
	}

	restored := New[testOffer](1)
	if err := json.Unmarshal(data, restored); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if got, ok := restored.Get(7); !ok || got.Views != 2 {
		t.Errorf("restored item = %+v, %v", got, ok)
	}
	if err := restored.UnmarshalJSON([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestReset(t *testing.T) {
	s := New[testOffer](10)
	s.Set(s.NextID(), testOffer{})
	s.Set(s.NextID(), testOffer{})
	s.Reset()

	if s.Count() != 0 || len(s.List()) != 0 {
		t.Error("expected empty store after reset")
	}
	if id := s.NextID(); id != 10 {
		t.Errorf("expected sequence rewound to 10, got %d", id)
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := New[testOffer](1)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := s.NextID()
			s.Set(id, testOffer{Views: id})
			s.Get(id)
			s.List()
		}()
	}
	wg.Wait()
	if s.Count() != 50 {
		t.Errorf("expected 50 items, got %d", s.Count())
	}
}

// ---------------------------------------------------------------------------
// Clock
// ---------------------------------------------------------------------------

func TestClock(t *testing.T) {
	c := NewClock()
	if c.Offset() != 0 {
		t.Errorf("expected zero offset, got %s", c.Offset())
	}

	before := time.Now()
	c.Advance(time.Hour)
	c.Advance(30 * time.Minute)
	if c.Offset() != 90*time.Minute {
		t.Errorf("expected cumulative offset 90m, got %s", c.Offset())
	}
	if c.Now().Sub(before) < 90*time.Minute {
		t.Error("expected simulated time to be ahead")
	}

	c.Reset()
	if c.Offset() != 0 {
		t.Error("expected offset cleared by Reset")
	}
}
