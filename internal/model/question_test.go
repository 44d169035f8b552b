package model

import (
	"encoding/json"
	"testing"
)

func TestAnswerValueJSONUnion(t *testing.T) {
	t.Run("scalar round trip", func(t *testing.T) {
		data, err := json.Marshal(ScalarAnswer("42 cm"))
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != `"42 cm"` {
			t.Errorf("marshal = %s, want bare string", data)
		}
		var got AnswerValue
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatal(err)
		}
		if got.IsList || got.Text != "42 cm" {
			t.Errorf("unmarshal = %+v, want scalar 42 cm", got)
		}
	})

	t.Run("list round trip", func(t *testing.T) {
		data, err := json.Marshal(ListAnswer([]string{"a", "b"}))
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != `["a","b"]` {
			t.Errorf("marshal = %s, want bare array", data)
		}
		var got AnswerValue
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatal(err)
		}
		if !got.IsList || len(got.Values) != 2 {
			t.Errorf("unmarshal = %+v, want two-element list", got)
		}
	})

	t.Run("display and empty", func(t *testing.T) {
		if got := ListAnswer([]string{"x", "y"}).Display(); got != "x; y" {
			t.Errorf("Display() = %q, want joined", got)
		}
		if !ScalarAnswer("").Empty() || !ListAnswer(nil).Empty() {
			t.Error("empty answers should report Empty()")
		}
		if ScalarAnswer("a").Empty() {
			t.Error("non-empty scalar reported Empty()")
		}
	})
}

func TestSourceValueJSONUnion(t *testing.T) {
	t.Run("notes literal", func(t *testing.T) {
		data, _ := json.Marshal(NotesSource())
		if string(data) != `"notes"` {
			t.Errorf("marshal = %s, want notes literal", data)
		}
		var got SourceValue
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatal(err)
		}
		if !got.Notes {
			t.Errorf("unmarshal = %+v, want notes", got)
		}
	})

	t.Run("url list", func(t *testing.T) {
		data, _ := json.Marshal(URLSource([]string{"https://example.com"}))
		var got SourceValue
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatal(err)
		}
		if got.Notes || len(got.URLs) != 1 {
			t.Errorf("unmarshal = %+v, want single URL", got)
		}
	})

	t.Run("empty url list collapses to notes on marshal", func(t *testing.T) {
		data, _ := json.Marshal(URLSource(nil))
		if string(data) != `"notes"` {
			t.Errorf("marshal = %s, want notes fallback", data)
		}
	})
}

func TestProcessingStatusActive(t *testing.T) {
	active := []ProcessingStatus{StatusExtracting, StatusGeneratingAnswers}
	inactive := []ProcessingStatus{StatusPending, StatusReady, StatusError}

	for _, s := range active {
		if !s.Active() {
			t.Errorf("%q should be active", s)
		}
	}
	for _, s := range inactive {
		if s.Active() {
			t.Errorf("%q should not be active", s)
		}
	}
}
