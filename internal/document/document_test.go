package document

import (
	"testing"
	"time"
)

func TestCloneIsDeep(t *testing.T) {
	doc := Document{
		"name": "a",
		"tags": []any{"x", map[string]any{"k": 1}},
		"meta": map[string]any{"n": 2},
	}
	clone := Clone(doc)

	clone["name"] = "b"
	clone["tags"].([]any)[0] = "mutated"
	clone["tags"].([]any)[1].(map[string]any)["k"] = 99
	clone["meta"].(map[string]any)["n"] = 99

	if doc["name"] != "a" {
		t.Error("top-level scalar leaked")
	}
	if doc["tags"].([]any)[0] != "x" {
		t.Error("list element leaked")
	}
	if doc["tags"].([]any)[1].(map[string]any)["k"] != 1 {
		t.Error("nested map in list leaked")
	}
	if doc["meta"].(map[string]any)["n"] != 2 {
		t.Error("nested map leaked")
	}
	if Clone(nil) != nil {
		t.Error("Clone(nil) must be nil")
	}
}

func TestMetaRoundTrip(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	doc := Document{}
	SetMeta(doc, Meta{
		CreatedTime:        created,
		LastModifiedTime:   created.Add(time.Hour),
		LastModifiedBy:     "jdoe",
		LastModifiedByName: "Jane Doe",
		Version:            3,
	})

	meta, ok := MetaOf(doc)
	if !ok {
		t.Fatal("expected meta block")
	}
	if !meta.CreatedTime.Equal(created) || meta.Version != 3 || meta.LastModifiedBy != "jdoe" {
		t.Errorf("meta round trip lost fields: %+v", meta)
	}
}

func TestMetaOfDefaultsWhenAbsent(t *testing.T) {
	meta, ok := MetaOf(Document{"_id": "x"})
	if ok {
		t.Error("absent meta must report ok=false")
	}
	if meta.Version != 1 {
		t.Errorf("absent meta must default to version 1, got %d", meta.Version)
	}
}

func TestMetaOfParsesWireShapes(t *testing.T) {
	// A document read back from JSON carries strings and float64s.
	doc := Document{KeyMeta: map[string]any{
		"_created_time": "2024-05-01T12:00:00Z",
		"_version":      float64(4),
	}}
	meta, ok := MetaOf(doc)
	if !ok {
		t.Fatal("expected meta block")
	}
	if meta.Version != 4 {
		t.Errorf("version = %d, want 4", meta.Version)
	}
	if meta.CreatedTime.IsZero() {
		t.Error("created time did not parse")
	}
}

func TestCollectModelNames(t *testing.T) {
	doc := Document{
		"_id":    "a1",
		"_model": "article",
		"author": map[string]any{"_model": "person", "name": "Jane"},
		"comments": []any{
			map[string]any{
				"_model": "comment",
				"author": map[string]any{"_model": "person"},
			},
		},
		"title": "On Gulls",
	}

	names := CollectModelNames(doc)
	if len(names) != 2 || !names["person"] || !names["comment"] {
		t.Errorf("names = %v, want {person, comment}", names)
	}
	if names["article"] {
		t.Error("the document's own model tag must be excluded")
	}
}

func TestFingerprintIgnoresMapOrderAndExclusions(t *testing.T) {
	a := Document{"x": 1, "y": "s", "nested": map[string]any{"k": []any{1, 2}}}
	b := Document{"nested": map[string]any{"k": []any{1, 2}}, "y": "s", "x": 1}
	if !Equal(a, b) {
		t.Error("identical content must compare equal")
	}

	a[KeyMeta] = map[string]any{"_version": 1}
	b[KeyMeta] = map[string]any{"_version": 2}
	if Equal(a, b) {
		t.Error("differing meta must break equality")
	}
	if !Equal(a, b, KeyMeta) {
		t.Error("excluded keys must not affect equality")
	}
}

func TestFingerprintStableAcrossMapOrder(t *testing.T) {
	a := Document{"x": 1, "y": map[string]any{"a": 1, "b": 2}}
	b := Document{"y": map[string]any{"b": 2, "a": 1}, "x": 1}
	if Fingerprint(a) != Fingerprint(b) {
		t.Error("reordered maps must hash alike")
	}
	if Fingerprint(a) == Fingerprint(Document{"x": 2}) {
		t.Error("distinct content must hash apart")
	}
}

func TestFingerprintCollapsesNumericRepresentations(t *testing.T) {
	if !Equal(Document{"n": 1}, Document{"n": float64(1)}) {
		t.Error("1 and 1.0 must fingerprint alike")
	}
	if Equal(Document{"n": 1}, Document{"n": 2}) {
		t.Error("distinct values must differ")
	}
	if Equal(Document{"k": []any{1, 2}}, Document{"k": []any{2, 1}}) {
		t.Error("list order is significant")
	}
}
