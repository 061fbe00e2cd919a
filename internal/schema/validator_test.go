package schema

import (
	"errors"
	"testing"

	"github.com/magdb/mag/internal/document"
)

func mustParse(t *testing.T, doc document.Document) *Model {
	t.Helper()
	model, err := ParseModel(doc)
	if err != nil {
		t.Fatalf("ParseModel: %v", err)
	}
	return model
}

func personModel(t *testing.T) *Model {
	return mustParse(t, document.Document{
		"_id":   "person",
		"name":  map[string]any{"field": "Char"},
		"age":   map[string]any{"field": "PositiveInteger"},
		"email": map[string]any{"field": "Email", "required": false},
	})
}

func TestValidateInstanceAccepts(t *testing.T) {
	err := ValidateInstance(personModel(t), document.Document{
		"_model": "person",
		"name":   "Jane",
		"age":    30,
	}, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateInstanceOrphaned(t *testing.T) {
	err := ValidateInstance(personModel(t), document.Document{"name": "Jane", "age": 30}, nil, false)
	var orphaned *OrphanedInstanceError
	if !errors.As(err, &orphaned) {
		t.Fatalf("expected OrphanedInstanceError, got %v", err)
	}
}

func TestValidateInstanceUnknownFields(t *testing.T) {
	err := ValidateInstance(personModel(t), document.Document{
		"_model": "person", "name": "Jane", "age": 30, "zone": 1, "area": 2,
	}, nil, false)
	var invalid *InvalidFieldsError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidFieldsError, got %v", err)
	}
	if len(invalid.Fields) != 2 || invalid.Fields[0] != "area" || invalid.Fields[1] != "zone" {
		t.Errorf("expected sorted [area zone], got %v", invalid.Fields)
	}
}

func TestValidateInstanceMissingFields(t *testing.T) {
	// email is explicitly optional and may be absent; name and age may not.
	err := ValidateInstance(personModel(t), document.Document{"_model": "person"}, nil, false)
	var missing *MissingFieldsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingFieldsError, got %v", err)
	}
	if len(missing.Fields) != 2 || missing.Fields[0] != "age" || missing.Fields[1] != "name" {
		t.Errorf("expected sorted [age name], got %v", missing.Fields)
	}
}

func TestValidateInstanceRequiredTrueCountsAsRequired(t *testing.T) {
	model := mustParse(t, document.Document{
		"_id":  "thing",
		"note": map[string]any{"field": "Text", "required": true},
	})
	err := ValidateInstance(model, document.Document{"_model": "thing"}, nil, false)
	var missing *MissingFieldsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingFieldsError, got %v", err)
	}
}

func TestValidateInstanceReservedKeysIgnored(t *testing.T) {
	err := ValidateInstance(personModel(t), document.Document{
		"_id":                "p1",
		"_model":             "person",
		"_meta":              map[string]any{"_version": 3},
		"_versional_comment": "note",
		"name":               "Jane",
		"age":                30,
	}, nil, false)
	if err != nil {
		t.Fatalf("reserved keys must not trip validation: %v", err)
	}
}

func TestValidateInstanceFieldValue(t *testing.T) {
	err := ValidateInstance(personModel(t), document.Document{
		"_model": "person", "name": "Jane", "age": -4,
	}, nil, false)
	if err == nil || !IsInvalidInstance(err) {
		t.Fatalf("expected value-level validation failure, got %v", err)
	}
}

func TestHandleNonePassesNulls(t *testing.T) {
	instance := document.Document{"_model": "person", "name": nil, "age": 30}
	if err := ValidateInstance(personModel(t), instance, nil, false); err == nil {
		t.Fatal("null must fail without handleNone")
	}
	if err := ValidateInstance(personModel(t), instance, nil, true); err != nil {
		t.Fatalf("null must pass with handleNone: %v", err)
	}
}

func TestValidateEmbedded(t *testing.T) {
	article := mustParse(t, document.Document{
		"_id":    "article",
		"title":  map[string]any{"field": "Char"},
		"author": map[string]any{"field": "Embedded"},
	})
	embedded, err := ParseModelSet([]document.Document{{
		"_id":  "person",
		"name": map[string]any{"field": "Char"},
	}})
	if err != nil {
		t.Fatalf("ParseModelSet: %v", err)
	}

	ok := document.Document{
		"_model": "article",
		"title":  "On Gulls",
		"author": map[string]any{"_model": "person", "name": "Jane"},
	}
	if err := ValidateInstance(article, ok, embedded, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Inner failure surfaces.
	bad := document.Document{
		"_model": "article",
		"title":  "On Gulls",
		"author": map[string]any{"_model": "person", "name": 7},
	}
	if err := ValidateInstance(article, bad, embedded, false); err == nil {
		t.Fatal("embedded field failure must surface")
	}

	// An embedded value naming an unknown model is a validation failure.
	unknown := document.Document{
		"_model": "article",
		"title":  "On Gulls",
		"author": map[string]any{"_model": "robot", "name": "x"},
	}
	err = ValidateInstance(article, unknown, embedded, false)
	if err == nil || !IsInvalidInstance(err) {
		t.Fatalf("expected validation failure, got %v", err)
	}
}

func TestValidateEmbeddedList(t *testing.T) {
	gallery := mustParse(t, document.Document{
		"_id":    "gallery",
		"photos": map[string]any{"field": "EmbeddedList"},
	})
	embedded, err := ParseModelSet([]document.Document{{
		"_id": "photo", "path": map[string]any{"field": "FilePath"},
	}})
	if err != nil {
		t.Fatalf("ParseModelSet: %v", err)
	}

	instance := document.Document{
		"_model": "gallery",
		"photos": []any{
			map[string]any{"_model": "photo", "path": "/a"},
			map[string]any{"_model": "photo", "path": "/b"},
		},
	}
	if err := ValidateInstance(gallery, instance, embedded, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	instance["photos"] = []any{map[string]any{"path": "/a"}}
	if err := ValidateInstance(gallery, instance, embedded, false); err == nil {
		t.Fatal("embedded item without _model must fail")
	}
}

func TestParseModelRejectsBadDescriptors(t *testing.T) {
	if _, err := ParseModel(document.Document{"_id": "m", "x": "Char"}); err == nil {
		t.Error("bare string descriptor must fail")
	}
	if _, err := ParseModel(document.Document{"_id": "m", "x": map[string]any{}}); err == nil {
		t.Error("descriptor without field tag must fail")
	}
	_, err := ParseModel(document.Document{"_id": "m", "x": map[string]any{"field": "Blob"}})
	if !errors.Is(err, ErrUnknownFieldType) {
		t.Errorf("expected ErrUnknownFieldType, got %v", err)
	}
}

func TestParseModelFileFields(t *testing.T) {
	model := mustParse(t, document.Document{
		"_id":              "image",
		"modeldescription": "an image with stored bytes",
		"portrait":         map[string]any{"field": "Image"},
		"_file_fields":     map[string]any{"fields": []any{"portrait"}},
	})
	if len(model.FileFields) != 1 || model.FileFields[0] != "portrait" {
		t.Errorf("expected FileFields [portrait], got %v", model.FileFields)
	}
	if _, ok := model.Fields["modeldescription"]; ok {
		t.Error("modeldescription must not become a field")
	}
}
