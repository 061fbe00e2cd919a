package mutation

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/magdb/mag/internal/auth"
	"github.com/magdb/mag/internal/document"
	"github.com/magdb/mag/internal/filestore"
	"github.com/magdb/mag/internal/history"
	"github.com/magdb/mag/internal/schema"
	"github.com/magdb/mag/internal/store"
)

var testActor = auth.Actor{ID: "jdoe", Display: "Jane Doe"}

// testEngine wires an engine over in-memory stores with a ticking clock.
func testEngine(t *testing.T, models ...document.Document) (*Engine, store.Store, *filestore.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	files := filestore.NewMemoryStore()

	ctx := context.Background()
	if len(models) > 0 {
		require.NoError(t, s.Collection(store.ModelCollection).Insert(ctx, models...))
	}

	e := NewEngine(s, Options{Files: files})
	tick := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return e, s, files
}

func imageModel() document.Document {
	return document.Document{
		"_id":    "image",
		"name":   map[string]any{"field": "Char"},
		"width":  map[string]any{"field": "Integer"},
		"height": map[string]any{"field": "Integer"},
		"note":   map[string]any{"field": "Text", "required": false},
	}
}

func historyEntries(t *testing.T, s store.Store) []document.Document {
	t.Helper()
	entries, err := s.Collection(history.Collection).Find(context.Background(), nil, nil)
	require.NoError(t, err)
	return entries
}

func TestCreateAssignsIDAndMeta(t *testing.T) {
	e, s, _ := testEngine(t, imageModel())
	ctx := context.Background()

	created, err := e.Create(ctx, "image", document.Document{
		"name": "sunset", "width": 800, "height": 600,
	}, testActor)
	require.NoError(t, err)

	require.NotEmpty(t, document.ID(created))
	require.Equal(t, "image", document.ModelName(created))

	meta, ok := document.MetaOf(created)
	require.True(t, ok)
	require.EqualValues(t, 1, meta.Version)
	require.Equal(t, "jdoe", meta.LastModifiedBy)
	require.Equal(t, "Jane Doe", meta.LastModifiedByName)
	require.Equal(t, meta.CreatedTime, meta.LastModifiedTime)

	entries := historyEntries(t, s)
	require.Len(t, entries, 1)
	require.Equal(t, "create", entries[0]["operation"])
	require.Equal(t, document.ID(created), entries[0]["document_id"])
	require.Equal(t, "Instance created", entries[0]["comment"])
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	e, _, _ := testEngine(t, imageModel())
	ctx := context.Background()

	instance := document.Document{
		"_id": "img-1", "name": "a", "width": 1, "height": 1,
	}
	_, err := e.Create(ctx, "image", instance, testActor)
	require.NoError(t, err)

	_, err = e.Create(ctx, "image", instance, testActor)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, "img-1", conflict.ID)
}

func TestCreateRejectsUnknownField(t *testing.T) {
	e, s, _ := testEngine(t, imageModel())

	_, err := e.Create(context.Background(), "image", document.Document{
		"name": "cat", "width": 1, "height": 1, "animal": "cat",
	}, testActor)

	var invalid *schema.InvalidFieldsError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, []string{"animal"}, invalid.Fields)
	require.Empty(t, historyEntries(t, s), "rejected create must leave no history")
}

func TestCreateRejectsMissingFields(t *testing.T) {
	e, _, _ := testEngine(t, imageModel())

	_, err := e.Create(context.Background(), "image", document.Document{
		"name": "cat",
	}, testActor)

	var missing *schema.MissingFieldsError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, []string{"height", "width"}, missing.Fields)
}

func TestCreateDeniedForUnknownActor(t *testing.T) {
	s := store.NewMemoryStore()
	e := NewEngine(s, Options{Authorizer: auth.DenyUnknown{}})

	_, err := e.Create(context.Background(), "image", document.Document{}, auth.Unknown)
	var denied *AuthorizationError
	require.ErrorAs(t, err, &denied)
	require.Equal(t, "create", denied.Operation)
}

func TestUpdateIdenticalPayloadIsNoop(t *testing.T) {
	e, s, _ := testEngine(t, imageModel())
	ctx := context.Background()

	created, err := e.Create(ctx, "image", document.Document{
		"name": "sunset", "width": 800, "height": 600,
	}, testActor)
	require.NoError(t, err)
	id := document.ID(created)

	// Resubmit the exact stored instance, stale _meta included.
	same, err := e.Update(ctx, "image", id, document.Clone(created), testActor)
	require.NoError(t, err)

	meta, _ := document.MetaOf(same)
	require.EqualValues(t, 1, meta.Version, "no-op must not bump the version")
	require.Len(t, historyEntries(t, s), 1, "no-op must not record history")
}

func TestUpdateBumpsVersionAndCarriesCreatedTime(t *testing.T) {
	e, s, _ := testEngine(t, imageModel())
	ctx := context.Background()

	created, err := e.Create(ctx, "image", document.Document{
		"name": "sunset", "width": 800, "height": 600,
	}, testActor)
	require.NoError(t, err)
	id := document.ID(created)
	createdMeta, _ := document.MetaOf(created)

	next := document.Clone(created)
	next["width"] = 1024
	updated, err := e.Update(ctx, "image", id, next, testActor)
	require.NoError(t, err)

	meta, _ := document.MetaOf(updated)
	require.EqualValues(t, 2, meta.Version)
	require.Equal(t, createdMeta.CreatedTime, meta.CreatedTime)
	require.True(t, meta.LastModifiedTime.After(createdMeta.LastModifiedTime))

	entries := historyEntries(t, s)
	require.Len(t, entries, 2)

	// A second identical submission after the real change is again a no-op.
	_, err = e.Update(ctx, "image", id, document.Clone(updated), testActor)
	require.NoError(t, err)
	require.Len(t, historyEntries(t, s), 2)
}

func TestUpdateRejectsIDMismatch(t *testing.T) {
	e, _, _ := testEngine(t, imageModel())
	ctx := context.Background()

	created, err := e.Create(ctx, "image", document.Document{
		"name": "a", "width": 1, "height": 1,
	}, testActor)
	require.NoError(t, err)

	next := document.Clone(created)
	next["_id"] = "some-other-id"
	_, err = e.Update(ctx, "image", document.ID(created), next, testActor)

	var mismatch *MismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, "id", mismatch.Key)
}

func TestUpdateRejectsModelMismatch(t *testing.T) {
	e, _, _ := testEngine(t, imageModel())
	ctx := context.Background()

	created, err := e.Create(ctx, "image", document.Document{
		"name": "a", "width": 1, "height": 1,
	}, testActor)
	require.NoError(t, err)

	next := document.Clone(created)
	next["_model"] = "article"
	_, err = e.Update(ctx, "image", document.ID(created), next, testActor)

	var mismatch *MismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, "model", mismatch.Key)
}

func TestUpdateMissingInstance(t *testing.T) {
	e, _, _ := testEngine(t, imageModel())

	_, err := e.Update(context.Background(), "image", "nope", document.Document{}, testActor)
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "nope", notFound.ID)
}

func TestUpdateFields(t *testing.T) {
	e, s, _ := testEngine(t, imageModel())
	ctx := context.Background()

	var ids []string
	for _, name := range []string{"a", "b"} {
		created, err := e.Create(ctx, "image", document.Document{
			"name": name, "width": 1, "height": 1,
		}, testActor)
		require.NoError(t, err)
		ids = append(ids, document.ID(created))
	}

	updated, err := e.UpdateFields(ctx, "image", Criteria{IDs: ids}, document.Document{
		"name": "renamed",
		"$inc": map[string]any{"width": 5},
	}, testActor, "bulk rename")
	require.NoError(t, err)
	require.Len(t, updated, 2)

	for _, doc := range updated {
		require.Equal(t, "renamed", doc["name"])
		meta, _ := document.MetaOf(doc)
		require.EqualValues(t, 2, meta.Version)
		require.Equal(t, "jdoe", meta.LastModifiedBy)
	}

	entries := historyEntries(t, s)
	require.Len(t, entries, 4) // 2 creates + 2 field updates
	require.Equal(t, "bulk rename", entries[2]["comment"])
}

func TestUpdateFieldsRequiresSelector(t *testing.T) {
	e, s, _ := testEngine(t, imageModel())
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		_, err := e.Create(ctx, "image", document.Document{
			"name": name, "width": 1, "height": 1,
		}, testActor)
		require.NoError(t, err)
	}

	// Neither ids nor a query: must not fall through to a match-all update.
	_, err := e.UpdateFields(ctx, "image", Criteria{}, document.Document{
		"width": 99,
	}, testActor, "")
	require.True(t, IsValidationFailure(err), "got %v", err)

	docs, err := e.List(ctx, "image", document.Document{}, nil)
	require.NoError(t, err)
	for _, doc := range docs {
		require.EqualValues(t, 1, doc["width"])
	}
	require.Len(t, historyEntries(t, s), 3) // creates only
}

func TestUpdateFieldsRejectsBadModifier(t *testing.T) {
	e, _, _ := testEngine(t, imageModel())
	ctx := context.Background()

	created, err := e.Create(ctx, "image", document.Document{
		"name": "a", "width": 1, "height": 1,
	}, testActor)
	require.NoError(t, err)
	criteria := Criteria{IDs: []string{document.ID(created)}}

	// $rename is unsupported, always fails.
	_, err = e.UpdateFields(ctx, "image", criteria, document.Document{
		"$rename": map[string]any{"width": "breadth"},
	}, testActor, "")
	require.True(t, IsValidationFailure(err), "got %v", err)

	// $unset needs an explicit required:false descriptor.
	_, err = e.UpdateFields(ctx, "image", criteria, document.Document{
		"$unset": map[string]any{"width": 1},
	}, testActor, "")
	require.True(t, IsValidationFailure(err), "got %v", err)

	// $unset on the optional field is fine.
	_, err = e.UpdateFields(ctx, "image", criteria, document.Document{
		"$unset": map[string]any{"note": 1},
	}, testActor, "")
	require.NoError(t, err)
}

func TestUpdateBatchRejectsMissingIDsUpFront(t *testing.T) {
	e, s, _ := testEngine(t, imageModel())
	ctx := context.Background()

	created, err := e.Create(ctx, "image", document.Document{
		"name": "a", "width": 1, "height": 1,
	}, testActor)
	require.NoError(t, err)

	changed := document.Clone(created)
	changed["width"] = 99
	ghost := document.Document{
		"_id": "ghost", "_model": "image", "name": "x", "width": 1, "height": 1,
	}

	_, err = e.UpdateBatch(ctx, "image", []document.Document{changed, ghost}, testActor, "")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)

	// The existing instance must be untouched.
	current, err := e.Get(ctx, "image", document.ID(created))
	require.NoError(t, err)
	require.EqualValues(t, 1, current["width"])
	require.Len(t, historyEntries(t, s), 1)
}

func TestUpdateBatchMixesChangedAndUnchanged(t *testing.T) {
	e, s, _ := testEngine(t, imageModel())
	ctx := context.Background()

	first, err := e.Create(ctx, "image", document.Document{
		"name": "a", "width": 1, "height": 1,
	}, testActor)
	require.NoError(t, err)
	second, err := e.Create(ctx, "image", document.Document{
		"name": "b", "width": 2, "height": 2,
	}, testActor)
	require.NoError(t, err)

	changed := document.Clone(first)
	changed["width"] = 50

	updated, err := e.UpdateBatch(ctx, "image", []document.Document{changed, document.Clone(second)}, testActor, "resize pass")
	require.NoError(t, err)
	require.Len(t, updated, 2)

	firstMeta, _ := document.MetaOf(updated[0])
	secondMeta, _ := document.MetaOf(updated[1])
	require.EqualValues(t, 2, firstMeta.Version)
	require.EqualValues(t, 1, secondMeta.Version, "unchanged instance keeps its version")

	entries := historyEntries(t, s)
	require.Len(t, entries, 3) // 2 creates + 1 real update
	require.Equal(t, "resize pass", entries[2]["comment"])
}

func TestUpdateBatchInstanceCommentWins(t *testing.T) {
	e, s, _ := testEngine(t, imageModel())
	ctx := context.Background()

	created, err := e.Create(ctx, "image", document.Document{
		"name": "a", "width": 1, "height": 1,
	}, testActor)
	require.NoError(t, err)

	changed := document.Clone(created)
	changed["width"] = 7
	changed["_versional_comment"] = "cropped"

	_, err = e.UpdateBatch(ctx, "image", []document.Document{changed}, testActor, "batch default")
	require.NoError(t, err)

	entries := historyEntries(t, s)
	require.Len(t, entries, 2)
	require.Equal(t, "cropped", entries[1]["comment"])
}

func TestDeleteRecordsTombstoneFirst(t *testing.T) {
	e, s, _ := testEngine(t, imageModel())
	ctx := context.Background()

	created, err := e.Create(ctx, "image", document.Document{
		"name": "a", "width": 1, "height": 1,
	}, testActor)
	require.NoError(t, err)
	id := document.ID(created)

	deleted, err := e.Delete(ctx, "image", []string{id}, testActor, "")
	require.NoError(t, err)
	require.Equal(t, []string{id}, deleted)

	_, err = e.Get(ctx, "image", id)
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)

	entries := historyEntries(t, s)
	require.Len(t, entries, 2)
	require.Equal(t, "delete", entries[1]["operation"])
	require.Equal(t, "Instance deleted", entries[1]["comment"])
	snapshot, ok := entries[1]["document"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, id, document.ID(snapshot))
}

func TestDeleteMissingInstances(t *testing.T) {
	e, _, _ := testEngine(t, imageModel())

	_, err := e.Delete(context.Background(), "image", []string{"nope"}, testActor, "")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestValidateOnly(t *testing.T) {
	e, s, _ := testEngine(t, imageModel())
	ctx := context.Background()

	err := e.Validate(ctx, "image", document.Document{
		"name": "ok", "width": 10, "height": 10,
	}, KindInstance)
	require.NoError(t, err)

	err = e.Validate(ctx, "image", document.Document{
		"name": "bad", "width": "not-a-number", "height": 10,
	}, KindInstance)
	require.Error(t, err)

	err = e.Validate(ctx, "image", document.Document{
		"$inc": map[string]any{"name": 1},
	}, KindModifier)
	require.True(t, IsValidationFailure(err), "got %v", err)

	// Validation never writes.
	instances, err := s.Collection("image").Find(ctx, nil, nil)
	require.NoError(t, err)
	require.Empty(t, instances)
}

func TestUniquify(t *testing.T) {
	e, s, _ := testEngine(t, imageModel())
	ctx := context.Background()

	got, err := e.Uniquify(ctx, "image", "photo")
	require.NoError(t, err)
	require.Equal(t, "photo_1", got)

	for _, id := range []string{"photo", "photo_1", "photo_7", "photograph_9"} {
		require.NoError(t, s.Collection("image").Insert(ctx, document.Document{"_id": id}))
	}

	got, err = e.Uniquify(ctx, "image", "photo")
	require.NoError(t, err)
	require.Equal(t, "photo_8", got)
}

func TestCreateStoresFileData(t *testing.T) {
	model := imageModel()
	model["hires"] = map[string]any{"field": "Image"}
	model["_file_fields"] = map[string]any{"fields": []any{"hires"}}

	e, _, files := testEngine(t, model)
	ctx := context.Background()

	payload := base64.StdEncoding.EncodeToString([]byte("pixels"))
	created, err := e.Create(ctx, "image", document.Document{
		"name": "a", "width": 1, "height": 1,
		"_file_data": map[string]any{
			"hires": "data:image/png;base64," + payload,
		},
	}, testActor)
	require.NoError(t, err)

	id := document.ID(created)
	key := filestore.AttachmentKey("image", id, "hires")
	require.Equal(t, key, created["hires"], "file field must be rewritten to the storage path")

	data, contentType, err := files.Read(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "pixels", string(data))
	require.Equal(t, "image/png", contentType)

	// Deleting the instance cleans the attachment up.
	_, err = e.Delete(ctx, "image", []string{id}, testActor, "")
	require.NoError(t, err)
	exists, err := files.Exists(ctx, key)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestCreateValidatesEmbeddedChain(t *testing.T) {
	article := document.Document{
		"_id":      "article",
		"title":    map[string]any{"field": "Char"},
		"comments": map[string]any{"field": "EmbeddedList", "resource": "comment"},
	}
	comment := document.Document{
		"_id":    "comment",
		"text":   map[string]any{"field": "Char"},
		"author": map[string]any{"field": "Embedded", "resource": "person"},
	}
	person := document.Document{
		"_id":  "person",
		"name": map[string]any{"field": "Char"},
	}

	e, _, _ := testEngine(t, article, comment, person)
	ctx := context.Background()

	valid := document.Document{
		"title": "hello",
		"comments": []any{
			map[string]any{
				"_model": "comment",
				"text":   "first",
				"author": map[string]any{"_model": "person", "name": "Ada"},
			},
		},
	}
	_, err := e.Create(ctx, "article", valid, testActor)
	require.NoError(t, err)

	// A defect three levels down must surface.
	broken := document.Clone(valid)
	comments := broken["comments"].([]any)
	author := comments[0].(map[string]any)["author"].(map[string]any)
	author["name"] = 42
	_, err = e.Create(ctx, "article", broken, testActor)
	require.True(t, IsValidationFailure(err), "got %v", err)
}
