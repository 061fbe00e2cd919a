package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/magdb/mag/internal/document"
)

func seeded(t *testing.T, docs ...document.Document) Collection {
	t.Helper()
	coll := NewMemoryStore().Collection("things")
	require.NoError(t, coll.Insert(context.Background(), docs...))
	return coll
}

func TestFindEquality(t *testing.T) {
	coll := seeded(t,
		document.Document{"_id": "a", "color": "red", "size": 2},
		document.Document{"_id": "b", "color": "blue", "size": 2},
		document.Document{"_id": "c", "color": "red", "size": 9},
	)
	ctx := context.Background()

	out, err := coll.Find(ctx, document.Document{"color": "red"}, nil)
	require.NoError(t, err)
	require.Len(t, out, 2)

	// Numeric equality crosses representations.
	out, err = coll.Find(ctx, document.Document{"size": float64(2)}, nil)
	require.NoError(t, err)
	require.Len(t, out, 2)

	n, err := coll.Count(ctx, document.Document{"color": "red", "size": 9})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestFindOperators(t *testing.T) {
	coll := seeded(t,
		document.Document{"_id": "ant"},
		document.Document{"_id": "antelope"},
		document.Document{"_id": "bee"},
	)
	ctx := context.Background()

	out, err := coll.Find(ctx, ByIDs([]string{"ant", "bee"}), nil)
	require.NoError(t, err)
	require.Len(t, out, 2)

	out, err = coll.Find(ctx, document.Document{"_id": map[string]any{"$regex": "^ant"}}, nil)
	require.NoError(t, err)
	require.Len(t, out, 2)

	out, err = coll.Find(ctx, document.Document{"_id": map[string]any{"$regex": "^ant"}}, &FindOptions{Sort: []string{"-_id"}})
	require.NoError(t, err)
	require.Equal(t, "antelope", document.ID(out[0]))
}

func TestFindOptions(t *testing.T) {
	coll := seeded(t,
		document.Document{"_id": "a", "rank": 3, "name": "x"},
		document.Document{"_id": "b", "rank": 1, "name": "y"},
		document.Document{"_id": "c", "rank": 2, "name": "z"},
	)
	ctx := context.Background()

	out, err := coll.Find(ctx, nil, &FindOptions{Sort: []string{"rank"}})
	require.NoError(t, err)
	require.Equal(t, "b", document.ID(out[0]))
	require.Equal(t, "a", document.ID(out[2]))

	out, err = coll.Find(ctx, nil, &FindOptions{Sort: []string{"rank"}, Skip: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "c", document.ID(out[0]))

	out, err = coll.Find(ctx, nil, &FindOptions{Skip: 10})
	require.NoError(t, err)
	require.Empty(t, out)

	// Projection keeps _id even when not asked for.
	out, err = coll.Find(ctx, ByID("a"), &FindOptions{Fields: []string{"name"}})
	require.NoError(t, err)
	require.Equal(t, document.Document{"_id": "a", "name": "x"}, out[0])
}

func TestFindOneAndReplace(t *testing.T) {
	coll := seeded(t, document.Document{"_id": "a", "v": 1})
	ctx := context.Background()

	doc, err := coll.FindOne(ctx, ByID("a"))
	require.NoError(t, err)
	require.EqualValues(t, 1, doc["v"])

	_, err = coll.FindOne(ctx, ByID("nope"))
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, coll.Replace(ctx, ByID("a"), document.Document{"_id": "a", "v": 2}))
	doc, err = coll.FindOne(ctx, ByID("a"))
	require.NoError(t, err)
	require.EqualValues(t, 2, doc["v"])

	err = coll.Replace(ctx, ByID("nope"), document.Document{"_id": "nope"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReadsAreIsolatedCopies(t *testing.T) {
	coll := seeded(t, document.Document{"_id": "a", "tags": []any{"x"}})
	ctx := context.Background()

	doc, err := coll.FindOne(ctx, ByID("a"))
	require.NoError(t, err)
	doc["tags"].([]any)[0] = "mutated"
	doc["extra"] = true

	fresh, err := coll.FindOne(ctx, ByID("a"))
	require.NoError(t, err)
	require.Equal(t, []any{"x"}, fresh["tags"])
	require.NotContains(t, fresh, "extra")
}

func TestUpdateSetUnsetInc(t *testing.T) {
	coll := seeded(t,
		document.Document{"_id": "a", "count": 1, "note": "keep", "meta": map[string]any{"v": int64(3)}},
		document.Document{"_id": "b", "count": 10},
	)
	ctx := context.Background()

	matched, err := coll.Update(ctx, ByID("a"), document.Document{
		"$set":   map[string]any{"note": "set", "nested.deep": "made"},
		"$inc":   map[string]any{"count": 2, "meta.v": 1},
		"$unset": map[string]any{"gone": 1},
	}, false)
	require.NoError(t, err)
	require.EqualValues(t, 1, matched)

	doc, err := coll.FindOne(ctx, ByID("a"))
	require.NoError(t, err)
	require.Equal(t, "set", doc["note"])
	require.Equal(t, int64(3), doc["count"])
	require.Equal(t, "made", doc["nested"].(map[string]any)["deep"])
	// Integral operands stay integral through $inc.
	require.Equal(t, int64(4), doc["meta"].(map[string]any)["v"])

	matched, err = coll.Update(ctx, nil, document.Document{"$inc": map[string]any{"count": 1}}, true)
	require.NoError(t, err)
	require.EqualValues(t, 2, matched)
}

func TestUpdateListOperators(t *testing.T) {
	coll := seeded(t, document.Document{"_id": "a", "tags": []any{"x", "y"}})
	ctx := context.Background()

	apply := func(mod document.Document) document.Document {
		t.Helper()
		_, err := coll.Update(ctx, ByID("a"), mod, false)
		require.NoError(t, err)
		doc, err := coll.FindOne(ctx, ByID("a"))
		require.NoError(t, err)
		return doc
	}

	doc := apply(document.Document{"$push": map[string]any{"tags": "z"}})
	require.Equal(t, []any{"x", "y", "z"}, doc["tags"])

	doc = apply(document.Document{"$addToSet": map[string]any{"tags": "z"}})
	require.Equal(t, []any{"x", "y", "z"}, doc["tags"])

	doc = apply(document.Document{"$pushAll": map[string]any{"tags": []any{"w", "x"}}})
	require.Equal(t, []any{"x", "y", "z", "w", "x"}, doc["tags"])

	doc = apply(document.Document{"$pull": map[string]any{"tags": "x"}})
	require.Equal(t, []any{"y", "z", "w"}, doc["tags"])

	doc = apply(document.Document{"$pop": map[string]any{"tags": 1}})
	require.Equal(t, []any{"y", "z"}, doc["tags"])

	doc = apply(document.Document{"$pop": map[string]any{"tags": -1}})
	require.Equal(t, []any{"z"}, doc["tags"])

	doc = apply(document.Document{"$pullAll": map[string]any{"tags": []any{"z"}}})
	require.Empty(t, doc["tags"])
}

func TestRemove(t *testing.T) {
	coll := seeded(t,
		document.Document{"_id": "a", "kind": "old"},
		document.Document{"_id": "b", "kind": "old"},
		document.Document{"_id": "c", "kind": "new"},
	)
	ctx := context.Background()

	removed, err := coll.Remove(ctx, document.Document{"kind": "old"})
	require.NoError(t, err)
	require.EqualValues(t, 2, removed)

	n, err := coll.Count(ctx, nil)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}
