package store

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/magdb/mag/internal/document"
)

// MemoryStore is an in-process Store guarded by a single mutex. It backs
// tests and single-node deployments; the query surface covers what the
// engine itself issues (equality, $in, $regex) and the modifier operators
// the modification validator admits.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

// Collection returns the named collection, creating it on first use.
func (s *MemoryStore) Collection(name string) Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.collections[name]
	if !ok {
		coll = &memoryCollection{}
		s.collections[name] = coll
	}
	return coll
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close(context.Context) error { return nil }

type memoryCollection struct {
	mu   sync.RWMutex
	docs []document.Document
}

func (c *memoryCollection) Find(_ context.Context, query document.Document, opts *FindOptions) ([]document.Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []document.Document
	for _, doc := range c.docs {
		if matches(doc, query) {
			out = append(out, document.Clone(doc))
		}
	}
	if opts == nil {
		return out, nil
	}
	for i := len(opts.Sort) - 1; i >= 0; i-- {
		key := opts.Sort[i]
		desc := strings.HasPrefix(key, "-")
		key = strings.TrimPrefix(key, "-")
		sort.SliceStable(out, func(a, b int) bool {
			less := compareValues(out[a][key], out[b][key]) < 0
			if desc {
				return !less
			}
			return less
		})
	}
	if opts.Skip > 0 {
		if opts.Skip >= int64(len(out)) {
			out = nil
		} else {
			out = out[opts.Skip:]
		}
	}
	if opts.Limit > 0 && int64(len(out)) > opts.Limit {
		out = out[:opts.Limit]
	}
	if len(opts.Fields) > 0 {
		projected := make([]document.Document, len(out))
		for i, doc := range out {
			p := document.Document{document.KeyID: doc[document.KeyID]}
			for _, field := range opts.Fields {
				if v, ok := doc[field]; ok {
					p[field] = v
				}
			}
			projected[i] = p
		}
		out = projected
	}
	return out, nil
}

func (c *memoryCollection) FindOne(_ context.Context, query document.Document) (document.Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, doc := range c.docs {
		if matches(doc, query) {
			return document.Clone(doc), nil
		}
	}
	return nil, ErrNotFound
}

func (c *memoryCollection) Count(_ context.Context, query document.Document) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var n int64
	for _, doc := range c.docs {
		if matches(doc, query) {
			n++
		}
	}
	return n, nil
}

func (c *memoryCollection) Insert(_ context.Context, docs ...document.Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, doc := range docs {
		c.docs = append(c.docs, document.Clone(doc))
	}
	return nil
}

func (c *memoryCollection) Update(_ context.Context, selector, mod document.Document, multi bool) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var matched int64
	for i, doc := range c.docs {
		if !matches(doc, selector) {
			continue
		}
		applyModifier(c.docs[i], mod)
		matched++
		if !multi {
			break
		}
	}
	return matched, nil
}

func (c *memoryCollection) Replace(_ context.Context, selector, doc document.Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.docs {
		if matches(existing, selector) {
			c.docs[i] = document.Clone(doc)
			return nil
		}
	}
	return ErrNotFound
}

func (c *memoryCollection) Remove(_ context.Context, selector document.Document) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var kept []document.Document
	var removed int64
	for _, doc := range c.docs {
		if matches(doc, selector) {
			removed++
			continue
		}
		kept = append(kept, doc)
	}
	c.docs = kept
	return removed, nil
}

// matches evaluates a query document against a stored document.
func matches(doc, query document.Document) bool {
	for key, cond := range query {
		value := getPath(doc, key)
		condition, ok := cond.(map[string]any)
		if !ok {
			if compareValues(value, cond) != 0 {
				return false
			}
			continue
		}
		for op, arg := range condition {
			switch op {
			case "$in":
				list, _ := arg.([]any)
				found := false
				for _, item := range list {
					if compareValues(value, item) == 0 {
						found = true
						break
					}
				}
				if !found {
					return false
				}
			case "$regex":
				pattern, _ := arg.(string)
				s, isString := value.(string)
				re, err := regexp.Compile(pattern)
				if err != nil || !isString || !re.MatchString(s) {
					return false
				}
			default:
				// Unrecognized operator, treat the condition as an
				// equality match on the whole map.
				if compareValues(value, cond) != 0 {
					return false
				}
			}
		}
	}
	return true
}

// applyModifier applies the validated modifier operators in place.
func applyModifier(doc, mod document.Document) {
	for op, targets := range mod {
		fields, ok := targets.(map[string]any)
		if !ok {
			continue
		}
		for path, arg := range fields {
			switch op {
			case "$set":
				setPath(doc, path, arg)
			case "$unset":
				unsetPath(doc, path)
			case "$inc":
				current, _ := toFloat(getPath(doc, path))
				delta, _ := toFloat(arg)
				setPath(doc, path, normalizeNumber(current+delta, getPath(doc, path), arg))
			case "$push":
				list, _ := getPath(doc, path).([]any)
				setPath(doc, path, append(list, arg))
			case "$pushAll":
				list, _ := getPath(doc, path).([]any)
				extra, _ := arg.([]any)
				setPath(doc, path, append(list, extra...))
			case "$addToSet":
				list, _ := getPath(doc, path).([]any)
				present := false
				for _, item := range list {
					if compareValues(item, arg) == 0 {
						present = true
						break
					}
				}
				if !present {
					setPath(doc, path, append(list, arg))
				}
			case "$pop":
				list, _ := getPath(doc, path).([]any)
				if len(list) == 0 {
					continue
				}
				if n, _ := toFloat(arg); n < 0 {
					setPath(doc, path, list[1:])
				} else {
					setPath(doc, path, list[:len(list)-1])
				}
			case "$pull":
				list, _ := getPath(doc, path).([]any)
				var kept []any
				for _, item := range list {
					if compareValues(item, arg) != 0 {
						kept = append(kept, item)
					}
				}
				setPath(doc, path, kept)
			case "$pullAll":
				list, _ := getPath(doc, path).([]any)
				removals, _ := arg.([]any)
				var kept []any
				for _, item := range list {
					drop := false
					for _, r := range removals {
						if compareValues(item, r) == 0 {
							drop = true
							break
						}
					}
					if !drop {
						kept = append(kept, item)
					}
				}
				setPath(doc, path, kept)
			}
		}
	}
}

func getPath(doc document.Document, path string) any {
	parts := strings.Split(path, ".")
	var current any = map[string]any(doc)
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[part]
	}
	return current
}

func setPath(doc document.Document, path string, value any) {
	parts := strings.Split(path, ".")
	current := map[string]any(doc)
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

func unsetPath(doc document.Document, path string) {
	parts := strings.Split(path, ".")
	current := map[string]any(doc)
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			return
		}
		current = next
	}
	delete(current, parts[len(parts)-1])
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}

// normalizeNumber keeps incremented values integral when both the stored
// value and the delta were integers.
func normalizeNumber(result float64, previous, delta any) any {
	if isIntegral(previous) && isIntegral(delta) {
		return int64(result)
	}
	return result
}

func isIntegral(v any) bool {
	switch v.(type) {
	case int, int64, int32, nil:
		return true
	default:
		return false
	}
}

func compareValues(a, b any) int {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs)
	}
	if deepEqual(a, b) {
		return 0
	}
	return -1
}

func deepEqual(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			if !deepEqual(v, bv[k]) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !deepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
