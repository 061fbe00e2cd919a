package document

// Visitor receives every node of a document tree. Nodes are one of scalar,
// list, or map; Walk drives the traversal depth-first.
type Visitor interface {
	VisitMap(m map[string]any)
	VisitList(l []any)
	VisitScalar(v any)
}

// Walk traverses value depth-first, calling the visitor for each node.
func Walk(value any, v Visitor) {
	switch val := value.(type) {
	case map[string]any:
		v.VisitMap(val)
		for _, child := range val {
			Walk(child, v)
		}
	case []any:
		v.VisitList(val)
		for _, child := range val {
			Walk(child, v)
		}
	default:
		v.VisitScalar(value)
	}
}

// modelCollector gathers distinct _model tags from nested documents.
type modelCollector struct {
	names map[string]bool
}

func (c *modelCollector) VisitMap(m map[string]any) {
	if name, ok := m[KeyModel].(string); ok {
		c.names[name] = true
	}
}

func (c *modelCollector) VisitList([]any) {}
func (c *modelCollector) VisitScalar(any) {}

// CollectModelNames returns every distinct _model tag reachable from the
// non-reserved fields of doc. The document's own _model tag is excluded; a
// parent model that embeds itself still shows up when a nested value carries
// the tag.
func CollectModelNames(doc Document) map[string]bool {
	c := &modelCollector{names: make(map[string]bool)}
	for key, value := range doc {
		if key == KeyModel {
			continue
		}
		Walk(value, c)
	}
	return c.names
}
