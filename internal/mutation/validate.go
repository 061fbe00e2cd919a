package mutation

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/magdb/mag/internal/document"
	"github.com/magdb/mag/internal/metrics"
	"github.com/magdb/mag/internal/modifier"
	"github.com/magdb/mag/internal/schema"
	"github.com/magdb/mag/internal/store"
)

// ValidateKind selects what a validation-only request checks.
type ValidateKind string

const (
	KindInstance ValidateKind = "instance"
	KindModifier ValidateKind = "modifier"
)

// Validate runs instance or modifier validation without persisting
// anything. The same model and embedded-model resolution as the mutating
// paths applies.
func (e *Engine) Validate(ctx context.Context, resource string, payload document.Document, kind ValidateKind) error {
	cache := make(modelCache)

	switch kind {
	case KindInstance:
		instance := document.Clone(payload)
		popComment(instance)
		delete(instance, document.KeyFileData)
		if document.ModelName(instance) == "" {
			instance[document.KeyModel] = resource
		}
		_, err := e.validateInstance(ctx, cache, resource, instance)
		return err

	case KindModifier:
		mod, err := foldModifier(payload)
		if err != nil {
			return err
		}
		model, err := e.fetchModel(ctx, cache, resource)
		if err != nil {
			return err
		}
		real, _ := modifier.ModelNames(model, mod)
		names := make(map[string]bool, len(real))
		for _, name := range real {
			names[name] = true
		}
		embedded, err := e.fetchEmbedded(ctx, cache, names)
		if err != nil {
			return err
		}
		if err := modifier.Validate(model, mod, embedded, e.handleNone); err != nil {
			metrics.IncValidationFailure(resource, "modifier")
			return err
		}
		return nil

	default:
		return schema.Invalid("unknown validation kind %q", string(kind))
	}
}

var idSuffixRe = regexp.MustCompile(`_(\d+)$`)

// Uniquify returns prefix_N where N is one above the highest numeric _N
// suffix among existing ids starting with the prefix, or prefix_1 when no
// suffixed id exists yet.
func (e *Engine) Uniquify(ctx context.Context, resource, prefix string) (string, error) {
	query := document.Document{
		document.KeyID: document.Document{"$regex": "^" + regexp.QuoteMeta(prefix)},
	}
	existing, err := e.store.Collection(resource).Find(ctx, query, &store.FindOptions{Fields: []string{document.KeyID}})
	if err != nil {
		return "", fmt.Errorf("scan %s ids: %w", resource, err)
	}

	highest := 0
	for _, doc := range existing {
		id := document.ID(doc)
		rest := strings.TrimPrefix(id, prefix)
		match := idSuffixRe.FindStringSubmatch(rest)
		if match == nil || rest != match[0] {
			continue
		}
		if n, err := strconv.Atoi(match[1]); err == nil && n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%s_%d", prefix, highest+1), nil
}
