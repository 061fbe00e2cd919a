package mutation

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/magdb/mag/internal/document"
	"github.com/magdb/mag/internal/filestore"
	"github.com/magdb/mag/internal/schema"
)

// attachment is a decoded file payload waiting to be written after the
// owning instance has been persisted.
type attachment struct {
	key         string
	contentType string
	data        []byte
}

// extractAttachments decodes the _file_data block of an instance, rewrites
// each file-bearing field to its storage path, and returns the pending
// writes. The _file_data key is removed from the instance either way.
func extractAttachments(model *schema.Model, instance document.Document, resource string) ([]attachment, error) {
	raw, ok := instance[document.KeyFileData]
	delete(instance, document.KeyFileData)
	if !ok {
		return nil, nil
	}

	payloads, ok := raw.(map[string]any)
	if !ok {
		return nil, schema.Invalid("_file_data must be an object of field names to data URIs")
	}

	declared := make(map[string]bool, len(model.FileFields))
	for _, field := range model.FileFields {
		declared[field] = true
	}

	id := document.ID(instance)
	var pending []attachment
	for field, value := range payloads {
		if !declared[field] {
			return nil, schema.Invalid("field %q is not a declared file field", field)
		}
		uri, ok := value.(string)
		if !ok {
			return nil, schema.Invalid("file data for %q must be a data URI string", field)
		}
		contentType, data, err := decodeDataURI(uri)
		if err != nil {
			return nil, schema.Invalid("file data for %q: %s", field, err)
		}
		key := filestore.AttachmentKey(resource, id, field)
		instance[field] = key
		pending = append(pending, attachment{key: key, contentType: contentType, data: data})
	}
	return pending, nil
}

// decodeDataURI parses a "data:<mime>;base64,<payload>" value.
func decodeDataURI(uri string) (contentType string, data []byte, err error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, schema.Invalid("not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return "", nil, schema.Invalid("expected base64 data URI")
	}
	contentType = strings.TrimSuffix(meta, ";base64")
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, schema.Invalid("bad base64 payload")
	}
	return contentType, data, nil
}

// writeAttachments persists decoded file payloads. Attachment writes happen
// after the instance write; a failure is logged and does not fail the
// mutation that already committed.
func (e *Engine) writeAttachments(ctx context.Context, pending []attachment) {
	for _, a := range pending {
		if err := e.files.Write(ctx, a.key, a.data, a.contentType); err != nil {
			e.logger.WithContext(ctx).Error("attachment write failed",
				"key", a.key, "error", err.Error())
		}
	}
}

// deleteAttachments removes every declared file field's attachment for the
// given instances, best-effort.
func (e *Engine) deleteAttachments(ctx context.Context, model *schema.Model, resource string, instances []document.Document) {
	if len(model.FileFields) == 0 {
		return
	}
	for _, instance := range instances {
		id := document.ID(instance)
		if err := filestore.DeleteDocument(ctx, e.files, resource, id, model.FileFields); err != nil {
			e.logger.WithContext(ctx).Error("attachment cleanup failed",
				"resource", resource, "id", id, "error", err.Error())
		}
	}
}
