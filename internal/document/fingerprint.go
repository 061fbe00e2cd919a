package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint hashes a canonical rendering of doc with the given keys
// excluded. Two documents with equal content (ignoring map iteration order)
// produce the same fingerprint, which is how no-op updates are detected
// without a field-by-field diff.
func Fingerprint(doc Document, exclude ...string) uint64 {
	h := xxhash.New()
	writeDocument(h, doc, exclude)
	return h.Sum64()
}

func writeDocument(w io.Writer, doc Document, exclude []string) {
	skip := make(map[string]bool, len(exclude))
	for _, k := range exclude {
		skip[k] = true
	}

	keys := make([]string, 0, len(doc))
	for k := range doc {
		if !skip[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		io.WriteString(w, k)
		io.WriteString(w, "\x00")
		writeCanonical(w, doc[k])
		io.WriteString(w, "\x1e")
	}
}

func writeCanonical(w io.Writer, v any) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		io.WriteString(w, "{")
		for _, k := range keys {
			io.WriteString(w, k)
			io.WriteString(w, "\x00")
			writeCanonical(w, val[k])
			io.WriteString(w, "\x1e")
		}
		io.WriteString(w, "}")
	case []any:
		io.WriteString(w, "[")
		for _, item := range val {
			writeCanonical(w, item)
			io.WriteString(w, "\x1e")
		}
		io.WriteString(w, "]")
	case time.Time:
		io.WriteString(w, val.UTC().Format(time.RFC3339Nano))
	case nil:
		io.WriteString(w, "null")
	default:
		// Scalars render through encoding/json so 1 and 1.0 collapse the
		// same way they would on the wire.
		if b, err := json.Marshal(val); err == nil {
			w.Write(b)
		} else {
			fmt.Fprintf(w, "%v", val)
		}
	}
}

// Equal reports whether two documents carry the same content once the
// excluded keys are ignored. It compares the full canonical renderings,
// not their hashes, so a fingerprint collision cannot alias two distinct
// documents.
func Equal(a, b Document, exclude ...string) bool {
	var ca, cb bytes.Buffer
	writeDocument(&ca, a, exclude)
	writeDocument(&cb, b, exclude)
	return bytes.Equal(ca.Bytes(), cb.Bytes())
}
