package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/magdb/mag/internal/auth"
	"github.com/magdb/mag/internal/document"
	"github.com/magdb/mag/internal/mutation"
	"github.com/magdb/mag/internal/store"
)

// jsonValuePrefix marks a query argument whose value is a JSON literal rather
// than a plain string, e.g. ?width=JSON:{"$in":[640,800]}.
const jsonValuePrefix = "JSON:"

func (r *Router) decodeJSON(req *http.Request, dst any) *APIError {
	dec := json.NewDecoder(req.Body)
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return ErrInvalidJSON("request body is empty")
		}
		return ErrInvalidJSON(err.Error())
	}
	return nil
}

// listQuery translates the request's query string into a store query plus
// find options. Underscore-prefixed arguments control the shape of the
// result; everything else is a field constraint.
func listQuery(req *http.Request) (document.Document, *store.FindOptions, bool, *APIError) {
	query := document.Document{}
	opts := &store.FindOptions{}
	countOnly := false

	for key, values := range req.URL.Query() {
		if len(values) == 0 {
			continue
		}
		value := values[0]
		switch key {
		case "_limit":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil || n < 0 {
				return nil, nil, false, ErrBadRequest("_limit must be a non-negative integer")
			}
			opts.Limit = n
		case "_skip":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil || n < 0 {
				return nil, nil, false, ErrBadRequest("_skip must be a non-negative integer")
			}
			opts.Skip = n
		case "_sort":
			for _, field := range strings.Split(value, ",") {
				if field = strings.TrimSpace(field); field != "" {
					opts.Sort = append(opts.Sort, field)
				}
			}
		case "_fields":
			for _, field := range strings.Split(value, ",") {
				if field = strings.TrimSpace(field); field != "" {
					opts.Fields = append(opts.Fields, field)
				}
			}
		case "_count":
			countOnly = value == "" || value == "true" || value == "1"
		default:
			if rest, ok := strings.CutPrefix(value, jsonValuePrefix); ok {
				var decoded any
				if err := json.Unmarshal([]byte(rest), &decoded); err != nil {
					return nil, nil, false, ErrBadRequest("query argument " + key + " is not valid JSON")
				}
				query[key] = decoded
				continue
			}
			query[key] = value
		}
	}
	return query, opts, countOnly, nil
}

func (r *Router) handleList(w http.ResponseWriter, req *http.Request) {
	resource := req.PathValue("resource")
	query, opts, countOnly, apiErr := listQuery(req)
	if apiErr != nil {
		r.writeAPIError(w, apiErr)
		return
	}

	if countOnly {
		count, err := r.engine.CountInstances(req.Context(), resource, query)
		if err != nil {
			r.writeError(w, err)
			return
		}
		r.writeJSON(w, http.StatusOK, map[string]any{"count": count})
		return
	}

	results, err := r.engine.List(req.Context(), resource, query, opts)
	if err != nil {
		r.writeError(w, err)
		return
	}
	if results == nil {
		results = []document.Document{}
	}
	r.writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(results),
		"results": results,
	})
}

func (r *Router) handleCreate(w http.ResponseWriter, req *http.Request) {
	resource := req.PathValue("resource")
	actor := auth.ActorFromContext(req.Context())

	var body any
	if apiErr := r.decodeJSON(req, &body); apiErr != nil {
		r.writeAPIError(w, apiErr)
		return
	}

	switch payload := body.(type) {
	case map[string]any:
		if raw, ok := payload["instances"]; ok {
			instances, apiErr := instanceList(raw)
			if apiErr != nil {
				r.writeAPIError(w, apiErr)
				return
			}
			created, err := r.engine.CreateBatch(req.Context(), resource, instances, actor)
			if err != nil {
				r.writeError(w, err)
				return
			}
			r.writeJSON(w, http.StatusCreated, map[string]any{
				"count":   len(created),
				"results": created,
			})
			return
		}
		created, err := r.engine.Create(req.Context(), resource, document.Document(payload), actor)
		if err != nil {
			r.writeError(w, err)
			return
		}
		r.writeJSON(w, http.StatusCreated, created)
	default:
		r.writeAPIError(w, ErrBadRequest("request body must be a JSON object"))
	}
}

func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) {
	instance, err := r.engine.Get(req.Context(), req.PathValue("resource"), req.PathValue("id"))
	if err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusOK, instance)
}

func (r *Router) handleUpdate(w http.ResponseWriter, req *http.Request) {
	resource := req.PathValue("resource")
	id := req.PathValue("id")
	actor := auth.ActorFromContext(req.Context())

	var payload document.Document
	if apiErr := r.decodeJSON(req, &payload); apiErr != nil {
		r.writeAPIError(w, apiErr)
		return
	}

	updated, err := r.engine.Update(req.Context(), resource, id, payload, actor)
	if err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusOK, updated)
}

// batchUpdateRequest covers both PUT-collection shapes: a list of full
// replacement instances, or a modifier applied to ids / a criteria query.
type batchUpdateRequest struct {
	Instances []map[string]any `json:"instances"`
	Fields    map[string]any   `json:"fields"`
	IDs       []string         `json:"ids"`
	Criteria  map[string]any   `json:"criteria"`
	Comment   string           `json:"_versional_comment"`
}

func (r *Router) handleBatchUpdate(w http.ResponseWriter, req *http.Request) {
	resource := req.PathValue("resource")
	actor := auth.ActorFromContext(req.Context())

	var body batchUpdateRequest
	if apiErr := r.decodeJSON(req, &body); apiErr != nil {
		r.writeAPIError(w, apiErr)
		return
	}

	switch {
	case body.Fields != nil:
		criteria := mutation.Criteria{IDs: body.IDs, Query: body.Criteria}
		updated, err := r.engine.UpdateFields(req.Context(), resource, criteria, body.Fields, actor, body.Comment)
		if err != nil {
			r.writeError(w, err)
			return
		}
		r.writeJSON(w, http.StatusOK, map[string]any{
			"count":   len(updated),
			"results": updated,
		})
	case body.Instances != nil:
		instances := make([]document.Document, len(body.Instances))
		for i, instance := range body.Instances {
			instances[i] = document.Document(instance)
		}
		updated, err := r.engine.UpdateBatch(req.Context(), resource, instances, actor, body.Comment)
		if err != nil {
			r.writeError(w, err)
			return
		}
		r.writeJSON(w, http.StatusOK, map[string]any{
			"count":   len(updated),
			"results": updated,
		})
	default:
		r.writeAPIError(w, ErrBadRequest("request body must carry instances or fields"))
	}
}

func (r *Router) handleDelete(w http.ResponseWriter, req *http.Request) {
	resource := req.PathValue("resource")
	id := req.PathValue("id")
	actor := auth.ActorFromContext(req.Context())

	deleted, err := r.engine.Delete(req.Context(), resource, []string{id}, actor, req.URL.Query().Get("_versional_comment"))
	if err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusOK, map[string]any{"resource": resource, "deleted": deleted})
}

func (r *Router) handleBatchDelete(w http.ResponseWriter, req *http.Request) {
	resource := req.PathValue("resource")
	actor := auth.ActorFromContext(req.Context())

	var body struct {
		IDs     []string `json:"ids"`
		Comment string   `json:"_versional_comment"`
	}
	if apiErr := r.decodeJSON(req, &body); apiErr != nil {
		r.writeAPIError(w, apiErr)
		return
	}
	if len(body.IDs) == 0 {
		r.writeAPIError(w, ErrBadRequest("ids must not be empty"))
		return
	}

	deleted, err := r.engine.Delete(req.Context(), resource, body.IDs, actor, body.Comment)
	if err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusOK, map[string]any{"resource": resource, "deleted": deleted})
}

func (r *Router) handleUniquify(w http.ResponseWriter, req *http.Request) {
	id, err := r.engine.Uniquify(req.Context(), req.PathValue("resource"), req.PathValue("id"))
	if err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusOK, map[string]any{"_id": id})
}

func (r *Router) handleValidate(w http.ResponseWriter, req *http.Request) {
	resource := req.PathValue("resource")

	var body struct {
		Kind    string         `json:"kind"`
		Payload map[string]any `json:"payload"`
	}
	if apiErr := r.decodeJSON(req, &body); apiErr != nil {
		r.writeAPIError(w, apiErr)
		return
	}
	if body.Payload == nil {
		r.writeAPIError(w, ErrBadRequest("payload must be a JSON object"))
		return
	}
	kind := mutation.ValidateKind(body.Kind)
	if body.Kind == "" {
		kind = mutation.KindInstance
	}

	if err := r.engine.Validate(req.Context(), resource, body.Payload, kind); err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func instanceList(raw any) ([]document.Document, *APIError) {
	items, ok := raw.([]any)
	if !ok {
		return nil, ErrBadRequest("instances must be a JSON array")
	}
	instances := make([]document.Document, len(items))
	for i, item := range items {
		instance, ok := item.(map[string]any)
		if !ok {
			return nil, ErrBadRequest("instances must contain JSON objects")
		}
		instances[i] = instance
	}
	return instances, nil
}
