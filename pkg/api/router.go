// Package api exposes the mutation engine over HTTP: resource CRUD,
// validation-only checks, and the operational endpoints.
package api

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magdb/mag/internal/auth"
	"github.com/magdb/mag/internal/config"
	"github.com/magdb/mag/internal/logging"
	"github.com/magdb/mag/internal/metrics"
	"github.com/magdb/mag/internal/mutation"
)

var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		return gzip.NewWriter(nil)
	},
}

type gzipResponseWriter struct {
	http.ResponseWriter
	gz *gzip.Writer
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	return w.gz.Write(b)
}

// loggingResponseWriter captures status code for logging.
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *loggingResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

type Router struct {
	cfg    *config.Config
	mux    *http.ServeMux
	engine *mutation.Engine
	authn  auth.Authenticator
	logger *logging.Logger
}

// NewRouter wires the HTTP surface over an engine. A nil authenticator
// accepts every request with a token-derived actor.
func NewRouter(cfg *config.Config, engine *mutation.Engine, authn auth.Authenticator, logger *logging.Logger) *Router {
	if logger == nil {
		logger = logging.New()
	}
	if authn == nil {
		authn = auth.AllowAll{}
	}
	r := &Router{
		cfg:    cfg,
		mux:    http.NewServeMux(),
		engine: engine,
		authn:  authn,
		logger: logger,
	}

	r.mux.HandleFunc("GET /health", r.handleHealth)
	r.mux.Handle("GET /metrics", promhttp.Handler())

	r.mux.HandleFunc("GET /v1/resources/{resource}", r.authMiddleware(r.handleList))
	r.mux.HandleFunc("POST /v1/resources/{resource}", r.authMiddleware(r.handleCreate))
	r.mux.HandleFunc("PUT /v1/resources/{resource}", r.authMiddleware(r.handleBatchUpdate))
	r.mux.HandleFunc("DELETE /v1/resources/{resource}", r.authMiddleware(r.handleBatchDelete))

	r.mux.HandleFunc("GET /v1/resources/{resource}/{id}", r.authMiddleware(r.handleGet))
	r.mux.HandleFunc("PUT /v1/resources/{resource}/{id}", r.authMiddleware(r.handleUpdate))
	r.mux.HandleFunc("DELETE /v1/resources/{resource}/{id}", r.authMiddleware(r.handleDelete))
	r.mux.HandleFunc("GET /v1/resources/{resource}/{id}/uniquify", r.authMiddleware(r.handleUniquify))

	r.mux.HandleFunc("POST /v1/validate/{resource}", r.authMiddleware(r.handleValidate))

	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()

	// Generate or extract request ID
	requestID := req.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.New().String()
	}
	w.Header().Set("X-Request-ID", requestID)

	ctx := req.Context()
	ctx = logging.ContextWithRequestID(ctx, requestID)
	ctx = logging.ContextWithRequestTime(ctx, start)
	ctx = logging.ContextWithEndpoint(ctx, req.Method+" "+req.URL.Path)
	req = req.WithContext(ctx)

	lw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

	if req.ContentLength > MaxRequestBodySize {
		r.writeAPIError(lw, ErrPayloadTooLarge("request body exceeds 64MB limit"))
		r.logRequest(req, lw.statusCode, start)
		return
	}

	req.Body = http.MaxBytesReader(lw, req.Body, MaxRequestBodySize)
	req.Body = r.decompressBody(req)

	if strings.Contains(req.Header.Get("Accept-Encoding"), "gzip") {
		gz := gzipWriterPool.Get().(*gzip.Writer)
		gz.Reset(lw)
		defer func() {
			gz.Close()
			gzipWriterPool.Put(gz)
		}()

		lw.Header().Set("Content-Encoding", "gzip")
		lw.Header().Del("Content-Length")
		r.mux.ServeHTTP(&gzipResponseWriter{ResponseWriter: lw, gz: gz}, req)
		r.logRequest(req, lw.statusCode, start)
		return
	}

	r.mux.ServeHTTP(lw, req)
	r.logRequest(req, lw.statusCode, start)
}

// logRequest logs the completed request with structured JSON logging.
func (r *Router) logRequest(req *http.Request, status int, start time.Time) {
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0

	endpoint := req.Method + " " + req.URL.Path
	metrics.RequestDuration.WithLabelValues(req.URL.Path, req.Method).Observe(time.Since(start).Seconds())
	metrics.RequestsTotal.WithLabelValues(req.URL.Path, req.Method, http.StatusText(status)).Inc()

	info := &logging.RequestInfo{
		RequestID:     logging.RequestIDFromContext(req.Context()),
		Resource:      req.PathValue("resource"),
		Endpoint:      endpoint,
		ServerTotalMs: elapsed,
	}

	r.logger.WithRequestInfo(info).Info("request completed",
		"status", status,
		"method", req.Method,
		"path", req.URL.Path,
	)
}

func (r *Router) decompressBody(req *http.Request) io.ReadCloser {
	switch req.Header.Get("Content-Encoding") {
	case "gzip":
		gz, err := gzip.NewReader(req.Body)
		if err != nil {
			return req.Body
		}
		return gz
	case "zstd":
		zr, err := zstd.NewReader(req.Body)
		if err != nil {
			return req.Body
		}
		return zr.IOReadCloser()
	}
	return req.Body
}

// authMiddleware gates a handler behind the configured token and resolves
// the acting user into the request context.
func (r *Router) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		token := auth.BearerToken(req.Header.Get("Authorization"))

		// The shared service token admits a request without a configured
		// identity; such mutations are attributed to the unknown actor.
		actor, resolved := r.authn.Authenticate(token)
		if !resolved {
			if r.cfg.AuthToken == "" || token != r.cfg.AuthToken {
				r.writeAPIError(w, ErrUnauthorized("missing or invalid bearer token"))
				return
			}
			actor = auth.Unknown
		}
		next(w, req.WithContext(auth.ContextWithActor(req.Context(), actor)))
	}
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	r.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (r *Router) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func (r *Router) writeAPIError(w http.ResponseWriter, err *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	json.NewEncoder(w).Encode(map[string]any{
		"status": "error",
		"kind":   err.Kind,
		"error":  err.Message,
	})
}

func (r *Router) writeError(w http.ResponseWriter, err error) {
	r.writeAPIError(w, mapError(err))
}
