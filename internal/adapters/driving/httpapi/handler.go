// Package httpapi serves mailbox usage over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/custodia-labs/mailbox-usage/internal/core/domain"
	"github.com/custodia-labs/mailbox-usage/internal/core/ports/driving"
	"github.com/custodia-labs/mailbox-usage/internal/logger"
)

// Route paths.
const (
	MailFoldersPath = "/api/mailfolders"
	HealthPath      = "/healthz"
)

// RequestIDHeader carries the id assigned to each request.
const RequestIDHeader = "X-Request-Id"

const missingBearerMessage = "Missing Authorization Bearer token"

// Handler serves the mailbox usage API.
type Handler struct {
	usage     driving.UsageService
	origins   map[string]struct{}
	anyOrigin bool

	// onDone, when set, receives each finished request's tracker.
	onDone func(*requestTracker)
}

// NewHandler creates a Handler. allowedOrigins lists the browser origins that
// get CORS headers; "*" allows any origin.
func NewHandler(usage driving.UsageService, allowedOrigins []string) *Handler {
	h := &Handler{
		usage:   usage,
		origins: make(map[string]struct{}, len(allowedOrigins)),
	}
	for _, o := range allowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			h.anyOrigin = true
			continue
		}
		if o != "" {
			h.origins[o] = struct{}{}
		}
	}
	return h
}

// Routes returns the HTTP handler with every route registered.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+MailFoldersPath, h.handleMailFolders)
	mux.HandleFunc("POST "+MailFoldersPath, h.handleMailFolders)
	mux.HandleFunc("OPTIONS "+MailFoldersPath, h.handlePreflight)
	mux.HandleFunc("GET "+HealthPath, h.handleHealth)
	return mux
}

func (h *Handler) handleMailFolders(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	w.Header().Set(RequestIDHeader, id)
	h.setCORSHeaders(w, r)

	tracker := newRequestTracker(id)
	if h.onDone != nil {
		defer h.onDone(tracker)
	}

	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		tracker.fail(http.StatusUnauthorized, "no bearer token")
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: missingBearerMessage})
		return
	}

	// The computation outlives a disconnected client.
	ctx := context.WithoutCancel(r.Context())
	start := time.Now()

	usage, err := h.usage.Compute(ctx, token, tracker.transition)
	if err != nil {
		status := domain.StatusOf(err)
		tracker.fail(status, err.Error())
		writeJSON(w, status, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, NewUsageResponse(usage))
	tracker.transition(domain.StateResponded)
	logger.Info("http: request %s: %d folders, %d bytes in %s",
		id, len(usage.Folders), usage.TotalBytes, time.Since(start).Round(time.Millisecond))
}

func (h *Handler) handlePreflight(w http.ResponseWriter, r *http.Request) {
	if h.setCORSHeaders(w, r) {
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		w.Header().Set("Access-Control-Max-Age", "600")
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// setCORSHeaders echoes an allowed Origin and reports whether it did.
func (h *Handler) setCORSHeaders(w http.ResponseWriter, r *http.Request) bool {
	w.Header().Add("Vary", "Origin")

	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}
	if _, ok := h.origins[origin]; !ok && !h.anyOrigin {
		logger.Debug("http: origin %s not allowed", origin)
		return false
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	return true
}

// bearerToken extracts the token from an Authorization header value.
func bearerToken(header string) (string, bool) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("http: write response: %v", err)
	}
}
