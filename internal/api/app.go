// Package api exposes the admin surface: a bearer-authenticated HTTP API
// over the knowledge base and health log, plus an MCP server for agent
// access to the same operations.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mentorlab/mentorbot/internal/knowledge"
	"github.com/mentorlab/mentorbot/internal/storage"
)

const maxImportBodySize = 10 << 20 // 10MB

// AppDeps holds what the HTTP handlers need.
type AppDeps struct {
	Store *storage.Store
	Cache *knowledge.Cache
	Token string
}

// NewAppHandler assembles the admin router.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(BearerAuth(deps.Token))

	r.Get("/health", handleHealth(deps))
	r.Get("/suggestions", handleListSuggestions(deps))
	r.Post("/import", handleImport(deps))
	r.Get("/errors", handleListErrors(deps))

	return r
}

func handleHealth(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		suggestions, err := deps.Store.CountSuggestions()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "counting suggestions: %v", err)
			return
		}
		pending, err := deps.Store.RetryQueueLength()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reading retry queue: %v", err)
			return
		}
		errs, err := deps.Store.ErrorsSince(time.Now().Add(-24 * time.Hour))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reading error log: %v", err)
			return
		}

		status := "ok"
		if len(errs) > 0 {
			status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":      status,
			"suggestions": suggestions,
			"retry_queue": pending,
			"errors_24h":  len(errs),
		})
	}
}

func handleListSuggestions(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, err := deps.Store.ListSuggestions()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing suggestions: %v", err)
			return
		}
		if recs == nil {
			recs = []storage.Suggestion{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(recs)
	}
}

// ImportItem is one suggestion in an import request. ID is optional.
type ImportItem struct {
	ID      string `json:"id"`
	Keyword string `json:"keyword"`
	Text    string `json:"text"`
	Link    string `json:"link"`
}

// handleImport accepts a JSON array of suggestions, or a PDF whose lines
// are "keyword | text | link". Duplicates (by link) are skipped.
func handleImport(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxImportBodySize)
		defer r.Body.Close()

		body, err := io.ReadAll(r.Body)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading body: %v", err)
			return
		}

		var recs []storage.Suggestion
		if isPDF(r, body) {
			recs, err = suggestionsFromPDF(body)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "parsing pdf: %v", err)
				return
			}
		} else {
			var items []ImportItem
			if err := json.Unmarshal(body, &items); err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
				return
			}
			for _, item := range items {
				if item.Keyword == "" || item.Link == "" {
					httpError(w, http.StatusBadRequest, "invalid_request_error", "keyword and link are required for every item")
					return
				}
				recs = append(recs, storage.Suggestion{
					ID:      item.ID,
					Keyword: item.Keyword,
					Text:    item.Text,
					Link:    item.Link,
				})
			}
		}

		for i := range recs {
			if recs[i].ID == "" {
				recs[i].ID = uuid.New().String()
			}
		}

		added, err := deps.Store.ImportSuggestions(recs)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "importing suggestions: %v", err)
			return
		}
		if err := deps.Cache.Reload(); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reloading cache: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{
			"received": len(recs),
			"added":    added,
		})
	}
}

func handleListErrors(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hours := parseIntParam(r, "hours", 24, 7*24)
		events, err := deps.Store.ErrorsSince(time.Now().Add(-time.Duration(hours) * time.Hour))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reading error log: %v", err)
			return
		}
		if events == nil {
			events = []storage.HealthEvent{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(events)
	}
}

func isPDF(r *http.Request, body []byte) bool {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/pdf") {
		return true
	}
	return bytes.HasPrefix(body, []byte("%PDF"))
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
