package server

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"

	executor "github.com/hanpama/graphstitch/internal/executor"
)

const (
	mediaJSON            = "application/json"
	mediaGraphQLResponse = "application/graphql-response+json"
)

// negotiate picks the response media type. Clients that accept
// application/graphql-response+json get it, with a 4xx status for requests
// that failed before execution.
func negotiate(r *http.Request) string {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if mt == mediaGraphQLResponse {
			return mediaGraphQLResponse
		}
	}
	return mediaJSON
}

func (h *Handler) writeResult(w http.ResponseWriter, media string, result *executor.ExecutionResult) int {
	status := http.StatusOK
	if media == mediaGraphQLResponse && result.Data == nil && len(result.Errors) > 0 {
		status = http.StatusBadRequest
	}
	writeJSON(w, media, status, result, h.opt.Pretty)
	return status
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) int {
	result := &executor.ExecutionResult{Errors: []executor.GraphQLError{{Message: err.Error()}}}
	writeJSON(w, mediaJSON, status, result, h.opt.Pretty)
	return status
}

func writeJSON(w http.ResponseWriter, media string, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", media+"; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	wildcard := slices.Contains(opts.AllowedOrigins, "*")
	if !wildcard && !slices.Contains(opts.AllowedOrigins, origin) {
		return
	}
	if wildcard {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	w.Header().Set("Access-Control-Expose-Headers", RequestIDKey)
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	}
}
