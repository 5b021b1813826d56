// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"orion_source/internal/app"
	"orion_source/internal/domain"
)

type Handlers struct{ Q *app.QueryService }

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type nodesPage struct {
	Items []domain.Node `json:"items"`
}

// maxIDs bounds one by-ids lookup.
const maxIDs = 200

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	// node ids are IRIs, so they travel path-escaped: /v1/nodes/%2Frentals%2F1
	s.mux.Get("/v1/nodes/{id}", h.getNode)
	s.mux.Get("/v1/nodes", h.getNodes)
	s.mux.Get("/v1/types/{type}/nodes", h.listByType)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if body == nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "could not encode response")
		return
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

func (h *Handlers) getNode(w http.ResponseWriter, r *http.Request) {
	id, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil || id == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a path-escaped IRI")
		return
	}
	n, err := h.Q.GetNode(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Not Found", "node not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("getNode failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	writeJSON(w, r, n)
}

// getNodes resolves ?ids=a,b,c (or repeated ids=) in request order.
func (h *Handlers) getNodes(w http.ResponseWriter, r *http.Request) {
	var ids []string
	for _, v := range r.URL.Query()["ids"] {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		writeProblem(w, http.StatusBadRequest, "Missing ids", "ids query parameter is required")
		return
	}
	if len(ids) > maxIDs {
		writeProblem(w, http.StatusBadRequest, "Too many ids", "at most "+strconv.Itoa(maxIDs)+" ids per request")
		return
	}
	out, err := h.Q.GetNodes(r.Context(), ids)
	if err != nil {
		log.Error().Err(err).Int("ids", len(ids)).Msg("getNodes failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	writeJSON(w, r, nodesPage{Items: out})
}

func (h *Handlers) listByType(w http.ResponseWriter, r *http.Request) {
	typ := chi.URLParam(r, "type")

	limit := 50
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > 500 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 500")
			return
		}
		limit = l
	}

	out, err := h.Q.ListByType(r.Context(), typ, limit)
	if err != nil {
		log.Error().Err(err).Str("type", typ).Msg("listByType failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if out == nil {
		out = []domain.Node{}
	}
	writeJSON(w, r, nodesPage{Items: out})
}
