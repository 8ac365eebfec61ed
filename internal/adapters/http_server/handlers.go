// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"placeharvest/internal/app"
	"placeharvest/internal/domain"
)

// Handlers serve the mirrored data (cmd/api).
type Handlers struct{ Q *app.QueryService }

// LiveHandlers serve the state of the run in progress (cmd/harvester).
type LiveHandlers struct {
	RunID   string
	Preview *app.Preview
	Health  *app.HealthAggregator
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", healthz)
	s.mux.Get("/v1/places", h.listPlaces)
	s.mux.Get("/v1/health", h.cityHealth)
}

func (s *Server) MountLive(h *LiveHandlers) {
	s.mux.Get("/healthz", healthz)
	live := s.mux.With(NoStore)
	live.Get("/v1/preview", h.preview)
	live.Get("/v1/health", h.health)
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(200)
	_, _ = w.Write([]byte("ok"))
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

// writeTagged writes v as JSON with a weak ETag, answering 304 when the
// client already holds this version.
func writeTagged(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag) // include ETag on 304
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to write body")
	}
}

func parseLimit(r *http.Request, def, max int) (int, bool) {
	ls := r.URL.Query().Get("limit")
	if ls == "" {
		return def, true
	}
	l, err := strconv.Atoi(ls)
	if err != nil || l <= 0 || l > max {
		return 0, false
	}
	return l, true
}

func (h *Handlers) listPlaces(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r, 50, 500)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 500")
		return
	}
	q := domain.PlacesQuery{City: strings.TrimSpace(r.URL.Query().Get("city")), Limit: limit}
	out, err := h.Q.ListPlaces(r.Context(), q)
	if err != nil {
		log.Error().Err(err).Msg("list places failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "places unavailable")
		return
	}
	writeTagged(w, r, out)
}

func (h *Handlers) cityHealth(w http.ResponseWriter, r *http.Request) {
	city := strings.TrimSpace(r.URL.Query().Get("city"))
	if city == "" {
		writeProblem(w, http.StatusBadRequest, "Missing city", "city query parameter is required")
		return
	}
	out, err := h.Q.CityHealth(r.Context(), city)
	if errors.Is(err, domain.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Not Found", "no health report for "+city)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("city", city).Msg("city health failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "health unavailable")
		return
	}
	writeTagged(w, r, out)
}

func (h *LiveHandlers) preview(w http.ResponseWriter, r *http.Request) {
	recs := h.Preview.Snapshot()
	out := domain.PlacesPage{Items: make([]domain.PlaceView, 0, len(recs))}
	for _, rec := range recs {
		out.Items = append(out.Items, rec.View(h.RunID))
	}
	writeTagged(w, r, out)
}

func (h *LiveHandlers) health(w http.ResponseWriter, r *http.Request) {
	sums := h.Health.Summaries()
	if city := strings.TrimSpace(r.URL.Query().Get("city")); city != "" {
		for _, s := range sums {
			if strings.EqualFold(s.City, city) {
				writeTagged(w, r, s)
				return
			}
		}
		writeProblem(w, http.StatusNotFound, "Not Found", "city not harvested in this run")
		return
	}
	writeTagged(w, r, sums)
}
