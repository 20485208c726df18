// internal/fakeapi/handler.go
package fakeapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"clubportal/internal/club"
)

type Handler struct {
	service Service
	logger  *slog.Logger
}

func NewHandler(service Service, l *slog.Logger) *Handler {
	if l == nil {
		l = slog.Default()
	}
	return &Handler{service: service, logger: l}
}

// Router mounts the club API routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/clubs", func(r chi.Router) {
		r.Get("/", h.handleSearch)
		r.Post("/join", h.handleJoin)
		r.Get("/{id}/events", h.handleEvents)
	})
	r.Get("/static/clubs/{file}", h.handleImage)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDetail mirrors the remote API error envelope.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	clubs, err := h.service.Search(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "search failed", "error", err)
		writeDetail(w, http.StatusInternalServerError, "failed to search clubs")
		return
	}
	writeJSON(w, http.StatusOK, clubs)
}

func (h *Handler) handleJoin(w http.ResponseWriter, r *http.Request) {
	member, ok := bearerToken(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req club.JoinRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	joined, err := h.service.Join(r.Context(), member, req.ClubName, req.Passcode)
	if err != nil {
		switch {
		case errors.Is(err, ErrClubNotFound):
			writeDetail(w, http.StatusNotFound, "Club not found")
		case errors.Is(err, ErrIncorrectPasscode):
			writeDetail(w, http.StatusBadRequest, "Incorrect passcode")
		case errors.Is(err, ErrAlreadyMember):
			writeDetail(w, http.StatusConflict, "You are already a member of this club")
		default:
			h.logger.ErrorContext(r.Context(), "join failed", "club_name", req.ClubName, "error", err)
			writeDetail(w, http.StatusInternalServerError, "failed to join club")
		}
		return
	}

	h.logger.InfoContext(r.Context(), "member joined club", "club_id", joined.ID, "club_name", joined.Name)
	writeJSON(w, http.StatusOK, joined)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.Events(r.Context(), club.ID(chi.URLParam(r, "id")))
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Club not found")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// handleImage renders a placeholder badge with the club's initial.
func (h *Handler) handleImage(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	id, ok := strings.CutSuffix(file, ".svg")
	if !ok {
		http.NotFound(w, r)
		return
	}
	events, err := h.service.Events(r.Context(), club.ID(id))
	if err != nil || len(events) == 0 {
		http.NotFound(w, r)
		return
	}
	var created club.Club
	if err := json.Unmarshal(events[0].Data, &created); err != nil {
		http.NotFound(w, r)
		return
	}

	initial, _ := utf8.DecodeRuneInString(created.Name)
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	fmt.Fprintf(w, `<svg xmlns="http://www.w3.org/2000/svg" width="96" height="96" viewBox="0 0 96 96">`+
		`<rect width="96" height="96" rx="16" fill="#3b5bdb"/>`+
		`<text x="48" y="62" font-size="44" font-family="sans-serif" text-anchor="middle" fill="#fff">%s</text></svg>`,
		html.EscapeString(string(unicode.ToUpper(initial))))
}

func bearerToken(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}
