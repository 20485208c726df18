package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"

	"clubportal/internal/club"
	"clubportal/internal/join"
	"clubportal/internal/search"
)

type boxView struct {
	Index     int
	Value     string
	Autofocus bool
}

type modalView struct {
	Club       club.Club
	Boxes      []boxView
	CanSubmit  bool
	Submitting bool
	Message    string
}

type mainData struct {
	CSRFField     template.HTML
	Panel         PanelView
	NotSearched   bool
	NoResults     bool
	CreateClubURL string
	Modal         *modalView
}

type successData struct {
	Handoff club.Handoff
	Error   string
}

func (srv *Server) handleMain(w http.ResponseWriter, r *http.Request) {
	sess, err := srv.session(w, r)
	if err != nil {
		srv.internalError(w, r, err)
		return
	}

	panel := sess.PanelView()
	data := mainData{
		CSRFField:     csrf.TemplateField(r),
		Panel:         panel,
		NotSearched:   panel.State == search.NotYetSearched,
		NoResults:     panel.State == search.SearchedNoResults,
		CreateClubURL: srv.opts.CreateClubURL,
	}

	v := sess.Controller.Snapshot()
	if v.Visible {
		focus := sess.focus.Position()
		m := &modalView{
			Club:       v.Club,
			CanSubmit:  v.CanSubmit,
			Submitting: v.State == join.Submitting,
			Message:    v.Message,
		}
		for i, b := range v.Boxes {
			m.Boxes = append(m.Boxes, boxView{Index: i, Value: b, Autofocus: i == focus})
		}
		data.Modal = m
	}

	if err := srv.pages.render(w, http.StatusOK, "main.html", data); err != nil {
		srv.internalError(w, r, err)
	}
}

// handleSearch runs the search and redirects back to the page (post/redirect/get).
func (srv *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	sess, err := srv.session(w, r)
	if err != nil {
		srv.internalError(w, r, err)
		return
	}
	sess.Search(r.Context(), r.FormValue("q"))
	http.Redirect(w, r, "/main", http.StatusSeeOther)
}

func (srv *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	sess, err := srv.session(w, r)
	if err != nil {
		srv.internalError(w, r, err)
		return
	}

	c, ok := sess.Find(club.ID(chi.URLParam(r, "id")))
	if !ok {
		http.Error(w, "club is not in the current results", http.StatusNotFound)
		return
	}
	if err := sess.Controller.Select(c); err != nil {
		switch {
		case errors.Is(err, join.ErrSubmitInFlight):
			http.Error(w, "a join request is in progress", http.StatusConflict)
		case errors.Is(err, join.ErrInvalidClub):
			http.Error(w, "club cannot be joined", http.StatusUnprocessableEntity)
		default:
			srv.internalError(w, r, err)
		}
		return
	}
	http.Redirect(w, r, "/main", http.StatusSeeOther)
}

func (srv *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	sess, err := srv.session(w, r)
	if err != nil {
		srv.internalError(w, r, err)
		return
	}
	sess.Modal.Close()
	http.Redirect(w, r, "/main", http.StatusSeeOther)
}

type keyRequest struct {
	Position int     `json:"position"`
	Value    *string `json:"value,omitempty"`
	Key      string  `json:"key,omitempty"`
	Paste    *string `json:"paste,omitempty"`
}

type keyResponse struct {
	Accepted  bool     `json:"accepted"`
	Boxes     []string `json:"boxes"`
	Focus     int      `json:"focus"`
	CanSubmit bool     `json:"can_submit"`
	State     string   `json:"state"`
	Message   string   `json:"message,omitempty"`
}

// handleKeys applies one keystroke from the passcode boxes.
func (srv *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	sess, err := srv.session(w, r)
	if err != nil {
		srv.internalError(w, r, err)
		return
	}

	var req keyRequest
	r.Body = http.MaxBytesReader(w, r.Body, 4<<10)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if !sess.Modal.Visible() {
		writeJSON(w, http.StatusConflict, srv.keyState(sess, false))
		return
	}

	var accepted bool
	switch {
	case req.Key == "Backspace":
		before := sess.Controller.Snapshot().Boxes
		sess.Controller.Backspace(req.Position)
		accepted = !slices.Equal(before, sess.Controller.Snapshot().Boxes)
	case req.Paste != nil:
		accepted = sess.Controller.Paste(req.Position, *req.Paste)
	case req.Value != nil:
		accepted = sess.Controller.Type(req.Position, *req.Value)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "one of value, key or paste is required"})
		return
	}

	writeJSON(w, http.StatusOK, srv.keyState(sess, accepted))
}

func (srv *Server) keyState(sess *Session, accepted bool) keyResponse {
	v := sess.Controller.Snapshot()
	return keyResponse{
		Accepted:  accepted,
		Boxes:     v.Boxes,
		Focus:     sess.focus.Position(),
		CanSubmit: v.CanSubmit,
		State:     v.State.String(),
		Message:   v.Message,
	}
}

// handleJoin loads the submitted boxes into the entry and submits it. The
// join keeps running if the browser goes away; the stale-response guard
// handles a close that lands meanwhile.
func (srv *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	sess, err := srv.session(w, r)
	if err != nil {
		srv.internalError(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	current := sess.Controller.Snapshot().Boxes
	for i := range current {
		key := fmt.Sprintf("box%d", i)
		if _, ok := r.PostForm[key]; !ok {
			continue
		}
		if value := r.PostForm.Get(key); value != current[i] {
			sess.Controller.Type(i, value)
		}
	}

	ctx := context.WithoutCancel(r.Context())
	if err := sess.Modal.Submit(ctx); err != nil {
		srv.logger.InfoContext(ctx, "join not completed", "session", sess.ID, "error", err)
		http.Redirect(w, r, "/main", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/success", http.StatusSeeOther)
}

func (srv *Server) handleSuccess(w http.ResponseWriter, r *http.Request) {
	sess, err := srv.session(w, r)
	if err != nil {
		srv.internalError(w, r, err)
		return
	}

	h, ok := sess.Handoff()
	if !ok {
		http.Redirect(w, r, "/main", http.StatusSeeOther)
		return
	}

	status := http.StatusOK
	data := successData{Handoff: h}
	if err := h.Validate(); err != nil {
		status = http.StatusUnprocessableEntity
		data.Error = "We could not tell which club you joined."
	}
	if err := srv.pages.render(w, status, "success.html", data); err != nil {
		srv.internalError(w, r, err)
	}
}
