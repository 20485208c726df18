package portal

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"clubportal/internal/club"
	"clubportal/internal/join"
	"clubportal/internal/search"
)

const sessionCookieName = "clubportal_session"

// focusState remembers which passcode box should carry autofocus on the
// next render.
type focusState struct {
	mu       sync.Mutex
	position int
}

func (f *focusState) Focus(position int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.position = position
}

func (f *focusState) Position() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

// Session is one browser's search panel and join workflow.
type Session struct {
	ID         string
	Controller *join.Controller
	Modal      join.Modal
	focus      *focusState

	// mu serializes panel access. It is never held across a join call.
	mu       sync.Mutex
	panel    *search.Panel
	handoff  *club.Handoff
	lastSeen time.Time
}

// Search runs a panel search under the session lock.
func (s *Session) Search(ctx context.Context, query string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.panel.Submit(ctx, query)
}

// Find looks up a club among the current results.
func (s *Session) Find(id club.ID) (club.Club, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.panel.Find(id)
}

// PanelView is a consistent read of the search panel.
type PanelView struct {
	State   search.State
	Query   string
	Results []club.Club
	Failed  bool
}

func (s *Session) PanelView() PanelView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return PanelView{
		State:   s.panel.State(),
		Query:   s.panel.Query(),
		Results: s.panel.Results(),
		Failed:  s.panel.Err() != nil,
	}
}

// Handoff returns the confirmation handed over by the last successful join.
func (s *Session) Handoff() (club.Handoff, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handoff == nil {
		return club.Handoff{}, false
	}
	return *s.handoff, true
}

func (s *Session) navigate(h club.Handoff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handoff = &h
}

// SessionStore is an in-memory session store with idle expiry.
type SessionStore struct {
	newSession func(id string) (*Session, error)
	ttl        time.Duration
	logger     *slog.Logger
	now        func() time.Time

	mu        sync.Mutex
	sessions  map[string]*Session
	lastSweep time.Time
}

func NewSessionStore(ttl time.Duration, l *slog.Logger, newSession func(id string) (*Session, error)) *SessionStore {
	return &SessionStore{
		newSession: newSession,
		ttl:        ttl,
		logger:     l,
		now:        time.Now,
		sessions:   make(map[string]*Session),
	}
}

// Get returns the live session with id.
func (ss *SessionStore) Get(id string) (*Session, bool) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	s, ok := ss.sessions[id]
	if !ok {
		return nil, false
	}
	now := ss.now()
	if now.Sub(s.lastSeen) > ss.ttl {
		delete(ss.sessions, id)
		return nil, false
	}
	s.lastSeen = now
	return s, true
}

// Create starts a new session with a random id.
func (ss *SessionStore) Create() (*Session, error) {
	id := uuid.NewString()
	s, err := ss.newSession(id)
	if err != nil {
		return nil, err
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()
	now := ss.now()
	s.lastSeen = now
	ss.sessions[id] = s
	if now.Sub(ss.lastSweep) > ss.ttl {
		ss.sweep(now)
	}
	return s, nil
}

// Len returns the number of stored sessions.
func (ss *SessionStore) Len() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.sessions)
}

func (ss *SessionStore) sweep(now time.Time) {
	removed := 0
	for id, s := range ss.sessions {
		if now.Sub(s.lastSeen) > ss.ttl {
			delete(ss.sessions, id)
			removed++
		}
	}
	ss.lastSweep = now
	if removed > 0 {
		ss.logger.Debug("expired portal sessions removed", "count", removed)
	}
}

// sessionFactory wires a fresh panel and controller for one browser.
func sessionFactory(searcher search.Searcher, joiner join.Joiner, opts Options, l *slog.Logger) func(string) (*Session, error) {
	return func(id string) (*Session, error) {
		s := &Session{ID: id, focus: &focusState{}}
		s.panel = search.NewPanel(searcher, l.With("session", id))

		var limiter *rate.Limiter
		if opts.AttemptsPerMinute > 0 {
			limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.AttemptsPerMinute)), opts.AttemptsPerMinute)
		}
		c, err := join.NewController(joiner, join.NavigatorFunc(s.navigate), join.Config{
			PasscodeLength: opts.PasscodeLength,
			Timeout:        opts.JoinTimeout,
			Limiter:        limiter,
			Focuser:        s.focus,
			Logger:         l.With("session", id),
		})
		if err != nil {
			return nil, err
		}
		s.Controller = c
		s.Modal = join.NewModal(c)
		return s, nil
	}
}

// session loads the caller's session or starts one and sets its cookie.
func (srv *Server) session(w http.ResponseWriter, r *http.Request) (*Session, error) {
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		if s, ok := srv.sessions.Get(c.Value); ok {
			return s, nil
		}
	}
	s, err := srv.sessions.Create()
	if err != nil {
		return nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    s.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   srv.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(srv.opts.SessionTTL.Seconds()),
	})
	return s, nil
}
