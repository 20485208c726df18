// Package portal is the web front end: a server-rendered club search page
// with the join dialog, backed by one search panel and one join controller
// per browser session.
package portal

import (
	"encoding/json"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"clubportal/internal/clients"
	"clubportal/internal/passcode"
)

// Options configures the portal.
type Options struct {
	PasscodeLength    int
	JoinTimeout       time.Duration
	AttemptsPerMinute int
	CreateClubURL     string

	SessionTTL     time.Duration
	CSRFKey        []byte
	SecureCookies  bool
	TrustedOrigins []string

	RequestsPerSecond float64
	Burst             int
}

func (o *Options) defaults() {
	if o.PasscodeLength == 0 {
		o.PasscodeLength = passcode.DefaultLength
	}
	if o.SessionTTL <= 0 {
		o.SessionTTL = 30 * time.Minute
	}
	if o.RequestsPerSecond <= 0 {
		o.RequestsPerSecond = 20
	}
	if o.Burst <= 0 {
		o.Burst = 40
	}
}

type Server struct {
	opts      Options
	sessions  *SessionStore
	pages     pages
	logger    *slog.Logger
	apiOrigin string
}

func NewServer(client *clients.ClubClient, opts Options, l *slog.Logger) (*Server, error) {
	opts.defaults()
	if err := passcode.ValidateLength(opts.PasscodeLength); err != nil {
		return nil, err
	}
	if l == nil {
		l = slog.Default()
	}
	p, err := parsePages("main.html", "success.html")
	if err != nil {
		return nil, err
	}

	api := remote{client: client}
	srv := &Server{
		opts:      opts,
		pages:     p,
		logger:    l,
		apiOrigin: origin(client.BaseURL()),
	}
	srv.sessions = NewSessionStore(opts.SessionTTL, l, sessionFactory(api, api, opts, l))
	return srv, nil
}

// Sessions exposes the session store.
func (srv *Server) Sessions() *SessionStore { return srv.sessions }

// Handler builds the router with the full middleware stack.
func (srv *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(AccessLog(srv.logger))
	r.Use(SecurityHeaders(srv.apiOrigin))
	r.Use(RateLimit(NewIPLimiter(srv.opts.RequestsPerSecond, srv.opts.Burst), srv.logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	static, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	r.Group(func(r chi.Router) {
		r.Use(CSRF(srv.opts.CSRFKey, srv.opts.SecureCookies, srv.opts.TrustedOrigins))
		r.Use(withCredentials)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/main", http.StatusFound)
		})
		r.Get("/main", srv.handleMain)
		r.Post("/main/search", srv.handleSearch)
		r.Post("/clubs/{id}/select", srv.handleSelect)
		r.Post("/join/close", srv.handleClose)
		r.Post("/join/keys", srv.handleKeys)
		r.Post("/join", srv.handleJoin)
		r.Get("/success", srv.handleSuccess)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// internalError logs the real error and returns a generic message to the client.
func (srv *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	srv.logger.ErrorContext(r.Context(), "internal_error", "path", r.URL.Path, "error", err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func origin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
