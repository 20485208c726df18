package portal

import (
	"context"
	"net/http"
	"strings"

	"clubportal/internal/club"
	"clubportal/internal/clients"
)

type contextKey string

const credentialsKey contextKey = "credentials"

// accessTokenCookie is set by the sign-in flow, which lives outside the portal.
const accessTokenCookie = "access_token"

// withCredentials lifts the caller's API token into the request context so
// each remote call carries the credentials of the request that caused it.
func withCredentials(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var creds clients.Credentials
		if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
			creds.Token = strings.TrimSpace(token)
		} else if c, err := r.Cookie(accessTokenCookie); err == nil {
			creds.Token = c.Value
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), credentialsKey, creds)))
	})
}

func credentialsFrom(ctx context.Context) clients.Credentials {
	creds, _ := ctx.Value(credentialsKey).(clients.Credentials)
	return creds
}

// remote binds the shared API client to the credentials of the current
// request. It satisfies both search.Searcher and join.Joiner.
type remote struct {
	client *clients.ClubClient
}

func (r remote) Search(ctx context.Context, query string) ([]club.Club, error) {
	return r.client.Session(credentialsFrom(ctx)).Search(ctx, query)
}

func (r remote) Join(ctx context.Context, req club.JoinRequest) error {
	return r.client.Session(credentialsFrom(ctx)).Join(ctx, req)
}
