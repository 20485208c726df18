package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubportal/internal/club"
	"clubportal/internal/clients"
	"clubportal/internal/fakeapi"
	"clubportal/internal/faultinject"
	"clubportal/internal/join"
	"clubportal/internal/logger"
)

// syncBuffer lets the test read logs written from handler goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type harness struct {
	portal *httptest.Server
	api    *httptest.Server
	faults *faultinject.Transport
	server *Server
	client *http.Client
	logs   *syncBuffer
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()

	svc := fakeapi.NewService(nil)
	require.NoError(t, fakeapi.DefaultSeed().Apply(context.Background(), svc))
	api := httptest.NewServer(fakeapi.NewHandler(svc, logger.Discard()).Router())
	t.Cleanup(api.Close)

	logs := &syncBuffer{}
	l := slog.New(slog.NewTextHandler(logs, nil))
	faults := faultinject.NewTransport(api.Client().Transport, l)
	cc := clients.NewClubClient(api.URL, clients.WithHTTPClient(&http.Client{Transport: faults}), clients.WithLogger(l))

	if opts.CreateClubURL == "" {
		opts.CreateClubURL = "https://clubs.example.com/create"
	}
	srv, err := NewServer(cc, opts, l)
	require.NoError(t, err)
	portal := httptest.NewServer(srv.Handler())
	t.Cleanup(portal.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	u, _ := url.Parse(portal.URL)
	jar.SetCookies(u, []*http.Cookie{{Name: accessTokenCookie, Value: "alice"}})

	return &harness{
		portal: portal,
		api:    api,
		faults: faults,
		server: srv,
		client: &http.Client{Jar: jar},
		logs:   logs,
	}
}

func (h *harness) get(t *testing.T, path string) (int, string) {
	t.Helper()
	resp, err := h.client.Get(h.portal.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func (h *harness) postForm(t *testing.T, path string, form url.Values) (int, string, string) {
	t.Helper()
	resp, err := h.client.PostForm(h.portal.URL+path, form)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, resp.Request.URL.Path, string(body)
}

func (h *harness) key(t *testing.T, req map[string]any) (int, keyResponse) {
	t.Helper()
	body, _ := json.Marshal(req)
	resp, err := h.client.Post(h.portal.URL+"/join/keys", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out keyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func boxesForm(code string) url.Values {
	form := url.Values{}
	for i, r := range code {
		form.Set("box"+string(rune('0'+i)), string(r))
	}
	return form
}

func TestJoinFlow(t *testing.T) {
	h := newHarness(t, Options{})

	status, body := h.get(t, "/")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `data-state="not_yet_searched"`)
	assert.Contains(t, body, "https://clubs.example.com/create")

	_, path, body := h.postForm(t, "/main/search", url.Values{"q": {"chess"}})
	assert.Equal(t, "/main", path)
	assert.Contains(t, body, `data-state="searched_with_results"`)
	assert.Contains(t, body, "Chess Club")
	assert.Contains(t, body, "<strong>rapid</strong>", "description rendered as markdown")
	assert.Contains(t, body, h.api.URL+"/static/clubs/1.svg")

	_, _, body = h.postForm(t, "/clubs/1/select", nil)
	assert.Contains(t, body, "Join Chess Club")
	assert.Equal(t, 6, strings.Count(body, `class="box"`))
	assert.Contains(t, body, `id="join-submit" disabled`)

	status, ks := h.key(t, map[string]any{"position": 0, "value": "1"})
	require.Equal(t, http.StatusOK, status)
	assert.True(t, ks.Accepted)
	assert.Equal(t, 1, ks.Focus)
	assert.Equal(t, []string{"1", "", "", "", "", ""}, ks.Boxes)

	_, ks = h.key(t, map[string]any{"position": 1, "value": "a"})
	assert.False(t, ks.Accepted)
	assert.Equal(t, 1, ks.Focus)

	_, ks = h.key(t, map[string]any{"position": 1, "key": "Backspace"})
	assert.Equal(t, 0, ks.Focus, "backspace on empty box moves focus back")

	_, ks = h.key(t, map[string]any{"position": 0, "paste": "000000"})
	assert.True(t, ks.Accepted)
	assert.True(t, ks.CanSubmit)
	assert.Equal(t, "modal_open", ks.State)

	_, path, body = h.postForm(t, "/join", boxesForm("000000"))
	assert.Equal(t, "/main", path)
	assert.Contains(t, body, "Incorrect passcode")
	assert.Contains(t, body, `name="box5" value="0"`, "passcode kept after failure")

	_, path, body = h.postForm(t, "/join", boxesForm("123456"))
	assert.Equal(t, "/success", path)
	assert.Contains(t, body, "You joined Chess Club")

	status, body = h.get(t, "/main")
	assert.Equal(t, http.StatusOK, status)
	assert.NotContains(t, body, "join-overlay", "modal closed after success")

	resp, err := http.Get(h.api.URL + "/clubs/1/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	var events []fakeapi.Event
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&events))
	require.Len(t, events, 3)
	assert.Equal(t, fakeapi.EventMemberJoined, events[2].Type)
}

func TestCloseResetsModal(t *testing.T) {
	h := newHarness(t, Options{PasscodeLength: 4})
	h.postForm(t, "/main/search", url.Values{"q": {"trail"}})
	_, _, body := h.postForm(t, "/clubs/2/select", nil)
	assert.Equal(t, 4, strings.Count(body, `class="box"`))

	h.key(t, map[string]any{"position": 0, "value": "9"})
	_, path, body := h.postForm(t, "/join/close", nil)
	assert.Equal(t, "/main", path)
	assert.NotContains(t, body, "join-overlay")

	status, ks := h.key(t, map[string]any{"position": 0, "value": "1"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "idle", ks.State)
	assert.Equal(t, []string{"", "", "", ""}, ks.Boxes)
}

func TestBlankSearchIsIgnored(t *testing.T) {
	h := newHarness(t, Options{})
	_, _, body := h.postForm(t, "/main/search", url.Values{"q": {"   "}})
	assert.Contains(t, body, `data-state="not_yet_searched"`)
}

func TestNoResultsShowsCreatePrompt(t *testing.T) {
	h := newHarness(t, Options{})
	_, _, body := h.postForm(t, "/main/search", url.Values{"q": {"xyz-nonexistent"}})
	assert.Contains(t, body, `data-state="searched_no_results"`)
	assert.Contains(t, body, "Create a new club")
}

func TestSearchFailureRendersAsNoResults(t *testing.T) {
	h := newHarness(t, Options{})
	require.NoError(t, h.faults.Inject(faultinject.Fault{Name: "search-down", Path: "/clubs", Method: "GET", Status: 502}))

	_, _, body := h.postForm(t, "/main/search", url.Values{"q": {"chess"}})
	assert.Contains(t, body, `data-state="searched_no_results"`)
	assert.Contains(t, h.logs.String(), "club search failed")
}

func TestJoinTimeoutMessage(t *testing.T) {
	h := newHarness(t, Options{PasscodeLength: 6, JoinTimeout: 50 * time.Millisecond})
	h.postForm(t, "/main/search", url.Values{"q": {"film"}})
	h.postForm(t, "/clubs/3/select", nil)
	require.NoError(t, h.faults.Inject(faultinject.Fault{Name: "slow-join", Path: "/clubs/join", Latency: time.Minute}))

	_, path, body := h.postForm(t, "/join", boxesForm("808080"))
	assert.Equal(t, "/main", path)
	assert.Contains(t, body, join.TimeoutMessage)
}

func TestSelectUnknownClub(t *testing.T) {
	h := newHarness(t, Options{})
	status, _, _ := h.postForm(t, "/clubs/99/select", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSuccessWithoutHandoffRedirects(t *testing.T) {
	h := newHarness(t, Options{})
	resp, err := h.client.Get(h.portal.URL + "/success")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "/main", resp.Request.URL.Path)
}

func TestSuccessWithMissingClubID(t *testing.T) {
	h := newHarness(t, Options{})
	sess, err := h.server.Sessions().Create()
	require.NoError(t, err)
	sess.navigate(club.Handoff{Name: "Ghost", Action: club.ActionJoin})

	req, _ := http.NewRequest(http.MethodGet, h.portal.URL+"/success", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: sess.ID})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(body), "We could not tell which club you joined.")
	assert.NotContains(t, string(body), "You joined")
}

func TestCSRFRejectsFormWithoutToken(t *testing.T) {
	h := newHarness(t, Options{CSRFKey: bytes.Repeat([]byte{7}, 32)})
	status, _, _ := h.postForm(t, "/main/search", url.Values{"q": {"chess"}})
	assert.Equal(t, http.StatusForbidden, status)

	status, body := h.get(t, "/main")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `name="gorilla.csrf.Token"`)
}

func TestHealthAndHeaders(t *testing.T) {
	h := newHarness(t, Options{})
	resp, err := http.Get(h.portal.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Contains(t, resp.Header.Get("Content-Security-Policy"), h.api.URL)
}

func TestInvalidPasscodeLength(t *testing.T) {
	_, err := NewServer(clients.NewClubClient("http://localhost"), Options{PasscodeLength: 5}, logger.Discard())
	assert.Error(t, err)
}
