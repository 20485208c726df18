// internal/clients/club_client.go
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"clubportal/internal/club"
	"clubportal/internal/logger"
)

const (
	serviceName = "club-api"
	// maxErrorBody caps how much of an error response is read for its detail.
	maxErrorBody = 64 << 10
)

// ErrUnavailable is returned without calling the API while the circuit
// breaker is open.
var ErrUnavailable = errors.New("club api: temporarily unavailable")

// APIError is a non-2xx response from the club API.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("club api: unexpected status code: %d", e.StatusCode)
	}
	return fmt.Sprintf("club api: status %d: %s", e.StatusCode, e.Detail)
}

// Message is the server-provided detail, suitable for showing to the user.
func (e *APIError) Message() string { return e.Detail }

// Credentials authenticate calls on behalf of one user.
type Credentials struct {
	Token string
}

type ClubClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
	breaker    *gobreaker.CircuitBreaker
}

type Option func(*ClubClient)

// WithHTTPClient replaces the default client, e.g. to install a fault
// injecting transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *ClubClient) { c.httpClient = hc }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *ClubClient) { c.logger = l }
}

// WithCircuitBreaker opens the circuit after maxFailures consecutive
// transport errors or 5xx responses and probes again after cooldown.
// Client errors such as a wrong passcode never count as failures.
func WithCircuitBreaker(maxFailures uint32, cooldown time.Duration) Option {
	return func(c *ClubClient) {
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        serviceName,
			MaxRequests: 1,
			Timeout:     cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			IsSuccessful: func(err error) bool {
				var apiErr *APIError
				if errors.As(err, &apiErr) {
					return apiErr.StatusCode < 500
				}
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				c.logger.Warn("circuit breaker state changed", "service", name, "from", from.String(), "to", to.String())
			},
		})
	}
}

func NewClubClient(baseURL string, opts ...Option) *ClubClient {
	c := &ClubClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
		tracer:     otel.Tracer("clubportal/clients"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL is the API address that relative image paths resolve against.
func (c *ClubClient) BaseURL() string { return c.baseURL }

// Session binds credentials to the client. The returned session satisfies
// both the search and join collaborators.
func (c *ClubClient) Session(creds Credentials) *ClubSession {
	return &ClubSession{client: c, creds: creds}
}

type ClubSession struct {
	client *ClubClient
	creds  Credentials
}

// Search lists clubs whose name matches query.
func (s *ClubSession) Search(ctx context.Context, query string) ([]club.Club, error) {
	c := s.client
	ctx, span := c.tracer.Start(ctx, "clubs.search",
		trace.WithAttributes(attribute.String("club.query", query)),
	)
	defer span.End()

	endpoint := fmt.Sprintf("%s/clubs?%s", c.baseURL, url.Values{"name": {query}}.Encode())
	logger.ExternalServiceCall(ctx, c.logger, serviceName, "search", "query", query)

	var clubs []club.Club
	err := s.client.guard(func() error {
		var err error
		clubs, err = s.search(ctx, endpoint)
		return err
	})
	logger.ExternalServiceResult(ctx, c.logger, serviceName, "search", err, "results", len(clubs))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("club.results", len(clubs)))
	return clubs, nil
}

func (s *ClubSession) search(ctx context.Context, endpoint string) ([]club.Club, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}

	var clubs []club.Club
	if err := json.NewDecoder(resp.Body).Decode(&clubs); err != nil {
		return nil, fmt.Errorf("decode clubs: %w", err)
	}
	if clubs == nil {
		clubs = []club.Club{}
	}
	for i := range clubs {
		clubs[i].ImageURL = club.ResolveImageURL(s.client.baseURL, clubs[i].ImagePath)
	}
	return clubs, nil
}

// Join asks the API to add the session's user to the named club.
func (s *ClubSession) Join(ctx context.Context, jr club.JoinRequest) error {
	c := s.client
	ctx, span := c.tracer.Start(ctx, "clubs.join",
		trace.WithAttributes(attribute.String("club.name", jr.ClubName)),
	)
	defer span.End()

	logger.ExternalServiceCall(ctx, c.logger, serviceName, "join", "club_name", jr.ClubName)
	err := s.client.guard(func() error { return s.join(ctx, jr) })
	logger.ExternalServiceResult(ctx, c.logger, serviceName, "join", err, "club_name", jr.ClubName)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			span.SetAttributes(attribute.Int("http.status_code", apiErr.StatusCode))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "join failed")
	}
	return err
}

func (s *ClubSession) join(ctx context.Context, jr club.JoinRequest) error {
	body, err := json.Marshal(jr)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.client.baseURL+"/clubs/join", bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (s *ClubSession) do(req *http.Request) (*http.Response, error) {
	if s.creds.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.creds.Token)
	}
	otel.GetTextMapPropagator().Inject(req.Context(), propagation.HeaderCarrier(req.Header))
	return s.client.httpClient.Do(req)
}

// guard runs call through the circuit breaker when one is configured.
func (c *ClubClient) guard(call func() error) error {
	if c.breaker == nil {
		return call()
	}
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, call()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

// decodeAPIError reads a {"detail": "..."} body. Details that are not plain
// strings, such as validation error lists, are dropped.
func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return apiErr
	}
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(raw, &payload) != nil || len(payload.Detail) == 0 {
		return apiErr
	}
	var detail string
	if json.Unmarshal(payload.Detail, &detail) == nil {
		apiErr.Detail = strings.TrimSpace(detail)
	}
	return apiErr
}
