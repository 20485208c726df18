// Package faultinject wraps an http.RoundTripper so outbound calls to the
// club API can be slowed down or failed on purpose. It is used to rehearse
// timeouts and error messages in the join workflow without touching the
// remote service.
package faultinject

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Fault describes one injection rule. A request matches when its method
// and path prefix match; empty fields match everything.
type Fault struct {
	Name   string `yaml:"name"`
	Method string `yaml:"method"`
	Path   string `yaml:"path"`

	// Latency is added before the request is forwarded or failed.
	Latency time.Duration `yaml:"latency"`
	Jitter  time.Duration `yaml:"jitter"`

	// Status, when non-zero, short-circuits the request with this code and
	// a {"detail": Detail} body.
	Status int    `yaml:"status"`
	Detail string `yaml:"detail"`

	// Error, when set, fails the round trip with a transport error instead.
	Error string `yaml:"error"`

	// BlastRadius is the share of matching requests affected, 0.0 to 1.0.
	// Zero is treated as 1.0.
	BlastRadius float64 `yaml:"blast_radius"`
}

func (f Fault) matches(req *http.Request) bool {
	if f.Method != "" && !strings.EqualFold(f.Method, req.Method) {
		return false
	}
	return f.Path == "" || strings.HasPrefix(req.URL.Path, f.Path)
}

func (f Fault) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("fault: name is required")
	}
	if f.Latency < 0 || f.Jitter < 0 {
		return fmt.Errorf("fault %s: latency must not be negative", f.Name)
	}
	if f.Status != 0 && (f.Status < 100 || f.Status > 599) {
		return fmt.Errorf("fault %s: invalid status %d", f.Name, f.Status)
	}
	if f.BlastRadius < 0 || f.BlastRadius > 1 {
		return fmt.Errorf("fault %s: blast_radius must be between 0 and 1", f.Name)
	}
	return nil
}

// InjectedError is the transport error produced by a fault with Error set.
type InjectedError struct {
	Fault string
	Msg   string
}

func (e *InjectedError) Error() string {
	return fmt.Sprintf("injected fault %s: %s", e.Fault, e.Msg)
}

// Transport applies the first matching fault to each request.
type Transport struct {
	base   http.RoundTripper
	tracer trace.Tracer
	logger *slog.Logger
	roll   func() float64

	mu         sync.RWMutex
	faults     []Fault
	injections map[string]int
}

func NewTransport(base http.RoundTripper, l *slog.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	if l == nil {
		l = slog.Default()
	}
	return &Transport{
		base:       base,
		tracer:     otel.Tracer("clubportal/faultinject"),
		logger:     l,
		roll:       rand.Float64,
		injections: make(map[string]int),
	}
}

// Inject registers a fault. Faults are evaluated in registration order.
func (t *Transport) Inject(f Fault) error {
	if err := f.Validate(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.faults = append(t.faults, f)
	t.logger.Warn("fault injection enabled", "fault", f.Name, "path", f.Path, "status", f.Status, "latency", f.Latency)
	return nil
}

// Clear removes every registered fault.
func (t *Transport) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.faults = nil
}

// Injections returns how often each fault has fired.
func (t *Transport) Injections() map[string]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]int, len(t.injections))
	for k, v := range t.injections {
		out[k] = v
	}
	return out
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	f, ok := t.pick(req)
	if !ok {
		return t.base.RoundTrip(req)
	}

	ctx, span := t.tracer.Start(req.Context(), "faultinject.round_trip",
		trace.WithAttributes(attribute.String("http.method", req.Method)),
	)
	defer span.End()
	span.AddEvent("fault_injected", trace.WithAttributes(
		attribute.String("fault.name", f.Name),
		attribute.Int("fault.status", f.Status),
		attribute.Int64("fault.latency_ms", f.Latency.Milliseconds()),
	))
	t.logger.DebugContext(ctx, "injecting fault", "fault", f.Name, "method", req.Method, "path", req.URL.Path)

	if err := t.sleep(ctx, f); err != nil {
		return nil, err
	}
	if f.Error != "" {
		return nil, &InjectedError{Fault: f.Name, Msg: f.Error}
	}
	if f.Status == 0 {
		return t.base.RoundTrip(req)
	}
	return synthesize(req, f), nil
}

func (t *Transport) pick(req *http.Request) (Fault, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, f := range t.faults {
		if !f.matches(req) {
			continue
		}
		if f.BlastRadius > 0 && t.roll() >= f.BlastRadius {
			return Fault{}, false
		}
		t.injections[f.Name]++
		return f, true
	}
	return Fault{}, false
}

func (t *Transport) sleep(ctx context.Context, f Fault) error {
	d := f.Latency
	if f.Jitter > 0 {
		d += time.Duration(t.roll() * float64(f.Jitter))
	}
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func synthesize(req *http.Request, f Fault) *http.Response {
	var body []byte
	if f.Detail != "" {
		body, _ = json.Marshal(map[string]string{"detail": f.Detail})
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", f.Status, http.StatusText(f.Status)),
		StatusCode:    f.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": {"application/json"}},
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
