package routedata

import (
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

	"github.com/google/uuid"

	"github.com/pkordes/fleet-playback/internal/domain"
)

// APIError is returned when the service answered with an error status or
// with success=false. It unwraps to domain.ErrNotFound for 404 and to
// domain.ErrService otherwise.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return domain.ErrNotFound
	}
	return domain.ErrService
}

// Client talks to the route data service. It never retries; a retry is a
// user action.
type Client struct {
	baseURL *url.URL
	session *http.Client
	log     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client (15s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.session = hc }
}

// WithLogger sets the logger used for per-call timing lines.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient returns a Client for the service rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("routedata.NewClient: invalid base url %q", baseURL)
	}
	c := &Client{
		baseURL: u,
		session: &http.Client{Timeout: 15 * time.Second},
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// StoredRouteByTrip fetches the route persisted for a trip.
// Returns an error wrapping domain.ErrNotFound when the trip has none.
func (c *Client) StoredRouteByTrip(ctx context.Context, tripID uuid.UUID) (Response, error) {
	resp, err := c.get(ctx, "StoredRouteByTrip", "/api/routes/trips/"+url.PathEscape(tripID.String()), nil)
	if err != nil {
		return Response{}, fmt.Errorf("routedata.Client.StoredRouteByTrip: %w", err)
	}
	return resp, nil
}

// RouteByDateRange fetches the raw track of a car between from and to,
// both in domain.WireLayout.
func (c *Client) RouteByDateRange(ctx context.Context, carID uuid.UUID, from, to string) (Response, error) {
	q := url.Values{}
	q.Set("from", from)
	q.Set("to", to)
	resp, err := c.get(ctx, "RouteByDateRange", "/api/routes/cars/"+url.PathEscape(carID.String()), q)
	if err != nil {
		return Response{}, fmt.Errorf("routedata.Client.RouteByDateRange: %w", err)
	}
	return resp, nil
}

// StoreRoute asks the service to build and persist the route of a trip over
// the window, and returns what it stored. A 422 means the window holds no
// usable positions and unwraps to domain.ErrDataQuality.
func (c *Client) StoreRoute(ctx context.Context, tripID uuid.UUID, from, to string) (Response, error) {
	q := url.Values{}
	q.Set("from", from)
	q.Set("to", to)
	resp, err := c.get(ctx, "StoreRoute", "/api/routes/trips/"+url.PathEscape(tripID.String())+"/store", q)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnprocessableEntity {
			return Response{}, fmt.Errorf("routedata.Client.StoreRoute: %w: %s", domain.ErrDataQuality, apiErr.Message)
		}
		return Response{}, fmt.Errorf("routedata.Client.StoreRoute: %w", err)
	}
	return resp, nil
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values) (out Response, err error) {
	start := time.Now()
	defer func() {
		attrs := []any{"op", op, "duration_ms", time.Since(start).Milliseconds()}
		if err != nil {
			c.log.WarnContext(ctx, "route service call failed", append(attrs, "error", err)...)
			return
		}
		c.log.DebugContext(ctx, "route service call", append(attrs, "coordinates", len(out.Coordinates))...)
	}()

	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := c.newRequest(ctx, http.MethodGet, u.String())
	if err != nil {
		return Response{}, err
	}

	resp, err := c.do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Response{}, ctxErr
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return Response{}, apiErr
		}
		return Response{}, fmt.Errorf("%w: %w", domain.ErrService, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Response{}, fmt.Errorf("%w: decode response: %w", domain.ErrService, err)
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "service reported failure"
		}
		return Response{}, &APIError{Status: resp.StatusCode, Message: msg}
	}
	return out, nil
}

func (c *Client) newRequest(ctx context.Context, method, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.session.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		return nil, &APIError{Status: resp.StatusCode, Message: errorMessage(b)}
	}
	return resp, nil
}

// errorMessage prefers the "error" field of a JSON error body and falls back
// to the raw text.
func errorMessage(body []byte) string {
	var r Response
	if err := json.Unmarshal(body, &r); err == nil && r.Error != "" {
		return r.Error
	}
	return strings.TrimSpace(string(body))
}
