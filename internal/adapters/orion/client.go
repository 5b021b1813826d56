// internal/adapters/orion/client.go
package orion

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"orion_source/internal/adapters/observability"
	"orion_source/internal/domain"
)

// Headers sent with every catalog request.
var defaultHeaders = map[string]string{
	"Accept":         "application/ld+json",
	"Content-Type":   "application/json",
	"x-unpublished":  "1",
	"gatsby-request": "1",
}

var (
	ErrNotFound     = errors.New("orion: not found")
	ErrUnauthorized = errors.New("orion: unauthorized")
	ErrForbidden    = errors.New("orion: forbidden")
)

// StatusError is any other non-2xx answer from the catalog.
type StatusError struct {
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("orion: %s returned %d: %s", e.URL, e.Status, e.Body)
}

type Options struct {
	Base      string
	Token     string
	ProxyHost string
	ProxyPort string
	Timeout   time.Duration
	RPS       int // 0 disables client-side limiting
}

type Client struct {
	base  string
	token string
	hc    *http.Client
	rl    *rate.Limiter

	memo  *MemoCache
	group singleflight.Group
}

func New(o Options) (*Client, error) {
	if o.Base == "" {
		return nil, fmt.Errorf("API endpoint is required")
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	burst := 0
	if o.RPS > 0 {
		limit, burst = rate.Limit(o.RPS), o.RPS
	}

	tr := http.DefaultTransport.(*http.Transport).Clone()
	// peer verification is off for every environment the catalog runs in
	tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	if o.ProxyHost != "" && o.ProxyPort != "" {
		tr.Proxy = http.ProxyURL(&url.URL{Scheme: "http", Host: net.JoinHostPort(o.ProxyHost, o.ProxyPort)})
	}
	// otherwise the clone keeps http.ProxyFromEnvironment

	return &Client{
		base:  strings.TrimSuffix(o.Base, "/"),
		token: o.Token,
		hc:    &http.Client{Timeout: o.Timeout, Transport: tr},
		rl:    rate.NewLimiter(limit, burst),
		memo:  NewMemoCache(),
	}, nil
}

// Fetch requests one collection page.
func (c *Client) Fetch(ctx context.Context, endpoint string, params map[string]any, headers map[string]string) (domain.CollectionPage, error) {
	var page domain.CollectionPage
	body, err := c.Get(ctx, endpoint, params, headers)
	if err != nil {
		return page, err
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return page, fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return page, nil
}

// FetchCached returns the body for iri, requesting it at most once per
// client. Concurrent callers share the in-flight request; only successful
// bodies are stored. A caller whose ctx ends stops waiting without failing
// the others.
func (c *Client) FetchCached(ctx context.Context, iri string) (json.RawMessage, error) {
	if b, ok := c.memo.Get(iri); ok {
		return b, nil
	}
	ch := c.group.DoChan(iri, func() (any, error) {
		if b, ok := c.memo.lookup(iri); ok {
			return b, nil
		}
		// the request belongs to every waiter, not to whoever started it
		b, err := c.Get(context.WithoutCancel(ctx), iri, nil, nil)
		if err != nil {
			return nil, err
		}
		c.memo.Set(iri, b)
		return b, nil
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(json.RawMessage), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Get performs one authenticated GET and returns the raw body. Nothing is retried.
func (c *Client) Get(ctx context.Context, endpoint string, params map[string]any, headers map[string]string) (json.RawMessage, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return nil, err
	}

	u := c.base + endpoint
	if q := EncodeQuery(params); q != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		u += sep + q
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range defaultHeaders {
		req.Header.Set(k, v)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal("orion", endpointLabel(endpoint), 0, time.Since(start))
		return nil, fmt.Errorf("GET %s: %w", u, err)
	}
	defer resp.Body.Close()
	observability.ObserveExternal("orion", endpointLabel(endpoint), resp.StatusCode, time.Since(start))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", u, err)
		}
		return b, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, u)
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, u)
	case resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", ErrForbidden, u)
	default:
		// read a small error body for diagnostics
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: u, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
}

var idSegment = regexp.MustCompile(`/[0-9a-fA-F-]*[0-9][0-9a-fA-F-]*(/|$)`)

// endpointLabel collapses id path segments so metric labels stay bounded.
func endpointLabel(endpoint string) string {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		endpoint = endpoint[:i]
	}
	for {
		next := idSegment.ReplaceAllString(endpoint, "/:id$1")
		if next == endpoint {
			return endpoint
		}
		endpoint = next
	}
}
