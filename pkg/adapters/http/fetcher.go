package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
)

// DefaultTimeout bounds one retrieval when no client is supplied.
const DefaultTimeout = 30 * time.Second

// Fetcher implements ports.Fetcher over HTTP. Relative locators resolve
// against the base URL.
type Fetcher struct {
	base   *url.URL
	client *http.Client
}

// FetcherOption configures the Fetcher.
type FetcherOption func(*Fetcher)

// WithClient sets the HTTP client.
func WithClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.client = c
	}
}

// NewFetcher creates a Fetcher rooted at base.
func NewFetcher(base string, opts ...FetcherOption) (*Fetcher, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", base, err)
	}
	f := &Fetcher{base: u, client: &http.Client{Timeout: DefaultTimeout}}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Fetch performs a GET on locator.
func (f *Fetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	req, err := f.request(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, err
	}
	return f.do(req, locator)
}

// Post sends body as JSON to locator.
func (f *Fetcher) Post(ctx context.Context, locator string, body []byte) ([]byte, error) {
	req, err := f.request(ctx, http.MethodPost, locator, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return f.do(req, locator)
}

func (f *Fetcher) request(ctx context.Context, method, locator string, body io.Reader) (*http.Request, error) {
	ref, err := url.Parse(locator)
	if err != nil {
		return nil, &domain.RetrievalError{Locator: locator, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, method, f.base.ResolveReference(ref).String(), body)
	if err != nil {
		return nil, &domain.RetrievalError{Locator: locator, Err: err}
	}
	return req, nil
}

func (f *Fetcher) do(req *http.Request, locator string) ([]byte, error) {
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &domain.RetrievalError{Locator: locator, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.RetrievalError{Locator: locator, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.RetrievalError{Locator: locator, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	return body, nil
}
