package microsoft

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/mailbox-usage/internal/logger"
)

// DefaultHTTPTimeout bounds a single Graph request when no client is injected.
const DefaultHTTPTimeout = 60 * time.Second

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 64 << 10

// page is one response of a Graph collection.
type page struct {
	Value    []json.RawMessage `json:"value"`
	NextLink string            `json:"@odata.nextLink"`
}

// Pager fetches Graph collections page by page.
// It is safe for concurrent use.
type Pager struct {
	base *http.Client
}

// NewPager creates a Pager sending requests through client.
// A nil client gets a plain client with DefaultHTTPTimeout.
func NewPager(client *http.Client) *Pager {
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Pager{base: client}
}

// authorisedClient wraps the base client so every request carries the bearer token.
func (p *Pager) authorisedClient(ctx context.Context, token string) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.base)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))
	client.Timeout = p.base.Timeout
	return client
}

// FetchAllPages follows @odata.nextLink from initialURL until no link remains and
// returns every item in page order. Any failed page fails the whole fetch.
func (p *Pager) FetchAllPages(ctx context.Context, initialURL, token string) ([]json.RawMessage, error) {
	client := p.authorisedClient(ctx, token)

	var items []json.RawMessage
	next := initialURL
	for pageNum := 1; next != ""; pageNum++ {
		var pg page
		if err := p.get(ctx, client, next, &pg); err != nil {
			return nil, err
		}
		logger.Debug("graph: page %d returned %d items", pageNum, len(pg.Value))

		items = append(items, pg.Value...)
		next = pg.NextLink
	}

	return items, nil
}

// FetchAll fetches every page from initialURL and decodes each item as T.
func FetchAll[T any](ctx context.Context, p *Pager, initialURL, token string) ([]T, error) {
	raw, err := p.FetchAllPages(ctx, initialURL, token)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(raw))
	for i, item := range raw {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			return nil, fmt.Errorf("decode item %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// GetJSON performs a single authorised GET and decodes the body into result.
func (p *Pager) GetJSON(ctx context.Context, url, token string, result any) error {
	return p.get(ctx, p.authorisedClient(ctx, token), url, result)
}

func (p *Pager) get(ctx context.Context, client *http.Client, url string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("graph request: %w", err)
	}
	defer resp.Body.Close()

	logger.Debug("graph: GET %s -> %d", url, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		switch {
		case IsRateLimited(resp.StatusCode):
			logger.Warn("graph: throttled on %s (Retry-After: %q)", url, resp.Header.Get("Retry-After"))
		case IsRetryable(resp.StatusCode):
			logger.Warn("graph: transient status %d for %s", resp.StatusCode, url)
		}
		return newUpstreamError(resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
