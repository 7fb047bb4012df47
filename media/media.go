// Package media resolves externally hosted photo albums into lists of
// media URLs for the raffle photo mode and the confessions background.
package media

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/festivo/gamehub/logger"
)

// DefaultBackground is the fallback used whenever album resolution fails.
const DefaultBackground = "https://cdn.festivo.app/defaults/party-background.jpg"

// Resolver turns an album reference into resolvable media URLs.
type Resolver interface {
	Resolve(ctx context.Context, albumURL string) ([]string, error)
}

// HTTPResolver queries the media service's album index endpoint, which
// answers with a JSON array of item URLs.
type HTTPResolver struct {
	client *http.Client
}

func NewHTTPResolver() *HTTPResolver {
	return &HTTPResolver{
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *HTTPResolver) Resolve(ctx context.Context, albumURL string) ([]string, error) {
	if _, err := url.ParseRequestURI(albumURL); err != nil {
		return nil, fmt.Errorf("invalid album url %q: %w", albumURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, albumURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("album index returned status %d", resp.StatusCode)
	}

	var items []string
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, err
	}
	return items, nil
}

// ResolveOrFallback is the degrade path shared by raffle and confessions
// configuration; a failed resolution is logged and replaced by the default
// background rather than failing the whole operation.
func ResolveOrFallback(ctx context.Context, r Resolver, albumURL string) []string {
	if r == nil || albumURL == "" {
		return []string{DefaultBackground}
	}
	items, err := r.Resolve(ctx, albumURL)
	if err != nil || len(items) == 0 {
		logger.Log.Warnf("album resolution failed for %s, using default media: %v", albumURL, err)
		return []string{DefaultBackground}
	}
	return items
}

// StaticResolver serves a fixed list. Test double.
type StaticResolver struct {
	Items []string
	Err   error
}

func (s StaticResolver) Resolve(context.Context, string) ([]string, error) {
	return s.Items, s.Err
}
