package sourcemap

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"time"
)

// Fetcher retrieves the raw source map body for one built file at one
// revision. A nil body with a nil error means no map is available; callers
// treat both the nil body and any error as "enrichment unavailable".
type Fetcher interface {
	Fetch(ctx context.Context, projectID, fileURL, revision string) ([]byte, error)
}

// Source maps advertise themselves with a trailing comment in the built file.
var sourceMappingURL = regexp.MustCompile(`(?m)^//[#@]\s*sourceMappingURL=(\S+)\s*$`)

const (
	defaultFetchTimeout = 10 * time.Second
	defaultMaxBodySize  = 16 << 20 // 16 MiB
	fetchAttempts       = 3
	retryInitialDelay   = 200 * time.Millisecond
	retryMaxDelay       = 2 * time.Second
)

// HTTPFetcher downloads built files and their source maps over HTTP. The map
// URL is taken from the sourceMappingURL comment of the built file, falling
// back to the ".map" convention when the comment is absent.
type HTTPFetcher struct {
	client      *http.Client
	maxBodySize int64
}

// HTTPFetcherConfig configures the fetcher. Zero values select defaults.
type HTTPFetcherConfig struct {
	Timeout     time.Duration
	MaxBodySize int64
}

// NewHTTPFetcher creates a fetcher with a bounded, connection-reusing client.
func NewHTTPFetcher(cfg HTTPFetcherConfig) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultFetchTimeout
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = defaultMaxBodySize
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}

	return &HTTPFetcher{
		client:      &http.Client{Timeout: cfg.Timeout, Transport: transport},
		maxBodySize: cfg.MaxBodySize,
	}
}

// Fetch downloads the built file, discovers its map URL and downloads the
// map body. Returns (nil, nil) when the built file carries no map reference
// and no conventional ".map" neighbor exists.
func (f *HTTPFetcher) Fetch(ctx context.Context, projectID, fileURL, revision string) ([]byte, error) {
	source, err := f.get(ctx, fileURL)
	if err != nil {
		return nil, fmt.Errorf("fetch source %s: %w", fileURL, err)
	}

	mapURL, err := f.mapURL(fileURL, source)
	if err != nil {
		return nil, err
	}

	body, err := f.get(ctx, mapURL)
	if err != nil {
		return nil, fmt.Errorf("fetch map %s: %w", mapURL, err)
	}
	return body, nil
}

// mapURL resolves the map location from the sourceMappingURL comment,
// relative to the built file's URL.
func (f *HTTPFetcher) mapURL(fileURL string, source []byte) (string, error) {
	base, err := url.Parse(fileURL)
	if err != nil {
		return "", fmt.Errorf("parse file url %s: %w", fileURL, err)
	}

	ref := ""
	if m := sourceMappingURL.FindSubmatch(source); m != nil {
		ref = string(m[1])
	}
	if ref == "" {
		// Conventional neighbor: same path with ".map" appended, query dropped.
		neighbor := *base
		neighbor.Path += ".map"
		neighbor.RawQuery = ""
		return neighbor.String(), nil
	}

	resolved, err := base.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("resolve map url %q: %w", ref, err)
	}
	return resolved.String(), nil
}

func (f *HTTPFetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	var body []byte

	err := retry(ctx, fetchAttempts, retryInitialDelay, retryMaxDelay, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return err
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
		return err
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// retry runs fn up to attempts times with exponential backoff.
func retry(ctx context.Context, attempts int, initial, max time.Duration, fn func() error) error {
	d := initial
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return ctx.Err()
			}
			if d < max {
				d *= 2
				if d > max {
					d = max
				}
			}
		}
		if err = fn(); err == nil {
			return nil
		}
	}
	return err
}
