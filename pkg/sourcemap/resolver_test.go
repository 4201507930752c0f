package sourcemap

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type countingFetcher struct {
	mu      sync.Mutex
	body    []byte
	err     error
	fetches int
}

func (f *countingFetcher) Fetch(ctx context.Context, projectID, fileURL, revision string) ([]byte, error) {
	f.mu.Lock()
	f.fetches++
	f.mu.Unlock()
	return f.body, f.err
}

func (f *countingFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func TestResolveCachesArtifacts(t *testing.T) {
	fetcher := &countingFetcher{body: []byte(testMap)}
	r := NewResolver(ResolverConfig{Fetcher: fetcher})

	ctx := context.Background()
	a1 := r.Resolve(ctx, "p1", "https://example.com/all.min.js", "rev1")
	a2 := r.Resolve(ctx, "p1", "https://example.com/all.min.js", "rev1")

	if a1 == nil || a2 == nil {
		t.Fatal("expected artifacts")
	}
	if fetcher.count() != 1 {
		t.Errorf("reports sharing a key must share one fetch, got %d", fetcher.count())
	}

	// A different revision is a different artifact.
	r.Resolve(ctx, "p1", "https://example.com/all.min.js", "rev2")
	if fetcher.count() != 2 {
		t.Errorf("expected a second fetch for the new revision, got %d", fetcher.count())
	}
}

func TestResolveCachesNegatives(t *testing.T) {
	fetcher := &countingFetcher{err: errors.New("404")}
	r := NewResolver(ResolverConfig{Fetcher: fetcher})

	ctx := context.Background()
	if r.Resolve(ctx, "p1", "https://example.com/all.min.js", "rev1") != nil {
		t.Fatal("expected unavailable artifact")
	}
	r.Resolve(ctx, "p1", "https://example.com/all.min.js", "rev1")

	if fetcher.count() != 1 {
		t.Errorf("unavailable artifacts must be cached too, got %d fetches", fetcher.count())
	}
}

func TestResolveSkipsIncompleteKeys(t *testing.T) {
	fetcher := &countingFetcher{body: []byte(testMap)}
	r := NewResolver(ResolverConfig{Fetcher: fetcher})

	if r.Resolve(context.Background(), "p1", "", "rev1") != nil {
		t.Error("no file, no artifact")
	}
	if r.Resolve(context.Background(), "p1", "https://example.com/all.min.js", "") != nil {
		t.Error("no revision, no artifact")
	}
	if fetcher.count() != 0 {
		t.Errorf("incomplete keys must not hit the fetcher, got %d", fetcher.count())
	}
}

func TestResolveUnparseableMap(t *testing.T) {
	fetcher := &countingFetcher{body: []byte(`{{broken`)}
	r := NewResolver(ResolverConfig{Fetcher: fetcher})

	if r.Resolve(context.Background(), "p1", "https://example.com/all.min.js", "rev1") != nil {
		t.Error("unparseable map must degrade to unavailable, not error")
	}
}

func TestResolveConcurrent(t *testing.T) {
	fetcher := &countingFetcher{body: []byte(testMap)}
	r := NewResolver(ResolverConfig{Fetcher: fetcher, CacheSize: 8, CacheTTL: time.Minute})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Resolve(context.Background(), "p1", "https://example.com/all.min.js", "rev1")
		}()
	}
	wg.Wait()

	// Concurrent resolves may race past the cache miss, but every caller
	// must get an artifact and the cache must stay consistent.
	if a := r.Resolve(context.Background(), "p1", "https://example.com/all.min.js", "rev1"); a == nil {
		t.Fatal("expected cached artifact after concurrent access")
	}
}
