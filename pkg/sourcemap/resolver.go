package sourcemap

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/armorclaw/catcher/pkg/logger"
)

const (
	defaultCacheSize = 512
	defaultCacheTTL  = 10 * time.Minute
)

// Resolver obtains source artifacts for minified files, caching them across
// reports that share the same (project, file, revision) key so concurrent
// bursts of the same error do not re-download the map each time.
type Resolver struct {
	fetcher Fetcher
	cache   *artifactCache
	log     *logger.Logger
}

// ResolverConfig configures the resolver. Zero cache values select defaults.
type ResolverConfig struct {
	Fetcher   Fetcher
	CacheSize int
	CacheTTL  time.Duration
	Logger    *logger.Logger
}

// NewResolver creates a resolver around the given fetcher.
func NewResolver(cfg ResolverConfig) *Resolver {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Global().WithComponent("sourcemap")
	}

	return &Resolver{
		fetcher: cfg.Fetcher,
		cache:   newArtifactCache(cfg.CacheSize, cfg.CacheTTL),
		log:     log,
	}
}

// Resolve returns the artifact for one built file at one revision, or nil
// when no map is available. It never returns an error: fetch and parse
// failures are logged and reported as unavailable so enrichment degrades
// instead of aborting the pipeline.
func (r *Resolver) Resolve(ctx context.Context, projectID, fileURL, revision string) *Artifact {
	if fileURL == "" || revision == "" {
		return nil
	}

	key := cacheKey(projectID, fileURL, revision)
	if artifact, ok := r.cache.get(key); ok {
		return artifact
	}

	artifact := r.fetch(ctx, projectID, fileURL, revision)

	// Negative results are cached too; a bundle without a map would
	// otherwise be re-fetched on every occurrence of a hot error.
	r.cache.put(key, artifact)
	return artifact
}

func (r *Resolver) fetch(ctx context.Context, projectID, fileURL, revision string) *Artifact {
	body, err := r.fetcher.Fetch(ctx, projectID, fileURL, revision)
	if err != nil {
		r.log.Warn("source map unavailable",
			"project_id", projectID,
			"file", fileURL,
			"revision", revision,
			"error", err)
		return nil
	}
	if len(body) == 0 {
		return nil
	}

	artifact, err := NewArtifact(projectID, fileURL, revision, body)
	if err != nil {
		r.log.Warn("source map unusable",
			"project_id", projectID,
			"file", fileURL,
			"revision", revision,
			"error", err)
		return nil
	}

	r.log.Debug("source map resolved", "file", fileURL, "revision", revision)
	return artifact
}

func cacheKey(projectID, fileURL, revision string) string {
	return fmt.Sprintf("%s|%s|%s", projectID, fileURL, revision)
}

// artifactCache is a TTL-bound LRU keyed by (project, file, revision).
// Safe for concurrent use.
type artifactCache struct {
	mu    sync.Mutex
	cap   int
	ttl   time.Duration
	ll    *list.List               // most-recent at front
	items map[string]*list.Element // key -> element
}

type cacheEntry struct {
	key      string
	artifact *Artifact
	exp      time.Time
}

func newArtifactCache(size int, ttl time.Duration) *artifactCache {
	return &artifactCache{
		cap:   size,
		ttl:   ttl,
		ll:    list.New(),
		items: make(map[string]*list.Element, size),
	}
}

func (c *artifactCache) get(key string) (*Artifact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}

	en := el.Value.(cacheEntry)
	if time.Now().After(en.exp) {
		c.ll.Remove(el)
		delete(c.items, key)
		return nil, false
	}

	c.ll.MoveToFront(el)
	return en.artifact, true
}

func (c *artifactCache) put(key string, artifact *Artifact) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value = cacheEntry{key: key, artifact: artifact, exp: time.Now().Add(c.ttl)}
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(cacheEntry{key: key, artifact: artifact, exp: time.Now().Add(c.ttl)})
	c.items[key] = el

	for c.ll.Len() > c.cap {
		tail := c.ll.Back()
		if tail == nil {
			break
		}
		old := tail.Value.(cacheEntry)
		c.ll.Remove(tail)
		delete(c.items, old.key)
	}
}
