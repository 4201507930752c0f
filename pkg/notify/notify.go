// Package notify delivers new-event notifications to per-project webhooks.
// Delivery is best effort by contract: the pipeline logs failures and never
// lets them affect a report's outcome.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/armorclaw/catcher/pkg/event"
	"github.com/armorclaw/catcher/pkg/logger"
)

const (
	defaultSendTimeout = 5 * time.Second

	// Rate limiting (notifications per second across all projects)
	defaultRateLimit = 10.0
	defaultRateBurst = 20
)

// Payload is the body posted to each webhook.
type Payload struct {
	ProjectID   string            `json:"project_id"`
	ProjectName string            `json:"project_name,omitempty"`
	Event       *event.ErrorEvent `json:"event"`
}

// Dispatcher fans one persisted event out to the project's webhooks.
type Dispatcher struct {
	mu       sync.RWMutex
	webhooks map[string][]string // project id -> webhook URLs

	client  *http.Client
	limiter *rate.Limiter
	enabled bool
	log     *logger.Logger
}

// Config configures the dispatcher.
type Config struct {
	// Webhooks maps project ids to webhook URLs.
	Webhooks map[string][]string

	// Enabled gates all delivery. Disabled dispatch degrades to logging.
	Enabled bool

	// RateLimit caps notifications per second; 0 selects the default.
	RateLimit float64

	Timeout time.Duration
	Logger  *logger.Logger
}

// NewDispatcher creates a webhook dispatcher.
func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSendTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Global().WithComponent("notify")
	}

	webhooks := cfg.Webhooks
	if webhooks == nil {
		webhooks = make(map[string][]string)
	}

	return &Dispatcher{
		webhooks: webhooks,
		client:   &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), defaultRateBurst),
		enabled:  cfg.Enabled,
		log:      log,
	}
}

// SetWebhooks replaces the webhook URLs for a project.
func (d *Dispatcher) SetWebhooks(projectID string, urls []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.webhooks[projectID] = urls
}

// Send posts the event to every webhook of the owning project. Returns the
// join of per-hook failures; the caller treats any error as non-fatal.
func (d *Dispatcher) Send(ctx context.Context, project *event.Project, ev *event.ErrorEvent) error {
	d.mu.RLock()
	hooks := d.webhooks[project.ID]
	enabled := d.enabled
	d.mu.RUnlock()

	if !enabled || len(hooks) == 0 {
		// Fallback to logging when no delivery target is configured.
		d.log.Info("new event",
			"project_id", project.ID,
			"type", ev.Type,
			"message", ev.Message,
			"group_hash", ev.GroupHash)
		return nil
	}

	if !d.limiter.Allow() {
		d.log.Warn("notification rate limit exceeded, dropping",
			"project_id", project.ID,
			"event_id", ev.ID)
		return nil
	}

	body, err := json.Marshal(Payload{
		ProjectID:   project.ID,
		ProjectName: project.Name,
		Event:       ev,
	})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	var errs []error
	for _, url := range hooks {
		if err := d.post(ctx, url, body); err != nil {
			errs = append(errs, fmt.Errorf("webhook %s: %w", url, err))
			continue
		}
		d.log.Debug("notification sent", "project_id", project.ID, "webhook", url)
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
