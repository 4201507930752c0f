// Package pipeline orchestrates the processing of one error report:
// authenticate the project token, compose the canonical event, persist it
// and fan out notifications. Each report is an independent unit of work;
// a failure is isolated to that report and classified by the error taxonomy
// in errors.go so the transport can answer appropriately.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/armorclaw/catcher/pkg/event"
	"github.com/armorclaw/catcher/pkg/logger"
	"github.com/armorclaw/catcher/pkg/metrics"
	"github.com/armorclaw/catcher/pkg/sourcemap"
)

// ProjectStore resolves project tokens. Implemented externally; the pipeline
// only consumes id and token.
type ProjectStore interface {
	// GetByToken returns the project owning the token, or nil when the
	// token is unknown.
	GetByToken(ctx context.Context, token string) (*event.Project, error)
}

// EventStore persists composed events, keyed by project.
type EventStore interface {
	Add(ctx context.Context, projectID string, ev *event.ErrorEvent) error
}

// Dispatcher delivers notifications about a persisted event. Delivery is
// best effort: the pipeline logs failures and moves on.
type Dispatcher interface {
	Send(ctx context.Context, project *event.Project, ev *event.ErrorEvent) error
}

// Pipeline wires the composer to its collaborators.
type Pipeline struct {
	projects ProjectStore
	events   EventStore
	notifier Dispatcher
	resolver *sourcemap.Resolver
	log      *logger.Logger
}

// Config holds the pipeline's collaborators. Projects and Events are
// required; Notifier and Resolver may be nil (notifications disabled,
// enrichment disabled).
type Config struct {
	Projects ProjectStore
	Events   EventStore
	Notifier Dispatcher
	Resolver *sourcemap.Resolver
	Logger   *logger.Logger
}

// New creates a pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Projects == nil {
		return nil, fmt.Errorf("project store is required")
	}
	if cfg.Events == nil {
		return nil, fmt.Errorf("event store is required")
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Global().WithComponent("pipeline")
	}

	return &Pipeline{
		projects: cfg.Projects,
		events:   cfg.Events,
		notifier: cfg.Notifier,
		resolver: cfg.Resolver,
		log:      log,
	}, nil
}

// ProcessBrowser runs the full pipeline for a browser-script report,
// including source map enrichment and client detection.
func (p *Pipeline) ProcessBrowser(ctx context.Context, report *event.BrowserReport) error {
	return p.run(ctx, report.Token, func(project *event.Project) *event.ErrorEvent {
		return p.composeBrowser(ctx, project, report)
	})
}

// ProcessServer runs the pipeline for a server-process report. This family
// reports resolved positions directly, so enrichment and client detection
// are skipped.
func (p *Pipeline) ProcessServer(ctx context.Context, report *event.ServerReport) error {
	return p.run(ctx, report.Token, func(project *event.Project) *event.ErrorEvent {
		return composeServer(report)
	})
}

// run is the shared orchestration core: authenticate -> compose -> persist
// -> notify. Compose never fails (enrichment degrades); persistence failure
// is fatal to the report; notification failure is logged and swallowed.
func (p *Pipeline) run(ctx context.Context, token string, compose func(*event.Project) *event.ErrorEvent) error {
	start := time.Now()
	defer func() {
		metrics.ProcessingSeconds.Observe(time.Since(start).Seconds())
	}()

	project, err := p.projects.GetByToken(ctx, token)
	if err != nil {
		return fmt.Errorf("project lookup: %w", err)
	}
	if project == nil {
		return ErrAccessDenied
	}

	ev := compose(project)
	log := p.log.WithProject(project.ID).WithReportID(ev.ID)

	if err := p.events.Add(ctx, project.ID, ev); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	metrics.EventsPersisted.WithLabelValues(string(ev.Type)).Inc()

	p.notify(ctx, log, project, ev)

	log.Debug("report processed",
		"type", ev.Type,
		"group_hash", ev.GroupHash)
	return nil
}

// notify fans out to the dispatcher. A failed dispatch must not roll back
// persistence or fail the report.
func (p *Pipeline) notify(ctx context.Context, log *logger.Logger, project *event.Project, ev *event.ErrorEvent) {
	if p.notifier == nil {
		return
	}

	if err := p.notifier.Send(ctx, project, ev); err != nil {
		metrics.NotifyFailures.Inc()
		log.Error("notification dispatch failed", "error", err)
	}
}
