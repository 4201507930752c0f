package pipeline

import (
	"context"

	"github.com/armorclaw/catcher/pkg/event"
	"github.com/armorclaw/catcher/pkg/metrics"
	"github.com/armorclaw/catcher/pkg/sourcemap"
	"github.com/armorclaw/catcher/pkg/stack"
	"github.com/armorclaw/catcher/pkg/useragent"
)

// composeBrowser assembles the canonical event for the browser family:
// normalize the stack, remap through the source map when the report names a
// file and build revision, fingerprint, classify the client.
func (p *Pipeline) composeBrowser(ctx context.Context, project *event.Project, report *event.BrowserReport) *event.ErrorEvent {
	frames := stack.Parse(report.Stack)
	loc := report.ErrorLocation

	artifact := p.resolveArtifact(ctx, project.ID, loc)
	if artifact != nil {
		loc = sourcemap.ApplyToLocation(loc, artifact.Remap(loc.Line, loc.Column))

		for i, frame := range frames {
			frames[i] = sourcemap.ApplyToFrame(frame, artifact.Remap(frame.Line, frame.Column))
		}
	}

	var client *event.ClientInfo
	if report.Navigator.UserAgent != "" {
		info := useragent.Detect(report.Navigator.UserAgent)
		info = useragent.MergeViewport(info, report.Navigator.Frame.Width, report.Navigator.Frame.Height)
		client = &info
	}

	return &event.ErrorEvent{
		ID:            event.NewID(),
		Type:          event.TypeBrowser,
		Tag:           event.TagJavascript,
		Message:       report.Message,
		ErrorLocation: loc,
		Location:      report.Location,
		GroupHash:     event.GroupHash(report.Message),
		Stack:         frames,
		UserAgent:     client,
		Time:          report.Time / 1000, // client clocks report milliseconds
	}
}

// resolveArtifact obtains the source map artifact when the report carries
// enough to identify one. Returns nil when enrichment does not apply or the
// artifact is unavailable.
func (p *Pipeline) resolveArtifact(ctx context.Context, projectID string, loc event.ErrorLocation) *sourcemap.Artifact {
	if p.resolver == nil || loc.File == "" || loc.Revision == "" {
		metrics.Enrichment.WithLabelValues(metrics.EnrichmentSkipped).Inc()
		return nil
	}

	artifact := p.resolver.Resolve(ctx, projectID, loc.File, loc.Revision)
	if artifact == nil {
		metrics.Enrichment.WithLabelValues(metrics.EnrichmentUnavailable).Inc()
		return nil
	}

	metrics.Enrichment.WithLabelValues(metrics.EnrichmentResolved).Inc()
	return artifact
}

// composeServer assembles the event for the server-process family. The
// grouping hash keys on the source position instead of the message text,
// which for this family is often a generic fatal-error string.
func composeServer(report *event.ServerReport) *event.ErrorEvent {
	return &event.ErrorEvent{
		ID:            event.NewID(),
		Type:          event.TypeServer,
		Tag:           event.TagFatal,
		Message:       report.Message,
		ErrorLocation: report.ErrorLocation,
		Location:      event.PageLocation{Host: report.Domain},
		GroupHash:     event.LocationHash(report.ErrorLocation.File, report.ErrorLocation.Line),
		Stack:         report.Stack,
		Time:          report.Time,
	}
}
