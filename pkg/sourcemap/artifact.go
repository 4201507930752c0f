// Package sourcemap resolves minified source coordinates back to original
// positions using build-time source maps. Resolution is best effort: a
// missing map, a failed download or an uncovered position degrades to the
// raw minified coordinates, never to a pipeline failure.
package sourcemap

import (
	"fmt"

	gosourcemap "github.com/go-sourcemap/sourcemap"

	"github.com/armorclaw/catcher/pkg/event"
)

// Artifact is the parsed source map for one built file at one revision.
// It is safe for concurrent use once constructed.
type Artifact struct {
	ProjectID string
	FileURL   string
	Revision  string

	consumer *gosourcemap.Consumer
}

// Position is the result of remapping one minified coordinate. Any field may
// be zero when the map does not cover the queried position.
type Position struct {
	Source string
	Name   string
	Line   int
	Column int
}

// NewArtifact parses a raw source map body into a queryable artifact.
func NewArtifact(projectID, fileURL, revision string, mapBody []byte) (*Artifact, error) {
	// Parse with no map URL: sources must come back exactly as written in
	// the map, not resolved against the bundle's location.
	consumer, err := gosourcemap.Parse("", mapBody)
	if err != nil {
		return nil, fmt.Errorf("parse source map for %s: %w", fileURL, err)
	}

	return &Artifact{
		ProjectID: projectID,
		FileURL:   fileURL,
		Revision:  revision,
		consumer:  consumer,
	}, nil
}

// Remap looks up the original position for a single minified coordinate.
// A miss returns the zero Position rather than an error.
func (a *Artifact) Remap(line, column int) Position {
	source, name, origLine, origCol, ok := a.consumer.Source(line, column)
	if !ok {
		return Position{}
	}

	return Position{
		Source: source,
		Name:   name,
		Line:   origLine,
		Column: origCol,
	}
}

// ApplyToLocation merges a resolved position into an error location. Each
// field is overwritten only when the resolved value is non-zero; otherwise
// the raw minified value is kept. Note this means a legitimately resolved
// line or column of 0 is discarded in favor of the raw value — long-standing
// wire behavior that dashboards depend on (see TestRemapZeroColumnKeptRaw).
func ApplyToLocation(loc event.ErrorLocation, pos Position) event.ErrorLocation {
	if pos.Source != "" {
		loc.File = pos.Source
	}
	if pos.Line != 0 {
		loc.Line = pos.Line
	}
	if pos.Column != 0 {
		loc.Column = pos.Column
	}
	if pos.Name != "" {
		loc.Function = pos.Name
	}
	return loc
}

// ApplyToFrame merges a resolved position into a stack frame under the same
// override-only-if-set policy as ApplyToLocation.
func ApplyToFrame(frame event.StackFrame, pos Position) event.StackFrame {
	if pos.Name != "" {
		frame.Function = pos.Name
	}
	if pos.Source != "" {
		frame.File = pos.Source
	}
	if pos.Line != 0 {
		frame.Line = pos.Line
	}
	if pos.Column != 0 {
		frame.Column = pos.Column
	}
	return frame
}
