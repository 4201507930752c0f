// Package event defines the canonical error event record and the raw report
// shapes submitted by client runtimes.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies the client runtime family that produced a report.
type Type string

const (
	// TypeBrowser marks events caught by the in-page script catcher.
	TypeBrowser Type = "client"

	// TypeServer marks events reported by server-side processes.
	TypeServer Type = "server"
)

// Severity tags attached per runtime family.
const (
	TagJavascript = "javascript"
	TagFatal      = "fatal"
)

// Project is the owning entity a report is attributed to. Only the id and
// token are consumed by the ingestion pipeline; everything else lives in the
// management layer.
type Project struct {
	ID    string `json:"id"`
	Token string `json:"token"`
	Name  string `json:"name,omitempty"`
}

// StackFrame is one entry of a normalized stack trace. Function may be empty;
// order is outer call site first and is preserved through enrichment.
type StackFrame struct {
	Function string `json:"func,omitempty"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	Column   int    `json:"col"`
}

// ErrorLocation is the primary position of an error. Revision identifies the
// build whose source map can remap the minified coordinates.
type ErrorLocation struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Column   int    `json:"col"`
	Function string `json:"func,omitempty"`
	Revision string `json:"revision,omitempty"`
}

// PageLocation describes where in the client's world the error happened:
// the page URL for browser reports, the request target for server reports.
type PageLocation struct {
	URL    string `json:"url,omitempty"`
	Origin string `json:"origin,omitempty"`
	Host   string `json:"host,omitempty"`
	Path   string `json:"path,omitempty"`
	Port   string `json:"port,omitempty"`
}

// Browser holds facts derived from the user-agent string.
type Browser struct {
	Name       string `json:"name,omitempty"`
	Version    string `json:"version,omitempty"`
	Engine     string `json:"engine,omitempty"`
	Capability string `json:"capability,omitempty"`
}

// Device holds OS and form-factor facts, plus the viewport when the report
// carried one.
type Device struct {
	OS        string `json:"os,omitempty"`
	OSVersion string `json:"osversion,omitempty"`
	Type      string `json:"type,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
}

// ClientInfo is the classified user agent attached to browser events.
type ClientInfo struct {
	Browser   Browser `json:"browser"`
	Device    Device  `json:"device"`
	UserAgent string  `json:"userAgent"`
}

// ErrorEvent is the canonical persisted record. It is created once per
// accepted report and never mutated afterwards; ownership passes to the event
// store on persist.
type ErrorEvent struct {
	ID            string        `json:"id"`
	Type          Type          `json:"type"`
	Tag           string        `json:"tag"`
	Message       string        `json:"message"`
	ErrorLocation ErrorLocation `json:"errorLocation"`
	Location      PageLocation  `json:"location,omitempty"`
	GroupHash     string        `json:"groupHash"`
	Stack         []StackFrame  `json:"stack,omitempty"`
	UserAgent     *ClientInfo   `json:"userAgent,omitempty"`
	Time          int64         `json:"time"`
}

// NewID returns a fresh event identifier.
func NewID() string {
	return uuid.NewString()
}

// Now returns the current time at seconds granularity, the resolution events
// are stored with.
func Now() int64 {
	return time.Now().Unix()
}
