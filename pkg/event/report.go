package event

import "encoding/json"

// BrowserReport is the raw payload sent by the in-page catcher over the
// socket transport. It exists only for the duration of one pipeline run.
type BrowserReport struct {
	Token         string          `json:"token"`
	Message       string          `json:"message"`
	ErrorLocation ErrorLocation   `json:"error_location"`
	Location      PageLocation    `json:"location"`
	Stack         json.RawMessage `json:"stack,omitempty"`
	Time          int64           `json:"time"`
	Navigator     Navigator       `json:"navigator"`
}

// Navigator carries the reporting browser's self-description.
type Navigator struct {
	UserAgent string `json:"ua"`
	Frame     Frame  `json:"frame"`
}

// Frame is the viewport size at the moment of the error.
type Frame struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ServerReport is the raw payload posted by server-process catchers. Server
// runtimes report resolved source positions directly, so no enrichment runs
// for this family.
type ServerReport struct {
	Token         string        `json:"token"`
	Message       string        `json:"message"`
	ErrorLocation ErrorLocation `json:"errorLocation"`
	Stack         []StackFrame  `json:"stack,omitempty"`
	Time          int64         `json:"time"`
	Domain        string        `json:"domain,omitempty"`
}
