// Package stack normalizes runtime-supplied stack traces into ordered
// structured frames. This is the single seam that absorbs the per-runtime
// variance in raw stack shape: downstream components only ever see
// event.StackFrame.
package stack

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/armorclaw/catcher/pkg/event"
)

// Catchers either pre-parse the stack into frame objects or forward the raw
// Error.stack text. The text shapes in the wild are V8 ("at fn (file:l:c)")
// and Gecko ("fn@file:l:c").
var (
	v8Frame    = regexp.MustCompile(`^at\s+(?:(.+?)\s+)?\(?([^()\s]+?):(\d+):(\d+)\)?$`)
	geckoFrame = regexp.MustCompile(`^(.*?)@(.+?):(\d+):(\d+)$`)
)

// Parse converts a raw stack into ordered frames, outer call site first.
// Input order is preserved; lines that match no known shape are dropped.
// Parse is pure and never fails: unusable input yields an empty slice.
func Parse(raw json.RawMessage) []event.StackFrame {
	if len(raw) == 0 {
		return nil
	}

	var frames []event.StackFrame
	if err := json.Unmarshal(raw, &frames); err == nil {
		return frames
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return nil
	}
	return parseText(text)
}

func parseText(text string) []event.StackFrame {
	var frames []event.StackFrame

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if frame, ok := parseLine(line); ok {
			frames = append(frames, frame)
		}
	}

	return frames
}

func parseLine(line string) (event.StackFrame, bool) {
	if m := v8Frame.FindStringSubmatch(line); m != nil {
		return frameOf(m[1], m[2], m[3], m[4]), true
	}
	if m := geckoFrame.FindStringSubmatch(line); m != nil {
		return frameOf(m[1], m[2], m[3], m[4]), true
	}
	return event.StackFrame{}, false
}

func frameOf(fn, file, line, col string) event.StackFrame {
	lineNo, _ := strconv.Atoi(line)
	colNo, _ := strconv.Atoi(col)

	return event.StackFrame{
		Function: fn,
		File:     file,
		Line:     lineNo,
		Column:   colNo,
	}
}
