package mlm

import (
	"screenlm/domain/core"
)

// DiagnosticKind names the silent adjustments the accessors can make.
type DiagnosticKind string

const (
	DiagInterceptAdded   DiagnosticKind = "intercept_added"
	DiagInterceptRemoved DiagnosticKind = "intercept_removed"
)

// DiagnosticEvent records an adjustment made while reconciling a
// caller-supplied design with the fitted model.
type DiagnosticEvent struct {
	ID      core.EventID   `json:"id"`
	Kind    DiagnosticKind `json:"kind"`
	Side    string         `json:"side"` // "X" or "Z"
	Message string         `json:"message"`
	At      core.Timestamp `json:"at"`
}

// DiagnosticSink receives events from the accessors. A nil sink drops them.
type DiagnosticSink func(DiagnosticEvent)

// CollectDiagnostics returns a sink that appends into the given slice,
// for callers that want to inspect adjustments after the fact.
func CollectDiagnostics(into *[]DiagnosticEvent) DiagnosticSink {
	return func(ev DiagnosticEvent) {
		*into = append(*into, ev)
	}
}

func emit(sink DiagnosticSink, kind DiagnosticKind, side, message string) {
	if sink == nil {
		return
	}
	sink(DiagnosticEvent{
		ID:      core.EventID(core.NewID()),
		Kind:    kind,
		Side:    side,
		Message: message,
		At:      core.Now(),
	})
}
