package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventPassStart      EventType = "pass_start"
	EventPassEnd        EventType = "pass_end"
	EventNodeUpdate     EventType = "node_update"
	EventCallbackFailed EventType = "callback_failed"
	EventArtifactClash  EventType = "artifact_clash"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	PassID    string    `json:"pass_id"`
}

// PassEvent marks the beginning or the end of a pass.
type PassEvent struct {
	EventBase
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
	Canceled bool          `json:"canceled,omitempty"`
}

// NodeEvent reports the table a node produced in a pass.
type NodeEvent struct {
	EventBase
	NodeID   NodeID             `json:"node_id"`
	NodeName string             `json:"node_name"`
	Kind     NodeKind           `json:"kind"`
	Counts   map[EntryState]int `json:"counts"`

	// Invocations is the number of user callback calls made while updating the node.
	Invocations int `json:"invocations"`
}

// CallbackEvent reports a failed user callback.
type CallbackEvent struct {
	EventBase
	NodeID   NodeID `json:"node_id"`
	NodeName string `json:"node_name"`
	Position int    `json:"position"`
	Err      error  `json:"-"`
}

// LifecycleHooks defines callbacks for driver observability.
// Hooks run synchronously on the goroutine that produced the event and must be safe
// for concurrent use.
type LifecycleHooks struct {
	OnPassStart      func(context.Context, *PassEvent)
	OnPassEnd        func(context.Context, *PassEvent)
	OnNodeUpdate     func(context.Context, *NodeEvent)
	OnCallbackFailed func(context.Context, *CallbackEvent)
	OnArtifactClash  func(context.Context, *Diagnostic)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnPassStart:      chain(h.OnPassStart, other.OnPassStart),
		OnPassEnd:        chain(h.OnPassEnd, other.OnPassEnd),
		OnNodeUpdate:     chain(h.OnNodeUpdate, other.OnNodeUpdate),
		OnCallbackFailed: chain(h.OnCallbackFailed, other.OnCallbackFailed),
		OnArtifactClash:  chain(h.OnArtifactClash, other.OnArtifactClash),
	}
}

func chain[E any](a, b func(context.Context, *E)) func(context.Context, *E) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *E) {
		a(ctx, e)
		b(ctx, e)
	}
}
