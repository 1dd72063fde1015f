// Package trace provides a low-overhead annotation system for tracking
// query execution: a Collector accumulates timed Events as a query runs
// through annotate/plan/exec/reduce, and a Context gives each layer a
// narrow set of instrumentation points to report through without taking
// a hard dependency on any particular sink.
package trace

import (
	"sync"
	"time"
)

// Event names, grouped by the pipeline phase that emits them.
const (
	QueryInvoked  = "query/invoked"
	QueryPlanned  = "query/planned"
	QueryComplete = "query/completed"

	StageBegin    = "stage/begin"
	StageComplete = "stage/complete"

	InstructionOpened = "instruction/opened"

	MergeJoinExecuted = "merge-join/executed"

	TabledCallAcquired   = "tabled-call/acquired"
	TabledCallWouldBlock = "tabled-call/would-block"
	TabledCallSuspended  = "tabled-call/suspended"
	TabledCallPoisoned   = "tabled-call/poisoned"

	ReduceGrouped = "reduce/grouped"
)

// Event is a single annotation event emitted during query execution.
type Event struct {
	Name    string
	Start   time.Time
	End     time.Time
	Latency time.Duration
	Data    map[string]interface{}
}

// Handler processes events as they occur.
type Handler func(event Event)

// Collector accumulates events during one query's execution, optionally
// forwarding each one to a Handler as it arrives.
type Collector struct {
	mu      sync.Mutex
	enabled bool
	handler Handler
	events  []Event
}

// NewCollector returns a Collector that forwards to handler, or a
// disabled no-op collector if handler is nil.
func NewCollector(handler Handler) *Collector {
	return &Collector{enabled: handler != nil, handler: handler, events: make([]Event, 0, 64)}
}

// Add records event and forwards it to the handler, if any.
func (c *Collector) Add(event Event) {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
	if c.handler != nil {
		c.handler(event)
	}
}

// AddTiming records an event whose Start has already elapsed, filling in
// End and Latency from time.Now().
func (c *Collector) AddTiming(name string, start time.Time, data map[string]interface{}) {
	if !c.enabled {
		return
	}
	end := time.Now()
	c.Add(Event{Name: name, Start: start, End: end, Latency: end.Sub(start), Data: data})
}

// Events returns a copy of every event recorded so far.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Reset clears accumulated events without disabling the collector.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = c.events[:0]
}
