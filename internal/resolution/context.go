// Package resolution holds the per-request fact state and the merge algebra
// that combines resolver contributions into it.
package resolution

import (
	"github.com/google/uuid"

	"github.com/axonops/fact-resolver/internal/facts"
)

// Output is a single proposed fact contribution from a resolver (or from the
// caller's seed inputs). A zero Confidence is treated as the default of 1.0.
type Output struct {
	FactID     facts.ID
	Value      any
	Source     string
	Note       string
	Confidence float64
}

// EffectiveConfidence returns the output's confidence with the default
// applied.
func (o Output) EffectiveConfidence() float64 {
	if o.Confidence == 0 {
		return 1.0
	}
	return o.Confidence
}

// Context is the mutable per-resolution store: the current fact state and an
// ordered trace of executed resolver names. It is created empty per request,
// mutated by the merge engine, and discarded once the response is built.
type Context struct {
	ID    string
	State map[facts.ID]*facts.Value
	Trace []string
}

// NewContext creates an empty resolution context with a fresh id.
func NewContext() *Context {
	return &Context{
		ID:    uuid.New().String(),
		State: make(map[facts.ID]*facts.Value),
	}
}

// Has reports whether a fact is present, regardless of its status.
func (c *Context) Has(id facts.ID) bool {
	_, ok := c.State[id]
	return ok
}

// AddTrace appends an executed resolver name to the trace.
func (c *Context) AddTrace(name string) {
	c.Trace = append(c.Trace, name)
}

// HasAll reports whether every given fact is present.
func (c *Context) HasAll(ids []facts.ID) bool {
	for _, id := range ids {
		if !c.Has(id) {
			return false
		}
	}
	return true
}
