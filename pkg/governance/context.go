package governance

import (
	"fmt"
	"time"
)

// Context describes one operation performed against a managed resource:
// the operation kind, the scope it happens in, the caller-supplied
// attribute map and the time the operation was observed.
//
// Contexts are immutable value objects, constructed once per evaluation
// request. NewContext copies the attribute map so later caller mutation
// cannot leak into an evaluation.
type Context struct {
	Kind       OperationKind  `json:"kind"`
	Scope      Scope          `json:"scope"`
	Attributes map[string]any `json:"attributes"`
	Timestamp  time.Time      `json:"timestamp"`
}

// NewContext builds an evaluation context. A zero timestamp is pinned to
// the current time.
func NewContext(kind OperationKind, scope Scope, attributes map[string]any, ts time.Time) *Context {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	attrs := make(map[string]any, len(attributes))
	for k, v := range attributes {
		attrs[k] = v
	}
	return &Context{
		Kind:       kind,
		Scope:      scope,
		Attributes: attrs,
		Timestamp:  ts,
	}
}

// Validate checks the context before any validator or rule is invoked.
// A malformed context fails fast with a ValidationError.
func (c *Context) Validate() error {
	if c == nil {
		return &ValidationError{Subject: "context", Errors: []string{"context is nil"}}
	}
	var errs []string
	if !c.Kind.Valid() {
		errs = append(errs, fmt.Sprintf("unknown operation kind %q", c.Kind))
	}
	if err := c.Scope.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Timestamp.IsZero() {
		errs = append(errs, "timestamp is required")
	}
	if len(errs) > 0 {
		return &ValidationError{Subject: "context", Errors: errs}
	}
	return nil
}

// Attribute returns the named attribute and whether it is present.
func (c *Context) Attribute(name string) (any, bool) {
	v, ok := c.Attributes[name]
	return v, ok
}
