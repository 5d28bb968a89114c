package broute

import (
	"net/http"
)

// Middleware for cross-cutting concerns with buffered responses, in the classic wrapping shape.
type Middleware func(BareHandler) BareHandler

// Stage is one unit of request processing in a [Chain]. It calls next to continue the chain.
type Stage interface {
	Process(w ResponseWriter, r *http.Request, next BareHandler) error
}

// StageFunc allows casting a function to a [Stage].
type StageFunc func(w ResponseWriter, r *http.Request, next BareHandler) error

// Process implements [Stage].
func (f StageFunc) Process(w ResponseWriter, r *http.Request, next BareHandler) error {
	return f(w, r, next)
}

// ConditionalStage is a stage that only runs once its predicate holds for the request. Until then it is deferred
// while the rest of the chain proceeds.
type ConditionalStage interface {
	Stage
	Applies(r *http.Request) bool
}

type whenStage struct {
	Stage
	pred func(*http.Request) bool
}

func (s whenStage) Applies(r *http.Request) bool { return s.pred(r) }

// When makes s conditional on pred.
func When(pred func(*http.Request) bool, s Stage) ConditionalStage {
	return whenStage{Stage: s, pred: pred}
}

// FromMiddleware turns wrapping middleware into a stage.
func FromMiddleware(mw Middleware) Stage {
	return StageFunc(func(w ResponseWriter, r *http.Request, next BareHandler) error {
		return mw(next).ServeBareBHTTP(w, r)
	})
}

// Chain runs stages in order until they are exhausted and then calls the terminal handler. A chain is consumed by
// serving exactly one request.
//
// Conditional stages whose predicate does not hold when they are reached are moved to a pending list. On every
// advance the pending list is checked first, in insertion order, and the first stage whose predicate now holds
// runs. Stages that never become eligible are skipped. The pending list is checked once per advance, so every
// advance visits each stage at most once.
type Chain struct {
	main     []Stage
	pending  []ConditionalStage
	terminal BareHandler
}

// NewChain inits a chain that ends in terminal.
func NewChain(terminal BareHandler) *Chain {
	return &Chain{terminal: terminal}
}

// Add appends a stage.
func (c *Chain) Add(s Stage) *Chain {
	c.main = append(c.main, s)
	return c
}

// AddMany appends the stages in the given order.
func (c *Chain) AddMany(ss ...Stage) *Chain {
	c.main = append(c.main, ss...)
	return c
}

// Prepend inserts a stage in front of all others.
func (c *Chain) Prepend(s Stage) *Chain {
	c.main = append([]Stage{s}, c.main...)
	return c
}

// Shift removes and returns the first stage, or nil when there is none.
func (c *Chain) Shift() Stage {
	if len(c.main) == 0 {
		return nil
	}

	s := c.main[0]
	c.main = c.main[1:]

	return s
}

// Len returns the number of stages that have not run yet, deferred ones included.
func (c *Chain) Len() int { return len(c.main) + len(c.pending) }

// ServeBareBHTTP advances the chain by one stage.
func (c *Chain) ServeBareBHTTP(w ResponseWriter, r *http.Request) error {
	for i, s := range c.pending {
		if s.Applies(r) {
			c.pending = append(c.pending[:i:i], c.pending[i+1:]...)
			return s.Process(w, r, c)
		}
	}

	for len(c.main) > 0 {
		s := c.Shift()

		cs, ok := s.(ConditionalStage)
		if !ok || cs.Applies(r) {
			return s.Process(w, r, c)
		}

		c.pending = append(c.pending, cs)
	}

	if c.terminal == nil {
		return nil
	}

	return c.terminal.ServeBareBHTTP(w, r)
}
