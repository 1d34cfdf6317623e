package common

import (
	"fmt"
)

// MiddlewareChain represents an ordered chain of middleware.
// Order is insertion order; there is no reordering or deduplication.
type MiddlewareChain []Middleware

// NewMiddlewareChain creates a new middleware chain
func NewMiddlewareChain(middlewares ...Middleware) MiddlewareChain {
	return middlewares
}

// Append adds middleware to the end of the chain
func (c MiddlewareChain) Append(middlewares ...Middleware) MiddlewareChain {
	result := make(MiddlewareChain, 0, len(c)+len(middlewares))
	result = append(result, c...)
	return append(result, middlewares...)
}

// Prepend adds middleware to the beginning of the chain
func (c MiddlewareChain) Prepend(middlewares ...Middleware) MiddlewareChain {
	result := make(MiddlewareChain, len(middlewares)+len(c))
	copy(result, middlewares)
	copy(result[len(middlewares):], c)
	return result
}

// Validate reports the first entry that cannot be invoked.
func (c MiddlewareChain) Validate() error {
	for i, m := range c {
		if m == nil {
			return fmt.Errorf("%w at index %d", ErrNilMiddleware, i)
		}
		if f, ok := m.(MiddlewareFunc); ok && f == nil {
			return fmt.Errorf("%w at index %d", ErrNilMiddleware, i)
		}
	}
	return nil
}

// Execute runs the chain around terminal for one call.
//
// Units run strictly one at a time starting at index 0. Each unit receives a
// continuation bound to the next unit, and the last unit's continuation runs
// terminal, whose value is stored in res's result slot before control returns
// up the chain. The returned error is the first unit's return value; errors
// from downstream units reach the caller unless a unit handles the error
// returned by its own next().
//
// Before invoking each unit the request context is checked, so a cancelled or
// expired call stops at the next link. A nil terminal ends the chain without
// setting a result.
func (c MiddlewareChain) Execute(req *Request, res *Response, terminal TerminalFunc) error {
	index := -1

	var dispatch func(i int) error
	dispatch = func(i int) error {
		if i <= index {
			return ErrNextCalledMultipleTimes
		}
		index = i

		if err := req.Context().Err(); err != nil {
			return err
		}

		if i == len(c) {
			if terminal == nil {
				return nil
			}
			result, err := terminal(req, res)
			if err != nil {
				return err
			}
			return res.setResult(result)
		}

		return c[i].Handle(req, res, func() error {
			return dispatch(i + 1)
		})
	}

	return dispatch(0)
}

// Then binds the chain to terminal.
// The chain is copied, so later changes to c do not affect the returned Handler.
func (c MiddlewareChain) Then(terminal TerminalFunc) Handler {
	frozen := c.Append()
	return func(req *Request, res *Response) error {
		return frozen.Execute(req, res, terminal)
	}
}
