// Package common provides shared types and utilities used across the SRPC framework.
package common

// NextFunc resumes the middleware chain at the next unit.
// It returns only after every downstream unit, including the terminal handler,
// has completed. Not calling it halts the chain at the current unit.
type NextFunc func() error

// Middleware is a unit in a middleware chain.
// Code that runs before next() is pre-processing and runs outer-to-inner;
// code that runs after next() returns is post-processing and runs inner-to-outer.
// A middleware that does not call next() short-circuits the rest of the chain.
type Middleware interface {
	Handle(req *Request, res *Response, next NextFunc) error
}

// MiddlewareFunc adapts an ordinary function to the Middleware interface.
type MiddlewareFunc func(req *Request, res *Response, next NextFunc) error

// Handle calls f(req, res, next).
func (f MiddlewareFunc) Handle(req *Request, res *Response, next NextFunc) error {
	return f(req, res, next)
}

// TerminalFunc is the final link of a chain (a query or mutation).
// Its return value is stored in the response's result slot.
type TerminalFunc func(req *Request, res *Response) (any, error)

// Handler is a chain that has been bound to its terminal handler.
type Handler func(req *Request, res *Response) error

// Ctx is the context slot shared by every unit of one chain execution.
// It is passed by reference and is not safe for concurrent use.
type Ctx map[string]any

// Get returns the value stored under key.
func (c Ctx) Get(key string) (any, bool) {
	v, ok := c[key]
	return v, ok
}

// Set stores value under key.
func (c Ctx) Set(key string, value any) {
	c[key] = value
}

// Delete removes key.
func (c Ctx) Delete(key string) {
	delete(c, key)
}

// CtxValue returns the value stored under key if it exists and has type T.
func CtxValue[T any](c Ctx, key string) (T, bool) {
	v, ok := c[key].(T)
	return v, ok
}
