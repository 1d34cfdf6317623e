package common

import (
	"net/http"
	"sync"
)

// FromHTTP adapts net/http style middleware to the chain contract.
//
// The wrapped handler resumes the chain. If the foreign middleware wraps the
// writer or derives a new request context, downstream units write through that
// writer and see that context until the continuation returns. The foreign
// middleware must call its handler synchronously; if it never calls it the
// chain halts.
func FromHTTP(mw func(http.Handler) http.Handler) Middleware {
	return MiddlewareFunc(func(req *Request, res *Response, next NextFunc) error {
		var (
			called  bool
			nextErr error
		)

		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			prev := res.setWriter(w)
			restore := req.swapHTTPRequest(r)
			defer func() {
				restore()
				res.setWriter(prev)
			}()
			nextErr = next()
		})

		mw(inner).ServeHTTP(res.Writer(), req.HTTPRequest())

		if !called {
			return nil
		}
		return nextErr
	})
}

// ConnectFunc is callback-style middleware: it signals completion by calling
// next, passing a non-nil error to fail the call.
type ConnectFunc func(w http.ResponseWriter, r *http.Request, next func(error))

// FromConnect adapts callback-style middleware to the chain contract.
//
// The callback's completion is translated into the continuation: a nil error
// resumes the chain, a non-nil error fails it. The callback may come from
// another goroutine, in which case the adapter waits for it or for the request
// context to end; the chain itself always resumes on the caller's goroutine.
// If fn returns without calling back and has already written a response, the
// chain halts there.
func FromConnect(fn ConnectFunc) Middleware {
	return MiddlewareFunc(func(req *Request, res *Response, next NextFunc) error {
		done := make(chan error, 1)
		var once sync.Once
		callback := func(err error) {
			once.Do(func() {
				done <- err
			})
		}

		fn(res.Writer(), req.HTTPRequest(), callback)

		select {
		case err := <-done:
			if err != nil {
				return err
			}
			return next()
		default:
		}

		if res.Sent() {
			return nil
		}

		select {
		case err := <-done:
			if err != nil {
				return err
			}
			return next()
		case <-req.Context().Done():
			return req.Context().Err()
		}
	})
}
