package testutil

import (
	"net/http"

	"bizreg/pkg/requestcontext"
)

// WithSession adds a full caller session to the request context.
func WithSession(req *http.Request, session requestcontext.Session) *http.Request {
	return req.WithContext(requestcontext.WithSession(req.Context(), session))
}

// InjectSession is middleware that attaches session to every request. A nil
// session leaves requests unauthenticated.
func InjectSession(session *requestcontext.Session) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if session != nil {
				r = WithSession(r, *session)
			}
			next.ServeHTTP(w, r)
		})
	}
}
