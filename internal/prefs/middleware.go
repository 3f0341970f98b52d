// internal/prefs/middleware.go
package prefs

import (
	"net/http"

	"github.com/user/coursestate/internal/types"
)

// Middleware installs a request-scoped preference cache and resolves the
// requesting user's timezone/language preferences onto the context, where
// handlers pick them up via FromContext. The requesting user is taken from
// the X-User header; authentication happens upstream.
func (c *Client) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithCache(r.Context())
		username := types.Username(r.Header.Get("X-User"))
		ctx = WithResolved(ctx, c.Resolve(ctx, username))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
