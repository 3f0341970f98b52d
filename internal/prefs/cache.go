// internal/prefs/cache.go
package prefs

import (
	"context"
	"sync"

	"github.com/user/coursestate/internal/types"
)

type cacheCtxKey struct{}
type prefsCtxKey struct{}

// requestCache memoizes resolved preferences for the lifetime of a single
// request. The cache itself is mutable, so installing it once on the
// context lets every lookup below that point share it.
type requestCache struct {
	mu      sync.Mutex
	entries map[types.Username]types.UserPrefs
}

// WithCache returns a context carrying a fresh request-scoped cache.
func WithCache(ctx context.Context) context.Context {
	return context.WithValue(ctx, cacheCtxKey{}, &requestCache{
		entries: make(map[types.Username]types.UserPrefs),
	})
}

func cacheLookup(ctx context.Context, username types.Username) (types.UserPrefs, bool) {
	cache, ok := ctx.Value(cacheCtxKey{}).(*requestCache)
	if !ok {
		return types.UserPrefs{}, false
	}
	cache.mu.Lock()
	defer cache.mu.Unlock()
	p, ok := cache.entries[username]
	return p, ok
}

func cacheStore(ctx context.Context, username types.Username, p types.UserPrefs) {
	cache, ok := ctx.Value(cacheCtxKey{}).(*requestCache)
	if !ok {
		return
	}
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.entries[username] = p
}

// WithResolved stores already-resolved preferences on the context, where
// FromContext can retrieve them.
func WithResolved(ctx context.Context, p types.UserPrefs) context.Context {
	return context.WithValue(ctx, prefsCtxKey{}, p)
}

// FromContext returns the preferences resolved earlier in the request, or
// zero values if none were.
func FromContext(ctx context.Context) types.UserPrefs {
	p, _ := ctx.Value(prefsCtxKey{}).(types.UserPrefs)
	return p
}
