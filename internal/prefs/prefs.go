// internal/prefs/prefs.go
package prefs

import (
	"context"
	"errors"

	"golang.org/x/sync/singleflight"

	"github.com/user/coursestate/internal/types"
)

var (
	// ErrUserNotFound is reported by providers when the user has no
	// preference record.
	ErrUserNotFound = errors.New("prefs: user not found")

	// ErrInternal is reported by providers for backend failures.
	ErrInternal = errors.New("prefs: backend error")
)

// Provider-side names for the two preferences surfaced to request handlers.
const (
	timezoneSetting = "time_zone"
	languageSetting = "pref-lang"
)

// Client resolves a user's timezone/language preferences. Lookups for the
// same user are collapsed via singleflight, and results are memoized in the
// request-scoped cache when one is present on the context.
type Client struct {
	provider types.PreferenceProvider
	group    singleflight.Group
}

func NewClient(provider types.PreferenceProvider) *Client {
	return &Client{provider: provider}
}

// Resolve returns the user's timezone and language preferences. Anonymous
// users, missing users, and backend failures all read as "no preference";
// resolution never fails a request.
func (c *Client) Resolve(ctx context.Context, username types.Username) types.UserPrefs {
	var out types.UserPrefs
	if c == nil || c.provider == nil || username.IsAnonymous() {
		return out
	}

	if cached, ok := cacheLookup(ctx, username); ok {
		return cached
	}

	v, err, _ := c.group.Do(string(username), func() (any, error) {
		return c.provider.Preferences(ctx, username)
	})
	if err != nil {
		return out
	}

	settings := v.(map[string]string)
	if tz, ok := settings[timezoneSetting]; ok {
		out.Timezone = &tz
	}
	if lang, ok := settings[languageSetting]; ok {
		out.Language = &lang
	}

	cacheStore(ctx, username, out)
	return out
}
