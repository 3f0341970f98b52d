// internal/prefs/provider.go
package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/user/coursestate/internal/types"
)

// HTTPProvider fetches preferences from the platform's user API.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPProvider builds a provider for the user API at baseURL. When
// apiKey is non-empty it is sent as a bearer token on every request.
func NewHTTPProvider(baseURL, apiKey string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Preferences fetches the named settings for one user. A 404 maps to
// ErrUserNotFound; any other failure maps to ErrInternal.
func (p *HTTPProvider) Preferences(ctx context.Context, username types.Username) (map[string]string, error) {
	endpoint := fmt.Sprintf("%s/api/user/v1/preferences/%s", p.baseURL, url.PathEscape(string(username)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: unexpected status %d", ErrInternal, resp.StatusCode)
	}

	var settings map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&settings); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrInternal, err)
	}
	return settings, nil
}
