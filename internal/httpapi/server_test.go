// internal/httpapi/server_test.go
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/user/coursestate/internal/prefs"
	"github.com/user/coursestate/internal/state"
	"github.com/user/coursestate/internal/types"
)

type fakeProvider struct {
	settings map[string]string
}

func (f *fakeProvider) Preferences(_ context.Context, _ types.Username) (map[string]string, error) {
	return f.settings, nil
}

func setupServer(t *testing.T) *Server {
	t.Helper()
	db, err := state.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := state.Migrate(db); err != nil {
		t.Fatal(err)
	}
	store := state.NewClient(db, nil)
	prefsClient := prefs.NewClient(&fakeProvider{settings: map[string]string{
		"time_zone": "UTC",
		"pref-lang": "en",
	}})
	return NewServer(store, prefsClient)
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	req.Header.Set("X-User", "alice")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv := setupServer(t)

	w := doRequest(t, srv, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %s", resp["status"])
	}
}

func TestStateRoundTrip(t *testing.T) {
	srv := setupServer(t)
	path := "/api/state/course-v1:TestX/problem/b1"

	w := doRequest(t, srv, http.MethodPut, path, `{"position": 3}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 on set, got %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(t, srv, http.MethodGet, path, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on get, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		State map[string]any  `json:"state"`
		Prefs types.UserPrefs `json:"prefs"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if got := resp.State["position"]; got != float64(3) {
		t.Errorf("expected position 3, got %v", got)
	}
	if resp.Prefs.Timezone == nil || *resp.Prefs.Timezone != "UTC" {
		t.Errorf("expected resolved timezone in response, got %v", resp.Prefs.Timezone)
	}
}

func TestGetStateFieldFilter(t *testing.T) {
	srv := setupServer(t)
	path := "/api/state/course-v1:TestX/problem/b1"

	doRequest(t, srv, http.MethodPut, path, `{"a": 1, "b": 2}`)
	w := doRequest(t, srv, http.MethodGet, path+"?fields=a", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		State map[string]any `json:"state"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.State) != 1 {
		t.Errorf("expected only field a, got %v", resp.State)
	}
}

func TestGetStateMissingBlock(t *testing.T) {
	srv := setupServer(t)

	w := doRequest(t, srv, http.MethodGet, "/api/state/course-v1:TestX/problem/never", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for untouched block, got %d", w.Code)
	}
}

func TestDeleteThenGet(t *testing.T) {
	srv := setupServer(t)
	path := "/api/state/course-v1:TestX/problem/b1"

	doRequest(t, srv, http.MethodPut, path, `{"a": 1}`)
	w := doRequest(t, srv, http.MethodDelete, path, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 on delete, got %d", w.Code)
	}

	w = doRequest(t, srv, http.MethodGet, path, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}
}

func TestDeleteSpecificFields(t *testing.T) {
	srv := setupServer(t)
	path := "/api/state/course-v1:TestX/problem/b1"

	doRequest(t, srv, http.MethodPut, path, `{"a": 1, "b": 2}`)
	doRequest(t, srv, http.MethodDelete, path+"?fields=a", "")

	w := doRequest(t, srv, http.MethodGet, path, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		State map[string]any `json:"state"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if _, ok := resp.State["a"]; ok {
		t.Error("field a should have been deleted")
	}
	if got := resp.State["b"]; got != float64(2) {
		t.Errorf("expected b=2 preserved, got %v", got)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	srv := setupServer(t)
	statePath := "/api/state/course-v1:TestX/problem/b1"

	doRequest(t, srv, http.MethodPut, statePath, `{"a": 1}`)
	doRequest(t, srv, http.MethodDelete, statePath, "")

	w := doRequest(t, srv, http.MethodGet, "/api/history/course-v1:TestX/problem/b1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		History []struct {
			State map[string]any `json:"state"`
		} `json:"history"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.History) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(resp.History))
	}
	if resp.History[0].State != nil {
		t.Errorf("newest entry should be the cleared snapshot, got %v", resp.History[0].State)
	}
}

func TestHistoryMissingBlock(t *testing.T) {
	srv := setupServer(t)

	w := doRequest(t, srv, http.MethodGet, "/api/history/course-v1:TestX/problem/never", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for untouched block, got %d", w.Code)
	}
}

func TestSetStateInvalidBody(t *testing.T) {
	srv := setupServer(t)

	w := doRequest(t, srv, http.MethodPut, "/api/state/course-v1:TestX/problem/b1", "not json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid body, got %d", w.Code)
	}
}
