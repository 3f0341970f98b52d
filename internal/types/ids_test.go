// internal/types/ids_test.go
package types

import "testing"

func TestBlockKeyRoundTrip(t *testing.T) {
	key := BlockKey{Course: "course-v1:TestX", BlockType: "problem", BlockID: "abc123"}

	parsed, err := ParseBlockKey(key.String())
	if err != nil {
		t.Fatal(err)
	}
	if parsed != key {
		t.Errorf("expected %v, got %v", key, parsed)
	}
}

func TestParseBlockKeyInvalid(t *testing.T) {
	cases := []string{"", "nocourse", "course/", "course/typeonly", "/problem@x"}
	for _, c := range cases {
		if _, err := ParseBlockKey(c); err == nil {
			t.Errorf("expected error for %q", c)
		}
	}
}

func TestIsAnonymous(t *testing.T) {
	if Username("alice").IsAnonymous() {
		t.Error("named user should not be anonymous")
	}
	if !Username("").IsAnonymous() {
		t.Error("empty username should be anonymous")
	}
	if !NewAnonymousUsername().IsAnonymous() {
		t.Error("minted anonymous username should be anonymous")
	}
}
