package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// runConfigSet executes the set command with stdout captured.
func runConfigSet(t *testing.T, key, value string) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	old := os.Stdout
	os.Stdout = w
	runErr := configSetCmd.RunE(configSetCmd, []string{key, value})
	w.Close()
	os.Stdout = old
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if runErr != nil {
		t.Fatal(runErr)
	}
	return string(out)
}

func TestConfigSetMasksSecrets(t *testing.T) {
	oldPath := configPath
	configPath = filepath.Join(t.TempDir(), "config.json")
	defer func() { configPath = oldPath }()

	out := runConfigSet(t, "preferences.api_key", "topsecret")
	if strings.Contains(out, "topsecret") {
		t.Errorf("secret value printed in the clear: %q", out)
	}
	if !strings.Contains(out, "preferences.api_key = ***") {
		t.Errorf("expected masked echo, got %q", out)
	}

	out = runConfigSet(t, "listen_addr", ":9090")
	if !strings.Contains(out, "listen_addr = :9090") {
		t.Errorf("non-secret value should echo as-is, got %q", out)
	}
}
