package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Cod-e-Codes/chatrooms/client/config"
	"github.com/Cod-e-Codes/chatrooms/shared"
)

func resetFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		configPath, serverURL, username, theme, password, logPath = "", "", "", "", "", ""
		register, saveConfig = false, false
	})
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(out.String()); got != shared.VersionInfo("chatrooms-client") {
		t.Errorf("unexpected version output %q", got)
	}
}

func TestThemesCommand(t *testing.T) {
	t.Setenv("CHATROOMS_CLIENT_CONFIG_DIR", t.TempDir())
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"themes"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	lines := strings.Fields(out.String())
	if len(lines) < 4 || lines[0] != "system" {
		t.Errorf("unexpected themes output %q", out.String())
	}
}

func TestResolveConfigOverrides(t *testing.T) {
	resetFlags(t)
	path := filepath.Join(t.TempDir(), "config.json")
	if err := config.SaveConfig(path, config.Config{Username: "alice", Theme: "slack"}); err != nil {
		t.Fatal(err)
	}

	configPath = path
	serverURL = "https://chat.example.com"
	cfg, gotPath, err := resolveConfig()
	if err != nil {
		t.Fatalf("resolveConfig failed: %v", err)
	}
	if gotPath != path {
		t.Errorf("expected path %s, got %s", path, gotPath)
	}
	if cfg.Username != "alice" || cfg.Theme != "slack" || cfg.ServerURL != "https://chat.example.com" {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestResolveConfigMissingFile(t *testing.T) {
	resetFlags(t)
	configPath = filepath.Join(t.TempDir(), "none.json")
	username = "bob"

	cfg, _, err := resolveConfig()
	if err != nil {
		t.Fatalf("a missing config file should not fail: %v", err)
	}
	if cfg.ServerURL != config.DefaultServerURL || cfg.Theme != config.DefaultTheme {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestResolveConfigRequiresUsername(t *testing.T) {
	resetFlags(t)
	configPath = filepath.Join(t.TempDir(), "none.json")
	if _, _, err := resolveConfig(); err == nil {
		t.Error("expected an error without a username")
	}
}

func TestResolvePassword(t *testing.T) {
	resetFlags(t)
	t.Setenv("CHATROOMS_PASSWORD", "")

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if _, err := w.WriteString("hunter2\n"); err != nil {
		t.Fatal(err)
	}
	w.Close()

	var prompt bytes.Buffer
	got, err := resolvePassword(r, &prompt)
	if err != nil || got != "hunter2" {
		t.Errorf("piped password = %q, %v", got, err)
	}
	if prompt.String() != "Password: " {
		t.Errorf("unexpected prompt %q", prompt.String())
	}

	t.Setenv("CHATROOMS_PASSWORD", "from-env")
	if got, _ := resolvePassword(r, &prompt); got != "from-env" {
		t.Errorf("expected env password, got %q", got)
	}

	password = "from-flag"
	if got, _ := resolvePassword(r, &prompt); got != "from-flag" {
		t.Errorf("expected flag password, got %q", got)
	}
}

func TestOpenLogCreatesDirectory(t *testing.T) {
	resetFlags(t)
	dir := filepath.Join(t.TempDir(), "missing", "nested")

	log, closer, err := openLog(dir)
	if err != nil {
		t.Fatalf("openLog failed: %v", err)
	}
	log.Info().Msg("started")
	closer.Close()

	data, err := os.ReadFile(filepath.Join(dir, "chatrooms-client.log"))
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), "started") {
		t.Errorf("unexpected log contents %q", data)
	}

	logPath = filepath.Join(t.TempDir(), "other", "client.log")
	_, closer, err = openLog(dir)
	if err != nil {
		t.Fatalf("openLog with --log-file failed: %v", err)
	}
	closer.Close()
}
