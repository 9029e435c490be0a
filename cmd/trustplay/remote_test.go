package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// isolateConfig points the user config dir at a fresh temp dir.
func isolateConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	return dir
}

// remote runs `trustplay remote args...` and returns its stdout.
func remote(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append([]string{"remote"}, args...))
	err := rootCmd.ExecuteContext(t.Context())
	return out.String(), err
}

func mustRemote(t *testing.T, args ...string) string {
	t.Helper()
	out, err := remote(t, args...)
	if err != nil {
		t.Fatalf("trustplay remote %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func TestRemotesFile(t *testing.T) {
	home := isolateConfig(t)

	empty, err := loadRemotesConfig()
	if err != nil {
		t.Fatalf("load without file: %v", err)
	}
	if empty.Remotes == nil || len(empty.Remotes) != 0 || empty.Active != "" {
		t.Fatalf("expected empty config, got %+v", empty)
	}

	in := RemotesConfig{
		Active: "prod",
		Remotes: map[string]Remote{
			"prod": {URL: "prod.example.com:9090", Token: "tok_abc", NATSURL: "nats://prod:4222", Identity: "org"},
		},
	}
	if err := saveRemotesConfig(in); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := loadRemotesConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Active != "prod" || got.Remotes["prod"] != in.Remotes["prod"] {
		t.Fatalf("reloaded %+v, want %+v", got, in)
	}

	path := filepath.Join(home, ".config", "trustplay", "remotes.toml")
	for p, want := range map[string]os.FileMode{path: 0o600, filepath.Dir(path): 0o700} {
		info, err := os.Stat(p)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if got := info.Mode().Perm(); got != want {
			t.Errorf("%s mode = %04o, want %04o", p, got, want)
		}
	}
}

func TestRemoteTransport(t *testing.T) {
	tests := map[string]string{
		"":                      "http",
		"http://localhost:8080": "http",
		"https://tp.example":    "http",
		"localhost:9090":        "grpc",
	}
	for url, want := range tests {
		if got := remoteTransport(url); got != want {
			t.Errorf("remoteTransport(%q) = %q, want %q", url, got, want)
		}
	}
}

func TestRemoteCommands(t *testing.T) {
	isolateConfig(t)

	if out := mustRemote(t, "list"); !strings.Contains(out, "No remotes configured") {
		t.Fatalf("empty list:\n%s", out)
	}

	out := mustRemote(t, "add", "local", "localhost:9090")
	if !strings.Contains(out, "via grpc") {
		t.Fatalf("add output: %s", out)
	}
	mustRemote(t, "add", "local", "localhost:9091", "--as", "org")
	mustRemote(t, "add", "edge", "http://edge:8080")
	if out := mustRemote(t, "use", "local"); out != "Active remote: local\n" {
		t.Fatalf("use output: %q", out)
	}

	out = mustRemote(t, "list")
	if !strings.Contains(out, "* local") || strings.Contains(out, "* edge") {
		t.Errorf("list active marker:\n%s", out)
	}
	if strings.Index(out, "edge") > strings.Index(out, "local") {
		t.Errorf("list not sorted:\n%s", out)
	}

	out = mustRemote(t, "show")
	for _, want := range []string{"localhost:9091", "(active)", "Identity:   org", "Transport:  grpc"} {
		if !strings.Contains(out, want) {
			t.Errorf("show missing %q:\n%s", want, out)
		}
	}
	if out := mustRemote(t, "show", "edge"); strings.Contains(out, "(active)") || !strings.Contains(out, "Transport:  http") {
		t.Errorf("show edge:\n%s", out)
	}

	mustRemote(t, "remove", "local")
	cfg, err := loadRemotesConfig()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := cfg.Remotes["local"]; ok || cfg.Active != "" {
		t.Fatalf("after remove: %+v", cfg)
	}
}

func TestRemoteJSONMasksToken(t *testing.T) {
	isolateConfig(t)
	const secret = "tok_verylongsecret"

	mustRemote(t, "add", "prod", "https://tp.example", "--token", secret, "--nats", "nats://tp:4222")
	mustRemote(t, "use", "prod")

	var list []remoteView
	if err := json.Unmarshal([]byte(mustRemote(t, "list", "--json")), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	want := remoteView{
		Name:      "prod",
		URL:       "https://tp.example",
		Transport: "http",
		Token:     "tok_very**********",
		NATSURL:   "nats://tp:4222",
		Active:    true,
	}
	if len(list) != 1 || list[0] != want {
		t.Fatalf("list = %+v, want [%+v]", list, want)
	}

	for _, args := range [][]string{{"show"}, {"list"}, {"show", "--json"}} {
		if out := mustRemote(t, args...); strings.Contains(out, secret) {
			t.Errorf("remote %s leaked the token:\n%s", strings.Join(args, " "), out)
		}
	}

	cfg, _ := loadRemotesConfig()
	if cfg.Remotes["prod"].Token != secret {
		t.Fatalf("stored token = %q", cfg.Remotes["prod"].Token)
	}
}

func TestRemoteErrors(t *testing.T) {
	tests := [][]string{
		{"use", "ghost"},
		{"remove", "ghost"},
		{"show"},
		{"show", "ghost"},
		{"add", "only-name"},
	}
	for _, args := range tests {
		t.Run(strings.Join(args, "_"), func(t *testing.T) {
			isolateConfig(t)
			if _, err := remote(t, args...); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}
