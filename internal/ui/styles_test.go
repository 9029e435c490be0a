package ui

import (
	"os"
	"strings"
	"testing"

	"github.com/deepesh-sr/Trustplay/internal/model"
)

func TestRenderRespectsSetColor(t *testing.T) {
	defer SetColor(ColorEnabled())

	SetColor(false)
	if got := RenderRoomStatus(model.RoomResolved); got != "resolved" {
		t.Fatalf("plain = %q", got)
	}

	SetColor(true)
	got := RenderRoomStatus(model.RoomResolved)
	if !strings.HasPrefix(got, "\x1b[38;5;114m") || !strings.HasSuffix(got, "resolved\x1b[0m") {
		t.Fatalf("colored = %q", got)
	}
	if RenderAccent("") != "" {
		t.Fatal("empty strings must stay empty")
	}
}

func TestRenderVerdict(t *testing.T) {
	defer SetColor(ColorEnabled())
	SetColor(false)

	tests := []struct {
		claim model.Claim
		want  string
	}{
		{model.Claim{}, "pending"},
		{model.Claim{Resolved: true, Accepted: true}, "accepted"},
		{model.Claim{Resolved: true}, "rejected"},
	}
	for _, tt := range tests {
		if got := RenderVerdict(&tt.claim); got != tt.want {
			t.Errorf("RenderVerdict(%+v) = %q, want %q", tt.claim, got, tt.want)
		}
	}
}

func TestShouldUseColor(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	tests := []struct {
		name string
		env  map[string]string
		want bool
	}{
		{"no tty", nil, false},
		{"forced", map[string]string{"CLICOLOR_FORCE": "1"}, true},
		{"no color wins", map[string]string{"CLICOLOR_FORCE": "1", "NO_COLOR": "1"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"NO_COLOR", "CLICOLOR_FORCE", "CLICOLOR"} {
				t.Setenv(k, tt.env[k])
			}
			if got := ShouldUseColor(f); got != tt.want {
				t.Fatalf("ShouldUseColor = %v, want %v", got, tt.want)
			}
		})
	}
	if Width(f, 80) != 80 {
		t.Fatal("Width of a regular file should fall back")
	}
}
