// Package ui holds the terminal styling shared by the trustplay CLI.
package ui

import (
	"fmt"
	"sync/atomic"

	"github.com/deepesh-sr/Trustplay/internal/model"
)

// ANSI256 color codes.
const (
	colorAccent  = 74  // blue
	colorCmd     = 250 // light gray
	colorMuted   = 245 // medium gray
	colorSuccess = 114 // green
	colorWarn    = 179 // amber
	colorFailure = 167 // red
)

var enabled atomic.Bool

func init() { enabled.Store(true) }

// SetColor turns styling on or off globally.
func SetColor(on bool) { enabled.Store(on) }

// ColorEnabled reports the current setting.
func ColorEnabled() bool { return enabled.Load() }

func paint(code int, s string) string {
	if !enabled.Load() || s == "" {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

func RenderAccent(s string) string  { return paint(colorAccent, s) }
func RenderMuted(s string) string   { return paint(colorMuted, s) }
func RenderCommand(s string) string { return paint(colorCmd, s) }
func RenderSuccess(s string) string { return paint(colorSuccess, s) }
func RenderWarn(s string) string    { return paint(colorWarn, s) }
func RenderFailure(s string) string { return paint(colorFailure, s) }

// RenderRoomStatus colors a room status by how far along it is.
func RenderRoomStatus(s model.RoomStatus) string {
	switch s {
	case model.RoomOpen:
		return RenderAccent(string(s))
	case model.RoomInProgress:
		return RenderWarn(string(s))
	case model.RoomResolved:
		return RenderSuccess(string(s))
	default:
		return RenderMuted(string(s))
	}
}

// RenderVerdict describes a claim's outcome.
func RenderVerdict(c *model.Claim) string {
	switch {
	case !c.Resolved:
		return RenderWarn("pending")
	case c.Accepted:
		return RenderSuccess("accepted")
	default:
		return RenderFailure("rejected")
	}
}
