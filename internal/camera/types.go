// Package camera holds the value types shared by every camera backend and the
// session controller: facing, flash, aspect ratios, orientation, session state,
// capture results and the persisted configuration snapshot.
package camera

import (
	"fmt"
	"strings"
)

// Facing is the direction a camera faces relative to the screen.
type Facing int

const (
	// FacingBack faces away from the screen.
	FacingBack Facing = iota
	// FacingFront faces the same direction as the screen.
	FacingFront
)

func (f Facing) String() string {
	switch f {
	case FacingBack:
		return "back"
	case FacingFront:
		return "front"
	default:
		return fmt.Sprintf("facing(%d)", int(f))
	}
}

// ParseFacing parses "back" or "front".
func ParseFacing(s string) (Facing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "back", "":
		return FacingBack, nil
	case "front":
		return FacingFront, nil
	default:
		return FacingBack, fmt.Errorf("invalid facing: %s (must be one of: back, front)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (f Facing) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Facing) UnmarshalText(b []byte) error {
	v, err := ParseFacing(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Flash is the flash control mode.
type Flash int

const (
	FlashOff Flash = iota
	FlashOn
	FlashTorch
	FlashAuto
	FlashRedEye
)

var flashNames = map[Flash]string{
	FlashOff:    "off",
	FlashOn:     "on",
	FlashTorch:  "torch",
	FlashAuto:   "auto",
	FlashRedEye: "red-eye",
}

func (f Flash) String() string {
	if s, ok := flashNames[f]; ok {
		return s
	}
	return fmt.Sprintf("flash(%d)", int(f))
}

// Valid reports whether f is a known mode.
func (f Flash) Valid() bool {
	_, ok := flashNames[f]
	return ok
}

// ParseFlash parses a flash mode name.
func ParseFlash(s string) (Flash, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "red_eye" || name == "redeye" {
		name = "red-eye"
	}
	for f, n := range flashNames {
		if n == name {
			return f, nil
		}
	}
	return FlashOff, fmt.Errorf("invalid flash mode: %s (must be one of: off, on, torch, auto, red-eye)", s)
}

// MarshalText implements encoding.TextMarshaler.
func (f Flash) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Flash) UnmarshalText(b []byte) error {
	v, err := ParseFlash(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Orientation is a display rotation in degrees: 0, 90, 180 or 270.
type Orientation int

const (
	Orientation0   Orientation = 0
	Orientation90  Orientation = 90
	Orientation180 Orientation = 180
	Orientation270 Orientation = 270
)

// Valid reports whether o is one of the four right angles.
func (o Orientation) Valid() bool {
	switch o {
	case Orientation0, Orientation90, Orientation180, Orientation270:
		return true
	}
	return false
}

// Landscape reports whether the display is rotated a quarter turn.
func (o Orientation) Landscape() bool { return o%180 != 0 }

// SessionState is the lifecycle state owned by the session controller.
type SessionState int

const (
	StateClosed SessionState = iota
	StateOpening
	StateOpened
	StateCapturing
)

func (s SessionState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpened:
		return "opened"
	case StateCapturing:
		return "capturing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Snapshot is the configuration that survives a backend swap or a host
// pause/resume cycle. It is replayed verbatim onto a fresh backend.
type Snapshot struct {
	Facing      Facing      `json:"facing" yaml:"facing"`
	AspectRatio AspectRatio `json:"aspect_ratio" yaml:"aspect_ratio"`
	AutoFocus   bool        `json:"auto_focus" yaml:"auto_focus"`
	Flash       Flash       `json:"flash" yaml:"flash"`
}

// DefaultSnapshot returns the configuration a new session starts with.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		Facing:      FacingBack,
		AspectRatio: DefaultAspectRatio,
		AutoFocus:   true,
		Flash:       FlashAuto,
	}
}
