// Package persist implements the per-session config file (§6
// "Persistent state"): the last scene path and camera position,
// round-tripped through TOML.
//
// Grounded on noisetorch-ng's config.go: same XDG-config-dir
// resolution, same decode-to-struct/encode-from-struct shape, same
// BurntSushi/toml dependency.
package persist

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/go-gl/mathgl/mgl32"
)

// FileName is the session config's file name within its config
// directory.
const FileName = "session.toml"

// Session is the persistent state the orchestrator restores on
// startup and updates on exit (§6): the last-opened scene and camera
// position, so a resumed session reopens where the user left off.
type Session struct {
	ScenePath           string
	LastCameraPositionX float32
	LastCameraPositionY float32
	LastCameraPositionZ float32
}

// CameraPosition returns the stored position as an mgl32.Vec3.
func (s Session) CameraPosition() mgl32.Vec3 {
	return mgl32.Vec3{s.LastCameraPositionX, s.LastCameraPositionY, s.LastCameraPositionZ}
}

// SetCameraPosition stores pos into the flat TOML-friendly fields.
func (s *Session) SetCameraPosition(pos mgl32.Vec3) {
	s.LastCameraPositionX = pos.X()
	s.LastCameraPositionY = pos.Y()
	s.LastCameraPositionZ = pos.Z()
}

// Dir resolves the session config directory, honoring
// XDG_CONFIG_HOME and falling back to ~/.config, same as
// noisetorch-ng's configDir().
func Dir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, "gekko-renderer")
}

// Path is the absolute path to the session file within Dir().
func Path() string {
	return filepath.Join(Dir(), FileName)
}

// Load reads the session file at Path(). A missing file returns a
// zero-value Session and no error, so a first run starts clean instead
// of failing.
func Load() (Session, error) {
	path := Path()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Session{}, nil
	}

	var s Session
	if _, err := toml.DecodeFile(path, &s); err != nil {
		return Session{}, fmt.Errorf("persist: decode %s: %w", path, err)
	}
	return s, nil
}

// Save writes s to Path(), creating the config directory if needed.
func Save(s Session) error {
	dir := Dir()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("persist: create config dir %s: %w", dir, err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(&s); err != nil {
		return fmt.Errorf("persist: encode session: %w", err)
	}
	if err := os.WriteFile(Path(), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("persist: write %s: %w", Path(), err)
	}
	return nil
}
