package focus

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrInvalidConfig is returned by Validate for out-of-range thresholds.
var ErrInvalidConfig = errors.New("invalid focus config")

// UpwardLookPitch is the fixed pitch (degrees) below which the head is
// considered tilted up, an alternate trigger for Relaxing.
const UpwardLookPitch = -15.0

// Fallback selects what is emitted while a non-focused candidate is still
// inside its hold window.
type Fallback int

const (
	// FallbackFocused emits Focused for every unconfirmed candidate.
	FallbackFocused Fallback = iota
	// FallbackLastConfirmed keeps emitting the last confirmed state.
	FallbackLastConfirmed
)

func (f Fallback) String() string {
	switch f {
	case FallbackFocused:
		return "focused"
	case FallbackLastConfirmed:
		return "last_confirmed"
	default:
		return fmt.Sprintf("fallback(%d)", int(f))
	}
}

// ParseFallback accepts "focused", "last_confirmed" or "" (FallbackFocused).
func ParseFallback(name string) (Fallback, error) {
	switch name {
	case "", "focused":
		return FallbackFocused, nil
	case "last_confirmed":
		return FallbackLastConfirmed, nil
	default:
		return FallbackFocused, fmt.Errorf("%w: unknown fallback %q", ErrInvalidConfig, name)
	}
}

// Config holds the thresholds and hold durations of a Classifier.
// It is fixed for the lifetime of an instance.
type Config struct {
	// Eyes
	DrowsyEARThreshold float64       // EAR below this means eyes closed
	DrowsyHold         time.Duration // Continuous time before Drowsy is confirmed

	// Looking down
	DistractionPitchThreshold float64 // Degrees
	DistractionHold           time.Duration

	// Looking sideways (or up, see UpwardLookPitch)
	RelaxingYawThreshold float64 // Degrees, compared against |yaw|
	RelaxingHold         time.Duration

	Fallback Fallback
}

// DefaultConfig returns the reference thresholds.
func DefaultConfig() Config {
	return Config{
		DrowsyEARThreshold: 0.25,
		DrowsyHold:         25 * time.Second,

		DistractionPitchThreshold: 20,
		DistractionHold:           15 * time.Second,

		RelaxingYawThreshold: 30,
		RelaxingHold:         30 * time.Second,

		Fallback: FallbackFocused,
	}
}

// Validate reports the first out-of-range field.
func (c Config) Validate() error {
	switch {
	case c.DrowsyEARThreshold <= 0:
		return fmt.Errorf("%w: drowsy EAR threshold must be positive, got %v", ErrInvalidConfig, c.DrowsyEARThreshold)
	case c.DistractionPitchThreshold <= 0:
		return fmt.Errorf("%w: distraction pitch threshold must be positive, got %v", ErrInvalidConfig, c.DistractionPitchThreshold)
	case c.RelaxingYawThreshold <= 0:
		return fmt.Errorf("%w: relaxing yaw threshold must be positive, got %v", ErrInvalidConfig, c.RelaxingYawThreshold)
	case c.DrowsyHold < 0:
		return fmt.Errorf("%w: drowsy hold must not be negative, got %v", ErrInvalidConfig, c.DrowsyHold)
	case c.DistractionHold < 0:
		return fmt.Errorf("%w: distraction hold must not be negative, got %v", ErrInvalidConfig, c.DistractionHold)
	case c.RelaxingHold < 0:
		return fmt.Errorf("%w: relaxing hold must not be negative, got %v", ErrInvalidConfig, c.RelaxingHold)
	case c.Fallback != FallbackFocused && c.Fallback != FallbackLastConfirmed:
		return fmt.Errorf("%w: unknown fallback %d", ErrInvalidConfig, int(c.Fallback))
	}
	return nil
}

// hold returns the confirmation time for a candidate state.
func (c Config) hold(s State) time.Duration {
	switch s {
	case Drowsy:
		return c.DrowsyHold
	case Distracted:
		return c.DistractionHold
	case Relaxing:
		return c.RelaxingHold
	default:
		return 0
	}
}

// Preset names for study modes.
const (
	PresetFocusedStudy = "focused_study"
	PresetDeepWork     = "deep_work"
	PresetLightStudy   = "light_study"
)

func withHolds(drowsy, distracted, relaxing time.Duration) Config {
	cfg := DefaultConfig()
	cfg.DrowsyHold = drowsy
	cfg.DistractionHold = distracted
	cfg.RelaxingHold = relaxing
	return cfg
}

var presets = map[string]Config{
	PresetFocusedStudy: withHolds(20*time.Second, 10*time.Second, 25*time.Second),
	PresetDeepWork:     withHolds(30*time.Second, 15*time.Second, 35*time.Second),
	PresetLightStudy:   withHolds(15*time.Second, 8*time.Second, 20*time.Second),
}

// Preset returns the named study-mode config.
func Preset(name string) (Config, bool) {
	cfg, ok := presets[name]
	return cfg, ok
}

// Presets returns a copy of all built-in presets.
func Presets() map[string]Config {
	out := make(map[string]Config, len(presets))
	for name, cfg := range presets {
		out[name] = cfg
	}
	return out
}

// PresetNames lists built-in preset names, sorted.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
