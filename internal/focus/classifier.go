// Package focus classifies per-frame head pose and eye measurements into a
// debounced focus state.
//
// A Classifier is not safe for concurrent use. Callers feed it serially, one
// measurement per frame, with a non-decreasing timestamp.
package focus

import (
	"math"
	"time"
)

// HeadPose is head rotation in degrees.
type HeadPose struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Roll  float64 `json:"roll"`
}

// Measurement is what the upstream estimator produces for one frame.
type Measurement struct {
	HeadPose
	EyeAspectRatio float64 `json:"eye_aspect_ratio"`
}

// DetectionResult is the classifier output for one frame.
type DetectionResult struct {
	State          State    `json:"state"`
	Confidence     float64  `json:"confidence"`
	HeadPose       HeadPose `json:"head_pose"`
	EyeAspectRatio float64  `json:"eye_aspect_ratio"`
}

// ClassifierState is the classifier's memory between frames.
type ClassifierState struct {
	Current   State     // Latest candidate
	EnteredAt time.Time // When Current last changed
	Confirmed State     // Last state emitted on its own merit; Unknown if none
}

type Classifier struct {
	cfg   Config
	state ClassifierState
}

// NewClassifier validates cfg and returns a classifier in the Unknown state.
func NewClassifier(cfg Config, now time.Time) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Classifier{cfg: cfg}
	c.Reset(now)
	return c, nil
}

func (c *Classifier) Config() Config { return c.cfg }

func (c *Classifier) State() ClassifierState { return c.state }

// Reset returns the classifier to Unknown with a fresh entry time.
func (c *Classifier) Reset(now time.Time) {
	c.state = ClassifierState{Current: Unknown, EnteredAt: now, Confirmed: Unknown}
}

// Classify updates the classifier with one frame and returns the emitted state.
func (c *Classifier) Classify(m Measurement, now time.Time) DetectionResult {
	candidate := c.candidate(m)

	if candidate != c.state.Current {
		c.state.Current = candidate
		c.state.EnteredAt = now
	}
	held := now.Sub(c.state.EnteredAt)

	emitted := c.fallback()
	if candidate == Focused || held >= c.cfg.hold(candidate) {
		emitted = candidate
		c.state.Confirmed = candidate
	}

	return DetectionResult{
		State:          emitted,
		Confidence:     Confidence(c.cfg, m.HeadPose, m.EyeAspectRatio, emitted),
		HeadPose:       m.HeadPose,
		EyeAspectRatio: m.EyeAspectRatio,
	}
}

// candidate applies the immediate-state rule. Order is by severity so that
// closed eyes win over a simultaneous looking-down reading.
func (c *Classifier) candidate(m Measurement) State {
	switch {
	case m.EyeAspectRatio < c.cfg.DrowsyEARThreshold:
		return Drowsy
	case m.Pitch > c.cfg.DistractionPitchThreshold:
		return Distracted
	case math.Abs(m.Yaw) > c.cfg.RelaxingYawThreshold || m.Pitch < UpwardLookPitch:
		return Relaxing
	default:
		return Focused
	}
}

func (c *Classifier) fallback() State {
	if c.cfg.Fallback == FallbackLastConfirmed && c.state.Confirmed != Unknown {
		return c.state.Confirmed
	}
	return Focused
}

// UnknownResult is emitted when no face was found in a frame. Producing it
// does not touch any classifier.
func UnknownResult() DetectionResult {
	return DetectionResult{State: Unknown, Confidence: minConfidence}
}
