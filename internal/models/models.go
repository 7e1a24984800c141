package models

import (
	"fmt"
	"time"

	"focus-service/internal/focus"
)

// FrameRequest is one frame's measurement posted by the estimator.
type FrameRequest struct {
	Pitch          float64 `json:"pitch"`
	Yaw            float64 `json:"yaw"`
	Roll           float64 `json:"roll"`
	EyeAspectRatio float64 `json:"eye_aspect_ratio"`
	// FaceDetected defaults to true when omitted.
	FaceDetected *bool `json:"face_detected,omitempty"`
	// TimestampMs is the client's monotonic clock in milliseconds. Zero is a
	// valid reading; server receive time is used only when it is omitted.
	TimestampMs *int64 `json:"timestamp_ms,omitempty"`
}

func (r FrameRequest) HasFace() bool {
	return r.FaceDetected == nil || *r.FaceDetected
}

func (r FrameRequest) Measurement() focus.Measurement {
	return focus.Measurement{
		HeadPose:       focus.HeadPose{Pitch: r.Pitch, Yaw: r.Yaw, Roll: r.Roll},
		EyeAspectRatio: r.EyeAspectRatio,
	}
}

// Thresholds is the wire and file form of focus.Config. Zero fields mean
// "keep the base value" when applied.
type Thresholds struct {
	DrowsyEARThreshold        float64 `json:"drowsy_ear_threshold,omitempty" yaml:"drowsy_ear_threshold"`
	DrowsyHoldMs              int64   `json:"drowsy_hold_ms,omitempty" yaml:"drowsy_hold_ms"`
	DistractionPitchThreshold float64 `json:"distraction_pitch_threshold,omitempty" yaml:"distraction_pitch_threshold"`
	DistractionHoldMs         int64   `json:"distraction_hold_ms,omitempty" yaml:"distraction_hold_ms"`
	RelaxingYawThreshold      float64 `json:"relaxing_yaw_threshold,omitempty" yaml:"relaxing_yaw_threshold"`
	RelaxingHoldMs            int64   `json:"relaxing_hold_ms,omitempty" yaml:"relaxing_hold_ms"`
	Fallback                  string  `json:"fallback,omitempty" yaml:"fallback"`
}

func ThresholdsFromConfig(cfg focus.Config) Thresholds {
	return Thresholds{
		DrowsyEARThreshold:        cfg.DrowsyEARThreshold,
		DrowsyHoldMs:              cfg.DrowsyHold.Milliseconds(),
		DistractionPitchThreshold: cfg.DistractionPitchThreshold,
		DistractionHoldMs:         cfg.DistractionHold.Milliseconds(),
		RelaxingYawThreshold:      cfg.RelaxingYawThreshold,
		RelaxingHoldMs:            cfg.RelaxingHold.Milliseconds(),
		Fallback:                  cfg.Fallback.String(),
	}
}

// Apply overlays the non-zero fields on base and validates the result.
func (t Thresholds) Apply(base focus.Config) (focus.Config, error) {
	cfg := base
	if t.DrowsyEARThreshold != 0 {
		cfg.DrowsyEARThreshold = t.DrowsyEARThreshold
	}
	if t.DrowsyHoldMs != 0 {
		cfg.DrowsyHold = time.Duration(t.DrowsyHoldMs) * time.Millisecond
	}
	if t.DistractionPitchThreshold != 0 {
		cfg.DistractionPitchThreshold = t.DistractionPitchThreshold
	}
	if t.DistractionHoldMs != 0 {
		cfg.DistractionHold = time.Duration(t.DistractionHoldMs) * time.Millisecond
	}
	if t.RelaxingYawThreshold != 0 {
		cfg.RelaxingYawThreshold = t.RelaxingYawThreshold
	}
	if t.RelaxingHoldMs != 0 {
		cfg.RelaxingHold = time.Duration(t.RelaxingHoldMs) * time.Millisecond
	}
	if t.Fallback != "" {
		f, err := focus.ParseFallback(t.Fallback)
		if err != nil {
			return focus.Config{}, err
		}
		cfg.Fallback = f
	}

	if err := cfg.Validate(); err != nil {
		return focus.Config{}, fmt.Errorf("apply thresholds: %w", err)
	}
	return cfg, nil
}

type CreateSessionRequest struct {
	Preset     string      `json:"preset,omitempty"`
	Thresholds *Thresholds `json:"thresholds,omitempty"`
}

type SessionInfo struct {
	ID         string                 `json:"id"`
	Preset     string                 `json:"preset,omitempty"`
	StartedAt  time.Time              `json:"started_at"`
	Thresholds Thresholds             `json:"thresholds"`
	Latest     *focus.DetectionResult `json:"latest,omitempty"`
}

// StateSnapshot is the latest result of a session, as cached.
type StateSnapshot struct {
	SessionID string                `json:"session_id"`
	Result    focus.DetectionResult `json:"result"`
	FrameTime time.Time             `json:"frame_time"`
	UpdatedAt time.Time             `json:"updated_at"`
}

type HealthStatus struct {
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	Version        string    `json:"version"`
	ActiveSessions int       `json:"active_sessions"`
	QueueDepth     int       `json:"queue_depth"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
