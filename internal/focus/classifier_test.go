package focus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func at(ms int64) time.Time { return t0.Add(time.Duration(ms) * time.Millisecond) }

func newTestClassifier(t *testing.T, cfg Config) *Classifier {
	t.Helper()
	c, err := NewClassifier(cfg, t0)
	require.NoError(t, err)
	return c
}

var (
	neutral    = Measurement{EyeAspectRatio: 0.35}
	lookDown   = Measurement{HeadPose: HeadPose{Pitch: 25}, EyeAspectRatio: 0.35}
	lookAside  = Measurement{HeadPose: HeadPose{Yaw: -40}, EyeAspectRatio: 0.35}
	lookUp     = Measurement{HeadPose: HeadPose{Pitch: -20}, EyeAspectRatio: 0.35}
	eyesClosed = Measurement{EyeAspectRatio: 0.10}
)

func TestNewClassifier_StartsUnknown(t *testing.T) {
	c := newTestClassifier(t, DefaultConfig())

	st := c.State()
	assert.Equal(t, Unknown, st.Current)
	assert.Equal(t, t0, st.EnteredAt)
}

func TestNewClassifier_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DrowsyEARThreshold = 0

	_, err := NewClassifier(cfg, t0)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestClassify_FocusedWithoutDelay(t *testing.T) {
	cfg := DefaultConfig()
	cases := []Measurement{
		neutral,
		{HeadPose: HeadPose{Pitch: cfg.DistractionPitchThreshold, Yaw: cfg.RelaxingYawThreshold}, EyeAspectRatio: cfg.DrowsyEARThreshold},
		{HeadPose: HeadPose{Pitch: UpwardLookPitch, Yaw: -cfg.RelaxingYawThreshold}, EyeAspectRatio: 0.3},
		{HeadPose: HeadPose{Pitch: 10, Yaw: 12, Roll: 40}, EyeAspectRatio: 0.28},
	}

	for _, m := range cases {
		c := newTestClassifier(t, cfg)
		res := c.Classify(m, t0)
		assert.Equal(t, Focused, res.State, "measurement %+v", m)
	}
}

func TestClassify_HoldDurations(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		name string
		m    Measurement
		hold time.Duration
		want State
	}{
		{"drowsy", eyesClosed, cfg.DrowsyHold, Drowsy},
		{"distracted", lookDown, cfg.DistractionHold, Distracted},
		{"relaxing sideways", lookAside, cfg.RelaxingHold, Relaxing},
		{"relaxing upward", lookUp, cfg.RelaxingHold, Relaxing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClassifier(t, cfg)

			assert.Equal(t, Focused, c.Classify(tt.m, t0).State)
			assert.Equal(t, Focused, c.Classify(tt.m, t0.Add(tt.hold/2)).State)
			assert.Equal(t, Focused, c.Classify(tt.m, t0.Add(tt.hold-time.Millisecond)).State)
			assert.Equal(t, tt.want, c.Classify(tt.m, t0.Add(tt.hold)).State)
			assert.Equal(t, tt.want, c.Classify(tt.m, t0.Add(2*tt.hold)).State)
		})
	}
}

func TestClassify_ZeroHoldConfirmsImmediately(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DistractionHold = 0
	c := newTestClassifier(t, cfg)

	assert.Equal(t, Distracted, c.Classify(lookDown, t0).State)
}

func TestClassify_DrowsyBeatsDistracted(t *testing.T) {
	cfg := DefaultConfig()
	c := newTestClassifier(t, cfg)
	both := Measurement{HeadPose: HeadPose{Pitch: 40, Yaw: 50}, EyeAspectRatio: 0.05}

	c.Classify(both, t0)
	assert.Equal(t, Drowsy, c.State().Current)

	res := c.Classify(both, t0.Add(cfg.DrowsyHold))
	assert.Equal(t, Drowsy, res.State)
}

func TestClassify_DistractedBeatsRelaxing(t *testing.T) {
	c := newTestClassifier(t, DefaultConfig())

	c.Classify(Measurement{HeadPose: HeadPose{Pitch: 30, Yaw: 45}, EyeAspectRatio: 0.3}, t0)
	assert.Equal(t, Distracted, c.State().Current)
}

func TestClassify_BriefGlanceDoesNotAlert(t *testing.T) {
	c := newTestClassifier(t, DefaultConfig())

	var ts int64
	for i := 0; i < 100; i++ {
		m := neutral
		if i%10 == 0 {
			m = lookAside
		}
		res := c.Classify(m, at(ts))
		assert.Equal(t, Focused, res.State, "frame %d", i)
		ts += 33
	}
}

func TestClassify_EnteredAtResetsOnlyOnChange(t *testing.T) {
	c := newTestClassifier(t, DefaultConfig())

	c.Classify(lookDown, at(100))
	assert.Equal(t, at(100), c.State().EnteredAt)

	c.Classify(lookDown, at(500))
	assert.Equal(t, at(100), c.State().EnteredAt)

	c.Classify(neutral, at(900))
	assert.Equal(t, Focused, c.State().Current)
	assert.Equal(t, at(900), c.State().EnteredAt)
}

func TestReset_ReturnsToUnknown(t *testing.T) {
	cfg := DefaultConfig()
	c := newTestClassifier(t, cfg)

	c.Classify(eyesClosed, t0)
	c.Classify(eyesClosed, t0.Add(cfg.DrowsyHold))
	require.Equal(t, Drowsy, c.State().Current)

	later := t0.Add(time.Hour)
	c.Reset(later)

	st := c.State()
	assert.Equal(t, Unknown, st.Current)
	assert.Equal(t, later, st.EnteredAt)
	assert.Equal(t, Unknown, st.Confirmed)

	// The hold starts over after a reset.
	assert.Equal(t, Focused, c.Classify(eyesClosed, later).State)
}

func TestClassify_Scenario(t *testing.T) {
	c := newTestClassifier(t, DefaultConfig())

	res := c.Classify(neutral, at(0))
	assert.Equal(t, Focused, res.State)
	assert.InDelta(t, 1.0, res.Confidence, 1e-9)

	for ts := int64(0); ts < 15000; ts += 250 {
		res = c.Classify(lookDown, at(ts))
		require.Equal(t, Focused, res.State, "t=%d", ts)
	}
	res = c.Classify(lookDown, at(14999))
	assert.Equal(t, Focused, res.State)

	res = c.Classify(lookDown, at(15000))
	assert.Equal(t, Distracted, res.State)
	assert.InDelta(t, 25.0/45.0, res.Confidence, 1e-9)

	res = c.Classify(eyesClosed, at(15001))
	assert.Equal(t, Focused, res.State)
	assert.Equal(t, Drowsy, c.State().Current)
	assert.Equal(t, at(15001), c.State().EnteredAt)

	res = c.Classify(eyesClosed, at(15001+25000))
	assert.Equal(t, Drowsy, res.State)
	assert.InDelta(t, 0.6, res.Confidence, 1e-9)
	assert.Equal(t, eyesClosed.EyeAspectRatio, res.EyeAspectRatio)
}

func TestClassify_LastConfirmedFallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Fallback = FallbackLastConfirmed
	c := newTestClassifier(t, cfg)

	// Nothing confirmed yet: behaves like FallbackFocused.
	assert.Equal(t, Focused, c.Classify(lookDown, at(0)).State)
	assert.Equal(t, Distracted, c.Classify(lookDown, at(15000)).State)

	// Drowsy is not yet confirmed, so Distracted is held instead of Focused.
	assert.Equal(t, Distracted, c.Classify(eyesClosed, at(15001)).State)
	assert.Equal(t, Distracted, c.Classify(eyesClosed, at(30000)).State)
	assert.Equal(t, Drowsy, c.Classify(eyesClosed, at(40001)).State)

	// Focus is still regained immediately.
	assert.Equal(t, Focused, c.Classify(neutral, at(40002)).State)
	assert.Equal(t, Focused, c.Classify(lookAside, at(40003)).State)
}

func TestClassify_ResultCarriesInput(t *testing.T) {
	c := newTestClassifier(t, DefaultConfig())
	m := Measurement{HeadPose: HeadPose{Pitch: 3, Yaw: -4, Roll: 7}, EyeAspectRatio: 0.31}

	res := c.Classify(m, t0)
	assert.Equal(t, m.HeadPose, res.HeadPose)
	assert.Equal(t, m.EyeAspectRatio, res.EyeAspectRatio)
}

func TestUnknownResult(t *testing.T) {
	res := UnknownResult()
	assert.Equal(t, Unknown, res.State)
	assert.Equal(t, 0.1, res.Confidence)
	assert.Zero(t, res.HeadPose)
}
