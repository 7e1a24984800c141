package session

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"focus-service/internal/focus"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := New("s1", focus.PresetDeepWork, focus.DefaultConfig(), t0, discardLogger())
	require.NoError(t, err)
	return s
}

func frame(ms int64, m focus.Measurement) Frame {
	return Frame{Measurement: m, FaceDetected: true, Timestamp: t0.Add(time.Duration(ms) * time.Millisecond)}
}

var (
	neutral    = focus.Measurement{EyeAspectRatio: 0.35}
	eyesClosed = focus.Measurement{EyeAspectRatio: 0.05}
)

func TestSession_Process(t *testing.T) {
	s := newTestSession(t)

	_, ok := s.Latest()
	assert.False(t, ok)

	res := s.Process(frame(0, neutral))
	assert.Equal(t, focus.Focused, res.State)

	latest, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, res, latest)
}

func TestSession_NoFaceLeavesClassifierAlone(t *testing.T) {
	s := newTestSession(t)

	s.Process(frame(0, eyesClosed))
	before := s.ClassifierState()
	require.Equal(t, focus.Drowsy, before.Current)

	res := s.Process(Frame{FaceDetected: false, Timestamp: t0.Add(time.Second)})
	assert.Equal(t, focus.Unknown, res.State)
	assert.Equal(t, 0.1, res.Confidence)
	assert.Equal(t, before, s.ClassifierState())

	// The drowsy hold keeps running across the faceless frame.
	res = s.Process(frame(25000, eyesClosed))
	assert.Equal(t, focus.Drowsy, res.State)
}

func TestSession_Reset(t *testing.T) {
	s := newTestSession(t)
	s.Process(frame(0, neutral))
	s.Process(frame(1000, eyesClosed))

	s.Reset()

	st := s.ClassifierState()
	assert.Equal(t, focus.Unknown, st.Current)
	assert.Equal(t, t0.Add(time.Second), st.EnteredAt)
	_, ok := s.Latest()
	assert.False(t, ok)
	assert.Zero(t, s.Summary().Frames)
}

func TestSession_ResetBeforeAnyFrame(t *testing.T) {
	s := newTestSession(t)
	s.Reset()
	assert.Equal(t, focus.Unknown, s.ClassifierState().Current)
	assert.False(t, s.ClassifierState().EnteredAt.IsZero())
}

func TestSession_Subscribe(t *testing.T) {
	s := newTestSession(t)
	ch, cancel := s.Subscribe(4)

	s.Process(frame(0, neutral))
	select {
	case res := <-ch:
		assert.Equal(t, focus.Focused, res.State)
	case <-time.After(time.Second):
		t.Fatal("no result published")
	}

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestSession_SlowSubscriberDoesNotBlock(t *testing.T) {
	s := newTestSession(t)
	ch, cancel := s.Subscribe(1)
	defer cancel()

	for i := int64(0); i < 10; i++ {
		s.Process(frame(i*33, neutral))
	}
	assert.Len(t, ch, 1)
}

func TestSession_CloseEndsSubscriptions(t *testing.T) {
	s := newTestSession(t)
	ch, cancel := s.Subscribe(1)

	s.Close()
	_, open := <-ch
	assert.False(t, open)
	cancel()

	late, _ := s.Subscribe(1)
	_, open = <-late
	assert.False(t, open)
}

func TestSession_InvalidConfig(t *testing.T) {
	cfg := focus.DefaultConfig()
	cfg.RelaxingHold = -time.Second

	_, err := New("bad", "", cfg, t0, nil)
	assert.ErrorIs(t, err, focus.ErrInvalidConfig)
}

func TestTracker_Summary(t *testing.T) {
	tr := NewTracker(discardLogger())

	tr.Record(focus.Focused, t0)
	tr.Record(focus.Focused, t0.Add(30*time.Second))
	tr.Record(focus.Distracted, t0.Add(60*time.Second))
	tr.Record(focus.Focused, t0.Add(90*time.Second))
	tr.Record(focus.Focused, t0.Add(120*time.Second))

	sum := tr.Summary()
	assert.Equal(t, int64(5), sum.Frames)
	assert.Equal(t, 2, sum.Transitions)
	assert.Equal(t, focus.Focused, sum.Current)
	assert.Equal(t, 120*time.Second, sum.TotalDuration)
	assert.Equal(t, 90*time.Second, sum.StateDurations[focus.Focused])
	assert.Equal(t, 30*time.Second, sum.StateDurations[focus.Distracted])
	assert.InDelta(t, 75.0, sum.StatePercentages[focus.Focused], 1e-9)
	assert.InDelta(t, 25.0, sum.StatePercentages[focus.Distracted], 1e-9)
	require.Len(t, sum.History, 2)
	assert.Equal(t, focus.Focused, sum.History[0].State)
	assert.Equal(t, 60*time.Second, sum.History[0].Duration)
}

func TestTracker_Empty(t *testing.T) {
	sum := NewTracker(nil).Summary()
	assert.Zero(t, sum.Frames)
	assert.Zero(t, sum.TotalDuration)
	assert.Empty(t, sum.StateDurations)
	assert.Equal(t, focus.Unknown, sum.Current)
}

func TestSession_SignalStatsSkipFacelessFrames(t *testing.T) {
	s := newTestSession(t)

	s.Process(frame(0, neutral))
	s.Process(Frame{FaceDetected: false, Timestamp: t0.Add(time.Second)})
	s.Process(frame(2000, neutral))

	sig := s.Summary().Signal
	assert.Equal(t, int64(2), sig.Samples)
	assert.InDelta(t, 0.35, sig.RollingEAR, 1e-9)
	assert.InDelta(t, 1.0, sig.RollingConfidence, 1e-9)

	s.Reset()
	assert.Zero(t, s.Summary().Signal.Samples)
}

func TestSession_PinClock(t *testing.T) {
	s := newTestSession(t)

	require.NoError(t, s.PinClock(ClockClient))
	require.NoError(t, s.PinClock(ClockClient))
	assert.ErrorIs(t, s.PinClock(ClockServer), ErrClockMismatch)

	s.Reset()
	assert.ErrorIs(t, s.PinClock(ClockServer), ErrClockMismatch)
	assert.NoError(t, s.PinClock(ClockClient))
}

func TestSession_HoldFromClientZero(t *testing.T) {
	cfg := focus.DefaultConfig()
	s, err := New("s0", "", cfg, time.Date(2026, 10, 19, 13, 0, 0, 0, time.UTC), discardLogger())
	require.NoError(t, err)

	lookDown := focus.Measurement{HeadPose: focus.HeadPose{Pitch: 25}, EyeAspectRatio: 0.35}
	at := func(ms int64) Frame {
		return Frame{Measurement: lookDown, FaceDetected: true, Timestamp: time.UnixMilli(ms)}
	}

	assert.Equal(t, focus.Focused, s.Process(at(0)).State)
	assert.Equal(t, focus.Distracted, s.Process(at(cfg.DistractionHold.Milliseconds())).State)
}
