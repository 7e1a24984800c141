// Package session hosts one focus classifier per study session and keeps the
// in-memory bookkeeping around it.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"focus-service/internal/analytics"
	"focus-service/internal/focus"
)

// Signal window used for the per-session quality statistics.
const (
	signalWindow    = 90
	signalZScoreMax = 3.0
)

// ErrClockMismatch is returned when a frame is stamped by a different clock
// than the session's earlier frames.
var ErrClockMismatch = errors.New("frame clock does not match session clock")

// Clock says who stamps a session's frames.
type Clock int

const (
	ClockUnset Clock = iota
	ClockServer
	ClockClient
)

func (c Clock) String() string {
	switch c {
	case ClockServer:
		return "server"
	case ClockClient:
		return "client"
	default:
		return "unset"
	}
}

// Frame is one processed camera frame as seen by the classifier.
type Frame struct {
	Measurement  focus.Measurement
	FaceDetected bool
	Timestamp    time.Time
}

type Session struct {
	ID        string
	Preset    string
	StartedAt time.Time

	logger *slog.Logger

	mu         sync.Mutex
	classifier *focus.Classifier
	tracker    *Tracker
	signal     *analytics.Analyzer
	latest     *focus.DetectionResult
	lastFrame  time.Time

	clockMu sync.Mutex
	clock   Clock

	subMu  sync.RWMutex
	subs   map[chan focus.DetectionResult]struct{}
	closed bool
}

func New(id, preset string, cfg focus.Config, now time.Time, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("session_id", id))

	classifier, err := focus.NewClassifier(cfg, now)
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:         id,
		Preset:     preset,
		StartedAt:  now,
		logger:     logger,
		classifier: classifier,
		tracker:    NewTracker(logger),
		signal:     analytics.NewAnalyzer(signalWindow, signalZScoreMax),
		subs:       make(map[chan focus.DetectionResult]struct{}),
	}, nil
}

func (s *Session) Config() focus.Config {
	return s.classifier.Config()
}

// PinClock fixes the clock the session's frames are stamped with on first
// use. Later frames from the other clock get ErrClockMismatch. The pin
// survives Reset.
func (s *Session) PinClock(c Clock) error {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()

	switch s.clock {
	case ClockUnset:
		s.clock = c
		s.logger.Debug("Session clock pinned", slog.String("clock", c.String()))
		return nil
	case c:
		return nil
	default:
		return fmt.Errorf("%w: session uses %s time, frame uses %s time", ErrClockMismatch, s.clock, c)
	}
}

// Process classifies one frame. Frames without a face produce the Unknown
// result and leave the classifier untouched.
func (s *Session) Process(f Frame) focus.DetectionResult {
	s.mu.Lock()
	var res focus.DetectionResult
	if f.FaceDetected {
		res = s.classifier.Classify(f.Measurement, f.Timestamp)
		quality := s.signal.Analyze(analytics.Sample{EyeAspectRatio: res.EyeAspectRatio, Confidence: res.Confidence})
		if quality.IsOutlier {
			s.logger.Debug("EAR outlier",
				slog.Float64("ear", res.EyeAspectRatio),
				slog.Float64("rolling_ear", quality.RollingEAR),
				slog.Float64("z_score", quality.ZScore))
		}
	} else {
		res = focus.UnknownResult()
	}
	s.tracker.Record(res.State, f.Timestamp)
	s.latest = &res
	if f.Timestamp.After(s.lastFrame) {
		s.lastFrame = f.Timestamp
	}
	s.mu.Unlock()

	s.publish(res)
	return res
}

// Reset restarts classification and drops the tracked history.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.lastFrame
	if now.IsZero() {
		now = time.Now()
	}
	s.classifier.Reset(now)
	s.tracker.Reset()
	s.signal.Reset()
	s.latest = nil
	s.logger.Info("Session reset")
}

// Latest returns the most recent result, if any frame was processed since
// creation or the last reset.
func (s *Session) Latest() (focus.DetectionResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return focus.DetectionResult{}, false
	}
	return *s.latest, true
}

func (s *Session) ClassifierState() focus.ClassifierState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.classifier.State()
}

func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := s.tracker.Summary()
	sum.Signal = s.signal.Stats()
	return sum
}

// Subscribe returns a channel of results and a func to cancel it. Results
// are dropped for a subscriber whose buffer is full.
func (s *Session) Subscribe(buffer int) (<-chan focus.DetectionResult, func()) {
	ch := make(chan focus.DetectionResult, buffer)

	s.subMu.Lock()
	if s.closed {
		close(ch)
		s.subMu.Unlock()
		return ch, func() {}
	}
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
		})
	}
}

func (s *Session) publish(res focus.DetectionResult) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for ch := range s.subs {
		select {
		case ch <- res:
		default:
			s.logger.Debug("Subscriber too slow, dropping result")
		}
	}
}

// Close ends all subscriptions.
func (s *Session) Close() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for ch := range s.subs {
		delete(s.subs, ch)
		close(ch)
	}
}
