package session

import (
	"log/slog"
	"time"

	"focus-service/internal/analytics"
	"focus-service/internal/focus"
)

// Run is a stretch of frames that all emitted the same state.
type Run struct {
	State    focus.State   `json:"state"`
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	Duration time.Duration `json:"duration_ns"`
}

// Summary aggregates emitted states over the life of a session.
type Summary struct {
	TotalDuration    time.Duration                 `json:"total_duration_ns"`
	StateDurations   map[focus.State]time.Duration `json:"state_durations_ns"`
	StatePercentages map[focus.State]float64       `json:"state_percentages"`
	Transitions      int                           `json:"transitions"`
	Current          focus.State                   `json:"current_state"`
	Frames           int64                         `json:"frames"`
	History          []Run                         `json:"history"`
	Signal           analytics.Stats               `json:"signal"`
}

// Tracker records emitted-state runs in memory.
type Tracker struct {
	logger  *slog.Logger
	runs    []Run
	current focus.State
	since   time.Time
	last    time.Time
	frames  int64
}

func NewTracker(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{logger: logger}
}

// Record notes the state emitted for a frame taken at ts.
func (t *Tracker) Record(state focus.State, ts time.Time) {
	t.frames++
	if t.frames == 1 {
		t.current, t.since, t.last = state, ts, ts
		return
	}

	if state != t.current {
		run := Run{State: t.current, Start: t.since, End: ts, Duration: ts.Sub(t.since)}
		t.runs = append(t.runs, run)
		t.logger.Info("Focus state changed",
			slog.String("from", run.State.String()),
			slog.String("to", state.String()),
			slog.Int64("duration_ms", run.Duration.Milliseconds()))
		t.current, t.since = state, ts
	}
	if ts.After(t.last) {
		t.last = ts
	}
}

// Summary includes the still-open run up to the latest frame.
func (t *Tracker) Summary() Summary {
	s := Summary{
		StateDurations:   make(map[focus.State]time.Duration),
		StatePercentages: make(map[focus.State]float64),
		Transitions:      len(t.runs),
		Current:          t.current,
		Frames:           t.frames,
		History:          append([]Run(nil), t.runs...),
	}
	if t.frames == 0 {
		return s
	}

	for _, r := range t.runs {
		s.StateDurations[r.State] += r.Duration
		s.TotalDuration += r.Duration
	}
	if open := t.last.Sub(t.since); open > 0 {
		s.StateDurations[t.current] += open
		s.TotalDuration += open
	}

	if s.TotalDuration > 0 {
		for state, d := range s.StateDurations {
			s.StatePercentages[state] = float64(d) / float64(s.TotalDuration) * 100
		}
	}
	return s
}

func (t *Tracker) Reset() {
	t.runs = nil
	t.current = focus.Unknown
	t.since = time.Time{}
	t.last = time.Time{}
	t.frames = 0
}
