package session

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"focus-service/internal/focus"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("session not found")

// Registry holds the active sessions by ID.
type Registry struct {
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session with a fresh classifier.
func (r *Registry) Create(preset string, cfg focus.Config) (*Session, error) {
	id := uuid.NewString()
	s, err := New(id, preset, cfg, r.now(), r.logger)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()

	r.logger.Info("Session started", slog.String("session_id", id), slog.String("preset", preset))
	return s, nil
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete stops a session and returns its final summary.
func (r *Registry) Delete(id string) (Summary, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return Summary{}, ErrSessionNotFound
	}

	summary := s.Summary()
	s.Close()
	r.logger.Info("Session stopped",
		slog.String("session_id", id),
		slog.Int64("frames", summary.Frames),
		slog.Int("transitions", summary.Transitions))
	return summary, nil
}

// List returns sessions ordered by start time.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll ends every session's subscriptions. Used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		s.Close()
	}
}
