// Package server exposes study sessions over HTTP and runs the single
// worker that feeds frames into the classifiers.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"focus-service/internal/focus"
	"focus-service/internal/models"
	"focus-service/internal/session"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const version = "1.0.0"

// ResultStore keeps the latest snapshot per session.
type ResultStore interface {
	StoreResult(ctx context.Context, snap models.StateSnapshot) error
	GetLatest(ctx context.Context, sessionID string) (models.StateSnapshot, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

type Options struct {
	Store     ResultStore
	Presets   map[string]focus.Config
	Base      focus.Config
	QueueSize int
	Logger    *slog.Logger
}

type job struct {
	session *session.Session
	frame   session.Frame
}

type Server struct {
	router   *mux.Router
	store    ResultStore
	sessions *session.Registry
	presets  map[string]focus.Config
	base     focus.Config
	logger   *slog.Logger
	upgrader websocket.Upgrader
	now      func() time.Time

	// framesMu guards sends on frames against Close closing it.
	framesMu  sync.RWMutex
	closed    bool
	frames    chan job
	done      chan struct{}
	closeOnce sync.Once
}

var (
	errQueueFull    = errors.New("queue full")
	errShuttingDown = errors.New("server shutting down")
)

// New builds the server and starts its processing worker.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.Presets == nil {
		opts.Presets = focus.Presets()
	}
	if opts.Base == (focus.Config{}) {
		opts.Base = focus.DefaultConfig()
	}

	s := &Server{
		router:   mux.NewRouter(),
		store:    opts.Store,
		sessions: session.NewRegistry(opts.Logger),
		presets:  opts.Presets,
		base:     opts.Base,
		logger:   opts.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		now:    time.Now,
		frames: make(chan job, opts.QueueSize),
		done:   make(chan struct{}),
	}

	s.setupRoutes()
	go s.processFrames()

	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(instrument)

	s.router.HandleFunc("/health", s.healthHandler).Methods("GET")
	s.router.HandleFunc("/presets", s.presetsHandler).Methods("GET")
	s.router.HandleFunc("/sessions", s.createSessionHandler).Methods("POST")
	s.router.HandleFunc("/sessions", s.listSessionsHandler).Methods("GET")
	s.router.HandleFunc("/sessions/{id}", s.getSessionHandler).Methods("GET")
	s.router.HandleFunc("/sessions/{id}", s.deleteSessionHandler).Methods("DELETE")
	s.router.HandleFunc("/sessions/{id}/frames", s.ingestFrameHandler).Methods("POST")
	s.router.HandleFunc("/sessions/{id}/state", s.stateHandler).Methods("GET")
	s.router.HandleFunc("/sessions/{id}/summary", s.summaryHandler).Methods("GET")
	s.router.HandleFunc("/sessions/{id}/reset", s.resetHandler).Methods("POST")
	s.router.HandleFunc("/sessions/{id}/stream", s.streamHandler).Methods("GET")
	s.router.Handle("/metrics/prometheus", promhttp.Handler())
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// processFrames is the only caller of Session.Process in the server, so each
// classifier sees its frames serially and in queue order.
func (s *Server) processFrames() {
	defer close(s.done)

	for j := range s.frames {
		queueDepth.Set(float64(len(s.frames)))

		// Frames still queued for a stopped session are discarded.
		if _, err := s.sessions.Get(j.session.ID); err != nil {
			continue
		}
		res := j.session.Process(j.frame)

		framesProcessed.Inc()
		statesEmitted.WithLabelValues(res.State.String()).Inc()
		confidenceObserved.Observe(res.Confidence)

		if s.store == nil {
			continue
		}
		snap := models.StateSnapshot{
			SessionID: j.session.ID,
			Result:    res,
			FrameTime: j.frame.Timestamp,
			UpdatedAt: s.now().UTC(),
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := s.store.StoreResult(ctx, snap); err != nil {
			s.logger.Warn("Failed to cache result", slog.String("session_id", j.session.ID), slog.Any("error", err))
		}
		cancel()
	}
}

// enqueue hands a frame to the worker, dropping it when the queue is full
// or the server is closing.
func (s *Server) enqueue(j job) error {
	s.framesMu.RLock()
	defer s.framesMu.RUnlock()

	if s.closed {
		framesDropped.Inc()
		return errShuttingDown
	}
	select {
	case s.frames <- j:
		queueDepth.Set(float64(len(s.frames)))
		return nil
	default:
		framesDropped.Inc()
		return errQueueFull
	}
}

// Close stops accepting frames, drains the queue and ends all streams.
// Handlers still running after it return 503 for new frames.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.framesMu.Lock()
		s.closed = true
		close(s.frames)
		s.framesMu.Unlock()

		<-s.done
		s.sessions.CloseAll()
	})
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server is ready to handle requests", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("could not listen on %s: %w", addr, err)
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		s.Close()
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Server is shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	srv.SetKeepAlivesEnabled(false)
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if err != nil {
		return fmt.Errorf("could not gracefully shutdown the server: %w", err)
	}

	s.logger.Info("Server stopped")
	return nil
}
