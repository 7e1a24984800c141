package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"focus-service/internal/cache"
	"focus-service/internal/models"
	"focus-service/internal/session"

	"github.com/gorilla/mux"
)

const maxAngle = 180.0

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{Error: msg})
}

func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return sess, true
}

func (s *Server) sessionInfo(sess *session.Session) models.SessionInfo {
	info := models.SessionInfo{
		ID:         sess.ID,
		Preset:     sess.Preset,
		StartedAt:  sess.StartedAt.UTC(),
		Thresholds: models.ThresholdsFromConfig(sess.Config()),
	}
	if res, ok := sess.Latest(); ok {
		info.Latest = &res
	}
	return info
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthStatus{
		Status:         "healthy",
		Timestamp:      s.now().UTC(),
		Version:        version,
		ActiveSessions: s.sessions.Len(),
		QueueDepth:     len(s.frames),
	})
}

func (s *Server) presetsHandler(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]models.Thresholds, len(s.presets))
	for name, cfg := range s.presets {
		out[name] = models.ThresholdsFromConfig(cfg)
	}
	writeJSON(w, http.StatusOK, map[string]any{"presets": out})
}

func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	base := s.base
	if req.Preset != "" {
		p, ok := s.presets[req.Preset]
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown preset "+req.Preset)
			return
		}
		base = p
	}

	cfg := base
	if req.Thresholds != nil {
		var err error
		if cfg, err = req.Thresholds.Apply(base); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	sess, err := s.sessions.Create(req.Preset, cfg)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	activeSessions.Set(float64(s.sessions.Len()))

	writeJSON(w, http.StatusCreated, s.sessionInfo(sess))
}

func (s *Server) listSessionsHandler(w http.ResponseWriter, r *http.Request) {
	list := s.sessions.List()
	out := make([]models.SessionInfo, 0, len(list))
	for _, sess := range list {
		out = append(out, s.sessionInfo(sess))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.sessionInfo(sess))
}

func (s *Server) deleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	summary, err := s.sessions.Delete(id)
	if errors.Is(err, session.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	activeSessions.Set(float64(s.sessions.Len()))
	s.dropSnapshot(r, id)

	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) ingestFrameHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	var req models.FrameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid frame: "+err.Error())
		return
	}
	if msg := sanitize(&req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	ts, clock := s.now(), session.ClockServer
	if req.TimestampMs != nil {
		ts, clock = time.UnixMilli(*req.TimestampMs), session.ClockClient
	}
	if err := sess.PinClock(clock); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	frame := session.Frame{Measurement: req.Measurement(), FaceDetected: req.HasFace(), Timestamp: ts}
	if err := s.enqueue(job{session: sess, frame: frame}); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// sanitize rejects values the classifier does not guard against and clamps
// angles into range. It returns an error message or "".
func sanitize(req *models.FrameRequest) string {
	for _, v := range []float64{req.Pitch, req.Yaw, req.Roll, req.EyeAspectRatio} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "measurement values must be finite"
		}
	}
	if req.EyeAspectRatio < 0 {
		return "eye_aspect_ratio must not be negative"
	}
	if req.TimestampMs != nil && *req.TimestampMs < 0 {
		return "timestamp_ms must not be negative"
	}
	req.Pitch = math.Max(-maxAngle, math.Min(maxAngle, req.Pitch))
	req.Yaw = math.Max(-maxAngle, math.Min(maxAngle, req.Yaw))
	req.Roll = math.Max(-maxAngle, math.Min(maxAngle, req.Roll))
	return ""
}

func (s *Server) stateHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	if res, ok := sess.Latest(); ok {
		writeJSON(w, http.StatusOK, res)
		return
	}

	if s.store != nil {
		snap, err := s.store.GetLatest(r.Context(), sess.ID)
		if err == nil {
			writeJSON(w, http.StatusOK, snap.Result)
			return
		}
		if !errors.Is(err, cache.ErrNotFound) {
			s.logger.Warn("Failed to read cached result", slog.String("session_id", sess.ID), slog.Any("error", err))
		}
	}
	writeError(w, http.StatusNotFound, "no result yet")
}

func (s *Server) summaryHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Summary())
}

func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	sess.Reset()
	s.dropSnapshot(r, sess.ID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) dropSnapshot(r *http.Request, id string) {
	if s.store == nil {
		return
	}
	if err := s.store.DeleteSession(r.Context(), id); err != nil {
		s.logger.Warn("Failed to drop cached result", slog.String("session_id", id), slog.Any("error", err))
	}
}
