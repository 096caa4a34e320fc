package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rccm-quiz/sessionguard/internal/session"
)

const maxBodyBytes = 4 << 10

// sessionFor returns the caller's session, creating one (and its cookie) on
// first contact or when the cookie names an unknown session.
func (s *Server) sessionFor(w http.ResponseWriter, r *http.Request) (*session.Session, error) {
	sess, err := s.cookieSession(r)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		return sess, nil
	}
	return s.newSession(w, r)
}

// cookieSession loads the session named by the request cookie. A missing
// cookie or an unknown id yields nil without error.
func (s *Server) cookieSession(r *http.Request) (*session.Session, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return nil, nil
	}
	sess, err := s.store.Get(r.Context(), c.Value)
	if errors.Is(err, session.ErrNotFound) {
		return nil, nil
	}
	return sess, err
}

// newSession issues a session and its cookie. A session named by the
// request cookie is replaced by its successor.
func (s *Server) newSession(w http.ResponseWriter, r *http.Request) (*session.Session, error) {
	now := s.clock.Now()
	sess := session.New(now, s.cfg.SessionTTL)
	if prev, err := s.cookieSession(r); err == nil && prev != nil {
		sess = prev.Successor(now, s.cfg.SessionTTL)
	}
	if err := s.store.Put(r.Context(), sess); err != nil {
		return nil, fmt.Errorf("storing new session: %w", err)
	}
	s.metrics.sessions.Inc()
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	s.log.Info("session created", "session_id", sess.ID, "owner", sess.Owner, "expires_at", sess.ExpiresAt)
	return sess, nil
}

func (s *Server) observe(endpoint string, start time.Time, err error) {
	s.metrics.requests.WithLabelValues(endpoint, resultLabel(err)).Inc()
	s.metrics.duration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sess, err := s.sessionFor(w, r)
	s.observe("status", start, err)
	if err != nil {
		s.log.Error("loading session failed", "error", err)
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Status(s.clock.Now(), s.cfg.WarningThreshold))
}

func (s *Server) handleExtend(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sess, err := s.extend(w, r)
	s.observe("extend", start, err)
	if err != nil {
		mapError(w, err)
		return
	}
	now := s.clock.Now()
	s.hub.Push(sess.ID, sess.Status(now, s.cfg.WarningThreshold))
	writeJSON(w, http.StatusOK, ExtendResponse{
		Success:       true,
		RemainingTime: int(sess.Remaining(now) / time.Second),
		ExpiresAt:     sess.ExpiresAt,
	})
}

func (s *Server) extend(w http.ResponseWriter, r *http.Request) (*session.Session, error) {
	sess, err := s.sessionFor(w, r)
	if err != nil {
		return nil, err
	}
	if err := sess.Extend(s.clock.Now(), s.cfg.SessionTTL); err != nil {
		return nil, err
	}
	if err := s.store.Put(r.Context(), sess); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}
	s.log.Info("session extended", "session_id", sess.ID, "expires_at", sess.ExpiresAt)
	return sess, nil
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	b, err := s.save(w, r)
	s.observe("save", start, err)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SaveResponse{Success: true, BackupID: b.ID})
}

func (s *Server) save(w http.ResponseWriter, r *http.Request) (*session.Backup, error) {
	sess, err := s.sessionFor(w, r)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if sess.IsExpired(now) {
		return nil, session.ErrExpired
	}
	b := sess.Snapshot(now)
	if err := s.store.PutBackup(r.Context(), b); err != nil {
		return nil, fmt.Errorf("storing backup: %w", err)
	}
	s.metrics.backups.Inc()
	s.log.Info("session saved", "session_id", sess.ID, "backup_id", b.ID)
	return b, nil
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req RestoreRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BackupID == "" {
		s.observe("restore", start, errors.New("bad request"))
		writeError(w, http.StatusBadRequest, "backup_id is required")
		return
	}

	sess, err := s.restore(w, r, req.BackupID)
	s.observe("restore", start, err)
	if err != nil {
		mapError(w, err)
		return
	}
	s.hub.Push(sess.ID, sess.Status(s.clock.Now(), s.cfg.WarningThreshold))
	writeJSON(w, http.StatusOK, RestoreResponse{Success: true})
}

func (s *Server) restore(w http.ResponseWriter, r *http.Request, backupID string) (*session.Session, error) {
	b, err := s.store.GetBackup(r.Context(), backupID)
	if err != nil {
		return nil, fmt.Errorf("backup %s: %w", backupID, err)
	}
	sess, err := s.sessionFor(w, r)
	if err != nil {
		return nil, err
	}
	if !sess.Owns(b) {
		// Foreign backups look the same as unknown ones.
		s.log.Warn("restore of foreign backup refused", "session_id", sess.ID, "backup_id", backupID)
		return nil, fmt.Errorf("backup %s: %w", backupID, session.ErrNotFound)
	}
	sess.RestoreFrom(b, s.clock.Now(), s.cfg.SessionTTL)
	if err := s.store.Put(r.Context(), sess); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}
	s.log.Info("session restored", "session_id", sess.ID, "backup_id", backupID)
	return sess, nil
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sess, err := s.newSession(w, r)
	s.observe("start", start, err)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StartResponse{
		Success:       true,
		RemainingTime: int(sess.Remaining(s.clock.Now()) / time.Second),
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessionFor(w, r)
	if err != nil {
		mapError(w, err)
		return
	}
	// The upgrade writes its own response; carry over a freshly set cookie.
	header := http.Header{}
	for _, c := range w.Header().Values("Set-Cookie") {
		header.Add("Set-Cookie", c)
	}
	conn, err := s.upgrader.Upgrade(w, r, header)
	if err != nil {
		s.log.Warn("ws upgrade failed", "error", err)
		return
	}

	c := s.hub.Add(conn, sess.ID, sess.Status(s.clock.Now(), s.cfg.WarningThreshold))
	s.log.Debug("ws client connected", "remote", r.RemoteAddr, "session_id", sess.ID)
	go func() {
		defer func() {
			s.hub.Remove(c)
			s.log.Debug("ws client disconnected", "remote", r.RemoteAddr)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
