package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"igcurator/pkg/reconcile"
	"igcurator/pkg/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.WithError(err).Error("failed to encode response")
		}
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "profile not found"})
		return
	}
	s.logger.WithError(err).Error("request failed")
	s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

type scanSummary struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Timestamp      time.Time `json:"timestamp"`
	FollowerCount  int       `json:"followerCount"`
	FollowingCount int       `json:"followingCount"`
}

// handleScans returns the full scan history, newest first.
func (s *Server) handleScans(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.store.Scans(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	summaries := make([]scanSummary, len(snaps))
	for i, snap := range snaps {
		summaries[i] = scanSummary{
			ID:             snap.ID,
			Username:       snap.Username,
			Timestamp:      snap.Timestamp,
			FollowerCount:  len(snap.Followers),
			FollowingCount: len(snap.Following),
		}
	}
	s.writeJSON(w, http.StatusOK, summaries)
}

// handleStats returns counts for the latest snapshot. An empty username
// selects the most recent snapshot of any account.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.LatestScan(r.Context(), r.URL.Query().Get("username"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	favorites, err := s.store.Favorites(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, reconcile.Summarize(snap, favorites))
}

// handleView returns the full derived view of the latest snapshot.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.LatestScan(r.Context(), r.URL.Query().Get("username"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	favorites, err := s.store.Favorites(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, reconcile.Derive(snap, favorites))
}

func (s *Server) handleFavorites(w http.ResponseWriter, r *http.Request) {
	favorites, err := s.store.Favorites(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, favorites)
}

type favoriteState struct {
	Username   string `json:"username"`
	IsFavorite bool   `json:"isFavorite"`
}

// handleToggleFavorite flips the protection flag for one handle.
func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if username == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "username is required"})
		return
	}

	fav, err := s.store.IsFavorite(r.Context(), username)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if fav {
		err = s.store.RemoveFavorite(r.Context(), username)
	} else {
		err = s.store.AddFavorite(r.Context(), username)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, favoriteState{Username: username, IsFavorite: !fav})
}

type startSyncRequest struct {
	AutoUnfollow bool `json:"autoUnfollow"`
}

// handleSyncStart launches a sync run and returns immediately. Completion
// arrives on the event stream.
func (s *Server) handleSyncStart(w http.ResponseWriter, r *http.Request) {
	var req startSyncRequest
	if r.Body != nil {
		// Body is optional; a bare POST means a plain sync.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	s.automation.StartSync(req.AutoUnfollow)
	s.writeJSON(w, http.StatusAccepted, map[string]string{"run": "sync"})
}

func (s *Server) handleUnfollowStart(w http.ResponseWriter, r *http.Request) {
	s.automation.StartUnfollow()
	s.writeJSON(w, http.StatusAccepted, map[string]string{"run": "unfollow"})
}

func (s *Server) handleRunCancel(w http.ResponseWriter, r *http.Request) {
	cancelled := s.automation.CancelRun()
	s.writeJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"run": string(s.automation.ActiveRun())})
}
