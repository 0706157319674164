package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/hondana/internal/config"
	"github.com/hyperjump/hondana/internal/session"
)

const defaultHistoryLimit = 20

type searchRequest struct {
	Query string `json:"query"`
	Page  int    `json:"page"`
}

type pageRequest struct {
	Page int `json:"page"`
}

type refineRequest struct {
	Term string `json:"term"`
}

type settingsResponse struct {
	URL           string `json:"backend.url"`
	Index         string `json:"backend.index"`
	Transport     string `json:"backend.transport"`
	Auth          bool   `json:"backend.auth"`
	Username      string `json:"backend.username,omitempty"`
	Password      string `json:"backend.password,omitempty"`
	PageSize      int    `json:"display.page_size"`
	HighlightSize int    `json:"display.highlight_size"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	s.respondSession(w, s.machine.Snapshot())
}

// Session failures are part of the snapshot, so every session handler answers 200
// once the request itself was well formed.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.Page < 1 {
		s.respondError(w, http.StatusBadRequest, "page must be at least 1")
		return
	}
	s.logger.Debug("search request", zap.String("query", req.Query), zap.Int("page", req.Page))
	s.respondSession(w, s.machine.SubmitSearch(sessionContext(r), req.Query, req.Page))
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Page < 1 {
		s.respondError(w, http.StatusBadRequest, "page must be at least 1")
		return
	}
	if strings.TrimSpace(s.machine.Snapshot().QueryText) == "" {
		s.respondError(w, http.StatusConflict, "no query to page through")
		return
	}
	s.logger.Debug("page request", zap.Int("page", req.Page))
	s.respondSession(w, s.machine.ChangePage(sessionContext(r), req.Page))
}

func (s *Server) handleRefine(w http.ResponseWriter, r *http.Request) {
	var req refineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("refine request", zap.String("term", req.Term))
	s.respondSession(w, s.machine.RefineWithTerm(sessionContext(r), req.Term))
}

func (s *Server) handleClearError(w http.ResponseWriter, r *http.Request) {
	s.respondSession(w, s.machine.ClearError())
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.respondSession(w, s.machine.Clear())
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, newSettingsResponse(s.store.Config()))
}

// handleUpdateSettings applies a map of dotted keys to values, e.g.
// {"backend.index": "books"}. Either every key is applied and saved or none is.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req) == 0 {
		s.respondError(w, http.StatusBadRequest, "no settings given")
		return
	}
	keys := make([]string, 0, len(req))
	for k := range req {
		keys = append(keys, k)
	}
	// backend.auth=off must not erase credentials set in the same request.
	sort.Slice(keys, func(i, j int) bool {
		if (keys[i] == "backend.auth") != (keys[j] == "backend.auth") {
			return keys[i] == "backend.auth"
		}
		return keys[i] < keys[j]
	})

	cfg, err := s.store.Update(func(c *config.Config) error {
		for _, k := range keys {
			if err := c.Set(k, req[k]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("settings update rejected", zap.Error(err))
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Info("settings updated", zap.Strings("keys", keys))
	s.respondJSON(w, http.StatusOK, newSettingsResponse(cfg))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondError(w, http.StatusNotFound, "history is not enabled")
		return
	}
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("history: recent failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sessionContext detaches a search from the request. The session is shared by every
// client, so one client hanging up must not fail it for the others.
func sessionContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func newSettingsResponse(cfg *config.Config) settingsResponse {
	out := settingsResponse{
		URL:           cfg.Backend.URL,
		Index:         cfg.Backend.Index,
		Transport:     cfg.Backend.Transport,
		PageSize:      cfg.Display.PageSize,
		HighlightSize: cfg.Display.HighlightCount(),
	}
	if a := cfg.Backend.Auth; a != nil {
		out.Auth = true
		out.Username = a.Username
		if a.Password != "" {
			out.Password = "********"
		}
	}
	return out
}

func (s *Server) respondSession(w http.ResponseWriter, snap session.Session) {
	s.respondJSON(w, http.StatusOK, snap)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
