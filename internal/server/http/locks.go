package httpserver

import (
	"net/http"
	"time"
)

func (s *Server) handleLockAcquire(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key   string `json:"key"`
		TTLMs int64  `json:"ttlMs"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Key == "" || req.TTLMs <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "key and a positive ttlMs are required"})
		return
	}
	token, err := s.rt.Locks().Acquire(r.Context(), req.Key, time.Duration(req.TTLMs)*time.Millisecond)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleLockRelease(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key   string `json:"key"`
		Token string `json:"token"`
	}
	if !decode(w, r, &req) {
		return
	}
	released, err := s.rt.Locks().Release(r.Context(), req.Key, req.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"released": released})
}

func (s *Server) handleLockExtend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key   string `json:"key"`
		Token string `json:"token"`
		TTLMs int64  `json:"ttlMs"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.TTLMs <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "a positive ttlMs is required"})
		return
	}
	extended, err := s.rt.Locks().Extend(r.Context(), req.Key, req.Token, time.Duration(req.TTLMs)*time.Millisecond)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"extended": extended})
}
