package httpserver

import (
	"net/http"
	"time"
)

func (s *Server) handleRateAllow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key      string `json:"key"`
		Limit    int64  `json:"limit"`
		WindowMs int64  `json:"windowMs"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Key == "" || req.WindowMs <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "key and a positive windowMs are required"})
		return
	}
	allowed, err := s.rt.Limiter().Allow(r.Context(), req.Key, req.Limit, time.Duration(req.WindowMs)*time.Millisecond)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}
