package httpserver

import (
	"net/http"
	"time"

	"github.com/strandmq/strand/pkg/id"
)

func (s *Server) handleGroupCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Topic string `json:"topic"`
		Group string `json:"group"`
		// Start is an ID string; "0" starts from the beginning, the
		// topic's last ID starts at the tail. Empty means beginning.
		Start string `json:"start"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Topic == "" || req.Group == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "topic and group are required"})
		return
	}
	start, err := id.Parse(req.Start)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid start id"})
		return
	}
	if err := s.rt.Registry().Create(r.Context(), req.Topic, req.Group, start); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"topic": req.Topic, "group": req.Group})
}

func (s *Server) handleGroupClaim(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Topic    string `json:"topic"`
		Group    string `json:"group"`
		Consumer string `json:"consumer"`
		Count    int    `json:"count"`
		BlockMs  int64  `json:"blockMs"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Consumer == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "consumer is required"})
		return
	}
	recs, err := s.rt.Registry().Claim(r.Context(), req.Topic, req.Group, req.Consumer,
		req.Count, time.Duration(req.BlockMs)*time.Millisecond)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": toRecordsJSON(recs)})
}

func (s *Server) handleGroupAck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Topic string `json:"topic"`
		Group string `json:"group"`
		ID    string `json:"id"`
	}
	if !decode(w, r, &req) {
		return
	}
	rid, err := id.Parse(req.ID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid id"})
		return
	}
	if err := s.rt.Registry().Ack(r.Context(), req.Topic, req.Group, rid); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"acked": true})
}

func (s *Server) handleGroupPending(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	group := r.URL.Query().Get("group")
	entries, err := s.rt.Registry().Pending(r.Context(), topic, group)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": toPendingJSON(entries)})
}
