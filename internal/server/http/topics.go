package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/strandmq/strand/internal/dispatch"
	"github.com/strandmq/strand/internal/topiclog"
	"github.com/strandmq/strand/pkg/id"
	"github.com/strandmq/strand/pkg/log"
)

func (s *Server) handleTopicAppend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Topic  string            `json:"topic"`
		Fields map[string]string `json:"fields"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Topic == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "topic is required"})
		return
	}
	rid, err := s.rt.Dispatcher().Publish(r.Context(), req.Topic, toFieldBytes(req.Fields))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": rid.String()})
}

func (s *Server) handleTopicList(w http.ResponseWriter, r *http.Request) {
	topics, err := s.rt.ListTopics()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"topics": topics})
}

func (s *Server) handleTopicRead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Topic string `json:"topic"`
		From  string `json:"from"`
		To    string `json:"to"`
		Limit int    `json:"limit"`
	}
	if !decode(w, r, &req) {
		return
	}
	from, err := id.Parse(req.From)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid from id"})
		return
	}
	to, err := id.Parse(req.To)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid to id"})
		return
	}
	l, err := s.rt.OpenLog(req.Topic)
	if err != nil {
		writeError(w, err)
		return
	}
	recs, err := l.Read(topiclog.ReadOptions{From: from, To: to, Limit: req.Limit})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": toRecordsJSON(recs)})
}

func (s *Server) handleTopicCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Topic          string `json:"topic"`
		MaxLen         int64  `json:"maxLen"`
		RetentionAgeMs int64  `json:"retentionAgeMs"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Topic == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "topic is required"})
		return
	}
	if err := s.rt.CreateTopic(req.Topic, topiclog.Config{MaxLen: req.MaxLen, AgeMs: req.RetentionAgeMs}); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"topic": req.Topic})
}

func (s *Server) handleTopicTrim(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Topic string `json:"topic"`
	}
	if !decode(w, r, &req) {
		return
	}
	res, err := s.rt.TrimTopic(r.Context(), req.Topic)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"deleted":       res.Deleted,
		"heldByPending": res.HeldByPending,
	})
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "topic is required"})
		return
	}
	sub, err := s.rt.Dispatcher().Subscribe(topic, dispatch.SubscribeOptions{
		Filter: r.URL.Query().Get("filter"),
	})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	defer sub.Cancel()
	defer s.logDropped(topic, sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case rec, ok := <-sub.Records():
			if !ok {
				return
			}
			body, err := json.Marshal(toRecordJSON(rec))
			if err != nil {
				continue
			}
			if _, err := w.Write([]byte("data: ")); err != nil {
				return
			}
			if _, err := w.Write(body); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n\n")); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func (s *Server) logDropped(topic string, sub *dispatch.Subscription) {
	if n := sub.Dropped(); n > 0 {
		s.logger.Warn("subscriber dropped records",
			log.Str("topic", topic), log.Int64("dropped", n))
	}
}
