package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/strandmq/strand/internal/group"
	"github.com/strandmq/strand/internal/lock"
	"github.com/strandmq/strand/internal/runtime"
	"github.com/strandmq/strand/internal/topiclog"
	"github.com/strandmq/strand/pkg/log"
	"github.com/strandmq/strand/pkg/names"
)

// Server exposes the runtime over a JSON HTTP API.
type Server struct {
	rt     *runtime.Runtime
	logger log.Logger
	srv    *http.Server
	lis    net.Listener
	guard  *rate.Limiter
}

// New builds the router and its rate guard from the runtime config.
func New(rt *runtime.Runtime, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewLogger(log.WithLevel(log.InfoLevel))
	}
	api := rt.Config().API
	s := &Server{
		rt:     rt,
		logger: logger.With(log.Component("http")),
		guard:  rate.NewLimiter(rate.Limit(api.RequestsPerSecond), api.Burst),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", s.handleHealth)
		r.Get("/topics", s.handleTopicList)
		r.Get("/topics/subscribe", s.handleSubscribe)
		r.Get("/groups/pending", s.handleGroupPending)
		r.Group(func(r chi.Router) {
			r.Use(s.guarded)
			r.Post("/topics/append", s.handleTopicAppend)
			r.Post("/topics/read", s.handleTopicRead)
			r.Post("/topics/create", s.handleTopicCreate)
			r.Post("/topics/trim", s.handleTopicTrim)
			r.Post("/groups/create", s.handleGroupCreate)
			r.Post("/groups/claim", s.handleGroupClaim)
			r.Post("/groups/ack", s.handleGroupAck)
			r.Post("/locks/acquire", s.handleLockAcquire)
			r.Post("/locks/release", s.handleLockRelease)
			r.Post("/locks/extend", s.handleLockExtend)
			r.Post("/rate/allow", s.handleRateAllow)
		})
	})
	s.srv = &http.Server{Handler: r}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.logger.Info("http listening", log.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Addr returns the bound listener address.
func (s *Server) Addr() string {
	if s.lis == nil {
		return ""
	}
	return s.lis.Addr().String()
}

// Close force-closes the listener.
func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// guarded sheds mutating traffic beyond the configured instance-wide rate.
func (s *Server) guarded(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.guard.Allow() {
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.CheckHealth(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_serving"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decode(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return false
	}
	return true
}

// writeError maps component errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, topiclog.ErrMalformedRecord), errors.Is(err, names.ErrInvalid):
		status = http.StatusBadRequest
	case errors.Is(err, topiclog.ErrStorageExhausted):
		status = http.StatusInsufficientStorage
	case errors.Is(err, group.ErrGroupExists), errors.Is(err, lock.ErrAlreadyLocked):
		status = http.StatusConflict
	case errors.Is(err, group.ErrGroupNotFound):
		status = http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusRequestTimeout
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}
