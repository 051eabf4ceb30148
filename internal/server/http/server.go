package httpserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/Aleksion/commanded/internal/eventstore"
	"github.com/Aleksion/commanded/internal/runtime"
	logpkg "github.com/Aleksion/commanded/pkg/log"
)

type Server struct {
	rt     *runtime.Runtime
	srv    *http.Server
	lis    net.Listener
	logger logpkg.Logger
}

func New(rt *runtime.Runtime, logger logpkg.Logger) *Server {
	if logger == nil {
		logger = logpkg.NewLogger().With(logpkg.Component("http"))
	}
	mux := http.NewServeMux()
	s := &Server{rt: rt, logger: logger, srv: &http.Server{Handler: cors(mux)}}
	mux.HandleFunc("/v1/healthz", s.handleHealth)
	mux.HandleFunc("/v1/streams/read", s.handleReadStream)
	mux.HandleFunc("/v1/events/read", s.handleReadAll)
	mux.HandleFunc("/v1/events/head", s.handleHead)
	mux.HandleFunc("/v1/handlers", s.handleHandlers)
	return s
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
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

func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.CheckHealth(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "not_serving"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type eventJSON struct {
	EventID       uint64          `json:"event_id"`
	StreamID      string          `json:"stream_id"`
	StreamVersion uint64          `json:"stream_version"`
	EventType     string          `json:"event_type"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	CausationID   string          `json:"causation_id,omitempty"`
	Data          json.RawMessage `json:"data,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func toJSON(events []eventstore.RecordedEvent) []eventJSON {
	out := make([]eventJSON, len(events))
	for i, e := range events {
		out[i] = eventJSON{
			EventID:       e.EventID,
			StreamID:      e.StreamID,
			StreamVersion: e.StreamVersion,
			EventType:     e.EventType,
			CorrelationID: e.CorrelationID,
			CausationID:   e.CausationID,
			Data:          json.RawMessage(e.Data),
			Metadata:      json.RawMessage(e.Metadata),
			CreatedAt:     e.CreatedAt,
		}
	}
	return out
}

func queryUint(r *http.Request, key string, def uint64) uint64 {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func (s *Server) handleReadStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	streamID := r.URL.Query().Get("stream")
	if streamID == "" {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "stream is required"})
		return
	}
	from := queryUint(r, "from", 1)
	count := queryInt(r, "count", 100)
	events, err := s.rt.Store().ReadStreamForward(r.Context(), streamID, from, count)
	if err != nil {
		s.logger.With(logpkg.Str("stream", streamID), logpkg.Err(err)).Warn("http.read_stream failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"events": toJSON(events)})
}

func (s *Server) handleReadAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	from := queryUint(r, "from", 1)
	count := queryInt(r, "count", 100)
	events, err := s.rt.Store().ReadAllForward(r.Context(), from, count)
	if err != nil {
		s.logger.With(logpkg.Err(err)).Warn("http.read_all failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"events": toJSON(events)})
}

func (s *Server) handleHead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	head, err := s.rt.Store().LatestEventID(r.Context())
	if err != nil {
		s.logger.With(logpkg.Err(err)).Warn("http.head failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]uint64{"head": head})
}

type handlerJSON struct {
	Name        string `json:"name"`
	Running     bool   `json:"running"`
	Position    uint64 `json:"position"`
	Consistency string `json:"consistency,omitempty"`
	StartFrom   string `json:"start_from,omitempty"`
}

func (s *Server) handleHandlers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var out []handlerJSON
	for _, h := range s.rt.Handlers() {
		hj := handlerJSON{Name: h.Name(), Running: h.Running(), Position: h.Position()}
		if cfg, err := h.CurrentConfig(); err == nil {
			hj.Consistency = string(cfg.Consistency)
			hj.StartFrom = cfg.StartFrom.String()
		}
		out = append(out, hj)
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"handlers": out})
}
