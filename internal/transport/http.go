package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"collab-hub/internal/a2a"
	"collab-hub/internal/hub"
	"collab-hub/internal/identity"
)

// AgentHeader carries the caller's agent identity on HTTP requests.
const AgentHeader = "X-Agent-Id"

type HTTPTransport struct {
	cfg    hub.Config
	server *hub.Server
	log    *zap.Logger
	http   *http.Server
}

func NewHTTPTransport(cfg hub.Config, server *hub.Server, log *zap.Logger) *HTTPTransport {
	return &HTTPTransport{cfg: cfg, server: server, log: log}
}

func (t *HTTPTransport) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", t.cfg.HTTP.Host, t.cfg.HTTP.Port)
	t.http = &http.Server{Addr: addr, Handler: t.Router()}
	t.log.Info("http transport listening", zap.String("addr", addr))
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = t.http.Shutdown(shutdownCtx)
	}()

	return t.http.ListenAndServe()
}

// Router builds the full HTTP surface: the JSON-RPC endpoint, health, the
// hierarchy event stream, agent card discovery and the A2A mount.
func (t *HTTPTransport) Router() http.Handler {
	baseURL := fmt.Sprintf("http://%s:%d", t.cfg.HTTP.Host, t.cfg.HTTP.Port)
	a2aServer := a2a.NewServer(t.server.Directory(), t.server.Delegations(), baseURL)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(agentIdentity)

	r.Post("/", t.handleRPC)
	r.Get("/health", t.handleHealth)
	r.Get("/stream", t.handleStream)
	r.Get("/.well-known/agent.json", writeJSONHandler(func() any { return a2aServer.HubCard() }))
	r.Get("/.well-known/agents", writeJSONHandler(func() any { return a2aServer.AgentCards() }))
	r.Get("/.well-known/agents/{agentId}", func(w http.ResponseWriter, req *http.Request) {
		id := strings.TrimSuffix(chi.URLParam(req, "agentId"), ".json")
		card, ok := a2aServer.AgentCard(id)
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, card)
	})
	r.Mount("/a2a", a2aServer.Handler())
	return r
}

// agentIdentity lifts the X-Agent-Id header into the request context.
func agentIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if agentID := req.Header.Get(AgentHeader); agentID != "" {
			req = req.WithContext(identity.WithAgent(req.Context(), agentID))
		}
		next.ServeHTTP(w, req)
	})
}

func (t *HTTPTransport) handleRPC(w http.ResponseWriter, req *http.Request) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	writeJSON(w, t.server.Handler().HandleRaw(req.Context(), body))
}

// handleStream serves the hierarchy broadcast as server-sent events. Each
// event carries one snapshot envelope; slow readers miss snapshots rather
// than stalling the projector.
func (t *HTTPTransport) handleStream(w http.ResponseWriter, req *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	ch, cancel := t.server.Broadcaster().Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-req.Context().Done():
			return
		case env, open := <-ch:
			if !open {
				return
			}
			data, err := json.Marshal(env)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %d\ndata: %s\n\n", env.Seq, data)
			flusher.Flush()
		}
	}
}

func (t *HTTPTransport) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok", "version": hub.Version})
}

func writeJSONHandler(payload func() any) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, payload())
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
