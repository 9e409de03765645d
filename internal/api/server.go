// Package api exposes the HTTP surface of the backend: the /mcp tool
// execution endpoints, health probes, and the WebSocket mount point. Routing
// uses the standard library mux with method-qualified patterns.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/pagepal/pagepal/internal/log"
	"github.com/pagepal/pagepal/internal/tool"
)

// ServerConfig contains everything needed to build the HTTP server.
type ServerConfig struct {
	Logger      log.Logger
	Registry    *tool.Registry // Required
	Executor    *tool.Executor // Required
	WSHandler   http.Handler   // Optional: mounts the WebSocket gateway at /ws
	CORSOrigins []string
	RatePerSec  float64 // 0 = default 10 tokens/sec
	RateBurst   int     // 0 = default 60
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Registry == nil {
		return nil, errors.New("tool registry is required")
	}
	if cfg.Executor == nil {
		return nil, errors.New("tool executor is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	th := &toolHandler{
		registry: cfg.Registry,
		executor: cfg.Executor,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /mcp/tools", th.listTools)
	mux.HandleFunc("GET /mcp/tools/{toolName}", th.getTool)
	mux.HandleFunc("POST /mcp/tools/{toolName}/execute", th.executeTool)
	mux.HandleFunc("GET /mcp/status", th.status)

	ratePerSec := cfg.RatePerSec
	if ratePerSec <= 0 {
		ratePerSec = 10.0
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(ratePerSec, burst)

	// Middleware stack, outermost first:
	//   Recovery -> Logging -> CORS -> RateLimit -> Routes
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health and the WebSocket upgrade stay outside the middleware stack:
	// probes should not consume rate-limit tokens, and the upgrade needs the
	// raw hijackable ResponseWriter.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	if cfg.WSHandler != nil {
		topMux.Handle("GET /ws", cfg.WSHandler)
	}
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// toolHandler serves the /mcp tool surface.
type toolHandler struct {
	registry *tool.Registry
	executor *tool.Executor
	logger   log.Logger
}

func (h *toolHandler) listTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.All(), h.logger)
}

func (h *toolHandler) getTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("toolName")
	def, err := h.registry.Get(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "tool_not_found", "Tool not found: "+name, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, def, h.logger)
}

// executeTool runs a tool and returns its CallResult. Execution failures are
// carried inside the result body, not as HTTP errors; only an unreadable
// request is rejected outright.
func (h *toolHandler) executeTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("toolName")

	params := map[string]any{}
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be a JSON object", h.logger)
		return
	}

	result := h.executor.Execute(r.Context(), name, params)
	writeJSON(w, http.StatusOK, result, h.logger)
}

type statusResponse struct {
	ToolCount      int      `json:"toolCount"`
	AvailableTools []string `json:"availableTools"`
}

func (h *toolHandler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		ToolCount:      h.registry.Size(),
		AvailableTools: h.registry.Names(),
	}, h.logger)
}
