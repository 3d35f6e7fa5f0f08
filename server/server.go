package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/room4-2/OpenCallGate/agent"
	"github.com/room4-2/OpenCallGate/bridge"
	"github.com/room4-2/OpenCallGate/calls"
	"github.com/room4-2/OpenCallGate/config"
	"github.com/room4-2/OpenCallGate/realtime"
	"github.com/room4-2/OpenCallGate/session"
)

// callConnectionHeader is advisory; media sockets arrive without it when
// the streaming infrastructure predates the header.
const callConnectionHeader = "x-ms-call-connection-id"

type Server struct {
	httpServer  *http.Server
	upgrader    websocket.Upgrader
	manager     *session.Manager
	processor   *calls.Processor
	agents      *agent.Registry
	config      *config.Config
	openSession bridge.SessionOpener
}

func NewServer(cfg *config.Config, manager *session.Manager, processor *calls.Processor, agents *agent.Registry) *Server {
	s := &Server{
		manager:   manager,
		processor: processor,
		agents:    agents,
		config:    cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024, // 64KB for audio chunks
			WriteBufferSize: 64 * 1024, // 64KB for audio chunks
			CheckOrigin: func(r *http.Request) bool {
				// Media sockets come from ACS infrastructure, not browsers
				return true
			},
		},
	}

	s.openSession = s.openModelSession

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/realtime/realtime", s.handleMediaSocket)
	mux.HandleFunc("POST /v1/calls/incoming", s.handleIncomingCall)
	mux.HandleFunc("POST /v1/calls/callbacks/{contextID}", s.handleCallback)
	mux.HandleFunc("GET /v1/health/heartbeat", s.handleHeartbeat)

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: media sockets live as long as the call does
	}

	return s
}

// Start begins listening for connections
func (s *Server) Start() error {
	log.Printf("🚀 Call gateway starting on port %d", s.config.Port)
	log.Printf("📡 Media endpoint: wss://%s/v1/realtime/realtime", s.config.BaseURL)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("🛑 Shutting down server...")
	s.manager.Shutdown()
	return s.httpServer.Shutdown(ctx)
}

// handleMediaSocket owns one call's media connection for its lifetime:
// upgrade, open a bridge, run the inbound pump, tear down.
func (s *Server) handleMediaSocket(w http.ResponseWriter, r *http.Request) {
	callConnectionID := r.Header.Get(callConnectionHeader)
	if callConnectionID == "" {
		log.Printf("⚠️ Media socket connected without %s header", callConnectionHeader)
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	// The bridge sends the one close frame itself; suppress the echo
	conn.SetCloseHandler(func(code int, text string) error { return nil })

	bridgeID, b, err := s.manager.CreateBridge(r.Context(), conn, s.openSession, callConnectionID)
	if err != nil {
		log.Printf("Failed to create bridge: %v", err)
		conn.Close()
		return
	}
	log.Printf("✅ New bridge created: %s (call connection %q)", bridgeID, callConnectionID)

	runErr := b.RunInboundPump(r.Context())
	_ = b.Close(runErr)
	conn.Close()

	s.manager.RemoveBridge(r.Context(), bridgeID)
	log.Printf("🔌 Bridge closed: %s", bridgeID)
}

// openModelSession dials the realtime model configured for the root agent
// and triggers its opening line.
func (s *Server) openModelSession(ctx context.Context) (bridge.ModelSession, error) {
	root := s.agents.Root()

	voice := s.config.Voice
	if root.Voice != "" {
		voice = root.Voice
	}

	sess, err := realtime.Dial(ctx,
		realtime.Config{
			Endpoint: s.config.AzureOpenAIEndpoint,
			APIKey:   s.config.AzureOpenAIAPIKey,
		},
		realtime.Settings{
			Model:              s.config.Model,
			Voice:              voice,
			Instructions:       root.FullInstructions(),
			TranscriptionModel: s.config.TranscriptionModel,
			Language:           "en",
			Tools:              root.SessionTools(),
		})
	if err != nil {
		return nil, err
	}

	if root.Greeting != "" {
		if err := sess.StartResponse(ctx, root.Greeting); err != nil {
			sess.Close()
			return nil, err
		}
	}
	return sess, nil
}

// handleIncomingCall receives Event Grid deliveries for new calls. The
// handshake gets its validation response; everything else is answered and
// acknowledged.
func (s *Server) handleIncomingCall(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	validation, err := s.processor.ProcessIncomingEvents(r.Context(), body)
	if err != nil {
		log.Printf("❌ Failed to process incoming call events: %v", err)
		http.Error(w, "failed to process events", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if validation != nil {
		data, err := sonic.Marshal(validation)
		if err != nil {
			http.Error(w, "failed to encode response", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{}`))
}

// handleCallback receives mid-call events. Deliveries are acknowledged
// even when individual events are unusable; only an unreadable body is a
// client error.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	contextID := r.PathValue("contextID")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if err := s.processor.ProcessCallbackEvents(contextID, body); err != nil {
		log.Printf("⚠️ Callback processing for context %s: %v", contextID, err)
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"isAlive":true}`))
}
