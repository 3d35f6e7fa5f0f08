package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/room4-2/OpenCallGate/agent"
	"github.com/room4-2/OpenCallGate/calls"
	"github.com/room4-2/OpenCallGate/config"
	"github.com/room4-2/OpenCallGate/server"
	"github.com/room4-2/OpenCallGate/session"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Load agent definitions
	agents, err := agent.LoadRegistry(cfg.AgentDir)
	if err != nil {
		log.Fatalf("Failed to load agents: %v", err)
	}

	// Call automation client for answering inbound calls
	websocketURL := fmt.Sprintf("wss://%s/v1/realtime/realtime", cfg.BaseURL)
	callClient, err := calls.NewClient(cfg.ACSConnectionString, websocketURL)
	if err != nil {
		log.Fatalf("Failed to create call client: %v", err)
	}
	processor := calls.NewProcessor(callClient, cfg.BaseURL)

	// Create bridge manager
	manager, err := session.NewManager(cfg)
	if err != nil {
		log.Fatalf("Failed to create bridge manager: %v", err)
	}

	// Start cleanup routine
	ctx, cancel := context.WithCancel(context.Background())
	go manager.StartCleanupRoutine(ctx)

	srv := server.NewServer(cfg, manager, processor, agents)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("\nReceived shutdown signal...")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server stopped")
}
