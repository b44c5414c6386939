package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sudo-init-do/realtime-stack/internal/auth"
	"github.com/sudo-init-do/realtime-stack/internal/config"
	"github.com/sudo-init-do/realtime-stack/internal/handler"
	"github.com/sudo-init-do/realtime-stack/internal/hub"
	"github.com/sudo-init-do/realtime-stack/internal/relay"
	"github.com/sudo-init-do/realtime-stack/internal/service"
	pkglog "github.com/sudo-init-do/realtime-stack/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	pkglog.Init(pkglog.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, ServiceName: "ws-gateway"})

	log.Printf("Starting gateway on %s:%d", cfg.Server.Host, cfg.Server.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Durable queue (fatal if unreachable at boot)
	queue, err := relay.NewJetStreamQueue(ctx, cfg.Queue)
	if err != nil {
		log.Fatalf("Failed to connect to durable queue: %v", err)
	}
	log.Printf("Connected to queue broker at %s (stream: %s)", cfg.Queue.URL, cfg.Queue.Stream)

	// Analytics event stream (fatal if the producer cannot be created)
	events, err := relay.NewConfluentEventPublisher(cfg.Events)
	if err != nil {
		log.Fatalf("Failed to create event publisher: %v", err)
	}
	log.Printf("Connected to event broker at %s (topic: %s)", cfg.Events.Broker, cfg.Events.Topic)

	wsHub := hub.NewHub(cfg.WebSocket)
	chatSvc := service.NewChatService(wsHub, relay.NewRelay(queue, events))
	defer chatSvc.Close()

	verifier := auth.NewVerifier(cfg.JWT.Secret)
	wsHandler := handler.NewWSHandler(wsHub, chatSvc, verifier, cfg.WebSocket)

	mux := http.NewServeMux()
	wsHandler.RegisterRoutes(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     mux,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("Gateway listening on %s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down gateway...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Gateway stopped")
}
