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

	"golang.org/x/sync/errgroup"

	"github.com/sudo-init-do/realtime-stack/internal/config"
	"github.com/sudo-init-do/realtime-stack/internal/persist"
	"github.com/sudo-init-do/realtime-stack/internal/store"
	pkglog "github.com/sudo-init-do/realtime-stack/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	pkglog.Init(pkglog.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, ServiceName: "persister"})

	log.Printf("Starting persister (prefetch: %d)", cfg.Consumer.Prefetch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store (fatal if unreachable at boot)
	storeClient, err := store.NewClient(ctx, cfg.Store.URL)
	if err != nil {
		log.Fatalf("Failed to connect to store: %v", err)
	}
	defer storeClient.Close()
	log.Printf("Connected to store")

	repo := store.NewMessageRepository(storeClient)

	// Durable queue consumer (fatal if unreachable at boot)
	consumer, err := persist.NewConsumer(ctx, cfg.Queue, cfg.Consumer.Prefetch, repo)
	if err != nil {
		log.Fatalf("Failed to create queue consumer: %v", err)
	}
	log.Printf("Connected to queue broker at %s (stream: %s, durable: %s)",
		cfg.Queue.URL, cfg.Queue.Stream, cfg.Queue.Durable)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Consumer.Host, cfg.Consumer.Port),
		Handler:     mux,
		IdleTimeout: 30 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return consumer.Run(gctx)
	})

	g.Go(func() error {
		log.Printf("Health server listening on %s:%d", cfg.Consumer.Host, cfg.Consumer.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
			log.Println("Received shutdown signal")
			cancel()
		case <-gctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		server.Shutdown(shutdownCtx)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("Persister exited with error: %v", err)
	}

	consumer.Close()
	log.Println("Persister stopped")
}
