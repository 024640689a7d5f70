package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"nigraan/internal/config"
	"nigraan/internal/middleware"
	"nigraan/internal/routes"
	"nigraan/internal/services"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadDashboard()
	if err != nil {
		log.Fatalf("[NIGRAAN] Bad configuration: %v", err)
	}

	store, err := services.NewStore(cfg.DefaultRange, cfg.RefreshInterval)
	if err != nil {
		log.Fatalf("[NIGRAAN] Bad default range %q: %v", cfg.DefaultRange, err)
	}

	opts := services.SyncOptions{
		UseStreaming: cfg.UseStreaming,
		PollInterval: time.Duration(cfg.PollInterval) * time.Millisecond,
	}
	for _, agent := range cfg.Agents {
		pull := services.NewMonitorClient(agent.BaseURL)
		var push services.PushClient
		if cfg.UseStreaming {
			push = services.NewPushDialer(wsEndpoint(agent.BaseURL))
		}
		if err := store.Register(agent.EntityID, pull, push, opts); err != nil {
			log.Fatalf("[NIGRAAN] Register %s: %v", agent.EntityID, err)
		}
	}
	store.Start()

	// Browsers get the aggregation state pushed over the hub as well as
	// pulled from /dashboard/state.
	hub := services.NewHub(func() []services.PushMessage {
		msg, err := services.Envelope("state", store.Snapshot())
		if err != nil {
			return nil
		}
		return []services.PushMessage{msg}
	}, 2*time.Second)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.RateLimitMiddleware(middleware.NewRateLimiter()))

	routes.RegisterDashboardRoutes(r, store, hub)

	srv := &http.Server{Addr: cfg.Addr, Handler: r}
	go func() {
		log.Printf("[NIGRAAN] Dashboard on %s, watching %d entities", cfg.Addr, len(cfg.Agents))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[NIGRAAN] Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[NIGRAAN] Shutting down")
	store.Stop()
	hub.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[NIGRAAN] Shutdown: %v", err)
	}
}

// wsEndpoint maps an agent's http base URL onto its push endpoint
func wsEndpoint(baseURL string) string {
	return "ws" + strings.TrimPrefix(baseURL, "http") + "/ws"
}
