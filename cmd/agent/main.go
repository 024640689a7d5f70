package main

import (
	"log"
	"time"

	"nigraan/internal/collector"
	"nigraan/internal/config"
	"nigraan/internal/middleware"
	"nigraan/internal/routes"
	"nigraan/internal/services"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.LoadAgent()
	col := collector.New(cfg.EntityID)

	// Push producer: every second the hub polls the collector and fans
	// the metrics and status topics out to subscribers.
	hub := services.NewHub(func() []services.PushMessage {
		var out []services.PushMessage
		if snap, err := col.Snapshot(); err == nil {
			if msg, err := services.Envelope("metrics", snap); err == nil {
				out = append(out, msg)
			}
		} else {
			log.Printf("[AGENT] Snapshot failed: %v", err)
		}
		if status, err := col.Status(); err == nil {
			if msg, err := services.Envelope("status", status); err == nil {
				out = append(out, msg)
			}
		}
		return out
	}, time.Second)
	defer hub.Stop()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.RateLimitMiddleware(middleware.NewRateLimiter()))

	routes.RegisterMonitorRoutes(r, col, hub)

	log.Printf("[AGENT] Serving entity %s on %s", cfg.EntityID, cfg.Addr)
	if err := r.Run(cfg.Addr); err != nil {
		log.Fatalf("[AGENT] Server failed: %v", err)
	}
}
