package routes

import (
	"nigraan/internal/collector"
	"nigraan/internal/controllers"
	"nigraan/internal/services"

	"github.com/gin-gonic/gin"
)

// RegisterMonitorRoutes wires the agent's pull endpoints and its push
// websocket.
func RegisterMonitorRoutes(r *gin.Engine, col *collector.Collector, hub *services.Hub) {
	mc := controllers.NewMonitorController(col)

	monitoring := r.Group("/monitoring")
	{
		monitoring.GET("/metrics", mc.GetMetrics)
		monitoring.GET("/status", mc.GetStatus)
		monitoring.GET("/:entity/metrics", mc.GetMetrics)
		monitoring.GET("/:entity/status", mc.GetStatus)
	}

	r.GET("/ws", controllers.HandleWebSocket(hub, col.EntityID()))
}
