package routes

import (
	"nigraan/internal/controllers"
	"nigraan/internal/services"

	"github.com/gin-gonic/gin"
)

// RegisterDashboardRoutes wires the presentation API: read-only state,
// dispatchable intents, and the live state websocket.
func RegisterDashboardRoutes(r *gin.Engine, store *services.Store, hub *services.Hub) {
	dc := controllers.NewDashboardController(store)

	dashboard := r.Group("/dashboard")
	{
		dashboard.GET("/state", dc.GetState)
		dashboard.GET("/ranges", dc.GetRanges)
		dashboard.POST("/range", dc.SetRange)
		dashboard.POST("/interval", dc.SetInterval)
		dashboard.POST("/refresh", dc.Refresh)
		dashboard.POST("/reset", dc.Reset)
	}

	// The dashboard hub carries aggregate state, not a single entity
	r.GET("/ws", controllers.HandleWebSocket(hub, ""))
}
