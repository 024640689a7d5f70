package controllers

import (
	"log"
	"net/http"

	"nigraan/internal/collector"
	"nigraan/internal/middleware"

	"github.com/gin-gonic/gin"
)

// MonitorController serves the pull transport: an entity's current
// metrics and health over plain GETs.
type MonitorController struct {
	collector *collector.Collector
}

// NewMonitorController creates the controller backed by col
func NewMonitorController(col *collector.Collector) *MonitorController {
	return &MonitorController{collector: col}
}

// entityOK checks the optional :entity path segment against the entity
// this agent serves. An empty segment addresses the default entity.
func (mc *MonitorController) entityOK(c *gin.Context) bool {
	entity := c.Param("entity")
	if entity == "" || entity == mc.collector.EntityID() {
		return true
	}
	if !middleware.ValidEntityID(entity) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entity id"})
		return false
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "unknown entity: " + entity})
	return false
}

// GetMetrics returns the entity's current MetricSnapshot
func (mc *MonitorController) GetMetrics(c *gin.Context) {
	if !mc.entityOK(c) {
		return
	}
	snap, err := mc.collector.Snapshot()
	if err != nil {
		log.Printf("[MONITOR] Snapshot failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read metrics"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// GetStatus returns the entity's current HealthStatus
func (mc *MonitorController) GetStatus(c *gin.Context) {
	if !mc.entityOK(c) {
		return
	}
	status, err := mc.collector.Status()
	if err != nil {
		log.Printf("[MONITOR] Status failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read status"})
		return
	}
	c.JSON(http.StatusOK, status)
}
