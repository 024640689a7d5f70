package controllers

import (
	"errors"
	"net/http"

	"nigraan/internal/resolution"
	"nigraan/internal/services"

	"github.com/gin-gonic/gin"
)

// DashboardController exposes the aggregation store to the presentation
// layer: a read-only state snapshot plus dispatchable intents. Nothing
// here mutates state directly.
type DashboardController struct {
	store *services.Store
}

// NewDashboardController creates the controller for store
func NewDashboardController(store *services.Store) *DashboardController {
	return &DashboardController{store: store}
}

// GetState returns the current AggregationState snapshot
func (dc *DashboardController) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, dc.store.Snapshot())
}

// GetRanges returns the valid range labels and the active resolution
func (dc *DashboardController) GetRanges(c *gin.Context) {
	state := dc.store.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"labels":     resolution.Labels(),
		"active":     state.RangeLabel,
		"resolution": dc.store.ResolutionSpec(),
	})
}

type rangeRequest struct {
	Label string `json:"label" binding:"required"`
}

// SetRange switches the time range and runs a refresh cycle
func (dc *DashboardController) SetRange(c *gin.Context) {
	var req rangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "label is required"})
		return
	}

	if err := dc.store.SetTimeRange(req.Label); err != nil {
		if errors.Is(err, resolution.ErrInvalidRangeLabel) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dc.store.Snapshot())
}

type intervalRequest struct {
	IntervalMS *int64 `json:"interval_ms" binding:"required"`
}

// SetInterval updates the auto-refresh cadence; 0 means manual-only
func (dc *DashboardController) SetInterval(c *gin.Context) {
	var req intervalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "interval_ms is required"})
		return
	}

	if err := dc.store.SetRefreshInterval(*req.IntervalMS); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"interval_ms": *req.IntervalMS})
}

// Refresh runs one refresh cycle and returns the settled state
func (dc *DashboardController) Refresh(c *gin.Context) {
	dc.store.RefreshNow()
	c.JSON(http.StatusOK, dc.store.Snapshot())
}

// Reset clears dashboard state; range and interval survive
func (dc *DashboardController) Reset(c *gin.Context) {
	dc.store.Reset()
	c.JSON(http.StatusOK, dc.store.Snapshot())
}
