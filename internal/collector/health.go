package collector

import (
	"fmt"

	"nigraan/internal/models"
)

// Utilization thresholds for health classification
const (
	cpuWarn  = 75.0
	cpuCrit  = 90.0
	memWarn  = 80.0
	memCrit  = 95.0
	diskWarn = 85.0
	diskCrit = 95.0
)

// DeriveHealth classifies a snapshot into a health status plus the
// active alerts behind it. Pure; the worst alert severity wins.
func DeriveHealth(snap *models.MetricSnapshot) (models.Health, []models.Alert) {
	if snap == nil {
		return models.HealthUnknown, nil
	}

	var alerts []models.Alert
	check := func(id string, value, warn, crit float64, what string) {
		switch {
		case value >= crit:
			alerts = append(alerts, models.Alert{
				ID:       id + "-critical",
				Severity: models.SeverityCritical,
				Message:  fmt.Sprintf("%s at %.1f%%", what, value),
			})
		case value >= warn:
			alerts = append(alerts, models.Alert{
				ID:       id + "-high",
				Severity: models.SeverityWarning,
				Message:  fmt.Sprintf("%s at %.1f%%", what, value),
			})
		}
	}

	check("cpu", snap.CPU.UsagePercent, cpuWarn, cpuCrit, "CPU usage")
	check("memory", snap.Memory.UsagePercent, memWarn, memCrit, "Memory usage")
	check("disk", snap.Disk.UsagePercent, diskWarn, diskCrit, "Disk usage")

	status := models.HealthHealthy
	for _, a := range alerts {
		if a.Severity == models.SeverityCritical {
			return models.HealthError, alerts
		}
		status = models.HealthWarning
	}
	return status, alerts
}
