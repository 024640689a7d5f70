package collector

import (
	"testing"

	"nigraan/internal/models"
)

func snapWith(cpu, mem, disk float64) *models.MetricSnapshot {
	return &models.MetricSnapshot{
		CPU:    models.CPUMetrics{UsagePercent: cpu},
		Memory: models.MemoryMetrics{UsagePercent: mem},
		Disk:   models.DiskMetrics{UsagePercent: disk},
	}
}

func TestDeriveHealth_Healthy(t *testing.T) {
	status, alerts := DeriveHealth(snapWith(20, 40, 50))
	if status != models.HealthHealthy {
		t.Errorf("Expected healthy, got %s", status)
	}
	if len(alerts) != 0 {
		t.Errorf("Expected no alerts, got %d", len(alerts))
	}
}

func TestDeriveHealth_Warning(t *testing.T) {
	status, alerts := DeriveHealth(snapWith(80, 40, 50))
	if status != models.HealthWarning {
		t.Errorf("Expected warning, got %s", status)
	}
	if len(alerts) != 1 {
		t.Fatalf("Expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].Severity != models.SeverityWarning {
		t.Errorf("Expected warning severity, got %s", alerts[0].Severity)
	}
}

func TestDeriveHealth_CriticalWins(t *testing.T) {
	status, alerts := DeriveHealth(snapWith(80, 96, 50))
	if status != models.HealthError {
		t.Errorf("Expected error, got %s", status)
	}
	if len(alerts) != 2 {
		t.Errorf("Expected 2 alerts (cpu warn + mem crit), got %d", len(alerts))
	}
}

func TestDeriveHealth_NilSnapshot(t *testing.T) {
	status, alerts := DeriveHealth(nil)
	if status != models.HealthUnknown {
		t.Errorf("Expected unknown, got %s", status)
	}
	if alerts != nil {
		t.Errorf("Expected no alerts, got %v", alerts)
	}
}

func TestDeriveHealth_Boundaries(t *testing.T) {
	cases := []struct {
		cpu      float64
		expected models.Health
	}{
		{74.9, models.HealthHealthy},
		{75.0, models.HealthWarning},
		{89.9, models.HealthWarning},
		{90.0, models.HealthError},
	}
	for _, tc := range cases {
		status, _ := DeriveHealth(snapWith(tc.cpu, 0, 0))
		if status != tc.expected {
			t.Errorf("cpu=%.1f: expected %s, got %s", tc.cpu, tc.expected, status)
		}
	}
}
