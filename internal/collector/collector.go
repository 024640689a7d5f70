// Package collector reads host measurements for the agent's entity and
// shapes them into the wire types the dashboard consumes.
package collector

import (
	"log"
	"sync"
	"time"

	"nigraan/internal/models"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// cacheTTL keeps /metrics, /status, and the push ticker on one reading
// per second instead of hammering the kernel per request.
const cacheTTL = 1 * time.Second

// Collector produces MetricSnapshot and HealthStatus readings for one
// entity, with a short TTL cache in front of the system calls.
type Collector struct {
	entityID string
	diskPath string

	mu       sync.Mutex
	cached   *models.MetricSnapshot
	cachedAt time.Time
	lastSent uint64
	lastRecv uint64
	lastAt   time.Time
}

// New creates a collector for entityID, measuring disk usage at "/"
func New(entityID string) *Collector {
	return &Collector{
		entityID: entityID,
		diskPath: "/",
	}
}

// EntityID returns the entity this collector reads for
func (c *Collector) EntityID() string {
	return c.entityID
}

// Snapshot returns the current reading, reusing a cached one inside the
// TTL window. The returned snapshot is immutable; callers must not
// modify it.
func (c *Collector) Snapshot() (*models.MetricSnapshot, error) {
	c.mu.Lock()
	if c.cached != nil && time.Since(c.cachedAt) < cacheTTL {
		snap := c.cached
		c.mu.Unlock()
		return snap, nil
	}
	c.mu.Unlock()

	// System calls run outside the lock; they can take hundreds of
	// milliseconds and must not block concurrent readers of the cache.
	snap, err := c.read()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cached = snap
	c.cachedAt = time.Now()
	c.mu.Unlock()
	return snap, nil
}

func (c *Collector) read() (*models.MetricSnapshot, error) {
	now := time.Now()

	percent, err := cpu.Percent(0, false)
	if err != nil {
		return nil, err
	}
	perCore, err := cpu.Percent(0, true)
	if err != nil {
		log.Printf("Warning: could not get per-core CPU usage: %v", err)
		perCore = nil
	}
	coreCount, err := cpu.Counts(true)
	if err != nil {
		log.Printf("Warning: could not get CPU core count: %v", err)
		coreCount = 0
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return nil, err
	}

	usage, err := disk.Usage(c.diskPath)
	if err != nil {
		return nil, err
	}

	snap := &models.MetricSnapshot{
		Timestamp: now,
		CPU: models.CPUMetrics{
			UsagePercent: percent[0],
			PerCore:      perCore,
			CoreCount:    coreCount,
		},
		Memory: models.MemoryMetrics{
			UsagePercent: vm.UsedPercent,
			UsedBytes:    vm.Used,
			TotalBytes:   vm.Total,
			AvailBytes:   vm.Available,
		},
		Disk: models.DiskMetrics{
			Path:         c.diskPath,
			UsagePercent: usage.UsedPercent,
			UsedBytes:    usage.Used,
			TotalBytes:   usage.Total,
		},
		Network: c.readNetwork(now),
	}

	if pids, err := process.Pids(); err == nil {
		snap.ProcessCount = len(pids)
	} else {
		log.Printf("Warning: could not count processes: %v", err)
	}

	return snap, nil
}

// readNetwork sums counters across interfaces and derives send/recv
// rates from the delta since the previous reading.
func (c *Collector) readNetwork(now time.Time) models.NetworkMetrics {
	counters, err := net.IOCounters(false)
	if err != nil || len(counters) == 0 {
		log.Printf("Warning: could not get network counters: %v", err)
		return models.NetworkMetrics{}
	}

	totalSent := counters[0].BytesSent
	totalRecv := counters[0].BytesRecv

	c.mu.Lock()
	defer c.mu.Unlock()

	out := models.NetworkMetrics{
		BytesSent: totalSent,
		BytesRecv: totalRecv,
	}

	if !c.lastAt.IsZero() {
		delta := now.Sub(c.lastAt).Seconds()
		if delta > 0 {
			out.BytesSentRate = float64(totalSent-c.lastSent) / delta
			out.BytesRecvRate = float64(totalRecv-c.lastRecv) / delta
		}
		// Counter resets would go negative
		if out.BytesSentRate < 0 {
			out.BytesSentRate = 0
		}
		if out.BytesRecvRate < 0 {
			out.BytesRecvRate = 0
		}
	}

	c.lastSent = totalSent
	c.lastRecv = totalRecv
	c.lastAt = now
	return out
}

// Status derives the entity's health from the current snapshot plus host
// uptime. Health changes independently of snapshot cadence only in the
// sense that its thresholds re-evaluate on every call.
func (c *Collector) Status() (*models.HealthStatus, error) {
	snap, err := c.Snapshot()
	if err != nil {
		return &models.HealthStatus{
			Status:    models.HealthUnknown,
			Timestamp: time.Now(),
		}, nil
	}

	status, alerts := DeriveHealth(snap)

	uptime, err := host.Uptime()
	if err != nil {
		log.Printf("Warning: could not get host uptime: %v", err)
		uptime = 0
	}

	return &models.HealthStatus{
		Status:        status,
		UptimeSeconds: uptime,
		Alerts:        alerts,
		Timestamp:     time.Now(),
	}, nil
}
