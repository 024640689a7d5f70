package services

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"nigraan/internal/models"
)

const (
	// DefaultPollInterval is used when SyncOptions leaves the poll
	// cadence unset.
	DefaultPollInterval = 30 * time.Second

	// FailureThreshold is how many consecutive pull failures it takes
	// before an entity is flagged as errored. Single flaps keep the
	// last-known-good data on screen without an error banner.
	FailureThreshold = 3
)

// SyncOptions configures one entity's synchronization
type SyncOptions struct {
	UseStreaming bool
	PollInterval time.Duration
}

// UpdateFunc receives a copy of the entity's state after every applied
// change.
type UpdateFunc func(models.EntitySyncState)

// SyncClient keeps one entity's EntitySyncState current. It prefers push
// delivery when a subscription can be opened and polls otherwise, merging
// both into a single state under a monotonic sequence number: a slow
// response that completes after a newer update is discarded, never applied.
type SyncClient struct {
	entityID string
	pull     PullClient
	push     PushClient
	onUpdate UpdateFunc

	mu         sync.Mutex
	state      models.EntitySyncState
	maxSamples int
	issued     uint64 // last sequence number handed out
	applied    uint64 // sequence number of the update currently in state
	failures   int    // consecutive pull failures
	started    bool
	stopped    bool
	stream     bool // push subscriptions currently live
	streamDead bool // a disconnect arrived, possibly before stream went live
	unsubs     []Unsubscribe

	pollInterval time.Duration
	stopCh       chan struct{}
}

// NewSyncClient creates a sync client for entityID. push may be nil to
// force polling; onUpdate may be nil.
func NewSyncClient(entityID string, pull PullClient, push PushClient, onUpdate UpdateFunc) *SyncClient {
	return &SyncClient{
		entityID: entityID,
		pull:     pull,
		push:     push,
		onUpdate: onUpdate,
		state: models.EntitySyncState{
			EntityID:  entityID,
			IsLoading: true,
			Mode:      models.ModePolling,
		},
		maxSamples: 60,
		stopCh:     make(chan struct{}),
	}
}

// Start begins synchronization. With streaming enabled it tries to open
// push subscriptions for the metrics and status topics; on success the
// poll timer stays off. Either way one immediate pull fetch seeds the
// state, since push delivery does not backfill.
func (c *SyncClient) Start(opts SyncOptions) {
	c.mu.Lock()
	if c.started || c.stopped {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.pollInterval = opts.PollInterval
	if c.pollInterval <= 0 {
		c.pollInterval = DefaultPollInterval
	}
	c.mu.Unlock()

	streaming := false
	if opts.UseStreaming && c.push != nil {
		streaming = c.subscribe()
	}
	if !streaming {
		c.startPolling()
	}

	// Seed fetch regardless of transport mode
	go c.Refresh()
}

// subscribe opens both topic subscriptions; on partial failure it tears
// down whatever opened and reports false so the caller falls back.
func (c *SyncClient) subscribe() bool {
	var opened []Unsubscribe
	for _, topic := range []string{"metrics", "status"} {
		topic := topic
		unsub, err := c.push.Subscribe(PushRequest{
			EntityID:     c.entityID,
			Topic:        topic,
			OnMessage:    func(payload json.RawMessage) { c.applyPush(topic, payload) },
			OnDisconnect: func(err error) { c.fallbackToPolling(err) },
		})
		if err != nil {
			log.Printf("[SYNC] %s: push subscribe (%s) failed, falling back to polling: %v", c.entityID, topic, err)
			for _, u := range opened {
				u()
			}
			return false
		}
		opened = append(opened, unsub)
	}

	c.mu.Lock()
	// A disconnect can race the subscribe handshake; if one already
	// landed, these subscriptions are dead on arrival.
	if c.stopped || c.streamDead {
		c.mu.Unlock()
		for _, u := range opened {
			u()
		}
		return false
	}
	c.unsubs = opened
	c.stream = true
	c.state.Mode = models.ModeStreaming
	c.mu.Unlock()
	return true
}

// startPolling runs the poll loop until Stop
func (c *SyncClient) startPolling() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.state.Mode = models.ModePolling
	interval := c.pollInterval
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-c.stopCh:
				return
			case <-ticker.C:
				c.Refresh()
			}
		}
	}()
}

// fallbackToPolling handles a dropped push stream. Not an error state:
// the entity keeps updating, just over the slower transport.
func (c *SyncClient) fallbackToPolling(err error) {
	c.mu.Lock()
	c.streamDead = true
	if c.stopped || !c.stream {
		c.mu.Unlock()
		return
	}
	c.stream = false
	unsubs := c.unsubs
	c.unsubs = nil
	interval := c.pollInterval
	c.mu.Unlock()

	for _, u := range unsubs {
		u()
	}

	log.Printf("[SYNC] %s: push stream lost, polling every %v: %v", c.entityID, interval, err)
	c.startPolling()
}

// Refresh performs one pull fetch and applies the result. Used for the
// seed fetch, every poll tick, user-initiated retry, and the global
// refresh fan-out. Returns the fetch error, if any; a result discarded
// as stale is not an error.
func (c *SyncClient) Refresh() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.issued++
	seq := c.issued
	c.state.IsLoading = true
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), PullTimeout)
	defer cancel()

	snap, err := c.pull.FetchMetrics(ctx, c.entityID)
	if err != nil {
		c.applyFailure(seq, err)
		return err
	}

	// Health rides the same cycle but its failure is not fatal: metrics
	// already succeeded, so the old status simply stays current.
	status, statusErr := c.pull.FetchStatus(ctx, c.entityID)
	if statusErr != nil {
		log.Printf("[SYNC] %s: status fetch failed, keeping previous: %v", c.entityID, statusErr)
		status = nil
	}

	c.applySuccess(seq, snap, status, true)
	return nil
}

// applyPush merges one streamed payload. Push messages get a fresh
// sequence number at arrival, so they always out-rank any pull that was
// issued earlier and is still in flight.
func (c *SyncClient) applyPush(topic string, payload json.RawMessage) {
	switch topic {
	case "metrics":
		var snap models.MetricSnapshot
		if err := json.Unmarshal(payload, &snap); err != nil {
			log.Printf("[SYNC] %s: bad metrics payload: %v", c.entityID, err)
			return
		}
		c.mu.Lock()
		c.issued++
		seq := c.issued
		c.mu.Unlock()
		c.applySuccess(seq, &snap, nil, false)

	case "status":
		var status models.HealthStatus
		if err := json.Unmarshal(payload, &status); err != nil {
			log.Printf("[SYNC] %s: bad status payload: %v", c.entityID, err)
			return
		}
		c.mu.Lock()
		c.issued++
		seq := c.issued
		c.mu.Unlock()
		c.applySuccess(seq, nil, &status, false)
	}
}

// applySuccess installs a newer snapshot and/or status. Results older
// than the applied sequence are discarded: last writer wins by logical
// clock, not arrival time. fromPull also clears the loading flag.
func (c *SyncClient) applySuccess(seq uint64, snap *models.MetricSnapshot, status *models.HealthStatus, fromPull bool) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	if seq <= c.applied {
		c.settleStaleLocked(fromPull)
		return
	}
	c.applied = seq

	if snap != nil {
		c.state.Snapshot = snap
		c.appendSampleLocked(snap)
	}
	if status != nil {
		c.state.Status = status
	}
	c.state.LastUpdated = time.Now()
	c.state.IsError = false
	c.state.LastError = ""
	c.failures = 0
	if fromPull {
		c.state.IsLoading = false
	}
	update := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(update)
}

// applyFailure records a failed pull. The previous snapshot stays: stale
// data beats no data. IsError flips only after FailureThreshold
// consecutive failures.
func (c *SyncClient) applyFailure(seq uint64, err error) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	if seq <= c.applied {
		c.settleStaleLocked(true)
		return
	}
	c.applied = seq

	c.failures++
	c.state.LastError = err.Error()
	c.state.IsLoading = false
	if c.failures >= FailureThreshold {
		c.state.IsError = true
	}
	failures := c.failures
	update := c.snapshotLocked()
	c.mu.Unlock()

	log.Printf("[SYNC] %s: pull failed (%d consecutive): %v", c.entityID, failures, err)
	c.notify(update)
}

// settleStaleLocked handles a result that lost the sequence race. The
// data (or error) is dropped, but a pull raised IsLoading when it was
// issued, so the flag still has to come down. Caller holds c.mu, which
// is released here.
func (c *SyncClient) settleStaleLocked(fromPull bool) {
	if !fromPull || !c.state.IsLoading {
		c.mu.Unlock()
		return
	}
	c.state.IsLoading = false
	update := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(update)
}

// appendSampleLocked feeds the rolling sample ring used for comparison
// charts; caller holds c.mu.
func (c *SyncClient) appendSampleLocked(snap *models.MetricSnapshot) {
	c.state.Samples = append(c.state.Samples, models.SamplePoint{
		Timestamp: snap.Timestamp,
		CPU:       snap.CPU.UsagePercent,
		Memory:    snap.Memory.UsagePercent,
	})
	if overflow := len(c.state.Samples) - c.maxSamples; overflow > 0 {
		c.state.Samples = c.state.Samples[overflow:]
	}
}

// SetResolution resizes the sample ring for a new time range
func (c *SyncClient) SetResolution(pointCount int) {
	if pointCount <= 0 {
		return
	}
	c.mu.Lock()
	c.maxSamples = pointCount
	if overflow := len(c.state.Samples) - c.maxSamples; overflow > 0 {
		c.state.Samples = c.state.Samples[overflow:]
	}
	c.mu.Unlock()
}

// State returns a copy of the current sync state
func (c *SyncClient) State() models.EntitySyncState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// snapshotLocked copies the state; caller holds c.mu. Snapshot and
// status pointers are shared, they are immutable once published.
func (c *SyncClient) snapshotLocked() models.EntitySyncState {
	out := c.state
	out.Samples = make([]models.SamplePoint, len(c.state.Samples))
	copy(out.Samples, c.state.Samples)
	return out
}

func (c *SyncClient) notify(state models.EntitySyncState) {
	if c.onUpdate != nil {
		c.onUpdate(state)
	}
}

// Stop tears down the poll timer and any open subscriptions. Idempotent;
// after it returns no pending completion can mutate state.
func (c *SyncClient) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	unsubs := c.unsubs
	c.unsubs = nil
	close(c.stopCh)
	c.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
}
