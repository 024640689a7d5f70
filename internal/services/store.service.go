package services

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"nigraan/internal/models"
	"nigraan/internal/resolution"
)

// ErrUnknownEntity is returned for updates addressed to an entity that
// was never registered.
var ErrUnknownEntity = errors.New("unknown entity")

// ActionType enumerates the store's state transitions
type ActionType string

const (
	ActionSetTimeRange       ActionType = "SET_TIME_RANGE"
	ActionSetRefreshInterval ActionType = "SET_REFRESH_INTERVAL"
	ActionBeginRefresh       ActionType = "BEGIN_REFRESH"
	ActionEntityUpdated      ActionType = "ENTITY_UPDATED"
	ActionRefreshSucceeded   ActionType = "REFRESH_SUCCEEDED"
	ActionRefreshFailed      ActionType = "REFRESH_FAILED"
	ActionReset              ActionType = "RESET"
)

// Action is one dispatched intent. Only the fields the action type needs
// are read.
type Action struct {
	Type           ActionType
	Label          string
	IntervalMillis int64
	EntityID       string
	Entity         *models.EntitySyncState
	Message        string
}

// Store coordinates the registered sync clients and owns the
// dashboard-wide AggregationState. State changes only through Dispatch;
// the refresh cycle and other side effects live in the orchestration
// methods, so transitions stay testable in isolation.
type Store struct {
	mu      sync.RWMutex
	state   models.AggregationState
	spec    resolution.Spec
	clients map[string]*SyncClient

	intervalCh chan struct{}
	stopCh     chan struct{}
	stopOnce   sync.Once
}

// NewStore creates a store with the configured defaults. The range label
// must be valid; both defaults are read once, here.
func NewStore(defaultRange string, defaultIntervalMillis int64) (*Store, error) {
	spec, err := resolution.Resolve(defaultRange)
	if err != nil {
		return nil, err
	}

	return &Store{
		state: models.AggregationState{
			Entities:              map[string]models.EntitySyncState{},
			RangeLabel:            defaultRange,
			RefreshIntervalMillis: defaultIntervalMillis,
		},
		spec:       spec,
		clients:    map[string]*SyncClient{},
		intervalCh: make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
	}, nil
}

// Register creates and starts a sync client for entityID. Registration
// order is display order. Updates from the client flow back in through
// ENTITY_UPDATED dispatches.
func (s *Store) Register(entityID string, pull PullClient, push PushClient, opts SyncOptions) error {
	s.mu.Lock()
	if _, exists := s.clients[entityID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("entity %q already registered", entityID)
	}

	client := NewSyncClient(entityID, pull, push, func(state models.EntitySyncState) {
		if err := s.Dispatch(Action{Type: ActionEntityUpdated, EntityID: entityID, Entity: &state}); err != nil {
			log.Printf("[STORE] Dropped update for %s: %v", entityID, err)
		}
	})
	client.SetResolution(s.spec.PointCount)

	s.clients[entityID] = client
	s.state.EntityOrder = append(s.state.EntityOrder, entityID)
	s.state.Entities[entityID] = client.State()
	s.mu.Unlock()

	client.Start(opts)
	log.Printf("[STORE] Registered entity %s (streaming=%v)", entityID, opts.UseStreaming)
	return nil
}

// Deregister stops the entity's client and removes its state
func (s *Store) Deregister(entityID string) error {
	s.mu.Lock()
	client, exists := s.clients[entityID]
	if !exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownEntity, entityID)
	}
	delete(s.clients, entityID)
	delete(s.state.Entities, entityID)
	for i, id := range s.state.EntityOrder {
		if id == entityID {
			s.state.EntityOrder = append(s.state.EntityOrder[:i], s.state.EntityOrder[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	client.Stop()
	log.Printf("[STORE] Deregistered entity %s", entityID)
	return nil
}

// Dispatch applies one transition. It is synchronous and atomic with
// respect to other dispatches.
func (s *Store) Dispatch(a Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := reduce(s.state, s.spec, a)
	if err != nil {
		return err
	}
	s.state = next
	if a.Type == ActionSetTimeRange {
		// Validated by the reducer above
		s.spec, _ = resolution.Resolve(a.Label)
	}
	return nil
}

// reduce is the pure transition function over AggregationState. It never
// touches the network or the clients; invalid actions leave the prior
// state untouched.
func reduce(state models.AggregationState, spec resolution.Spec, a Action) (models.AggregationState, error) {
	switch a.Type {
	case ActionSetTimeRange:
		if !resolution.Valid(a.Label) {
			return state, fmt.Errorf("%w: %q", resolution.ErrInvalidRangeLabel, a.Label)
		}
		next := cloneState(state)
		next.RangeLabel = a.Label
		next.IsLoading = true
		return next, nil

	case ActionSetRefreshInterval:
		if a.IntervalMillis < 0 {
			return state, fmt.Errorf("refresh interval must be >= 0, got %d", a.IntervalMillis)
		}
		next := cloneState(state)
		next.RefreshIntervalMillis = a.IntervalMillis
		return next, nil

	case ActionBeginRefresh:
		next := cloneState(state)
		next.IsLoading = true
		return next, nil

	case ActionEntityUpdated:
		if _, ok := state.Entities[a.EntityID]; !ok {
			return state, fmt.Errorf("%w: %s", ErrUnknownEntity, a.EntityID)
		}
		if a.Entity == nil {
			return state, fmt.Errorf("entity update for %s carries no state", a.EntityID)
		}
		next := cloneState(state)
		next.Entities[a.EntityID] = *a.Entity
		return next, nil

	case ActionRefreshSucceeded:
		next := cloneState(state)
		next.IsLoading = false
		next.IsError = false
		next.LastError = ""
		next.LastRefreshed = time.Now()
		next.Rows = buildComparisonRows(next.Entities, next.EntityOrder, spec.PointCount)
		return next, nil

	case ActionRefreshFailed:
		next := cloneState(state)
		next.IsLoading = false
		next.IsError = true
		next.LastError = a.Message
		return next, nil

	case ActionReset:
		next := models.AggregationState{
			Entities:              map[string]models.EntitySyncState{},
			EntityOrder:           append([]string(nil), state.EntityOrder...),
			RangeLabel:            state.RangeLabel,
			RefreshIntervalMillis: state.RefreshIntervalMillis,
		}
		for _, id := range state.EntityOrder {
			prev := state.Entities[id]
			next.Entities[id] = models.EntitySyncState{
				EntityID:  id,
				IsLoading: true,
				Mode:      prev.Mode,
			}
		}
		return next, nil

	default:
		return state, fmt.Errorf("unknown action type %q", a.Type)
	}
}

// cloneState copies the state deeply enough that the reducer can write
// freely: the entity map and row slice are fresh, the per-entity values
// are value copies.
func cloneState(state models.AggregationState) models.AggregationState {
	next := state
	next.Entities = make(map[string]models.EntitySyncState, len(state.Entities))
	for id, entity := range state.Entities {
		next.Entities[id] = entity
	}
	next.EntityOrder = append([]string(nil), state.EntityOrder...)
	next.Rows = append([]models.ComparisonRow(nil), state.Rows...)
	return next
}

// buildComparisonRows aligns every entity's sample ring by index onto
// the active resolution's grid. A missing sample is a nil gap marker, so
// entities never have to be fetched in lockstep.
func buildComparisonRows(entities map[string]models.EntitySyncState, order []string, pointCount int) []models.ComparisonRow {
	rows := make([]models.ComparisonRow, 0, pointCount)
	for i := 0; i < pointCount; i++ {
		row := models.ComparisonRow{
			Index:  i,
			Values: make(map[string]*float64, len(order)),
		}
		for _, id := range order {
			entity := entities[id]
			if i < len(entity.Samples) {
				v := entity.Samples[i].CPU
				row.Values[id] = &v
			} else {
				row.Values[id] = nil
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// SetTimeRange validates and applies a new range, resizes every client's
// sample ring, and runs a full refresh cycle.
func (s *Store) SetTimeRange(label string) error {
	if err := s.Dispatch(Action{Type: ActionSetTimeRange, Label: label}); err != nil {
		return err
	}

	s.mu.RLock()
	pointCount := s.spec.PointCount
	clients := s.clientList()
	s.mu.RUnlock()

	for _, c := range clients {
		c.SetResolution(pointCount)
	}

	s.RefreshNow()
	return nil
}

// SetRefreshInterval updates the auto-refresh cadence; 0 disables it
func (s *Store) SetRefreshInterval(intervalMillis int64) error {
	if err := s.Dispatch(Action{Type: ActionSetRefreshInterval, IntervalMillis: intervalMillis}); err != nil {
		return err
	}
	select {
	case s.intervalCh <- struct{}{}:
	default:
	}
	return nil
}

// Reset returns to initial state; the selected range and refresh
// interval survive.
func (s *Store) Reset() {
	_ = s.Dispatch(Action{Type: ActionReset})
}

// RefreshNow runs one full refresh cycle: fan out to every client
// concurrently, wait for all to settle, merge the results, then declare
// the cycle succeeded if at least one entity updated cleanly. One
// entity's failure never blocks the others.
func (s *Store) RefreshNow() {
	_ = s.Dispatch(Action{Type: ActionBeginRefresh})

	s.mu.RLock()
	clients := s.clientList()
	s.mu.RUnlock()

	if len(clients) == 0 {
		_ = s.Dispatch(Action{Type: ActionRefreshFailed, Message: "no entities registered"})
		return
	}

	var wg sync.WaitGroup
	var okMu sync.Mutex
	succeeded := 0

	for _, client := range clients {
		wg.Add(1)
		go func(c *SyncClient) {
			defer wg.Done()
			if err := c.Refresh(); err == nil {
				okMu.Lock()
				succeeded++
				okMu.Unlock()
			}
		}(client)
	}
	wg.Wait()

	// The clients dispatched their own ENTITY_UPDATED on completion;
	// re-merge here anyway so a cycle observes every client's settled
	// state even if an update raced the fan-out.
	for _, client := range clients {
		state := client.State()
		_ = s.Dispatch(Action{Type: ActionEntityUpdated, EntityID: state.EntityID, Entity: &state})
	}

	if succeeded > 0 {
		_ = s.Dispatch(Action{Type: ActionRefreshSucceeded})
	} else {
		_ = s.Dispatch(Action{Type: ActionRefreshFailed, Message: "all entity refreshes failed"})
	}
}

// clientList returns the registered clients in display order; caller
// holds at least a read lock.
func (s *Store) clientList() []*SyncClient {
	out := make([]*SyncClient, 0, len(s.clients))
	for _, id := range s.state.EntityOrder {
		if c, ok := s.clients[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Snapshot returns a read-only copy of the aggregation state
func (s *Store) Snapshot() models.AggregationState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneState(s.state)
}

// ResolutionSpec returns the active sampling resolution
func (s *Store) ResolutionSpec() resolution.Spec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.spec
}

// Start runs the auto-refresh loop until Stop. An interval of 0 parks
// the loop until the interval changes.
func (s *Store) Start() {
	go func() {
		for {
			s.mu.RLock()
			interval := time.Duration(s.state.RefreshIntervalMillis) * time.Millisecond
			s.mu.RUnlock()

			var tick <-chan time.Time
			var timer *time.Timer
			if interval > 0 {
				timer = time.NewTimer(interval)
				tick = timer.C
			}

			select {
			case <-s.stopCh:
				if timer != nil {
					timer.Stop()
				}
				return
			case <-s.intervalCh:
				if timer != nil {
					timer.Stop()
				}
			case <-tick:
				s.RefreshNow()
			}
		}
	}()
}

// Stop halts auto refresh and stops every registered client. Idempotent.
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})

	s.mu.RLock()
	clients := s.clientList()
	s.mu.RUnlock()

	for _, c := range clients {
		c.Stop()
	}
}
