package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"nigraan/internal/models"
)

// fakePull is a programmable PullClient
type fakePull struct {
	mu      sync.Mutex
	metrics func(ctx context.Context) (*models.MetricSnapshot, error)
	calls   int
}

func (f *fakePull) FetchMetrics(ctx context.Context, entityID string) (*models.MetricSnapshot, error) {
	f.mu.Lock()
	f.calls++
	fn := f.metrics
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	return metricSnap(1), nil
}

func (f *fakePull) FetchStatus(ctx context.Context, entityID string) (*models.HealthStatus, error) {
	return &models.HealthStatus{Status: models.HealthHealthy, Timestamp: time.Now()}, nil
}

func (f *fakePull) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakePull) set(fn func(ctx context.Context) (*models.MetricSnapshot, error)) {
	f.mu.Lock()
	f.metrics = fn
	f.mu.Unlock()
}

// fakePush records subscriptions and can fail, deliver, or disconnect
type fakePush struct {
	mu      sync.Mutex
	err     error
	subs    []PushRequest
	unsubed int
}

func (f *fakePush) Subscribe(req PushRequest) (Unsubscribe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.subs = append(f.subs, req)
	return func() {
		f.mu.Lock()
		f.unsubed++
		f.mu.Unlock()
	}, nil
}

func (f *fakePush) disconnectAll(err error) {
	f.mu.Lock()
	subs := append([]PushRequest(nil), f.subs...)
	f.mu.Unlock()
	for _, s := range subs {
		if s.OnDisconnect != nil {
			s.OnDisconnect(err)
		}
	}
}

func metricSnap(cpu float64) *models.MetricSnapshot {
	return &models.MetricSnapshot{
		Timestamp: time.Now(),
		CPU:       models.CPUMetrics{UsagePercent: cpu},
		Memory:    models.MemoryMetrics{UsagePercent: 50},
	}
}

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// waitFor polls until cond is true or the deadline passes
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestSyncClient_RefreshSeedsState(t *testing.T) {
	pull := &fakePull{}
	pull.set(func(context.Context) (*models.MetricSnapshot, error) {
		return metricSnap(42), nil
	})
	c := NewSyncClient("container1", pull, nil, nil)

	if err := c.Refresh(); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	state := c.State()
	if state.Snapshot == nil || state.Snapshot.CPU.UsagePercent != 42 {
		t.Errorf("Expected snapshot with cpu 42, got %+v", state.Snapshot)
	}
	if state.Status == nil || state.Status.Status != models.HealthHealthy {
		t.Errorf("Expected healthy status, got %+v", state.Status)
	}
	if state.IsLoading {
		t.Error("IsLoading should clear after a successful pull")
	}
	if state.IsError || state.LastError != "" {
		t.Errorf("Unexpected error state: %v %q", state.IsError, state.LastError)
	}
	if state.LastUpdated.IsZero() {
		t.Error("LastUpdated should be stamped")
	}
	if len(state.Samples) != 1 || state.Samples[0].CPU != 42 {
		t.Errorf("Expected one sample with cpu 42, got %+v", state.Samples)
	}
}

// A pull that resolves after a newer push message must not overwrite the
// push data: last writer wins by sequence number, not arrival time.
func TestSyncClient_LatePullDoesNotOverwriteNewerPush(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	pull := &fakePull{}
	pull.set(func(context.Context) (*models.MetricSnapshot, error) {
		close(entered)
		<-release
		return metricSnap(42), nil
	})
	c := NewSyncClient("container1", pull, nil, nil)

	done := make(chan struct{})
	go func() {
		c.Refresh()
		close(done)
	}()
	<-entered

	// Newer data arrives over push while the pull is still in flight
	c.applyPush("metrics", mustJSON(t, metricSnap(77)))

	close(release)
	<-done

	state := c.State()
	if state.Snapshot.CPU.UsagePercent != 77 {
		t.Errorf("Stale pull overwrote push data: expected cpu 77, got %.0f", state.Snapshot.CPU.UsagePercent)
	}
	if len(state.Samples) != 1 {
		t.Errorf("Discarded pull should not append a sample: got %d", len(state.Samples))
	}
}

func TestSyncClient_StaleDiscardedPullClearsLoading(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	pull := &fakePull{}
	pull.set(func(context.Context) (*models.MetricSnapshot, error) {
		close(entered)
		<-release
		return metricSnap(42), nil
	})
	c := NewSyncClient("container1", pull, nil, nil)

	done := make(chan struct{})
	go func() {
		c.Refresh()
		close(done)
	}()
	<-entered

	c.applyPush("metrics", mustJSON(t, metricSnap(77)))

	close(release)
	<-done

	state := c.State()
	if state.IsLoading {
		t.Error("Discarded pull must still clear IsLoading")
	}
	if state.Snapshot.CPU.UsagePercent != 77 {
		t.Errorf("Discarded pull must not replace data: expected cpu 77, got %.0f", state.Snapshot.CPU.UsagePercent)
	}
}

func TestSyncClient_StaleFailedPullClearsLoadingWithoutError(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	pull := &fakePull{}
	pull.set(func(context.Context) (*models.MetricSnapshot, error) {
		close(entered)
		<-release
		return nil, errors.New("agent went away")
	})
	c := NewSyncClient("container1", pull, nil, nil)

	done := make(chan struct{})
	go func() {
		c.Refresh()
		close(done)
	}()
	<-entered

	c.applyPush("metrics", mustJSON(t, metricSnap(77)))

	close(release)
	<-done

	state := c.State()
	if state.IsLoading {
		t.Error("Discarded failed pull must still clear IsLoading")
	}
	if state.IsError || state.LastError != "" {
		t.Errorf("Discarded failure must not be recorded: IsError=%v LastError=%q", state.IsError, state.LastError)
	}
	if state.Snapshot.CPU.UsagePercent != 77 {
		t.Errorf("Expected push data to survive, got cpu %.0f", state.Snapshot.CPU.UsagePercent)
	}
}

func TestSyncClient_PushDoesNotToggleLoading(t *testing.T) {
	pull := &fakePull{}
	c := NewSyncClient("container1", pull, nil, nil)
	if err := c.Refresh(); err != nil {
		t.Fatal(err)
	}

	c.applyPush("metrics", mustJSON(t, metricSnap(33)))
	c.applyPush("status", mustJSON(t, &models.HealthStatus{Status: models.HealthWarning}))

	state := c.State()
	if state.Snapshot.CPU.UsagePercent != 33 {
		t.Errorf("Expected push metrics applied, got %.0f", state.Snapshot.CPU.UsagePercent)
	}
	if state.Status.Status != models.HealthWarning {
		t.Errorf("Expected push status applied, got %s", state.Status.Status)
	}
	if state.IsLoading {
		t.Error("Push merges must not toggle IsLoading")
	}
}

func TestSyncClient_StopIsIdempotentAndFinal(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	pull := &fakePull{}
	pull.set(func(context.Context) (*models.MetricSnapshot, error) {
		close(entered)
		<-release
		return metricSnap(99), nil
	})

	var updates int
	var mu sync.Mutex
	c := NewSyncClient("container1", pull, nil, func(models.EntitySyncState) {
		mu.Lock()
		updates++
		mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		c.Refresh()
		close(done)
	}()
	<-entered

	c.Stop()
	c.Stop() // second stop must be a no-op

	before := c.State()
	close(release)
	<-done

	after := c.State()
	if after.Snapshot != before.Snapshot || after.LastUpdated != before.LastUpdated {
		t.Error("Response completing after Stop mutated state")
	}
	mu.Lock()
	if updates != 0 {
		t.Errorf("onUpdate fired %d times after Stop", updates)
	}
	mu.Unlock()

	if err := c.Refresh(); err != nil {
		t.Errorf("Refresh after Stop should be a silent no-op, got %v", err)
	}
	if pull.callCount() != 1 {
		t.Errorf("Refresh after Stop still fetched: %d calls", pull.callCount())
	}
}

// Scenario: the push subscription cannot be opened. The client must poll
// silently; a failed subscribe alone is never an entity error.
func TestSyncClient_SubscribeFailureFallsBackToPolling(t *testing.T) {
	pull := &fakePull{}
	push := &fakePush{err: ErrTransportUnavailable}
	c := NewSyncClient("container1", pull, push, nil)
	defer c.Stop()

	c.Start(SyncOptions{UseStreaming: true, PollInterval: 20 * time.Millisecond})

	waitFor(t, func() bool { return pull.callCount() >= 3 }, "expected poll ticks after subscribe failure")

	state := c.State()
	if state.Mode != models.ModePolling {
		t.Errorf("Expected polling mode, got %s", state.Mode)
	}
	if state.IsError || state.LastError != "" {
		t.Errorf("Subscribe failure must not surface as entity error: %v %q", state.IsError, state.LastError)
	}
}

func TestSyncClient_StreamingModeDisablesPolling(t *testing.T) {
	pull := &fakePull{}
	push := &fakePush{}
	c := NewSyncClient("container1", pull, push, nil)
	defer c.Stop()

	c.Start(SyncOptions{UseStreaming: true, PollInterval: 20 * time.Millisecond})

	waitFor(t, func() bool { return pull.callCount() == 1 }, "expected exactly one seed fetch")
	if c.State().Mode != models.ModeStreaming {
		t.Errorf("Expected streaming mode, got %s", c.State().Mode)
	}

	// No poll timer in streaming mode: the seed fetch stays the only pull
	time.Sleep(100 * time.Millisecond)
	if n := pull.callCount(); n != 1 {
		t.Errorf("Streaming mode should not poll, saw %d pulls", n)
	}
}

func TestSyncClient_DisconnectTriggersFallback(t *testing.T) {
	pull := &fakePull{}
	push := &fakePush{}
	c := NewSyncClient("container1", pull, push, nil)
	defer c.Stop()

	c.Start(SyncOptions{UseStreaming: true, PollInterval: 20 * time.Millisecond})
	waitFor(t, func() bool { return c.State().Mode == models.ModeStreaming }, "client never reached streaming mode")

	push.disconnectAll(errors.New("stream lost"))

	waitFor(t, func() bool { return c.State().Mode == models.ModePolling }, "client never fell back to polling")
	waitFor(t, func() bool { return pull.callCount() >= 3 }, "polling never resumed after disconnect")

	if state := c.State(); state.IsError {
		t.Error("Disconnect fallback must not surface as entity error")
	}
}

func TestSyncClient_ErrorAfterConsecutiveFailures(t *testing.T) {
	fetchErr := errors.New("connection refused")
	pull := &fakePull{}
	pull.set(func(context.Context) (*models.MetricSnapshot, error) {
		return nil, fetchErr
	})
	c := NewSyncClient("container1", pull, nil, nil)

	// First failure: error detail recorded, flag not yet raised
	c.Refresh()
	state := c.State()
	if state.IsError {
		t.Error("One failure should not flag the entity")
	}
	if state.LastError == "" {
		t.Error("LastError should record the failure immediately")
	}

	c.Refresh()
	if c.State().IsError {
		t.Error("Two failures should not flag the entity")
	}

	c.Refresh()
	if !c.State().IsError {
		t.Errorf("Expected IsError after %d consecutive failures", FailureThreshold)
	}

	// Last-known-good semantics: a success clears everything
	pull.set(func(context.Context) (*models.MetricSnapshot, error) {
		return metricSnap(10), nil
	})
	c.Refresh()
	state = c.State()
	if state.IsError || state.LastError != "" {
		t.Errorf("Success should clear error state: %v %q", state.IsError, state.LastError)
	}
}

func TestSyncClient_FailureKeepsLastKnownGood(t *testing.T) {
	pull := &fakePull{}
	pull.set(func(context.Context) (*models.MetricSnapshot, error) {
		return metricSnap(42), nil
	})
	c := NewSyncClient("container1", pull, nil, nil)
	c.Refresh()

	pull.set(func(context.Context) (*models.MetricSnapshot, error) {
		return nil, errors.New("boom")
	})
	for i := 0; i < FailureThreshold; i++ {
		c.Refresh()
	}

	state := c.State()
	if !state.IsError {
		t.Fatal("Expected entity error after sustained failures")
	}
	if state.Snapshot == nil || state.Snapshot.CPU.UsagePercent != 42 {
		t.Error("Failed refresh evicted the last-known-good snapshot")
	}
}

func TestSyncClient_SetResolutionTrimsSamples(t *testing.T) {
	pull := &fakePull{}
	c := NewSyncClient("container1", pull, nil, nil)

	for i := 0; i < 10; i++ {
		c.applyPush("metrics", mustJSON(t, metricSnap(float64(i))))
	}
	if n := len(c.State().Samples); n != 10 {
		t.Fatalf("Expected 10 samples, got %d", n)
	}

	c.SetResolution(4)
	samples := c.State().Samples
	if len(samples) != 4 {
		t.Fatalf("Expected ring trimmed to 4, got %d", len(samples))
	}
	if samples[0].CPU != 6 || samples[3].CPU != 9 {
		t.Errorf("Trim should keep the newest samples, got %+v", samples)
	}
}
