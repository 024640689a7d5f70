package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"nigraan/internal/models"
)

// PullTimeout bounds every pull fetch; a fetch that runs past it is
// treated as a pull failure.
const PullTimeout = 10 * time.Second

// Transport error taxonomy shared by the pull and push adapters.
var (
	// ErrTransportTimeout marks a pull fetch that exceeded its deadline.
	// Recoverable; the sync client retries on the next poll tick.
	ErrTransportTimeout = errors.New("transport timeout")

	// ErrTransportUnavailable marks a push subscription that could not be
	// opened. Triggers fallback to polling, never a hard error.
	ErrTransportUnavailable = errors.New("transport unavailable")
)

// PullClient fetches one entity's current measurements on demand
type PullClient interface {
	FetchMetrics(ctx context.Context, entityID string) (*models.MetricSnapshot, error)
	FetchStatus(ctx context.Context, entityID string) (*models.HealthStatus, error)
}

// Unsubscribe tears down one push subscription. Safe to call more than once.
type Unsubscribe func()

// PushRequest describes one topic subscription. OnMessage receives each
// raw payload for the topic; OnDisconnect fires at most once if the stream
// drops after a successful subscribe.
type PushRequest struct {
	EntityID     string
	Topic        string
	OnMessage    func(payload json.RawMessage)
	OnDisconnect func(err error)
}

// PushClient delivers topic-scoped streaming updates
type PushClient interface {
	Subscribe(req PushRequest) (Unsubscribe, error)
}

// MonitorClient is the pull adapter: plain HTTP against an agent's
// /monitoring endpoints.
type MonitorClient struct {
	baseURL string
	http    *http.Client
}

// NewMonitorClient creates a pull adapter for the agent at baseURL
// (e.g. "http://10.0.0.5:9100")
func NewMonitorClient(baseURL string) *MonitorClient {
	return &MonitorClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: PullTimeout},
	}
}

// FetchMetrics fetches the entity's current MetricSnapshot
func (c *MonitorClient) FetchMetrics(ctx context.Context, entityID string) (*models.MetricSnapshot, error) {
	var snap models.MetricSnapshot
	if err := c.get(ctx, c.endpoint(entityID, "metrics"), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// FetchStatus fetches the entity's current HealthStatus
func (c *MonitorClient) FetchStatus(ctx context.Context, entityID string) (*models.HealthStatus, error) {
	var status models.HealthStatus
	if err := c.get(ctx, c.endpoint(entityID, "status"), &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// endpoint builds /monitoring/{entity}/{kind}; the entity segment is
// omitted for the default entity (empty id).
func (c *MonitorClient) endpoint(entityID, kind string) string {
	if entityID == "" {
		return c.baseURL + "/monitoring/" + kind
	}
	return c.baseURL + "/monitoring/" + url.PathEscape(entityID) + "/" + kind
}

func (c *MonitorClient) get(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: %s", ErrTransportTimeout, endpoint)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, endpoint)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
