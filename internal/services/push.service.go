package services

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// HeartbeatWindow is how long a push connection may stay silent
	// (no data, no pong) before it is treated as disconnected.
	HeartbeatWindow = 30 * time.Second

	// pingInterval is the cadence of client pings on a push connection
	pingInterval = 10 * time.Second
)

// PushMessage is the websocket envelope carried on push connections.
// Type names the topic ("metrics", "status", "state"); Data holds the
// topic's JSON payload.
type PushMessage struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// PushDialer is the push adapter: it opens one websocket connection per
// subscription against an agent's /ws endpoint and routes envelope
// messages to the topic handler.
type PushDialer struct {
	wsURL  string
	dialer *websocket.Dialer
}

// NewPushDialer creates a push adapter for the agent at wsURL
// (e.g. "ws://10.0.0.5:9100/ws")
func NewPushDialer(wsURL string) *PushDialer {
	return &PushDialer{
		wsURL:  wsURL,
		dialer: &websocket.Dialer{HandshakeTimeout: PullTimeout},
	}
}

// Subscribe dials the push endpoint for one (entity, topic) pair. The
// returned handle closes the connection; after it returns, the topic
// handler is not called again. Safe to call repeatedly.
func (d *PushDialer) Subscribe(req PushRequest) (Unsubscribe, error) {
	target, err := d.subscribeURL(req.EntityID, req.Topic)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}

	conn, _, err := d.dialer.Dial(target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrTransportUnavailable, target, err)
	}

	sub := &pushSubscription{
		conn: conn,
		req:  req,
		done: make(chan struct{}),
	}
	go sub.readPump()
	go sub.pingPump()

	return sub.stop, nil
}

func (d *PushDialer) subscribeURL(entityID, topic string) (string, error) {
	u, err := url.Parse(d.wsURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	if entityID != "" {
		q.Set("entity", entityID)
	}
	q.Set("topic", topic)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type pushSubscription struct {
	conn *websocket.Conn
	req  PushRequest

	once sync.Once
	done chan struct{}

	mu      sync.Mutex
	stopped bool
}

// stop is the Unsubscribe handle
func (s *pushSubscription) stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// readPump routes envelope messages to the topic handler until the
// connection drops or the subscription is stopped.
func (s *pushSubscription) readPump() {
	defer s.conn.Close()

	s.conn.SetReadDeadline(time.Now().Add(HeartbeatWindow))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(HeartbeatWindow))
	})

	for {
		var msg PushMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			s.dropped(err)
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(HeartbeatWindow))

		if msg.Type != s.req.Topic || len(msg.Data) == 0 {
			continue
		}
		if s.active() {
			s.req.OnMessage(msg.Data)
		}
	}
}

// pingPump keeps the heartbeat alive from our side
func (s *pushSubscription) pingPump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(pingInterval)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (s *pushSubscription) active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.stopped
}

// dropped reports a dead connection once, unless the consumer already
// unsubscribed.
func (s *pushSubscription) dropped(err error) {
	s.mu.Lock()
	alreadyStopped := s.stopped
	s.stopped = true
	s.mu.Unlock()

	s.once.Do(func() {
		close(s.done)
	})

	if alreadyStopped {
		return
	}
	if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
		log.Printf("[PUSH] Stream dropped for %s/%s: %v", s.req.EntityID, s.req.Topic, err)
	}
	if s.req.OnDisconnect != nil {
		s.req.OnDisconnect(err)
	}
}
