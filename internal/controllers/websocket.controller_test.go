package controllers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nigraan/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func wsTestServer(t *testing.T, entityID string) (string, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := services.NewHub(nil, time.Hour)
	r := gin.New()
	r.GET("/ws", HandleWebSocket(hub, entityID))
	srv := httptest.NewServer(r)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	return url, func() {
		srv.Close()
		hub.Stop()
	}
}

func TestHandleWebSocket_RejectsMismatchedEntity(t *testing.T) {
	url, cleanup := wsTestServer(t, "container1")
	defer cleanup()

	_, resp, err := websocket.DefaultDialer.Dial(url+"?entity=container2&topic=metrics", nil)
	if err == nil {
		t.Fatal("Expected handshake to be refused for a foreign entity")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		code := 0
		if resp != nil {
			code = resp.StatusCode
		}
		t.Errorf("Expected 404 for unknown entity, got %d", code)
	}
}

func TestHandleWebSocket_RejectsInvalidEntityID(t *testing.T) {
	url, cleanup := wsTestServer(t, "container1")
	defer cleanup()

	_, resp, err := websocket.DefaultDialer.Dial(url+"?entity=bad%2Fid", nil)
	if err == nil {
		t.Fatal("Expected handshake to be refused for a malformed entity id")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		code := 0
		if resp != nil {
			code = resp.StatusCode
		}
		t.Errorf("Expected 400 for malformed entity id, got %d", code)
	}
}

func TestHandleWebSocket_AcceptsMatchingAndUnscopedEntity(t *testing.T) {
	url, cleanup := wsTestServer(t, "container1")
	defer cleanup()

	for _, query := range []string{"?entity=container1&topic=metrics", ""} {
		conn, _, err := websocket.DefaultDialer.Dial(url+query, nil)
		if err != nil {
			t.Fatalf("Expected handshake to succeed for %q: %v", query, err)
		}
		conn.Close()
	}
}
