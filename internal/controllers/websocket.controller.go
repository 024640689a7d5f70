package controllers

import (
	"log"
	"net/http"

	"nigraan/internal/middleware"
	"nigraan/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for now (can be restricted based on config)
		return true
	},
}

// HandleWebSocket upgrades the connection and attaches it to the hub.
// Consumers may scope delivery with one or more ?topic= query values;
// no topic means everything. When entityID is non-empty the endpoint
// serves only that entity, and an ?entity= value naming anything else
// is refused before the upgrade.
func HandleWebSocket(hub *services.Hub, entityID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if requested := c.Query("entity"); requested != "" && entityID != "" && requested != entityID {
			if !middleware.ValidEntityID(requested) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entity id"})
				return
			}
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown entity: " + requested})
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[WS] Upgrade error: %v", err)
			return
		}

		topics := make(map[string]bool)
		for _, t := range c.Request.URL.Query()["topic"] {
			topics[t] = true
		}

		client := &services.HubClient{
			ID:     ws.RemoteAddr().String(),
			Conn:   ws,
			Send:   make(chan services.PushMessage, 256),
			Topics: topics,
		}
		hub.Register(client)

		go readPump(client, hub)
		go writePump(client)
	}
}

// readPump drains the client until it disconnects. Incoming data is
// limited to control-style messages; pings are answered by gorilla's
// default handler.
func readPump(client *services.HubClient, hub *services.Hub) {
	defer func() {
		hub.Unregister(client.ID)
		client.Conn.Close()
	}()

	for {
		var msg services.PushMessage
		if err := client.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] Read error: %v", err)
			}
			return
		}

		switch msg.Type {
		case "ping":
			select {
			case client.Send <- services.PushMessage{Type: "pong"}:
			default:
			}
		case "unsubscribe":
			return
		}
	}
}

// writePump forwards hub messages to the client
func writePump(client *services.HubClient) {
	defer client.Conn.Close()

	for msg := range client.Send {
		if err := client.Conn.WriteJSON(msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] Write error: %v", err)
			}
			return
		}
	}
	// Send channel closed by the hub
	client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}
