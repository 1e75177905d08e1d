package api

import (
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientCommand is the inbound control message on a streaming connection.
type clientCommand struct {
	Action  string   `json:"action"` // "subscribe" or "unsubscribe"
	Symbols []string `json:"symbols"`
}

// websocket upgrades the connection and bridges it to the push hub. The
// token travels as a query parameter; browsers cannot set headers on
// WebSocket dials.
func (s *Server) websocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		respondError(c, http.StatusUnauthorized, "MISSING_TOKEN", "token query parameter required")
		return
	}
	if _, err := parseToken(token, s.JWTSecret); err != nil {
		respondError(c, http.StatusUnauthorized, "INVALID_TOKEN", "invalid or expired token")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	subscriberID := uuid.NewString()
	outbound := s.Hub.Register(subscriberID, 256)

	// Gorilla allows one concurrent writer; the mutex covers both the hub
	// drain goroutine and error frames from the read loop.
	var writeMu sync.Mutex
	writeJSON := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}

	// Writer drains the hub channel until Unregister closes it.
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		for msg := range outbound {
			if err := writeJSON(msg); err != nil {
				log.Printf("ws write error (%s): %v", subscriberID, err)
				return
			}
		}
	}()

	for {
		var cmd clientCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			break
		}
		switch cmd.Action {
		case "subscribe":
			for _, symbol := range cmd.Symbols {
				if err := s.Gateway.Subscribe(symbol, subscriberID); err != nil {
					_ = writeJSON(gin.H{
						"type":   "error",
						"symbol": symbol,
						"error":  err.Error(),
					})
				}
			}
		case "unsubscribe":
			for _, symbol := range cmd.Symbols {
				s.Gateway.Unsubscribe(symbol, subscriberID)
			}
		default:
			_ = writeJSON(gin.H{
				"type":  "error",
				"error": "unknown action",
			})
		}
	}

	s.Gateway.UnsubscribeAll(subscriberID)
	s.Hub.Unregister(subscriberID)
	<-writeDone
}
