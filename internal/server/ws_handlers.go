// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// upgradeRequired rejects plain HTTP requests on WebSocket routes.
func (s *Server) upgradeRequired(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// WebSocketStatsHandler handles WebSocket connections for the stats feed.
// The feed is one-way: clients receive stats snapshots and send nothing but
// pongs.
func (s *Server) WebSocketStatsHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		op, _ := conn.Locals("operator").(string)
		if op == "" {
			log.Printf("WebSocket Stats: Unauthenticated connection attempt")
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		if s.hub == nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"stats feed unavailable"}`))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(op, conn)
		if err != nil {
			log.Printf("WebSocket Stats: Failed to register %s: %v", op, err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		log.Printf("WebSocket: Operator %s connected to stats feed", op)

		go client.WritePump()
		client.ReadPump()
	})
}
