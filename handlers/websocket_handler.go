package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/crickpick/prediction-league/live"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type WebSocketHandler struct {
	hub *live.Hub
}

func NewWebSocketHandler(hub *live.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// ServeMatchFeed subscribes the caller to one match's room: live vote
// splits and status changes.
func (h *WebSocketHandler) ServeMatchFeed(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := &live.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		Room: live.MatchRoom(matchID),
	}
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
