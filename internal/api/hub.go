/*
Package api
File: hub.go
Description:
    The WebSocket Hub is the real-time side of the server.

    Every connection gets its own plant session. Requests on a connection are
    answered strictly in order from that connection's read loop, so a player
    never sees responses out of sequence. The Hub also fans out broadcasts
    (leaderboard updates) to every connected client.

    Architecture:
    - Hub: owns the client set and the broadcast channel.
    - Client: one socket plus its session.
    - ServeWs: upgrades the GET request and creates the session.

    A connection lives exactly as long as its session: closing the socket ends
    the session, and a session ended elsewhere closes the socket.
*/

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/everforgeworks/plantsim/internal/leaderboard"
	"github.com/everforgeworks/plantsim/internal/logging"
	"github.com/everforgeworks/plantsim/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

// HubOptions configures a Hub.
type HubOptions struct {
	ReadLimit      int64 // Max inbound message size, 0 = 4096
	LeaderboardTop int   // Entries per leaderboard broadcast
	Logger         *slog.Logger
}

// Client represents a single connected player.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	session *session.Session
	log     *slog.Logger

	mu     sync.Mutex
	closed bool
	send   chan []byte // Buffered outbound messages
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	registry *session.Registry
	log      *slog.Logger
	opts     HubOptions
	upgrader websocket.Upgrader

	clients map[*Client]bool

	// Broadcast carries pre-encoded messages for every client.
	Broadcast chan []byte

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

// NewHub creates a Hub bound to a session registry.
// Run must be started before clients connect.
func NewHub(registry *session.Registry, opts HubOptions) *Hub {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = 4096
	}
	if opts.LeaderboardTop <= 0 {
		opts.LeaderboardTop = 10
	}
	return &Hub{
		registry: registry,
		log:      opts.Logger.With("component", "hub"),
		opts:     opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients:    make(map[*Client]bool),
		Broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run is the main event loop for the Hub. It blocks until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				client.closeSend()
				delete(h.clients, client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.log.Info("connection registered", "session_id", client.session.ID(), "clients", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closeSend()
			}

		case message := <-h.Broadcast:
			for client := range h.clients {
				if err := client.enqueue(message); err != nil {
					// A client that cannot keep up is dropped.
					client.closeSend()
					delete(h.clients, client)
				}
			}
		}
	}
}

// BroadcastMessage encodes msg and hands it to every client. It gives up once
// the hub has stopped.
func (h *Hub) BroadcastMessage(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding broadcast: %w", err)
	}
	select {
	case h.Broadcast <- data:
		return nil
	case <-h.done:
		return fmt.Errorf("%w: hub stopped", ErrTransportFailure)
	}
}

// AnnounceLeaderboard broadcasts the current standings.
func (h *Hub) AnnounceLeaderboard(ctx context.Context) {
	top, err := h.registry.Leaderboard(ctx, h.opts.LeaderboardTop)
	if err != nil {
		h.log.Error("leaderboard lookup failed", "error", err)
		return
	}
	if top == nil {
		top = []leaderboard.Summary{}
	}
	if err := h.BroadcastMessage(Message{Type: TypeLeaderboard, Payload: top, Sender: SenderSystem}); err != nil {
		h.log.Warn("leaderboard broadcast dropped", "error", err)
	}
}

// ServeWs upgrades the request and starts a session on the requested level.
// Query parameters: level (default: first configured), seed (default: random).
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	level := r.URL.Query().Get("level")
	seed, err := parseSeed(r.URL.Query().Get("seed"))
	if err != nil {
		http.Error(w, "Invalid seed", http.StatusBadRequest)
		return
	}

	sess, err := h.registry.Create(level, seed)
	if err != nil {
		http.Error(w, err.Error(), StatusCode(err))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		_, _ = h.registry.Remove(context.Background(), sess.ID(), session.ReasonDisconnect)
		return
	}

	client := &Client{
		hub:     h,
		conn:    conn,
		session: sess,
		log:     logging.ForSession(h.log, sess.ID()),
		send:    make(chan []byte, sendBuffer),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		_, _ = h.registry.Remove(context.Background(), sess.ID(), session.ReasonShutdown)
		return
	}

	// Greet with the initial state so the client learns its session id.
	client.reply(Handle(r.Context(), sess, TickRequest{Type: TypeGrowth}), TypeState)

	go client.writePump()
	go client.readPump()
}

// parseSeed reads an optional uint64 seed.
func parseSeed(raw string) (uint64, error) {
	if raw == "" {
		return rand.Uint64(), nil
	}
	return strconv.ParseUint(raw, 10, 64)
}

// enqueue queues data for the write pump without blocking.
func (c *Client) enqueue(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("%w: connection closed", ErrTransportFailure)
	}
	select {
	case c.send <- data:
		return nil
	default:
		return fmt.Errorf("%w: send buffer full", ErrTransportFailure)
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// reply encodes msg and queues it. typeOverride replaces a non-error type.
func (c *Client) reply(msg Message, typeOverride string) {
	if typeOverride != "" && msg.Type != TypeError {
		msg.Type = typeOverride
	}
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("encoding response failed", "error", err)
		return
	}
	if err := c.enqueue(data); err != nil {
		c.log.Warn("response dropped", "error", err)
	}
}

// readPump serves requests from the connection in arrival order. When the
// connection goes away the session is terminated.
func (c *Client) readPump() {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
		if _, err := c.hub.registry.Remove(context.Background(), c.session.ID(), session.ReasonDisconnect); err == nil {
			c.log.Info("connection closed, session terminated")
		}
	}()

	c.conn.SetReadLimit(c.hub.opts.ReadLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("websocket read failed", "error", fmt.Errorf("%w: %v", ErrTransportFailure, err))
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		resp := HandleRaw(ctx, c.session, message)
		if resp.Type == TypeError {
			c.log.Debug("request rejected", "payload", resp.Payload)
		}
		c.reply(resp, "")
	}
}

// drain writes whatever is already queued without waiting for more.
func (c *Client) drain() {
	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		default:
			return
		}
	}
}

// writePump pumps queued messages to the connection and keeps it alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.session.Done():
			// Ended elsewhere (reaped, deleted, shutdown): flush queued replies, then hang up.
			c.drain()
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
			return
		}
	}
}
