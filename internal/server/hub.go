package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 32
)

// Message types a client may send.
const (
	MsgSetDensity = "set_density"
	MsgSetMode    = "set_mode"
)

// Envelope is the client-to-server message frame.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Client is one connected renderer.
type Client struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
}

// Hub fans published frames out to every connected client and forwards client
// input changes to submit. Slow clients are dropped rather than allowed to
// stall the simulation.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}

	submit   func(Command) error
	upgrader websocket.Upgrader
	log      logrus.FieldLogger
}

// NewHub builds a hub that hands client inputs to submit.
func NewHub(submit func(Command) error, log logrus.FieldLogger) *Hub {
	return &Hub{
		clients:    map[*Client]bool{},
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		submit:     submit,
		upgrader:   websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		log:        log,
	}
}

// Run serves registrations and broadcasts until ctx is cancelled, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			return
		case c := <-h.register:
			h.clients[c] = true
			h.log.WithFields(logrus.Fields{"client": c.id, "clients": len(h.clients)}).Info("client connected")
		case c := <-h.unregister:
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
				h.log.WithFields(logrus.Fields{"client": c.id, "clients": len(h.clients)}).Info("client disconnected")
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.log.WithField("client", c.id).Warn("dropping slow client")
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

// Broadcast queues msg for every client. It never blocks; when the queue is
// full the message is dropped and the next frame supersedes it.
func (h *Hub) Broadcast(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
	}
}

// ServeWS upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	c := &Client{id: uuid.New(), conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	go h.writer(c)
	go h.reader(c)
}

func (h *Hub) writer(c *Client) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

func (h *Hub) reader(c *Client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithError(err).WithField("client", c.id).Debug("websocket read")
			}
			return
		}
		cmd, err := decodeCommand(data)
		if err == nil {
			err = h.submit(cmd)
		}
		if err != nil {
			h.log.WithError(err).WithField("client", c.id).Warn("rejected client input")
		}
	}
}
