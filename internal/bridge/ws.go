package bridge

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
)

// WSHub is a Channel whose remote is the engine host page connected over a
// websocket. One page is active at a time; a new connection replaces the
// previous one.
type WSHub struct {
	upgrader websocket.Upgrader
	log      zerolog.Logger
	events   chan Event

	mu     sync.Mutex
	conn   *wsConn
	onConn func(bool)
}

type wsConn struct {
	id   string
	ws   *websocket.Conn
	wmu  sync.Mutex
	done chan struct{}
	once sync.Once
}

func (c *wsConn) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *wsConn) write(msgType int, data []byte, deadline time.Time) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.ws.SetWriteDeadline(deadline)
	return c.ws.WriteMessage(msgType, data)
}

// NewWSHub returns a hub buffering up to buf undelivered events.
func NewWSHub(log zerolog.Logger, buf int) *WSHub {
	if buf <= 0 {
		buf = defaultPipeBuffer
	}
	return &WSHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true }, // allow all origins
		},
		log:    log,
		events: make(chan Event, buf),
	}
}

// Events returns the event stream from whichever page is attached.
func (h *WSHub) Events() <-chan Event { return h.events }

// Connected reports whether a page is attached.
func (h *WSHub) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn != nil
}

// OnConnection registers the attach/detach callback.
func (h *WSHub) OnConnection(f func(connected bool)) {
	h.mu.Lock()
	h.onConn = f
	h.mu.Unlock()
}

// Send writes cmd to the attached page.
func (h *WSHub) Send(ctx context.Context, cmd Command) error {
	b, err := EncodeCommand(cmd)
	if err != nil {
		return err
	}
	h.mu.Lock()
	c := h.conn
	h.mu.Unlock()
	if c == nil {
		return ErrDisconnected
	}
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.write(websocket.TextMessage, b, deadline); err != nil {
		h.log.Warn().Err(err).Str("conn", c.id).Msg("bridge write failed")
		h.detach(c)
		return ErrDisconnected
	}
	return nil
}

// ServeHTTP upgrades the request and serves the connection until it fails
// or is replaced.
func (h *WSHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("bridge upgrade failed")
		return
	}
	c := &wsConn{id: uuid.NewString(), ws: ws, done: make(chan struct{})}

	h.mu.Lock()
	prev := h.conn
	h.conn = c
	cb := h.onConn
	h.mu.Unlock()
	if prev != nil {
		h.log.Info().Str("conn", prev.id).Str("replaced_by", c.id).Msg("bridge connection replaced")
		prev.close()
	}
	h.log.Info().Str("conn", c.id).Str("remote", r.RemoteAddr).Msg("engine host attached")
	if cb != nil {
		cb(true)
	}

	go h.pingLoop(c)
	h.readLoop(c)
	h.detach(c)
}

func (h *WSHub) readLoop(c *wsConn) {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn().Err(err).Str("conn", c.id).Msg("bridge read failed")
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		ev, err := DecodeEvent(data)
		if err != nil {
			h.log.Debug().Err(err).Str("conn", c.id).Msg("dropping undecodable frame")
			continue
		}
		select {
		case h.events <- ev:
		case <-c.done:
			return
		}
	}
}

func (h *WSHub) pingLoop(c *wsConn) {
	t := time.NewTicker(pingPeriod)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if err := c.write(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (h *WSHub) detach(c *wsConn) {
	c.close()
	h.mu.Lock()
	current := h.conn == c
	if current {
		h.conn = nil
	}
	cb := h.onConn
	h.mu.Unlock()
	if current {
		h.log.Info().Str("conn", c.id).Msg("engine host detached")
		if cb != nil {
			cb(false)
		}
	}
}

// Close drops the attached page, if any.
func (h *WSHub) Close() {
	h.mu.Lock()
	c := h.conn
	h.mu.Unlock()
	if c != nil {
		h.detach(c)
	}
}
