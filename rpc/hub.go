package rpc

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vaporyorg/util-contracts/log"
)

// Hub tracks connected clients and fans notifications out to the
// subscribed ones. Only run touches the client set.
type Hub struct {
	clients    map[*Client]bool // value: subscribed to notifications
	register   chan *Client
	unregister chan *Client
	subscribe  chan *Client
	broadcast  chan []byte
	ctx        context.Context
	cancel     context.CancelFunc
}

func newHub(ctx context.Context) *Hub {
	cctx, cancel := context.WithCancel(ctx)
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		subscribe:  make(chan *Client),
		broadcast:  make(chan []byte, 16),
		ctx:        cctx,
		cancel:     cancel,
	}
}

func (h *Hub) run(wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-h.ctx.Done():
			for client := range h.clients {
				client.close()
			}
			return

		case client := <-h.register:
			h.clients[client] = false

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
			}

		case client := <-h.subscribe:
			if _, ok := h.clients[client]; ok {
				h.clients[client] = true
			}

		case message := <-h.broadcast:
			for client, subscribed := range h.clients {
				if !subscribed {
					continue
				}
				select {
				case client.send <- message:
				default:
					delete(h.clients, client)
					client.close()
				}
			}
		}
	}
}

// notify queues a notification for every subscriber. It never blocks the
// caller for long: a stalled hub drops the notification.
func (h *Hub) notify(method string, result interface{}) {
	raw, err := json.Marshal(result)
	if err != nil {
		log.Warn(module, "notify marshal", "method", method, "err", err)
		return
	}
	data, err := json.Marshal(Response{Method: method, Result: raw})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.ctx.Done():
	case <-time.After(time.Second):
		log.Warn(module, "notification dropped", "method", method)
	}
}

// Client is one websocket connection. send is never closed; done tells
// writePump to hang up.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	handle    func(ctx context.Context, c *Client, req *Request) *Response
}

func newClient(hub *Hub, conn *websocket.Conn, handle func(context.Context, *Client, *Request) *Response) *Client {
	return &Client{hub: hub, conn: conn, send: make(chan []byte, 256), done: make(chan struct{}), handle: handle}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) sendData(data []byte) {
	select {
	case <-c.done:
	case c.send <- data:
	default:
		log.Warn(module, "client send buffer full, dropping response")
	}
}

func (c *Client) readPump(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(1 << 20)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug(module, "websocket closed", "err", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		var req Request
		var resp *Response
		if err := json.Unmarshal(message, &req); err != nil {
			resp = &Response{Error: newError(CodeParseError, err)}
		} else {
			resp = c.handle(ctx, c, &req)
		}
		data, err := json.Marshal(resp)
		if err != nil {
			log.Error(module, "response marshal", "err", err)
			continue
		}
		c.sendData(data)
	}
}

func (c *Client) writePump(wg *sync.WaitGroup) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		wg.Done()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
