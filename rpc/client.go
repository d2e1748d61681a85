package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"
	"github.com/vaporyorg/util-contracts/common"
	"github.com/vaporyorg/util-contracts/log"
)

// Conn is a client connection to a Server.
type Conn struct {
	ws      *websocket.Conn
	wsMutex sync.Mutex // to protect writes
	nextID  atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]chan *Response
	closed  chan struct{}
	err     error

	// Notifications receives server pushes; it is closed when the
	// connection ends.
	Notifications chan *Response
}

// Dial connects to a ws:// URL.
func Dial(ctx context.Context, url string) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect websocket: %w", err)
	}
	c := &Conn{
		ws:            ws,
		pending:       make(map[uint64]chan *Response),
		closed:        make(chan struct{}),
		Notifications: make(chan *Response, 64),
	}
	go c.listen()
	return c, nil
}

func (c *Conn) listen() {
	defer close(c.Notifications)
	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.err = err
			for id, ch := range c.pending {
				close(ch)
				delete(c.pending, id)
			}
			c.mu.Unlock()
			close(c.closed)
			return
		}
		var resp Response
		if err := json.Unmarshal(msg, &resp); err != nil {
			log.Warn(module, "unparsable message", "msg", string(msg), "err", err)
			continue
		}
		if resp.ID == 0 {
			select {
			case c.Notifications <- &resp:
			default:
				log.Warn(module, "notification dropped", "method", resp.Method)
			}
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.mu.Unlock()
		if ok {
			ch <- &resp
		}
	}
}

// Call sends method with params and decodes the result into result.
func (c *Conn) Call(ctx context.Context, method string, params, result interface{}) error {
	req := Request{ID: c.nextID.Add(1), Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return err
		}
		req.Params = raw
	}
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}

	ch := make(chan *Response, 1)
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return c.err
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()

	c.wsMutex.Lock()
	err = c.ws.WriteMessage(websocket.TextMessage, data)
	c.wsMutex.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
		return err
	}

	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
		return ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return fmt.Errorf("%s: connection closed: %v", method, c.err)
		}
		if resp.Error != nil {
			return resp.Error
		}
		if result == nil || len(resp.Result) == 0 {
			return nil
		}
		return json.Unmarshal(resp.Result, result)
	}
}

func (c *Conn) Close() error {
	c.wsMutex.Lock()
	c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.wsMutex.Unlock()
	err := c.ws.Close()
	<-c.closed
	return err
}

func (c *Conn) Units(ctx context.Context) ([]UnitInfo, error) {
	var out []UnitInfo
	err := c.Call(ctx, MethodUnits, nil, &out)
	return out, err
}

func (c *Conn) Read(ctx context.Context, unit common.Address, start common.Hash, count uint64) (*ReadResult, error) {
	var out ReadResult
	if err := c.Call(ctx, MethodRead, ReadParams{Unit: unit, Start: start, Count: hexutil.Uint64(count)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Conn) ReadField(ctx context.Context, unit common.Address, field string, keys ...common.Hash) (*ReadFieldResult, error) {
	var out ReadFieldResult
	if err := c.Call(ctx, MethodReadField, ReadFieldParams{Unit: unit, Field: field, Keys: keys}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Conn) Simulate(ctx context.Context, unit, target common.Address, payload []byte) (*Outcome, error) {
	var out Outcome
	if err := c.Call(ctx, MethodSimulate, SimulateParams{Unit: unit, Target: target, Payload: payload}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Conn) Preview(ctx context.Context, unit, target common.Address, payload []byte) (*PreviewResult, error) {
	var out PreviewResult
	if err := c.Call(ctx, MethodPreview, SimulateParams{Unit: unit, Target: target, Payload: payload}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Execute sends a committing call; Query a read-only one.
func (c *Conn) Execute(ctx context.Context, unit common.Address, data []byte) (*Outcome, error) {
	return c.call(ctx, MethodCall, unit, data)
}

func (c *Conn) Query(ctx context.Context, unit common.Address, data []byte) (*Outcome, error) {
	return c.call(ctx, MethodQuery, unit, data)
}

func (c *Conn) call(ctx context.Context, method string, unit common.Address, data []byte) (*Outcome, error) {
	var out Outcome
	if err := c.Call(ctx, method, CallParams{Unit: unit, Data: data}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Subscribe asks for NotifyCommitted pushes on Notifications.
func (c *Conn) Subscribe(ctx context.Context) error {
	return c.Call(ctx, MethodSubscribe, nil, nil)
}
