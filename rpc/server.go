package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"
	"github.com/vaporyorg/util-contracts/accessible"
	"github.com/vaporyorg/util-contracts/common"
	"github.com/vaporyorg/util-contracts/config"
	"github.com/vaporyorg/util-contracts/log"
	"github.com/vaporyorg/util-contracts/vm"
)

const module = log.RPCMonitoring

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server answers requests against one world. Requests are executed one at
// a time by the host; the server only multiplexes connections.
type Server struct {
	world *config.World
	hub   *Hub
	wg    sync.WaitGroup
	http  *http.Server
}

func NewServer(ctx context.Context, w *config.World) *Server {
	s := &Server{world: w, hub: newHub(ctx)}
	s.wg.Add(1)
	go s.hub.run(&s.wg)
	return s
}

// Handler upgrades every request to a websocket connection.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.serveWs(w, r)
	})
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.http = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	log.Info(module, "rpc listening", "addr", ln.Addr().String())
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.http.Shutdown(shutdownCtx)
	}()
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close stops the hub and waits for every connection to wind down.
func (s *Server) Close() {
	s.hub.cancel()
	s.wg.Wait()
}

func (s *Server) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error(module, "serveWs Upgrade error", "err", err)
		return
	}
	client := newClient(s.hub, conn, s.dispatch)
	select {
	case s.hub.register <- client:
	case <-s.hub.ctx.Done():
		conn.Close()
		return
	}

	s.wg.Add(2)
	go client.writePump(&s.wg)
	go client.readPump(s.hub.ctx, &s.wg)
}

// dispatch runs one request and returns the encoded response.
func (s *Server) dispatch(ctx context.Context, c *Client, req *Request) *Response {
	resp := &Response{ID: req.ID}
	result, rerr := s.handle(ctx, c, req)
	if rerr != nil {
		log.Debug(module, "request failed", "method", req.Method, "err", rerr.Message)
		resp.Error = rerr
		return resp
	}
	raw, err := json.Marshal(result)
	if err != nil {
		resp.Error = newError(CodeServerError, err)
		return resp
	}
	resp.Result = raw
	return resp
}

func decodeParams(req *Request, v interface{}) *Error {
	if len(req.Params) == 0 {
		return &Error{Code: CodeInvalidParams, Message: "missing params"}
	}
	if err := json.Unmarshal(req.Params, v); err != nil {
		return newError(CodeInvalidParams, err)
	}
	return nil
}

func (s *Server) handle(ctx context.Context, c *Client, req *Request) (interface{}, *Error) {
	log.Trace(module, "request", "id", req.ID, "method", req.Method)
	switch req.Method {
	case MethodUnits:
		return s.units(), nil

	case MethodRead:
		var p ReadParams
		if rerr := decodeParams(req, &p); rerr != nil {
			return nil, rerr
		}
		return s.read(ctx, p)

	case MethodReadField:
		var p ReadFieldParams
		if rerr := decodeParams(req, &p); rerr != nil {
			return nil, rerr
		}
		return s.readField(ctx, p)

	case MethodSimulate:
		var p SimulateParams
		if rerr := decodeParams(req, &p); rerr != nil {
			return nil, rerr
		}
		res, err := s.world.Inspector.Simulate(ctx, p.Unit, p.Target, p.Payload)
		if err != nil {
			return nil, newError(CodeServerError, err)
		}
		return outcomeOf(res.Outcome, res.GasUsed), nil

	case MethodPreview:
		var p SimulateParams
		if rerr := decodeParams(req, &p); rerr != nil {
			return nil, rerr
		}
		sim, err := s.world.Inspector.Preview(ctx, p.Unit, p.Target, p.Payload)
		if err != nil {
			return nil, newError(CodeServerError, err)
		}
		out := PreviewResult{Outcome: outcomeOf(sim.Outcome, sim.GasUsed), Changes: []Change{}}
		for _, ch := range sim.Changes {
			out.Changes = append(out.Changes, Change{Slot: ch.Slot, Before: ch.Before, After: ch.After})
		}
		return out, nil

	case MethodCall, MethodQuery:
		var p CallParams
		if rerr := decodeParams(req, &p); rerr != nil {
			return nil, rerr
		}
		return s.call(ctx, req.Method == MethodQuery, p)

	case MethodSubscribe:
		select {
		case s.hub.subscribe <- c:
		case <-ctx.Done():
			return nil, newError(CodeServerError, ctx.Err())
		}
		return true, nil
	}
	return nil, &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf("method %q not found", req.Method)}
}

func (s *Server) units() []UnitInfo {
	out := []UnitInfo{}
	for _, u := range s.world.Config.Units {
		info := UnitInfo{Address: u.Address, Kind: u.Kind}
		if l, err := s.world.Layout(u.Address); err == nil {
			info.Layout = l.ID()
		}
		out = append(out, info)
	}
	return out
}

func (s *Server) read(ctx context.Context, p ReadParams) (*ReadResult, *Error) {
	raw, err := s.world.Inspector.Read(ctx, p.Unit, p.Start, uint64(p.Count))
	if err != nil {
		return nil, newError(CodeServerError, err)
	}
	words, err := common.BytesToWords(raw)
	if err != nil {
		return nil, newError(CodeServerError, err)
	}
	if words == nil {
		words = []common.Hash{}
	}
	return &ReadResult{Data: raw, Words: words}, nil
}

func (s *Server) readField(ctx context.Context, p ReadFieldParams) (*ReadFieldResult, *Error) {
	l, err := s.world.Layout(p.Unit)
	if err != nil {
		return nil, newError(CodeInvalidParams, err)
	}
	slot, err := l.Slot(p.Field, p.Keys...)
	if err != nil {
		return nil, newError(CodeInvalidParams, err)
	}
	v, err := s.world.Inspector.ReadField(ctx, p.Unit, l, p.Field, p.Keys...)
	if err != nil {
		var cerr *accessible.CallError
		if errors.As(err, &cerr) {
			return nil, newError(CodeServerError, err)
		}
		return nil, newError(CodeInvalidParams, err)
	}
	return &ReadFieldResult{Layout: l.ID(), Field: p.Field, Slot: slot, Value: v}, nil
}

func (s *Server) call(ctx context.Context, readOnly bool, p CallParams) (*Outcome, *Error) {
	msg := vm.Message{From: s.world.Config.From, To: p.Unit, Input: p.Data, Gas: uint64(p.Gas)}
	var (
		res *vm.Result
		err error
	)
	if readOnly {
		res, err = s.world.Host.Query(ctx, msg)
	} else {
		res, err = s.world.Host.Execute(ctx, msg)
	}
	if err != nil {
		return nil, newError(CodeServerError, err)
	}
	out := outcomeOf(res.Outcome, res.GasUsed)
	if !readOnly && res.Success {
		s.hub.notify(NotifyCommitted, Committed{Unit: p.Unit, GasUsed: hexutil.Uint64(res.GasUsed)})
	}
	return &out, nil
}
