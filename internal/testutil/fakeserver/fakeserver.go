// Package fakeserver runs an in-process file-transfer server for tests. It
// records every request it reads and answers with whatever its Handler
// returns.
package fakeserver

import (
	"net"
	"strconv"
	"sync"
	"testing"

	"github.com/danmuck/xferctl/internal/protocol"
	"github.com/danmuck/xferctl/internal/protocol/frame"
)

// Reply is what the server writes after one request. Responses are encoded
// in order, then Raw is written verbatim. Close drops the connection.
type Reply struct {
	Responses []protocol.Response
	Raw       []byte
	Close     bool
}

type Handler interface {
	Handle(req protocol.Request) Reply
}

type HandlerFunc func(req protocol.Request) Reply

func (f HandlerFunc) Handle(req protocol.Request) Reply { return f(req) }

// Respond builds a well-formed response frame.
func Respond(code protocol.ResponseCode, payload []byte) protocol.Response {
	if payload == nil {
		payload = []byte{}
	}
	return protocol.Response{
		Version:     protocol.Version,
		Code:        code,
		PayloadSize: uint32(len(payload)),
		Payload:     payload,
	}
}

type Server struct {
	t       testing.TB
	ln      net.Listener
	handler Handler

	wg        sync.WaitGroup
	closeOnce sync.Once

	mu       sync.Mutex
	conns    []net.Conn
	accepted int
	requests []protocol.Request
}

// Start listens on a loopback port. The server is closed on test cleanup.
func Start(t testing.TB, handler Handler) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &Server{t: t, ln: ln, handler: handler}
	s.wg.Add(1)
	go s.acceptLoop()
	t.Cleanup(s.Close)
	return s
}

func (s *Server) Addr() string { return s.ln.Addr().String() }

func (s *Server) HostPort() (string, int) {
	host, portRaw, err := net.SplitHostPort(s.Addr())
	if err != nil {
		s.t.Fatalf("split listener address: %v", err)
	}
	port, err := strconv.Atoi(portRaw)
	if err != nil {
		s.t.Fatalf("parse listener port: %v", err)
	}
	return host, port
}

// Close stops accepting, drops open connections and waits for handlers.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		_ = s.ln.Close()
		s.mu.Lock()
		for _, conn := range s.conns {
			_ = conn.Close()
		}
		s.mu.Unlock()
		s.wg.Wait()
	})
}

// Requests returns every request read so far, across connections.
func (s *Server) Requests() []protocol.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Codes returns the request codes read so far, in order.
func (s *Server) Codes() []protocol.RequestCode {
	reqs := s.Requests()
	out := make([]protocol.RequestCode, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, req.Code)
	}
	return out
}

func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.accepted++
		s.mu.Unlock()
		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()
	for {
		req, err := protocol.ReadRequest(conn, frame.DefaultLimits())
		if err != nil {
			return
		}
		s.mu.Lock()
		s.requests = append(s.requests, req)
		s.mu.Unlock()

		reply := s.handler.Handle(req)
		for _, resp := range reply.Responses {
			buf, err := protocol.EncodeResponse(resp)
			if err != nil {
				s.t.Errorf("encode response %s: %v", resp.Code, err)
				return
			}
			if _, err := conn.Write(buf); err != nil {
				return
			}
		}
		if len(reply.Raw) > 0 {
			if _, err := conn.Write(reply.Raw); err != nil {
				return
			}
		}
		if reply.Close {
			return
		}
	}
}
