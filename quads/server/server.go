// Package server exposes an engine over a newline-framed TCP protocol.
//
// Requests are single lines: VERSION, ADD <tuple>, REMOVE <tuple>,
// QUERY <pattern>, WATCH <pattern>, UNWATCH <stream>, QUIT. Responses are
// OK/ERR lines; QUERY answers OK <n> followed by n MATCH lines; WATCH
// answers STREAM <id> and the server then pushes EVENT <id> {bindings}
// lines as the watched pattern fires. Tuples and patterns use the textual
// encoding, with ; separating the templates of a multi-template pattern.
//
// One engine serves all connections behind a mutex: each cascade runs to
// completion before the next command proceeds. Every connection gets a
// writer goroutine; subscribers that stop reading lose events rather than
// stalling the engine.
package server

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/quadmill/quadmill/quads"
	"github.com/quadmill/quadmill/quads/engine"
	"github.com/quadmill/quadmill/quads/parser"
	"github.com/quadmill/quadmill/quads/pattern"
)

// Version is the protocol identifier answered to VERSION.
const Version = "quadmill/1"

// outboxSize bounds per-connection pending output lines.
const outboxSize = 256

// Server shares one engine across line-protocol connections.
type Server struct {
	eng *engine.Engine
	log *zap.Logger
	mu  sync.Mutex
}

// New wraps eng. A nil logger disables logging.
func New(eng *engine.Engine, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{eng: eng, log: log}
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.log.Info("listening", zap.String("addr", ln.Addr().String()))
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then closes the
// listener and waits for the open connections to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})

	eg.Go(func() error {
		for {
			nc, err := ln.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("accept: %w", err)
			}
			c := &conn{srv: s, nc: nc,
				outbox:  make(chan string, outboxSize),
				streams: make(map[string]engine.Unwatch),
			}
			eg.Go(func() error {
				c.serve(ctx)
				return nil
			})
		}
	})

	return eg.Wait()
}

type conn struct {
	srv     *Server
	nc      net.Conn
	outbox  chan string
	streams map[string]engine.Unwatch
}

func (c *conn) serve(ctx context.Context) {
	log := c.srv.log.With(zap.String("remote", c.nc.RemoteAddr().String()))
	log.Debug("connected")

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-cctx.Done()
		c.nc.Close()
	}()

	// The writer keeps draining after a write error so senders never block
	// on a dead connection
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		broken := false
		for line := range c.outbox {
			if broken {
				continue
			}
			if _, err := fmt.Fprintf(c.nc, "%s\n", line); err != nil {
				broken = true
			}
		}
	}()

	sc := bufio.NewScanner(c.nc)
	for sc.Scan() {
		if !c.handle(strings.TrimSpace(sc.Text())) {
			break
		}
	}

	// Streams die with their connection
	c.srv.mu.Lock()
	for id, unwatch := range c.streams {
		unwatch()
		delete(c.streams, id)
	}
	c.srv.mu.Unlock()
	close(c.outbox)

	cancel()
	<-writerDone
	log.Debug("disconnected")
}

// handle runs one request line; false ends the connection.
func (c *conn) handle(line string) bool {
	if line == "" {
		return true
	}
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToUpper(cmd) {
	case "VERSION":
		c.send("OK " + Version)

	case "ADD":
		t, err := parser.ParseTuple(rest)
		if err != nil {
			c.send("ERR " + err.Error())
			return true
		}
		c.srv.mu.Lock()
		err = c.srv.eng.Add(t)
		c.srv.mu.Unlock()
		if err != nil {
			c.send("ERR " + err.Error())
			return true
		}
		c.send("OK added")

	case "REMOVE":
		t, err := parser.ParseTuple(rest)
		if err != nil {
			c.send("ERR " + err.Error())
			return true
		}
		c.srv.mu.Lock()
		removed := c.srv.eng.Remove(t)
		c.srv.mu.Unlock()
		if removed {
			c.send("OK removed")
		} else {
			c.send("OK absent")
		}

	case "QUERY":
		p, err := parser.ParsePattern(rest)
		if err != nil {
			c.send("ERR " + err.Error())
			return true
		}
		c.srv.mu.Lock()
		ms, err := c.srv.eng.Query(p)
		c.srv.mu.Unlock()
		if err != nil {
			c.send("ERR " + err.Error())
			return true
		}
		c.send(fmt.Sprintf("OK %d", len(ms)))
		for _, m := range ms {
			c.send(fmt.Sprintf("MATCH {%s}", m.Bindings()))
		}

	case "WATCH":
		p, err := parser.ParsePattern(rest)
		if err != nil {
			c.send("ERR " + err.Error())
			return true
		}
		id := uuid.NewString()
		// Respond first so retroactive EVENT lines follow their STREAM
		c.send("STREAM " + id)
		c.srv.mu.Lock()
		unwatch, err := c.srv.eng.WatchNamed("stream-"+id, p, c.eventProduction(id))
		if err != nil && unwatch != nil {
			unwatch()
			unwatch = nil
		}
		if unwatch != nil {
			c.streams[id] = unwatch
		}
		c.srv.mu.Unlock()
		if err != nil {
			c.send("ERR " + err.Error())
		}

	case "UNWATCH":
		c.srv.mu.Lock()
		unwatch, ok := c.streams[rest]
		if ok {
			unwatch()
			delete(c.streams, rest)
		}
		c.srv.mu.Unlock()
		if ok {
			c.send("OK unwatched")
		} else {
			c.send("ERR unknown stream " + rest)
		}

	case "QUIT":
		c.send("OK bye")
		return false

	default:
		c.send("ERR unknown command " + cmd)
	}
	return true
}

// eventProduction pushes a firing's bindings to the subscriber. It runs
// inside the engine cascade, so it must never block: events to a full
// outbox are dropped and logged.
func (c *conn) eventProduction(id string) engine.Production {
	return func(m *pattern.Match) ([]quads.Tuple, error) {
		line := fmt.Sprintf("EVENT %s {%s}", id, m.Bindings())
		select {
		case c.outbox <- line:
		default:
			c.srv.log.Warn("subscriber too slow, dropping event",
				zap.String("stream", id),
				zap.String("remote", c.nc.RemoteAddr().String()))
		}
		return nil, nil
	}
}

// send queues a response line, blocking for backpressure. Commands are
// handled outside the engine mutex here, so a stalled client only stalls
// its own connection.
func (c *conn) send(line string) {
	c.outbox <- line
}
