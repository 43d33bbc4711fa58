package singleinstance

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"time"
)

type server struct {
	lis      net.Listener
	incoming chan *serverConn
	port     int
}

func newServer() Server { return &server{incoming: make(chan *serverConn, 8)} }

// Start binds only the start port of the range. Residents never fall
// through to later ports; a failed bind is how a second instance learns it
// lost the race.
func (s *server) Start(ctx context.Context) error {
	if s.lis != nil {
		return nil
	}
	start, _ := portRange()
	addr := fmt.Sprintf("%s:%d", residentHost, start)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}
	s.lis = lis
	s.port = start
	log.Printf("singleinstance: listening on %s", addr)
	go s.acceptLoop(ctx)
	return nil
}

func (s *server) Port() int { return s.port }

func (s *server) acceptLoop(ctx context.Context) {
	for {
		c, err := s.lis.Accept()
		if err != nil {
			return
		}
		remote := c.RemoteAddr().String()
		_ = c.SetDeadline(time.Now().Add(3 * time.Second))
		br := bufio.NewReader(c)
		line, _ := br.ReadString('\n')
		bw := bufio.NewWriter(c)

		if line == pingRequest {
			_, _ = bw.WriteString(pongResponse)
			_ = bw.Flush()
			_ = c.Close()
			continue
		}

		var req Request
		switch line {
		case "STDOUT\n":
			req.Mode = ModeStdout
		case "CLIPBOARD\n":
			req.Mode = ModeClipboard
		default:
			_, _ = bw.WriteString("ERROR\nunknown request")
			_ = bw.Flush()
			_ = c.Close()
			continue
		}
		log.Printf("singleinstance: %s request from %s", req.Mode, remote)

		// Translation may take a while; the response deadline is the
		// pipeline's problem now.
		_ = c.SetDeadline(time.Time{})
		select {
		case s.incoming <- &serverConn{c: c, req: req, w: bw}:
		case <-ctx.Done():
			_ = c.Close()
			return
		}
	}
}

func (s *server) Next(ctx context.Context) (Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case sc := <-s.incoming:
		return sc, nil
	}
}

func (s *server) Close() error {
	if s.lis != nil {
		_ = s.lis.Close()
		s.lis = nil
	}
	return nil
}

type serverConn struct {
	c   net.Conn
	req Request
	w   *bufio.Writer
}

func (sc *serverConn) Request() Request { return sc.req }

func (sc *serverConn) RespondSuccess(text string) error {
	if _, err := sc.w.WriteString("SUCCESS\n"); err != nil {
		return err
	}
	if len(text) > 0 {
		if _, err := sc.w.WriteString(text); err != nil {
			return err
		}
	}
	return sc.w.Flush()
}

func (sc *serverConn) RespondError(msg string) error {
	if _, err := sc.w.WriteString("ERROR\n" + msg); err != nil {
		return err
	}
	return sc.w.Flush()
}

func (sc *serverConn) Close() error { return sc.c.Close() }
