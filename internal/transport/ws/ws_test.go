package ws_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/rum3/internal/protocol"
	"github.com/1ureka/rum3/internal/transport"
	"github.com/1ureka/rum3/internal/transport/ws"
	"github.com/1ureka/rum3/internal/util"
)

var testConfig = transport.Config{Logger: util.Discard}

func startServer(t *testing.T, cfg transport.Config) (*transport.Server, string) {
	t.Helper()
	s, err := ws.Listen(context.Background(), "127.0.0.1:0", "/rum3", cfg)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, fmt.Sprintf("ws://%s/rum3", s.Addr())
}

func receive(t *testing.T, tr transport.Transport) transport.Inbound {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	in, err := tr.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	return in
}

func TestRequestReply(t *testing.T) {
	s, url := startServer(t, testConfig)
	ctx := context.Background()

	c, err := ws.Dial(ctx, url, testConfig)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	for i := range 3 {
		payload := []byte(fmt.Sprintf("call-%d", i))
		if err := c.Send(ctx, c.Session(), protocol.NewPacket(payload, uint64(i))); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
	}

	for i := range 3 {
		in := receive(t, s)
		if want := fmt.Sprintf("call-%d", i); string(in.Packet.Payload) != want {
			t.Fatalf("server got %q, want %q", in.Packet.Payload, want)
		}
		reply := protocol.NewTypedPacket(protocol.MsgReply, in.Packet.Payload, in.Packet.Header.SessionID)
		if err := s.Send(ctx, in.Session, reply); err != nil {
			t.Fatalf("server Send failed: %v", err)
		}
	}

	for i := range 3 {
		in := receive(t, c)
		if in.Packet.Header.Type != protocol.MsgReply || in.Packet.Header.SessionID != uint64(i) {
			t.Fatalf("reply %d: got %s for header session %d", i, in.Packet.Header.Type, in.Packet.Header.SessionID)
		}
	}
}

// rawDial opens a plain WebSocket to the server, bypassing the transport.
func rawDial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("raw dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func expectHangup(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected the server to close the connection")
	}
}

func TestTextMessageDropsSession(t *testing.T) {
	_, url := startServer(t, testConfig)
	conn := rawDial(t, url)

	conn.WriteMessage(websocket.TextMessage, []byte("hello"))
	expectHangup(t, conn)
}

func TestOversizedMessageDropsSession(t *testing.T) {
	cfg := testConfig
	cfg.MaxPayload = 8
	_, url := startServer(t, cfg)
	conn := rawDial(t, url)

	conn.WriteMessage(websocket.BinaryMessage, protocol.Encode(protocol.NewPacket(make([]byte, 32), 0)))
	expectHangup(t, conn)
}

func TestRegistryCleanupAfterDisconnect(t *testing.T) {
	s, url := startServer(t, testConfig)
	conn := rawDial(t, url)

	conn.WriteMessage(websocket.BinaryMessage, protocol.Encode(protocol.NewPacket([]byte("x"), 1)))
	id := receive(t, s).Session
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		err := s.Send(context.Background(), id, protocol.NewPacket(nil, 1))
		if errors.Is(err, transport.ErrConnectionNotFound) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("session still reachable, last error: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServerCloseEndsClient(t *testing.T) {
	s, url := startServer(t, testConfig)
	ctx := context.Background()

	c, err := ws.Dial(ctx, url, testConfig)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	// Make sure the server has registered the session before closing.
	c.Send(ctx, c.Session(), protocol.NewPacket(nil, 0))
	receive(t, s)

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("client still running after server close")
	}
	if _, err := c.Receive(ctx); err != io.EOF {
		t.Errorf("client Receive: got %v, want io.EOF", err)
	}
}

func TestDialBadURL(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := ws.Dial(ctx, "ws://127.0.0.1:1/none", testConfig); !errors.Is(err, transport.ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
}
