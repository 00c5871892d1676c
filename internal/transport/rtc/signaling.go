package rtc

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/rum3/internal/transport"
	"github.com/1ureka/rum3/internal/util"
)

const (
	pinLength  = 6
	signalPath = "/ws"
	openGrace  = 2 * time.Second // how long to wait for our side to open after the peer hung up
)

// messageType identifies the kind of signaling message.
type messageType string

const (
	msgTypeOffer     messageType = "offer"
	msgTypeAnswer    messageType = "answer"
	msgTypeCandidate messageType = "candidate"
)

// message is the JSON structure exchanged over the WebSocket during signaling.
type message struct {
	Type      messageType `json:"type"`
	SDP       string      `json:"sdp,omitempty"`
	Candidate string      `json:"candidate,omitempty"` // JSON-encoded ICECandidateInit
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ---------------------------------------------------------------------------
// Signal server
// ---------------------------------------------------------------------------

// SignalServer is the offering side's WebSocket endpoint. Peers authenticate
// with the PIN carried in the pin query parameter.
type SignalServer struct {
	log    util.Emitter
	pin    string
	ln     net.Listener
	srv    *http.Server
	connCh chan *websocket.Conn
}

// NewSignalServer listens on addr (":0" picks a free port) with a fresh PIN.
// A nil log falls back to util.Log.
func NewSignalServer(addr string, log util.Emitter) (*SignalServer, error) {
	if log == nil {
		log = util.Log
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: start signal server: %w", transport.ErrIO, err)
	}

	s := &SignalServer{
		log:    log,
		pin:    generatePIN(pinLength),
		ln:     ln,
		connCh: make(chan *websocket.Conn, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(signalPath, s.handleWS)
	s.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Emit(util.LevelError, fmt.Sprintf("signal server stopped: %v", err))
		}
	}()

	return s, nil
}

// PIN returns the code peers must present.
func (s *SignalServer) PIN() string { return s.pin }

// Addr returns the listening address.
func (s *SignalServer) Addr() net.Addr { return s.ln.Addr() }

// URL returns the address a peer on this host would dial, PIN included.
func (s *SignalServer) URL() string {
	return fmt.Sprintf("ws://%s%s?pin=%s", s.ln.Addr(), signalPath, s.pin)
}

// Close stops accepting peers. Exchanges already running keep their socket.
func (s *SignalServer) Close() error {
	return s.srv.Close()
}

func (s *SignalServer) handleWS(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("pin") != s.pin {
		http.Error(w, "Invalid PIN", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	// One pending peer at a time.
	select {
	case s.connCh <- conn:
	default:
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "already connected"))
		conn.Close()
	}
}

// waitForPeer blocks until a peer connects or ctx is done.
func (s *SignalServer) waitForPeer(ctx context.Context) (*websocket.Conn, error) {
	select {
	case conn := <-s.connCh:
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// generatePIN returns a random numeric PIN of the specified length.
func generatePIN(length int) string {
	digits := make([]byte, length)
	for i := range digits {
		n, _ := rand.Int(rand.Reader, big.NewInt(10))
		digits[i] = byte('0') + byte(n.Int64())
	}
	return string(digits)
}

// ---------------------------------------------------------------------------
// Exchange
// ---------------------------------------------------------------------------

// signaler drives the SDP/ICE exchange for one link over one WebSocket.
type signaler struct {
	link *link
	conn *websocket.Conn

	writeMu sync.Mutex

	// Remote candidates that arrive before the remote description are held
	// back; pion rejects them until then.
	remoteSet bool
	pending   []webrtc.ICECandidateInit
}

func newSignaler(l *link, conn *websocket.Conn) *signaler {
	s := &signaler{link: l, conn: conn}

	// Trickle ICE: forward each local candidate as it is gathered.
	l.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		data, err := json.Marshal(c.ToJSON())
		if err != nil {
			return
		}
		// Best effort: the socket is closed once the channel opens.
		s.send(message{Type: msgTypeCandidate, Candidate: string(data)})
	})

	return s
}

func (s *signaler) send(msg message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(msg)
}

func (s *signaler) sendOffer() error {
	offer, err := s.link.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := s.link.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	return s.send(message{Type: msgTypeOffer, SDP: offer.SDP})
}

func (s *signaler) sendAnswer() error {
	answer, err := s.link.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	if err := s.link.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	return s.send(message{Type: msgTypeAnswer, SDP: answer.SDP})
}

// watch applies incoming signaling messages until the socket fails.
func (s *signaler) watch() error {
	for {
		var msg message
		if err := s.conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("read signaling message: %w", err)
		}

		switch msg.Type {
		case msgTypeOffer:
			if err := s.setRemote(webrtc.SDPTypeOffer, msg.SDP); err != nil {
				return err
			}
			if err := s.sendAnswer(); err != nil {
				return err
			}

		case msgTypeAnswer:
			if err := s.setRemote(webrtc.SDPTypeAnswer, msg.SDP); err != nil {
				return err
			}

		case msgTypeCandidate:
			var init webrtc.ICECandidateInit
			if err := json.Unmarshal([]byte(msg.Candidate), &init); err != nil {
				return fmt.Errorf("parse ICE candidate: %w", err)
			}
			if !s.remoteSet {
				s.pending = append(s.pending, init)
				continue
			}
			if err := s.link.pc.AddICECandidate(init); err != nil {
				return fmt.Errorf("add ICE candidate: %w", err)
			}
		}
	}
}

func (s *signaler) setRemote(typ webrtc.SDPType, sdp string) error {
	if err := s.link.pc.SetRemoteDescription(webrtc.SessionDescription{Type: typ, SDP: sdp}); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	s.remoteSet = true
	for _, c := range s.pending {
		if err := s.link.pc.AddICECandidate(c); err != nil {
			return fmt.Errorf("add ICE candidate: %w", err)
		}
	}
	s.pending = nil
	return nil
}

// await blocks until the DataChannel opens, signaling fails, or ctx is done.
// The WebSocket is closed in every case.
func (s *signaler) await(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.watch()
	}()
	defer s.conn.Close()

	select {
	case <-s.link.Ready():
		return nil
	case err := <-errCh:
		// The peer may hang up right after its side opened.
		select {
		case <-s.link.Ready():
			return nil
		case <-time.After(openGrace):
			return fmt.Errorf("%w: signaling failed: %w", transport.ErrIO, err)
		case <-ctx.Done():
			return ctx.Err()
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}
