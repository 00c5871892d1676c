package rtc

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/rum3/internal/protocol"
	"github.com/1ureka/rum3/internal/transport"
)

const (
	highWaterMark = 256 * 1024 // pause sending when bufferedAmount exceeds this
	lowWaterMark  = 64 * 1024  // resume sending when bufferedAmount drops below this
	inboxSize     = 64         // inbound DataChannel messages buffered before OnMessage blocks
)

var errTextMessage = errors.New("rtc: text message where binary packet expected")

// link carries packets over one PeerConnection + DataChannel pair. Every
// DataChannel message is one encoded packet.
type link struct {
	pc *webrtc.PeerConnection
	dc *webrtc.DataChannel

	maxPayload   uint32
	writeTimeout time.Duration

	inbox       chan webrtc.DataChannelMessage
	drainSignal chan struct{}

	opened   chan struct{}
	openOnce sync.Once
	closed   chan struct{}
	downOnce sync.Once

	mu     sync.RWMutex
	remote net.Addr

	closeOnce sync.Once
	closeErr  error
}

// newLink creates the PeerConnection and DataChannel and wires the
// callbacks. Signaling must still run before the link opens.
func newLink(opts Options, cfg transport.Config) (*link, error) {
	cfg = cfg.WithDefaults()

	pc, err := newPeerConnection(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: create peer connection: %w", transport.ErrIO, err)
	}
	dc, err := newDataChannel(pc)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("%w: create data channel: %w", transport.ErrIO, err)
	}

	l := &link{
		pc:           pc,
		dc:           dc,
		maxPayload:   cfg.MaxPayload,
		writeTimeout: cfg.WriteTimeout,
		inbox:        make(chan webrtc.DataChannelMessage, inboxSize),
		drainSignal:  make(chan struct{}, 1),
		opened:       make(chan struct{}),
		closed:       make(chan struct{}),
		remote:       addr("unknown"),
	}

	dc.SetBufferedAmountLowThreshold(lowWaterMark)
	dc.OnBufferedAmountLow(func() {
		select {
		case l.drainSignal <- struct{}{}:
		default:
		}
	})

	dc.OnOpen(func() {
		l.recordRemote()
		l.openOnce.Do(func() { close(l.opened) })
	})
	dc.OnClose(l.down)

	// Blocking here stalls the SCTP reader, which is the inbound backpressure.
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		select {
		case l.inbox <- msg:
		case <-l.closed:
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			l.down()
		}
	})

	return l, nil
}

// Ready is closed once the DataChannel is open.
func (l *link) Ready() <-chan struct{} { return l.opened }

// down marks the link unusable; pending reads and writes return.
func (l *link) down() {
	l.downOnce.Do(func() { close(l.closed) })
}

func (l *link) recordRemote() {
	sctp := l.pc.SCTP()
	if sctp == nil {
		return
	}
	pair, err := sctp.Transport().ICETransport().GetSelectedCandidatePair()
	if err != nil || pair == nil {
		return
	}
	l.mu.Lock()
	l.remote = addr(net.JoinHostPort(pair.Remote.Address, fmt.Sprint(pair.Remote.Port)))
	l.mu.Unlock()
}

func (l *link) ReadPacket() (*protocol.Packet, error) {
	var msg webrtc.DataChannelMessage
	select {
	case msg = <-l.inbox:
	default:
		select {
		case msg = <-l.inbox:
		case <-l.closed:
			return nil, fmt.Errorf("%w: data channel closed: %w", transport.ErrReceive, io.EOF)
		}
	}
	if msg.IsString {
		return nil, fmt.Errorf("%w: %w", transport.ErrMsg, errTextMessage)
	}
	return transport.DecodeMessage(msg.Data, l.maxPayload)
}

// WritePacket sends pkt, first waiting for the DataChannel buffer to fall
// below the low watermark if it is above the high one.
func (l *link) WritePacket(pkt *protocol.Packet) error {
	if l.dc.BufferedAmount() > highWaterMark {
		var timeout <-chan time.Time
		if l.writeTimeout > 0 {
			timer := time.NewTimer(l.writeTimeout)
			defer timer.Stop()
			timeout = timer.C
		}
		select {
		case <-l.drainSignal:
		case <-l.closed:
			return fmt.Errorf("%w: data channel closed", transport.ErrIO)
		case <-timeout:
			return fmt.Errorf("%w: data channel buffer did not drain within %s", transport.ErrIO, l.writeTimeout)
		}
	}

	if err := l.dc.Send(protocol.Encode(pkt)); err != nil {
		return fmt.Errorf("%w: %w", transport.ErrIO, err)
	}
	return nil
}

func (l *link) Close() error {
	l.closeOnce.Do(func() {
		l.down()
		l.closeErr = errors.Join(l.dc.Close(), l.pc.Close())
	})
	return l.closeErr
}

func (l *link) RemoteAddr() net.Addr {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.remote
}

// addr is the remote ICE candidate of the selected pair.
type addr string

func (a addr) Network() string { return "webrtc" }
func (a addr) String() string  { return string(a) }
