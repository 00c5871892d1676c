package rtc

import (
	"github.com/pion/webrtc/v4"
)

// DefaultICEServers are used when Options.ICEServers is nil. No TURN: the
// transport targets direct connectivity.
var DefaultICEServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// Options configures the WebRTC side of a connection.
type Options struct {
	// ICEServers lists STUN/TURN URLs. Nil means DefaultICEServers, an empty
	// non-nil slice means host candidates only.
	ICEServers []string

	// Loopback gathers 127.0.0.1 candidates, which lets both ends run on one
	// host without a usable network interface.
	Loopback bool
}

// newPeerConnection creates a PeerConnection for opts.
func newPeerConnection(opts Options) (*webrtc.PeerConnection, error) {
	servers := opts.ICEServers
	if servers == nil {
		servers = DefaultICEServers
	}

	config := webrtc.Configuration{}
	if len(servers) > 0 {
		config.ICEServers = []webrtc.ICEServer{{URLs: servers}}
	}

	var se webrtc.SettingEngine
	if opts.Loopback {
		se.SetIncludeLoopbackCandidate(true)
		se.SetNetworkTypes([]webrtc.NetworkType{webrtc.NetworkTypeUDP4})
	}

	api := webrtc.NewAPI(webrtc.WithSettingEngine(se))
	return api.NewPeerConnection(config)
}

// newDataChannel creates the pre-negotiated DataChannel both sides share.
// Negotiated mode (ID 0) lets each side create it without OnDataChannel.
// It is ordered: a session's packets must arrive in the order they were sent.
func newDataChannel(pc *webrtc.PeerConnection) (*webrtc.DataChannel, error) {
	ordered := true
	negotiated := true
	id := uint16(0)

	return pc.CreateDataChannel("rum3", &webrtc.DataChannelInit{
		Ordered:    &ordered,
		Negotiated: &negotiated,
		ID:         &id,
	})
}
