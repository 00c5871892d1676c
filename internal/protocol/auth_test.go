package protocol_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/1ureka/rum3/internal/protocol"
)

func TestAuthPacketRoundTrip(t *testing.T) {
	types := []protocol.AuthType{
		protocol.AuthClientHello,
		protocol.AuthServerHello,
		protocol.AuthClientAck,
		protocol.AuthServerAck,
	}

	for _, typ := range types {
		t.Run(typ.String(), func(t *testing.T) {
			body := protocol.AuthBody{Type: typ, Data: []byte("nonce-and-key")}
			pkt := protocol.NewAuthPacket(body, 5)
			if pkt.Header.Type != protocol.MsgAuth {
				t.Fatalf("packet type: got %s, want auth", pkt.Header.Type)
			}

			decoded, err := protocol.Decode(protocol.Encode(pkt))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			got, err := decoded.Auth()
			if err != nil {
				t.Fatalf("Auth failed: %v", err)
			}
			if got.Type != typ || !bytes.Equal(got.Data, body.Data) {
				t.Errorf("auth body mismatch: got %+v, want %+v", got, body)
			}
		})
	}
}

func TestDecodeAuthErrors(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"unknown type", []byte{4, 1, 2}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := protocol.DecodeAuth(tc.data); !errors.Is(err, protocol.ErrInvalidAuth) {
				t.Fatalf("expected ErrInvalidAuth, got %v", err)
			}
		})
	}
}

func TestAuthOnNonAuthPacket(t *testing.T) {
	pkt := protocol.NewPacket([]byte{0, 1}, 1)
	if _, err := pkt.Auth(); !errors.Is(err, protocol.ErrInvalidAuth) {
		t.Fatalf("expected ErrInvalidAuth, got %v", err)
	}
}

func TestDecodeAuthTypeOnly(t *testing.T) {
	body, err := protocol.DecodeAuth([]byte{byte(protocol.AuthServerAck)})
	if err != nil {
		t.Fatalf("DecodeAuth failed: %v", err)
	}
	if body.Type != protocol.AuthServerAck || len(body.Data) != 0 {
		t.Errorf("unexpected body: %+v", body)
	}
}
