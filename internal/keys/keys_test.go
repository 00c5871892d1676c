package keys

import (
	"bytes"
	"errors"
	"testing"
)

func TestSizes(t *testing.T) {
	testCases := []struct {
		name string
		gen  func() ([]byte, error)
		want int
	}{
		{"nonce", NewNonce, 12},
		{"symmetric key", NewSymmetricKey, 32},
		{"random 256", func() ([]byte, error) { return Random(256) }, 256},
		{"random 0", func() ([]byte, error) { return Random(0) }, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := tc.gen()
			if err != nil {
				t.Fatalf("generate failed: %v", err)
			}
			if len(b) != tc.want {
				t.Errorf("got %d bytes, want %d", len(b), tc.want)
			}
		})
	}
}

func TestRandomDiffers(t *testing.T) {
	a, _ := NewSymmetricKey()
	b, _ := NewSymmetricKey()
	if bytes.Equal(a, b) {
		t.Fatal("two keys are identical")
	}
}

func TestSharedSecretAgrees(t *testing.T) {
	alice, err := NewKeyPair()
	if err != nil {
		t.Fatalf("NewKeyPair failed: %v", err)
	}
	bob, err := NewKeyPair()
	if err != nil {
		t.Fatalf("NewKeyPair failed: %v", err)
	}
	if len(alice.Public) != PublicKeySize || len(alice.Private) != PrivateKeySize {
		t.Fatalf("key sizes: public %d, private %d", len(alice.Public), len(alice.Private))
	}

	s1, err := alice.SharedSecret(bob.Public)
	if err != nil {
		t.Fatalf("SharedSecret failed: %v", err)
	}
	s2, err := bob.SharedSecret(alice.Public)
	if err != nil {
		t.Fatalf("SharedSecret failed: %v", err)
	}
	if !bytes.Equal(s1, s2) {
		t.Fatal("shared secrets differ")
	}
}

func TestSharedSecretRejectsBadKey(t *testing.T) {
	kp, _ := NewKeyPair()
	if _, err := kp.SharedSecret([]byte{1, 2, 3}); !errors.Is(err, ErrKeySize) {
		t.Fatalf("expected ErrKeySize, got %v", err)
	}
}
