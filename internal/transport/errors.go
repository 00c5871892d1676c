package transport

import (
	"errors"
	"fmt"

	"github.com/1ureka/rum3/internal/protocol"
)

var (
	ErrIO                 = errors.New("transport: i/o error")
	ErrMsg                = errors.New("transport: malformed message")
	ErrConnectionNotFound = errors.New("transport: connection not found")
	ErrSend               = errors.New("transport: send failed")
	ErrReceive            = errors.New("transport: receive failed")
	ErrClose              = errors.New("transport: close failed")
)

// codecErrors are the protocol failures a reader can hit on well-delivered bytes.
var codecErrors = []error{
	protocol.ErrInvalidHeader,
	protocol.ErrInvalidPayload,
	protocol.ErrChecksumMismatch,
	protocol.ErrInvalidMagic,
	protocol.ErrUnsupportedVersion,
}

// readError classifies a read failure: codec errors become ErrMsg, anything
// else ErrReceive. Both the class and the cause match with errors.Is.
func readError(err error) error {
	for _, target := range codecErrors {
		if errors.Is(err, target) {
			return fmt.Errorf("%w: %w", ErrMsg, err)
		}
	}
	return fmt.Errorf("%w: %w", ErrReceive, err)
}

// writeError wraps a link write failure.
func writeError(err error) error {
	return fmt.Errorf("%w: %w", ErrIO, err)
}
