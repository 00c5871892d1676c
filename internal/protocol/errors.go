package protocol

import "errors"

var (
	ErrInvalidHeader      = errors.New("protocol: invalid header")
	ErrInvalidPayload     = errors.New("protocol: invalid payload")
	ErrChecksumMismatch   = errors.New("protocol: checksum mismatch")
	ErrInvalidMagic       = errors.New("protocol: invalid magic")
	ErrUnsupportedVersion = errors.New("protocol: unsupported version")
	ErrInvalidAuth        = errors.New("protocol: invalid auth body")
)
