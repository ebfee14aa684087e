package signer

import "io"

// Signer interface for signing SDK archives
type Signer interface {
	// SignDetached creates an armored detached signature of the stream
	SignDetached(r io.Reader) ([]byte, error)

	// GetPublicKey returns the public key
	GetPublicKey() ([]byte, error)
}
