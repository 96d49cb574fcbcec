package session

import (
	"errors"
	"fmt"
)

var ErrInvalidBufferSize = errors.New("session: invalid buffer size")

// Buffers are allocated once and reused by every attempt of one Driver. RX and
// TX back the socket; Read receives response chunks.
type Buffers struct {
	RX   []byte
	TX   []byte
	Read []byte
}

func NewBuffers(rxSize, txSize, readSize int) (*Buffers, error) {
	if rxSize <= 0 || txSize <= 0 || readSize <= 0 {
		return nil, fmt.Errorf("%w: rx=%d tx=%d read=%d", ErrInvalidBufferSize, rxSize, txSize, readSize)
	}
	return &Buffers{
		RX:   make([]byte, rxSize),
		TX:   make([]byte, txSize),
		Read: make([]byte, readSize),
	}, nil
}

// DefaultBuffers uses the 4096-byte socket regions and a 1024-byte read chunk.
func DefaultBuffers() *Buffers {
	b, _ := NewBuffers(DefaultBufferSize, DefaultBufferSize, DefaultReadChunk)
	return b
}

// Footprint is the total bytes held.
func (b *Buffers) Footprint() int {
	return cap(b.RX) + cap(b.TX) + cap(b.Read)
}
