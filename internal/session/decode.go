package session

import (
	"errors"
	"unicode/utf8"
)

var (
	ErrInvalidText   = errors.New("session: invalid utf-8 in response")
	ErrTruncatedText = errors.New("session: response ended inside a utf-8 sequence")
)

// textDecoder turns response chunks into text. A rune split across two reads
// is carried to the next chunk instead of being reported as invalid.
type textDecoder struct {
	pending [utf8.UTFMax - 1]byte
	n       int
	scratch []byte
}

func newTextDecoder(chunk int) textDecoder {
	return textDecoder{scratch: make([]byte, 0, chunk+utf8.UTFMax)}
}

func (d *textDecoder) Reset() {
	d.n = 0
}

// Decode returns the complete text in chunk. On ErrInvalidText the chunk and
// any carried bytes are dropped.
func (d *textDecoder) Decode(chunk []byte) (string, error) {
	data := append(d.scratch[:0], d.pending[:d.n]...)
	data = append(data, chunk...)
	d.scratch = data[:0]
	d.n = 0

	cut := len(data)
	for i := 1; i < utf8.UTFMax && i <= len(data); i++ {
		start := len(data) - i
		if !utf8.RuneStart(data[start]) {
			continue
		}
		if !utf8.FullRune(data[start:]) {
			cut = start
		}
		break
	}

	body := data[:cut]
	if !utf8.Valid(body) {
		return "", ErrInvalidText
	}
	d.n = copy(d.pending[:], data[cut:])
	return string(body), nil
}

// Flush reports bytes still carried at end of stream.
func (d *textDecoder) Flush() error {
	if d.n == 0 {
		return nil
	}
	d.n = 0
	return ErrTruncatedText
}
