package save

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"
)

// reader is a bounds-checked cursor over one decrypted member. It supports
// the format's mix of bit-level flags and byte-aligned primitives: any
// aligned read discards the partially consumed bit byte, matching the
// client's serializer.
type reader struct {
	buf []byte
	pos int

	cur byte
	bit uint8 // next bit index; 8 means no partial byte is loaded
}

func newReader(buf []byte) *reader {
	return &reader{buf: buf, bit: 8}
}

// remaining reports unconsumed whole bytes.
func (r *reader) remaining() int {
	return len(r.buf) - r.pos
}

func (r *reader) align() {
	r.bit = 8
}

func (r *reader) readByte() (byte, error) {
	r.align()
	if r.pos >= len(r.buf) {
		return 0, fmt.Errorf("%w: need 1 byte at offset %d", ErrTruncated, r.pos)
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) readBit() (bool, error) {
	if r.bit >= 8 {
		if r.pos >= len(r.buf) {
			return false, fmt.Errorf("%w: need bit byte at offset %d", ErrTruncated, r.pos)
		}
		r.cur = r.buf[r.pos]
		r.pos++
		r.bit = 0
	}
	v := (r.cur >> r.bit) & 1
	r.bit++
	return v != 0, nil
}

func (r *reader) readBits(n int) ([]bool, error) {
	bits := make([]bool, 0, n)
	for i := 0; i < n; i++ {
		b, err := r.readBit()
		if err != nil {
			return nil, err
		}
		bits = append(bits, b)
	}
	return bits, nil
}

func (r *reader) take(n int) ([]byte, error) {
	r.align()
	if r.remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, r.pos, r.remaining())
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *reader) readUint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *reader) readUint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) readFloat32() (float32, error) {
	v, err := r.readUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// readVarint reads the format's LEB128-style unsigned varint (7 data bits
// per byte, at most 6 bytes).
func (r *reader) readVarint() (uint64, error) {
	r.align()
	var result uint64
	for offset := 0; ; offset++ {
		b, err := r.readByte()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&0x7F) << (7 * offset)
		if b&0x80 == 0 || offset >= 5 {
			break
		}
	}
	return result, nil
}

// readString reads a varint length prefix followed by UTF-8 bytes.
func (r *reader) readString() (string, error) {
	n, err := r.readVarint()
	if err != nil {
		return "", err
	}
	if n > uint64(r.remaining()) {
		return "", fmt.Errorf("%w: string of %d bytes at offset %d, have %d", ErrTruncated, n, r.pos, r.remaining())
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: string at offset %d is not valid UTF-8", ErrMalformedRecord, r.pos-int(n))
	}
	return string(b), nil
}

// readMoney reads the five-denomination currency array.
func (r *reader) readMoney() ([]uint64, error) {
	money := make([]uint64, 0, 5)
	for i := 0; i < 5; i++ {
		v, err := r.readVarint()
		if err != nil {
			return nil, err
		}
		money = append(money, v)
	}
	return money, nil
}
