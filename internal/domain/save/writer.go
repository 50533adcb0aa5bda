package save

import (
	"encoding/binary"
	"math"
)

// writer mirrors reader: it serializes primitives in the member layout so a
// decoded save can be re-encoded byte for byte. Bit writes accumulate into a
// pending byte that is flushed by the next aligned write.
type writer struct {
	buf []byte

	cur byte
	bit uint8
}

func newWriter() *writer {
	return &writer{}
}

func (w *writer) flushBits() {
	if w.bit > 0 {
		w.buf = append(w.buf, w.cur)
		w.cur = 0
		w.bit = 0
	}
}

func (w *writer) bytes() []byte {
	w.flushBits()
	return w.buf
}

func (w *writer) writeByte(b byte) {
	w.flushBits()
	w.buf = append(w.buf, b)
}

func (w *writer) writeBit(v bool) {
	if w.bit >= 8 {
		w.flushBits()
	}
	if v {
		w.cur |= 1 << w.bit
	}
	w.bit++
}

func (w *writer) writeBits(bits []bool) {
	for _, b := range bits {
		w.writeBit(b)
	}
}

func (w *writer) writeUint16(v uint16) {
	w.flushBits()
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

func (w *writer) writeUint32(v uint32) {
	w.flushBits()
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *writer) writeFloat32(v float32) {
	w.writeUint32(math.Float32bits(v))
}

func (w *writer) writeVarint(v uint64) {
	w.flushBits()
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.buf = append(w.buf, b)
		if v == 0 {
			return
		}
	}
}

func (w *writer) writeString(s string) {
	w.writeVarint(uint64(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *writer) writeMoney(money []uint64) {
	for _, v := range money {
		w.writeVarint(v)
	}
}
