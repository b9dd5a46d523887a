package sui

import (
	"bytes"
	"encoding/binary"
)

// bcsWriter appends values in Binary Canonical Serialization order.
type bcsWriter struct {
	buf bytes.Buffer
}

func (w *bcsWriter) u8(v byte) {
	w.buf.WriteByte(v)
}

func (w *bcsWriter) u16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *bcsWriter) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// length writes a sequence length as ULEB128.
func (w *bcsWriter) length(n int) {
	v := uint64(n)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			w.buf.WriteByte(b | 0x80)
			continue
		}
		w.buf.WriteByte(b)
		return
	}
}

// fixed writes raw bytes without a length prefix.
func (w *bcsWriter) fixed(b []byte) {
	w.buf.Write(b)
}

// vector writes a length-prefixed byte sequence.
func (w *bcsWriter) vector(b []byte) {
	w.length(len(b))
	w.buf.Write(b)
}

func (w *bcsWriter) str(s string) {
	w.vector([]byte(s))
}

func (w *bcsWriter) Bytes() []byte {
	return w.buf.Bytes()
}
