// Package encoding provides the varint packet primitives shared by the
// binary codecs: a growable Writer and a bounds-checked Reader.
package encoding

import (
	"encoding/binary"
	"fmt"
)

// MaxCollection caps count prefixes so a corrupt length cannot force a
// huge allocation before the underrun is noticed.
const MaxCollection = 1 << 20

type Writer struct {
	buf []byte
	tmp [binary.MaxVarintLen64]byte
}

func NewWriter(dst []byte) *Writer { return &Writer{buf: dst} }

func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) Byte(b byte) { w.buf = append(w.buf, b) }

func (w *Writer) Uvarint(v uint64) {
	n := binary.PutUvarint(w.tmp[:], v)
	w.buf = append(w.buf, w.tmp[:n]...)
}

// VarInt writes a non-negative int.
func (w *Writer) VarInt(v int) {
	if v < 0 {
		v = 0
	}
	w.Uvarint(uint64(v))
}

// String writes a varint length followed by the raw bytes.
func (w *Writer) String(s string) {
	w.VarInt(len(s))
	w.buf = append(w.buf, s...)
}

// UnderrunError reports a buffer that ended before Field was complete.
type UnderrunError struct {
	Field  string
	Offset int
	Need   int
	Have   int
}

func (e *UnderrunError) Error() string {
	return fmt.Sprintf("buffer underrun reading %s at %d: need %d bytes, have %d", e.Field, e.Offset, e.Need, e.Have)
}

type Reader struct {
	raw []byte
	off int
}

func NewReader(b []byte) *Reader { return &Reader{raw: b} }

func (r *Reader) Offset() int    { return r.off }
func (r *Reader) Remaining() int { return len(r.raw) - r.off }

func (r *Reader) Byte(field string) (byte, error) {
	if r.Remaining() < 1 {
		return 0, &UnderrunError{Field: field, Offset: r.off, Need: 1, Have: r.Remaining()}
	}
	b := r.raw[r.off]
	r.off++
	return b, nil
}

func (r *Reader) Uvarint(field string) (uint64, error) {
	v, n := binary.Uvarint(r.raw[r.off:])
	switch {
	case n == 0:
		return 0, &UnderrunError{Field: field, Offset: r.off, Need: 1, Have: r.Remaining()}
	case n < 0:
		return 0, fmt.Errorf("bad varint for %s at %d", field, r.off)
	}
	r.off += n
	return v, nil
}

// VarInt reads a varint that must fit in [0, max].
func (r *Reader) VarInt(field string, max int) (int, error) {
	off := r.off
	v, err := r.Uvarint(field)
	if err != nil {
		return 0, err
	}
	if v > uint64(max) {
		return 0, fmt.Errorf("%s at %d: value %d exceeds %d", field, off, v, max)
	}
	return int(v), nil
}

func (r *Reader) String(field string) (string, error) {
	n, err := r.VarInt(field, MaxCollection)
	if err != nil {
		return "", err
	}
	if r.Remaining() < n {
		return "", &UnderrunError{Field: field, Offset: r.off, Need: n, Have: r.Remaining()}
	}
	s := string(r.raw[r.off : r.off+n])
	r.off += n
	return s, nil
}

// Count reads a collection size prefix. Each element takes at least one
// byte, so a size larger than the remaining input is an underrun.
func (r *Reader) Count(field string) (int, error) {
	n, err := r.VarInt(field, MaxCollection)
	if err != nil {
		return 0, err
	}
	if n > r.Remaining() {
		return 0, &UnderrunError{Field: field, Offset: r.off, Need: n, Have: r.Remaining()}
	}
	return n, nil
}
