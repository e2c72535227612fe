package field

// Writer packs fields into buf at a running offset. The first failed
// write is kept and every later write becomes a no-op.
type Writer struct {
	buf []byte
	off int
	err error
}

func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf}
}

// Len is the number of bytes written so far, which is the declared
// payload length once packing is done.
func (w *Writer) Len() int { return w.off }

func (w *Writer) Err() error { return w.err }

func (w *Writer) advance(n int, err error) *Writer {
	if err != nil {
		w.err = err
		return w
	}
	w.off += n
	return w
}

func (w *Writer) Uint8(v uint8) *Writer {
	if w.err != nil {
		return w
	}
	return w.advance(PutUint8(w.buf, w.off, v))
}

func (w *Writer) Int8(v int8) *Writer {
	if w.err != nil {
		return w
	}
	return w.advance(PutInt8(w.buf, w.off, v))
}

func (w *Writer) Uint16(v uint16) *Writer {
	if w.err != nil {
		return w
	}
	return w.advance(PutUint16(w.buf, w.off, v))
}

func (w *Writer) Int16(v int16) *Writer {
	if w.err != nil {
		return w
	}
	return w.advance(PutInt16(w.buf, w.off, v))
}

func (w *Writer) Uint32(v uint32) *Writer {
	if w.err != nil {
		return w
	}
	return w.advance(PutUint32(w.buf, w.off, v))
}

func (w *Writer) Int32(v int32) *Writer {
	if w.err != nil {
		return w
	}
	return w.advance(PutInt32(w.buf, w.off, v))
}

func (w *Writer) Uint64(v uint64) *Writer {
	if w.err != nil {
		return w
	}
	return w.advance(PutUint64(w.buf, w.off, v))
}

func (w *Writer) Int64(v int64) *Writer {
	if w.err != nil {
		return w
	}
	return w.advance(PutInt64(w.buf, w.off, v))
}

func (w *Writer) Float32(v float32) *Writer {
	if w.err != nil {
		return w
	}
	return w.advance(PutFloat32(w.buf, w.off, v))
}

func (w *Writer) Float64(v float64) *Writer {
	if w.err != nil {
		return w
	}
	return w.advance(PutFloat64(w.buf, w.off, v))
}

func (w *Writer) Bytes(p []byte) *Writer {
	if w.err != nil {
		return w
	}
	return w.advance(PutBytes(w.buf, w.off, p))
}

func (w *Writer) String(s string, n int) *Writer {
	if w.err != nil {
		return w
	}
	return w.advance(PutString(w.buf, w.off, s, n))
}

// Reader unpacks fields from buf at a running offset with the same
// sticky-error behavior as Writer. Failed reads return zero values.
type Reader struct {
	buf []byte
	off int
	err error
}

func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

func (r *Reader) Offset() int { return r.off }

func (r *Reader) Remaining() int { return len(r.buf) - r.off }

func (r *Reader) Err() error { return r.err }

func readNext[T any](r *Reader, width int, get func([]byte, int) (T, error)) T {
	var zero T
	if r.err != nil {
		return zero
	}
	v, err := get(r.buf, r.off)
	if err != nil {
		r.err = err
		return zero
	}
	r.off += width
	return v
}

func (r *Reader) Uint8() uint8     { return readNext(r, Size8, Uint8) }
func (r *Reader) Int8() int8       { return readNext(r, Size8, Int8) }
func (r *Reader) Uint16() uint16   { return readNext(r, Size16, Uint16) }
func (r *Reader) Int16() int16     { return readNext(r, Size16, Int16) }
func (r *Reader) Uint32() uint32   { return readNext(r, Size32, Uint32) }
func (r *Reader) Int32() int32     { return readNext(r, Size32, Int32) }
func (r *Reader) Uint64() uint64   { return readNext(r, Size64, Uint64) }
func (r *Reader) Int64() int64     { return readNext(r, Size64, Int64) }
func (r *Reader) Float32() float32 { return readNext(r, Size32, Float32) }
func (r *Reader) Float64() float64 { return readNext(r, Size64, Float64) }

// Bytes returns a copy of the next n bytes.
func (r *Reader) Bytes(n int) []byte {
	return readNext(r, max(n, 0), func(buf []byte, off int) ([]byte, error) {
		return Bytes(buf, off, n)
	})
}

// String reads the next n byte char array.
func (r *Reader) String(n int) string {
	return readNext(r, max(n, 0), func(buf []byte, off int) (string, error) {
		return String(buf, off, n)
	})
}
