package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/lcalzada-xor/eapsul/internal/core/domain"
	"github.com/lcalzada-xor/eapsul/internal/core/ports"
)

// Record layout: timestamp (unix nanoseconds, 8 bytes BE), payload length
// (4 bytes BE), payload.
const (
	recordHeaderLen = 12
	MaxRecordSize   = 1 << 18
)

var ErrCorruptRecord = errors.New("corrupt capture record")

// RecordWriter frames captured frames onto an io.Writer.
type RecordWriter struct {
	w io.Writer
}

func NewRecordWriter(w io.Writer) *RecordWriter {
	return &RecordWriter{w: w}
}

// WriteRecord emits the whole record with a single Write call.
func (rw *RecordWriter) WriteRecord(f domain.CapturedFrame) error {
	if len(f.Data) > MaxRecordSize {
		return fmt.Errorf("%w: %d byte frame", ErrCorruptRecord, len(f.Data))
	}
	rec := make([]byte, recordHeaderLen, recordHeaderLen+len(f.Data))
	binary.BigEndian.PutUint64(rec[0:8], uint64(f.Timestamp.UnixNano()))
	binary.BigEndian.PutUint32(rec[8:12], uint32(len(f.Data)))
	rec = append(rec, f.Data...)
	_, err := rw.w.Write(rec)
	return err
}

// RecordReader is the read end of a Buffer as a ports.FrameSource.
type RecordReader struct {
	buf *Buffer
}

var _ ports.FrameSource = (*RecordReader)(nil)

func NewRecordReader(buf *Buffer) *RecordReader {
	return &RecordReader{buf: buf}
}

// Next returns the oldest unread frame. Each frame is returned exactly once.
func (r *RecordReader) Next(deadline time.Time) (domain.CapturedFrame, error) {
	hdr, err := r.buf.Peek(recordHeaderLen, deadline)
	if err != nil {
		return domain.CapturedFrame{}, err
	}
	n := int(binary.BigEndian.Uint32(hdr[8:12]))
	if n > MaxRecordSize {
		return domain.CapturedFrame{}, fmt.Errorf("%w: length %d", ErrCorruptRecord, n)
	}
	// Records are written atomically, so the payload is already buffered.
	rec, err := r.buf.Peek(recordHeaderLen+n, deadline)
	if err != nil {
		return domain.CapturedFrame{}, err
	}
	r.buf.Discard(recordHeaderLen + n)
	return domain.CapturedFrame{
		Timestamp: time.Unix(0, int64(binary.BigEndian.Uint64(hdr[0:8]))),
		Data:      rec[recordHeaderLen:],
	}, nil
}

// Drain discards everything buffered so far and reports how many bytes went.
func (r *RecordReader) Drain() int {
	n := r.buf.Len()
	r.buf.Discard(n)
	return n
}
