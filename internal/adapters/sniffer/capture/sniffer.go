package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/lcalzada-xor/eapsul/internal/core/domain"
)

const traceSnapLen = 65536

// Sniffer copies every frame read from a packet source into a Buffer.
// It is the only writer of that Buffer.
type Sniffer struct {
	source gopacket.PacketDataSource
	buf    *Buffer
	out    *RecordWriter
	trace  *pcapgo.Writer
	logger *slog.Logger

	frames  atomic.Uint64
	bytes   atomic.Uint64
	onFrame func(size int)
}

// Option configures a Sniffer.
type Option func(*Sniffer)

// WithTrace also writes every frame to w as a radiotap pcap file.
func WithTrace(w io.Writer) Option {
	return func(s *Sniffer) {
		s.trace = pcapgo.NewWriter(w)
	}
}

// WithLogger sets the logger used for pipeline events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sniffer) {
		s.logger = l
	}
}

// WithFrameHook is called after each frame is buffered.
func WithFrameHook(fn func(size int)) Option {
	return func(s *Sniffer) {
		s.onFrame = fn
	}
}

func NewSniffer(source gopacket.PacketDataSource, buf *Buffer, opts ...Option) *Sniffer {
	s := &Sniffer{
		source: source,
		buf:    buf,
		out:    NewRecordWriter(buf),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run reads until ctx is cancelled, the buffer's write end is closed or the
// source fails. The write end is closed on return so the reader sees the end.
// A nil return means an orderly stop; anything else is fatal.
func (s *Sniffer) Run(ctx context.Context) error {
	defer s.buf.CloseWrite()

	if s.trace != nil {
		if err := s.trace.WriteFileHeader(traceSnapLen, layers.LinkTypeIEEE80211Radio); err != nil {
			return fmt.Errorf("write trace header: %w", err)
		}
	}

	s.logger.Info("Capture started")
	for {
		if ctx.Err() != nil {
			s.logger.Info("Capture stopped", "frames", s.frames.Load())
			return nil
		}

		data, ci, err := s.source.ReadPacketData()
		if err != nil {
			if IsReadTimeout(err) {
				continue
			}
			if errors.Is(err, io.EOF) {
				s.logger.Info("Capture source exhausted", "frames", s.frames.Load())
				return nil
			}
			return fmt.Errorf("capture read: %w", err)
		}

		ts := ci.Timestamp
		frame := domain.CapturedFrame{Data: data, Timestamp: ts}
		if err := s.out.WriteRecord(frame); err != nil {
			if errors.Is(err, ErrClosed) {
				return nil
			}
			return fmt.Errorf("capture buffer: %w", err)
		}
		if s.trace != nil {
			if err := s.trace.WritePacket(ci, data); err != nil {
				return fmt.Errorf("write trace: %w", err)
			}
		}

		s.frames.Add(1)
		s.bytes.Add(uint64(len(data)))
		if s.onFrame != nil {
			s.onFrame(len(data))
		}
	}
}

// Stats returns the number of frames and bytes buffered so far.
func (s *Sniffer) Stats() (frames, bytes uint64) {
	return s.frames.Load(), s.bytes.Load()
}
