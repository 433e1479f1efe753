package ports

import (
	"errors"
	"time"

	"github.com/lcalzada-xor/eapsul/internal/core/domain"
)

var (
	// ErrDeadline is returned by a FrameSource when no frame arrived before the deadline.
	ErrDeadline = errors.New("no frame before deadline")
	// ErrSourceClosed is returned once the capture side closed and every frame was consumed.
	ErrSourceClosed = errors.New("frame source closed")
)

// FrameInjector writes one serialized frame to the air.
type FrameInjector interface {
	Inject(packet []byte) error
	Close()
}

// FrameSource yields captured frames in arrival order, each exactly once.
type FrameSource interface {
	Next(deadline time.Time) (domain.CapturedFrame, error)
}

// ChannelSwitcher tunes an interface to a channel.
type ChannelSwitcher interface {
	SetChannel(iface string, channel int) error
}

// ExchangeRecorder observes every query/response pair handled by the dispatch loop.
type ExchangeRecorder interface {
	RecordExchange(ex domain.Exchange)
}

// StatusProvider exposes a point-in-time view of the running session.
type StatusProvider interface {
	Status() domain.SessionStatus
}
