//go:build linux

package injection

import (
	"fmt"
	"net"
	"sync/atomic"
	"syscall"
)

// RawInjector sends radiotap-framed 802.11 frames through an AF_PACKET
// socket bound to the monitor interface.
type RawInjector struct {
	iface  string
	fd     int
	sa     syscall.SockaddrLinklayer
	closed atomic.Bool
}

var _ PacketInjector = (*RawInjector)(nil)

func NewRawInjector(iface string) (PacketInjector, error) {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, fmt.Errorf("raw injector: interface %s: %w", iface, err)
	}

	// Protocol 0: the socket only transmits, no frames are queued for reading.
	fd, err := syscall.Socket(syscall.AF_PACKET, syscall.SOCK_RAW, 0)
	if err != nil {
		return nil, fmt.Errorf("raw injector: AF_PACKET socket on %s: %w", iface, err)
	}

	sa := syscall.SockaddrLinklayer{Ifindex: ifi.Index}
	if err := syscall.Bind(fd, &sa); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("raw injector: bind %s: %w", iface, err)
	}
	return &RawInjector{iface: iface, fd: fd, sa: sa}, nil
}

// Inject transmits one frame, retrying once when the call is interrupted.
func (r *RawInjector) Inject(frame []byte) error {
	if r.closed.Load() {
		return ErrInjectorClosed
	}
	err := syscall.Sendto(r.fd, frame, 0, &r.sa)
	if err == syscall.EINTR {
		err = syscall.Sendto(r.fd, frame, 0, &r.sa)
	}
	if err != nil {
		return fmt.Errorf("raw send on %s: %w", r.iface, err)
	}
	return nil
}

func (r *RawInjector) Close() {
	if r.closed.CompareAndSwap(false, true) {
		syscall.Close(r.fd)
	}
}
