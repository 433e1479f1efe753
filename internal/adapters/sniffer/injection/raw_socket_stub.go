//go:build !linux

package injection

import "errors"

// ErrRawUnsupported is returned where AF_PACKET sockets do not exist;
// Open falls back to pcap in auto mode.
var ErrRawUnsupported = errors.New("raw socket injection requires linux")

func NewRawInjector(iface string) (PacketInjector, error) {
	return nil, ErrRawUnsupported
}
