package capture

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/gopacket/pcap"
)

const (
	snapLen = 65536
	// readTimeout bounds every blocking read so Run notices cancellation.
	readTimeout = 100 * time.Millisecond
)

// OpenLive opens iface in promiscuous mode with no filter.
func OpenLive(iface string) (*pcap.Handle, error) {
	handle, err := pcap.OpenLive(iface, snapLen, true, readTimeout)
	if err != nil {
		return nil, fmt.Errorf("pcap open %s failed: %w", iface, err)
	}
	return handle, nil
}

// IsReadTimeout reports whether err only means the read timeout expired.
func IsReadTimeout(err error) bool {
	return errors.Is(err, pcap.NextErrorTimeoutExpired)
}
