package injection

import (
	"fmt"

	"github.com/google/gopacket/pcap"
)

// PcapInjector writes frames through a libpcap handle on a monitor interface.
type PcapInjector struct {
	iface  string
	handle *pcap.Handle
}

func NewPcapInjector(iface string) (PacketInjector, error) {
	// Send-only handle: a small snaplen keeps the kernel buffer cheap.
	handle, err := pcap.OpenLive(iface, 256, false, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("pcap open %s failed: %w", iface, err)
	}
	return &PcapInjector{iface: iface, handle: handle}, nil
}

func (p *PcapInjector) Inject(packet []byte) error {
	if err := p.handle.WritePacketData(packet); err != nil {
		return fmt.Errorf("pcap write on %s: %w", p.iface, err)
	}
	return nil
}

func (p *PcapInjector) Close() {
	p.handle.Close()
}
