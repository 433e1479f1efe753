package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/lcalzada-xor/eapsul/internal/adapters/sniffer/handshake"
	"github.com/lcalzada-xor/eapsul/internal/core/domain"
)

var ErrNotDot11 = errors.New("frame has no 802.11 header")

var broadcast = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// Frame is the decoded view of a captured frame that response abstraction needs.
type Frame struct {
	Timestamp       time.Time
	Type            layers.Dot11Type
	Flags           layers.Dot11Flags
	Receiver        net.HardwareAddr // Address1
	Transmitter     net.HardwareAddr // Address2
	BSSID           net.HardwareAddr // Address3
	SequenceControl uint16

	// Management status (authentication and association responses).
	Status    layers.Dot11Status
	HasStatus bool

	// Information elements of beacons and probe responses.
	IEs []byte

	EAPOL *layers.EAPOL
	EAP   *EAP
	TTLS  *TTLSMessage
	Key   *handshake.EAPOLKeyFrame
}

// Retry reports whether the transmitter flagged this frame as a retransmission.
func (f *Frame) Retry() bool {
	return f.Flags.Retry()
}

// Decode parses a captured frame, radiotap first, falling back to a bare
// 802.11 header (with FCS) for interfaces that deliver no radiotap. The
// RadioTap decoder pads a missing FCS itself.
func Decode(cf domain.CapturedFrame) (*Frame, error) {
	first := layers.LayerTypeDot11
	var rt layers.RadioTap
	if hasRadiotap(cf.Data) && rt.DecodeFromBytes(cf.Data, gopacket.NilDecodeFeedback) == nil {
		first = layers.LayerTypeRadioTap
	}

	pkt := gopacket.NewPacket(cf.Data, first, gopacket.NoCopy)
	dot11, ok := pkt.Layer(layers.LayerTypeDot11).(*layers.Dot11)
	if !ok {
		return nil, ErrNotDot11
	}

	f := &Frame{
		Timestamp:       cf.Timestamp,
		Type:            dot11.Type,
		Flags:           dot11.Flags,
		Receiver:        dot11.Address1,
		Transmitter:     dot11.Address2,
		BSSID:           dot11.Address3,
		SequenceControl: dot11.SequenceNumber<<4 | dot11.FragmentNumber&0x0f,
	}

	switch dot11.Type {
	case layers.Dot11TypeMgmtAuthentication:
		if auth, ok := pkt.Layer(layers.LayerTypeDot11MgmtAuthentication).(*layers.Dot11MgmtAuthentication); ok {
			f.Status, f.HasStatus = auth.Status, true
		}
	case layers.Dot11TypeMgmtAssociationResp:
		if resp, ok := pkt.Layer(layers.LayerTypeDot11MgmtAssociationResp).(*layers.Dot11MgmtAssociationResp); ok {
			f.Status, f.HasStatus = resp.Status, true
		}
	case layers.Dot11TypeMgmtReassociationResp:
		// gopacket leaves the reassociation body undecoded; it shares the
		// association response layout (capability, status, AID).
		if resp := pkt.Layer(layers.LayerTypeDot11MgmtReassociationResp); resp != nil {
			if body := resp.LayerContents(); len(body) >= 6 {
				f.Status = layers.Dot11Status(binary.LittleEndian.Uint16(body[2:4]))
				f.HasStatus = true
			}
		}
	case layers.Dot11TypeMgmtBeacon:
		if beacon := pkt.Layer(layers.LayerTypeDot11MgmtBeacon); beacon != nil {
			f.IEs = beacon.LayerPayload()
		}
	case layers.Dot11TypeMgmtProbeResp:
		if resp := pkt.Layer(layers.LayerTypeDot11MgmtProbeResp); resp != nil {
			f.IEs = resp.LayerPayload()
		}
	}

	if eapol, ok := pkt.Layer(layers.LayerTypeEAPOL).(*layers.EAPOL); ok {
		f.EAPOL = eapol
		switch eapol.Type {
		case layers.EAPOLTypeEAP:
			body := eapol.LayerPayload()
			if int(eapol.Length) < len(body) {
				body = body[:eapol.Length]
			}
			if p, err := ParseEAP(body); err == nil {
				f.EAP = p
				if p.Type == EAPTypeTTLS && len(p.Data) > 0 {
					f.TTLS, _ = ParseTTLS(p.Data)
				}
			}
		case layers.EAPOLTypeKey:
			f.Key, _ = handshake.ParseEAPOLKey(pkt)
		}
	}
	return f, nil
}

// Advertisement reports whether f is a beacon or probe response.
func (f *Frame) Advertisement() bool {
	return f.Type == layers.Dot11TypeMgmtBeacon || f.Type == layers.Dot11TypeMgmtProbeResp
}

// hasRadiotap checks for a version 0 radiotap header whose length fits.
func hasRadiotap(data []byte) bool {
	return len(data) >= 8 && data[0] == 0 && data[1] == 0 &&
		int(binary.LittleEndian.Uint16(data[2:4])) <= len(data)
}

// Inbound reports whether f was sent by the AP of this link to the station,
// either unicast or as a broadcast deauthentication/disassociation.
func (l Link) Inbound(f *Frame) bool {
	if !bytes.Equal(f.Transmitter, l.BSSID) {
		return false
	}
	if bytes.Equal(f.Receiver, l.Station) {
		return true
	}
	return bytes.Equal(f.Receiver, broadcast) &&
		(f.Type == layers.Dot11TypeMgmtDeauthentication || f.Type == layers.Dot11TypeMgmtDisassociation)
}
