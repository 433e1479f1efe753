package codec

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/lcalzada-xor/eapsul/internal/adapters/sniffer/ie"
)

// 802.1X header values used by the base template.
const (
	EAPOLVersion2001 uint8 = 1

	// 1 Mbps in 500 kbps units.
	injectRate = 2
)

// Link addresses the station/AP pair every injected frame travels on.
type Link struct {
	Station net.HardwareAddr
	BSSID   net.HardwareAddr
}

// Validate reports whether both addresses are usable MACs.
func (l Link) Validate() error {
	if len(l.Station) != 6 {
		return fmt.Errorf("invalid station address %q", l.Station)
	}
	if len(l.BSSID) != 6 {
		return fmt.Errorf("invalid bssid %q", l.BSSID)
	}
	return nil
}

var serializeOpts = gopacket.SerializeOptions{
	FixLengths:       true,
	ComputeChecksums: true,
}

func radiotap() *layers.RadioTap {
	return &layers.RadioTap{
		Present: layers.RadioTapPresentRate,
		Rate:    injectRate,
	}
}

// dataHeader is the station-to-AP data header of the base template.
func (l Link) dataHeader(seq uint16) *layers.Dot11 {
	return &layers.Dot11{
		Type:           layers.Dot11TypeData,
		Flags:          layers.Dot11FlagsToDS,
		Address1:       l.BSSID,
		Address2:       l.Station,
		Address3:       l.BSSID,
		SequenceNumber: seq,
	}
}

// mgmtFrame serializes a station-to-AP management frame.
func (l Link) mgmtFrame(subtype layers.Dot11Type, seq uint16, body gopacket.SerializableLayer) ([]byte, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return serializeMgmt(&layers.Dot11{
		Type:           subtype,
		Address1:       l.BSSID,
		Address2:       l.Station,
		Address3:       l.BSSID,
		SequenceNumber: seq,
	}, body)
}

// encapsulate is phase two of every EAPOL build: the 802.1X length is taken
// from the already serialized body and the outer layers are written around it.
func (l Link) encapsulate(seq uint16, eapolType layers.EAPOLType, body []byte) ([]byte, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if len(body) > 0xffff {
		return nil, fmt.Errorf("eapol body too large: %d", len(body))
	}
	eapol := &layers.EAPOL{
		Version: EAPOLVersion2001,
		Type:    eapolType,
		Length:  uint16(len(body)),
	}
	llc := &layers.LLC{DSAP: 0xaa, SSAP: 0xaa, Control: 0x03}
	snap := &layers.SNAP{
		OrganizationalCode: []byte{0x00, 0x00, 0x00},
		Type:               layers.EthernetTypeEAPOL,
	}

	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, serializeOpts,
		radiotap(),
		l.dataHeader(seq),
		llc,
		snap,
		eapol,
		gopacket.Payload(body),
	); err != nil {
		return nil, fmt.Errorf("serialize eapol frame failed: %w", err)
	}
	return buf.Bytes(), nil
}

// eapFrame runs both build phases for one EAP packet.
func (l Link) eapFrame(seq uint16, p *EAP) ([]byte, error) {
	body, err := p.Marshal()
	if err != nil {
		return nil, err
	}
	return l.encapsulate(seq, layers.EAPOLTypeEAP, body)
}

// IdentityResponse builds EAP-Response/Identity.
func IdentityResponse(l Link, seq uint16, id uint8, identity string) ([]byte, error) {
	return l.eapFrame(seq, &EAP{
		Code: layers.EAPCodeResponse,
		ID:   id,
		Type: layers.EAPTypeIdentity,
		Data: []byte(identity),
	})
}

// LegacyNak builds EAP-Response/Nak proposing the desired method.
func LegacyNak(l Link, seq uint16, id uint8, desired layers.EAPType) ([]byte, error) {
	return l.eapFrame(seq, &EAP{
		Code: layers.EAPCodeResponse,
		ID:   id,
		Type: EAPTypeLegacyNak,
		Data: []byte{byte(desired)},
	})
}

// TTLSClientHello builds an EAP-TTLS response carrying one TLS record with
// the hello. The hello always fits one frame, so L, M and S are clear.
func TTLSClientHello(l Link, seq uint16, id uint8, hello *ClientHello) ([]byte, error) {
	hs, err := hello.MarshalHandshake()
	if err != nil {
		return nil, err
	}
	record, err := TLSRecord(TLSContentHandshake, TLSVersion12, hs)
	if err != nil {
		return nil, err
	}
	msg := TTLSMessage{Data: record}
	return l.eapFrame(seq, &EAP{
		Code: layers.EAPCodeResponse,
		ID:   id,
		Type: EAPTypeTTLS,
		Data: msg.Marshal(),
	})
}

// TTLSAck builds the bare EAP-TTLS response used to pull the next fragment
// of the server flight.
func TTLSAck(l Link, seq uint16, id uint8) ([]byte, error) {
	return l.eapFrame(seq, &EAP{
		Code: layers.EAPCodeResponse,
		ID:   id,
		Type: EAPTypeTTLS,
	})
}

// EAPOLStart builds an 802.1X EAPOL-Start.
func EAPOLStart(l Link, seq uint16) ([]byte, error) {
	return l.encapsulate(seq, layers.EAPOLTypeStart, nil)
}

// Authentication builds an open-system Authentication request (transaction 1).
func Authentication(l Link, seq uint16) ([]byte, error) {
	body := make([]byte, 6)
	binary.LittleEndian.PutUint16(body[0:2], uint16(layers.Dot11AlgorithmOpen))
	binary.LittleEndian.PutUint16(body[2:4], 1)
	binary.LittleEndian.PutUint16(body[4:6], uint16(layers.Dot11StatusSuccess))
	return l.mgmtFrame(layers.Dot11TypeMgmtAuthentication, seq, gopacket.Payload(body))
}

// Association capability: ESS, privacy, short preamble, short slot time.
const assocCapabilities uint16 = 0x0431

var (
	supportedRates = []byte{0x82, 0x84, 0x8b, 0x96, 0x0c, 0x12, 0x18, 0x24}
	extendedRates  = []byte{0x30, 0x48, 0x60, 0x6c}
)

// AssociationRequest builds an Association request for ssid. A non-empty
// rsn is echoed back to the AP as the RSN element.
func AssociationRequest(l Link, seq uint16, ssid string, rsn []byte) ([]byte, error) {
	if len(ssid) > 32 {
		return nil, fmt.Errorf("ssid too long: %d", len(ssid))
	}
	body := make([]byte, 4)
	binary.LittleEndian.PutUint16(body[0:2], assocCapabilities)
	binary.LittleEndian.PutUint16(body[2:4], 10) // listen interval
	body = ie.Append(body, ie.TagSSID, []byte(ssid))
	body = ie.Append(body, ie.TagSupportedRates, supportedRates)
	body = ie.Append(body, ie.TagExtendedRates, extendedRates)
	if len(rsn) > 0 {
		body = ie.Append(body, ie.TagRSN, rsn)
	}
	return l.mgmtFrame(layers.Dot11TypeMgmtAssociationReq, seq, gopacket.Payload(body))
}

// Deauthentication builds a station-originated Deauthentication frame.
func Deauthentication(l Link, seq uint16, reason layers.Dot11Reason) ([]byte, error) {
	return l.mgmtFrame(layers.Dot11TypeMgmtDeauthentication, seq, &layers.Dot11MgmtDeauthentication{Reason: reason})
}

func serializeMgmt(hdr *layers.Dot11, body gopacket.SerializableLayer) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, serializeOpts, radiotap(), hdr, body); err != nil {
		return nil, fmt.Errorf("serialize %v failed: %w", hdr.Type, err)
	}
	return buf.Bytes(), nil
}

// ProbeRequest builds a broadcast probe request for ssid from station, used
// to solicit a probe response during discovery.
func ProbeRequest(station net.HardwareAddr, seq uint16, ssid string) ([]byte, error) {
	if len(ssid) > 32 {
		return nil, fmt.Errorf("ssid too long: %d", len(ssid))
	}
	hdr := &layers.Dot11{
		Type:           layers.Dot11TypeMgmtProbeReq,
		Address1:       broadcast,
		Address2:       station,
		Address3:       broadcast,
		SequenceNumber: seq,
	}
	body := ie.Append(nil, ie.TagSSID, []byte(ssid))
	body = ie.Append(body, ie.TagSupportedRates, supportedRates)
	body = ie.Append(body, ie.TagExtendedRates, extendedRates)
	return serializeMgmt(hdr, gopacket.Payload(body))
}
