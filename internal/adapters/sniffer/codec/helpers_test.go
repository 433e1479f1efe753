package codec

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/eapsul/internal/core/domain"
)

var (
	testStation = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	testBSSID   = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	testLink    = Link{Station: testStation, BSSID: testBSSID}
)

// fromAP serializes a frame as the access point would send it to testStation.
func fromAP(t *testing.T, typ layers.Dot11Type, flags layers.Dot11Flags, body ...gopacket.SerializableLayer) domain.CapturedFrame {
	t.Helper()
	hdr := &layers.Dot11{
		Type:           typ,
		Flags:          flags,
		Address1:       testStation,
		Address2:       testBSSID,
		Address3:       testBSSID,
		SequenceNumber: 100,
	}
	all := append([]gopacket.SerializableLayer{radiotap(), hdr}, body...)
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, serializeOpts, all...))
	return domain.CapturedFrame{Data: buf.Bytes(), Timestamp: time.Now()}
}

func eapolFromAP(t *testing.T, eapolType layers.EAPOLType, body []byte) domain.CapturedFrame {
	t.Helper()
	return fromAP(t, layers.Dot11TypeData, layers.Dot11FlagsFromDS,
		&layers.LLC{DSAP: 0xaa, SSAP: 0xaa, Control: 0x03},
		&layers.SNAP{OrganizationalCode: []byte{0, 0, 0}, Type: layers.EthernetTypeEAPOL},
		&layers.EAPOL{Version: 1, Type: eapolType, Length: uint16(len(body))},
		gopacket.Payload(body),
	)
}

func eapFromAP(t *testing.T, p *EAP) domain.CapturedFrame {
	t.Helper()
	body, err := p.Marshal()
	require.NoError(t, err)
	return eapolFromAP(t, layers.EAPOLTypeEAP, body)
}

func ttlsRequest(t *testing.T, id uint8, msg TTLSMessage) domain.CapturedFrame {
	t.Helper()
	return eapFromAP(t, &EAP{Code: layers.EAPCodeRequest, ID: id, Type: EAPTypeTTLS, Data: msg.Marshal()})
}

// keyFrame is an EAPOL-Key body with the given key information and key data.
func keyFrame(keyInfo uint16, keyData []byte) []byte {
	b := make([]byte, 95+len(keyData))
	b[0] = 2
	binary.BigEndian.PutUint16(b[1:3], keyInfo)
	binary.BigEndian.PutUint16(b[93:95], uint16(len(keyData)))
	copy(b[95:], keyData)
	return b
}

func decodeOwn(t *testing.T, data []byte) *Frame {
	t.Helper()
	f, err := Decode(domain.CapturedFrame{Data: data, Timestamp: time.Now()})
	require.NoError(t, err)
	return f
}
