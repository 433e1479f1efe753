package codec

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/eapsul/internal/adapters/sniffer/handshake"
	"github.com/lcalzada-xor/eapsul/internal/adapters/sniffer/ie"
	"github.com/lcalzada-xor/eapsul/internal/core/domain"
)

func mgmtStatus(fields ...uint16) gopacket.Payload {
	b := make([]byte, 2*len(fields))
	for i, v := range fields {
		binary.LittleEndian.PutUint16(b[2*i:], v)
	}
	return b
}

func serverHelloRecord(t *testing.T) []byte {
	rec, err := TLSRecord(TLSContentHandshake, TLSVersion12, []byte{TLSHandshakeServerHello, 0, 0, 0})
	require.NoError(t, err)
	return rec
}

func TestClassify(t *testing.T) {
	alert, err := TLSRecord(TLSContentAlert, TLSVersion12, []byte{2, 40})
	require.NoError(t, err)

	tests := []struct {
		name  string
		frame func(t *testing.T) domain.CapturedFrame
		want  string
	}{
		{"auth accept", func(t *testing.T) domain.CapturedFrame {
			return fromAP(t, layers.Dot11TypeMgmtAuthentication, 0, mgmtStatus(0, 2, 0))
		}, domain.RespAuthAccept},
		{"auth reject", func(t *testing.T) domain.CapturedFrame {
			return fromAP(t, layers.Dot11TypeMgmtAuthentication, 0, mgmtStatus(0, 2, 1))
		}, domain.RespAuthReject},
		{"assoc accept", func(t *testing.T) domain.CapturedFrame {
			return fromAP(t, layers.Dot11TypeMgmtAssociationResp, 0, mgmtStatus(0x0431, 0, 0xc001))
		}, domain.RespAssocAccept},
		{"assoc reject", func(t *testing.T) domain.CapturedFrame {
			return fromAP(t, layers.Dot11TypeMgmtAssociationResp, 0, mgmtStatus(0x0431, 17, 0))
		}, domain.RespAssocReject},
		{"deauth", func(t *testing.T) domain.CapturedFrame {
			return fromAP(t, layers.Dot11TypeMgmtDeauthentication, 0, &layers.Dot11MgmtDeauthentication{Reason: layers.Dot11ReasonClass2FromNonAuth})
		}, domain.RespDeauth},
		{"disassoc", func(t *testing.T) domain.CapturedFrame {
			return fromAP(t, layers.Dot11TypeMgmtDisassociation, 0, &layers.Dot11MgmtDisassociation{Reason: layers.Dot11ReasonInactivity})
		}, domain.RespDisassoc},
		{"identity request", func(t *testing.T) domain.CapturedFrame {
			return eapFromAP(t, &EAP{Code: layers.EAPCodeRequest, ID: 1, Type: layers.EAPTypeIdentity})
		}, domain.RespEAPIdentityRequest},
		{"ttls start", func(t *testing.T) domain.CapturedFrame {
			return ttlsRequest(t, 2, TTLSMessage{Flags: TTLSFlagStart})
		}, domain.RespEAPTTLSStart},
		{"server hello", func(t *testing.T) domain.CapturedFrame {
			rec := serverHelloRecord(t)
			return ttlsRequest(t, 3, TTLSMessage{Flags: TTLSFlagLengthIncluded, MessageLength: uint32(len(rec)), Data: rec})
		}, domain.RespServerHello},
		{"server hello fragment", func(t *testing.T) domain.CapturedFrame {
			rec := serverHelloRecord(t)
			return ttlsRequest(t, 3, TTLSMessage{Flags: TTLSFlagLengthIncluded | TTLSFlagMoreFragments, MessageLength: 4000, Data: rec})
		}, domain.RespServerHelloFrag},
		{"tls alert", func(t *testing.T) domain.CapturedFrame {
			return ttlsRequest(t, 3, TTLSMessage{Data: alert})
		}, domain.RespTLSAlert},
		{"other method", func(t *testing.T) domain.CapturedFrame {
			return eapFromAP(t, &EAP{Code: layers.EAPCodeRequest, ID: 2, Type: EAPTypeMD5, Data: []byte{16}})
		}, "EAP_REQ_MD5"},
		{"success", func(t *testing.T) domain.CapturedFrame {
			return eapFromAP(t, &EAP{Code: layers.EAPCodeSuccess, ID: 5})
		}, domain.RespEAPSuccess},
		{"failure", func(t *testing.T) domain.CapturedFrame {
			return eapFromAP(t, &EAP{Code: layers.EAPCodeFailure, ID: 5})
		}, domain.RespEAPFailure},
		{"key message 1", func(t *testing.T) domain.CapturedFrame {
			return eapolFromAP(t, layers.EAPOLTypeKey, keyFrame(handshake.KeyInfoKeyType|handshake.KeyInfoKeyAck|2, nil))
		}, "EAPOL_KEY_M1"},
		{"plain data", func(t *testing.T) domain.CapturedFrame {
			return fromAP(t, layers.Dot11TypeData, layers.Dot11FlagsFromDS,
				&layers.LLC{DSAP: 0xaa, SSAP: 0xaa, Control: 0x03},
				&layers.SNAP{OrganizationalCode: []byte{0, 0, 0}, Type: layers.EthernetTypeARP},
				gopacket.Payload(make([]byte, 28)))
		}, domain.RespData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Decode(tt.frame(t))
			require.NoError(t, err)
			assert.True(t, testLink.Inbound(f))

			got, ok := Classify(f)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_Ignored(t *testing.T) {
	beacon := fromAP(t, layers.Dot11TypeMgmtBeacon, 0, gopacket.Payload(make([]byte, 12)))
	f, err := Decode(beacon)
	require.NoError(t, err)
	_, ok := Classify(f)
	assert.False(t, ok)

	// An EAP response is our own traffic, not an answer.
	echo := eapFromAP(t, &EAP{Code: layers.EAPCodeResponse, ID: 1, Type: layers.EAPTypeIdentity, Data: []byte("me")})
	f, err = Decode(echo)
	require.NoError(t, err)
	_, ok = Classify(f)
	assert.False(t, ok)
}

func TestClassify_AssociationStatus(t *testing.T) {
	tests := []struct {
		name string
		typ  layers.Dot11Type
		body gopacket.Payload
		want string
		ok   bool
	}{
		{"assoc accepted", layers.Dot11TypeMgmtAssociationResp, mgmtStatus(0x0431, 0, 0xc001), domain.RespAssocAccept, true},
		{"assoc truncated", layers.Dot11TypeMgmtAssociationResp, mgmtStatus(0x0431), "", false},
		{"reassoc accepted", layers.Dot11TypeMgmtReassociationResp, mgmtStatus(0x0431, 0, 0xc001), domain.RespAssocAccept, true},
		{"reassoc rejected", layers.Dot11TypeMgmtReassociationResp, mgmtStatus(0x0431, 17, 0), domain.RespAssocReject, true},
		{"reassoc truncated", layers.Dot11TypeMgmtReassociationResp, mgmtStatus(0x0431, 0), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Decode(fromAP(t, tt.typ, 0, tt.body))
			require.NoError(t, err)
			got, ok := Classify(f)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInbound(t *testing.T) {
	own, err := IdentityResponse(testLink, 1, 1, "me")
	require.NoError(t, err)
	assert.False(t, testLink.Inbound(decodeOwn(t, own)), "outbound frame")

	other := Link{Station: testStation, BSSID: testStation}
	f, err := Decode(eapFromAP(t, &EAP{Code: layers.EAPCodeSuccess}))
	require.NoError(t, err)
	assert.False(t, other.Inbound(f), "different access point")

	bcast := &Frame{Type: layers.Dot11TypeMgmtDeauthentication, Transmitter: testBSSID, Receiver: broadcast}
	assert.True(t, testLink.Inbound(bcast))
	bcast.Type = layers.Dot11TypeMgmtBeacon
	assert.False(t, testLink.Inbound(bcast))
}

func TestDecode_RetryAndSequence(t *testing.T) {
	cf := fromAP(t, layers.Dot11TypeData, layers.Dot11FlagsFromDS|layers.Dot11FlagsRetry, gopacket.Payload(make([]byte, 8)))
	f, err := Decode(cf)
	require.NoError(t, err)
	assert.True(t, f.Retry())
	assert.Equal(t, uint16(100<<4), f.SequenceControl)
	assert.Equal(t, cf.Timestamp, f.Timestamp)
}

func TestDecode_BareDot11WithFCS(t *testing.T) {
	hdr := &layers.Dot11{
		Type:     layers.Dot11TypeMgmtDeauthentication,
		Address1: testStation,
		Address2: testBSSID,
		Address3: testBSSID,
	}
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{},
		hdr, &layers.Dot11MgmtDeauthentication{Reason: layers.Dot11ReasonUnspecified}, gopacket.Payload{0xde, 0xad, 0xbe, 0xef}))

	f, err := Decode(domain.CapturedFrame{Data: buf.Bytes(), Timestamp: time.Now()})
	require.NoError(t, err)
	got, ok := Classify(f)
	assert.True(t, ok)
	assert.Equal(t, domain.RespDeauth, got)
}

func TestDecode_Garbage(t *testing.T) {
	_, err := Decode(domain.CapturedFrame{Data: []byte{0x01}})
	assert.ErrorIs(t, err, ErrNotDot11)
}

func TestDecode_BeaconElements(t *testing.T) {
	ies := ie.Append(nil, ie.TagSSID, []byte("corp"))
	ies = ie.Append(ies, ie.TagDSParameterSet, []byte{11})
	fixed := make([]byte, 12)

	for _, typ := range []layers.Dot11Type{layers.Dot11TypeMgmtBeacon, layers.Dot11TypeMgmtProbeResp} {
		f, err := Decode(fromAP(t, typ, 0, gopacket.Payload(append(fixed, ies...))))
		require.NoError(t, err)
		assert.True(t, f.Advertisement())
		assert.Equal(t, ies, f.IEs)

		ssid, ok := ie.ParseSSID(f.IEs)
		assert.True(t, ok)
		assert.Equal(t, "corp", ssid)
	}

	f, err := Decode(fromAP(t, layers.Dot11TypeMgmtDeauthentication, 0, mgmtStatus(1)))
	require.NoError(t, err)
	assert.False(t, f.Advertisement())
	assert.Nil(t, f.IEs)
}
