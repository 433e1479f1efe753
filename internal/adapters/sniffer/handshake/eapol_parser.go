package handshake

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Key Information bits (IEEE 802.11i).
const (
	KeyInfoKeyDescriptorVersionMask = 0x0007
	KeyInfoKeyType                  = 1 << 3 // 1 = pairwise, 0 = group
	KeyInfoKeyIndexMask             = 0x0030
	KeyInfoInstall                  = 1 << 6
	KeyInfoKeyAck                   = 1 << 7
	KeyInfoKeyMIC                   = 1 << 8
	KeyInfoSecure                   = 1 << 9
	KeyInfoError                    = 1 << 10
	KeyInfoRequest                  = 1 << 11
	KeyInfoEncryptedKeyData         = 1 << 12
)

// keyFrameFixedLen covers descriptor type through key data length.
const keyFrameFixedLen = 95

var ErrNotEAPOL = errors.New("not an EAPOL packet")

// EAPOLKeyFrame holds the fields of an EAPOL-Key frame.
type EAPOLKeyFrame struct {
	DescriptorType uint8
	KeyInformation uint16
	KeyLength      uint16
	ReplayCounter  uint64
	Nonce          []byte // 32 bytes
	KeyIV          []byte // 16 bytes
	KeyRSC         uint64
	KeyID          uint64
	MIC            []byte // 16 bytes
	KeyDataLength  uint16
	KeyData        []byte

	HasMIC     bool
	HasAck     bool
	IsPairwise bool
	Version    uint8
}

// ParseEAPOLKey extracts the EAPOL-Key frame carried by packet.
func ParseEAPOLKey(packet gopacket.Packet) (*EAPOLKeyFrame, error) {
	eapol, ok := packet.Layer(layers.LayerTypeEAPOL).(*layers.EAPOL)
	if !ok {
		return nil, ErrNotEAPOL
	}
	if eapol.Type != layers.EAPOLTypeKey {
		return nil, fmt.Errorf("not an EAPOL Key frame (Type: %d)", eapol.Type)
	}
	return ParseKeyPayload(eapol.LayerPayload())
}

// ParseKeyPayload decodes the body that follows the 802.1X header.
func ParseKeyPayload(payload []byte) (*EAPOLKeyFrame, error) {
	if len(payload) < keyFrameFixedLen {
		return nil, fmt.Errorf("payload too short for EAPOL Key: %d bytes", len(payload))
	}

	f := &EAPOLKeyFrame{
		DescriptorType: payload[0],
		KeyInformation: binary.BigEndian.Uint16(payload[1:3]),
		KeyLength:      binary.BigEndian.Uint16(payload[3:5]),
		ReplayCounter:  binary.BigEndian.Uint64(payload[5:13]),
		Nonce:          payload[13:45],
		KeyIV:          payload[45:61],
		KeyRSC:         binary.BigEndian.Uint64(payload[61:69]),
		KeyID:          binary.BigEndian.Uint64(payload[69:77]),
		MIC:            payload[77:93],
		KeyDataLength:  binary.BigEndian.Uint16(payload[93:95]),
	}

	end := keyFrameFixedLen + int(f.KeyDataLength)
	if end > len(payload) {
		end = len(payload)
	}
	f.KeyData = payload[keyFrameFixedLen:end]

	f.HasMIC = f.KeyInformation&KeyInfoKeyMIC != 0
	f.HasAck = f.KeyInformation&KeyInfoKeyAck != 0
	f.IsPairwise = f.KeyInformation&KeyInfoKeyType != 0
	f.Version = uint8(f.KeyInformation & KeyInfoKeyDescriptorVersionMask)
	return f, nil
}

// DetermineMessageNumber maps the frame onto M1..M4 of the 4-way handshake.
// Group key frames and anything unrecognisable yield 0.
func (f *EAPOLKeyFrame) DetermineMessageNumber() int {
	if !f.IsPairwise {
		return 0
	}
	if !f.HasMIC {
		if f.HasAck {
			return 1
		}
		return 0
	}
	if f.HasAck {
		return 3
	}

	// MIC set, Ack clear: M2 carries the station RSN element, M4 carries
	// nothing. The Secure bit is unreliable on some APs and is ignored.
	if f.KeyDataLength > 0 {
		return 2
	}
	return 4
}

// IsMICZero reports whether the MIC is absent or all zeros.
func (f *EAPOLKeyFrame) IsMICZero() bool {
	if !f.HasMIC || len(f.MIC) == 0 {
		return true
	}
	for _, b := range f.MIC {
		if b != 0 {
			return false
		}
	}
	return true
}
