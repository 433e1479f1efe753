package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/gopacket/layers"
)

// EAP method types per RFC 3748. gopacket's OTP and TokenCard values are
// off by one, so they are defined here.
const (
	EAPTypeLegacyNak layers.EAPType = layers.EAPTypeNACK
	EAPTypeMD5       layers.EAPType = 4
	EAPTypeOTP       layers.EAPType = 5
	EAPTypeGTC       layers.EAPType = 6
	EAPTypeTLS       layers.EAPType = 13
	EAPTypeTTLS      layers.EAPType = 21
	EAPTypePEAP      layers.EAPType = 25
	EAPTypeMSCHAPv2  layers.EAPType = 26
)

const eapHeaderLen = 4

var (
	ErrEAPTooShort = errors.New("eap packet too short")
	ErrEAPLength   = errors.New("eap length field exceeds data")
	ErrEAPTooLarge = errors.New("eap packet exceeds 65535 bytes")
)

// EAP is one EAP packet (RFC 3748). Request and Response packets carry a
// type octet; Success and Failure are header only.
type EAP struct {
	Code layers.EAPCode
	ID   uint8
	Type layers.EAPType
	Data []byte
}

func (p *EAP) typed() bool {
	return p.Code == layers.EAPCodeRequest || p.Code == layers.EAPCodeResponse
}

// Len is the value the Length field must hold: header, type octet and data.
func (p *EAP) Len() int {
	if !p.typed() {
		return eapHeaderLen
	}
	return eapHeaderLen + 1 + len(p.Data)
}

// Marshal serializes the packet. The Length field is written from the
// serialized size, never taken from the caller.
func (p *EAP) Marshal() ([]byte, error) {
	n := p.Len()
	if n > 0xffff {
		return nil, ErrEAPTooLarge
	}
	b := make([]byte, n)
	b[0] = byte(p.Code)
	b[1] = p.ID
	binary.BigEndian.PutUint16(b[2:4], uint16(n))
	if p.typed() {
		b[4] = byte(p.Type)
		copy(b[5:], p.Data)
	}
	return b, nil
}

// ParseEAP decodes an EAP packet. Trailing bytes past the Length field
// (802.1X padding) are ignored.
func ParseEAP(data []byte) (*EAP, error) {
	if len(data) < eapHeaderLen {
		return nil, ErrEAPTooShort
	}
	length := int(binary.BigEndian.Uint16(data[2:4]))
	if length < eapHeaderLen {
		return nil, fmt.Errorf("%w: length field %d", ErrEAPTooShort, length)
	}
	if length > len(data) {
		return nil, fmt.Errorf("%w: %d > %d", ErrEAPLength, length, len(data))
	}
	p := &EAP{
		Code: layers.EAPCode(data[0]),
		ID:   data[1],
	}
	if p.typed() && length > eapHeaderLen {
		p.Type = layers.EAPType(data[4])
		p.Data = data[5:length]
	}
	return p, nil
}

// EAPTypeName is the short upper-case name used in response symbols.
func EAPTypeName(t layers.EAPType) string {
	switch t {
	case layers.EAPTypeIdentity:
		return "IDENTITY"
	case layers.EAPTypeNotification:
		return "NOTIFICATION"
	case EAPTypeLegacyNak:
		return "NAK"
	case EAPTypeMD5:
		return "MD5"
	case EAPTypeOTP:
		return "OTP"
	case EAPTypeGTC:
		return "GTC"
	case EAPTypeTLS:
		return "TLS"
	case EAPTypeTTLS:
		return "TTLS"
	case EAPTypePEAP:
		return "PEAP"
	case EAPTypeMSCHAPv2:
		return "MSCHAPV2"
	}
	return fmt.Sprintf("%d", uint8(t))
}
