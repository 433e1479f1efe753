package codec

import (
	"encoding/binary"
	"errors"
)

// TTLSFlags is the flags octet that follows the EAP type in EAP-TTLS (RFC 5281).
//
//	0   1   2   3   4   5   6   7
//	+---+---+---+---+---+---+---+---+
//	| L | M | S | R | R |     V     |
//	+---+---+---+---+---+---+---+---+
type TTLSFlags uint8

const (
	TTLSFlagLengthIncluded TTLSFlags = 0x80
	TTLSFlagMoreFragments  TTLSFlags = 0x40
	TTLSFlagStart          TTLSFlags = 0x20
	ttlsVersionMask        TTLSFlags = 0x07
)

func (f TTLSFlags) LengthIncluded() bool { return f&TTLSFlagLengthIncluded != 0 }
func (f TTLSFlags) MoreFragments() bool  { return f&TTLSFlagMoreFragments != 0 }
func (f TTLSFlags) Start() bool          { return f&TTLSFlagStart != 0 }
func (f TTLSFlags) Version() uint8       { return uint8(f & ttlsVersionMask) }

var ErrTTLSTooShort = errors.New("eap-ttls payload too short")

// TTLSMessage is the type data of an EAP-TTLS packet.
type TTLSMessage struct {
	Flags         TTLSFlags
	MessageLength uint32 // only on the wire when L is set
	Data          []byte
}

// Marshal encodes the flags octet, the optional message length and the data.
func (m *TTLSMessage) Marshal() []byte {
	n := 1 + len(m.Data)
	if m.Flags.LengthIncluded() {
		n += 4
	}
	b := make([]byte, 0, n)
	b = append(b, byte(m.Flags))
	if m.Flags.LengthIncluded() {
		b = binary.BigEndian.AppendUint32(b, m.MessageLength)
	}
	return append(b, m.Data...)
}

// ParseTTLS decodes EAP-TTLS type data.
func ParseTTLS(data []byte) (*TTLSMessage, error) {
	if len(data) < 1 {
		return nil, ErrTTLSTooShort
	}
	m := &TTLSMessage{Flags: TTLSFlags(data[0]), Data: data[1:]}
	if m.Flags.LengthIncluded() {
		if len(m.Data) < 4 {
			return nil, ErrTTLSTooShort
		}
		m.MessageLength = binary.BigEndian.Uint32(m.Data[:4])
		m.Data = m.Data[4:]
	}
	return m, nil
}
