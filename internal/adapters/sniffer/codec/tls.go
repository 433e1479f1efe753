package codec

import (
	"encoding/binary"
	"fmt"
	"io"
)

// TLS protocol constants needed to frame a ClientHello and recognise the
// first server flight. Nothing else of TLS is implemented.
const (
	TLSVersion10 uint16 = 0x0301
	TLSVersion12 uint16 = 0x0303

	TLSContentAlert     uint8 = 21
	TLSContentHandshake uint8 = 22

	TLSHandshakeClientHello uint8 = 1
	TLSHandshakeServerHello uint8 = 2

	tlsRecordHeaderLen = 5
)

// ClientHello is the subset of the TLS ClientHello message this adapter sends.
type ClientHello struct {
	Version            uint16
	Random             [32]byte
	SessionID          []byte
	CipherSuites       []uint16
	CompressionMethods []byte
}

// PermissiveCipherSuites lists every single-byte suite code, 0x0000 through
// 0x00FE, to draw as much of the server's surface as possible.
func PermissiveCipherSuites() []uint16 {
	suites := make([]uint16, 0, 0xff)
	for code := 0; code < 0xff; code++ {
		suites = append(suites, uint16(code))
	}
	return suites
}

// NewClientHello returns a TLS 1.2 hello offering PermissiveCipherSuites and
// null compression, with the client random read from rand.
func NewClientHello(rand io.Reader) (*ClientHello, error) {
	h := &ClientHello{
		Version:            TLSVersion12,
		CipherSuites:       PermissiveCipherSuites(),
		CompressionMethods: []byte{0},
	}
	if _, err := io.ReadFull(rand, h.Random[:]); err != nil {
		return nil, fmt.Errorf("client random: %w", err)
	}
	return h, nil
}

// MarshalHandshake encodes the hello as a handshake message (type + 24-bit length + body).
func (h *ClientHello) MarshalHandshake() ([]byte, error) {
	if len(h.SessionID) > 32 {
		return nil, fmt.Errorf("session id too long: %d", len(h.SessionID))
	}
	if len(h.CompressionMethods) == 0 || len(h.CompressionMethods) > 0xff {
		return nil, fmt.Errorf("invalid compression method count: %d", len(h.CompressionMethods))
	}

	body := make([]byte, 0, 2+32+1+len(h.SessionID)+2+2*len(h.CipherSuites)+1+len(h.CompressionMethods))
	body = binary.BigEndian.AppendUint16(body, h.Version)
	body = append(body, h.Random[:]...)
	body = append(body, byte(len(h.SessionID)))
	body = append(body, h.SessionID...)
	body = binary.BigEndian.AppendUint16(body, uint16(2*len(h.CipherSuites)))
	for _, s := range h.CipherSuites {
		body = binary.BigEndian.AppendUint16(body, s)
	}
	body = append(body, byte(len(h.CompressionMethods)))
	body = append(body, h.CompressionMethods...)

	msg := make([]byte, 4, 4+len(body))
	msg[0] = TLSHandshakeClientHello
	msg[1] = byte(len(body) >> 16)
	msg[2] = byte(len(body) >> 8)
	msg[3] = byte(len(body))
	return append(msg, body...), nil
}

// TLSRecord wraps a fragment in a TLS record header.
func TLSRecord(contentType uint8, version uint16, fragment []byte) ([]byte, error) {
	if len(fragment) > 1<<14 {
		return nil, fmt.Errorf("tls fragment too large: %d", len(fragment))
	}
	rec := make([]byte, tlsRecordHeaderLen, tlsRecordHeaderLen+len(fragment))
	rec[0] = contentType
	binary.BigEndian.PutUint16(rec[1:3], version)
	binary.BigEndian.PutUint16(rec[3:5], uint16(len(fragment)))
	return append(rec, fragment...), nil
}

// PeekTLS returns the content type of the first record in data and, for
// handshake records, the first handshake message type.
func PeekTLS(data []byte) (contentType uint8, handshakeType uint8, ok bool) {
	if len(data) < tlsRecordHeaderLen {
		return 0, 0, false
	}
	contentType = data[0]
	if data[1] != 0x03 {
		return 0, 0, false
	}
	if contentType == TLSContentHandshake && len(data) > tlsRecordHeaderLen {
		handshakeType = data[tlsRecordHeaderLen]
	}
	return contentType, handshakeType, true
}
