package domain

import (
	"net"

	"github.com/google/uuid"
)

// DefaultGateway is used when no gateway address is configured.
const DefaultGateway = "192.168.0.1"

// Credential is the EAP login identity used by the supplicant side.
type Credential struct {
	UserID string
	AnonID string
}

// Identity returns the identity sent in an EAP Identity response.
// The anonymous identity wins when present.
func (c Credential) Identity() string {
	if c.AnonID != "" {
		return c.AnonID
	}
	return c.UserID
}

// Session holds the network parameters discovered at startup.
// It is immutable for the lifetime of the process.
type Session struct {
	ID              uuid.UUID
	InjectInterface string
	SniffInterface  string
	SSID            string
	PSK             string
	BSSID           net.HardwareAddr
	StationMAC      net.HardwareAddr
	Channel         int
	RSNInfo         []byte // raw body of IE 48, empty for open networks
	Gateway         net.IP
	Credential      *Credential
}

// NewSession builds a session with a fresh ID and the default gateway.
func NewSession(injectIface, sniffIface, ssid, psk string) *Session {
	return &Session{
		ID:              uuid.New(),
		InjectInterface: injectIface,
		SniffInterface:  sniffIface,
		SSID:            ssid,
		PSK:             psk,
		Gateway:         net.ParseIP(DefaultGateway),
	}
}

// HasCredential reports whether EAP queries can be answered.
func (s *Session) HasCredential() bool {
	return s.Credential != nil && s.Credential.Identity() != ""
}

// Network is what discovery learns about the target access point.
type Network struct {
	BSSID   net.HardwareAddr
	Channel int
	RSNInfo []byte
}

// WithNetwork returns a copy of s bound to n.
func (s *Session) WithNetwork(n Network) *Session {
	c := *s
	c.BSSID = n.BSSID
	c.Channel = n.Channel
	c.RSNInfo = n.RSNInfo
	return &c
}
