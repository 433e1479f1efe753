package domain

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCredential_Identity(t *testing.T) {
	assert.Equal(t, "alice", Credential{UserID: "alice"}.Identity())
	assert.Equal(t, "anon", Credential{UserID: "alice", AnonID: "anon"}.Identity())
	assert.Empty(t, Credential{}.Identity())
}

func TestSession_HasCredential(t *testing.T) {
	s := NewSession("wlan0", "wlan1", "corp", "")
	assert.False(t, s.HasCredential())

	s.Credential = &Credential{}
	assert.False(t, s.HasCredential())

	s.Credential = &Credential{UserID: "alice"}
	assert.True(t, s.HasCredential())
	assert.Equal(t, net.ParseIP(DefaultGateway), s.Gateway)
}

func TestSession_WithNetworkCopies(t *testing.T) {
	s := NewSession("wlan0", "wlan1", "corp", "")
	bssid := net.HardwareAddr{0, 1, 2, 3, 4, 5}

	bound := s.WithNetwork(Network{BSSID: bssid, Channel: 11, RSNInfo: []byte{1, 0}})

	assert.Nil(t, s.BSSID)
	assert.Zero(t, s.Channel)
	assert.Equal(t, s.ID, bound.ID)
	assert.Equal(t, bssid, bound.BSSID)
	assert.Equal(t, 11, bound.Channel)
	assert.Equal(t, []byte{1, 0}, bound.RSNInfo)
}

func TestResponse_Timed(t *testing.T) {
	assert.False(t, Response{Symbol: RespTimeout}.Timed())
	assert.False(t, Response{Symbol: RespData}.Timed())
	assert.True(t, Response{Symbol: RespEAPTTLSStart}.Timed())
	assert.True(t, Response{Symbol: RespTimeout}.IsTimeout())
}
