package handshake

import (
	"encoding/binary"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// keyPayload builds the body that follows the 802.1X header.
// DescType(1) + KeyInfo(2) + KeyLen(2) + RC(8) + Nonce(32) + IV(16) + RSC(8) + ID(8) + MIC(16) + DataLen(2) + Data(N)
func keyPayload(keyInfo uint16, replayCounter uint64, nonce, mic, data []byte) []byte {
	payload := make([]byte, 95+len(data))
	payload[0] = 2 // RSN key descriptor
	binary.BigEndian.PutUint16(payload[1:3], keyInfo)
	binary.BigEndian.PutUint16(payload[3:5], 16)
	binary.BigEndian.PutUint64(payload[5:13], replayCounter)
	copy(payload[13:45], nonce)
	copy(payload[77:93], mic)
	binary.BigEndian.PutUint16(payload[93:95], uint16(len(data)))
	copy(payload[95:], data)
	return payload
}

func createTestEAPOLFrame(t *testing.T, eapolType layers.EAPOLType, payload []byte) gopacket.Packet {
	t.Helper()
	header := []byte{1, byte(eapolType), 0, 0}
	binary.BigEndian.PutUint16(header[2:4], uint16(len(payload)))
	return gopacket.NewPacket(append(header, payload...), layers.LayerTypeEAPOL, gopacket.Default)
}

func TestParseEAPOLKey_ValidM1(t *testing.T) {
	// Pairwise + Ack, no MIC.
	keyInfo := uint16(KeyInfoKeyType | KeyInfoKeyAck | 2)

	nonce := make([]byte, 32)
	nonce[0] = 0xAA // ANonce

	pkt := createTestEAPOLFrame(t, layers.EAPOLTypeKey, keyPayload(keyInfo, 1, nonce, nil, nil))

	frame, err := ParseEAPOLKey(pkt)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), frame.ReplayCounter)
	assert.Equal(t, nonce, frame.Nonce)
	assert.True(t, frame.IsPairwise)
	assert.False(t, frame.HasMIC)
	assert.Equal(t, uint8(2), frame.Version)
	assert.True(t, frame.IsMICZero())
	assert.Equal(t, 1, frame.DetermineMessageNumber())
}

func TestParseEAPOLKey_ValidM2(t *testing.T) {
	keyInfo := uint16(KeyInfoKeyType | KeyInfoKeyMIC | 2)

	mic := make([]byte, 16)
	mic[0] = 0xCC
	data := []byte{0x30, 0x14, 0x01, 0x00} // RSN IE

	pkt := createTestEAPOLFrame(t, layers.EAPOLTypeKey, keyPayload(keyInfo, 1, nil, mic, data))

	frame, err := ParseEAPOLKey(pkt)
	require.NoError(t, err)
	assert.True(t, frame.HasMIC)
	assert.False(t, frame.HasAck)
	assert.False(t, frame.IsMICZero())
	assert.Equal(t, data, frame.KeyData)
	assert.Equal(t, 2, frame.DetermineMessageNumber())
}

func TestParseEAPOLKey_ValidM3(t *testing.T) {
	keyInfo := uint16(KeyInfoKeyType | KeyInfoKeyMIC | KeyInfoKeyAck | KeyInfoInstall | 2)

	pkt := createTestEAPOLFrame(t, layers.EAPOLTypeKey, keyPayload(keyInfo, 2, nil, []byte{1}, nil))
	frame, err := ParseEAPOLKey(pkt)
	require.NoError(t, err)
	assert.Equal(t, 3, frame.DetermineMessageNumber())
}

func TestParseKeyPayload_M4AndGroup(t *testing.T) {
	m4, err := ParseKeyPayload(keyPayload(KeyInfoKeyType|KeyInfoKeyMIC|KeyInfoSecure|2, 2, nil, []byte{9}, nil))
	require.NoError(t, err)
	assert.Equal(t, 4, m4.DetermineMessageNumber())

	group, err := ParseKeyPayload(keyPayload(KeyInfoKeyMIC|KeyInfoKeyAck|KeyInfoSecure|2, 3, nil, []byte{9}, nil))
	require.NoError(t, err)
	assert.False(t, group.IsPairwise)
	assert.Equal(t, 0, group.DetermineMessageNumber())
}

func TestParseKeyPayload_KeyDataClamped(t *testing.T) {
	payload := keyPayload(KeyInfoKeyType|KeyInfoKeyMIC|2, 1, nil, []byte{1}, []byte{1, 2, 3, 4})
	binary.BigEndian.PutUint16(payload[93:95], 200)

	frame, err := ParseKeyPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, frame.KeyData)
}

func TestParseEAPOLKey_NotKey(t *testing.T) {
	pkt := createTestEAPOLFrame(t, layers.EAPOLTypeStart, nil)
	_, err := ParseEAPOLKey(pkt)
	assert.Error(t, err)

	eth := gopacket.NewPacket([]byte{0x01}, layers.LayerTypeEthernet, gopacket.Default)
	_, err = ParseEAPOLKey(eth)
	assert.ErrorIs(t, err, ErrNotEAPOL)
}

func TestParseEAPOLKey_Truncated(t *testing.T) {
	// Header (4) + partial payload (50)
	raw := make([]byte, 54)
	raw[0] = 1
	raw[1] = 3
	pkt := gopacket.NewPacket(raw, layers.LayerTypeEAPOL, gopacket.Default)

	frame, err := ParseEAPOLKey(pkt)
	assert.Error(t, err)
	assert.Nil(t, frame)
	assert.Contains(t, err.Error(), "payload too short")
}
