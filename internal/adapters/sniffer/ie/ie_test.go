package ie

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// enterpriseRSN is an RSN body advertising CCMP with 802.1X.
var enterpriseRSN = []byte{
	0x01, 0x00, // version
	0x00, 0x0f, 0xac, 0x04, // group CCMP
	0x01, 0x00, 0x00, 0x0f, 0xac, 0x04, // pairwise CCMP
	0x01, 0x00, 0x00, 0x0f, 0xac, 0x01, // AKM 802.1X
	0x80, 0x00, // MFP capable
}

func TestAppendAndFind(t *testing.T) {
	var b []byte
	b = Append(b, TagSSID, []byte("corp"))
	b = Append(b, TagDSParameterSet, []byte{6})
	b = Append(b, TagRSN, enterpriseRSN)

	ssid, ok := ParseSSID(b)
	assert.True(t, ok)
	assert.Equal(t, "corp", ssid)

	ch, err := ParseChannel(b)
	require.NoError(t, err)
	assert.Equal(t, 6, ch)

	assert.Equal(t, enterpriseRSN, FindIE(b, TagRSN))
	assert.Nil(t, FindIE(b, TagVendorSpecific))
}

func TestAppend_Truncates(t *testing.T) {
	b := Append(nil, TagVendorSpecific, make([]byte, 300))
	assert.Len(t, b, 2+255)
	assert.Equal(t, byte(255), b[1])
}

func TestParseSSID_Hidden(t *testing.T) {
	_, ok := ParseSSID(Append(nil, TagSSID, []byte{0, 0, 0}))
	assert.False(t, ok)
	_, ok = ParseSSID(Append(nil, TagSSID, nil))
	assert.False(t, ok)
}

func TestIterateIEs_StopsOnTruncation(t *testing.T) {
	data := append(Append(nil, TagSSID, []byte("a")), TagRSN, 40, 0x01)
	var ids []int
	IterateIEs(data, func(id int, _ []byte) { ids = append(ids, id) })
	assert.Equal(t, []int{TagSSID}, ids)

	_, err := ParseChannel(data)
	assert.ErrorIs(t, err, ErrIENotFound)
}

func TestParseRSN_Enterprise(t *testing.T) {
	rsn, err := ParseRSN(enterpriseRSN)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), rsn.Version)
	assert.Equal(t, "CCMP", rsn.GroupCipher)
	assert.Equal(t, []string{"CCMP"}, rsn.PairwiseCiphers)
	assert.Equal(t, []string{"802.1X"}, rsn.AKMSuites)
	assert.True(t, rsn.Capabilities.MFPCapable)
	assert.False(t, rsn.Capabilities.MFPRequired)
	assert.True(t, rsn.Enterprise())
}

func TestParseRSN_PSK(t *testing.T) {
	psk := append([]byte(nil), enterpriseRSN...)
	psk[17] = 0x02
	rsn, err := ParseRSN(psk)
	require.NoError(t, err)
	assert.Equal(t, []string{"PSK"}, rsn.AKMSuites)
	assert.False(t, rsn.Enterprise())
}

func TestParseRSN_TooShort(t *testing.T) {
	_, err := ParseRSN([]byte{0x01})
	assert.ErrorIs(t, err, ErrMalformedIE)
}
