package ie

import (
	"encoding/binary"
	"fmt"
)

// AKM suite selectors (00-0F-AC:n) that mean an 802.1X/EAP network.
const (
	akm8021X       = 1
	akmFT8021X     = 3
	akm8021XSHA256 = 5
)

// RSNInfo is the parsed RSN element (IE 48).
type RSNInfo struct {
	Version         uint16
	GroupCipher     string
	PairwiseCiphers []string
	AKMSuites       []string
	Capabilities    RSNCapabilities

	akmTypes []uint8
}

// RSNCapabilities is the capabilities field of the RSN element.
type RSNCapabilities struct {
	PreAuth          bool
	NoPairwise       bool
	PTKSAReplayCount uint8
	GTKSAReplayCount uint8
	MFPRequired      bool
	MFPCapable       bool
	PeerKeyEnabled   bool
}

// ParseRSN parses the body of an RSN element. Optional trailing fields may be absent.
func ParseRSN(data []byte) (*RSNInfo, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: RSN IE too short", ErrMalformedIE)
	}

	rsn := &RSNInfo{Version: binary.LittleEndian.Uint16(data[0:2])}
	rest := data[2:]

	if len(rest) >= 4 {
		rsn.GroupCipher = cipherName(rest[3])
		rest = rest[4:]
	}

	suites := func(each func(t uint8)) {
		if len(rest) < 2 {
			return
		}
		count := int(binary.LittleEndian.Uint16(rest[0:2]))
		rest = rest[2:]
		for i := 0; i < count && len(rest) >= 4; i++ {
			each(rest[3])
			rest = rest[4:]
		}
	}
	suites(func(t uint8) { rsn.PairwiseCiphers = append(rsn.PairwiseCiphers, cipherName(t)) })
	suites(func(t uint8) {
		rsn.akmTypes = append(rsn.akmTypes, t)
		rsn.AKMSuites = append(rsn.AKMSuites, akmName(t))
	})

	if len(rest) >= 2 {
		rsn.Capabilities = parseRSNCapabilities(binary.LittleEndian.Uint16(rest[0:2]))
	}
	return rsn, nil
}

// Enterprise reports whether the network offers an 802.1X (EAP) AKM.
func (r *RSNInfo) Enterprise() bool {
	for _, t := range r.akmTypes {
		switch t {
		case akm8021X, akmFT8021X, akm8021XSHA256:
			return true
		}
	}
	return false
}

func cipherName(t uint8) string {
	switch t {
	case 1:
		return "WEP-40"
	case 2:
		return "TKIP"
	case 4:
		return "CCMP"
	case 5:
		return "WEP-104"
	case 8:
		return "GCMP-128"
	case 9:
		return "GCMP-256"
	case 10:
		return "CCMP-256"
	}
	return fmt.Sprintf("UNKNOWN(%d)", t)
}

func akmName(t uint8) string {
	switch t {
	case akm8021X:
		return "802.1X"
	case 2:
		return "PSK"
	case akmFT8021X:
		return "FT-802.1X"
	case 4:
		return "FT-PSK"
	case akm8021XSHA256:
		return "802.1X-SHA256"
	case 6:
		return "PSK-SHA256"
	case 8:
		return "SAE"
	case 9:
		return "FT-SAE"
	case 18:
		return "OWE"
	}
	return fmt.Sprintf("UNKNOWN(%d)", t)
}

func parseRSNCapabilities(caps uint16) RSNCapabilities {
	return RSNCapabilities{
		PreAuth:          caps&0x0001 != 0,
		NoPairwise:       caps&0x0002 != 0,
		PTKSAReplayCount: uint8((caps >> 2) & 0x03),
		GTKSAReplayCount: uint8((caps >> 4) & 0x03),
		MFPRequired:      caps&0x0040 != 0,
		MFPCapable:       caps&0x0080 != 0,
		PeerKeyEnabled:   caps&0x0200 != 0,
	}
}
