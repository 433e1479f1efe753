package ie

import "errors"

// Element IDs used by discovery and association.
const (
	TagSSID           = 0
	TagSupportedRates = 1
	TagDSParameterSet = 3
	TagRSN            = 48
	TagExtendedRates  = 50
	TagVendorSpecific = 221
)

var (
	ErrMalformedIE = errors.New("malformed information element")
	ErrIENotFound  = errors.New("information element not found")
)

// IterateIEs calls fn for each well-formed element in data and stops at the
// first element whose length runs past the end.
func IterateIEs(data []byte, fn func(id int, val []byte)) {
	for offset := 0; offset+2 <= len(data); {
		id := int(data[offset])
		length := int(data[offset+1])
		offset += 2
		if offset+length > len(data) {
			return
		}
		fn(id, data[offset:offset+length])
		offset += length
	}
}

// FindIE returns the body of the first element with targetID, or nil.
func FindIE(data []byte, targetID int) []byte {
	var result []byte
	found := false
	IterateIEs(data, func(id int, val []byte) {
		if !found && id == targetID {
			result, found = val, true
		}
	})
	if found && result == nil {
		return []byte{}
	}
	return result
}

// Append encodes one element onto b. Bodies longer than 255 bytes are truncated.
func Append(b []byte, id int, val []byte) []byte {
	if len(val) > 0xff {
		val = val[:0xff]
	}
	b = append(b, byte(id), byte(len(val)))
	return append(b, val...)
}

// ParseSSID returns the SSID element as a string. ok is false when the element
// is absent or the SSID is hidden (empty or all zero bytes).
func ParseSSID(data []byte) (ssid string, ok bool) {
	val := FindIE(data, TagSSID)
	if len(val) == 0 {
		return "", false
	}
	for _, b := range val {
		if b != 0 {
			return string(val), true
		}
	}
	return "", false
}

// ParseChannel reads the current channel from the DS Parameter Set element.
func ParseChannel(data []byte) (int, error) {
	val := FindIE(data, TagDSParameterSet)
	if len(val) < 1 {
		return 0, ErrIENotFound
	}
	return int(val[0]), nil
}
