package eap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/gopacket/layers"

	"github.com/lcalzada-xor/eapsul/internal/adapters/sniffer/codec"
)

// ErrUnsupportedMethod is returned for method names outside the supported set.
var ErrUnsupportedMethod = errors.New("unsupported EAP method")

// Method is an EAP method this supplicant can negotiate.
type Method uint8

const (
	MethodTTLS Method = Method(codec.EAPTypeTTLS)
)

var methodsByName = map[string]Method{
	"TTLS": MethodTTLS,
}

// ParseMethod maps a method name (case-insensitive) to its Method.
func ParseMethod(name string) (Method, error) {
	if m, ok := methodsByName[strings.ToUpper(strings.TrimSpace(name))]; ok {
		return m, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedMethod, name)
}

// EAPType is the type code sent in a Nak's desired-type field.
func (m Method) EAPType() layers.EAPType {
	return layers.EAPType(m)
}

func (m Method) String() string {
	return codec.EAPTypeName(m.EAPType())
}
