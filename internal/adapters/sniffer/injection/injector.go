package injection

import (
	"fmt"
	"log"
	"os/exec"
	"strings"
)

// execCommand allows mocking in tests
var execCommand = exec.Command

// Mechanism selects how frames reach the driver.
type Mechanism string

const (
	MechanismAuto Mechanism = "auto"
	MechanismRaw  Mechanism = "raw"
	MechanismPcap Mechanism = "pcap"
)

// ParseMechanism accepts the names used on the command line; empty means auto.
func ParseMechanism(s string) (Mechanism, error) {
	switch m := Mechanism(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return MechanismAuto, nil
	case MechanismAuto, MechanismRaw, MechanismPcap:
		return m, nil
	}
	return "", fmt.Errorf("unknown injection mechanism %q", s)
}

var (
	newRaw  = NewRawInjector
	newPcap = NewPcapInjector
)

// Open returns an injector for iface. Auto prefers a raw socket and falls
// back to pcap.
func Open(iface string, mech Mechanism) (PacketInjector, error) {
	switch mech {
	case MechanismRaw:
		return newRaw(iface)
	case MechanismPcap:
		return newPcap(iface)
	case MechanismAuto, "":
	default:
		return nil, fmt.Errorf("unknown injection mechanism %q", mech)
	}

	inj, err := newRaw(iface)
	if err == nil {
		log.Printf("Using Raw Socket Injection on %s", iface)
		return inj, nil
	}
	log.Printf("Raw injection unavailable (%v), falling back to PCAP", err)
	inj, err = newPcap(iface)
	if err != nil {
		return nil, fmt.Errorf("injection init failed: %w", err)
	}
	return inj, nil
}

// OptimizeBitrates forces legacy bitrates on iface so injected frames go out
// at the most robust rates.
func OptimizeBitrates(iface string) error {
	cmd := execCommand("iw", "dev", iface, "set", "bitrates", "legacy-2.4", "1", "2", "5.5", "11", "legacy-5", "6", "9", "12")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("set bitrates on %s: %w (%s)", iface, err, strings.TrimSpace(string(out)))
	}
	log.Printf("Interface %s optimized for robust injection (Legacy 2.4/5GHz)", iface)
	return nil
}
