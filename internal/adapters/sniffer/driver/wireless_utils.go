package driver

import (
	"bufio"
	"bytes"
	"fmt"
	"net"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/lcalzada-xor/eapsul/internal/core/ports"
)

// execCommand allows mocking in tests
var execCommand = exec.Command

// Switcher tunes interfaces with iw.
type Switcher struct{}

var _ ports.ChannelSwitcher = Switcher{}

// SetChannel implements ports.ChannelSwitcher.
func (Switcher) SetChannel(iface string, channel int) error {
	return SetInterfaceChannel(iface, channel)
}

// SetInterfaceChannel sets the WiFi channel for a given interface.
func SetInterfaceChannel(iface string, channel int) error {
	if channel <= 0 {
		return fmt.Errorf("invalid channel: %d", channel)
	}
	cmd := execCommand("iw", "dev", iface, "set", "channel", strconv.Itoa(channel))
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to set channel %d on %s: %w (%s)", channel, iface, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// HardwareAddr returns the MAC address of iface.
func HardwareAddr(iface string) (net.HardwareAddr, error) {
	ni, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, fmt.Errorf("interface %s: %w", iface, err)
	}
	if len(ni.HardwareAddr) != 6 {
		return nil, fmt.Errorf("interface %s has no 48-bit hardware address", iface)
	}
	return ni.HardwareAddr, nil
}

// SupportedChannels returns the enabled channels of the phy behind iface.
func SupportedChannels(iface string) ([]int, error) {
	phy, err := phyForInterface(iface)
	if err != nil {
		return nil, err
	}
	out, err := execCommand("iw", "phy", phy, "info").Output()
	if err != nil {
		return nil, fmt.Errorf("iw phy %s info: %w", phy, err)
	}
	return parsePhyChannels(out), nil
}

func phyForInterface(iface string) (string, error) {
	out, err := execCommand("iw", "dev").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("iw dev: %w", err)
	}
	return parsePhyForInterface(out, iface)
}

// parsePhyForInterface finds the "phy#N" block listing iface and returns "phyN".
func parsePhyForInterface(out []byte, iface string) (string, error) {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	currentPhy := ""
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "phy#") {
			currentPhy = line
		} else if line == "Interface "+iface && currentPhy != "" {
			return strings.Replace(currentPhy, "#", "", 1), nil
		}
	}
	return "", fmt.Errorf("interface %s not found in iw dev output", iface)
}

var reChannel = regexp.MustCompile(`\[([0-9]+)\]`)

// parsePhyChannels reads the Frequencies blocks of `iw phy info`, e.g.
// "* 2412 MHz [1] (20.0 dBm)". Disabled channels are skipped.
func parsePhyChannels(out []byte) []int {
	var channels []int
	scanner := bufio.NewScanner(bytes.NewReader(out))
	inFrequencies := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "Frequencies:" {
			inFrequencies = true
			continue
		}
		if !inFrequencies {
			continue
		}
		if !strings.HasPrefix(line, "*") {
			inFrequencies = false
			continue
		}
		if strings.Contains(line, "(disabled)") {
			continue
		}
		if m := reChannel.FindStringSubmatch(line); len(m) > 1 {
			ch, _ := strconv.Atoi(m[1])
			channels = append(channels, ch)
		}
	}
	return channels
}
