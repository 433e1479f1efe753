package discovery

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/eapsul/internal/adapters/sniffer/ie"
	"github.com/lcalzada-xor/eapsul/internal/adapters/sniffer/injection"
	"github.com/lcalzada-xor/eapsul/internal/core/domain"
	"github.com/lcalzada-xor/eapsul/internal/core/ports"
)

var (
	apMAC      = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	otherMAC   = net.HardwareAddr{0x00, 0xaa, 0xbb, 0xcc, 0xdd, 0xee}
	stationMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	rsnEAP     = []byte{
		0x01, 0x00,
		0x00, 0x0f, 0xac, 0x04,
		0x01, 0x00, 0x00, 0x0f, 0xac, 0x04,
		0x01, 0x00, 0x00, 0x0f, 0xac, 0x01,
		0x00, 0x00,
	}
)

type call struct {
	iface   string
	channel int
}

type fakeSwitcher struct {
	calls []call
	err   error
}

func (s *fakeSwitcher) SetChannel(iface string, channel int) error {
	s.calls = append(s.calls, call{iface, channel})
	return s.err
}

// fakeSource hands out queued frames and then times out, or reports closed.
type fakeSource struct {
	mu     sync.Mutex
	frames []domain.CapturedFrame
	closed bool
}

func (s *fakeSource) Next(deadline time.Time) (domain.CapturedFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) > 0 {
		f := s.frames[0]
		s.frames = s.frames[1:]
		return f, nil
	}
	if s.closed {
		return domain.CapturedFrame{}, ports.ErrSourceClosed
	}
	return domain.CapturedFrame{}, ports.ErrDeadline
}

func advertisement(t *testing.T, typ layers.Dot11Type, bssid net.HardwareAddr, ssid string, channel int, rsn []byte) domain.CapturedFrame {
	t.Helper()
	body := make([]byte, 12)
	body = ie.Append(body, ie.TagSSID, []byte(ssid))
	if channel > 0 {
		body = ie.Append(body, ie.TagDSParameterSet, []byte{byte(channel)})
	}
	if rsn != nil {
		body = ie.Append(body, ie.TagRSN, rsn)
	}
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true},
		&layers.RadioTap{Present: layers.RadioTapPresentRate, Rate: 2},
		&layers.Dot11{
			Type:     typ,
			Address1: net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
			Address2: bssid,
			Address3: bssid,
		},
		gopacket.Payload(body),
	))
	return domain.CapturedFrame{Data: buf.Bytes(), Timestamp: time.Now()}
}

func newTestDiscoverer(sw ports.ChannelSwitcher, src ports.FrameSource, opts Options) *Discoverer {
	opts.Rand = rand.New(rand.NewPCG(1, 2))
	if opts.Dwell == 0 {
		opts.Dwell = 5 * time.Millisecond
	}
	return New(sw, src, opts)
}

func TestDiscover_FindsTarget(t *testing.T) {
	sw := &fakeSwitcher{}
	src := &fakeSource{frames: []domain.CapturedFrame{
		advertisement(t, layers.Dot11TypeMgmtBeacon, otherMAC, "guest", 6, nil),
		{Data: []byte{0x01, 0x02}},
		advertisement(t, layers.Dot11TypeMgmtProbeResp, apMAC, "corp", 11, rsnEAP),
	}}

	n, err := newTestDiscoverer(sw, src, Options{}).Discover(context.Background(), "mon1", "corp", "mon0")
	require.NoError(t, err)
	assert.Equal(t, apMAC, n.BSSID)
	assert.Equal(t, 11, n.Channel)
	assert.Equal(t, rsnEAP, n.RSNInfo)
	assert.Contains(t, Describe(n), "enterprise")

	require.Len(t, sw.calls, 3)
	assert.Equal(t, "mon1", sw.calls[0].iface)
	assert.Equal(t, []call{{"mon1", 11}, {"mon0", 11}}, sw.calls[1:])
}

func TestDiscover_ChannelFallsBackToHop(t *testing.T) {
	sw := &fakeSwitcher{}
	src := &fakeSource{frames: []domain.CapturedFrame{
		advertisement(t, layers.Dot11TypeMgmtBeacon, apMAC, "corp", 0, nil),
	}}

	n, err := newTestDiscoverer(sw, src, Options{Channels: []int{4}}).Discover(context.Background(), "mon1", "corp")
	require.NoError(t, err)
	assert.Equal(t, 4, n.Channel)
	assert.Empty(t, n.RSNInfo)
	assert.Equal(t, "open", Describe(n))
}

func TestDiscover_NotFound(t *testing.T) {
	sw := &fakeSwitcher{}
	src := &fakeSource{frames: []domain.CapturedFrame{
		advertisement(t, layers.Dot11TypeMgmtBeacon, otherMAC, "guest", 6, nil),
	}}

	_, err := newTestDiscoverer(sw, src, Options{Attempts: 3}).Discover(context.Background(), "mon1", "corp")
	assert.ErrorIs(t, err, ErrNetworkNotFound)
	assert.Len(t, sw.calls, 3)
	for _, c := range sw.calls {
		assert.GreaterOrEqual(t, c.channel, 1)
		assert.LessOrEqual(t, c.channel, 14)
	}
}

func TestDiscover_SourceClosed(t *testing.T) {
	_, err := newTestDiscoverer(&fakeSwitcher{}, &fakeSource{closed: true}, Options{}).Discover(context.Background(), "mon1", "corp")
	assert.ErrorIs(t, err, ports.ErrSourceClosed)
}

func TestDiscover_SwitchError(t *testing.T) {
	boom := errors.New("iw failed")
	_, err := newTestDiscoverer(&fakeSwitcher{err: boom}, &fakeSource{}, Options{}).Discover(context.Background(), "mon1", "corp")
	assert.ErrorIs(t, err, boom)
}

func TestDiscover_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestDiscoverer(&fakeSwitcher{}, &fakeSource{}, Options{}).Discover(ctx, "mon1", "corp")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDiscover_SendsProbes(t *testing.T) {
	inj := injection.NewMockInjector()
	opts := Options{Attempts: 2, Injector: inj, Station: stationMAC}

	_, err := newTestDiscoverer(&fakeSwitcher{}, &fakeSource{}, opts).Discover(context.Background(), "mon1", "corp")
	require.ErrorIs(t, err, ErrNetworkNotFound)

	pkts := inj.GetPackets()
	require.Len(t, pkts, 2)
	pkt := gopacket.NewPacket(pkts[0], layers.LayerTypeRadioTap, gopacket.Default)
	dot11, ok := pkt.Layer(layers.LayerTypeDot11).(*layers.Dot11)
	require.True(t, ok)
	assert.Equal(t, layers.Dot11TypeMgmtProbeReq, dot11.Type)
	assert.Equal(t, stationMAC, dot11.Address2)
}
