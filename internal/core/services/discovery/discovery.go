// Package discovery locates the target access point by hopping channels and
// listening for its beacons or probe responses.
package discovery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"time"

	"github.com/lcalzada-xor/eapsul/internal/adapters/sniffer/codec"
	"github.com/lcalzada-xor/eapsul/internal/adapters/sniffer/ie"
	"github.com/lcalzada-xor/eapsul/internal/core/domain"
	"github.com/lcalzada-xor/eapsul/internal/core/ports"
	"github.com/lcalzada-xor/eapsul/internal/telemetry"
)

// ErrNetworkNotFound is returned when no advertisement for the SSID was seen
// within the attempt budget.
var ErrNetworkNotFound = errors.New("target network not found")

const (
	DefaultAttempts = 100
	DefaultDwell    = 100 * time.Millisecond
)

// Channels24GHz are the channels sampled when none are configured.
var Channels24GHz = []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14}

type Options struct {
	Attempts int
	Dwell    time.Duration
	Channels []int

	// Injector, when set, sends a probe request for the SSID on every dwell.
	Injector ports.FrameInjector
	Station  net.HardwareAddr

	Logger *slog.Logger
	Rand   *rand.Rand
}

// Discoverer samples random channels until the target is heard.
type Discoverer struct {
	switcher ports.ChannelSwitcher
	source   ports.FrameSource
	opts     Options
	seq      *codec.SequenceCounter
	now      func() time.Time
}

func New(switcher ports.ChannelSwitcher, source ports.FrameSource, opts Options) *Discoverer {
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.Dwell <= 0 {
		opts.Dwell = DefaultDwell
	}
	if len(opts.Channels) == 0 {
		opts.Channels = Channels24GHz
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	return &Discoverer{
		switcher: switcher,
		source:   source,
		opts:     opts,
		seq:      codec.NewSequenceCounter(),
		now:      time.Now,
	}
}

// Discover hops the sniff interface until an advertisement for ssid arrives,
// then tunes every interface in tune to the advertised channel.
func (d *Discoverer) Discover(ctx context.Context, sniffIface, ssid string, tune ...string) (domain.Network, error) {
	for attempt := 1; attempt <= d.opts.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return domain.Network{}, err
		}
		telemetry.DiscoveryAttempts.Inc()

		channel := d.opts.Channels[d.opts.Rand.IntN(len(d.opts.Channels))]
		if err := d.switcher.SetChannel(sniffIface, channel); err != nil {
			return domain.Network{}, err
		}
		d.probe(ssid)

		n, ok, err := d.listen(ctx, ssid, channel)
		if err != nil {
			return domain.Network{}, err
		}
		if !ok {
			continue
		}

		d.opts.Logger.Info("Detected beacon", "ssid", ssid, "bssid", n.BSSID.String(), "channel", n.Channel, "attempt", attempt)
		for _, iface := range append([]string{sniffIface}, tune...) {
			if err := d.switcher.SetChannel(iface, n.Channel); err != nil {
				return domain.Network{}, err
			}
		}
		return n, nil
	}
	return domain.Network{}, fmt.Errorf("%w: %q after %d attempts", ErrNetworkNotFound, ssid, d.opts.Attempts)
}

func (d *Discoverer) probe(ssid string) {
	if d.opts.Injector == nil || len(d.opts.Station) != 6 {
		return
	}
	pkt, err := codec.ProbeRequest(d.opts.Station, d.seq.Next(), ssid)
	if err == nil {
		err = d.opts.Injector.Inject(pkt)
	}
	if err != nil {
		d.opts.Logger.Debug("Probe request failed", "error", err)
	}
}

// listen reads frames for one dwell and reports the first matching
// advertisement.
func (d *Discoverer) listen(ctx context.Context, ssid string, hopped int) (domain.Network, bool, error) {
	deadline := d.now().Add(d.opts.Dwell)
	for ctx.Err() == nil {
		cf, err := d.source.Next(deadline)
		if errors.Is(err, ports.ErrDeadline) {
			return domain.Network{}, false, nil
		}
		if err != nil {
			return domain.Network{}, false, fmt.Errorf("discovery capture: %w", err)
		}
		f, err := codec.Decode(cf)
		if err != nil || !f.Advertisement() {
			continue
		}
		if n, ok := match(f, ssid, hopped); ok {
			return n, true, nil
		}
	}
	return domain.Network{}, false, ctx.Err()
}

// match checks an advertisement against ssid. The channel comes from the DS
// Parameter Set, falling back to the channel the radio was tuned to.
func match(f *codec.Frame, ssid string, hopped int) (domain.Network, bool) {
	got, ok := ie.ParseSSID(f.IEs)
	if !ok || got != ssid {
		return domain.Network{}, false
	}
	channel, err := ie.ParseChannel(f.IEs)
	if err != nil || channel <= 0 {
		channel = hopped
	}
	n := domain.Network{
		BSSID:   bytes.Clone(f.BSSID),
		Channel: channel,
	}
	if rsn := ie.FindIE(f.IEs, ie.TagRSN); rsn != nil {
		n.RSNInfo = bytes.Clone(rsn)
	}
	return n, true
}

// Describe summarizes the security of n for startup logging.
func Describe(n domain.Network) string {
	if len(n.RSNInfo) == 0 {
		return "open"
	}
	info, err := ie.ParseRSN(n.RSNInfo)
	if err != nil {
		return "rsn (unparsed)"
	}
	kind := "personal"
	if info.Enterprise() {
		kind = "enterprise"
	}
	return fmt.Sprintf("rsn %s group=%s pairwise=%v akm=%v", kind, info.GroupCipher, info.PairwiseCiphers, info.AKMSuites)
}
