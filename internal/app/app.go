package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/google/gopacket"

	"github.com/lcalzada-xor/eapsul/internal/adapters/querylog"
	"github.com/lcalzada-xor/eapsul/internal/adapters/sniffer/capture"
	"github.com/lcalzada-xor/eapsul/internal/adapters/sniffer/driver"
	"github.com/lcalzada-xor/eapsul/internal/adapters/sniffer/injection"
	"github.com/lcalzada-xor/eapsul/internal/adapters/web"
	"github.com/lcalzada-xor/eapsul/internal/config"
	"github.com/lcalzada-xor/eapsul/internal/core/domain"
	"github.com/lcalzada-xor/eapsul/internal/core/ports"
	"github.com/lcalzada-xor/eapsul/internal/core/services/discovery"
	"github.com/lcalzada-xor/eapsul/internal/core/services/dispatch"
	"github.com/lcalzada-xor/eapsul/internal/core/services/sul"
	"github.com/lcalzada-xor/eapsul/internal/telemetry"
)

// Deps are the hardware seams of the application. Nil fields use the real
// interfaces.
type Deps struct {
	OpenSource   func(iface string) (gopacket.PacketDataSource, io.Closer, error)
	OpenInjector func(iface string, mech injection.Mechanism) (ports.FrameInjector, error)
	Switcher     ports.ChannelSwitcher
	HardwareAddr func(iface string) (net.HardwareAddr, error)
	Channels     func(iface string) ([]int, error)

	// Out receives batch replies. Defaults to stdout.
	Out io.Writer
	// Progress receives the batch progress bar when enabled. Defaults to stderr.
	Progress io.Writer
}

func (d *Deps) defaults() {
	if d.OpenSource == nil {
		d.OpenSource = func(iface string) (gopacket.PacketDataSource, io.Closer, error) {
			h, err := capture.OpenLive(iface)
			if err != nil {
				return nil, nil, err
			}
			return h, closerFunc(h.Close), nil
		}
	}
	if d.OpenInjector == nil {
		d.OpenInjector = injection.Open
	}
	if d.Switcher == nil {
		d.Switcher = driver.Switcher{}
	}
	if d.HardwareAddr == nil {
		d.HardwareAddr = driver.HardwareAddr
	}
	if d.Channels == nil {
		d.Channels = driver.SupportedChannels
	}
	if d.Out == nil {
		d.Out = os.Stdout
	}
	if d.Progress == nil {
		d.Progress = os.Stderr
	}
}

type closerFunc func()

func (f closerFunc) Close() error { f(); return nil }

// Application owns every component of one SUL session.
type Application struct {
	Config  *config.Config
	Session *domain.Session
	Logger  *slog.Logger

	deps     Deps
	source   io.Closer
	buffer   *capture.Buffer
	reader   *capture.RecordReader
	sniffer  *capture.Sniffer
	injector ports.FrameInjector
	queryLog *querylog.Logger
	pcapFile *os.File
	web      *web.Server
}

// New opens the interfaces and builds the capture pipeline. Discovery and
// the learner transport start in Run.
func New(cfg *config.Config, logger *slog.Logger, deps Deps) (*Application, error) {
	if logger == nil {
		logger = slog.Default()
	}
	deps.defaults()
	app := &Application{Config: cfg, Logger: logger, deps: deps}

	if err := app.bootstrap(); err != nil {
		app.Close()
		return nil, fmt.Errorf("application bootstrap failed: %w", err)
	}
	return app, nil
}

func (app *Application) bootstrap() error {
	cfg := app.Config
	telemetry.InitMetrics()

	// 1. Session
	session := domain.NewSession(cfg.InjectInterface, cfg.SniffInterface, cfg.SSID, cfg.PSK)
	session.Credential = cfg.Credential()
	if cfg.Gateway != "" {
		gw := net.ParseIP(cfg.Gateway)
		if gw == nil {
			return fmt.Errorf("invalid gateway address %q", cfg.Gateway)
		}
		session.Gateway = gw
	}
	mac, err := app.deps.HardwareAddr(cfg.InjectInterface)
	if err != nil {
		return err
	}
	session.StationMAC = mac
	app.Session = session
	app.Logger = app.Logger.With("session", session.ID.String())

	// 2. Injection
	mech, err := injection.ParseMechanism(cfg.Injection)
	if err != nil {
		return err
	}
	if app.injector, err = app.deps.OpenInjector(cfg.InjectInterface, mech); err != nil {
		return err
	}
	if cfg.OptimizeRates {
		if err := injection.OptimizeBitrates(cfg.InjectInterface); err != nil {
			app.Logger.Warn("Could not optimize bitrates", "error", err)
		}
	}

	// 3. Capture
	src, closer, err := app.deps.OpenSource(cfg.SniffInterface)
	if err != nil {
		return fmt.Errorf("open capture on %s: %w", cfg.SniffInterface, err)
	}
	app.source = closer
	app.buffer = capture.NewBuffer()
	app.reader = capture.NewRecordReader(app.buffer)

	opts := []capture.Option{
		capture.WithLogger(app.Logger.With("component", "capture")),
		capture.WithFrameHook(func(size int) {
			telemetry.FramesCaptured.WithLabelValues(cfg.SniffInterface).Inc()
			telemetry.CaptureBytes.WithLabelValues(cfg.SniffInterface).Add(float64(size))
		}),
	}
	if cfg.PcapPath != "" {
		if app.pcapFile, err = os.Create(cfg.PcapPath); err != nil {
			return fmt.Errorf("create pcap trace: %w", err)
		}
		opts = append(opts, capture.WithTrace(app.pcapFile))
	}
	app.sniffer = capture.NewSniffer(src, app.buffer, opts...)

	// 4. Query log
	if cfg.LogFile != "" {
		if app.queryLog, err = querylog.Open(cfg.LogFile); err != nil {
			return err
		}
	}
	return nil
}

// Run starts capture, discovers the network and serves the learner until the
// transport ends, ctx is cancelled or a component fails.
func (app *Application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errChan := make(chan error, 2)
	captureDone := make(chan struct{})
	go func() {
		defer close(captureDone)
		if err := app.sniffer.Run(ctx); err != nil {
			errChan <- fmt.Errorf("capture error: %w", err)
		}
	}()
	defer func() {
		cancel()
		app.buffer.CloseWrite()
		<-captureDone
	}()

	network, err := app.discover(ctx)
	if err != nil {
		return app.captureErrorOr(errChan, err)
	}
	app.Session = app.Session.WithNetwork(network)
	if n := app.reader.Drain(); n > 0 {
		app.Logger.Debug("Discarded discovery frames", "count", n)
	}

	executor, err := sul.NewExecutor(app.Session, app.injector, app.reader, nil, sul.Options{
		Timeout:       time.Duration(app.Config.TimeoutSeconds * float64(time.Second)),
		StrictOrder:   app.Config.StrictOrder,
		ResetAssoc:    app.Config.ResetAssoc,
		ResetAttempts: app.Config.ResetAttempts,
		Logger:        app.Logger.With("component", "executor"),
	})
	if err != nil {
		return err
	}

	dopts := []dispatch.Option{
		dispatch.WithFormatter(dispatch.Formatter{ReportElapsed: app.Config.ReportElapsed}),
		dispatch.WithSessionID(app.Session.ID.String()),
		dispatch.WithLogger(app.Logger.With("component", "dispatch")),
	}
	if app.queryLog != nil {
		dopts = append(dopts, dispatch.WithRecorder(app.queryLog))
	}

	if app.Config.MetricsAddr != "" {
		app.web = web.NewServer(app.Config.MetricsAddr, executor, app.Logger.With("component", "web"))
		dopts = append(dopts, dispatch.WithRecorder(app.web.WSManager))
		go func() {
			if err := app.web.Run(ctx); err != nil {
				errChan <- fmt.Errorf("telemetry server error: %w", err)
			}
		}()
	}
	dispatcher := dispatch.New(executor, dopts...)

	done := make(chan error, 1)
	go func() { done <- app.serve(ctx, dispatcher) }()

	select {
	case err := <-done:
		return app.captureErrorOr(errChan, err)
	case err := <-errChan:
		cancel()
		<-done
		return err
	}
}

func (app *Application) serve(ctx context.Context, d *dispatch.Dispatcher) error {
	if app.Config.IsSocket() {
		return d.ListenAndServe(ctx, app.Config.ListenAddr)
	}
	opts := dispatch.BatchOptions{}
	if app.Config.Progress {
		opts.Progress = app.deps.Progress
	}
	return d.RunBatchFile(ctx, app.Config.Mode, app.deps.Out, opts)
}

func (app *Application) discover(ctx context.Context) (domain.Network, error) {
	channels := discovery.Channels24GHz
	if supported, err := app.deps.Channels(app.Config.SniffInterface); err == nil {
		if filtered := intersect(channels, supported); len(filtered) > 0 {
			channels = filtered
		}
	} else {
		app.Logger.Debug("Channel list unavailable, sampling 1-14", "error", err)
	}

	opts := discovery.Options{
		Attempts: app.Config.DiscoveryAttempts,
		Dwell:    time.Duration(app.Config.DiscoveryDwellMS) * time.Millisecond,
		Channels: channels,
		Logger:   app.Logger.With("component", "discovery"),
	}
	if app.Config.DiscoveryProbe {
		opts.Injector = app.injector
		opts.Station = app.Session.StationMAC
	}

	d := discovery.New(app.deps.Switcher, app.reader, opts)
	n, err := d.Discover(ctx, app.Config.SniffInterface, app.Config.SSID, app.Config.InjectInterface)
	if err != nil {
		return domain.Network{}, err
	}
	app.Logger.Info("Target network",
		"ssid", app.Config.SSID,
		"bssid", n.BSSID.String(),
		"channel", n.Channel,
		"security", discovery.Describe(n),
		"station", app.Session.StationMAC.String(),
	)
	return n, nil
}

// captureErrorOr prefers a pending capture failure, which is the root cause
// when the reader reports the source closed.
func (app *Application) captureErrorOr(errChan <-chan error, err error) error {
	if err == nil || errors.Is(err, ports.ErrSourceClosed) {
		select {
		case cerr := <-errChan:
			return cerr
		default:
		}
	}
	return err
}

// Close releases interfaces and files. It is safe after a failed bootstrap.
func (app *Application) Close() {
	if app.injector != nil {
		app.injector.Close()
	}
	if app.source != nil {
		app.source.Close()
	}
	if app.pcapFile != nil {
		app.pcapFile.Close()
	}
	if app.queryLog != nil {
		app.queryLog.Close()
	}
}

func intersect(want, have []int) []int {
	set := make(map[int]bool, len(have))
	for _, c := range have {
		set[c] = true
	}
	var out []int
	for _, c := range want {
		if set[c] {
			out = append(out, c)
		}
	}
	return out
}
