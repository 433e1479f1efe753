package sul

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/gopacket/layers"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/lcalzada-xor/eapsul/internal/adapters/sniffer/codec"
	"github.com/lcalzada-xor/eapsul/internal/core/domain"
	"github.com/lcalzada-xor/eapsul/internal/core/ports"
	"github.com/lcalzada-xor/eapsul/internal/core/services/eap"
	"github.com/lcalzada-xor/eapsul/internal/telemetry"
)

const (
	DefaultTimeout       = 500 * time.Millisecond
	DefaultResetAttempts = 5

	// maxTimeoutSeconds keeps the conversion to time.Duration from overflowing.
	maxTimeoutSeconds = float64(math.MaxInt64 / int64(time.Second))
)

// Options tune an Executor.
type Options struct {
	Timeout       time.Duration
	StrictOrder   bool
	ResetAssoc    bool // authenticate and associate on every reset
	ResetAttempts int
	Logger        *slog.Logger
}

// Executor turns query symbols into injected frames and abstracts what the
// access point answers. It is driven by a single goroutine; only Status may
// be called concurrently.
type Executor struct {
	session  *domain.Session
	link     codec.Link
	seq      *codec.SequenceCounter
	machine  *eap.Machine
	injector ports.FrameInjector
	source   ports.FrameSource
	opts     Options
	logger   *slog.Logger
	now      func() time.Time

	timeout     time.Duration
	lastReceive time.Time
	lastSeqCtl  uint16
	haveSeqCtl  bool
	queries     uint64
	lastQuery   string
	lastResp    string

	status atomic.Pointer[domain.SessionStatus]
}

// NewExecutor wires an executor for session. The machine, when nil, is
// built from the session's link and credential.
func NewExecutor(session *domain.Session, injector ports.FrameInjector, source ports.FrameSource, machine *eap.Machine, opts Options) (*Executor, error) {
	link := codec.Link{Station: session.StationMAC, BSSID: session.BSSID}
	if err := link.Validate(); err != nil {
		return nil, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.ResetAttempts <= 0 {
		opts.ResetAttempts = DefaultResetAttempts
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	seq := codec.NewSequenceCounter()
	if machine == nil {
		machine = eap.NewMachine(link, session.Credential,
			eap.WithSequence(seq),
			eap.WithStrictOrder(opts.StrictOrder),
		)
	}

	e := &Executor{
		session:  session,
		link:     link,
		seq:      seq,
		machine:  machine,
		injector: injector,
		source:   source,
		opts:     opts,
		logger:   opts.Logger.With("session", session.ID.String()),
		now:      time.Now,
		timeout:  opts.Timeout,
	}
	e.lastReceive = e.now()
	telemetry.ResponseTimeout.Set(e.timeout.Seconds())
	e.publish()
	return e, nil
}

// Reset restarts the EAP identifier and the receive clock, optionally
// re-associating first. It always answers DONE.
func (e *Executor) Reset(ctx context.Context) string {
	if e.opts.ResetAssoc {
		e.reassociate(ctx)
	}
	e.machine.Reset()
	e.lastReceive = e.now()
	e.haveSeqCtl = false
	e.lastQuery = domain.QueryReset
	e.lastResp = domain.RespDone
	e.publish()
	e.logger.Debug("Session reset")
	return domain.RespDone
}

func (e *Executor) reassociate(ctx context.Context) {
	for attempt := 1; attempt <= e.opts.ResetAttempts; attempt++ {
		if ctx.Err() != nil {
			return
		}
		if _, err := e.Query(ctx, domain.QueryAuth); err != nil {
			e.logger.Warn("Reset authentication failed", "attempt", attempt, "error", err)
			continue
		}
		resp, err := e.Query(ctx, domain.QueryAssoc)
		if err != nil {
			e.logger.Warn("Reset association failed", "attempt", attempt, "error", err)
			continue
		}
		if resp.Symbol == domain.RespAssocAccept {
			return
		}
	}
	e.logger.Warn("Association not accepted during reset", "attempts", e.opts.ResetAttempts)
}

// SetTimeout replaces the response timeout.
func (e *Executor) SetTimeout(seconds float64) error {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds <= 0 || seconds > maxTimeoutSeconds {
		return fmt.Errorf("%w: %v", ErrInvalidTimeout, seconds)
	}
	d := time.Duration(seconds * float64(time.Second))
	if d <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidTimeout, seconds)
	}
	e.timeout = d
	telemetry.ResponseTimeout.Set(e.timeout.Seconds())
	e.publish()
	e.logger.Info("Response timeout modified", "timeout", e.timeout)
	return nil
}

func (e *Executor) Timeout() time.Duration {
	return e.timeout
}

// Query injects the frame for symbol and waits for the first frame from the
// access point that abstracts to a response, or for the timeout.
func (e *Executor) Query(ctx context.Context, symbol string) (domain.Response, error) {
	ctx, span := otel.Tracer("sul-executor").Start(ctx, "Query")
	defer span.End()
	span.SetAttributes(attribute.String("query", symbol))

	resp, err := e.query(ctx, symbol)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.Response{}, err
	}
	span.SetAttributes(
		attribute.String("response", resp.Symbol),
		attribute.Int("eap.count_id", e.machine.CountID()),
	)
	return resp, nil
}

func (e *Executor) query(ctx context.Context, symbol string) (domain.Response, error) {
	kind, pkt, err := e.frame(symbol)
	if err != nil {
		return domain.Response{}, err
	}
	telemetry.QueriesTotal.WithLabelValues(kind).Inc()

	sent := e.now()
	telemetry.InjectionsTotal.WithLabelValues(e.session.InjectInterface, kind).Inc()
	if err := e.injector.Inject(pkt); err != nil {
		telemetry.InjectionErrors.WithLabelValues(e.session.InjectInterface, kind).Inc()
		return domain.Response{}, fmt.Errorf("%w: %s: %v", ErrInjection, symbol, err)
	}

	resp, err := e.await(ctx, sent)
	if err != nil {
		return domain.Response{}, err
	}
	telemetry.QueryDuration.WithLabelValues(kind).Observe(e.now().Sub(sent).Seconds())
	telemetry.ResponsesTotal.WithLabelValues(resp.Symbol).Inc()

	if !resp.IsTimeout() && !resp.IsData() {
		e.lastReceive = resp.ReceivedAt
		e.lastSeqCtl = resp.SequenceControl
		e.haveSeqCtl = true
	}
	e.machine.Observe(resp.Symbol)

	e.queries++
	e.lastQuery = symbol
	e.lastResp = resp.Symbol
	e.publish()
	e.logger.Debug("Query answered", "query", symbol, "response", resp.Symbol, "elapsed", resp.Elapsed)
	return resp, nil
}

// frame builds the frame for a query symbol. kind is the symbol with any
// method suffix folded, for metric labels.
func (e *Executor) frame(symbol string) (kind string, pkt []byte, err error) {
	switch {
	case symbol == domain.QueryIdentity:
		pkt, err = e.machine.IDResp()
	case strings.HasPrefix(symbol, domain.QueryNakPrefix):
		pkt, err = e.machine.EncResp(strings.TrimPrefix(symbol, domain.QueryNakPrefix))
		return domain.QueryNakPrefix + "*", pkt, err
	case symbol == domain.QueryClientHello:
		pkt, err = e.machine.ClientHello()
	case symbol == domain.QueryServerAck:
		pkt, err = e.machine.SHResp()
	case symbol == domain.QueryEAPOLStart:
		pkt, err = codec.EAPOLStart(e.link, e.seq.Next())
	case symbol == domain.QueryAuth:
		pkt, err = codec.Authentication(e.link, e.seq.Next())
	case symbol == domain.QueryAssoc:
		pkt, err = codec.AssociationRequest(e.link, e.seq.Next(), e.session.SSID, e.session.RSNInfo)
	case symbol == domain.QueryDeauth:
		pkt, err = codec.Deauthentication(e.link, e.seq.Next(), layers.Dot11ReasonDeauthStLeaving)
	default:
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownSymbol, symbol)
	}
	return symbol, pkt, err
}

// await reads the capture buffer until a frame abstracts to a response or
// the deadline passes. Frames captured before the injection instant and
// retransmissions of the last matched frame are skipped.
func (e *Executor) await(ctx context.Context, sent time.Time) (domain.Response, error) {
	deadline := sent.Add(e.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	for {
		cf, err := e.source.Next(deadline)
		if errors.Is(err, ports.ErrDeadline) {
			return domain.Response{Symbol: domain.RespTimeout, Elapsed: e.timeout}, nil
		}
		if err != nil {
			return domain.Response{}, fmt.Errorf("read capture: %w", err)
		}

		if cf.Timestamp.Before(sent) {
			telemetry.FramesSkipped.WithLabelValues("stale").Inc()
			continue
		}
		f, err := codec.Decode(cf)
		if err != nil {
			telemetry.FramesSkipped.WithLabelValues("undecodable").Inc()
			continue
		}
		if !e.link.Inbound(f) {
			telemetry.FramesSkipped.WithLabelValues("foreign").Inc()
			continue
		}
		if f.Retry() && e.haveSeqCtl && f.SequenceControl == e.lastSeqCtl {
			telemetry.FramesSkipped.WithLabelValues("retransmission").Inc()
			continue
		}
		symbol, ok := codec.Classify(f)
		if !ok {
			telemetry.FramesSkipped.WithLabelValues("unclassified").Inc()
			continue
		}
		return domain.Response{
			Symbol:          symbol,
			Elapsed:         cf.Timestamp.Sub(e.lastReceive),
			SequenceControl: f.SequenceControl,
			ReceivedAt:      cf.Timestamp,
		}, nil
	}
}

// Status returns the last published snapshot.
func (e *Executor) Status() domain.SessionStatus {
	return *e.status.Load()
}

func (e *Executor) publish() {
	e.status.Store(&domain.SessionStatus{
		SessionID:      e.session.ID.String(),
		SSID:           e.session.SSID,
		BSSID:          e.session.BSSID.String(),
		Channel:        e.session.Channel,
		State:          e.machine.State().String(),
		CountID:        e.machine.CountID(),
		TimeoutSeconds: e.timeout.Seconds(),
		Queries:        e.queries,
		LastQuery:      e.lastQuery,
		LastResponse:   e.lastResp,
		LastReceiveAt:  e.lastReceive,
	})
}
