package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/lcalzada-xor/eapsul/internal/core/domain"
	"github.com/lcalzada-xor/eapsul/internal/core/ports"
	"github.com/lcalzada-xor/eapsul/internal/core/services/sul"
)

// ErrMalformedControl is returned for a TIMEOUT_MODIFY line whose value is
// not a positive number. It ends the session.
var ErrMalformedControl = errors.New("malformed control line")

// Executor is the query engine the loop drives.
type Executor interface {
	Reset(ctx context.Context) string
	SetTimeout(seconds float64) error
	Query(ctx context.Context, symbol string) (domain.Response, error)
}

// Dispatcher maps learner lines onto executor calls, one reply per line.
type Dispatcher struct {
	exec      Executor
	format    Formatter
	recorders []ports.ExchangeRecorder
	sessionID string
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

func WithFormatter(f Formatter) Option {
	return func(d *Dispatcher) { d.format = f }
}

// WithRecorder adds an observer for every handled line.
func WithRecorder(r ports.ExchangeRecorder) Option {
	return func(d *Dispatcher) { d.recorders = append(d.recorders, r) }
}

func WithSessionID(id string) Option {
	return func(d *Dispatcher) { d.sessionID = id }
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

func New(exec Executor, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		exec:   exec,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// outcome is the result of one line.
type outcome struct {
	reply string // empty: nothing to write
	err   error  // non-nil: stop after writing reply
}

// handle runs one trimmed, non-empty line.
func (d *Dispatcher) handle(ctx context.Context, line string) outcome {
	var out outcome
	switch {
	case strings.Contains(line, domain.QueryTimeoutModify):
		secs, err := parseTimeout(line)
		if err == nil {
			err = d.exec.SetTimeout(secs)
		}
		if err != nil {
			out = outcome{reply: domain.RespError, err: fmt.Errorf("%w: %q: %v", ErrMalformedControl, line, err)}
			break
		}
		d.logger.Info("Modifying timeout value", "seconds", secs)
		out.reply = domain.RespDone
	case strings.Contains(line, domain.QueryReset):
		out.reply = d.exec.Reset(ctx)
	default:
		resp, err := d.exec.Query(ctx, line)
		switch {
		case err == nil:
			out.reply = d.format.Format(resp)
		case sul.IsQueryScoped(err):
			d.logger.Warn("Query failed", "query", line, "error", err)
			out.reply = domain.RespError
			d.record(line, out.reply, err)
			return out
		default:
			out = outcome{reply: domain.RespError, err: err}
		}
	}
	d.record(line, out.reply, out.err)
	return out
}

// parseTimeout reads the float after "TIMEOUT_MODIFY:".
func parseTimeout(line string) (float64, error) {
	_, val, ok := strings.Cut(line, domain.QueryTimeoutModify+":")
	if !ok {
		return 0, errors.New("missing value")
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(secs) || math.IsInf(secs, 0) || secs <= 0 {
		return 0, fmt.Errorf("timeout %v out of range", secs)
	}
	return secs, nil
}

func (d *Dispatcher) record(query, reply string, err error) {
	if len(d.recorders) == 0 {
		return
	}
	ex := domain.Exchange{
		SessionID: d.sessionID,
		Query:     query,
		Response:  reply,
		At:        d.now(),
	}
	if err != nil {
		ex.Error = err.Error()
	}
	for _, r := range d.recorders {
		r.RecordExchange(ex)
	}
}
