package eap

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/lcalzada-xor/eapsul/internal/adapters/sniffer/codec"
	"github.com/lcalzada-xor/eapsul/internal/core/domain"
)

var (
	// ErrOutOfOrder is returned in strict mode when a builder is called from
	// a state the handshake cannot be in at that step.
	ErrOutOfOrder = errors.New("eap step out of order")
	// ErrNoIdentity is returned by IDResp when no credential is configured.
	ErrNoIdentity = errors.New("no eap identity configured")
)

const (
	opIdentity    = "ID_RESP"
	opNak         = "NAK"
	opClientHello = "CLIENT_HELLO"
	opServerAck   = "SH_RESP"
)

// Machine builds the supplicant side of an EAP-TTLS exchange, one framed
// packet per call. It owns the EAP identifier counter; every successful
// build advances it by one. It is not safe for concurrent use.
type Machine struct {
	link   codec.Link
	cred   *domain.Credential
	seq    *codec.SequenceCounter
	rand   io.Reader
	strict bool

	countID int
	state   State
}

// Option configures a Machine.
type Option func(*Machine)

// WithStrictOrder rejects builder calls that skip or repeat handshake steps.
func WithStrictOrder(strict bool) Option {
	return func(m *Machine) { m.strict = strict }
}

// WithRandom sets the source of the TLS client random.
func WithRandom(r io.Reader) Option {
	return func(m *Machine) { m.rand = r }
}

// WithSequence shares an 802.11 sequence counter with other frame builders.
func WithSequence(seq *codec.SequenceCounter) Option {
	return func(m *Machine) { m.seq = seq }
}

// NewMachine returns a machine in StateIdle with count_id 1. cred may be nil.
func NewMachine(link codec.Link, cred *domain.Credential, opts ...Option) *Machine {
	m := &Machine{
		link:    link,
		cred:    cred,
		rand:    rand.Reader,
		countID: 1,
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.seq == nil {
		m.seq = codec.NewSequenceCounter()
	}
	return m
}

// CountID is the identifier the next packet will carry.
func (m *Machine) CountID() int {
	return m.countID
}

func (m *Machine) State() State {
	return m.state
}

// Reset returns to StateIdle and restarts the identifier at 1.
func (m *Machine) Reset() {
	m.countID = 1
	m.state = StateIdle
}

// IDResp builds the Identity response, preferring the anonymous identity.
func (m *Machine) IDResp() ([]byte, error) {
	if m.cred == nil || m.cred.Identity() == "" {
		return nil, ErrNoIdentity
	}
	return m.build(opIdentity, StateIdentitySent, func(id uint8) ([]byte, error) {
		return codec.IdentityResponse(m.link, m.seq.Next(), id, m.cred.Identity())
	})
}

// EncResp builds a Nak proposing the named method. Unknown names fail with
// ErrUnsupportedMethod and leave the counter untouched.
func (m *Machine) EncResp(name string) ([]byte, error) {
	method, err := ParseMethod(name)
	if err != nil {
		return nil, err
	}
	return m.build(opNak, StateMethodNegotiated, func(id uint8) ([]byte, error) {
		return codec.LegacyNak(m.link, m.seq.Next(), id, method.EAPType())
	})
}

// ClientHello builds the EAP-TTLS response carrying a fresh TLS ClientHello.
func (m *Machine) ClientHello() ([]byte, error) {
	return m.build(opClientHello, StateClientHelloSent, func(id uint8) ([]byte, error) {
		hello, err := codec.NewClientHello(m.rand)
		if err != nil {
			return nil, err
		}
		return codec.TTLSClientHello(m.link, m.seq.Next(), id, hello)
	})
}

// SHResp builds the empty EAP-TTLS response that acknowledges a server
// fragment.
func (m *Machine) SHResp() ([]byte, error) {
	return m.build(opServerAck, StateContinuing, func(id uint8) ([]byte, error) {
		return codec.TTLSAck(m.link, m.seq.Next(), id)
	})
}

// Observe feeds a classified response back so the state follows the server.
func (m *Machine) Observe(symbol string) {
	switch symbol {
	case domain.RespServerHello, domain.RespServerHelloFrag:
		if m.state == StateClientHelloSent || m.state == StateContinuing {
			m.state = StateAwaitingServerHello
		}
	case domain.RespEAPSuccess:
		m.state = StateDone
	case domain.RespEAPFailure, domain.RespTLSAlert:
		m.state = StateFailed
	}
}

func (m *Machine) build(op string, next State, frame func(id uint8) ([]byte, error)) ([]byte, error) {
	if m.strict && !allowed(op, m.state) {
		return nil, fmt.Errorf("%w: %s in state %s", ErrOutOfOrder, op, m.state)
	}
	pkt, err := frame(uint8(m.countID))
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", op, err)
	}
	m.countID++
	m.state = next
	return pkt, nil
}
