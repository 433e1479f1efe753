package eap

// State tracks how far the handshake has progressed.
type State int

const (
	StateIdle State = iota
	StateIdentitySent
	StateMethodNegotiated
	StateClientHelloSent
	StateAwaitingServerHello
	StateContinuing
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateIdle:                "Idle",
	StateIdentitySent:        "IdentitySent",
	StateMethodNegotiated:    "MethodNegotiated",
	StateClientHelloSent:     "ClientHelloSent",
	StateAwaitingServerHello: "AwaitingServerHello",
	StateContinuing:          "Continuing",
	StateDone:                "Done",
	StateFailed:              "Failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// Terminal reports whether the authentication finished either way.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// legal lists the states each builder may be called from in strict mode.
var legal = map[string][]State{
	opIdentity:    {StateIdle, StateIdentitySent},
	opNak:         {StateIdentitySent, StateMethodNegotiated},
	opClientHello: {StateIdentitySent, StateMethodNegotiated, StateClientHelloSent},
	opServerAck:   {StateClientHelloSent, StateAwaitingServerHello, StateContinuing},
}

func allowed(op string, s State) bool {
	for _, st := range legal[op] {
		if st == s {
			return true
		}
	}
	return false
}
