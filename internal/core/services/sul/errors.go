package sul

import (
	"errors"

	"github.com/lcalzada-xor/eapsul/internal/core/services/eap"
)

var (
	// ErrUnknownSymbol is returned for query symbols outside the vocabulary.
	ErrUnknownSymbol = errors.New("unknown query symbol")
	// ErrInjection wraps any failure to put a frame on the air.
	ErrInjection = errors.New("frame injection failed")
	// ErrInvalidTimeout is returned for non-positive or non-finite timeouts.
	ErrInvalidTimeout = errors.New("response timeout must be a positive number of seconds")
)

// IsQueryScoped reports whether err only fails the current query. Any other
// error leaves the executor unable to answer further queries.
func IsQueryScoped(err error) bool {
	return errors.Is(err, ErrUnknownSymbol) ||
		errors.Is(err, eap.ErrUnsupportedMethod) ||
		errors.Is(err, eap.ErrOutOfOrder) ||
		errors.Is(err, eap.ErrNoIdentity)
}
