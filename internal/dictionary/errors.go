package dictionary

import (
	"errors"
	"fmt"
)

// Kind classifies a lookup failure
type Kind int

const (
	// KindPermanent failures will not go away by retrying: the word is
	// unknown or the upstream answered with something unusable
	KindPermanent Kind = iota + 1
	// KindTransient failures are connectivity problems: timeouts, refused
	// or reset connections
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindPermanent:
		return "permanent"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// LookupError is the only error type returned by Client.Lookup
type LookupError struct {
	Word       string
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *LookupError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("dictionary lookup %q: %s: status %d", e.Word, e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("dictionary lookup %q: %s: %v", e.Word, e.Kind, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a transient lookup failure
func IsTransient(err error) bool {
	var le *LookupError
	return errors.As(err, &le) && le.Kind == KindTransient
}

// IsPermanent reports whether err is a permanent lookup failure
func IsPermanent(err error) bool {
	var le *LookupError
	return errors.As(err, &le) && le.Kind == KindPermanent
}
