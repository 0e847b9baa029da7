package anthropic

import (
	"errors"
	"fmt"
)

// Reason classifies why a Messages API call did not produce a reply
type Reason string

const (
	ReasonUnconfigured Reason = "unconfigured"
	ReasonTransport    Reason = "transport"
	ReasonStatus       Reason = "status"
	ReasonDecode       Reason = "decode"
)

// Failure is the error returned by Client.Generate for every expected
// failure mode. Body holds the raw upstream diagnostic and is meant for logs.
type Failure struct {
	Reason Reason
	Status int
	Body   string
	Err    error
}

func (f *Failure) Error() string {
	switch f.Reason {
	case ReasonUnconfigured:
		return "anthropic: api key not configured"
	case ReasonStatus:
		return fmt.Sprintf("anthropic: status %d", f.Status)
	default:
		if f.Err != nil {
			return fmt.Sprintf("anthropic %s: %v", f.Reason, f.Err)
		}
		return "anthropic " + string(f.Reason)
	}
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// IsUnconfigured reports whether err means no credential was configured
func IsUnconfigured(err error) bool {
	var f *Failure
	return errors.As(err, &f) && f.Reason == ReasonUnconfigured
}

// IsExternalFailure reports whether err is a transport, status or decode failure
func IsExternalFailure(err error) bool {
	var f *Failure
	return errors.As(err, &f) && f.Reason != ReasonUnconfigured
}
