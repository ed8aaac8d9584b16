package channel

import "fmt"

// IllegalStateError is returned when an operation is invoked in a state
// that disallows it, or invoked a second time when the protocol permits it
// only once. The channel is left untouched.
type IllegalStateError struct {
	Op       string
	Current  interface{}
	Required interface{}
}

func (e *IllegalStateError) Error() string {
	if e.Required != nil {
		return fmt.Sprintf("illegal state: %s requires state %v, channel is in %v",
			e.Op, e.Required, e.Current)
	}
	return fmt.Sprintf("illegal state: %s is not valid from state %v", e.Op, e.Current)
}

// ValueOutOfRangeError is returned when an amount violates a dust, total,
// or fee invariant. Msg carries the spec's stable substring so callers can
// match on it ("afford", "more than channel worth", "more in fees than the
// channel was worth", ...).
type ValueOutOfRangeError struct {
	Msg   string
	Value interface{}
}

func (e *ValueOutOfRangeError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("value out of range: %s (value=%v)", e.Msg, e.Value)
	}
	return fmt.Sprintf("value out of range: %s", e.Msg)
}

// VerificationError is returned when a counterparty-supplied transaction or
// signature fails a structural, canonical, or cryptographic check. Msg
// carries the spec's stable substring ("not canonical", "SIGHASH_NONE",
// "client and server in that order", "zero value", ...).
type VerificationError struct {
	Msg string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification failed: %s", e.Msg)
}

func illegalState(op string, current, required interface{}) error {
	return &IllegalStateError{Op: op, Current: current, Required: required}
}

func valueOutOfRange(msg string, value interface{}) error {
	return &ValueOutOfRangeError{Msg: msg, Value: value}
}

func verification(msg string) error {
	return &VerificationError{Msg: msg}
}
