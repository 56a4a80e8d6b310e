package addrquery

import "errors"

// Query errors. Match with errors.Is.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidAddress  = &ArgumentError{Kind: ErrInvalidArgument, Msg: "invalid address"}
	ErrUnsupportedMode = errors.New("address queries unavailable in reduced-index mode")
	ErrTxUnresolvable  = errors.New("transaction not found")
)

// ArgumentError is a caller-side input error. Msg is suitable for returning
// to the caller as is.
type ArgumentError struct {
	Kind error
	Msg  string
}

func (e *ArgumentError) Error() string { return e.Msg }

func (e *ArgumentError) Unwrap() error { return e.Kind }

var errMissingAddresses = &ArgumentError{Kind: ErrInvalidArgument, Msg: "Missing addresses parameter."}

func invalidAddress(addr string, cause error) error {
	return &ArgumentError{Kind: ErrInvalidAddress, Msg: "Invalid address: " + addr + " (" + cause.Error() + ")"}
}

// UsageError is returned instead of a result when help was requested.
type UsageError struct {
	Usage string
}

func (e *UsageError) Error() string { return e.Usage }
