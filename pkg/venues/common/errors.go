package common

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is the root of all local pre-flight rejections. A
	// validation failure never reaches the network.
	ErrValidation = errors.New("order validation failed")
	// ErrUnknownVenue is returned for a venue with no registered gateway.
	ErrUnknownVenue = errors.New("unknown venue")
)

// ValidationKind discriminates validation failures.
type ValidationKind string

const (
	KindPriceBound    ValidationKind = "price_bound"
	KindMinSize       ValidationKind = "min_size"
	KindCrossing      ValidationKind = "post_only_cross"
	KindStaleSnapshot ValidationKind = "stale_snapshot"
	KindLimitPrice    ValidationKind = "limit_price"
	KindBatchLimit    ValidationKind = "batch_limit"
)

// ValidationError is a local, pre-flight rejection.
type ValidationError struct {
	Kind ValidationKind
	Msg  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation (%s): %s", e.Kind, e.Msg)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func validationf(kind ValidationKind, format string, args ...any) error {
	return &ValidationError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// ValidationKindOf extracts the kind from a validation error, or "".
func ValidationKindOf(err error) ValidationKind {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return ""
}

// AuthError reports a failed credential issuance or refresh. It is fatal to
// any request for that venue until resolved.
type AuthError struct {
	Venue Venue
	Err   error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth %s: %v", e.Venue, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsAuthError reports whether err is (or wraps) an AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
