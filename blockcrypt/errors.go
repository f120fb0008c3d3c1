package blockcrypt

import (
	"errors"
	"fmt"
)

// Kind identifies the class of a blockcrypt failure.
type Kind int

const (
	// Validation covers malformed input: bad key length, truncated or
	// misaligned frames, out of range layout indices.
	Validation Kind = iota + 1
	// Crypto is an AEAD authentication failure. The cause (tampering or
	// wrong key) is never reported.
	Crypto
	// Encoding is raised when the sealed metadata outgrows its 16-bit length
	// field.
	Encoding
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation error"
	case Crypto:
		return "crypto error"
	case Encoding:
		return "encoding error"
	}
	return fmt.Sprintf("unknown error kind %d", int(k))
}

// Error is the only error type returned by this package.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return "blockcrypt: " + e.Kind.String()
	}
	return "blockcrypt: " + e.Kind.String() + ": " + e.Msg
}

// Is matches any *Error of the same Kind, so errors.Is(err, ErrCrypto) works
// regardless of the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation = &Error{Kind: Validation}
	ErrCrypto     = &Error{Kind: Crypto}
	ErrEncoding   = &Error{Kind: Encoding}
)

// KindOf returns the Kind carried by err, or zero if err did not come from
// this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func validationErr(format string, a ...interface{}) error {
	return &Error{Kind: Validation, Msg: fmt.Sprintf(format, a...)}
}

// authFailed is deliberately opaque.
func authFailed() error {
	return &Error{Kind: Crypto, Msg: "message authentication failed"}
}
