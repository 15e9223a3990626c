package session

import (
	"errors"
)

// LoginErrorKind clasifica el motivo de un login fallido.
type LoginErrorKind int

const (
	LoginInvalidInput LoginErrorKind = iota + 1
	LoginInvalidCredentials
	LoginUnavailable
	LoginUnexpected
)

func (k LoginErrorKind) String() string {
	switch k {
	case LoginInvalidInput:
		return "invalid_input"
	case LoginInvalidCredentials:
		return "invalid_credentials"
	case LoginUnavailable:
		return "service_unavailable"
	case LoginUnexpected:
		return "unexpected"
	default:
		return "unknown"
	}
}

// LoginError es el resultado clasificado de un login fallido. Message se puede mostrar al usuario.
type LoginError struct {
	Kind    LoginErrorKind
	Message string
	Err     error
}

func (e *LoginError) Error() string {
	return e.Message
}

func (e *LoginError) Unwrap() error {
	return e.Err
}

func classifyLoginError(err error) *LoginError {
	switch {
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUnauthorized):
		return &LoginError{Kind: LoginInvalidCredentials, Message: "Invalid email or password", Err: err}
	case errors.Is(err, ErrUnavailable):
		return &LoginError{Kind: LoginUnavailable, Message: "The service is unavailable, please try again in a few minutes", Err: err}
	default:
		return &LoginError{Kind: LoginUnexpected, Message: "An unexpected error occurred while signing in", Err: err}
	}
}
