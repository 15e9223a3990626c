package session

import (
	"context"
	"errors"
	"time"

	"fleetpark/internal/domain"
)

var (
	// ErrUnauthorized indica credenciales ausentes, invalidas o expiradas.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials indica usuario o password incorrectos en el login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnavailable indica que el servicio de identidad no responde o falla de forma transitoria.
	ErrUnavailable = errors.New("identity service unavailable")
)

// IdentityService es el contrato del servicio de identidad remoto.
type IdentityService interface {
	Login(ctx context.Context, identifier, secret string) (domain.AuthResult, error)
	CurrentUser(ctx context.Context, accessToken string) (domain.User, error)
	Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
}

// Claves usadas en el CredentialStore.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyRole         = "role"
)

// CredentialStore es un key-value persistente entre reinicios del proceso.
// Get devuelve "" sin error cuando la clave no existe.
type CredentialStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Alerter muestra una alerta efimera; no se espera respuesta.
type Alerter interface {
	Show(title, message string, duration time.Duration)
}

// Navigator redirige la UI a otra ruta.
type Navigator interface {
	GoTo(path string)
}

// NavigatorFunc adapta una funcion a Navigator.
type NavigatorFunc func(path string)

func (f NavigatorFunc) GoTo(path string) { f(path) }

// AlerterFunc adapta una funcion a Alerter.
type AlerterFunc func(title, message string, duration time.Duration)

func (f AlerterFunc) Show(title, message string, duration time.Duration) { f(title, message, duration) }
