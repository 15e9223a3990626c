package access

import (
	"go.uber.org/zap"

	"fleetpark/internal/session"
)

// StateSource es lo unico que el guard necesita de la sesion.
type StateSource interface {
	State() session.State
}

// Guard aplica la Policy y redirige cuando la navegacion no esta permitida.
type Guard struct {
	logger        *zap.Logger
	policy        *Policy
	sessions      StateSource
	navigator     session.Navigator
	loginPath     string
	forbiddenPath string
}

func NewGuard(logger *zap.Logger, policy *Policy, sessions StateSource, navigator session.Navigator, loginPath, forbiddenPath string) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == nil {
		policy = DefaultPolicy()
	}
	if loginPath == "" {
		loginPath = "/login"
	}
	if forbiddenPath == "" {
		forbiddenPath = "/unauthorized"
	}
	return &Guard{
		logger:        logger,
		policy:        policy,
		sessions:      sessions,
		navigator:     navigator,
		loginPath:     loginPath,
		forbiddenPath: forbiddenPath,
	}
}

// Navigate evalua path y navega al destino resultante.
func (g *Guard) Navigate(path string) Decision {
	decision := g.policy.Decide(g.sessions.State(), path)
	target := path
	switch decision {
	case RedirectLogin:
		target = g.loginPath
	case Forbidden:
		target = g.forbiddenPath
	}
	if decision != Allow {
		g.logger.Info("navigation denied", zap.String("path", path), zap.String("decision", decision.String()))
	}
	if g.navigator != nil {
		g.navigator.GoTo(target)
	}
	return decision
}
