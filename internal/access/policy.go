package access

import (
	"strings"

	"fleetpark/internal/domain"
	"fleetpark/internal/session"
)

// Decision es el resultado de evaluar una ruta.
type Decision int

const (
	Allow Decision = iota
	RedirectLogin
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case Forbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Rule asocia un prefijo de ruta con los roles que pueden entrar.
// Roles vacio significa cualquier usuario autenticado.
type Rule struct {
	Prefix string
	Roles  []domain.Role
}

func (r Rule) matches(path string) bool {
	if r.Prefix == "/" {
		return true
	}
	return path == r.Prefix || strings.HasPrefix(path, strings.TrimSuffix(r.Prefix, "/")+"/")
}

func (r Rule) permits(role domain.Role) bool {
	if len(r.Roles) == 0 {
		return true
	}
	for _, allowed := range r.Roles {
		if allowed == role {
			return true
		}
	}
	return false
}

// Policy evalua reglas en orden; gana la primera que coincide.
type Policy struct {
	Public []string
	Rules  []Rule
}

// DefaultPolicy es la tabla de rutas de la aplicacion de flotas y parqueos.
func DefaultPolicy() *Policy {
	return &Policy{
		Public: []string{"/login", "/unauthorized"},
		Rules: []Rule{
			{Prefix: "/admin", Roles: []domain.Role{domain.RoleAdmin}},
			{Prefix: "/companies", Roles: []domain.Role{domain.RoleAdmin, domain.RoleCompanyAdmin}},
			{Prefix: "/vehicles", Roles: []domain.Role{domain.RoleAdmin, domain.RoleCompanyAdmin}},
			{Prefix: "/drivers", Roles: []domain.Role{domain.RoleAdmin, domain.RoleCompanyAdmin}},
			{Prefix: "/parking-lots", Roles: []domain.Role{domain.RoleAdmin, domain.RoleParkingManager}},
			{Prefix: "/parking-spaces", Roles: []domain.Role{domain.RoleAdmin, domain.RoleParkingManager}},
			{Prefix: "/reports", Roles: []domain.Role{domain.RoleAdmin, domain.RoleCompanyAdmin, domain.RoleParkingManager}},
			{Prefix: "/trips", Roles: []domain.Role{domain.RoleDriver, domain.RoleCompanyAdmin, domain.RoleAdmin}},
			{Prefix: "/reservations"},
			{Prefix: "/notifications"},
			{Prefix: "/profile"},
			{Prefix: "/dashboard"},
		},
	}
}

// Decide responde si el estado de sesion dado puede entrar a path.
// Rutas sin regla solo exigen estar autenticado.
func (p *Policy) Decide(state session.State, path string) Decision {
	path = normalize(path)
	for _, public := range p.Public {
		if path == public || strings.HasPrefix(path, public+"/") {
			return Allow
		}
	}
	if !state.Authenticated || state.User == nil {
		return RedirectLogin
	}
	for _, rule := range p.Rules {
		if rule.matches(path) {
			if rule.permits(state.User.Role) {
				return Allow
			}
			return Forbidden
		}
	}
	return Allow
}

func normalize(path string) string {
	path = strings.TrimSpace(path)
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}
